package codec

import (
	"time"

	"github.com/pkg/errors"

	"audiocodec-go/x/mathx"
)

// Clock is a codec clock domain or input gate.
type Clock uint8

const (
	SysClk Clock = iota
	AsyncClk
	MCLK1 // input gate for the MCLK1 pin
	MCLK2 // input gate for the MCLK2 pin
)

// FLL selects a frequency-locked loop.
type FLL uint8

const (
	FLL1 FLL = iota // feeds SYSCLK
	FLL2            // feeds ASYNCCLK
)

// Source feeds a clock domain or FLL.
type Source uint8

const (
	SrcNone Source = iota
	SrcMCLK1
	SrcMCLK2
	SrcFLL1
	SrcFLL2
	SrcAIF2BCLK
)

func (s Source) code() (uint16, bool) {
	switch s {
	case SrcMCLK1:
		return srcMCLK1, true
	case SrcMCLK2:
		return srcMCLK2, true
	case SrcFLL1:
		return srcFLL1, true
	case SrcFLL2:
		return srcFLL2, true
	case SrcAIF2BCLK:
		return srcAIF2BCLK, true
	}
	return 0, false
}

// ---------------- Clock domains ----------------

// SetClock selects src for clk at rateHz. SrcNone disables the domain or
// closes the input gate.
func (d *Device) SetClock(clk Clock, src Source, rateHz uint32) error {
	switch clk {
	case MCLK1, MCLK2:
		bit := uint16(mclk1Ena)
		if clk == MCLK2 {
			bit = mclk2Ena
		}
		val := bit
		if src == SrcNone {
			val = 0
		}
		return d.Write(regClockInputs, bit, val)

	case SysClk, AsyncClk:
		reg := uint16(regSysClock)
		if clk == AsyncClk {
			reg = regAsyncClock
		}
		if src == SrcNone {
			return d.Write(reg, clkEna, 0)
		}
		sc, ok := src.code()
		if !ok {
			return errors.Wrapf(ErrUnsupported, "clock source %d", src)
		}
		fc, ok := rateCode(sysclkRates[:], rateHz)
		if !ok {
			return errors.Wrapf(ErrUnsupported, "clock rate %d", rateHz)
		}
		return d.Write(reg, clkEna|clkSrcMask|clkFreqMask, clkEna|sc|fc<<clkFreqShift)
	}
	return errors.Wrapf(ErrUnsupported, "clock %d", clk)
}

func rateCode(table []uint32, hz uint32) (uint16, bool) {
	for i, r := range table {
		if r == hz {
			return uint16(i), true
		}
	}
	return 0, false
}

// ---------------- FLL ----------------

const (
	fvcoMin   = 90_000_000
	fvcoMax   = 100_000_000
	frefMax   = 13_500_000
	maxRefDiv = 3 // code; divide by 8
	maxOutDiv = 63
	fracBits  = 16
)

// fllConfig is one FLL programming. Fout = Fref*fratio*(N+K/65536)/outdiv,
// with Fref = Fin/2^refdiv, tripled when x3 is set.
type fllConfig struct {
	refdiv uint16 // code: divide by 1<<refdiv
	fratio uint16 // multiplier 1..16
	outdiv uint16
	n      uint16
	k      uint16
	x3     bool
}

func (c fllConfig) fratioCode() uint16 {
	switch c.fratio {
	case 1:
		return 0
	case 2:
		return 1
	case 4:
		return 2
	case 8:
		return 3
	default:
		return 4
	}
}

func computeFLL(inHz, outHz uint32) (fllConfig, error) {
	var c fllConfig
	if inHz == 0 || outHz == 0 {
		return c, errors.Wrap(ErrUnsupported, "fll: zero rate")
	}
	fref := inHz
	for fref > frefMax {
		if c.refdiv == maxRefDiv {
			return c, errors.Wrapf(ErrUnsupported, "fll: reference %d too fast", inHz)
		}
		c.refdiv++
		fref = inHz >> c.refdiv
	}

	target := outHz
	if outHz > fvcoMax {
		if outHz%3 != 0 {
			return c, errors.Wrapf(ErrUnsupported, "fll: output %d out of range", outHz)
		}
		target, c.x3 = outHz/3, true
	}
	outdiv := mathx.Clamp(mathx.CeilDiv(uint32(fvcoMin), target), 2, maxOutDiv)
	fvco := uint64(target) * uint64(outdiv)
	if fvco < fvcoMin || fvco > fvcoMax {
		return c, errors.Wrapf(ErrUnsupported, "fll: output %d out of range", outHz)
	}
	c.outdiv = uint16(outdiv)

	switch {
	case fref >= 1_000_000:
		c.fratio = 1
	case fref >= 256_000:
		c.fratio = 2
	case fref >= 128_000:
		c.fratio = 4
	case fref >= 64_000:
		c.fratio = 8
	default:
		c.fratio = 16
	}

	den := uint64(fref) * uint64(c.fratio)
	n := fvco / den
	if n == 0 || n > fllNMask {
		return c, errors.Wrapf(ErrUnsupported, "fll: ratio %d->%d", inHz, outHz)
	}
	c.n = uint16(n)
	c.k = uint16(((fvco % den) << fracBits) / den)
	return c, nil
}

// SetFLL programs fll from src at inHz to produce outHz and waits for lock.
// SrcNone stops it.
func (d *Device) SetFLL(fll FLL, src Source, inHz, outHz uint32) error {
	base, lock := uint16(regFLL1Base), uint16(fll1Lock)
	if fll == FLL2 {
		base, lock = regFLL2Base, fll2Lock
	}
	if src == SrcNone {
		return d.Write(base+fllCtrl1, fllEna, 0)
	}
	sc, ok := src.code()
	if !ok || src == SrcFLL1 || src == SrcFLL2 {
		return errors.Wrapf(ErrUnsupported, "fll source %d", src)
	}
	c, err := computeFLL(inHz, outHz)
	if err != nil {
		return err
	}

	ctrl4 := c.outdiv<<8 | c.fratioCode()
	if c.x3 {
		ctrl4 |= fllOutX3
	}
	steps := []struct{ reg, mask, val uint16 }{
		{base + fllCtrl1, fllEna, 0},
		{base + fllCtrl5, fllRefDiv | fllRefSrc, c.refdiv<<6 | sc},
		{base + fllCtrl4, fllOutDiv | fllOutX3 | fllFratio, ctrl4},
		{base + fllCtrl2, fllNMask, c.n},
		{base + fllCtrl3, 0xFFFF, c.k},
		{base + fllCtrl1, fllEna, fllEna},
	}
	for _, s := range steps {
		if err := d.Write(s.reg, s.mask, s.val); err != nil {
			return err
		}
	}
	return d.waitLock(lock)
}

func (d *Device) waitLock(bit uint16) error {
	deadline := time.Now().Add(d.lockTimeout)
	for {
		st, err := d.Read(regClockStatus)
		if err != nil {
			return err
		}
		if st&bit != 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrFLLLock
		}
		time.Sleep(d.lockPoll)
	}
}
