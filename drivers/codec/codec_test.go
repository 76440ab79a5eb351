package codec

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type write struct{ reg, val uint16 }

// fakeBus emulates the word protocol over a register map.
type fakeBus struct {
	regs   map[uint16]uint16
	writes []write
	err    error
}

func newFakeBus() *fakeBus {
	return &fakeBus{regs: map[uint16]uint16{regDeviceID: DeviceID, regClockStatus: fll1Lock | fll2Lock}}
}

func (b *fakeBus) Tx(addr uint16, w, r []byte) error {
	if b.err != nil {
		return b.err
	}
	if addr != AddressDefault || len(w) < 2 {
		return errors.New("bad transfer")
	}
	reg := uint16(w[0])<<8 | uint16(w[1])
	switch {
	case len(w) == 4:
		v := uint16(w[2])<<8 | uint16(w[3])
		b.regs[reg] = v
		b.writes = append(b.writes, write{reg, v})
	case len(r) == 2:
		v := b.regs[reg]
		r[0], r[1] = byte(v>>8), byte(v)
	}
	return nil
}

func newDevice() (*Device, *fakeBus) {
	b := newFakeBus()
	return New(b, Config{LockTimeout: 2 * time.Millisecond, LockPoll: 100 * time.Microsecond}), b
}

func TestCheckID(t *testing.T) {
	d, b := newDevice()
	require.NoError(t, d.CheckID())

	b.regs[regDeviceID] = 0x1234
	assert.ErrorIs(t, d.CheckID(), ErrUnknownDevice)
}

func TestWriteIsMaskedReadModifyWrite(t *testing.T) {
	d, b := newDevice()
	b.regs[0x0411] = 0x0F0F

	require.NoError(t, d.Write(0x0411, 0x00FF, 0x0033))
	assert.Equal(t, uint16(0x0F33), b.regs[0x0411])

	require.NoError(t, d.Write(0x0411, 0xFFFF, 0x1234))
	assert.Equal(t, uint16(0x1234), b.regs[0x0411])
}

func TestBusErrorsAreWrapped(t *testing.T) {
	d, b := newDevice()
	boom := errors.New("nak")
	b.err = boom
	_, err := d.Read(0x0101)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "0x101")
}

func TestComputeFLL(t *testing.T) {
	cases := []struct {
		name    string
		in, out uint32
		want    fllConfig
	}{
		{"mclk1 to sysclk", 24_000_000, 49_152_000, fllConfig{refdiv: 1, fratio: 1, outdiv: 2, n: 8, k: 12582}},
		{"mclk2 to sysclk", 32_768, 49_152_000, fllConfig{refdiv: 0, fratio: 16, outdiv: 2, n: 187, k: 32768}},
		{"voice bclk to asyncclk", 256_000, 49_152_000, fllConfig{refdiv: 0, fratio: 2, outdiv: 2, n: 192, k: 0}},
		{"low rate asyncclk", 256_000, 24_576_000, fllConfig{refdiv: 0, fratio: 2, outdiv: 4, n: 192, k: 0}},
		{"mclk1 to high rate sysclk", 24_000_000, 147_456_000, fllConfig{refdiv: 1, fratio: 1, outdiv: 2, n: 8, k: 12582, x3: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := computeFLL(tc.in, tc.out)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := computeFLL(0, 49_152_000)
	assert.ErrorIs(t, err, ErrUnsupported)
	_, err = computeFLL(200_000_000, 49_152_000)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestSetFLLProgramsAndLocks(t *testing.T) {
	d, b := newDevice()
	require.NoError(t, d.SetFLL(FLL1, SrcMCLK1, 24_000_000, 49_152_000))

	assert.Equal(t, uint16(fllEna), b.regs[regFLL1Base+fllCtrl1])
	assert.Equal(t, uint16(8), b.regs[regFLL1Base+fllCtrl2])
	assert.Equal(t, uint16(12582), b.regs[regFLL1Base+fllCtrl3])
	assert.Equal(t, uint16(2<<8), b.regs[regFLL1Base+fllCtrl4])
	assert.Equal(t, uint16(1<<6|srcMCLK1), b.regs[regFLL1Base+fllCtrl5])

	// Disabled first, enabled last.
	var fllWrites []write
	for _, w := range b.writes {
		if w.reg == regFLL1Base+fllCtrl1 {
			fllWrites = append(fllWrites, w)
		}
	}
	require.Len(t, fllWrites, 2)
	assert.Zero(t, fllWrites[0].val)
	assert.Equal(t, b.writes[len(b.writes)-1], write{regFLL1Base + fllCtrl1, fllEna})
}

func TestSetFLLLockTimeout(t *testing.T) {
	d, b := newDevice()
	b.regs[regClockStatus] = fll1Lock
	assert.ErrorIs(t, d.SetFLL(FLL2, SrcAIF2BCLK, 256_000, 49_152_000), ErrFLLLock)
}

func TestSetFLLStop(t *testing.T) {
	d, b := newDevice()
	b.regs[regFLL2Base+fllCtrl1] = fllEna
	require.NoError(t, d.SetFLL(FLL2, SrcNone, 0, 0))
	assert.Zero(t, b.regs[regFLL2Base+fllCtrl1])
}

func TestSetFLLHighRateSysclk(t *testing.T) {
	d, b := newDevice()
	require.NoError(t, d.SetFLL(FLL1, SrcMCLK1, 24_000_000, 147_456_000))
	assert.Equal(t, uint16(2<<8|fllOutX3), b.regs[regFLL1Base+fllCtrl4])

	require.NoError(t, d.SetClock(SysClk, SrcFLL1, 147_456_000))
	assert.Equal(t, uint16(clkEna|srcFLL1|6<<clkFreqShift), b.regs[regSysClock])
}

func TestSetClock(t *testing.T) {
	d, b := newDevice()
	require.NoError(t, d.SetClock(SysClk, SrcFLL1, 49_152_000))
	assert.Equal(t, uint16(clkEna|srcFLL1|3<<clkFreqShift), b.regs[regSysClock])

	require.NoError(t, d.SetClock(MCLK2, SrcMCLK2, 32_768))
	require.NoError(t, d.SetClock(MCLK1, SrcMCLK1, 24_000_000))
	assert.Equal(t, uint16(mclk1Ena|mclk2Ena), b.regs[regClockInputs])
	require.NoError(t, d.SetClock(MCLK1, SrcNone, 0))
	assert.Equal(t, uint16(mclk2Ena), b.regs[regClockInputs])

	require.NoError(t, d.SetClock(SysClk, SrcNone, 0))
	assert.Equal(t, uint16(srcFLL1|3<<clkFreqShift), b.regs[regSysClock])

	assert.ErrorIs(t, d.SetClock(AsyncClk, SrcFLL2, 12_345), ErrUnsupported)
}

func TestSetFormatAndBitClock(t *testing.T) {
	d, b := newDevice()
	require.NoError(t, d.SetFormat(AIF2, Format{Mode: ModeDSPA, Master: true}))
	assert.Equal(t, uint16(BCLKMaster), b.regs[RegAIF2Base+aifBCLKCtrl])
	assert.Equal(t, uint16(LRCLKMaster), b.regs[RegAIF2Base+aifLRCLKCtrl])
	assert.Equal(t, uint16(ModeDSPA), b.regs[RegAIF2Base+aifFormat])

	require.NoError(t, d.SetBitClock(AIF2, 512_000))
	assert.Equal(t, uint16(BCLKMaster|8), b.regs[RegAIF2Base+aifBCLKCtrl])

	require.NoError(t, d.SetFormat(AIF2, Format{Mode: ModeI2S, InvLRCLK: true}))
	assert.Equal(t, uint16(8), b.regs[RegAIF2Base+aifBCLKCtrl])
	assert.Equal(t, uint16(lrclkInv), b.regs[RegAIF2Base+aifLRCLKCtrl])

	assert.ErrorIs(t, d.SetBitClock(AIF1, 123), ErrUnsupported)
}

func TestSetTDM(t *testing.T) {
	d, b := newDevice()
	require.NoError(t, d.SetTDM(AIF2, 0x07, 0x06, 4, 16))

	assert.Equal(t, uint16(16), b.regs[RegAIF2Base+aifTxFrame])
	assert.Equal(t, uint16(16), b.regs[RegAIF2Base+aifRxFrame])
	for ch, slot := range []uint16{0, 1, 2} {
		assert.Equal(t, slot, b.regs[RegAIF2Base+aifTxSlot0+uint16(ch)], "tx ch%d", ch)
	}
	assert.Equal(t, uint16(1), b.regs[RegAIF2Base+aifRxSlot0])
	assert.Equal(t, uint16(2), b.regs[RegAIF2Base+aifRxSlot0+1])

	assert.ErrorIs(t, d.SetTDM(AIF2, 0x10, 0x01, 4, 16), ErrUnsupported)
	assert.ErrorIs(t, d.SetTDM(AIF2, 0x01, 0x01, 0, 16), ErrUnsupported)
}
