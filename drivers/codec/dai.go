package codec

import "github.com/pkg/errors"

// Interface selects an audio interface block.
type Interface uint8

const (
	AIF1 Interface = iota
	AIF2
	AIF3
)

func (i Interface) base() uint16 {
	switch i {
	case AIF2:
		return RegAIF2Base
	case AIF3:
		return RegAIF3Base
	default:
		return RegAIF1Base
	}
}

// Mode is the frame format code.
type Mode uint16

const (
	ModeDSPA  Mode = 0
	ModeDSPB  Mode = 1
	ModeI2S   Mode = 2
	ModeLeftJ Mode = 3
)

type Format struct {
	Mode     Mode
	InvBCLK  bool
	InvLRCLK bool
	Master   bool // codec drives BCLK and LRCLK
}

// SetFormat programs frame format, clock inversion and clock direction.
func (d *Device) SetFormat(aif Interface, f Format) error {
	base := aif.base()
	if err := d.Write(base+aifFormat, fmtMask, uint16(f.Mode)); err != nil {
		return err
	}
	var bclk, lrclk uint16
	if f.Master {
		bclk |= BCLKMaster
		lrclk |= LRCLKMaster
	}
	if f.InvBCLK {
		bclk |= bclkInv
	}
	if f.InvLRCLK {
		lrclk |= lrclkInv
	}
	if err := d.Write(base+aifBCLKCtrl, BCLKMaster|bclkInv, bclk); err != nil {
		return err
	}
	return d.Write(base+aifLRCLKCtrl, LRCLKMaster|lrclkInv, lrclk)
}

// SetTDM assigns the set bits of tx and rx, lowest first, to consecutive
// channels of aif and sets the slot length. Slot numbers must be below slots.
func (d *Device) SetTDM(aif Interface, tx, rx uint32, slots, width int) error {
	if slots < 1 || slots > slotMask+1 || width < 1 || width > slotLenMask {
		return errors.Wrapf(ErrUnsupported, "tdm %d slots of %d bits", slots, width)
	}
	base := aif.base()
	for _, side := range []struct {
		mask        uint32
		frame, slot uint16
	}{
		{tx, aifTxFrame, aifTxSlot0},
		{rx, aifRxFrame, aifRxSlot0},
	} {
		if err := d.Write(base+side.frame, slotLenMask, uint16(width)); err != nil {
			return err
		}
		ch := uint16(0)
		for s := 0; s < 32; s++ {
			if side.mask&(1<<s) == 0 {
				continue
			}
			if s >= slots || ch == aifChannels {
				return errors.Wrapf(ErrUnsupported, "tdm slot mask %#x", side.mask)
			}
			if err := d.Write(base+side.slot+ch, slotMask, uint16(s)); err != nil {
				return err
			}
			ch++
		}
	}
	return nil
}

// SetBitClock sets the generated bit clock when the codec is master.
func (d *Device) SetBitClock(aif Interface, hz uint32) error {
	code, ok := rateCode(bclkRates[:], hz)
	if !ok {
		return errors.Wrapf(ErrUnsupported, "bit clock %d", hz)
	}
	return d.Write(aif.base()+aifBCLKCtrl, bclkFreq, code)
}
