package audio

import (
	"context"

	"audiocodec-go/drivers/codec"
	"audiocodec-go/errcode"
	"audiocodec-go/services/audio/internal/core"
)

// CodecPort adapts the codec driver to the card's register port and DAI.
type CodecPort struct {
	dev *codec.Device
}

func NewCodecPort(dev *codec.Device) *CodecPort { return &CodecPort{dev: dev} }

func (p *CodecPort) Read(reg uint16) (uint16, error) { return p.dev.Read(reg) }

func (p *CodecPort) Write(reg, mask, val uint16) error { return p.dev.Write(reg, mask, val) }

func (p *CodecPort) SetClockSource(d core.ClockDomain, ref core.ClockRef, rateHz uint32) error {
	var clk codec.Clock
	switch d {
	case core.DomainSysClk:
		clk = codec.SysClk
	case core.DomainAsyncClk:
		clk = codec.AsyncClk
	case core.DomainMCLK1:
		clk = codec.MCLK1
	case core.DomainMCLK2:
		clk = codec.MCLK2
	default:
		return errcode.New(errcode.Unsupported, "set_clock_source", d.String())
	}
	// Reference gates only open or close.
	src := sourceOf(ref)
	if (clk == codec.MCLK1 || clk == codec.MCLK2) && ref != core.RefNone {
		src = codec.SrcMCLK1
		if clk == codec.MCLK2 {
			src = codec.SrcMCLK2
		}
	}
	return p.dev.SetClock(clk, src, rateHz)
}

func (p *CodecPort) SetPLL(d core.ClockDomain, ref core.ClockRef, inHz, outHz uint32) error {
	var fll codec.FLL
	switch d {
	case core.PLLSync:
		fll = codec.FLL1
	case core.PLLAsync:
		fll = codec.FLL2
	default:
		return errcode.New(errcode.Unsupported, "set_pll", d.String())
	}
	return p.dev.SetFLL(fll, sourceOf(ref), inHz, outHz)
}

func sourceOf(ref core.ClockRef) codec.Source {
	switch ref {
	case core.RefMCLK1:
		return codec.SrcMCLK1
	case core.RefMCLK2:
		return codec.SrcMCLK2
	case core.RefPLLSync:
		return codec.SrcFLL1
	case core.RefPLLAsync:
		return codec.SrcFLL2
	case core.RefVoiceBCLK:
		return codec.SrcAIF2BCLK
	default:
		return codec.SrcNone
	}
}

// ---- DAI ----

func aifOf(link core.LinkID) (codec.Interface, bool) {
	switch link {
	case core.LinkPrimary:
		return codec.AIF1, true
	case core.LinkVoice:
		return codec.AIF2, true
	case core.LinkAux:
		return codec.AIF3, true
	}
	return 0, false
}

func (p *CodecPort) SetFormat(_ context.Context, link core.LinkID, f core.Format) error {
	aif, ok := aifOf(link)
	if !ok {
		return errcode.New(errcode.Unsupported, "set_fmt", link.String())
	}
	cf := codec.Format{Master: f.Role == core.RoleMaster}
	switch f.Mode {
	case core.FmtI2S:
		cf.Mode = codec.ModeI2S
	case core.FmtLeftJ:
		cf.Mode = codec.ModeLeftJ
	case core.FmtDSPA:
		cf.Mode = codec.ModeDSPA
	case core.FmtDSPB:
		cf.Mode = codec.ModeDSPB
	}
	switch f.Inversion {
	case core.NormalBCLKInvFrame:
		cf.InvLRCLK = true
	case core.InvBCLKNormalFrame:
		cf.InvBCLK = true
	case core.InvBCLKInvFrame:
		cf.InvBCLK, cf.InvLRCLK = true, true
	}
	if t := f.TDM; t.Slots != 0 {
		if err := p.dev.SetTDM(aif, t.TxMask, t.RxMask, int(t.Slots), int(t.SlotBits)); err != nil {
			return err
		}
	}
	return p.dev.SetFormat(aif, cf)
}

func (p *CodecPort) SetBitClock(_ context.Context, link core.LinkID, hz uint32) error {
	aif, ok := aifOf(link)
	if !ok {
		return errcode.New(errcode.Unsupported, "set_bclk", link.String())
	}
	return p.dev.SetBitClock(aif, hz)
}
