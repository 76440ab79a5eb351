// Package negotiator fixes format, clock role and bit clock per audio link at
// hw-params time, and gates links that share hardware.
package negotiator

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"audiocodec-go/errcode"
	"audiocodec-go/services/audio/internal/core"
)

// AsyncClock re-points the async PLL feeding the voice link.
type AsyncClock interface {
	RetargetAsync(ctx context.Context, ref core.ClockRef, inHz uint32) error
}

// PinCtrl locates the master-enable bits of one link's BCLK and LRCLK pins.
type PinCtrl struct {
	Link      core.LinkID
	BCLKReg   uint16
	BCLKMask  uint16
	LRCLKReg  uint16
	LRCLKMask uint16
}

type Config struct {
	Codec    core.DAI
	Platform core.DAI
	Port     core.Port
	Clock    AsyncClock
	Shared   *core.Shared
	Pins     []PinCtrl
	MCLK1Hz  uint32
	// VoiceFormat is the configured voice link format; nil selects
	// DefaultVoiceFormat. Its role is replaced by aif2mode.
	VoiceFormat *core.Format
	Log         *logrus.Entry
}

type Negotiator struct {
	codec    core.DAI
	platform core.DAI
	port     core.Port
	clk      AsyncClock
	shared   *core.Shared
	pins     []PinCtrl
	mclk1Hz  uint32
	voiceFmt core.Format
	log      *logrus.Entry

	mu    sync.Mutex
	links [core.NumLinks]core.LinkState
}

func New(cfg Config) *Negotiator {
	log := cfg.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	n := &Negotiator{
		codec:    cfg.Codec,
		platform: cfg.Platform,
		port:     cfg.Port,
		clk:      cfg.Clock,
		shared:   cfg.Shared,
		pins:     cfg.Pins,
		mclk1Hz:  cfg.MCLK1Hz,
		voiceFmt: DefaultVoiceFormat,
		log:      log.WithField("component", "negotiator"),
	}
	if cfg.VoiceFormat != nil {
		n.voiceFmt = *cfg.VoiceFormat
	}
	for i := range n.links {
		n.links[i].ID = core.LinkID(i)
		n.links[i].Supported = true
	}
	return n
}

// Fixed formats.
var (
	PrimaryFormat      = core.Format{Mode: core.FmtI2S, Inversion: core.NormalBCLKNormalFrame, Role: core.RoleSlave}
	AuxFormat          = core.Format{Mode: core.FmtI2S, Inversion: core.NormalBCLKNormalFrame, Role: core.RoleMaster}
	DefaultVoiceFormat = core.Format{Mode: core.FmtDSPA, Inversion: core.NormalBCLKNormalFrame, Role: core.RoleSlave}
)

// Format words: the low nibble is the interface mode minus one (0 I2S,
// 2 left justified, 3 DSP-A, 4 DSP-B) and bit 4 selects TDM.
const (
	fmtWordMode = 0x0F
	fmtWordTDM  = 0x10
)

// VoiceTDM is the slot layout applied when a format word selects TDM.
var VoiceTDM = core.TDM{TxMask: 0x07, RxMask: 0x07, Slots: 4, SlotBits: 16}

// DecodeFormat converts a configured format word into a slave format with
// normal clock polarity.
func DecodeFormat(word uint32) (core.Format, error) {
	f := core.Format{Inversion: core.NormalBCLKNormalFrame, Role: core.RoleSlave}
	switch word & fmtWordMode {
	case 0:
		f.Mode = core.FmtI2S
	case 2:
		f.Mode = core.FmtLeftJ
	case 3:
		f.Mode = core.FmtDSPA
	case 4:
		f.Mode = core.FmtDSPB
	default:
		return f, errcode.New(errcode.InvalidParams, "format", "unsupported interface mode")
	}
	if word&^(fmtWordMode|fmtWordTDM) != 0 {
		return f, errcode.New(errcode.InvalidParams, "format", "unknown format bits")
	}
	if word&fmtWordTDM != 0 {
		f.TDM = VoiceTDM
	}
	return f, nil
}

// VoiceFormat applies aif2mode (0 remote master, 1 local master) to base.
func VoiceFormat(aifMode uint8, base core.Format) core.Format {
	f := base
	f.Role = core.RoleSlave
	if aifMode == 1 {
		f.Role = core.RoleMaster
	}
	return f
}

// VoiceBitClock maps the voice sample rate to its bit clock. Unsupported
// rates fall back to the 8 kHz mapping and report ok=false.
func VoiceBitClock(rateHz uint32) (bclk uint32, ok bool) {
	switch rateHz {
	case 8000:
		return 256_000, true
	case 16000:
		return 512_000, true
	default:
		return 256_000, false
	}
}

// HWParams negotiates one link. Hardware errors are surfaced to the caller.
func (n *Negotiator) HWParams(ctx context.Context, link core.LinkID, p core.Params) error {
	if link >= core.NumLinks {
		return errcode.New(errcode.InvalidParams, "hw_params", "unknown link")
	}
	var (
		f         core.Format
		bclk      uint32
		supported = true
	)
	switch link {
	case core.LinkPrimary:
		f = PrimaryFormat
		bclk = frameBits(p) * p.RateHz
		if err := n.setFormat(ctx, n.codec, link, f); err != nil {
			return err
		}
		if err := n.setFormat(ctx, n.platform, link, f); err != nil {
			return err
		}

	case core.LinkVoice:
		aif := n.shared.View().VoiceAIF
		f = VoiceFormat(aif, n.voiceFmt)
		bclk, supported = VoiceBitClock(p.RateHz)
		if !supported {
			n.log.WithField("rate", p.RateHz).Warn("unsupported voice rate; using 8 kHz bit clock")
		}
		if err := n.setFormat(ctx, n.codec, link, f); err != nil {
			return err
		}
		// Slave: async PLL follows the link's own bit clock. Master: it is
		// locked to the primary reference and the codec drives BCLK.
		ref, in := core.RefVoiceBCLK, bclk
		if f.Role == core.RoleMaster {
			ref, in = core.RefMCLK1, n.mclk1Hz
		}
		if err := n.clk.RetargetAsync(ctx, ref, in); err != nil {
			return err
		}
		if f.Role == core.RoleMaster {
			if err := n.setBitClock(ctx, n.codec, link, bclk); err != nil {
				return err
			}
		}

	case core.LinkAux:
		f = AuxFormat
		bclk = frameBits(p) * p.RateHz
		if err := n.setFormat(ctx, n.codec, link, f); err != nil {
			return err
		}
		if err := n.setBitClock(ctx, n.codec, link, bclk); err != nil {
			return err
		}
	}

	n.mu.Lock()
	st := &n.links[link]
	st.Format = f
	st.RateHz = p.RateHz
	st.BitClock = bclk
	st.Supported = supported
	n.mu.Unlock()

	n.log.WithFields(logrus.Fields{"link": link, "rate": p.RateHz, "bclk": bclk, "role": f.Role}).Debug("link negotiated")
	return nil
}

// frameBits is channels*word bits, defaulting to a 2x32 frame.
func frameBits(p core.Params) uint32 {
	ch, wb := uint32(p.Channels), uint32(p.WordBits)
	if ch == 0 {
		ch = 2
	}
	if wb == 0 {
		wb = 32
	}
	return ch * wb
}

func (n *Negotiator) setFormat(ctx context.Context, d core.DAI, link core.LinkID, f core.Format) error {
	if d == nil {
		return nil
	}
	if err := d.SetFormat(ctx, link, f); err != nil {
		return errcode.Wrap(errcode.HardwareFailed, "set_fmt "+link.String(), err)
	}
	return nil
}

func (n *Negotiator) setBitClock(ctx context.Context, d core.DAI, link core.LinkID, hz uint32) error {
	if d == nil {
		return nil
	}
	if err := d.SetBitClock(ctx, link, hz); err != nil {
		return errcode.Wrap(errcode.HardwareFailed, "set_bclk "+link.String(), err)
	}
	return nil
}

// Start marks a stream running. Primary playback is refused while the voice
// link streams; both use the same output path.
func (n *Negotiator) Start(link core.LinkID, dir core.Direction) error {
	if link >= core.NumLinks || dir > core.Capture {
		return errcode.New(errcode.InvalidParams, "start", "unknown link or direction")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if link == core.LinkPrimary && dir == core.Playback && n.links[core.LinkVoice].Streaming() {
		return errcode.New(errcode.Busy, "start", "voice link already active")
	}
	n.links[link].Active[dir] = true
	return nil
}

func (n *Negotiator) Stop(link core.LinkID, dir core.Direction) {
	if link >= core.NumLinks || dir > core.Capture {
		return
	}
	n.mu.Lock()
	n.links[link].Active[dir] = false
	n.mu.Unlock()
}

// AnyActive reports whether any link has a running stream.
func (n *Negotiator) AnyActive() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, l := range n.links {
		if l.Streaming() {
			return true
		}
	}
	return false
}

// State returns a snapshot of one link.
func (n *Negotiator) State(link core.LinkID) core.LinkState {
	n.mu.Lock()
	defer n.mu.Unlock()
	if link >= core.NumLinks {
		return core.LinkState{ID: link}
	}
	return n.links[link]
}

// ForceSlave clears the master bits on every link's clock pins so idle links
// do not drive their lines. All pins are attempted; the first error is returned.
func (n *Negotiator) ForceSlave(ctx context.Context) error {
	var first error
	for _, pc := range n.pins {
		if err := n.port.Write(pc.BCLKReg, pc.BCLKMask, 0); err != nil && first == nil {
			first = err
		}
		if err := n.port.Write(pc.LRCLKReg, pc.LRCLKMask, 0); err != nil && first == nil {
			first = err
		}
		n.mu.Lock()
		if pc.Link < core.NumLinks {
			n.links[pc.Link].Format.Role = core.RoleSlave
		}
		n.mu.Unlock()
	}
	if first != nil {
		return errcode.Wrap(errcode.HardwareFailed, "force_slave", first)
	}
	return nil
}
