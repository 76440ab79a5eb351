package controls

import (
	"context"
	"strconv"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"

	"audiocodec-go/errcode"
	"audiocodec-go/services/audio/internal/core"
	"audiocodec-go/services/audio/internal/events"
	"audiocodec-go/types"
	"audiocodec-go/x/mathx"
	"audiocodec-go/x/timex"
)

// ---- link_role ----

// The voice link role takes effect at the next hw-params negotiation.
func (s *Surface) getLinkRole(context.Context) (any, error) {
	aif := s.cfg.Shared.View().VoiceAIF
	role := core.RoleSlave
	if aif == 1 {
		role = core.RoleMaster
	}
	return types.LinkRoleValue{Role: role.String(), Mode: aif}, nil
}

func (s *Surface) setLinkRole(ctx context.Context, payload any) (any, error) {
	p, err := decode[types.LinkRoleSet](LinkRole, payload)
	if err != nil {
		return nil, err
	}
	var aif uint8
	switch p.Role {
	case core.RoleSlave.String():
		aif = 0
	case core.RoleMaster.String():
		aif = 1
	default:
		return nil, errcode.New(errcode.InvalidParams, LinkRole, "role "+p.Role)
	}
	s.cfg.Shared.Update(func(st *core.State) { st.VoiceAIF = aif })
	s.log.WithField("role", p.Role).Info("voice link role set")
	return s.getLinkRole(ctx)
}

// ---- output_gain ----

func (s *Surface) setOutputGain(_ context.Context, payload any) (any, error) {
	p, err := decode[types.GainSet](OutputGain, payload)
	if err != nil {
		return nil, err
	}
	g := s.cfg.Gain
	if p.Raw < 0 || p.Raw > g.Max {
		return nil, errcode.New(errcode.InvalidParams, OutputGain, "raw volume out of range")
	}
	var regs []uint16
	switch p.Channel {
	case "left":
		regs = []uint16{g.Left}
	case "right":
		regs = []uint16{g.Right}
	case "", "both":
		regs = []uint16{g.Left, g.Right}
	default:
		return nil, errcode.New(errcode.InvalidParams, OutputGain, "channel "+p.Channel)
	}

	// The cached step persists until the next impedance measurement.
	step := s.cfg.Shared.View().GainStep
	val := mathx.Clamp(p.Raw+step, 0, g.Max)
	code := val
	if g.Invert {
		code = g.Max - val
	}
	for _, r := range regs {
		if err := s.cfg.Port.Write(r, g.Mask|g.Update, uint16(code)&g.Mask|g.Update); err != nil {
			return nil, errcode.Wrap(errcode.HardwareFailed, OutputGain, err)
		}
	}
	s.log.WithFields(logrus.Fields{"raw": p.Raw, "step": step, "written": val}).Info("output gain set")
	return types.GainValue{Written: val, Step: step}, nil
}

// ---- voice_control_mode ----

func (s *Surface) getVoiceMode(context.Context) (any, error) {
	v := s.cfg.Shared.View().Voice
	return types.VoiceModeValue{Mode: v.Mode.String(), Key: v.KeyFor(v.Mode)}, nil
}

func (s *Surface) setVoiceMode(ctx context.Context, payload any) (any, error) {
	p, err := decode[types.VoiceModeSet](VoiceControlMode, payload)
	if err != nil {
		return nil, err
	}
	var m core.VoiceMode
	switch p.Mode {
	case core.VoiceNormal.String():
		m = core.VoiceNormal
	case core.VoiceLPSD.String():
		m = core.VoiceLPSD
	default:
		return nil, errcode.New(errcode.InvalidParams, VoiceControlMode, "mode "+p.Mode)
	}
	s.cfg.Shared.Update(func(st *core.State) { st.Voice.Mode = m })
	return s.getVoiceMode(ctx)
}

// ---- voice_delivery ----

func (s *Surface) getDelivery(context.Context) (any, error) {
	return types.DeliveryValue{Mode: s.cfg.Shared.View().Voice.Delivery.String()}, nil
}

func (s *Surface) setDelivery(ctx context.Context, payload any) (any, error) {
	p, err := decode[types.DeliverySet](VoiceDelivery, payload)
	if err != nil {
		return nil, err
	}
	var d core.Delivery
	switch p.Mode {
	case core.DeliverySeamless.String():
		d = core.DeliverySeamless
	case core.DeliveryNonSeamless.String():
		d = core.DeliveryNonSeamless
	default:
		return nil, errcode.New(errcode.InvalidParams, VoiceDelivery, "mode "+p.Mode)
	}
	s.cfg.Shared.Update(func(st *core.State) { st.Voice.Delivery = d })
	return s.getDelivery(ctx)
}

// ---- voice_tracking ----

func (s *Surface) getTracking(context.Context) (any, error) {
	t := s.cfg.Track
	dir, err := s.cfg.Port.Read(t.Direction)
	if err != nil {
		return nil, errcode.Wrap(errcode.HardwareFailed, VoiceTracking, err)
	}
	energy, err := s.cfg.Port.Read(t.Energy)
	if err != nil {
		return nil, errcode.Wrap(errcode.HardwareFailed, VoiceTracking, err)
	}
	if t.Invert {
		dir, energy = t.Max-dir, t.Max-energy
	}
	return types.VoiceTrackingValue{
		Packed:    uint32(dir)<<16 | uint32(energy),
		Direction: dir,
		Energy:    energy,
	}, nil
}

// Accepted and ignored.
func (s *Surface) setTracking(context.Context, any) (any, error) {
	s.log.Debug("voice tracking set ignored")
	return types.OKReply{OK: true}, nil
}

// ---- voice_trigger_offset ----

func (s *Surface) getOffset(context.Context) (any, error) {
	off := s.cfg.Shared.View().Voice.Offset
	return types.OffsetValue{Offset: off, Encoded: events.EncodeTriggerOffset(off)}, nil
}

func (s *Surface) setOffset(_ context.Context, payload any) (any, error) {
	p, err := decode[types.OffsetSet](VoiceTriggerOffset, payload)
	if err != nil {
		return nil, err
	}
	enc, err := events.WriteTriggerOffset(s.cfg.Port, s.cfg.Offset, p.Offset)
	if err != nil {
		return nil, errcode.Wrap(errcode.HardwareFailed, VoiceTriggerOffset, err)
	}
	s.cfg.Shared.Update(func(st *core.State) { st.Voice.Offset = p.Offset })
	s.log.WithFields(logrus.Fields{"offset": p.Offset, "encoded": enc}).Info("voice trigger offset set")
	return types.OffsetValue{Offset: p.Offset, Encoded: enc}, nil
}

// ---- keyword_type ----

func (s *Surface) getKeyword(context.Context) (any, error) {
	id := s.cfg.Shared.View().KeywordType
	return types.KeywordValue{ID: id, Hex: strconv.FormatUint(uint64(id), 16)}, nil
}

// Overwritten by the next normal-mode trigger.
func (s *Surface) setKeyword(ctx context.Context, payload any) (any, error) {
	p, err := decode[types.KeywordSet](KeywordType, payload)
	if err != nil {
		return nil, err
	}
	s.cfg.Shared.Update(func(st *core.State) { st.KeywordType = p.ID })
	s.log.WithField("keyword", p.ID).Info("keyword type set")
	return s.getKeyword(ctx)
}

// ---- mic_bias ----

func (s *Surface) getMic(context.Context) (any, error) {
	st := s.cfg.Shared.View()
	return types.MicValue{
		Presence: st.Mic().String(),
		Main:     st.MainMicForced,
		Sub:      st.SubMicForced,
		Ear:      st.EarMic,
	}, nil
}

// The main pin's forced state doubles as the low-power listening signal
// read at suspend.
func (s *Surface) setMicBias(ctx context.Context, payload any) (any, error) {
	p, err := decode[types.MicBiasSet](MicBias, payload)
	if err != nil {
		return nil, err
	}
	if p.Pin != "main" && p.Pin != "sub" {
		return nil, errcode.New(errcode.InvalidParams, MicBias, "pin "+p.Pin)
	}
	pin, ok := s.cfg.BiasPins[p.Pin]
	if !ok || pin == nil {
		return nil, errcode.New(errcode.Unsupported, MicBias, "no "+p.Pin+" bias pin")
	}
	if err := pin.Out(gpio.Level(p.On)); err != nil {
		return nil, errcode.Wrap(errcode.HardwareFailed, MicBias, err)
	}
	s.cfg.Shared.Update(func(st *core.State) {
		if p.Pin == "main" {
			st.MainMicForced = p.On
		} else {
			st.SubMicForced = p.On
		}
	})
	return s.getMic(ctx)
}

// ---- hp_impedance / power_state ----

func (s *Surface) getImpedance(context.Context) (any, error) {
	st := s.cfg.Shared.View()
	return types.ImpedanceValue{Ohms: st.ImpedanceOhm, Step: st.GainStep}, nil
}

func (s *Surface) getPower(context.Context) (any, error) {
	var ps core.PowerState
	if s.cfg.Power != nil {
		ps = s.cfg.Power.State()
	} else {
		ps = s.cfg.Shared.View().Power
	}
	return PowerValue(ps), nil
}

// PowerValue renders a power state for the bus.
func PowerValue(ps core.PowerState) types.PowerValue {
	return types.PowerValue{
		Bias:        ps.Bias.String(),
		Clock:       ps.Clock.String(),
		SyncRateHz:  ps.SyncRateHz,
		AsyncRateHz: ps.AsyncRateHz,
		TSms:        timex.NowMs(),
	}
}

// ---- amp_dump ----

// A capture is taken only while the amplifier reports a log available.
func (s *Surface) getAmpDump(context.Context) (any, error) {
	a := s.cfg.Amp
	status, err := s.readPair(a.Status)
	if err != nil {
		return nil, errcode.Wrap(errcode.HardwareFailed, AmpDump, err)
	}
	flag, err := s.cfg.Port.Read(a.LogFlag)
	if err != nil {
		return nil, errcode.Wrap(errcode.HardwareFailed, AmpDump, err)
	}
	out := types.AmpDump{Status: status, Available: flag&0x3 != 0}
	if !out.Available {
		return out, nil
	}
	for _, r := range a.Ranges {
		sec := make([]uint32, r.Count)
		for i := range sec {
			if sec[i], err = s.readPair(r.Start + uint16(i*2)); err != nil {
				return nil, errcode.Wrap(errcode.HardwareFailed, AmpDump, err)
			}
		}
		out.Sections = append(out.Sections, sec)
	}
	s.log.WithField("sections", len(out.Sections)).Info("amplifier log captured")
	return out, nil
}

func (s *Surface) readPair(reg uint16) (uint32, error) {
	hi, err := s.cfg.Port.Read(reg)
	if err != nil {
		return 0, err
	}
	lo, err := s.cfg.Port.Read(reg + 1)
	if err != nil {
		return 0, err
	}
	return uint32(hi)<<16 | uint32(lo), nil
}
