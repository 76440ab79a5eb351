// Package controls exposes the card's named get/set control points.
package controls

import (
	"context"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"

	"audiocodec-go/errcode"
	"audiocodec-go/services/audio/internal/core"
	"audiocodec-go/services/audio/internal/events"
)

// Control names.
const (
	LinkRole           = "link_role"
	OutputGain         = "output_gain"
	VoiceControlMode   = "voice_control_mode"
	VoiceDelivery      = "voice_delivery"
	VoiceTracking      = "voice_tracking"
	VoiceTriggerOffset = "voice_trigger_offset"
	KeywordType        = "keyword_type"
	MicBias            = "mic_bias"
	HPImpedance        = "hp_impedance"
	PowerState         = "power_state"
	AmpDump            = "amp_dump"
)

// BiasPin drives one microphone bias enable line.
type BiasPin interface {
	Out(l gpio.Level) error
}

// PowerView reads the power state machine.
type PowerView interface {
	State() core.PowerState
}

// GainRegs describes the headphone output gain pair.
type GainRegs struct {
	Left   uint16
	Right  uint16
	Mask   uint16 // value field
	Update uint16 // update bit written with every value
	Max    int
	Invert bool // register holds Max - value
}

// TrackRegs describes the voice tracking readout.
type TrackRegs struct {
	Direction uint16
	Energy    uint16
	Invert    bool // report Max - value
	Max       uint16
}

// AmpRange is Count register pairs starting at Start, stride two.
type AmpRange struct {
	Start uint16
	Count int
}

// AmpRegs describes the companion amplifier's log capture.
type AmpRegs struct {
	Status  uint16 // register pair
	LogFlag uint16
	Ranges  []AmpRange
}

type Config struct {
	Port     core.Port
	Shared   *core.Shared
	Power    PowerView
	Gain     GainRegs
	Track    *TrackRegs // nil: no tracking readout
	Offset   events.OffsetRegs
	BiasPins map[string]BiasPin // "main", "sub"
	Amp      *AmpRegs           // nil: no companion amplifier
	Log      *logrus.Entry
}

type control struct {
	get func(ctx context.Context) (any, error)
	set func(ctx context.Context, payload any) (any, error)
}

// Surface dispatches named controls. Sets are serialised against each other;
// the card lock is only taken around state updates.
type Surface struct {
	cfg      Config
	log      *logrus.Entry
	controls map[string]control

	setMu sync.Mutex
}

func New(cfg Config) *Surface {
	log := cfg.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &Surface{cfg: cfg, log: log.WithField("component", "controls")}
	s.controls = map[string]control{
		LinkRole:           {get: s.getLinkRole, set: s.setLinkRole},
		OutputGain:         {set: s.setOutputGain},
		VoiceControlMode:   {get: s.getVoiceMode, set: s.setVoiceMode},
		VoiceDelivery:      {get: s.getDelivery, set: s.setDelivery},
		VoiceTriggerOffset: {get: s.getOffset, set: s.setOffset},
		KeywordType:        {get: s.getKeyword, set: s.setKeyword},
		MicBias:            {get: s.getMic, set: s.setMicBias},
		HPImpedance:        {get: s.getImpedance},
		PowerState:         {get: s.getPower},
	}
	if cfg.Track != nil {
		s.controls[VoiceTracking] = control{get: s.getTracking, set: s.setTracking}
	}
	if cfg.Amp != nil {
		s.controls[AmpDump] = control{get: s.getAmpDump}
	}
	return s
}

// Names lists the available controls in sorted order.
func (s *Surface) Names() []string {
	out := make([]string, 0, len(s.controls))
	for n := range s.controls {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (s *Surface) Get(ctx context.Context, name string) (any, error) {
	c, ok := s.controls[name]
	if !ok {
		return nil, errcode.New(errcode.UnknownControl, "get", name)
	}
	if c.get == nil {
		return nil, errcode.New(errcode.Unsupported, "get", name+" is write-only")
	}
	return c.get(ctx)
}

func (s *Surface) Set(ctx context.Context, name string, payload any) (any, error) {
	c, ok := s.controls[name]
	if !ok {
		return nil, errcode.New(errcode.UnknownControl, "set", name)
	}
	if c.set == nil {
		return nil, errcode.New(errcode.Unsupported, "set", name+" is read-only")
	}
	s.setMu.Lock()
	defer s.setMu.Unlock()
	return c.set(ctx, payload)
}
