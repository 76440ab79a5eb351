// Package events turns codec interrupt callbacks into shared-state updates
// and voice-trigger notifications.
package events

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"audiocodec-go/services/audio/internal/core"
	"audiocodec-go/services/audio/internal/notify"
	"audiocodec-go/services/audio/internal/wake"
)

// Registers read on a voice-trigger match. Scores are 32-bit values held in
// a register pair, high word first.
type Registers struct {
	MatchScore uint16
	FinalScore uint16
	NoiseFloor uint16
	KeywordID  uint16
}

const keywordPrefix = "VOICE_WAKEUP_WORD_ID="

type Config struct {
	Port      core.Port
	Shared    *core.Shared
	Wake      *wake.Guarantee
	Notifiers map[core.Delivery]notify.Notifier
	Regs      Registers
	QueueLen  int
	Log       *logrus.Entry
}

// Pipeline is safe to call from interrupt-like contexts: callbacks never
// block on anything but the card lock.
type Pipeline struct {
	port      core.Port
	shared    *core.Shared
	wake      *wake.Guarantee
	notifiers map[core.Delivery]notify.Notifier
	regs      Registers
	log       *logrus.Entry

	// Written by callbacks; MUST NOT block them.
	trigQ   chan struct{}
	stopped chan struct{}

	drops     atomic.Uint32
	delivered atomic.Uint32
}

func New(cfg Config) *Pipeline {
	q := cfg.QueueLen
	if q <= 0 {
		q = 4
	}
	log := cfg.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Pipeline{
		port:      cfg.Port,
		shared:    cfg.Shared,
		wake:      cfg.Wake,
		notifiers: cfg.Notifiers,
		regs:      cfg.Regs,
		log:       log.WithField("component", "events"),
		trigQ:     make(chan struct{}, q),
		stopped:   make(chan struct{}),
	}
}

// Start runs the deferred-work goroutine until ctx ends.
func (p *Pipeline) Start(ctx context.Context) {
	go func() {
		defer close(p.stopped)
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.trigQ:
				p.deliver(ctx)
			}
		}
	}()
}

// Done is closed once the worker has exited.
func (p *Pipeline) Done() <-chan struct{} { return p.stopped }

// OnImpedance stores the gain step for a measured headphone load. The step
// is picked up by the next output gain write.
func (p *Pipeline) OnImpedance(ohms uint32) {
	p.shared.Update(func(st *core.State) {
		st.ImpedanceOhm = ohms
		st.GainStep = 0
		if st.Gains != nil {
			st.GainStep = st.Gains.Lookup(ohms)
		}
	})
}

// OnMicPresence records whether the ear (headset) mic is present.
func (p *Pipeline) OnMicPresence(present bool) {
	p.shared.Update(func(st *core.State) { st.EarMic = present })
}

// OnVoiceTrigger arms the wake guarantee and queues delivery.
func (p *Pipeline) OnVoiceTrigger() {
	if p.wake != nil {
		p.wake.Hold(p.shared.View().Voice.Window)
	}
	select {
	case p.trigQ <- struct{}{}:
	default:
		p.drops.Add(1)
	}
}

func (p *Pipeline) Drops() uint32     { return p.drops.Load() }
func (p *Pipeline) Delivered() uint32 { return p.delivered.Load() }

func (p *Pipeline) deliver(ctx context.Context) {
	p.logScores()

	// Mode and delivery are read per event so changes apply to the next trigger.
	cfg := p.shared.View().Voice
	payload := cfg.Sentinel
	if cfg.Mode != core.VoiceLPSD {
		id, err := p.port.Read(p.regs.KeywordID)
		if err != nil {
			p.log.WithError(err).Warn("keyword id unreadable")
			payload = keywordPrefix + "unknown"
		} else {
			payload = keywordPrefix + strconv.FormatUint(uint64(id), 16)
			p.shared.Update(func(st *core.State) { st.KeywordType = uint32(id) })
		}
	}

	n := p.notifiers[cfg.Delivery]
	if n == nil {
		p.log.WithField("delivery", cfg.Delivery).Warn("no notifier for delivery mode")
		return
	}
	ev := notify.Event{Payload: payload, Mode: cfg.Mode, Key: cfg.KeyFor(cfg.Mode)}
	if err := n.Notify(ctx, ev); err != nil {
		p.log.WithError(err).WithField("delivery", cfg.Delivery).Warn("voice trigger delivery failed")
		return
	}
	p.delivered.Add(1)
}

// logScores reads diagnostic scores; failures never block delivery.
func (p *Pipeline) logScores() {
	f := logrus.Fields{}
	for _, sc := range []struct {
		name string
		reg  uint16
	}{
		{"match", p.regs.MatchScore},
		{"final", p.regs.FinalScore},
		{"noise_floor", p.regs.NoiseFloor},
	} {
		v, err := p.readPair(sc.reg)
		if err != nil {
			f[sc.name] = "unreadable"
			continue
		}
		f[sc.name] = fmt.Sprintf("%#x", v)
	}
	p.log.WithFields(f).Info("voice trigger")
}

func (p *Pipeline) readPair(reg uint16) (uint32, error) {
	hi, err := p.port.Read(reg)
	if err != nil {
		return 0, err
	}
	lo, err := p.port.Read(reg + 1)
	if err != nil {
		return 0, err
	}
	return uint32(hi)<<16 | uint32(lo), nil
}
