// Package audio assembles one codec card from its collaborators and exposes
// it over the bus.
package audio

import (
	"context"
	"reflect"

	"github.com/sirupsen/logrus"

	"audiocodec-go/bus"
	"audiocodec-go/errcode"
	"audiocodec-go/services/audio/config"
	"audiocodec-go/services/audio/internal/clock"
	"audiocodec-go/services/audio/internal/controls"
	"audiocodec-go/services/audio/internal/core"
	"audiocodec-go/services/audio/internal/events"
	"audiocodec-go/services/audio/internal/negotiator"
	"audiocodec-go/services/audio/internal/notify"
	"audiocodec-go/services/audio/internal/wake"
	"audiocodec-go/types"
	"audiocodec-go/x/timex"
)

// Deps are the hardware and platform hooks a card is built over. Platform
// may be nil when the host side of the links needs no programming.
type Deps struct {
	Port     Port
	Codec    DAI
	Platform DAI
	BiasPins map[string]BiasPin

	// Seamless deliveries are broadcast on Events, non-seamless ones press
	// a key on Keys. Either may be nil.
	Events *bus.Connection
	Keys   InputDevice

	Locker WakeLocker
	Log    *logrus.Entry
}

// Card is one configured codec instance.
type Card struct {
	cfg     config.Card
	variant config.Variant
	log     *logrus.Entry

	shared   *core.Shared
	clock    *clock.Machine
	links    *negotiator.Negotiator
	wake     *wake.Guarantee
	events   *events.Pipeline
	controls *controls.Surface

	cancel context.CancelFunc
}

// NewCard validates cfg and wires a card. No hardware is touched until Start.
func NewCard(cfg config.Card, d Deps) (*Card, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if d.Port == nil {
		return nil, errcode.New(errcode.InvalidParams, "card", "no register port")
	}
	variant, _ := config.LookupVariant(cfg.Variant)
	gains, err := cfg.GainTable()
	if err != nil {
		return nil, err
	}
	voice, err := cfg.VoiceDefaults()
	if err != nil {
		return nil, err
	}
	log := d.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("variant", variant.Name)

	c := &Card{cfg: cfg, variant: variant, log: log}
	c.shared = core.NewShared(core.State{Gains: gains, Voice: voice, VoiceAIF: cfg.AIFMode})

	voiceFmt, err := cfg.VoiceFormat()
	if err != nil {
		return nil, err
	}
	plan := cfg.ClockPlan()
	c.clock = clock.New(d.Port, c.shared, plan, log)
	c.links = negotiator.New(negotiator.Config{
		Codec:       d.Codec,
		Platform:    d.Platform,
		Port:        d.Port,
		Clock:       c.clock,
		Shared:      c.shared,
		Pins:        variant.Pins,
		MCLK1Hz:     plan.MCLK1Hz,
		VoiceFormat: &voiceFmt,
		Log:         log,
	})
	c.clock.SetLinks(c.links)

	if d.Locker != nil {
		c.wake = wake.New(d.Locker, log)
	}
	notifiers := map[core.Delivery]notify.Notifier{}
	if d.Events != nil {
		notifiers[core.DeliverySeamless] = notify.NewBroadcaster(d.Events)
	}
	if d.Keys != nil {
		notifiers[core.DeliveryNonSeamless] = notify.NewKeyInjector(d.Keys, notify.DefaultKeyHold)
	}
	c.events = events.New(events.Config{
		Port:      d.Port,
		Shared:    c.shared,
		Wake:      c.wake,
		Notifiers: notifiers,
		Regs:      variant.VoiceRegs,
		Log:       log,
	})

	pins := map[string]controls.BiasPin{}
	for _, name := range variant.BiasPins {
		if p, ok := d.BiasPins[name]; ok && p != nil {
			pins[name] = p
		}
	}
	c.controls = controls.New(controls.Config{
		Port:     d.Port,
		Shared:   c.shared,
		Power:    c.clock,
		Gain:     variant.Gain,
		Track:    variant.Track,
		Offset:   variant.Offset,
		BiasPins: pins,
		Amp:      variant.Amp,
		Log:      log,
	})
	return c, nil
}

// Start runs the event worker and programs the configured trigger offset.
func (c *Card) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.events.Start(ctx)
	if off := c.cfg.Voice.Offset; off != 0 {
		if _, err := c.controls.Set(ctx, controls.VoiceTriggerOffset, types.OffsetSet{Offset: off}); err != nil {
			c.log.WithError(err).Warn("initial trigger offset not programmed")
		}
	}
	c.log.Info("card started")
}

// Close stops the event worker and drops any wake hold.
func (c *Card) Close() {
	if c.cancel != nil {
		c.cancel()
		<-c.events.Done()
	}
	if c.wake != nil {
		c.wake.Close()
	}
}

func (c *Card) hasLink(link LinkID) bool {
	for _, l := range c.variant.Links {
		if l == link {
			return true
		}
	}
	return false
}

// OnLinkParamsFixed negotiates format and clocks once stream params are known.
func (c *Card) OnLinkParamsFixed(ctx context.Context, link LinkID, p Params) error {
	if !c.hasLink(link) {
		return errcode.New(errcode.Unsupported, "hw_params", link.String())
	}
	return c.links.HWParams(ctx, link, p)
}

func (c *Card) OnStreamStart(link LinkID, dir Direction) error {
	if !c.hasLink(link) {
		return errcode.New(errcode.Unsupported, "start", link.String())
	}
	return c.links.Start(link, dir)
}

func (c *Card) OnStreamStop(link LinkID, dir Direction) { c.links.Stop(link, dir) }

// OnBiasLevelRequest walks the power lattice. On failure the level is
// unchanged and the caller may retry.
func (c *Card) OnBiasLevelRequest(ctx context.Context, level BiasLevel) error {
	if err := c.clock.SetBiasLevel(ctx, level); err != nil {
		c.log.WithError(err).WithField("level", level).Error("bias level change failed")
		return err
	}
	return nil
}

func (c *Card) OnSuspend(ctx context.Context) { c.clock.Suspend(ctx) }
func (c *Card) OnResume(ctx context.Context)  { c.clock.Resume(ctx) }

// Interrupt callbacks; none of these block on hardware.
func (c *Card) OnImpedance(ohms uint32)    { c.events.OnImpedance(ohms) }
func (c *Card) OnMicPresence(present bool) { c.events.OnMicPresence(present) }
func (c *Card) OnVoiceTrigger()            { c.events.OnVoiceTrigger() }

func (c *Card) Power() PowerState { return c.clock.State() }

// ControlNames lists the controls this variant exposes.
func (c *Card) ControlNames() []string { return c.controls.Names() }

func (c *Card) GetControl(ctx context.Context, name string) (any, error) {
	return c.controls.Get(ctx, name)
}

func (c *Card) SetControl(ctx context.Context, name string, payload any) (any, error) {
	return c.controls.Set(ctx, name, payload)
}

// RebuildGains swaps the impedance table and refreshes the cached step for
// the last measured load. A rejected table leaves the old one in place.
func (c *Card) RebuildGains(entries []config.GainRange, shift uint32) error {
	if len(entries) == 0 {
		return errcode.New(errcode.InvalidParams, "gaintable", "empty table")
	}
	return c.setGains(config.GainConfig{Entries: entries, Shift: shift})
}

func (c *Card) setGains(gc config.GainConfig) error {
	g := c.cfg
	g.Gain = gc
	t, err := g.GainTable()
	if err != nil {
		return err
	}
	c.shared.Update(func(st *core.State) {
		st.Gains = t
		st.GainStep = t.Lookup(st.ImpedanceOhm)
	})
	c.cfg.Gain = gc
	return nil
}

// ApplyConfig takes a new configuration without rebuilding the card. Changes
// to the variant, clock plan, bus, pins or link formats need a new card and
// return Unsupported.
func (c *Card) ApplyConfig(ctx context.Context, cfg config.Card) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Variant != c.cfg.Variant || cfg.Clock != c.cfg.Clock || cfg.Bus != c.cfg.Bus ||
		cfg.Pins != c.cfg.Pins || cfg.AIFFormat != c.cfg.AIFFormat {
		return errcode.New(errcode.Unsupported, "apply_config", "restart required")
	}
	if !reflect.DeepEqual(cfg.Gain, c.cfg.Gain) {
		if err := c.setGains(cfg.Gain); err != nil {
			return err
		}
	}
	voice, _ := cfg.VoiceDefaults()
	if cfg.Voice.Offset != c.shared.View().Voice.Offset {
		if _, err := c.controls.Set(ctx, controls.VoiceTriggerOffset, types.OffsetSet{Offset: cfg.Voice.Offset}); err != nil {
			return err
		}
	}
	c.shared.Update(func(st *core.State) {
		st.Voice = voice
		st.VoiceAIF = cfg.AIFMode
	})
	c.cfg = cfg
	c.log.Info("configuration applied")
	return nil
}

// Diagnostics snapshots the event and power counters.
func (c *Card) Diagnostics() types.AudioDiag {
	ps := c.clock.State()
	d := types.AudioDiag{
		Bias:         ps.Bias.String(),
		Clock:        ps.Clock.String(),
		TriggerDrops: c.events.Drops(),
		Delivered:    c.events.Delivered(),
		TSms:         timex.NowMs(),
	}
	if c.wake != nil {
		st := c.wake.Stats()
		d.WakeHeld, d.WakeAcquires, d.WakeRearms = st.Held, st.Acquires, st.Rearms
	}
	return d
}
