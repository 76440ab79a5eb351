// Package clock owns the reference/PLL lifecycle of a card: the bias-level
// lattice and the suspend/resume retention policy.
package clock

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"audiocodec-go/errcode"
	"audiocodec-go/services/audio/internal/core"
)

// Config carries the fixed clock plan of a card.
type Config struct {
	MCLK1Hz    uint32 // primary reference
	MCLK2Hz    uint32 // secondary low-power reference
	SysClkHz   uint32 // sync PLL output
	AsyncClkHz uint32 // async PLL output (voice link)
}

// DefaultConfig is the stock plan: 24 MHz primary, 32.768 kHz secondary,
// 49.152 MHz on both system clocks.
func DefaultConfig() Config {
	return Config{
		MCLK1Hz:    24_000_000,
		MCLK2Hz:    32_768,
		SysClkHz:   49_152_000,
		AsyncClkHz: 49_152_000,
	}
}

// Links is the slice of the negotiator the retention policy needs.
type Links interface {
	AnyActive() bool
	ForceSlave(ctx context.Context) error
}

type hold uint8

const (
	holdNone       hold = iota
	holdStopped         // suspend stopped the clock
	holdRetargeted      // suspend moved the PLL to MCLK2
)

type asyncPlan struct {
	ref   core.ClockRef
	inHz  uint32
	outHz uint32
}

// Machine is the power state machine. PowerState lives in core.Shared and is
// only written from here.
type Machine struct {
	port   core.Port
	shared *core.Shared
	cfg    Config
	log    *logrus.Entry

	links Links

	// switchMu serialises whole switch sequences, hardware included, so a
	// lock-new-then-release-old sequence never interleaves with another.
	switchMu sync.Mutex
	observed core.BiasLevel
	held     hold
	prior    core.PowerState
	async    asyncPlan
}

func New(port core.Port, shared *core.Shared, cfg Config, log *logrus.Entry) *Machine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Machine{
		port:   port,
		shared: shared,
		cfg:    cfg,
		log:    log.WithField("component", "power"),
	}
}

// SetLinks attaches the negotiator; must be called before Suspend.
func (m *Machine) SetLinks(l Links) { m.links = l }

// State returns a snapshot of the power state.
func (m *Machine) State() core.PowerState { return m.shared.View().Power }

// SetBiasLevel moves the lattice towards level one rung at a time. A failed
// reference lock leaves the level unchanged and is returned.
func (m *Machine) SetBiasLevel(ctx context.Context, level core.BiasLevel) error {
	if level > core.BiasOn {
		return errcode.New(errcode.InvalidParams, "bias", "unknown level")
	}
	m.switchMu.Lock()
	defer m.switchMu.Unlock()

	if level == m.observed {
		m.log.WithField("level", level).Debug("redundant bias notification")
		return nil
	}
	for m.observed != level {
		next := m.observed + 1
		if level < m.observed {
			next = m.observed - 1
		}
		if err := m.step(ctx, next); err != nil {
			return err
		}
	}
	return nil
}

// step moves one rung. Only Off <-> Standby touches the oscillators.
func (m *Machine) step(ctx context.Context, level core.BiasLevel) error {
	m.log.WithFields(logrus.Fields{"from": m.observed, "to": level}).Debug("bias rung")
	cur := m.State()
	switch {
	case cur.Bias == core.BiasOff && level > core.BiasOff:
		if m.observed != core.BiasOff {
			// Clock is held stopped by the retention policy; resume applies level.
			m.observed = level
			return nil
		}
		if err := m.startOn(ctx, core.ClockPrimary); err != nil {
			m.log.WithError(err).WithField("level", level).Warn("reference lock failed; level unchanged")
			return errcode.Wrap(errcode.HardwareFailed, "bias "+level.String(), err)
		}
		m.commit(func(p *core.PowerState) {
			p.Bias = level
			p.Clock = core.ClockPrimary
			p.SyncRateHz = m.cfg.SysClkHz
		})

	case level == core.BiasOff:
		err := m.stopAll(ctx, cur.Clock)
		m.commit(func(p *core.PowerState) { *p = core.PowerState{} })
		m.async = asyncPlan{}
		m.observed = level
		if err != nil {
			m.log.WithError(err).Warn("clock stop incomplete")
			return errcode.Wrap(errcode.HardwareFailed, "bias off", err)
		}
		return nil

	default:
		m.commit(func(p *core.PowerState) { p.Bias = level })
	}
	m.observed = level
	return nil
}

// RetargetAsync locks the async PLL to ref and then routes ASYNCCLK from it.
func (m *Machine) RetargetAsync(ctx context.Context, ref core.ClockRef, inHz uint32) error {
	m.switchMu.Lock()
	defer m.switchMu.Unlock()

	out := m.cfg.AsyncClkHz
	if err := m.port.SetPLL(core.PLLAsync, ref, inHz, out); err != nil {
		return errcode.Wrap(errcode.HardwareFailed, "async pll", err)
	}
	if err := m.port.SetClockSource(core.DomainAsyncClk, core.RefPLLAsync, out); err != nil {
		return errcode.Wrap(errcode.HardwareFailed, "asyncclk", err)
	}
	m.async = asyncPlan{ref: ref, inHz: inHz, outHz: out}
	m.commit(func(p *core.PowerState) { p.AsyncRateHz = out })
	return nil
}

func (m *Machine) commit(fn func(p *core.PowerState)) {
	m.shared.Update(func(st *core.State) { fn(&st.Power) })
}

// ---- hardware sequences (switchMu held) ----

func (m *Machine) refOf(src core.ClockSource) (core.ClockDomain, core.ClockRef, uint32) {
	if src == core.ClockSecondary {
		return core.DomainMCLK2, core.RefMCLK2, m.cfg.MCLK2Hz
	}
	return core.DomainMCLK1, core.RefMCLK1, m.cfg.MCLK1Hz
}

// startOn enables the reference, locks the sync PLL and routes SYSCLK.
// Partial progress is rolled back on failure.
func (m *Machine) startOn(ctx context.Context, src core.ClockSource) error {
	dom, ref, hz := m.refOf(src)
	if err := m.port.SetClockSource(dom, core.RefOsc, hz); err != nil {
		return err
	}
	if err := m.port.SetPLL(core.PLLSync, ref, hz, m.cfg.SysClkHz); err != nil {
		_ = m.port.SetClockSource(dom, core.RefNone, 0)
		return err
	}
	if err := m.port.SetClockSource(core.DomainSysClk, core.RefPLLSync, m.cfg.SysClkHz); err != nil {
		_ = m.port.SetPLL(core.PLLSync, core.RefNone, 0, 0)
		_ = m.port.SetClockSource(dom, core.RefNone, 0)
		return err
	}
	m.log.WithFields(logrus.Fields{"ref": ref, "rate": m.cfg.SysClkHz}).Debug("sync pll locked")
	return nil
}

// stopAll stops both PLLs and releases the reference. No-op when stopped.
func (m *Machine) stopAll(ctx context.Context, src core.ClockSource) error {
	if src == core.ClockStopped {
		return nil
	}
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	keep(m.port.SetPLL(core.PLLSync, core.RefNone, 0, 0))
	keep(m.port.SetPLL(core.PLLAsync, core.RefNone, 0, 0))
	dom, _, _ := m.refOf(src)
	keep(m.port.SetClockSource(dom, core.RefNone, 0))
	return first
}

// retarget locks the PLL on the new reference before releasing the old one,
// so SYSCLK never stops during the switch.
func (m *Machine) retarget(ctx context.Context, from, to core.ClockSource) error {
	newDom, newRef, newHz := m.refOf(to)
	oldDom, _, _ := m.refOf(from)

	if err := m.port.SetClockSource(newDom, core.RefOsc, newHz); err != nil {
		return err
	}
	if err := m.port.SetPLL(core.PLLSync, newRef, newHz, m.cfg.SysClkHz); err != nil {
		_ = m.port.SetClockSource(newDom, core.RefNone, 0)
		return err
	}
	m.commit(func(p *core.PowerState) { p.Clock = to })
	if err := m.port.SetClockSource(oldDom, core.RefNone, 0); err != nil {
		m.log.WithError(err).WithField("ref", oldDom).Warn("old reference not released")
	}
	return nil
}
