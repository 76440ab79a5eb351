package clock

import (
	"context"

	"github.com/sirupsen/logrus"

	"audiocodec-go/services/audio/internal/core"
)

// Suspend applies the retention policy. Failures are logged and absorbed;
// a system suspend never fails because of the audio clock.
//
//	no stream, ear mic  -> stop fully
//	no stream, main mic -> retarget PLL to MCLK2
//	otherwise           -> unchanged
func (m *Machine) Suspend(ctx context.Context) {
	active := m.links != nil && m.links.AnyActive()
	if !active && m.links != nil {
		if err := m.links.ForceSlave(ctx); err != nil {
			m.log.WithError(err).Warn("forcing link pins to slave failed")
		}
	}

	m.switchMu.Lock()
	defer m.switchMu.Unlock()

	m.held = holdNone
	if active {
		return
	}
	st := m.shared.View()
	log := m.log.WithFields(logrus.Fields{"mic": st.Mic(), "clock": st.Power.Clock})

	switch st.Mic() {
	case core.MicEar:
		if st.Power.Clock == core.ClockStopped {
			return
		}
		m.prior = st.Power
		if err := m.stopAll(ctx, st.Power.Clock); err != nil {
			log.WithError(err).Warn("suspend stop incomplete")
		}
		m.commit(func(p *core.PowerState) { *p = core.PowerState{} })
		m.held = holdStopped
		log.Info("clock stopped for suspend")

	case core.MicMain:
		if st.Power.Clock != core.ClockPrimary {
			return
		}
		if err := m.retarget(ctx, core.ClockPrimary, core.ClockSecondary); err != nil {
			log.WithError(err).Warn("retarget to secondary failed; staying on primary")
			return
		}
		m.held = holdRetargeted
		log.Info("clock retargeted to secondary for suspend")
	}
}

// Resume undoes whatever Suspend did.
func (m *Machine) Resume(ctx context.Context) {
	m.switchMu.Lock()
	defer m.switchMu.Unlock()

	h := m.held
	m.held = holdNone

	switch h {
	case holdStopped:
		if m.observed == core.BiasOff {
			// Stream closed while suspended; nothing to restore.
			return
		}
		if err := m.startOn(ctx, m.prior.Clock); err != nil {
			m.log.WithError(err).Warn("resume restart failed; clock left stopped")
			// Let the next bias request retry from Off.
			m.observed = core.BiasOff
			return
		}
		restored := m.prior
		restored.Bias = m.observed
		restored.AsyncRateHz = 0
		if m.async.ref != core.RefNone {
			if err := m.port.SetPLL(core.PLLAsync, m.async.ref, m.async.inHz, m.async.outHz); err != nil {
				m.log.WithError(err).Warn("async pll not restored")
			} else if err := m.port.SetClockSource(core.DomainAsyncClk, core.RefPLLAsync, m.async.outHz); err != nil {
				m.log.WithError(err).Warn("asyncclk not restored")
			} else {
				restored.AsyncRateHz = m.async.outHz
			}
		}
		m.commit(func(p *core.PowerState) { *p = restored })
		m.log.WithField("clock", restored.Clock).Info("clock restarted on resume")

	case holdRetargeted:
		if m.State().Clock != core.ClockSecondary {
			return
		}
		if err := m.retarget(ctx, core.ClockSecondary, core.ClockPrimary); err != nil {
			m.log.WithError(err).Warn("retarget to primary failed; staying on secondary")
			return
		}
		m.log.Info("clock retargeted to primary on resume")
	}
}
