// Package wake holds the platform out of deep idle for a bounded window.
package wake

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Locker is the platform hook. Acquire may be called again while held to
// extend the window; Release ends the hold.
type Locker interface {
	Acquire(window time.Duration) error
	Release() error
}

// Guarantee is a re-armable, timeout-released hold. The timer is
// authoritative: nothing needs to release it explicitly.
type Guarantee struct {
	locker Locker
	log    *logrus.Entry

	mu       sync.Mutex
	timer    *time.Timer
	gen      uint64
	held     bool
	since    time.Time
	acquires uint64
	rearms   uint64
}

func New(locker Locker, log *logrus.Entry) *Guarantee {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Guarantee{locker: locker, log: log.WithField("component", "wake")}
}

// Hold acquires the guarantee for window, or re-arms it if already held.
// Non-blocking beyond the platform hook.
func (g *Guarantee) Hold(window time.Duration) {
	if window <= 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	g.gen++
	gen := g.gen
	if g.held {
		g.rearms++
	} else {
		g.held = true
		g.since = time.Now()
		g.acquires++
	}
	if g.locker != nil {
		if err := g.locker.Acquire(window); err != nil {
			g.log.WithError(err).Warn("platform wake lock not taken")
		}
	}
	if g.timer != nil {
		g.timer.Stop()
	}
	g.timer = time.AfterFunc(window, func() { g.expire(gen) })
}

func (g *Guarantee) expire(gen uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if gen != g.gen || !g.held {
		return // re-armed since
	}
	g.held = false
	g.timer = nil
	if g.locker != nil {
		if err := g.locker.Release(); err != nil {
			g.log.WithError(err).Warn("platform wake lock release failed")
		}
	}
}

// Held reports whether the guarantee is active.
func (g *Guarantee) Held() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.held
}

// Stats is a diagnostic snapshot.
type Stats struct {
	Held     bool
	Since    time.Time
	Acquires uint64
	Rearms   uint64
}

func (g *Guarantee) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Stats{Held: g.held, Since: g.since, Acquires: g.acquires, Rearms: g.rearms}
}

// Close releases immediately; used at card detach.
func (g *Guarantee) Close() {
	g.mu.Lock()
	g.gen++
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	held := g.held
	g.held = false
	g.mu.Unlock()
	if held && g.locker != nil {
		_ = g.locker.Release()
	}
}
