package clock

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audiocodec-go/errcode"
	"audiocodec-go/services/audio/internal/core"
	"audiocodec-go/services/audio/internal/coretest"
)

type fakeLinks struct {
	active bool
	forced int
}

func (f *fakeLinks) AnyActive() bool                  { return f.active }
func (f *fakeLinks) ForceSlave(context.Context) error { f.forced++; return nil }

func newMachine(t *testing.T) (*Machine, *coretest.Port, *core.Shared, *fakeLinks) {
	t.Helper()
	port := coretest.NewPort()
	shared := core.NewShared(core.State{})
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	m := New(port, shared, DefaultConfig(), logrus.NewEntry(log))
	links := &fakeLinks{}
	m.SetLinks(links)
	return m, port, shared, links
}

func TestOffToStandbyStartsPrimary(t *testing.T) {
	m, port, _, _ := newMachine(t)
	ctx := context.Background()

	require.NoError(t, m.SetBiasLevel(ctx, core.BiasStandby))

	st := m.State()
	assert.Equal(t, core.BiasStandby, st.Bias)
	assert.Equal(t, core.ClockPrimary, st.Clock)
	assert.Equal(t, DefaultConfig().SysClkHz, st.SyncRateHz)

	calls := port.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, coretest.Call{Op: "clk", Domain: core.DomainMCLK1, Ref: core.RefOsc, Out: 24_000_000}, calls[0])
	assert.Equal(t, coretest.Call{Op: "pll", Domain: core.PLLSync, Ref: core.RefMCLK1, In: 24_000_000, Out: 49_152_000}, calls[1])
	assert.Equal(t, coretest.Call{Op: "clk", Domain: core.DomainSysClk, Ref: core.RefPLLSync, Out: 49_152_000}, calls[2])
}

func TestSkippedRungsAreWalked(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	port := coretest.NewPort()
	m := New(port, core.NewShared(core.State{}), DefaultConfig(), logrus.NewEntry(log))
	m.SetLinks(&fakeLinks{})
	ctx := context.Background()

	rungs := func() []core.BiasLevel {
		var out []core.BiasLevel
		for _, e := range hook.AllEntries() {
			if e.Message == "bias rung" {
				out = append(out, e.Data["to"].(core.BiasLevel))
			}
		}
		hook.Reset()
		return out
	}

	require.NoError(t, m.SetBiasLevel(ctx, core.BiasOn))
	assert.Equal(t, []core.BiasLevel{core.BiasStandby, core.BiasPrepare, core.BiasOn}, rungs())
	assert.Equal(t, core.BiasOn, m.State().Bias)
	assert.Len(t, port.CallsOf("pll"), 1, "reference started once")

	require.NoError(t, m.SetBiasLevel(ctx, core.BiasOff))
	assert.Equal(t, []core.BiasLevel{core.BiasPrepare, core.BiasStandby, core.BiasOff}, rungs())
	assert.Equal(t, core.PowerState{}, m.State())
}

func TestLockFailureLeavesLevelUnchanged(t *testing.T) {
	m, port, _, _ := newMachine(t)
	port.Fail = func(c coretest.Call) error {
		if c.Op == "pll" && c.Ref == core.RefMCLK1 {
			return coretest.ErrInjected
		}
		return nil
	}

	err := m.SetBiasLevel(context.Background(), core.BiasStandby)
	require.Error(t, err)
	assert.Equal(t, errcode.HardwareFailed, errcode.Of(err))
	assert.Equal(t, core.PowerState{}, m.State())

	// Reference is rolled back.
	last := port.Calls()[len(port.Calls())-1]
	assert.Equal(t, coretest.Call{Op: "clk", Domain: core.DomainMCLK1, Ref: core.RefNone}, last)

	// A retry is attempted since the level is still off.
	port.Fail = nil
	require.NoError(t, m.SetBiasLevel(context.Background(), core.BiasStandby))
	assert.Equal(t, core.ClockPrimary, m.State().Clock)
}

func TestLatticeWalkAndRedundantNotifications(t *testing.T) {
	m, port, _, _ := newMachine(t)
	ctx := context.Background()

	require.NoError(t, m.SetBiasLevel(ctx, core.BiasOn))
	assert.Equal(t, core.BiasOn, m.State().Bias)
	n := len(port.Calls())

	require.NoError(t, m.SetBiasLevel(ctx, core.BiasOn))
	require.NoError(t, m.SetBiasLevel(ctx, core.BiasPrepare))
	require.NoError(t, m.SetBiasLevel(ctx, core.BiasStandby))
	assert.Len(t, port.Calls(), n, "prepare/on are pass-through")
	assert.Equal(t, core.BiasStandby, m.State().Bias)
}

func TestStandbyToOffStopsEverythingIdempotently(t *testing.T) {
	m, port, _, _ := newMachine(t)
	ctx := context.Background()
	require.NoError(t, m.SetBiasLevel(ctx, core.BiasStandby))
	port.Reset()

	require.NoError(t, m.SetBiasLevel(ctx, core.BiasOff))
	assert.Equal(t, core.PowerState{}, m.State())
	assert.Equal(t, []coretest.Call{
		{Op: "pll", Domain: core.PLLSync, Ref: core.RefNone},
		{Op: "pll", Domain: core.PLLAsync, Ref: core.RefNone},
		{Op: "clk", Domain: core.DomainMCLK1, Ref: core.RefNone},
	}, port.Calls())

	port.Reset()
	require.NoError(t, m.SetBiasLevel(ctx, core.BiasOff))
	assert.Empty(t, port.Calls())
}

func TestInvariantClockRunsWheneverBiasNotOff(t *testing.T) {
	m, _, _, _ := newMachine(t)
	ctx := context.Background()
	for _, lvl := range []core.BiasLevel{core.BiasPrepare, core.BiasOff, core.BiasOn, core.BiasStandby, core.BiasOff} {
		_ = m.SetBiasLevel(ctx, lvl)
		st := m.State()
		if st.Bias != core.BiasOff {
			assert.NotEqual(t, core.ClockStopped, st.Clock, "bias %s", st.Bias)
		}
	}
}

func TestRetargetAsync(t *testing.T) {
	m, port, _, _ := newMachine(t)
	ctx := context.Background()

	require.NoError(t, m.RetargetAsync(ctx, core.RefVoiceBCLK, 256_000))
	assert.Equal(t, []coretest.Call{
		{Op: "pll", Domain: core.PLLAsync, Ref: core.RefVoiceBCLK, In: 256_000, Out: 49_152_000},
		{Op: "clk", Domain: core.DomainAsyncClk, Ref: core.RefPLLAsync, Out: 49_152_000},
	}, port.Calls())
	assert.Equal(t, uint32(49_152_000), m.State().AsyncRateHz)
}
