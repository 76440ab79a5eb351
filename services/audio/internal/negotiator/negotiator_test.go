package negotiator

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

type asyncCall struct {
	ref core.ClockRef
	in  uint32
}

type fakeClock struct{ calls []asyncCall }

func (f *fakeClock) RetargetAsync(_ context.Context, ref core.ClockRef, in uint32) error {
	f.calls = append(f.calls, asyncCall{ref, in})
	return nil
}

type fixture struct {
	n        *Negotiator
	codec    *coretest.DAI
	platform *coretest.DAI
	port     *coretest.Port
	clk      *fakeClock
	shared   *core.Shared
	logs     *test.Hook
}

func newFixture(t *testing.T, aifMode uint8) *fixture {
	t.Helper()
	return newVoiceFixture(t, aifMode, nil)
}

func newVoiceFixture(t *testing.T, aifMode uint8, voice *core.Format) *fixture {
	t.Helper()
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	f := &fixture{
		codec:    &coretest.DAI{},
		platform: &coretest.DAI{},
		port:     coretest.NewPort(),
		clk:      &fakeClock{},
		shared:   core.NewShared(core.State{VoiceAIF: aifMode}),
		logs:     hook,
	}
	f.n = New(Config{
		Codec:       f.codec,
		Platform:    f.platform,
		Port:        f.port,
		Clock:       f.clk,
		Shared:      f.shared,
		MCLK1Hz:     24_000_000,
		VoiceFormat: voice,
		Pins: []PinCtrl{
			{Link: core.LinkPrimary, BCLKReg: 0x500, BCLKMask: 0x20, LRCLKReg: 0x506, LRCLKMask: 0x04},
			{Link: core.LinkVoice, BCLKReg: 0x540, BCLKMask: 0x20, LRCLKReg: 0x546, LRCLKMask: 0x04},
		},
		Log: logrus.NewEntry(log),
	})
	return f
}

func TestPrimaryLinkBothSidesIdentical(t *testing.T) {
	f := newFixture(t, 0)
	require.NoError(t, f.n.HWParams(context.Background(), core.LinkPrimary, core.Params{RateHz: 48000, Channels: 2, WordBits: 16}))

	cf, ok := f.codec.LastFormat(core.LinkPrimary)
	require.True(t, ok)
	pf, ok := f.platform.LastFormat(core.LinkPrimary)
	require.True(t, ok)
	assert.Equal(t, PrimaryFormat, cf)
	assert.Equal(t, cf, pf)
	assert.Equal(t, uint32(48000*32), f.n.State(core.LinkPrimary).BitClock)
}

func TestVoiceBitClock(t *testing.T) {
	cases := []struct {
		rate      uint32
		bclk      uint32
		supported bool
	}{
		{8000, 256_000, true},
		{16000, 512_000, true},
		{44100, 256_000, false},
	}
	for _, tc := range cases {
		f := newFixture(t, 0)
		require.NoError(t, f.n.HWParams(context.Background(), core.LinkVoice, core.Params{RateHz: tc.rate}))
		st := f.n.State(core.LinkVoice)
		assert.Equal(t, tc.bclk, st.BitClock, "rate %d", tc.rate)
		assert.Equal(t, tc.supported, st.Supported, "rate %d", tc.rate)

		var warned bool
		for _, e := range f.logs.AllEntries() {
			if e.Level == logrus.WarnLevel && e.Data["rate"] == tc.rate {
				warned = true
			}
		}
		assert.Equal(t, !tc.supported, warned, "unsupported diagnostic for rate %d", tc.rate)
	}
}

func TestVoiceSlaveFollowsLinkBitClock(t *testing.T) {
	f := newFixture(t, 0)
	require.NoError(t, f.n.HWParams(context.Background(), core.LinkVoice, core.Params{RateHz: 16000}))

	assert.Equal(t, []asyncCall{{core.RefVoiceBCLK, 512_000}}, f.clk.calls)
	fmt, _ := f.codec.LastFormat(core.LinkVoice)
	assert.Equal(t, core.RoleSlave, fmt.Role)
	_, platformTouched := f.platform.LastFormat(core.LinkVoice)
	assert.False(t, platformTouched)
}

func TestVoiceMasterLocksToPrimaryReference(t *testing.T) {
	f := newFixture(t, 1)
	require.NoError(t, f.n.HWParams(context.Background(), core.LinkVoice, core.Params{RateHz: 8000}))

	assert.Equal(t, []asyncCall{{core.RefMCLK1, 24_000_000}}, f.clk.calls)
	fmt, _ := f.codec.LastFormat(core.LinkVoice)
	assert.Equal(t, core.RoleMaster, fmt.Role)

	calls := f.codec.Calls()
	assert.Equal(t, uint32(256_000), calls[len(calls)-1].BitClock)
}

func TestDecodeFormat(t *testing.T) {
	cases := []struct {
		word uint32
		mode core.FormatMode
		tdm  bool
	}{
		{0x00, core.FmtI2S, false},
		{0x02, core.FmtLeftJ, false},
		{0x03, core.FmtDSPA, false},
		{0x04, core.FmtDSPB, false},
		{0x14, core.FmtDSPB, true},
	}
	for _, tc := range cases {
		f, err := DecodeFormat(tc.word)
		require.NoError(t, err, "word=%#x", tc.word)
		assert.Equal(t, tc.mode, f.Mode, "word=%#x", tc.word)
		assert.Equal(t, core.RoleSlave, f.Role)
		if tc.tdm {
			assert.Equal(t, VoiceTDM, f.TDM)
		} else {
			assert.Zero(t, f.TDM.Slots)
		}
	}

	for _, word := range []uint32{0x01, 0x05, 0x0F, 0x20} {
		_, err := DecodeFormat(word)
		assert.Equal(t, errcode.InvalidParams, errcode.Of(err), "word=%#x", word)
	}
}

func TestDefaultVoiceFormat(t *testing.T) {
	f := newFixture(t, 0)
	require.NoError(t, f.n.HWParams(context.Background(), core.LinkVoice, core.Params{RateHz: 8000}))
	got, _ := f.codec.LastFormat(core.LinkVoice)
	assert.Equal(t, DefaultVoiceFormat, got)
}

func TestConfiguredVoiceFormatReachesCodec(t *testing.T) {
	vf, err := DecodeFormat(0x14)
	require.NoError(t, err)
	f := newVoiceFixture(t, 1, &vf)
	require.NoError(t, f.n.HWParams(context.Background(), core.LinkVoice, core.Params{RateHz: 16000}))

	got, ok := f.codec.LastFormat(core.LinkVoice)
	require.True(t, ok)
	assert.Equal(t, core.Format{
		Mode:      core.FmtDSPB,
		Inversion: core.NormalBCLKNormalFrame,
		Role:      core.RoleMaster,
		TDM:       core.TDM{TxMask: 0x07, RxMask: 0x07, Slots: 4, SlotBits: 16},
	}, got)
	assert.Equal(t, got, f.n.State(core.LinkVoice).Format)
}

func TestAuxLinkIsCodecMaster(t *testing.T) {
	f := newFixture(t, 0)
	require.NoError(t, f.n.HWParams(context.Background(), core.LinkAux, core.Params{RateHz: 8000, Channels: 1, WordBits: 16}))
	fmt, _ := f.codec.LastFormat(core.LinkAux)
	assert.Equal(t, AuxFormat, fmt)
	assert.Equal(t, uint32(128_000), f.n.State(core.LinkAux).BitClock)
}

func TestHWParamsSurfacesHardwareErrors(t *testing.T) {
	f := newFixture(t, 0)
	f.codec.Err = coretest.ErrInjected
	err := f.n.HWParams(context.Background(), core.LinkPrimary, core.Params{RateHz: 48000})
	assert.Equal(t, errcode.HardwareFailed, errcode.Of(err))
}

func TestPrimaryPlaybackGatedByVoice(t *testing.T) {
	f := newFixture(t, 0)

	require.NoError(t, f.n.Start(core.LinkVoice, core.Playback))
	err := f.n.Start(core.LinkPrimary, core.Playback)
	assert.Equal(t, errcode.Busy, errcode.Of(err))
	assert.False(t, f.n.State(core.LinkPrimary).Active[core.Playback])

	// Capture on the primary link is not gated.
	require.NoError(t, f.n.Start(core.LinkPrimary, core.Capture))

	f.n.Stop(core.LinkVoice, core.Playback)
	require.NoError(t, f.n.Start(core.LinkPrimary, core.Playback))
}

func TestPrimaryPlaybackWithAuxActive(t *testing.T) {
	f := newFixture(t, 0)
	require.NoError(t, f.n.Start(core.LinkAux, core.Playback))
	require.NoError(t, f.n.Start(core.LinkPrimary, core.Playback))
	assert.True(t, f.n.AnyActive())

	f.n.Stop(core.LinkAux, core.Playback)
	f.n.Stop(core.LinkPrimary, core.Playback)
	assert.False(t, f.n.AnyActive())
}

func TestForceSlaveClearsMasterBits(t *testing.T) {
	f := newFixture(t, 1)
	f.port.Poke(0x540, 0x2F)
	f.port.Poke(0x546, 0x07)

	require.NoError(t, f.n.ForceSlave(context.Background()))
	assert.Equal(t, uint16(0x0F), f.port.Peek(0x540))
	assert.Equal(t, uint16(0x03), f.port.Peek(0x546))
	assert.Len(t, f.port.CallsOf("write"), 4)
}
