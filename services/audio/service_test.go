package audio

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audiocodec-go/bus"
	"audiocodec-go/errcode"
	"audiocodec-go/services/audio/config"
	"audiocodec-go/services/audio/internal/controls"
	"audiocodec-go/services/audio/internal/notify"
	"audiocodec-go/types"
)

type harness struct {
	rig    *rig
	client *bus.Connection
	states *bus.Subscription
	card   atomic.Pointer[Card]
}

func startService(t *testing.T) *harness {
	t.Helper()
	b := bus.NewBus(16)
	r := newRig()
	h := &harness{rig: r, client: b.NewConnection("test")}
	h.states = h.client.Subscribe(TopicState)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	svc := b.NewConnection("audio")
	go func() {
		defer close(done)
		Run(ctx, svc, func(cfg config.Card) (*Card, error) {
			d := r.deps()
			d.Events = svc
			c, err := NewCard(cfg, d)
			if err == nil {
				h.card.Store(c)
			}
			return c, err
		}, r.log)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	h.waitState(t, "idle")
	return h
}

func (h *harness) waitState(t *testing.T, level string) types.HALState {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case m := <-h.states.Channel():
			st, ok := m.Payload.(types.HALState)
			require.True(t, ok)
			if st.Level == level {
				return st
			}
		case <-deadline:
			t.Fatalf("state %q not reached", level)
		}
	}
}

func (h *harness) configure(t *testing.T, cfg any) {
	t.Helper()
	h.client.Publish(h.client.NewMessage(TopicConfig, cfg, true))
	h.waitState(t, "ready")
}

func (h *harness) request(t *testing.T, name, verb string, payload any) any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m, err := h.client.RequestWait(ctx, h.client.NewMessage(bus.T("hal", "cap", "audio", name, "control", verb), payload, false))
	require.NoError(t, err)
	return m.Payload
}

func errorOf(t *testing.T, reply any) errcode.Code {
	t.Helper()
	e, ok := reply.(types.ErrorReply)
	require.True(t, ok, "expected error reply, got %#v", reply)
	return errcode.Code(e.Error)
}

func TestServiceNotReadyBeforeConfig(t *testing.T) {
	h := startService(t)
	assert.Equal(t, errcode.NotReady, errorOf(t, h.request(t, controls.PowerState, "get", nil)))
}

func TestServiceRejectsBadConfig(t *testing.T) {
	h := startService(t)
	h.client.Publish(h.client.NewMessage(TopicConfig, `{"variant":"bogus"}`, false))
	st := h.waitState(t, "error")
	assert.Equal(t, "config_decode_failed", st.Status)
}

func TestServiceControlsAndStreamVerbs(t *testing.T) {
	h := startService(t)
	h.configure(t, `{"variant":"standard"}`)

	reply := h.request(t, controls.PowerState, "get", nil)
	v, ok := reply.(types.ValueReply)
	require.True(t, ok)
	assert.Equal(t, "off", v.Value.(types.PowerValue).Bias)

	power := h.client.Subscribe(TopicPower)
	assert.Equal(t, types.OKReply{OK: true}, h.request(t, StreamControl, "bias", types.BiasSet{Level: "standby"}))
	require.Eventually(t, func() bool {
		select {
		case m := <-power.Channel():
			return m.Payload.(types.PowerValue).Clock == "primary"
		default:
			return false
		}
	}, time.Second, time.Millisecond)

	assert.Equal(t, types.OKReply{OK: true}, h.request(t, StreamControl, "params", types.StreamParams{Link: "voice", RateHz: 16000}))
	assert.Equal(t, types.OKReply{OK: true}, h.request(t, StreamControl, "start", types.StreamDir{Link: "voice", Direction: "playback"}))
	assert.Equal(t, errcode.Busy, errorOf(t, h.request(t, StreamControl, "start", `{"link":"primary","direction":"playback"}`)))
	assert.Equal(t, types.OKReply{OK: true}, h.request(t, StreamControl, "stop", types.StreamDir{Link: "voice"}))
	assert.Equal(t, types.OKReply{OK: true}, h.request(t, StreamControl, "start", types.StreamDir{Link: "primary"}))

	assert.Equal(t, errcode.InvalidParams, errorOf(t, h.request(t, StreamControl, "start", types.StreamDir{Link: "hdmi"})))
	assert.Equal(t, errcode.Unsupported, errorOf(t, h.request(t, StreamControl, "rewind", nil)))
	assert.Equal(t, errcode.UnknownControl, errorOf(t, h.request(t, "volume", "get", nil)))
	assert.Equal(t, errcode.Unsupported, errorOf(t, h.request(t, controls.HPImpedance, "set", nil)))
}

func TestServiceSetControl(t *testing.T) {
	h := startService(t)
	h.configure(t, config.DefaultCard())

	reply := h.request(t, controls.VoiceControlMode, "set", types.VoiceModeSet{Mode: "lpsd"})
	v, ok := reply.(types.ValueReply)
	require.True(t, ok, "%#v", reply)
	assert.Equal(t, types.VoiceModeValue{Mode: "lpsd", Key: config.DefaultKeyLPSD}, v.Value)
}

func TestServiceRebuildsCardOnVariantChange(t *testing.T) {
	h := startService(t)
	h.configure(t, `{"variant":"standard"}`)
	assert.Equal(t, errcode.UnknownControl, errorOf(t, h.request(t, controls.AmpDump, "get", nil)))

	h.configure(t, `{"variant":"amp-companion"}`)
	reply := h.request(t, controls.AmpDump, "get", nil)
	v, ok := reply.(types.ValueReply)
	require.True(t, ok, "%#v", reply)
	assert.Equal(t, types.AmpDump{}, v.Value)
}

func TestServiceBroadcastsVoiceTrigger(t *testing.T) {
	h := startService(t)
	h.configure(t, `{"voice":{"mode":"lpsd"}}`)
	events := h.client.Subscribe(notify.TopicVoiceEvent)

	h.card.Load().OnVoiceTrigger()
	select {
	case m := <-events.Channel():
		ev, ok := m.Payload.(types.VoiceTriggerEvent)
		require.True(t, ok)
		assert.Equal(t, config.DefaultSentinel, ev.Keyword)
		assert.Equal(t, "lpsd", ev.Mode)
	case <-time.After(time.Second):
		t.Fatal("no voice trigger broadcast")
	}
}
