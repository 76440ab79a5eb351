// Package notify delivers voice-trigger events to listeners, either as a
// broadcast on the bus or as a synthetic key press.
package notify

import (
	"context"
	"time"

	"audiocodec-go/bus"
	"audiocodec-go/services/audio/internal/core"
	"audiocodec-go/types"
	"audiocodec-go/x/timex"
)

// Event is one voice-trigger delivery.
type Event struct {
	Payload string
	Mode    core.VoiceMode
	Key     uint16
}

// Notifier delivers an event. Whether anyone observed it is not knowable.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// ---- seamless: bus broadcast ----

// TopicVoiceEvent is where broadcasts land (non-retained).
var TopicVoiceEvent = bus.T("hal", "cap", "audio", "voice_trigger", "event")

type Broadcaster struct {
	conn *bus.Connection
}

func NewBroadcaster(conn *bus.Connection) *Broadcaster { return &Broadcaster{conn: conn} }

func (b *Broadcaster) Notify(_ context.Context, ev Event) error {
	b.conn.Publish(b.conn.NewMessage(TopicVoiceEvent, types.VoiceTriggerEvent{
		Keyword: ev.Payload,
		Mode:    ev.Mode.String(),
		TSms:    timex.NowMs(),
	}, false))
	return nil
}

// ---- non-seamless: key press ----

// InputDevice is a virtual key source.
type InputDevice interface {
	Key(code uint16, pressed bool) error
}

// DefaultKeyHold sits inside the 10-20 ms debounce window listeners expect.
const DefaultKeyHold = 15 * time.Millisecond

type KeyInjector struct {
	dev  InputDevice
	hold time.Duration
}

func NewKeyInjector(dev InputDevice, hold time.Duration) *KeyInjector {
	if hold <= 0 {
		hold = DefaultKeyHold
	}
	return &KeyInjector{dev: dev, hold: hold}
}

// Notify presses, holds, then releases ev.Key. The release is always sent
// once the press went out, even if ctx ends during the hold.
func (k *KeyInjector) Notify(ctx context.Context, ev Event) error {
	if err := k.dev.Key(ev.Key, true); err != nil {
		return err
	}
	t := time.NewTimer(k.hold)
	select {
	case <-ctx.Done():
		t.Stop()
	case <-t.C:
	}
	return k.dev.Key(ev.Key, false)
}
