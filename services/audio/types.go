package audio

import (
	"audiocodec-go/errcode"
	"audiocodec-go/services/audio/internal/controls"
	"audiocodec-go/services/audio/internal/core"
	"audiocodec-go/services/audio/internal/notify"
	"audiocodec-go/services/audio/internal/wake"
)

// Card-level types for callers outside the service tree.
type (
	LinkID      = core.LinkID
	Direction   = core.Direction
	Params      = core.Params
	BiasLevel   = core.BiasLevel
	PowerState  = core.PowerState
	Port        = core.Port
	DAI         = core.DAI
	BiasPin     = controls.BiasPin
	InputDevice = notify.InputDevice
	WakeLocker  = wake.Locker
)

const (
	LinkPrimary = core.LinkPrimary
	LinkVoice   = core.LinkVoice
	LinkAux     = core.LinkAux

	Playback = core.Playback
	Capture  = core.Capture

	BiasOff     = core.BiasOff
	BiasStandby = core.BiasStandby
	BiasPrepare = core.BiasPrepare
	BiasOn      = core.BiasOn
)

func ParseLink(s string) (LinkID, error) {
	for l := core.LinkPrimary; l < core.NumLinks; l++ {
		if l.String() == s {
			return l, nil
		}
	}
	return 0, errcode.New(errcode.InvalidParams, "link", s)
}

// ParseDirection treats "" as playback.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "", core.Playback.String():
		return core.Playback, nil
	case core.Capture.String():
		return core.Capture, nil
	}
	return 0, errcode.New(errcode.InvalidParams, "direction", s)
}

func ParseBiasLevel(s string) (BiasLevel, error) {
	for l := core.BiasOff; l <= core.BiasOn; l++ {
		if l.String() == s {
			return l, nil
		}
	}
	return 0, errcode.New(errcode.InvalidParams, "bias", s)
}

// OpenUInput creates the virtual key device used for non-seamless delivery.
func OpenUInput(name string, keys ...uint16) (*notify.UInput, error) {
	return notify.OpenUInput("", name, keys...)
}

// SysfsWakeLock is the Android-style kernel wake lock named name.
func SysfsWakeLock(name string) WakeLocker { return wake.SysfsLocker{Name: name} }
