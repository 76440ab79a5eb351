package core

import (
	"sync"
	"time"
)

// ---- Voice trigger ----

type VoiceMode uint8

const (
	VoiceNormal VoiceMode = iota
	VoiceLPSD             // low-power sound detect
)

func (m VoiceMode) String() string {
	if m == VoiceLPSD {
		return "lpsd"
	}
	return "normal"
}

type Delivery uint8

const (
	DeliverySeamless    Delivery = iota // broadcast notification
	DeliveryNonSeamless                 // synthetic key press
)

func (d Delivery) String() string {
	if d == DeliveryNonSeamless {
		return "non-seamless"
	}
	return "seamless"
}

type VoiceConfig struct {
	Mode      VoiceMode
	Delivery  Delivery
	Offset    int32
	KeyNormal uint16
	KeyLPSD   uint16
	Sentinel  string        // payload used in lpsd mode
	Window    time.Duration // wake guarantee window
}

// KeyFor returns the key code injected for mode m.
func (c VoiceConfig) KeyFor(m VoiceMode) uint16 {
	if m == VoiceLPSD {
		return c.KeyLPSD
	}
	return c.KeyNormal
}

// ---- Shared card state ----

// GainLookup maps a measured load to a gain step. Implementations are
// immutable once published to State.
type GainLookup interface {
	Lookup(ohms uint32) int
}

// State is the card-wide mutable state guarded by Shared.
type State struct {
	Power PowerState

	EarMic        bool // ear-mic presence callback
	MainMicForced bool // main-mic bias pin forced on
	SubMicForced  bool

	Gains        GainLookup
	GainStep     int    // cached; consumed by the next gain write
	ImpedanceOhm uint32 // last measurement

	Voice       VoiceConfig
	VoiceAIF    uint8  // aif2mode: 0 remote master, 1 local master
	KeywordType uint32 // keyword id of the last normal-mode trigger, or as set
}

// Mic derives the tri-state presence. The main-mic pin being forced on is
// the proxy for a low-power listening feature.
func (s *State) Mic() MicPresence {
	switch {
	case s.MainMicForced:
		return MicMain
	case s.EarMic:
		return MicEar
	default:
		return MicUnknown
	}
}

// Shared is the single coarse lock per card. Hold it only across state
// read-modify-write, never across a hardware transaction.
type Shared struct {
	mu sync.Mutex
	st State
}

func NewShared(init State) *Shared { return &Shared{st: init} }

// Update runs fn with the lock held.
func (s *Shared) Update(fn func(st *State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.st)
}

// View returns a copy of the state.
func (s *Shared) View() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}
