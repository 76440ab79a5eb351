package types

// ------------------------
// Power (retained): hal/cap/audio/power/value
// ------------------------

type PowerValue struct {
	Bias        string `json:"bias"`  // off|standby|prepare|on
	Clock       string `json:"clock"` // stopped|primary|secondary
	SyncRateHz  uint32 `json:"sync_rate_hz"`
	AsyncRateHz uint32 `json:"async_rate_hz"`
	TSms        int64  `json:"ts_ms"`
}

// ------------------------
// Voice trigger (event): hal/cap/audio/voice_trigger/event
// ------------------------

type VoiceTriggerEvent struct {
	Keyword string `json:"keyword"` // VOICE_WAKEUP_WORD_ID=...
	Mode    string `json:"mode"`    // normal|lpsd
	TSms    int64  `json:"ts_ms"`
}

// ------------------------
// Control payloads
// ------------------------

// verb "set" on link_role
type LinkRoleSet struct {
	Role string `json:"role"` // slave|master
}

type LinkRoleValue struct {
	Role string `json:"role"`
	Mode uint8  `json:"aif_mode"` // 0 remote master, 1 local master
}

// verb "set" on output_gain
type GainSet struct {
	Channel string `json:"channel"` // left|right|both
	Raw     int    `json:"raw"`
}

type GainValue struct {
	Written int `json:"written"` // raw + step, clamped
	Step    int `json:"step"`
}

type VoiceModeSet struct {
	Mode string `json:"mode"` // normal|lpsd
}

type VoiceModeValue struct {
	Mode string `json:"mode"`
	Key  uint16 `json:"key"` // key injected on the next trigger in non-seamless delivery
}

type DeliverySet struct {
	Mode string `json:"mode"` // seamless|non-seamless
}

type DeliveryValue struct {
	Mode string `json:"mode"`
}

type VoiceTrackingValue struct {
	Packed    uint32 `json:"packed"` // direction<<16 | energy
	Direction uint16 `json:"direction"`
	Energy    uint16 `json:"energy"`
}

type OffsetSet struct {
	Offset int32 `json:"offset"`
}

type OffsetValue struct {
	Offset  int32  `json:"offset"`
	Encoded uint32 `json:"encoded"` // 24-bit register pattern
}

type KeywordSet struct {
	ID uint32 `json:"id"`
}

type KeywordValue struct {
	ID  uint32 `json:"id"`
	Hex string `json:"hex"`
}

type MicBiasSet struct {
	Pin string `json:"pin"` // main|sub
	On  bool   `json:"on"`
}

type MicValue struct {
	Presence string `json:"presence"` // unknown|main|ear
	Main     bool   `json:"main_forced"`
	Sub      bool   `json:"sub_forced"`
	Ear      bool   `json:"ear"`
}

type ImpedanceValue struct {
	Ohms uint32 `json:"ohms"`
	Step int    `json:"step"`
}

// verb "get" on amp_dump; sections are captured only when Available.
type AmpDump struct {
	Status    uint32     `json:"status"`
	Available bool       `json:"available"`
	Sections  [][]uint32 `json:"sections,omitempty"`
}

// ------------------------
// Stream lifecycle: hal/cap/audio/stream/control/<verb>
// ------------------------

// verb "params"
type StreamParams struct {
	Link      string `json:"link"` // primary|voice|aux
	RateHz    uint32 `json:"rate_hz"`
	Channels  uint8  `json:"channels,omitempty"`
	WordBits  uint8  `json:"word_bits,omitempty"`
	Direction string `json:"direction,omitempty"` // playback|capture
}

// verbs "start", "stop"
type StreamDir struct {
	Link      string `json:"link"`
	Direction string `json:"direction"`
}

// verb "bias"
type BiasSet struct {
	Level string `json:"level"` // off|standby|prepare|on
}

// ------------------------
// Diagnostics (retained): hal/cap/audio/diag/value
// ------------------------

type AudioDiag struct {
	Bias         string `json:"bias"`
	Clock        string `json:"clock"`
	TriggerDrops uint32 `json:"trigger_drops"`
	Delivered    uint32 `json:"delivered"`
	WakeHeld     bool   `json:"wake_held"`
	WakeAcquires uint64 `json:"wake_acquires"`
	WakeRearms   uint64 `json:"wake_rearms"`
	TSms         int64  `json:"ts_ms"`
}
