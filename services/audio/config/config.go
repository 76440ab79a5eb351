// Package config holds the card configuration supplied on "config/audio"
// and the hardware variants it can select.
package config

import (
	"encoding/json"
	"time"

	"audiocodec-go/errcode"
	"audiocodec-go/services/audio/internal/clock"
	"audiocodec-go/services/audio/internal/core"
	"audiocodec-go/services/audio/internal/gaintable"
	"audiocodec-go/services/audio/internal/negotiator"
)

// Card is the card configuration. Zero-valued fields take defaults.
type Card struct {
	Variant string      `json:"variant"`
	Gain    GainConfig  `json:"gain"`
	Voice   VoiceConfig `json:"voice"`
	AIFMode uint8       `json:"aif_mode"` // 0 remote master, 1 local master
	// AIFFormat holds one format word per link (primary, voice, aux). Only
	// the voice word is applied; the other links have fixed formats.
	AIFFormat [3]uint32   `json:"aif_format"`
	Clock     ClockConfig `json:"clock"`
	Bus       BusConfig   `json:"bus"`
	Pins      PinConfig   `json:"pins"`
}

// GainRange is one impedance band of the gain table.
type GainRange = gaintable.Range

// GainConfig is the impedance table and its global shift.
type GainConfig struct {
	Entries []GainRange `json:"entries,omitempty"`
	Shift   uint32      `json:"shift,omitempty"`
	Table   string      `json:"table,omitempty"` // stock table when entries are empty: "stock"|"ext-res"
}

const (
	GainTableStock  = "stock"
	GainTableExtRes = "ext-res"
)

type VoiceConfig struct {
	Mode      string `json:"mode"`     // normal|lpsd
	Delivery  string `json:"delivery"` // seamless|non-seamless
	Offset    int32  `json:"offset"`
	KeyNormal uint16 `json:"key_normal"`
	KeyLPSD   uint16 `json:"key_lpsd"`
	Sentinel  string `json:"sentinel"`
	WindowMs  int    `json:"wake_window_ms"`
}

type ClockConfig struct {
	MCLK1Hz    uint32 `json:"mclk1_hz,omitempty"`
	MCLK2Hz    uint32 `json:"mclk2_hz,omitempty"`
	SysClkHz   uint32 `json:"sysclk_hz,omitempty"`
	AsyncClkHz uint32 `json:"asyncclk_hz,omitempty"`
}

// BusConfig names the control bus of the codec.
type BusConfig struct {
	I2C  string `json:"i2c"` // periph bus name; "" opens the first bus
	Addr uint16 `json:"addr,omitempty"`
}

// PinConfig names the microphone bias GPIOs; empty means not fitted.
type PinConfig struct {
	MainBias string `json:"main_bias,omitempty"`
	SubBias  string `json:"sub_bias,omitempty"`
}

// Defaults.
const (
	DefaultKeyNormal = 582 // KEY_VOICE_WAKEUP
	DefaultKeyLPSD   = 583 // KEY_LPSD_WAKEUP
	DefaultSentinel  = "VOICE_WAKEUP_WORD_ID=LPSD"
	DefaultWindowMs  = 5000

	DefaultVoiceFormatWord = 0x03 // DSP-A, no TDM
)

func DefaultCard() Card {
	return Card{
		Variant:   VariantStandard,
		AIFFormat: [3]uint32{0, DefaultVoiceFormatWord, 0},
		Voice: VoiceConfig{
			Mode:      core.VoiceNormal.String(),
			Delivery:  core.DeliverySeamless.String(),
			KeyNormal: DefaultKeyNormal,
			KeyLPSD:   DefaultKeyLPSD,
			Sentinel:  DefaultSentinel,
			WindowMs:  DefaultWindowMs,
		},
	}
}

// Load decodes raw JSON over DefaultCard and validates the result.
func Load(raw []byte) (Card, error) {
	c := DefaultCard()
	if err := json.Unmarshal(raw, &c); err != nil {
		return Card{}, errcode.Wrap(errcode.InvalidPayload, "config", err)
	}
	if err := c.Validate(); err != nil {
		return Card{}, err
	}
	return c, nil
}

// Validate checks everything the core would otherwise reject later.
func (c Card) Validate() error {
	if _, ok := LookupVariant(c.Variant); !ok {
		return errcode.New(errcode.InvalidParams, "config", "unknown variant "+c.Variant)
	}
	if c.AIFMode > 1 {
		return errcode.New(errcode.InvalidParams, "config", "aif_mode must be 0 or 1")
	}
	if _, err := c.GainTable(); err != nil {
		return err
	}
	if _, err := c.VoiceFormat(); err != nil {
		return err
	}
	_, err := c.VoiceDefaults()
	return err
}

// VoiceFormat decodes the voice link's format word.
func (c Card) VoiceFormat() (core.Format, error) {
	return negotiator.DecodeFormat(c.AIFFormat[core.LinkVoice])
}

// GainTable builds the impedance table, falling back to the stock one.
func (c Card) GainTable() (*gaintable.Table, error) {
	entries := c.Gain.Entries
	if len(entries) == 0 {
		switch c.Gain.Table {
		case "", GainTableStock:
			entries = gaintable.Default
		case GainTableExtRes:
			entries = gaintable.ExtResistor
		default:
			return nil, errcode.New(errcode.InvalidParams, "config", "gain table "+c.Gain.Table)
		}
	}
	return gaintable.Rebuild(entries, c.Gain.Shift)
}

// VoiceDefaults converts the voice section to its core form.
func (c Card) VoiceDefaults() (core.VoiceConfig, error) {
	v := c.Voice
	out := core.VoiceConfig{
		Offset:    v.Offset,
		KeyNormal: v.KeyNormal,
		KeyLPSD:   v.KeyLPSD,
		Sentinel:  v.Sentinel,
		Window:    time.Duration(v.WindowMs) * time.Millisecond,
	}
	switch v.Mode {
	case "", core.VoiceNormal.String():
		out.Mode = core.VoiceNormal
	case core.VoiceLPSD.String():
		out.Mode = core.VoiceLPSD
	default:
		return out, errcode.New(errcode.InvalidParams, "config", "voice mode "+v.Mode)
	}
	switch v.Delivery {
	case "", core.DeliverySeamless.String():
		out.Delivery = core.DeliverySeamless
	case core.DeliveryNonSeamless.String():
		out.Delivery = core.DeliveryNonSeamless
	default:
		return out, errcode.New(errcode.InvalidParams, "config", "voice delivery "+v.Delivery)
	}
	if out.KeyNormal == 0 {
		out.KeyNormal = DefaultKeyNormal
	}
	if out.KeyLPSD == 0 {
		out.KeyLPSD = DefaultKeyLPSD
	}
	if out.Sentinel == "" {
		out.Sentinel = DefaultSentinel
	}
	if out.Window <= 0 {
		out.Window = DefaultWindowMs * time.Millisecond
	}
	return out, nil
}

// ClockPlan overlays configured rates on the variant's plan.
func (c Card) ClockPlan() clock.Config {
	p := clock.DefaultConfig()
	if v, ok := LookupVariant(c.Variant); ok && v.Clock != (clock.Config{}) {
		p = v.Clock
	}
	if c.Clock.MCLK1Hz != 0 {
		p.MCLK1Hz = c.Clock.MCLK1Hz
	}
	if c.Clock.MCLK2Hz != 0 {
		p.MCLK2Hz = c.Clock.MCLK2Hz
	}
	if c.Clock.SysClkHz != 0 {
		p.SysClkHz = c.Clock.SysClkHz
	}
	if c.Clock.AsyncClkHz != 0 {
		p.AsyncClkHz = c.Clock.AsyncClkHz
	}
	return p
}
