package config

import (
	"audiocodec-go/drivers/codec"
	"audiocodec-go/services/audio/internal/clock"
	"audiocodec-go/services/audio/internal/controls"
	"audiocodec-go/services/audio/internal/core"
	"audiocodec-go/services/audio/internal/events"
	"audiocodec-go/services/audio/internal/negotiator"
)

// Variant is everything that differs between boards built around the codec.
// One is selected at startup; the state machine and pipeline never branch on it.
type Variant struct {
	Name      string
	Links     []core.LinkID
	Pins      []negotiator.PinCtrl
	Gain      controls.GainRegs
	Track     *controls.TrackRegs
	Amp       *controls.AmpRegs
	Offset    events.OffsetRegs
	VoiceRegs events.Registers
	BiasPins  []string // "main", "sub"
	Clock     clock.Config
}

const (
	VariantStandard     = "standard"
	VariantDualMic      = "dual-mic"
	VariantAmpCompanion = "amp-companion"
)

func aifPins(link core.LinkID, base uint16) negotiator.PinCtrl {
	return negotiator.PinCtrl{
		Link:      link,
		BCLKReg:   base,
		BCLKMask:  codec.BCLKMaster,
		LRCLKReg:  base + 6,
		LRCLKMask: codec.LRCLKMaster,
	}
}

var (
	allLinks = []core.LinkID{core.LinkPrimary, core.LinkVoice, core.LinkAux}
	allPins  = []negotiator.PinCtrl{
		aifPins(core.LinkPrimary, codec.RegAIF1Base),
		aifPins(core.LinkVoice, codec.RegAIF2Base),
		aifPins(core.LinkAux, codec.RegAIF3Base),
	}
	hpGain = controls.GainRegs{
		Left:   codec.RegOutGainL,
		Right:  codec.RegOutGainR,
		Mask:   codec.OutGainMask,
		Update: codec.OutGainUpdate,
		Max:    codec.OutGainMaxCode,
	}
	offsetRegs = events.OffsetRegs{High: codec.RegVTOffsetHigh, Low: codec.RegVTOffsetLow}
	stdClock   = clock.DefaultConfig()
	highClock  = clock.Config{
		MCLK1Hz:    24_000_000,
		MCLK2Hz:    32_768,
		SysClkHz:   147_456_000,
		AsyncClkHz: 49_152_000,
	}
	voiceRegs = events.Registers{
		MatchScore: codec.RegVTMatchScore,
		FinalScore: codec.RegVTFinalScore,
		NoiseFloor: codec.RegVTNoiseFloor,
		KeywordID:  codec.RegVTKeywordID,
	}
)

var variants = map[string]Variant{
	VariantStandard: {
		Name:      VariantStandard,
		Links:     allLinks,
		Pins:      allPins,
		Gain:      hpGain,
		Track:     &controls.TrackRegs{Direction: codec.RegTrackDirection, Energy: codec.RegTrackEnergy},
		Offset:    offsetRegs,
		VoiceRegs: voiceRegs,
		BiasPins:  []string{"main"},
		Clock:     stdClock,
	},
	// Second mic on its own bias line; tracking is reported mirrored.
	VariantDualMic: {
		Name:  VariantDualMic,
		Links: allLinks,
		Pins:  allPins,
		Gain:  hpGain,
		Track: &controls.TrackRegs{
			Direction: codec.RegTrackDirection,
			Energy:    codec.RegTrackEnergy,
			Invert:    true,
			Max:       0xFFFF,
		},
		Offset:    offsetRegs,
		VoiceRegs: voiceRegs,
		BiasPins:  []string{"main", "sub"},
		Clock:     stdClock,
	},
	// Smart amplifier on the aux link; no voice tracking block. The larger
	// codec runs SYSCLK at 147.456 MHz.
	VariantAmpCompanion: {
		Name:  VariantAmpCompanion,
		Links: allLinks,
		Pins:  allPins,
		Gain:  hpGain,
		Amp: &controls.AmpRegs{
			Status:  codec.RegAmpLogBase + 0x7C,
			LogFlag: codec.RegDSP4Control,
			Ranges: []controls.AmpRange{
				{Start: codec.RegAmpLogBase + 0x7C, Count: 44},
				{Start: codec.RegAmpLogBase + 0xAA, Count: 44},
				{Start: codec.RegAmpLogBase + 0xDA, Count: 80},
				{Start: codec.RegAmpLogBase + 0x12A, Count: 90},
			},
		},
		Offset:    offsetRegs,
		VoiceRegs: voiceRegs,
		BiasPins:  []string{"main"},
		Clock:     highClock,
	},
}

// LookupVariant returns the named variant; "" selects the standard board.
func LookupVariant(name string) (Variant, bool) {
	if name == "" {
		name = VariantStandard
	}
	v, ok := variants[name]
	return v, ok
}
