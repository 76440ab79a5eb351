// services/audio/internal/core/types.go
package core

import "context"

// ---- Register access port (external collaborator) ----

// ClockDomain selects a clock output or a phase-locked generator.
type ClockDomain uint8

const (
	DomainSysClk   ClockDomain = iota // synchronous system clock
	DomainAsyncClk                    // asynchronous clock (voice link)
	DomainMCLK1                       // platform reference output 1
	DomainMCLK2                       // platform reference output 2 (low-power)
	PLLSync                           // FLL feeding SYSCLK
	PLLAsync                          // FLL feeding ASYNCCLK
)

func (d ClockDomain) String() string {
	switch d {
	case DomainSysClk:
		return "sysclk"
	case DomainAsyncClk:
		return "asyncclk"
	case DomainMCLK1:
		return "mclk1"
	case DomainMCLK2:
		return "mclk2"
	case PLLSync:
		return "fll1"
	case PLLAsync:
		return "fll2"
	default:
		return "unknown"
	}
}

// ClockRef is the input feeding a clock domain or generator.
type ClockRef uint8

const (
	RefNone ClockRef = iota // stop / release
	RefOsc                  // platform oscillator (MCLKn outputs)
	RefMCLK1
	RefMCLK2
	RefPLLSync
	RefPLLAsync
	RefVoiceBCLK // bit clock of the voice-call link
)

func (r ClockRef) String() string {
	switch r {
	case RefNone:
		return "none"
	case RefOsc:
		return "osc"
	case RefMCLK1:
		return "mclk1"
	case RefMCLK2:
		return "mclk2"
	case RefPLLSync:
		return "fll1"
	case RefPLLAsync:
		return "fll2"
	case RefVoiceBCLK:
		return "aif2bclk"
	default:
		return "unknown"
	}
}

// Port is the synchronous hardware control path. Every call may fail.
// SetPLL with RefNone stops the generator; SetClockSource with RefNone
// releases the domain.
type Port interface {
	Read(reg uint16) (uint16, error)
	Write(reg, mask, val uint16) error
	SetClockSource(d ClockDomain, ref ClockRef, rateHz uint32) error
	SetPLL(d ClockDomain, ref ClockRef, inHz, outHz uint32) error
}

// ---- Power ----

type BiasLevel uint8

const (
	BiasOff BiasLevel = iota
	BiasStandby
	BiasPrepare
	BiasOn
)

func (b BiasLevel) String() string {
	switch b {
	case BiasOff:
		return "off"
	case BiasStandby:
		return "standby"
	case BiasPrepare:
		return "prepare"
	case BiasOn:
		return "on"
	default:
		return "unknown"
	}
}

type ClockSource uint8

const (
	ClockStopped   ClockSource = iota
	ClockPrimary               // PLL locked to MCLK1
	ClockSecondary             // PLL locked to MCLK2
)

func (c ClockSource) String() string {
	switch c {
	case ClockPrimary:
		return "primary"
	case ClockSecondary:
		return "secondary"
	default:
		return "stopped"
	}
}

// PowerState is one per card. ClockSource != ClockStopped whenever
// Bias != BiasOff.
type PowerState struct {
	Bias        BiasLevel
	Clock       ClockSource
	SyncRateHz  uint32
	AsyncRateHz uint32
}

// ---- Links ----

type LinkID uint8

const (
	LinkPrimary LinkID = iota // AIF1, media playback/capture
	LinkVoice                 // AIF2, voice call
	LinkAux                   // AIF3, bluetooth SCO
	NumLinks
)

func (l LinkID) String() string {
	switch l {
	case LinkPrimary:
		return "primary"
	case LinkVoice:
		return "voice"
	case LinkAux:
		return "aux"
	default:
		return "unknown"
	}
}

type Direction uint8

const (
	Playback Direction = iota
	Capture
)

func (d Direction) String() string {
	if d == Capture {
		return "capture"
	}
	return "playback"
}

// Interface modes.
type FormatMode uint8

const (
	FmtI2S FormatMode = iota
	FmtLeftJ
	FmtDSPA
	FmtDSPB
)

// Clock polarity.
type Inversion uint8

const (
	NormalBCLKNormalFrame Inversion = iota
	NormalBCLKInvFrame
	InvBCLKNormalFrame
	InvBCLKInvFrame
)

// Role is the codec side's clocking role on a link.
type Role uint8

const (
	RoleSlave  Role = iota // codec consumes BCLK/LRCLK
	RoleMaster             // codec drives BCLK/LRCLK
)

func (r Role) String() string {
	if r == RoleMaster {
		return "master"
	}
	return "slave"
}

// TDM is the slot layout of a time-division link; zero Slots means none.
type TDM struct {
	TxMask   uint32
	RxMask   uint32
	Slots    uint8
	SlotBits uint8
}

// Format mirrors DAI format flags.
type Format struct {
	Mode      FormatMode
	Inversion Inversion
	Role      Role
	TDM       TDM
}

// Params are the stream parameters fixed at hw-params time.
type Params struct {
	RateHz    uint32
	Channels  uint8
	WordBits  uint8
	Direction Direction
}

// LinkState is owned by the negotiator.
type LinkState struct {
	ID        LinkID
	Format    Format
	RateHz    uint32
	BitClock  uint32
	Active    [2]bool // indexed by Direction
	Supported bool    // false when the rate fell back
}

// Streaming reports whether either direction is running.
func (s LinkState) Streaming() bool { return s.Active[Playback] || s.Active[Capture] }

// DAI is the narrow "set format / set clock" contract on one side of a link.
type DAI interface {
	SetFormat(ctx context.Context, link LinkID, f Format) error
	SetBitClock(ctx context.Context, link LinkID, hz uint32) error
}

// ---- Microphones ----

type MicPresence uint8

const (
	MicUnknown MicPresence = iota
	MicMain
	MicEar
)

func (m MicPresence) String() string {
	switch m {
	case MicMain:
		return "main"
	case MicEar:
		return "ear"
	default:
		return "unknown"
	}
}
