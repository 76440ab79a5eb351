package codec

// 7-bit I2C address (CS pin low).
const AddressDefault = 0x1A

// DeviceID is the value of regDeviceID on a supported part.
const DeviceID = 0x5110

const (
	// --- Identity / reset ---
	regDeviceID = 0x0000 // R; write resets

	// --- Clocking ---
	regSysClock    = 0x0101 // SYSCLK_ENA, SYSCLK_FREQ, SYSCLK_SRC
	regAsyncClock  = 0x0112 // ASYNC_CLK_ENA, ASYNC_CLK_FREQ, ASYNC_CLK_SRC
	regClockInputs = 0x0150 // MCLK1_ENA, MCLK2_ENA
	regClockStatus = 0x0D05 // R; FLL lock flags

	clkEna       = 0x0040
	clkSrcMask   = 0x000F
	clkFreqMask  = 0x0700
	clkFreqShift = 8

	mclk1Ena = 0x0001
	mclk2Ena = 0x0002

	fll1Lock = 0x0001
	fll2Lock = 0x0002

	// --- FLLs: five consecutive control words from the base ---
	regFLL1Base = 0x0171
	regFLL2Base = 0x0191

	fllCtrl1  = 0 // FLLn_ENA
	fllCtrl2  = 1 // FLLn_N
	fllCtrl3  = 2 // FLLn_THETA (K)
	fllCtrl4  = 3 // FLLn_OUTDIV, FLLn_FRATIO
	fllCtrl5  = 4 // FLLn_REFCLK_DIV, FLLn_REFCLK_SRC
	fllEna    = 0x0001
	fllNMask  = 0x03FF
	fllOutDiv = 0x3F00
	fllFratio = 0x0007
	fllOutX3  = 0x0008 // output multiplier for rates above the VCO
	fllRefDiv = 0x00C0
	fllRefSrc = 0x000F

	// --- Audio interfaces: AIF1 primary, AIF2 voice, AIF3 aux ---
	RegAIF1Base = 0x0500
	RegAIF2Base = 0x0540
	RegAIF3Base = 0x0580

	aifBCLKCtrl  = 0 // BCLK_MSTR, BCLK_INV, BCLK_FREQ
	aifFormat    = 5 // FMT
	aifLRCLKCtrl = 6 // LRCLK_MSTR, LRCLK_INV
	aifTxFrame   = 7 // TX_SLOT_LEN
	aifRxFrame   = 8 // RX_SLOT_LEN
	aifTxSlot0   = 9 // one word per TX channel
	aifRxSlot0   = 0x11
	aifChannels  = 8
	slotLenMask  = 0x00FF
	slotMask     = 0x003F

	BCLKMaster  = 0x0020
	bclkInv     = 0x0040
	bclkFreq    = 0x001F
	LRCLKMaster = 0x0004
	lrclkInv    = 0x0002
	fmtMask     = 0x0007

	// --- Headphone output gain ---
	RegOutGainL    = 0x0411
	RegOutGainR    = 0x0415
	OutGainMask    = 0x00FF
	OutGainUpdate  = 0x0200
	OutGainMaxCode = 0x00BF

	// --- Voice trigger DSP ---
	RegVTMatchScore = 0x0E00 // R; pair
	RegVTFinalScore = 0x0E02 // R; pair
	RegVTNoiseFloor = 0x0E04 // R; pair
	RegVTKeywordID  = 0x0E06 // R
	RegVTOffsetHigh = 0x0E10 // R/W; high half first
	RegVTOffsetLow  = 0x0E11 // R/W

	// --- DSP4 (companion amplifier firmware) ---
	RegDSP4Control = 0x1B00 // bits 1:0 set while a log is available
	RegAmpLogBase  = 0x2000 // log words, read as pairs

	// --- Interrupts ---
	RegIRQStatus    = 0x0D00 // R; write 1 to clear
	IRQVoiceTrigger = 0x0001
	IRQMicDetect    = 0x0002
	IRQImpedance    = 0x0004
	RegMicDetect    = 0x02A3 // R; bit 0 headset mic present
	MicPresent      = 0x0001
	RegHPImpedance  = 0x0E30 // R; last measurement, ohms

	// --- Voice tracking ---
	RegTrackDirection = 0x0E20 // R
	RegTrackEnergy    = 0x0E21 // R
)

// Clock source codes shared by SYSCLK, ASYNCCLK and FLL references.
const (
	srcMCLK1    = 0x0
	srcMCLK2    = 0x1
	srcFLL1     = 0x4
	srcFLL2     = 0x5
	srcAIF2BCLK = 0x9
)

// sysclkRates lists the SYSCLK/ASYNCCLK rates by FREQ code.
var sysclkRates = [...]uint32{
	6_144_000, 12_288_000, 24_576_000, 49_152_000, 73_728_000, 98_304_000, 147_456_000,
}

// bclkRates lists the bit clocks by BCLK_FREQ code.
var bclkRates = [...]uint32{
	32_000, 48_000, 64_000, 96_000, 128_000, 192_000, 256_000, 384_000,
	512_000, 768_000, 1_024_000, 1_536_000, 2_048_000, 3_072_000, 4_096_000, 6_144_000,
	22_050, 44_100, 88_200, 176_400, 352_800, 705_600, 1_411_200, 2_822_400,
}
