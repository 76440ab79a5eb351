package events

import "audiocodec-go/services/audio/internal/core"

// Offset register encoding: one tick is 15 offset units. Negative values
// wrap into the top of a 24-bit range using truncating division, so every
// offset in (-15, 0) encodes as 0xFFFFFF. This is the hardware contract.
const offsetTick = 15

// EncodeTriggerOffset converts a signed calibration offset to its register
// pattern.
func EncodeTriggerOffset(offset int32) uint32 {
	switch {
	case offset > 0:
		return uint32(offset/offsetTick + 1)
	case offset == 0:
		return 0
	default:
		return uint32(0xFFFFFF + offset/offsetTick)
	}
}

// SplitOffset returns the high and low 16-bit halves of an encoded offset.
func SplitOffset(enc uint32) (hi, lo uint16) {
	return uint16(enc >> 16), uint16(enc)
}

// OffsetRegs locates the register pair; High is written first.
type OffsetRegs struct {
	High uint16
	Low  uint16
}

// WriteTriggerOffset encodes offset and writes it high half first.
func WriteTriggerOffset(port core.Port, regs OffsetRegs, offset int32) (uint32, error) {
	enc := EncodeTriggerOffset(offset)
	hi, lo := SplitOffset(enc)
	if err := port.Write(regs.High, 0xFFFF, hi); err != nil {
		return enc, err
	}
	return enc, port.Write(regs.Low, 0xFFFF, lo)
}
