package audio

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audiocodec-go/drivers/codec"
	"audiocodec-go/services/audio/internal/core"
	"audiocodec-go/services/audio/internal/negotiator"
)

// regBus is a 16-bit register file behind the codec's I2C framing.
type regBus struct{ regs map[uint16]uint16 }

func (b *regBus) Tx(_ uint16, w, r []byte) error {
	reg := uint16(w[0])<<8 | uint16(w[1])
	if len(w) == 4 {
		b.regs[reg] = uint16(w[2])<<8 | uint16(w[3])
		return nil
	}
	v := b.regs[reg]
	r[0], r[1] = byte(v>>8), byte(v)
	return nil
}

func TestCodecPortAppliesTDMVoiceFormat(t *testing.T) {
	bus := &regBus{regs: map[uint16]uint16{}}
	p := NewCodecPort(codec.New(bus, codec.Config{}))

	f, err := negotiator.DecodeFormat(0x14)
	require.NoError(t, err)
	require.NoError(t, p.SetFormat(context.Background(), core.LinkVoice, negotiator.VoiceFormat(1, f)))

	base := uint16(codec.RegAIF2Base)
	assert.Equal(t, uint16(codec.ModeDSPB), bus.regs[base+5])
	assert.Equal(t, uint16(codec.BCLKMaster), bus.regs[base]&codec.BCLKMaster)
	assert.Equal(t, uint16(16), bus.regs[base+7], "tx slot length")
	assert.Equal(t, uint16(16), bus.regs[base+8], "rx slot length")
	assert.Equal(t, uint16(2), bus.regs[base+9+2], "third tx channel in slot 2")
}

func TestCodecPortPlainFormatLeavesSlotsAlone(t *testing.T) {
	bus := &regBus{regs: map[uint16]uint16{}}
	p := NewCodecPort(codec.New(bus, codec.Config{}))

	require.NoError(t, p.SetFormat(context.Background(), core.LinkVoice, negotiator.DefaultVoiceFormat))
	assert.Equal(t, uint16(codec.ModeDSPA), bus.regs[codec.RegAIF2Base+5])
	_, touched := bus.regs[codec.RegAIF2Base+7]
	assert.False(t, touched)
}
