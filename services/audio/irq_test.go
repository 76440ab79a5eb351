package audio

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audiocodec-go/drivers/codec"
	"audiocodec-go/services/audio/internal/coretest"
)

type edgePin struct{ edges chan struct{} }

func (p *edgePin) WaitForEdge(timeout time.Duration) bool {
	select {
	case <-p.edges:
		return true
	case <-time.After(timeout):
		return false
	}
}

type sinkCall struct {
	op  string
	arg uint32
}

type recordSink struct {
	mu    sync.Mutex
	calls []sinkCall
}

func (s *recordSink) add(c sinkCall) {
	s.mu.Lock()
	s.calls = append(s.calls, c)
	s.mu.Unlock()
}

func (s *recordSink) OnVoiceTrigger() { s.add(sinkCall{op: "trigger"}) }
func (s *recordSink) OnImpedance(ohms uint32) {
	s.add(sinkCall{op: "impedance", arg: ohms})
}
func (s *recordSink) OnMicPresence(present bool) {
	c := sinkCall{op: "mic"}
	if present {
		c.arg = 1
	}
	s.add(c)
}

func (s *recordSink) Calls() []sinkCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sinkCall(nil), s.calls...)
}

func quietLog() *logrus.Entry {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(log)
}

func TestIRQDispatchesAndAcksRaisedSources(t *testing.T) {
	port := coretest.NewPort()
	sink := &recordSink{}
	q := NewIRQ(&edgePin{}, port, sink, quietLog())

	port.Poke(codec.RegIRQStatus, codec.IRQVoiceTrigger|codec.IRQMicDetect|codec.IRQImpedance|0x80)
	port.Poke(codec.RegMicDetect, codec.MicPresent)
	port.Poke(codec.RegHPImpedance, 32)
	q.Service()

	assert.Equal(t, []sinkCall{{"mic", 1}, {"impedance", 32}, {"trigger", 0}}, sink.Calls())
	writes := port.CallsOf("write")
	require.Len(t, writes, 1)
	assert.Equal(t, uint16(codec.RegIRQStatus), writes[0].Reg)
	assert.Equal(t, uint16(0x7), writes[0].Mask, "unknown bits are left alone")
	assert.Equal(t, uint32(1), q.Served())
}

func TestIRQSpuriousEdgeIsIgnored(t *testing.T) {
	port := coretest.NewPort()
	sink := &recordSink{}
	q := NewIRQ(&edgePin{}, port, sink, quietLog())

	q.Service()
	assert.Empty(t, sink.Calls())
	assert.Empty(t, port.CallsOf("write"))
	assert.Zero(t, q.Served())
}

func TestIRQStatusReadFailure(t *testing.T) {
	port := coretest.NewPort()
	port.Fail = func(c coretest.Call) error { return coretest.ErrInjected }
	sink := &recordSink{}
	q := NewIRQ(&edgePin{}, port, sink, quietLog())

	q.Service()
	assert.Empty(t, sink.Calls())
	assert.Equal(t, uint32(1), q.Errors())
}

func TestIRQLoopServesEdgesUntilCancelled(t *testing.T) {
	port := coretest.NewPort()
	sink := &recordSink{}
	pin := &edgePin{edges: make(chan struct{}, 1)}
	q := NewIRQ(pin, port, sink, quietLog())
	q.Poll = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)

	port.Poke(codec.RegIRQStatus, codec.IRQVoiceTrigger)
	pin.edges <- struct{}{}
	require.Eventually(t, func() bool { return len(sink.Calls()) == 1 }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-q.Done():
	case <-time.After(time.Second):
		t.Fatal("irq loop did not exit")
	}
}
