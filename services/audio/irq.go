package audio

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"audiocodec-go/drivers/codec"
)

// EdgeWaiter is the codec's interrupt line. periph's gpio.PinIn satisfies it
// once the pin has been configured with In(pull, gpio.FallingEdge).
type EdgeWaiter interface {
	WaitForEdge(timeout time.Duration) bool
}

// EventSink receives decoded codec interrupts. Card implements it.
type EventSink interface {
	OnVoiceTrigger()
	OnMicPresence(present bool)
	OnImpedance(ohms uint32)
}

// IRQ turns codec interrupt edges into card callbacks.
type IRQ struct {
	pin  EdgeWaiter
	port Port
	sink EventSink
	log  *logrus.Entry

	// Poll bounds each wait so cancellation is noticed.
	Poll time.Duration

	stopped chan struct{}
	served  atomic.Uint32
	errors  atomic.Uint32
}

func NewIRQ(pin EdgeWaiter, port Port, sink EventSink, log *logrus.Entry) *IRQ {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &IRQ{
		pin:     pin,
		port:    port,
		sink:    sink,
		log:     log.WithField("component", "irq"),
		Poll:    100 * time.Millisecond,
		stopped: make(chan struct{}),
	}
}

// Start waits for edges until ctx ends.
func (q *IRQ) Start(ctx context.Context) {
	go func() {
		defer close(q.stopped)
		for ctx.Err() == nil {
			if q.pin.WaitForEdge(q.Poll) {
				q.Service()
			}
		}
	}()
}

func (q *IRQ) Done() <-chan struct{} { return q.stopped }

// Service reads the status register, dispatches every raised source and
// acknowledges exactly those bits.
func (q *IRQ) Service() {
	status, err := q.port.Read(codec.RegIRQStatus)
	if err != nil {
		q.errors.Add(1)
		q.log.WithError(err).Warn("irq status unreadable")
		return
	}
	raised := status & (codec.IRQVoiceTrigger | codec.IRQMicDetect | codec.IRQImpedance)
	if raised == 0 {
		return
	}
	q.served.Add(1)

	if raised&codec.IRQMicDetect != 0 {
		if v, err := q.port.Read(codec.RegMicDetect); err == nil {
			q.sink.OnMicPresence(v&codec.MicPresent != 0)
		} else {
			q.log.WithError(err).Warn("mic detect unreadable")
		}
	}
	if raised&codec.IRQImpedance != 0 {
		if v, err := q.port.Read(codec.RegHPImpedance); err == nil {
			q.sink.OnImpedance(uint32(v))
		} else {
			q.log.WithError(err).Warn("impedance unreadable")
		}
	}
	if raised&codec.IRQVoiceTrigger != 0 {
		q.sink.OnVoiceTrigger()
	}

	if err := q.port.Write(codec.RegIRQStatus, raised, raised); err != nil {
		q.errors.Add(1)
		q.log.WithError(err).Warn("irq ack failed")
	}
}

// Served counts interrupts that raised at least one known source.
func (q *IRQ) Served() uint32 { return q.served.Load() }
func (q *IRQ) Errors() uint32 { return q.errors.Load() }
