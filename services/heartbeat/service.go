// Package heartbeat periodically publishes card diagnostics.
package heartbeat

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"audiocodec-go/bus"
	"audiocodec-go/types"
)

var (
	topicConfigHeartbeat = bus.T("config", "heartbeat")
	TopicDiag            = bus.T("hal", "cap", "audio", "diag", "value")
)

const DefaultInterval = 10 * time.Second

// Source yields the current diagnostics, or false while no card exists.
type Source func() (types.AudioDiag, bool)

type Config struct {
	Interval float64 `json:"interval"` // seconds
}

type Service struct {
	Source Source
	Log    *logrus.Entry
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)

	tick := time.NewTicker(DefaultInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Log.Info("heartbeat stopping")
			return
		case <-tick.C:
			if d, ok := s.Source(); ok {
				conn.Publish(conn.NewMessage(TopicDiag, d, true))
			}
		case msg := <-cfgSub.Channel():
			iv, err := interval(msg.Payload)
			if err != nil {
				s.Log.WithError(err).Warn("heartbeat config ignored")
				continue
			}
			tick.Reset(iv)
			s.Log.WithField("interval", iv).Info("heartbeat interval set")
		}
	}
}

func interval(p any) (time.Duration, error) {
	var c Config
	var err error
	switch v := p.(type) {
	case []byte:
		err = json.Unmarshal(v, &c)
	case Config:
		c = v
	default:
		var b []byte
		if b, err = json.Marshal(v); err == nil {
			err = json.Unmarshal(b, &c)
		}
	}
	if err != nil {
		return 0, err
	}
	if c.Interval <= 0 {
		return DefaultInterval, nil
	}
	return time.Duration(c.Interval * float64(time.Second)), nil
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	if s.Log == nil {
		s.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	s.Log = s.Log.WithField("service", "heartbeat")
	go s.serviceLoop(ctx, conn)
	return nil
}
