package audio

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"audiocodec-go/bus"
	"audiocodec-go/errcode"
	"audiocodec-go/services/audio/config"
	"audiocodec-go/services/audio/internal/controls"
	"audiocodec-go/types"
	"audiocodec-go/x/timex"
)

// Topics.
var (
	TopicConfig  = bus.T("config", "audio")
	TopicControl = bus.T("hal", "cap", "audio", "+", "control", "+")
	TopicPower   = bus.T("hal", "cap", "audio", "power", "value")
	TopicState   = bus.T("hal", "cap", "audio", "state")
)

// StreamControl is the control name carrying stream lifecycle verbs.
const StreamControl = "stream"

// CardFactory builds a card for a configuration. The service starts it.
type CardFactory func(cfg config.Card) (*Card, error)

type service struct {
	conn    *bus.Connection
	factory CardFactory
	log     *logrus.Entry

	card *Card
}

// Run serves one card on the bus until ctx ends. The card is created from
// the first configuration published on config/audio.
func Run(ctx context.Context, conn *bus.Connection, factory CardFactory, log *logrus.Entry) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &service{conn: conn, factory: factory, log: log.WithField("service", "audio")}
	s.loop(ctx)
}

func (s *service) loop(ctx context.Context) {
	cfgSub := s.conn.Subscribe(TopicConfig)
	ctrlSub := s.conn.Subscribe(TopicControl)
	defer s.conn.Unsubscribe(cfgSub)
	defer s.conn.Unsubscribe(ctrlSub)

	s.publishState("idle", "awaiting_config", nil)

	for {
		select {
		case <-ctx.Done():
			if s.card != nil {
				s.card.Close()
			}
			s.publishState("stopped", "context_cancelled", nil)
			return

		case msg := <-cfgSub.Channel():
			cfg, err := loadCard(msg.Payload)
			if err != nil {
				s.publishState("error", "config_decode_failed", err)
				continue
			}
			if err := s.applyConfig(ctx, cfg); err != nil {
				s.publishState("error", "apply_config_failed", err)
				continue
			}
			s.publishState("ready", "configured", nil)

		case msg := <-ctrlSub.Channel():
			// hal/cap/audio/<control>/control/<verb>
			name, _ := msg.Topic.At(3).(string)
			verb, _ := msg.Topic.At(5).(string)
			if name == "" || verb == "" {
				s.replyErr(msg, errcode.New(errcode.InvalidTopic, "control", "bad address"))
				continue
			}
			if s.card == nil {
				s.replyErr(msg, errcode.New(errcode.NotReady, name, "no card configured"))
				continue
			}
			var (
				v   any
				err error
			)
			if name == StreamControl {
				v, err = s.stream(ctx, verb, msg.Payload)
			} else {
				v, err = s.control(ctx, name, verb, msg.Payload)
			}
			if err != nil {
				s.replyErr(msg, err)
				continue
			}
			s.conn.Reply(msg, v, false)
		}
	}
}

// applyConfig updates the running card in place, or replaces it when the
// change needs different hardware wiring.
func (s *service) applyConfig(ctx context.Context, cfg config.Card) error {
	if s.card != nil {
		err := s.card.ApplyConfig(ctx, cfg)
		if !errcode.Is(err, errcode.Unsupported) {
			return err
		}
		s.log.Info("rebuilding card")
		s.card.Close()
		s.card = nil
	}
	c, err := s.factory(cfg)
	if err != nil {
		return err
	}
	c.Start(ctx)
	s.card = c
	s.publishPower()
	return nil
}

func (s *service) control(ctx context.Context, name, verb string, payload any) (any, error) {
	switch verb {
	case "get":
		v, err := s.card.GetControl(ctx, name)
		if err != nil {
			return nil, err
		}
		return types.ValueReply{OK: true, Value: v}, nil
	case "set":
		v, err := s.card.SetControl(ctx, name, payload)
		if err != nil {
			return nil, err
		}
		return types.ValueReply{OK: true, Value: v}, nil
	}
	return nil, errcode.New(errcode.Unsupported, name, "verb "+verb)
}

func (s *service) stream(ctx context.Context, verb string, payload any) (any, error) {
	switch verb {
	case "params":
		var p types.StreamParams
		if err := decodeJSON(payload, &p); err != nil {
			return nil, errcode.Wrap(errcode.InvalidPayload, verb, err)
		}
		link, err := ParseLink(p.Link)
		if err != nil {
			return nil, err
		}
		dir, err := ParseDirection(p.Direction)
		if err != nil {
			return nil, err
		}
		err = s.card.OnLinkParamsFixed(ctx, link, Params{RateHz: p.RateHz, Channels: p.Channels, WordBits: p.WordBits, Direction: dir})
		if err != nil {
			return nil, err
		}
		s.publishPower()

	case "start", "stop":
		var p types.StreamDir
		if err := decodeJSON(payload, &p); err != nil {
			return nil, errcode.Wrap(errcode.InvalidPayload, verb, err)
		}
		link, err := ParseLink(p.Link)
		if err != nil {
			return nil, err
		}
		dir, err := ParseDirection(p.Direction)
		if err != nil {
			return nil, err
		}
		if verb == "stop" {
			s.card.OnStreamStop(link, dir)
		} else if err := s.card.OnStreamStart(link, dir); err != nil {
			return nil, err
		}

	case "bias":
		var p types.BiasSet
		if err := decodeJSON(payload, &p); err != nil {
			return nil, errcode.Wrap(errcode.InvalidPayload, verb, err)
		}
		lvl, err := ParseBiasLevel(p.Level)
		if err != nil {
			return nil, err
		}
		err = s.card.OnBiasLevelRequest(ctx, lvl)
		s.publishPower()
		if err != nil {
			return nil, err
		}

	case "suspend":
		s.card.OnSuspend(ctx)
		s.publishPower()

	case "resume":
		s.card.OnResume(ctx)
		s.publishPower()

	default:
		return nil, errcode.New(errcode.Unsupported, StreamControl, "verb "+verb)
	}
	return types.OKReply{OK: true}, nil
}

func (s *service) publishPower() {
	s.conn.Publish(s.conn.NewMessage(TopicPower, controls.PowerValue(s.card.Power()), true))
}

func (s *service) publishState(level, status string, err error) {
	st := types.HALState{Level: level, Status: status, TSms: timex.NowMs()}
	if err != nil {
		s.log.WithError(err).WithField("status", status).Warn("audio service error")
	}
	s.conn.Publish(s.conn.NewMessage(TopicState, st, true))
}

func (s *service) replyErr(req *bus.Message, err error) {
	s.log.WithError(err).WithField("topic", req.Topic).Debug("control failed")
	s.conn.Reply(req, types.ErrorReply{OK: false, Error: string(errcode.Of(err)), Detail: err.Error()}, false)
}

// loadCard overlays JSON payloads on the defaults; a typed Card is taken
// as complete.
func loadCard(p any) (config.Card, error) {
	switch v := p.(type) {
	case config.Card:
		return v, v.Validate()
	case []byte:
		return config.Load(v)
	case string:
		return config.Load([]byte(v))
	}
	b, err := json.Marshal(p)
	if err != nil {
		return config.Card{}, errcode.Wrap(errcode.InvalidPayload, "config", err)
	}
	return config.Load(b)
}

// decodeJSON accepts raw JSON, a string, or any value that marshals to T.
func decodeJSON[T any](src any, dst *T) error {
	switch v := src.(type) {
	case *T:
		*dst = *v
		return nil
	case T:
		*dst = v
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, dst)
	}
}
