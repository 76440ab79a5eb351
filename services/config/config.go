// Package config publishes a board's configuration document on the bus, one
// retained config/<service> message per top-level key.
package config

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"audiocodec-go/bus"
	"audiocodec-go/errcode"
)

const (
	serviceName  = "config"
	configPrefix = "config"
)

// EmbeddedConfigLookup allows overriding how board documents are resolved.
var EmbeddedConfigLookup = func(board string) ([]byte, bool) {
	b, ok := embeddedConfigs[board]
	return b, ok
}

type ConfigService struct {
	Name  string
	Board string // embedded document to publish
	// Document, when set, replaces the embedded one (e.g. read from a file).
	Document []byte
	Log      *logrus.Entry
}

func NewConfigService(board string) *ConfigService {
	return &ConfigService{Name: serviceName, Board: board}
}

func (s *ConfigService) document() ([]byte, error) {
	if len(s.Document) > 0 {
		return s.Document, nil
	}
	if s.Board == "" {
		return nil, errcode.New(errcode.InvalidParams, serviceName, "no board and no document")
	}
	raw, ok := EmbeddedConfigLookup(s.Board)
	if !ok || len(raw) == 0 {
		return nil, errcode.New(errcode.InvalidParams, serviceName, "no embedded config for board "+s.Board)
	}
	return raw, nil
}

func (s *ConfigService) sections() (map[string]json.RawMessage, error) {
	raw, err := s.document()
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errcode.Wrap(errcode.InvalidPayload, serviceName, err)
	}
	return m, nil
}

// Section returns one service's raw document, for callers that need it
// before the bus is up.
func (s *ConfigService) Section(key string) ([]byte, error) {
	m, err := s.sections()
	if err != nil {
		return nil, err
	}
	v, ok := m[key]
	if !ok {
		return nil, errcode.New(errcode.InvalidParams, serviceName, "no section "+key)
	}
	return []byte(v), nil
}

// publishConfig splits the document by top-level key. Each section is
// published as raw JSON for its service to decode.
func (s *ConfigService) publishConfig(conn *bus.Connection) error {
	m, err := s.sections()
	if err != nil {
		return err
	}
	for k, v := range m {
		conn.Publish(&bus.Message{
			Topic:    bus.T(configPrefix, k),
			Payload:  []byte(v),
			Retained: true,
		})
	}
	return nil
}

// Start publishes once in the background; failures are logged.
func (s *ConfigService) Start(ctx context.Context, conn *bus.Connection) {
	log := s.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	go func() {
		if ctx.Err() != nil {
			return
		}
		if err := s.publishConfig(conn); err != nil {
			log.WithError(err).WithField("board", s.Board).Error("config not published")
		}
	}()
}
