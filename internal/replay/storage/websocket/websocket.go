// Package websocket streams match data to a spectator server. It implements
// the replay backend but not the exportable interface.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tacband/skirmish/internal/replay/model"
	"github.com/tacband/skirmish/pkg/core"
	"github.com/tacband/skirmish/pkg/stream"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend streams match data over WebSocket.
type Backend struct {
	sess      *session
	cfg       Config
	nextRowID atomic.Uint64
}

// New creates a new WebSocket replay backend.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		sess: newSession(logger),
		cfg:  cfg,
	}
}

// Init connects to the spectator server.
func (b *Backend) Init() error {
	return b.sess.open(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the spectator server.
func (b *Backend) Close() error {
	return b.sess.shutdown()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := stream.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// StartMatch sends match metadata, keeps it as the session greeting for
// redial replay, and waits for the server ack.
func (b *Backend) StartMatch(m *model.Match) error {
	data, err := marshalEnvelope(stream.TypeStartMatch, stream.StartMatchPayload{Match: m})
	if err != nil {
		return err
	}
	b.sess.setGreeting(data)
	return b.sess.exchange(data, stream.TypeStartMatch, ackTimeout)
}

// EndMatch sends the outcome, waits for the ack, and clears per-match state.
func (b *Backend) EndMatch(outcome core.WinConditionOutcome, endedAt time.Time) error {
	data, err := marshalEnvelope(stream.TypeEndMatch, stream.EndMatchPayload{
		Result:      outcome.Result.String(),
		WinningTeam: outcome.WinningTeam.String(),
		Reason:      outcome.Reason,
	})
	if err != nil {
		b.sess.setGreeting(nil)
		return err
	}

	err = b.sess.exchange(data, stream.TypeEndMatch, ackTimeout)
	b.sess.setGreeting(nil)
	b.nextRowID.Store(0)
	return err
}

// AddUnit assigns an auto-increment ID and streams the unit.
func (b *Backend) AddUnit(u *model.Unit) error {
	u.ID = uint(b.nextRowID.Add(1))
	data, err := marshalEnvelope(stream.TypeAddUnit, u)
	if err != nil {
		return err
	}
	b.sess.post(data)
	return nil
}

// RecordEvent streams one engine event.
func (b *Backend) RecordEvent(e *model.Event) error {
	e.ID = uint(b.nextRowID.Add(1))
	data, err := marshalEnvelope(stream.TypeEvent, e)
	if err != nil {
		return err
	}
	b.sess.post(data)
	return nil
}
