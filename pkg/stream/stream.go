// Package stream defines the wire protocol for live match spectating.
package stream

import (
	"encoding/json"

	"github.com/tacband/skirmish/internal/replay/model"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartMatch = "start_match"
	TypeEndMatch   = "end_match"
	TypeAddUnit    = "add_unit"
	TypeEvent      = "event"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartMatchPayload carries match metadata.
type StartMatchPayload struct {
	Match *model.Match `json:"match"`
}

// EndMatchPayload carries the final outcome.
type EndMatchPayload struct {
	Result      string `json:"result"`
	WinningTeam string `json:"winningTeam"`
	Reason      string `json:"reason"`
}
