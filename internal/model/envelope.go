package model

import "encoding/json"

// Envelope is the message published to the identity queue.
type Envelope struct {
	ID        string          `json:"id"` // message ULID
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Message   json.RawMessage `json:"message"`
}
