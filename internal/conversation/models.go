package conversation

import (
	"encoding/json"
	"errors"
	"time"
)

// Role identifies who authored a history entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Kind marks history entries that carry meaning beyond their text.
type Kind string

const (
	KindConfirmationRequest Kind = "confirmation_request"
	KindCallFailed          Kind = "call_failed"
)

// Message is one history entry. The JSON shape matches the history files written by
// earlier deployments, with Kind as an optional addition.
type Message struct {
	Role      Role      `json:"role"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"kind,omitempty"`
}

// ErrOutOfRange is returned when a key fact index does not exist.
var ErrOutOfRange = errors.New("key fact index out of range")

// Stats summarizes the store for health reporting.
type Stats struct {
	Conversations int `json:"conversations"`
	TotalMessages int `json:"total_messages"`
}

// legacyTimestamp is the naive ISO format used by older history files.
const legacyTimestamp = "2006-01-02T15:04:05.999999"

// UnmarshalJSON accepts RFC 3339 timestamps as well as the naive ISO timestamps found in
// older history files, which are read as local time.
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	var raw struct {
		plain
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Message(raw.plain)
	m.Timestamp = time.Time{}
	if raw.Timestamp == "" {
		return nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, raw.Timestamp); err == nil {
		m.Timestamp = ts
		return nil
	}
	if ts, err := time.ParseInLocation(legacyTimestamp, raw.Timestamp, time.Local); err == nil {
		m.Timestamp = ts
	}
	return nil
}
