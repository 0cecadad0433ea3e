package activity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Activity types delivered by Talk bot webhooks.
const (
	TypeCreate   = "Create"
	TypeActivity = "Activity"

	actorApplication = "Application"
)

// Event is the activity-streams envelope Talk posts to a bot webhook.
type Event struct {
	Type   string `json:"type"`
	Actor  Actor  `json:"actor"`
	Object Object `json:"object"`
	Target Target `json:"target"`
}

type Actor struct {
	Type string   `json:"type"`
	ID   Flexible `json:"id"`
	Name string   `json:"name"`
}

type Object struct {
	ID          Flexible        `json:"id"`
	Name        string          `json:"name"`
	Content     string          `json:"content"`
	MediaType   string          `json:"mediaType"`
	MessageType string          `json:"messageType"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type Target struct {
	ID   Flexible `json:"id"`
	Name string   `json:"name"`
}

// Flexible decodes JSON strings and numbers into a string.
type Flexible string

func (f *Flexible) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = Flexible(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = Flexible(n.String())
	return nil
}

// Parse decodes a webhook body.
func Parse(body []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, fmt.Errorf("invalid activity envelope: %w", err)
	}
	return &e, nil
}

func lastSegment(id Flexible) string {
	s := string(id)
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Token returns the conversation token from target.id.
func (e *Event) Token() string {
	return lastSegment(e.Target.ID)
}

// MessageID returns the platform message id from object.id.
func (e *Event) MessageID() string {
	return lastSegment(e.Object.ID)
}

// ReplyTo returns the numeric message id to reply to, if there is one.
func (e *Event) ReplyTo() (int, bool) {
	n, err := strconv.Atoi(e.MessageID())
	if err != nil {
		return 0, false
	}
	return n, true
}

// ActorName returns the display name of the sender.
func (e *Event) ActorName() string {
	if e.Actor.Name == "" {
		return "Unknown"
	}
	return e.Actor.Name
}

// IgnoreReason returns why the event should be acknowledged without processing, or "" if it
// should be handled.
func (e *Event) IgnoreReason() string {
	switch {
	case e.Type != TypeCreate && e.Type != TypeActivity:
		return "unsupported activity type"
	case e.Actor.Type == actorApplication:
		return "own message"
	case e.Object.Content == "":
		return "missing content"
	case e.Token() == "":
		return "missing conversation token"
	}
	return ""
}

// Message is the decoded object.content.
type Message struct {
	Text       string
	Parameters json.RawMessage
}

// Content decodes object.content. Talk sends a JSON document {message, parameters}; anything
// that does not decode that way is used as plain text.
func (e *Event) Content() Message {
	raw := e.Object.Content
	var doc struct {
		Message    *string         `json:"message"`
		Parameters json.RawMessage `json:"parameters"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return Message{Text: raw}
	}
	msg := Message{Text: raw, Parameters: doc.Parameters}
	if doc.Message != nil {
		msg.Text = *doc.Message
	}
	return msg
}
