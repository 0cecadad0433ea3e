package taskbinding

import (
	"errors"
	"strings"
	"time"
)

// Status is the lifecycle state of a binding.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// ErrNotFound is returned when a conversation has no task binding.
var ErrNotFound = errors.New("task binding not found")

// TaskBinding ties a Talk conversation to one Deck card.
type TaskBinding struct {
	Token           string     `json:"conversation_token"`
	BoardID         int        `json:"board_id"`
	StackID         int        `json:"stack_id"`
	CardID          int        `json:"card_id"`
	CardTitle       string     `json:"card_title"`
	CardDescription string     `json:"card_description,omitempty"`
	Status          Status     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// Active reports whether the task is still open.
func (b TaskBinding) Active() bool {
	return b.Status == StatusActive
}

// timeLayout matches SQLite's datetime('now').
const timeLayout = "2006-01-02 15:04:05"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{timeLayout, time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05.999999-07"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
