package reasoning

import (
	"context"
	"errors"
)

// ErrEmptyReply is returned when the backend produced no text.
var ErrEmptyReply = errors.New("reasoning backend returned an empty reply")

// Identity is the bot on whose behalf a reply is generated.
type Identity struct {
	BotName       string
	NextcloudUser string
	ERPNextUser   string
	// ERPNextAPIKey and ERPNextAPISecret are handed to tools the backend runs.
	ERPNextAPIKey    string
	ERPNextAPISecret string
	WorkingDir       string
	ConfigDir        string
}

// TaskContext narrows a conversation to one Deck card.
type TaskContext struct {
	Title       string
	Description string
}

// Request is one reply generation.
type Request struct {
	Prompt   string
	Identity Identity
	Task     *TaskContext
}

// Backend turns a prompt into a natural-language reply. Implementations honour ctx
// cancellation and deadlines.
type Backend interface {
	GenerateReply(ctx context.Context, req Request) (string, error)
	Name() string
}
