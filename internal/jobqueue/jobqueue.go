// Package jobqueue schedules the delayed deletion of Talk conversations after a task has been
// completed. See queue_config.go for the available backends.
package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrStopped is returned when scheduling on a queue that has been stopped.
var ErrStopped = errors.New("job queue stopped")

// Deleter removes a conversation on behalf of a bot.
type Deleter interface {
	DeleteConversation(ctx context.Context, bot, token string) error
}

// Queue schedules conversation closes.
type Queue interface {
	ScheduleClose(ctx context.Context, bot, token string, delay time.Duration) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// New creates the queue selected by cfg.Backend.
func New(ctx context.Context, cfg QueueConfig, deleter Deleter) (Queue, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	log.Info().Str("backend", cfg.Backend).Msg("Creating job queue")
	switch cfg.Backend {
	case BackendRiver:
		return NewRiverQueue(ctx, cfg, deleter)
	default:
		return NewTimerQueue(cfg, deleter), nil
	}
}

func deleteConversation(ctx context.Context, deleter Deleter, timeout time.Duration, bot, token string) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := deleter.DeleteConversation(ctx, bot, token); err != nil {
		log.Error().Err(err).Str("bot", bot).Str("token", token).Msg("Failed to close conversation")
		return fmt.Errorf("failed to close conversation %s: %w", token, err)
	}
	log.Info().Str("bot", bot).Str("token", token).Msg("Conversation closed")
	return nil
}
