package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// TimerQueue runs closes from in-process timers.
type TimerQueue struct {
	config  QueueConfig
	deleter Deleter

	mu      sync.Mutex
	pending map[*time.Timer]struct{}
	stopped bool
	running sync.WaitGroup
}

// NewTimerQueue creates an in-memory queue.
func NewTimerQueue(cfg QueueConfig, deleter Deleter) *TimerQueue {
	return &TimerQueue{
		config:  cfg.withDefaults(),
		deleter: deleter,
		pending: make(map[*time.Timer]struct{}),
	}
}

// ScheduleClose deletes the conversation after delay. The context only covers scheduling.
func (q *TimerQueue) ScheduleClose(_ context.Context, bot, token string, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return ErrStopped
	}

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		q.mu.Lock()
		if _, ok := q.pending[t]; !ok {
			q.mu.Unlock()
			return
		}
		delete(q.pending, t)
		q.running.Add(1)
		q.mu.Unlock()

		defer q.running.Done()
		_ = deleteConversation(context.Background(), q.deleter, q.config.DeleteTimeout, bot, token)
	})
	q.pending[t] = struct{}{}

	log.Debug().Str("bot", bot).Str("token", token).Dur("delay", delay).Msg("Scheduled conversation close")
	return nil
}

func (q *TimerQueue) Start(ctx context.Context) error { return nil }

// Stop drops closes that have not fired yet and waits for running ones.
func (q *TimerQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	q.stopped = true
	dropped := 0
	for t := range q.pending {
		if t.Stop() {
			dropped++
		}
		delete(q.pending, t)
	}
	q.mu.Unlock()

	if dropped > 0 {
		log.Warn().Int("dropped", dropped).Msg("Dropping pending conversation closes on shutdown")
	}

	done := make(chan struct{})
	go func() {
		q.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
