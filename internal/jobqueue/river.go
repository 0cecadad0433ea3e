package jobqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/zerolog/log"
)

// CloseConversationArgs represents the arguments for a conversation close job
type CloseConversationArgs struct {
	Bot   string `json:"bot"`
	Token string `json:"token"`
}

// Kind returns the job kind for River
func (CloseConversationArgs) Kind() string {
	return "close_conversation"
}

// CloseConversationWorker handles conversation close jobs
type CloseConversationWorker struct {
	river.WorkerDefaults[CloseConversationArgs]
	deleter Deleter
	timeout time.Duration
}

func (w *CloseConversationWorker) Work(ctx context.Context, job *river.Job[CloseConversationArgs]) error {
	return deleteConversation(ctx, w.deleter, w.timeout, job.Args.Bot, job.Args.Token)
}

// RiverQueue manages the River job queue
type RiverQueue struct {
	client *river.Client[pgx.Tx]
	pool   *pgxpool.Pool
	config QueueConfig
}

// NewRiverQueue connects to PostgreSQL, migrates the River schema and creates the client.
func NewRiverQueue(ctx context.Context, cfg QueueConfig, deleter Deleter) (*RiverQueue, error) {
	cfg = cfg.withDefaults()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create River migrator: %w", err)
	}
	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate River schema: %w", err)
	}
	log.Debug().Int("versions", len(res.Versions)).Msg("River schema migrated")

	workers := river.NewWorkers()
	river.AddWorker(workers, &CloseConversationWorker{deleter: deleter, timeout: cfg.DeleteTimeout})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues:  cfg.RiverQueueConfig(),
		Workers: workers,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	return &RiverQueue{
		client: client,
		pool:   pool,
		config: cfg,
	}, nil
}

// Start starts the job queue workers
func (q *RiverQueue) Start(ctx context.Context) error {
	return q.client.Start(ctx)
}

// Stop stops the job queue workers and closes the pool
func (q *RiverQueue) Stop(ctx context.Context) error {
	defer q.pool.Close()
	return q.client.Stop(ctx)
}

// ScheduleClose queues a close job that becomes available after delay. Deletes are not
// idempotent on the Talk side, so the job is attempted once.
func (q *RiverQueue) ScheduleClose(ctx context.Context, bot, token string, delay time.Duration) error {
	args := CloseConversationArgs{Bot: bot, Token: token}

	_, err := q.client.Insert(ctx, args, &river.InsertOpts{
		ScheduledAt: time.Now().Add(delay),
		MaxAttempts: 1,
	})
	if err != nil {
		return fmt.Errorf("failed to queue conversation close job: %w", err)
	}

	log.Debug().Str("bot", bot).Str("token", token).Dur("delay", delay).Msg("Queued conversation close job")
	return nil
}
