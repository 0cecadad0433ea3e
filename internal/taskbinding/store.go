package taskbinding

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/database"
)

const schema = `CREATE TABLE IF NOT EXISTS task_bots (
	conversation_token TEXT PRIMARY KEY,
	board_id INTEGER NOT NULL,
	stack_id INTEGER NOT NULL,
	card_id INTEGER NOT NULL,
	card_title TEXT NOT NULL,
	card_description TEXT,
	status TEXT NOT NULL DEFAULT 'active',
	created_at TEXT,
	completed_at TEXT
)`

const selectColumns = `conversation_token, board_id, stack_id, card_id, card_title,
	card_description, status, created_at, completed_at`

// Store reads and writes task bindings in the task_bots table.
type Store struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewStore wraps an open database.
func NewStore(db *sql.DB, dialect database.Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// Migrate creates the task_bots table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create task_bots table: %w", err)
	}
	return nil
}

// Get returns the binding for token, or ErrNotFound.
func (s *Store) Get(ctx context.Context, token string) (*TaskBinding, error) {
	q := database.Rebind(s.dialect, "SELECT "+selectColumns+" FROM task_bots WHERE conversation_token = ?")
	b, err := scanBinding(s.db.QueryRowContext(ctx, q, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task binding for %s: %w", token, err)
	}
	return b, nil
}

// MarkCompleted sets the binding's status to completed and records the completion time.
func (s *Store) MarkCompleted(ctx context.Context, token string, at time.Time) error {
	q := database.Rebind(s.dialect, "UPDATE task_bots SET status = ?, completed_at = ? WHERE conversation_token = ?")
	res, err := s.db.ExecContext(ctx, q, string(StatusCompleted), formatTime(at), token)
	if err != nil {
		return fmt.Errorf("failed to mark task %s completed: %w", token, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	log.Info().Str("token", token).Msg("Task binding marked completed")
	return nil
}

// Upsert creates or replaces the binding for b.Token.
func (s *Store) Upsert(ctx context.Context, b TaskBinding) error {
	if b.Token == "" {
		return fmt.Errorf("task binding requires a conversation token")
	}
	if b.Status == "" {
		b.Status = StatusActive
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	var completed any
	if b.CompletedAt != nil {
		completed = formatTime(*b.CompletedAt)
	}

	q := database.Rebind(s.dialect, `INSERT INTO task_bots (`+selectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (conversation_token) DO UPDATE SET
			board_id = excluded.board_id,
			stack_id = excluded.stack_id,
			card_id = excluded.card_id,
			card_title = excluded.card_title,
			card_description = excluded.card_description,
			status = excluded.status,
			created_at = excluded.created_at,
			completed_at = excluded.completed_at`)
	_, err := s.db.ExecContext(ctx, q,
		b.Token, b.BoardID, b.StackID, b.CardID, b.CardTitle,
		b.CardDescription, string(b.Status), formatTime(b.CreatedAt), completed)
	if err != nil {
		return fmt.Errorf("failed to save task binding for %s: %w", b.Token, err)
	}
	return nil
}

// List returns all bindings ordered by creation time.
func (s *Store) List(ctx context.Context) ([]TaskBinding, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+selectColumns+" FROM task_bots ORDER BY created_at, conversation_token")
	if err != nil {
		return nil, fmt.Errorf("failed to list task bindings: %w", err)
	}
	defer rows.Close()

	var out []TaskBinding
	for rows.Next() {
		b, err := scanBinding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task binding: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBinding(row rowScanner) (*TaskBinding, error) {
	var (
		b                        TaskBinding
		status                   string
		desc, created, completed sql.NullString
	)
	if err := row.Scan(&b.Token, &b.BoardID, &b.StackID, &b.CardID, &b.CardTitle,
		&desc, &status, &created, &completed); err != nil {
		return nil, err
	}
	b.CardDescription = desc.String
	b.Status = Status(status)
	if t, ok := parseTime(created.String); ok {
		b.CreatedAt = t
	}
	if t, ok := parseTime(completed.String); ok {
		b.CompletedAt = &t
	}
	return &b, nil
}
