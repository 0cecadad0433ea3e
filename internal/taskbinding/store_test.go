package taskbinding

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/database"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, dialect, err := database.Open(context.Background(), filepath.Join(t.TempDir(), "deck_bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := NewStore(db, dialect)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestGetMissingBinding(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)

	require.NoError(t, s.Upsert(ctx, TaskBinding{
		Token: "abc123", BoardID: 1, StackID: 2, CardID: 42,
		CardTitle: "Offerte klant X", CardDescription: "Binnen een week",
		CreatedAt: created,
	}))

	b, err := s.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, 42, b.CardID)
	assert.Equal(t, "Offerte klant X", b.CardTitle)
	assert.Equal(t, StatusActive, b.Status)
	assert.True(t, b.Active())
	assert.True(t, created.Equal(b.CreatedAt))
	assert.Nil(t, b.CompletedAt)

	require.NoError(t, s.Upsert(ctx, TaskBinding{Token: "abc123", BoardID: 1, StackID: 3, CardID: 43, CardTitle: "Nieuw", CreatedAt: created}))
	b, err = s.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, 43, b.CardID)
	assert.Equal(t, "", b.CardDescription)
}

func TestMarkCompleted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, TaskBinding{Token: "abc123", BoardID: 1, StackID: 2, CardID: 42, CardTitle: "t"}))

	done := time.Date(2024, 6, 2, 17, 0, 0, 0, time.UTC)
	require.NoError(t, s.MarkCompleted(ctx, "abc123", done))

	b, err := s.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, b.Status)
	assert.False(t, b.Active())
	require.NotNil(t, b.CompletedAt)
	assert.True(t, done.Equal(*b.CompletedAt))
}

func TestMarkCompletedUnknownToken(t *testing.T) {
	s := newTestStore(t)
	assert.ErrorIs(t, s.MarkCompleted(context.Background(), "nope", time.Now()), ErrNotFound)
}

func TestList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Upsert(ctx, TaskBinding{Token: "b", CardID: 2, CardTitle: "twee", CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, s.Upsert(ctx, TaskBinding{Token: "a", CardID: 1, CardTitle: "een", CreatedAt: base}))

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Token)
	assert.Equal(t, "b", all[1].Token)
}

func TestParseTimeAcceptsExternalFormats(t *testing.T) {
	for _, in := range []string{"2024-06-01 08:30:00", "2024-06-01T08:30:00Z", "2024-06-01T08:30:00.123456"} {
		got, ok := parseTime(in)
		assert.True(t, ok, in)
		assert.Equal(t, 8, got.Hour(), in)
	}
	_, ok := parseTime("")
	assert.False(t, ok)
}
