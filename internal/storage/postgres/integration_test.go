package postgres

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"
	"time"

	"card-rewards/internal/storage"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStorage подключается к TEST_DATABASE_URL и накатывает миграции.
// Без переменной тесты пропускаются.
func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, goose.SetDialect("postgres"))
	require.NoError(t, goose.Up(db, "../../../migrations"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	pool, err := Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return NewStorage(pool)
}

func newTestUser(t *testing.T, s *Storage) int64 {
	t.Helper()
	u, err := s.CreateUser(t.Context(), uuid.NewString()+"@example.com", "hash")
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = s.db.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, u.ID)
	})
	return u.ID
}

func TestOwnedCardsPostgres(t *testing.T) {
	s := newTestStorage(t)
	ctx := t.Context()
	userID := newTestUser(t, s)

	first, created, err := s.AddOwnedCard(ctx, userID, "apple-card")
	require.NoError(t, err)
	require.True(t, created)
	_, err = uuid.Parse(first.ID)
	require.NoError(t, err)

	t.Run("adding again returns the existing record", func(t *testing.T) {
		again, created, err := s.AddOwnedCard(ctx, userID, "apple-card")
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, again.ID)

		list, err := s.ListOwnedCards(ctx, userID)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("removing an absent record is a no-op", func(t *testing.T) {
		for _, id := range []string{"not-a-uuid", uuid.NewString(), ""} {
			removed, err := s.RemoveOwnedCard(ctx, userID, id)
			require.NoError(t, err, id)
			assert.False(t, removed, id)
		}
		removed, err := s.RemoveOwnedCardByCardID(ctx, userID, "amex-gold")
		require.NoError(t, err)
		assert.False(t, removed)
	})

	t.Run("records of other users are untouched", func(t *testing.T) {
		other := newTestUser(t, s)
		removed, err := s.RemoveOwnedCard(ctx, other, first.ID)
		require.NoError(t, err)
		assert.False(t, removed)
	})

	t.Run("list is ordered by creation", func(t *testing.T) {
		_, _, err := s.AddOwnedCard(ctx, userID, "amex-gold")
		require.NoError(t, err)
		list, err := s.ListOwnedCards(ctx, userID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "apple-card", list[0].CardID)
		assert.Equal(t, "amex-gold", list[1].CardID)
	})

	t.Run("remove deletes once", func(t *testing.T) {
		removed, err := s.RemoveOwnedCard(ctx, userID, first.ID)
		require.NoError(t, err)
		assert.True(t, removed)
		removed, err = s.RemoveOwnedCard(ctx, userID, first.ID)
		require.NoError(t, err)
		assert.False(t, removed)

		removed, err = s.RemoveOwnedCardByCardID(ctx, userID, "amex-gold")
		require.NoError(t, err)
		assert.True(t, removed)

		list, err := s.ListOwnedCards(ctx, userID)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestConcurrentAddPostgres(t *testing.T) {
	s := newTestStorage(t)
	ctx := t.Context()
	userID := newTestUser(t, s)

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ids     = map[string]struct{}{}
		created int
	)
	for range workers {
		wg.Go(func() {
			rec, ok, err := s.AddOwnedCard(ctx, userID, "citi-double-cash")
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			ids[rec.ID] = struct{}{}
			if ok {
				created++
			}
		})
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Len(t, ids, 1)
}

func TestUsersPostgres(t *testing.T) {
	s := newTestStorage(t)
	ctx := t.Context()

	email := uuid.NewString() + "@Example.com"
	u, err := s.CreateUser(ctx, email, "hash")
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = s.db.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, u.ID)
	})

	_, err = s.CreateUser(ctx, email, "other")
	assert.ErrorIs(t, err, storage.ErrEmailTaken)

	found, err := s.FindUserByEmail(ctx, email)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, u.ID, found.ID)

	missing, err := s.FindUserByEmail(ctx, uuid.NewString()+"@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)

	tgID := time.Now().UnixNano()
	a, err := s.FindOrCreateTelegramUser(ctx, tgID)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = s.db.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, a.ID)
	})
	b, err := s.FindOrCreateTelegramUser(ctx, tgID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
	require.NotNil(t, b.TelegramID)
	assert.Equal(t, tgID, *b.TelegramID)
}
