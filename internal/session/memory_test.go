package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devforge-org/devforge-backend/internal/logger"
)

func TestMemoryStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(logger.NewNop())
	s := &Session{ID: "abc", UserID: uuid.New(), Username: "alice", ExpiresAt: time.Now().Add(time.Hour)}

	require.NoError(t, store.Put(ctx, s))
	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, s.UserID, got.UserID)
	assert.Equal(t, "alice", got.Username)

	require.NoError(t, store.Delete(ctx, "abc"))
	_, err = store.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ExpiredIsNotFound(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(logger.NewNop())
	now := time.Now()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Put(ctx, &Session{ID: "old", ExpiresAt: now.Add(time.Minute)}))
	store.now = func() time.Time { return now.Add(2 * time.Minute) }

	_, err := store.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_SweepDropsExpired(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(logger.NewNop())
	now := time.Now()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Put(ctx, &Session{ID: "stale", ExpiresAt: now.Add(-time.Second)}))
	for i := 1; i < sweepEvery; i++ {
		require.NoError(t, store.Put(ctx, &Session{ID: fmt.Sprintf("s%d", i), ExpiresAt: now.Add(time.Hour)}))
	}
	assert.Equal(t, sweepEvery-1, store.Len())
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(logger.NewNop())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", i)
			_ = store.Put(ctx, &Session{ID: id, ExpiresAt: time.Now().Add(time.Hour)})
			_, _ = store.Get(ctx, id)
			_ = store.Delete(ctx, id)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_PutCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(logger.NewNop())
	s := &Session{ID: "x", Username: "before", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, store.Put(ctx, s))
	s.Username = "after"

	got, err := store.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "before", got.Username)
}
