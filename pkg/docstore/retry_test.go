package docstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryOnConflict(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds after conflicts", func(t *testing.T) {
		calls := 0
		err := RetryOnConflict(ctx, 3, func(ctx context.Context, attempt int) error {
			calls++
			if attempt < 3 {
				return ErrConflict
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up", func(t *testing.T) {
		calls := 0
		err := RetryOnConflict(ctx, 0, func(ctx context.Context, attempt int) error {
			calls++
			return ErrConflict
		})
		assert.ErrorIs(t, err, ErrRetriesExhausted)
		assert.Equal(t, DefaultMaxAttempts, calls)
	})

	t.Run("other errors stop immediately", func(t *testing.T) {
		boom := errors.New("boom")
		calls := 0
		err := RetryOnConflict(ctx, 5, func(ctx context.Context, attempt int) error {
			calls++
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := RetryOnConflict(cctx, 5, func(ctx context.Context, attempt int) error {
			t.Fatal("should not run")
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestStoredConflictIsRetried(t *testing.T) {
	ctx := context.Background()
	coll := NewMemoryCollection[*testDoc]()
	require.NoError(t, coll.Insert(ctx, &testDoc{ID: "a"}))

	stale, err := coll.Get(ctx, "a")
	require.NoError(t, err)
	fresh, err := coll.Get(ctx, "a")
	require.NoError(t, err)
	fresh.Name = "first"
	require.NoError(t, coll.Replace(ctx, fresh))

	err = RetryOnConflict(ctx, 3, func(ctx context.Context, attempt int) error {
		doc := stale
		if attempt > 1 {
			if doc, err = coll.Get(ctx, "a"); err != nil {
				return err
			}
		}
		doc.Name += "+second"
		return coll.Replace(ctx, doc)
	})
	require.NoError(t, err)

	got, err := coll.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "first+second", got.Name)
	assert.Equal(t, int64(3), got.Version)
}
