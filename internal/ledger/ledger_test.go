package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()

	t.Run("mark then has seen", func(t *testing.T) {
		store, err := OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
		require.NoError(t, err)
		defer store.Close()

		seen, err := store.HasSeen(ctx, "repair", "2401.00001")
		require.NoError(t, err)
		assert.False(t, seen)

		require.NoError(t, store.MarkSeen(ctx, "repair", "2401.00001"))

		seen, err = store.HasSeen(ctx, "repair", "2401.00001")
		require.NoError(t, err)
		assert.True(t, seen)
	})

	t.Run("topics are independent", func(t *testing.T) {
		store, err := OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
		require.NoError(t, err)
		defer store.Close()

		require.NoError(t, store.MarkSeen(ctx, "repair", "2401.00001"))

		seen, err := store.HasSeen(ctx, "testing", "2401.00001")
		require.NoError(t, err)
		assert.False(t, seen)
	})

	t.Run("duplicate mark is a no-op", func(t *testing.T) {
		store, err := OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
		require.NoError(t, err)
		defer store.Close()

		require.NoError(t, store.MarkSeen(ctx, "repair", "2401.00001"))
		require.NoError(t, store.MarkSeen(ctx, "repair", "2401.00001"))

		n, err := store.Count(ctx, "repair")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("state survives reopen", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ledger.db")

		store, err := OpenSQLite(path)
		require.NoError(t, err)
		require.NoError(t, store.MarkSeen(ctx, "repair", "2401.00001"))
		require.NoError(t, store.Close())

		store, err = OpenSQLite(path)
		require.NoError(t, err)
		defer store.Close()

		seen, err := store.HasSeen(ctx, "repair", "2401.00001")
		require.NoError(t, err)
		assert.True(t, seen)
	})
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	seen, err := store.HasSeen(ctx, "repair", "2401.00001")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, store.MarkSeen(ctx, "repair", "2401.00001"))

	seen, err = store.HasSeen(ctx, "repair", "2401.00001")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = store.HasSeen(ctx, "other", "2401.00001")
	require.NoError(t, err)
	assert.False(t, seen)
}
