package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocationRepo(t *testing.T) {
	repo := NewMemoryLocationRepo()
	ctx := context.Background()

	_, ok, err := repo.LoadLocation(ctx, 5)
	require.NoError(t, err)
	assert.False(t, ok, "первый вход")

	require.NoError(t, repo.SaveLocation(ctx, Location{UserID: 5, World: "START"}))
	require.NoError(t, repo.SaveLocation(ctx, Location{UserID: 5, World: "HOME"}))

	loc, ok, err := repo.LoadLocation(ctx, 5)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "HOME", loc.World, "запись перезаписывается")
	assert.False(t, loc.UpdatedAt.IsZero())
	assert.Equal(t, 1, repo.Count())

	t.Run("validation", func(t *testing.T) {
		assert.Error(t, repo.SaveLocation(ctx, Location{UserID: 0, World: "A"}))
		assert.Error(t, repo.SaveLocation(ctx, Location{UserID: 1}))
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		assert.ErrorIs(t, repo.SaveLocation(cctx, Location{UserID: 2, World: "A"}), context.Canceled)
	})

	require.NoError(t, repo.DeleteLocation(ctx, 5))
	_, ok, _ = repo.LoadLocation(ctx, 5)
	assert.False(t, ok)
}
