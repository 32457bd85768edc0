package shard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRouting(t *testing.T) {
	opts, _ := testOptions(t, &clock{now: time.Unix(1700000000, 0)})
	pool, err := NewPool(4, opts)
	require.NoError(t, err)
	require.Equal(t, 4, pool.Len())

	for i := 0; i < pool.Len(); i++ {
		assert.Equal(t, i, pool.Shard(i).ID())
	}

	idx := pool.ShardIndex("start")
	assert.GreaterOrEqual(t, idx, 0)
	assert.Less(t, idx, 4)
	assert.Equal(t, idx, pool.ShardIndex("  START "), "маршрут по нормализованному имени")
	assert.Same(t, pool.Shard(idx), pool.Route("Start"))

	used := map[int]bool{}
	for _, name := range []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L"} {
		used[pool.ShardIndex(name)] = true
	}
	assert.Greater(t, len(used), 1, "миры расходятся по шардам")
}

func TestPoolRejectsBadCount(t *testing.T) {
	opts, _ := testOptions(t, &clock{})
	_, err := NewPool(0, opts)
	assert.Error(t, err)
}

func TestPoolSnapshot(t *testing.T) {
	opts, _ := testOptions(t, &clock{now: time.Unix(1700000000, 0)})
	pool, err := NewPool(2, opts)
	require.NoError(t, err)

	s := pool.Route("TEST")
	w, err := newFlatWorld(t, "TEST")
	require.NoError(t, err)
	s.adopt(w)
	s.refreshSnapshot()

	info, shardID, ok := pool.FindWorld("test")
	require.True(t, ok)
	assert.Equal(t, s.ID(), shardID)
	assert.Equal(t, "TEST", info.Name)

	worlds, players := pool.Totals()
	assert.Equal(t, 1, worlds)
	assert.Equal(t, 0, players)
	assert.Len(t, pool.Snapshot(), 2)

	_, _, ok = pool.FindWorld("missing")
	assert.False(t, ok)
}
