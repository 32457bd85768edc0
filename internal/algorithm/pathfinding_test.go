package algorithm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/tileworld/internal/items"
	"github.com/annel0/tileworld/internal/vec"
	"github.com/annel0/tileworld/internal/world"
)

func TestFindPathBlockedTarget(t *testing.T) {
	w := newWorld(t)
	place(t, w, 5, 6, items.RockID)
	p := &testPlayer{user: 1}

	assert.False(t, OnFindPath(w, p, vec.Vec2{X: 5, Y: 5}, vec.Vec2{X: 5, Y: 6}, MoveLimits), "цель занята твёрдым блоком")
}

func TestFindPathStraight(t *testing.T) {
	w := newWorld(t)
	p := &testPlayer{user: 1}

	path, ok := FindPath(w, p, vec.Vec2{X: 5, Y: 5}, vec.Vec2{X: 5, Y: 7}, MoveLimits)
	require.True(t, ok)
	assert.Equal(t, []vec.Vec2{{X: 5, Y: 5}, {X: 5, Y: 6}, {X: 5, Y: 7}}, path)

	path, ok = FindPath(w, p, vec.Vec2{X: 5, Y: 5}, vec.Vec2{X: 5, Y: 5}, MoveLimits)
	require.True(t, ok)
	assert.Len(t, path, 1)
}

func TestFindPathDetourIsDeterministic(t *testing.T) {
	w := newWorld(t)
	place(t, w, 6, 5, items.RockID)
	p := &testPlayer{user: 1}
	from, to := vec.Vec2{X: 5, Y: 5}, vec.Vec2{X: 7, Y: 5}

	want := []vec.Vec2{{X: 5, Y: 5}, {X: 5, Y: 4}, {X: 6, Y: 4}, {X: 7, Y: 4}, {X: 7, Y: 5}}
	for i := 0; i < 5; i++ {
		path, ok := FindPath(w, p, from, to, MoveLimits)
		require.True(t, ok)
		assert.Equal(t, want, path, "обход стены всегда один и тот же")
	}
}

func TestFindPathLimits(t *testing.T) {
	w := newWorld(t)
	p := &testPlayer{user: 1}

	assert.False(t, OnFindPath(w, p, vec.Vec2{X: 5, Y: 5}, vec.Vec2{X: 9, Y: 5}, MoveLimits), "дальше Range")
	assert.False(t, OnFindPath(w, p, vec.Vec2{X: 5, Y: 5}, vec.Vec2{X: 8, Y: 9}, PathLimits{Range: 4, MaxSteps: 6}), "дальше MaxSteps")
	assert.False(t, OnFindPath(w, p, vec.Vec2{X: 5, Y: 5}, vec.Vec2{X: 25, Y: 5}, CollectLimits), "вне мира")

	// Замкнутая клетка вокруг старта
	for _, pos := range []vec.Vec2{{X: 4, Y: 5}, {X: 6, Y: 5}, {X: 5, Y: 4}, {X: 5, Y: 6}} {
		place(t, w, pos.X, pos.Y, items.RockID)
	}
	assert.False(t, OnFindPath(w, p, vec.Vec2{X: 5, Y: 5}, vec.Vec2{X: 7, Y: 7}, CollectLimits))
}

func TestFindPathDeveloperIgnoresObstacles(t *testing.T) {
	w := newWorld(t)
	place(t, w, 6, 5, items.RockID)
	place(t, w, 7, 5, items.RockID)
	dev := &testPlayer{user: 1, role: world.RoleDeveloper}

	path, ok := FindPath(w, dev, vec.Vec2{X: 5, Y: 5}, vec.Vec2{X: 7, Y: 5}, MoveLimits)
	require.True(t, ok)
	assert.Equal(t, []vec.Vec2{{X: 5, Y: 5}, {X: 6, Y: 5}, {X: 7, Y: 5}}, path)

	assert.False(t, OnFindPath(w, dev, vec.Vec2{X: 5, Y: 5}, vec.Vec2{X: 12, Y: 5}, MoveLimits), "пределы действуют и на разработчика")
}

func TestIsObstacle(t *testing.T) {
	w := newWorld(t)
	owner := &testPlayer{user: 9}
	stranger := &testPlayer{user: 2}

	rock := place(t, w, 1, 1, items.RockID)
	assert.True(t, IsObstacle(w, stranger, rock))

	blank, _ := w.Tile(2, 1)
	assert.False(t, IsObstacle(w, stranger, blank))

	steamDoor := place(t, w, 3, 1, items.SteamDoorID)
	assert.True(t, IsObstacle(w, stranger, steamDoor), "закрытая паровая дверь")
	steamDoor.Flags |= world.FlagOpen
	assert.False(t, IsObstacle(w, stranger, steamDoor))

	spikes := place(t, w, 4, 1, items.SteamSpikesID)
	assert.False(t, IsObstacle(w, stranger, spikes))
	spikes.Flags |= world.FlagOpen
	assert.True(t, IsObstacle(w, stranger, spikes), "выдвинутые шипы")

	gate := place(t, w, 5, 1, items.VIPEntranceID)
	assert.False(t, IsObstacle(w, stranger, gate), "в мире без владельца проход открыт")

	door := place(t, w, 6, 1, items.DoorID)
	door.Extra.(*world.DoorExtra).Locked = true
	w.OwnerID = 9
	assert.True(t, IsObstacle(w, stranger, gate))
	assert.False(t, IsObstacle(w, owner, gate))
	assert.True(t, IsObstacle(w, stranger, door), "запертая дверь")
	assert.False(t, IsObstacle(w, owner, door))
}
