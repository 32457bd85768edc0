package algorithm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/tileworld/internal/items"
	"github.com/annel0/tileworld/internal/protocol"
	"github.com/annel0/tileworld/internal/vec"
	"github.com/annel0/tileworld/internal/world"
)

type testPlayer struct {
	user int32
	role world.Role
	pos  vec.Vec2Float
}

func (p *testPlayer) ConnID() uint64 { return uint64(p.user) }
func (p *testPlayer) UserID() int32 { return p.user }
func (p *testPlayer) NetID() int32 { return p.user }
func (p *testPlayer) Name() string { return "tester" }
func (p *testPlayer) Role() world.Role { return p.role }
func (p *testPlayer) Position() vec.Vec2Float { return p.pos }
func (p *testPlayer) SetPosition(pos vec.Vec2Float) { p.pos = pos }
func (p *testPlayer) PunchRange() int { return 4 }
func (p *testPlayer) BuildRange() int { return 4 }
func (p *testPlayer) Inventory() world.Inventory { return nil }
func (p *testPlayer) Send(*protocol.GamePacket) {}

func newWorld(t *testing.T) *world.World {
	t.Helper()
	w, err := world.New("algo", 20, 20, items.Default())
	require.NoError(t, err)
	return w
}

func place(t *testing.T, w *world.World, x, y int, id items.ID) *world.Tile {
	t.Helper()
	tile, ok := w.Tile(x, y)
	require.True(t, ok)
	require.True(t, tile.SetForeground(id))
	return tile
}

func idx(w *world.World, x, y int) int {
	return vec.Vec2{X: x, Y: y}.Index(w.Width)
}

func TestGeometryFor(t *testing.T) {
	cat := items.Default()

	tests := []struct {
		item items.ID
		want LockGeometry
		ok   bool
	}{
		{items.SmallLockID, LockGeometry{Radius: 2, MaxTiles: 10}, true},
		{items.BigLockID, LockGeometry{Radius: 4, MaxTiles: 48}, true},
		{items.HugeLockID, LockGeometry{Radius: 8, MaxTiles: 200}, true},
		{items.SteamLockID, LockGeometry{Radius: 3, MaxTiles: 49}, true},
		{items.WorldLockID, LockGeometry{}, false},
		{items.DirtID, LockGeometry{}, false},
	}
	for _, tt := range tests {
		it, _ := cat.Get(tt.item)
		got, ok := GeometryFor(it)
		assert.Equal(t, tt.ok, ok, "item %d", tt.item)
		assert.Equal(t, tt.want, got, "item %d", tt.item)
	}
}

func TestOnLockApplySmallLock(t *testing.T) {
	w := newWorld(t)
	lock := place(t, w, 10, 10, items.SmallLockID)
	place(t, w, 11, 10, items.DirtID)
	place(t, w, 12, 10, items.DirtID)
	place(t, w, 10, 11, items.RockID)
	place(t, w, 8, 8, items.DirtID)   // в квадрате, но не связан с замком
	place(t, w, 10, 14, items.DirtID) // вне квадрата

	claimed, err := OnLockApply(w, vec.Vec2{X: 10, Y: 10}, 42, false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{idx(w, 11, 10), idx(w, 12, 10), idx(w, 10, 11)}, claimed)

	le := lock.Extra.(*world.LockExtra)
	assert.Equal(t, int32(42), le.OwnerID)
	assert.True(t, lock.Flags.Has(world.FlagLocked))
	assert.Equal(t, uint16(idx(w, 10, 10)), lock.Parent, "замок указывает сам на себя")

	for _, pos := range [][2]int{{8, 8}, {10, 14}, {9, 10}} {
		tile, _ := w.Tile(pos[0], pos[1])
		assert.False(t, tile.Flags.Has(world.FlagLocked), "тайл %v не захвачен", pos)
	}

	tile, _ := w.Tile(12, 10)
	assert.Equal(t, uint16(idx(w, 10, 10)), tile.Parent)
}

func TestOnLockApplyIgnoreAir(t *testing.T) {
	w := newWorld(t)
	place(t, w, 10, 10, items.SmallLockID)

	claimed, err := OnLockApply(w, vec.Vec2{X: 10, Y: 10}, 1, true)
	require.NoError(t, err)
	assert.Len(t, claimed, 10, "пустые тайлы захватываются до предела класса")
	for _, i := range claimed {
		p := vec.FromIndex(i, w.Width)
		assert.LessOrEqual(t, p.Chebyshev(vec.Vec2{X: 10, Y: 10}), 2)
	}
	assert.Equal(t, idx(w, 9, 10), claimed[0], "обход начинается слева")
}

func TestOnLockApplyConnectedFloor(t *testing.T) {
	w := newWorld(t)
	lockPos := vec.Vec2{X: 10, Y: 10}
	place(t, w, 10, 10, items.SmallLockID)
	for y := 7; y <= 13; y++ {
		for x := 7; x <= 13; x++ {
			if x != 10 || y != 10 {
				place(t, w, x, y, items.DirtID)
			}
		}
	}
	place(t, w, 10, 14, items.DirtID) // отделён пустым рядом

	claimed, err := OnLockApply(w, lockPos, 1, false)
	require.NoError(t, err)

	var want []int
	for y := 8; y <= 12; y++ {
		for x := 8; x <= 12; x++ {
			if x != 10 || y != 10 {
				want = append(want, idx(w, x, y))
			}
		}
	}
	assert.ElementsMatch(t, want, claimed, "весь связанный квадрат, предел класса не режет область")

	for _, pos := range [][2]int{{7, 10}, {13, 13}, {10, 7}, {10, 14}} {
		tile, _ := w.Tile(pos[0], pos[1])
		assert.False(t, tile.Flags.Has(world.FlagLocked), "тайл %v вне квадрата", pos)
		assert.False(t, IsLockNeighbour(w, tile, lockPos, false))
	}
	for _, i := range claimed {
		tile, _ := w.TileByIndex(i)
		assert.True(t, IsLockNeighbour(w, tile, lockPos, false), "захвачено ровно то, что считается соседями")
	}

	claimedAgain, released := OnLockReApply(w, lockPos)
	assert.Nil(t, claimedAgain)
	assert.Nil(t, released)
}

func TestOnLockApplyConflict(t *testing.T) {
	w := newWorld(t)
	place(t, w, 5, 5, items.SmallLockID)
	place(t, w, 6, 5, items.DirtID)
	place(t, w, 7, 5, items.DirtID)
	_, err := OnLockApply(w, vec.Vec2{X: 5, Y: 5}, 1, false)
	require.NoError(t, err)

	other := place(t, w, 8, 5, items.SmallLockID)
	_, err = OnLockApply(w, vec.Vec2{X: 8, Y: 5}, 2, false)
	assert.ErrorIs(t, err, world.ErrAlreadyLocked)

	assert.Equal(t, int32(-1), other.Extra.(*world.LockExtra).OwnerID, "при конфликте ничего не меняется")
	tile, _ := w.Tile(7, 5)
	assert.Equal(t, uint16(idx(w, 5, 5)), tile.Parent)

	_, err = OnLockApply(w, vec.Vec2{X: 8, Y: 5}, 1, false)
	require.NoError(t, err, "тот же владелец может перекрыть свою область")
	assert.Equal(t, uint16(idx(w, 8, 5)), tile.Parent)
}

func TestOnLockApplyStaleMarker(t *testing.T) {
	w := newWorld(t)
	stale := place(t, w, 11, 10, items.DirtID)
	stale.Flags |= world.FlagLocked
	stale.Parent = uint16(idx(w, 0, 0)) // там давно нет замка

	place(t, w, 10, 10, items.SmallLockID)
	claimed, err := OnLockApply(w, vec.Vec2{X: 10, Y: 10}, 3, false)
	require.NoError(t, err)
	assert.Equal(t, []int{idx(w, 11, 10)}, claimed)
	assert.Equal(t, uint16(idx(w, 10, 10)), stale.Parent)
}

func TestOnLockApplyNotALock(t *testing.T) {
	w := newWorld(t)
	place(t, w, 1, 1, items.DirtID)

	_, err := OnLockApply(w, vec.Vec2{X: 1, Y: 1}, 1, false)
	assert.ErrorIs(t, err, world.ErrUnknownItem)

	_, err = OnLockApply(w, vec.Vec2{X: 50, Y: 1}, 1, false)
	assert.ErrorIs(t, err, world.ErrOutOfBounds)
}

func TestOnLockReApply(t *testing.T) {
	w := newWorld(t)
	lockPos := vec.Vec2{X: 10, Y: 10}
	place(t, w, 10, 10, items.SmallLockID)
	place(t, w, 11, 10, items.DirtID)
	_, err := OnLockApply(w, lockPos, 1, false)
	require.NoError(t, err)

	claimed, released := OnLockReApply(w, lockPos)
	assert.Nil(t, claimed, "без изменений повторный расчёт ничего не меняет")
	assert.Nil(t, released)

	place(t, w, 12, 10, items.DirtID)
	claimed, released = OnLockReApply(w, lockPos)
	assert.Equal(t, []int{idx(w, 12, 10)}, claimed)
	assert.Nil(t, released)

	tile, _ := w.Tile(11, 10)
	tile.Clear()
	claimed, released = OnLockReApply(w, lockPos)
	assert.Nil(t, claimed)
	assert.Equal(t, []int{idx(w, 11, 10), idx(w, 12, 10)}, released, "оторванный тайл тоже освобождается")
	assert.False(t, tile.Flags.Has(world.FlagLocked))
}

func TestOnLockRemove(t *testing.T) {
	w := newWorld(t)
	lockPos := vec.Vec2{X: 10, Y: 10}
	lock := place(t, w, 10, 10, items.SmallLockID)
	place(t, w, 11, 10, items.DirtID)
	place(t, w, 10, 9, items.DirtID)
	_, err := OnLockApply(w, lockPos, 1, false)
	require.NoError(t, err)

	lock.SetForeground(items.BlankID)
	released := OnLockRemove(w, lockPos, 2)
	assert.Equal(t, []int{idx(w, 10, 9), idx(w, 11, 10)}, released)
	assert.False(t, lock.Flags.Has(world.FlagLocked))
}

func TestIsLockNeighbour(t *testing.T) {
	w := newWorld(t)
	lockPos := vec.Vec2{X: 10, Y: 10}
	place(t, w, 10, 10, items.SmallLockID)
	near := place(t, w, 11, 10, items.DirtID)
	lonely := place(t, w, 8, 8, items.DirtID)
	far, _ := w.Tile(15, 15)

	assert.True(t, IsLockNeighbour(w, near, lockPos, false))
	assert.False(t, IsLockNeighbour(w, lonely, lockPos, false), "нет связи с замком")
	assert.True(t, IsLockNeighbour(w, lonely, lockPos, true))
	assert.False(t, IsLockNeighbour(w, far, lockPos, true), "вне квадрата")

	self, _ := w.TileAt(lockPos)
	assert.False(t, IsLockNeighbour(w, self, lockPos, true))
}

func TestWorldLock(t *testing.T) {
	w := newWorld(t)
	place(t, w, 3, 3, items.WorldLockID)

	require.NoError(t, OnWorldLockApply(w, vec.Vec2{X: 3, Y: 3}, 5))
	assert.Equal(t, int32(5), w.OwnerID)
	assert.Equal(t, int32(idx(w, 3, 3)), w.MainLockID)
	main, ok := w.MainLock()
	require.True(t, ok)
	assert.Equal(t, int32(5), main.OwnerID)

	place(t, w, 6, 6, items.WorldLockID)
	err := OnWorldLockApply(w, vec.Vec2{X: 6, Y: 6}, 9)
	assert.ErrorIs(t, err, world.ErrAlreadyLocked)
	err = OnWorldLockApply(w, vec.Vec2{X: 6, Y: 6}, 5)
	assert.ErrorIs(t, err, world.ErrAlreadyLocked, "второй мировой замок не ставится")

	OnWorldLockRemove(w)
	assert.Equal(t, int32(-1), w.OwnerID)
	assert.Equal(t, int32(-1), w.MainLockID)
}

func TestLockGrantsAccess(t *testing.T) {
	w := newWorld(t)
	place(t, w, 10, 10, items.SmallLockID)
	tile := place(t, w, 11, 10, items.DirtID)
	_, err := OnLockApply(w, vec.Vec2{X: 10, Y: 10}, 1, false)
	require.NoError(t, err)

	owner := &testPlayer{user: 1}
	stranger := &testPlayer{user: 2}
	assert.NoError(t, w.CanBuild(owner, tile))
	assert.ErrorIs(t, w.CanBuild(stranger, tile), world.ErrNoAccess)

	dev := &testPlayer{user: 3, role: world.RoleDeveloper}
	assert.NoError(t, w.CanBuild(dev, tile))
}
