package world

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/tileworld/internal/items"
	"github.com/annel0/tileworld/internal/protocol"
	"github.com/annel0/tileworld/internal/vec"
)

// fakePlayer минимальная реализация Player для тестов
type fakePlayer struct {
	conn   uint64
	user   int32
	role   Role
	pos    vec.Vec2Float
	sent   []*protocol.GamePacket
	invent map[items.ID]uint8
}

func newFakePlayer(conn uint64, user int32) *fakePlayer {
	return &fakePlayer{conn: conn, user: user, invent: make(map[items.ID]uint8)}
}

func (p *fakePlayer) ConnID() uint64 { return p.conn }
func (p *fakePlayer) UserID() int32 { return p.user }
func (p *fakePlayer) NetID() int32 { return int32(p.conn) }
func (p *fakePlayer) Name() string { return "tester" }
func (p *fakePlayer) Role() Role { return p.role }
func (p *fakePlayer) Position() vec.Vec2Float { return p.pos }
func (p *fakePlayer) SetPosition(pos vec.Vec2Float) { p.pos = pos }
func (p *fakePlayer) PunchRange() int { return 4 }
func (p *fakePlayer) BuildRange() int { return 4 }
func (p *fakePlayer) Inventory() Inventory { return p }
func (p *fakePlayer) Send(pkt *protocol.GamePacket) { p.sent = append(p.sent, pkt) }
func (p *fakePlayer) Contains(id items.ID, n uint8) bool { return p.invent[id] >= n }
func (p *fakePlayer) Add(id items.ID, n uint8) uint8 { p.invent[id] += n; return n }
func (p *fakePlayer) Erase(id items.ID, n uint8) bool {
	if p.invent[id] < n {
		return false
	}
	p.invent[id] -= n
	return true
}

func newTestWorld(t *testing.T) *World {
	t.Helper()
	w, err := New("test", 20, 20, items.Default())
	require.NoError(t, err)
	return w
}

func TestNewWorldValidation(t *testing.T) {
	cat := items.Default()

	w, err := New("  start ", 10, 10, cat)
	require.NoError(t, err)
	assert.Equal(t, "START", w.Name, "имя мира приводится к верхнему регистру")
	assert.Equal(t, int32(-1), w.OwnerID)
	assert.Equal(t, int32(-1), w.MainLockID)
	assert.Equal(t, 100, w.TileCount())

	tile, ok := w.Tile(3, 7)
	require.True(t, ok)
	assert.Equal(t, 7*10+3, tile.Index(w.Width))

	_, err = New("this-is-bad", 10, 10, cat)
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = New("ABCDEFGHIJKLMNOPQRSTUVWXYZ", 10, 10, cat)
	assert.ErrorIs(t, err, ErrInvalidName, "имя длиннее 24 символов")

	_, err = New("HUGE", 300, 300, cat)
	assert.ErrorIs(t, err, ErrInvalidSize)

	_, ok = w.Tile(10, 0)
	assert.False(t, ok, "правая граница исключительная")
}

func TestPlayersAndBroadcast(t *testing.T) {
	w := newTestWorld(t)
	a := newFakePlayer(7, 1)
	b := newFakePlayer(3, 2)
	w.AddPlayer(a)
	w.AddPlayer(b)

	var order []uint64
	w.Broadcast(func(p Player) { order = append(order, p.ConnID()) })
	assert.Equal(t, []uint64{3, 7}, order, "рассылка идёт по возрастанию ID соединения")

	w.SendOthers(3, protocol.Notice(1, "hi"))
	assert.Len(t, a.sent, 1)
	assert.Len(t, b.sent, 0)

	tile, _ := w.Tile(1, 1)
	tile.DevPunchAdd(7)
	tile.DevPunchAdd(3)

	assert.True(t, w.RemovePlayer(7))
	assert.False(t, tile.DevPunchHas(7), "уход игрока снимает его маркеры dev-удара")
	assert.True(t, tile.DevPunchHas(3))
	assert.Equal(t, 1, w.PlayerCount())
	assert.False(t, w.RemovePlayer(7))
}

func TestObjectsMergeAndCollectExactlyOnce(t *testing.T) {
	w := newTestWorld(t)
	pos := vec.TileCenter(vec.Vec2{X: 2, Y: 2})

	first, merged, err := w.AddObject(items.DirtID, 5, pos, 0)
	require.NoError(t, err)
	assert.False(t, merged)

	second, merged, err := w.AddObject(items.DirtID, 10, pos.Add(vec.Vec2Float{X: 3}), 0)
	require.NoError(t, err)
	assert.True(t, merged, "стопка на том же тайле объединяется")
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, uint8(15), second.Amount)

	full, merged, err := w.AddObject(items.DirtID, 190, pos, 0)
	require.NoError(t, err)
	assert.False(t, merged, "переполнение MaxStack создаёт новую стопку")
	assert.NotEqual(t, first.ID, full.ID)

	_, _, err = w.AddObject(items.DirtID, 1, vec.Vec2Float{X: -1, Y: 0}, 0)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	_, _, err = w.AddObject(9999, 1, pos, 0)
	assert.ErrorIs(t, err, ErrUnknownItem)

	got, err := w.CollectObject(first.ID)
	require.NoError(t, err)
	assert.Equal(t, uint8(15), got.Amount)

	_, err = w.CollectObject(first.ID)
	assert.ErrorIs(t, err, ErrAlreadyCollected, "второй сборщик получает already collected")
	assert.True(t, IsRace(err))

	_, err = w.ModifyObject(first.ID, 3)
	assert.ErrorIs(t, err, ErrObjectNotFound)

	o, err := w.ModifyObject(full.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, full.ID, o.ID)
	assert.Equal(t, 0, w.ObjectCount())
	assert.Equal(t, full.ID, w.NextObjectID(), "ID объектов не переиспользуются")
}

func TestBans(t *testing.T) {
	w := newTestWorld(t)
	now := time.Now()

	w.BanPlayer(5, now)
	w.BanPlayer(2, now)
	assert.True(t, w.HasBan(5))
	assert.Equal(t, int32(2), w.Bans()[0].UserID)

	p := newFakePlayer(1, 5)
	tile, _ := w.Tile(0, 0)
	err := w.CanBuild(p, tile)
	assert.ErrorIs(t, err, ErrBanned)
	assert.True(t, IsPolicyDenial(err))

	assert.True(t, w.Unban(5))
	assert.False(t, w.Unban(5))
	w.ClearBans()
	assert.Empty(t, w.Bans())
}

func TestAccessThroughLock(t *testing.T) {
	w := newTestWorld(t)
	lockTile, _ := w.Tile(5, 5)
	require.True(t, lockTile.SetForeground(items.SmallLockID))
	lock := lockTile.Extra.(*LockExtra)
	lock.OwnerID = 10

	claimed, _ := w.Tile(5, 6)
	claimed.Flags |= FlagLocked
	claimed.Parent = uint16(lockTile.Index(w.Width))

	owner := newFakePlayer(1, 10)
	stranger := newFakePlayer(2, 20)

	assert.NoError(t, w.CanBuild(owner, claimed))
	assert.ErrorIs(t, w.CanBuild(stranger, claimed), ErrNoAccess)

	lock.AddAccess(20)
	assert.NoError(t, w.CanBuild(stranger, claimed))
	lock.RemoveAccess(20)

	lock.Flags |= LockPublic
	assert.NoError(t, w.CanBuild(stranger, claimed), "публичный замок пускает всех")
	lock.Flags = 0

	stranger.role = RoleDeveloper
	assert.NoError(t, w.CanBuild(stranger, claimed), "разработчик игнорирует замки")

	free, _ := w.Tile(15, 15)
	assert.True(t, w.HasAccess(20, free), "в ничейном мире свободные тайлы доступны всем")

	// Маркер, указывающий на тайл без замка, считается устаревшим
	stale, _ := w.Tile(0, 0)
	stale.Flags |= FlagLocked
	stale.Parent = uint16(w.TileCount() - 1)
	_, _, ok := w.LockOwnerOf(stale)
	assert.False(t, ok)
}

func TestEditTile(t *testing.T) {
	w := newTestWorld(t)
	p := newFakePlayer(1, 1)

	changed, err := w.EditTile(p, EditPlace, vec.Vec2{X: 0, Y: 0}, 1, items.DirtID, false)
	require.NoError(t, err)
	assert.Len(t, changed, 4, "в углу мира квадрат радиуса 1 обрезается до 2x2")

	changed, err = w.EditTile(p, EditPlace, vec.Vec2{X: 0, Y: 0}, 1, items.DirtID, false)
	require.NoError(t, err)
	assert.Empty(t, changed, "place не трогает занятые тайлы")

	changed, err = w.EditTile(p, EditFill, vec.Vec2{X: 0, Y: 0}, 0, items.RockID, false)
	require.NoError(t, err)
	assert.Len(t, changed, 1)

	changed, err = w.EditTile(p, EditPlace, vec.Vec2{X: 5, Y: 5}, 0, items.CaveBackID, false)
	require.NoError(t, err)
	tile, _ := w.Tile(5, 5)
	assert.Equal(t, items.CaveBackID, tile.Background, "фон ставится в фоновый слой")
	assert.Len(t, changed, 1)

	// Чужой замок защищает свою область
	lockTile, _ := w.Tile(10, 10)
	lockTile.SetForeground(items.SmallLockID)
	lockTile.Extra.(*LockExtra).OwnerID = 99
	inside, _ := w.Tile(10, 11)
	inside.Flags |= FlagLocked
	inside.Parent = uint16(lockTile.Index(w.Width))

	changed, err = w.EditTile(p, EditFill, vec.Vec2{X: 10, Y: 11}, 0, items.DirtID, false)
	require.NoError(t, err)
	assert.Empty(t, changed)

	changed, err = w.EditTile(nil, EditClear, vec.Vec2{X: 10, Y: 10}, 1, 0, true)
	require.NoError(t, err)
	assert.Contains(t, changed, lockTile.Index(w.Width), "ignoreAreas снимает защиту")

	_, err = w.EditTile(p, EditPlace, vec.Vec2{X: 50, Y: 0}, 0, items.DirtID, false)
	assert.ErrorIs(t, err, ErrOutOfBounds)
	_, err = w.EditTile(p, EditPlace, vec.Vec2{X: 1, Y: 1}, 0, 4242, false)
	assert.ErrorIs(t, err, ErrUnknownItem)
	assert.True(t, IsInvalidRequest(err))

	for _, id := range []items.ID{items.SmallLockID, items.WorldLockID} {
		for _, action := range []EditAction{EditPlace, EditFill} {
			changed, err = w.EditTile(nil, action, vec.Vec2{X: 15, Y: 15}, 1, id, true)
			assert.ErrorIs(t, err, ErrUnknownItem, "замок %d", id)
			assert.Empty(t, changed)
		}
	}
	tile, _ = w.Tile(15, 15)
	assert.Equal(t, items.BlankID, tile.Foreground, "бесхозный замок не появляется")
}
