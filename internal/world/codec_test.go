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

// populate заполняет мир тайлами всех вариантов доп. данных
func populate(t *testing.T, w *World) {
	t.Helper()
	set := func(x, y int, id items.ID) *Tile {
		tile, ok := w.Tile(x, y)
		require.True(t, ok)
		require.True(t, tile.SetForeground(id))
		return tile
	}

	for x := 0; x < w.Width; x++ {
		set(x, w.Height-1, items.BedrockID)
		tile, _ := w.Tile(x, w.Height-2)
		tile.SetBackground(items.CaveBackID)
	}

	door := set(1, 1, items.DoorID)
	d := door.Extra.(*DoorExtra)
	d.Label = "HOME"
	d.Destination = "START"
	d.DoorID = "A1"
	d.Locked = true
	require.NoError(t, d.SetPassword("pw"))

	set(2, 1, items.SignID).Extra.(*SignExtra).Label = "hello"

	lock := set(3, 1, items.SmallLockID)
	le := lock.Extra.(*LockExtra)
	le.OwnerID = 42
	le.Flags = LockPublic
	le.Access = []int32{7, 9}

	seed := set(4, 1, items.DirtSeedID)
	se := seed.Extra.(*SeedExtra)
	se.Planted = time.Unix(1700000000, 123)
	se.Fruit = 3
	se.Spliced = true

	set(5, 1, items.DiceID).Extra.(*FlagsExtra).Value = 5

	weather := set(6, 1, items.WeatherSunID)
	we := weather.Extra.(*WeatherExtra)
	we.Color = 0xff00ff
	we.Subscribers = []int32{1, 2, 3}

	man := set(7, 1, items.MannequinID)
	me := man.Extra.(*MannequinExtra)
	me.Label = "bob"
	me.Clothing[2] = 48

	claimed, _ := w.Tile(3, 2)
	claimed.SetForeground(items.DirtID)
	claimed.Flags |= FlagLocked | FlagWater
	claimed.Parent = uint16(lock.Index(w.Width))
	claimed.HitCount = 2

	_, _, err := w.AddObject(items.GemsID, 10, vec.TileCenter(vec.Vec2{X: 8, Y: 8}), 0)
	require.NoError(t, err)
	_, _, err = w.AddObject(items.DirtSeedID, 1, vec.TileCenter(vec.Vec2{X: 9, Y: 8}), 1)
	require.NoError(t, err)

	w.ID = 77
	w.OwnerID = 42
	w.MainLockID = -1
	w.WeatherID = 3
	w.BaseWeatherID = 1
	w.Flags = WorldPublic
	w.CreatedAt = time.Unix(1600000000, 0)
	w.UpdatedAt = time.Unix(1600000100, 0)
	w.BanPlayer(13, time.Unix(1650000000, 0))
}

func TestTileRoundTrip(t *testing.T) {
	w := newTestWorld(t)
	populate(t, w)

	for _, pos := range []vec.Vec2{{X: 1, Y: 1}, {X: 2, Y: 1}, {X: 3, Y: 1}, {X: 4, Y: 1}, {X: 5, Y: 1}, {X: 6, Y: 1}, {X: 7, Y: 1}, {X: 3, Y: 2}} {
		src, _ := w.TileAt(pos)

		b := protocol.NewBuffer(64)
		src.Pack(b, ModePersist)

		dst := newTile(pos.X, pos.Y, w.Catalog())
		require.NoError(t, dst.Unpack(protocol.NewReader(b.Bytes()), ModePersist))

		again := protocol.NewBuffer(64)
		dst.Pack(again, ModePersist)
		assert.Equal(t, b.Bytes(), again.Bytes(), "тайл %v", pos)
		assert.Equal(t, src.Extra, dst.Extra, "тайл %v", pos)
	}
}

func TestWorldRoundTrip(t *testing.T) {
	w := newTestWorld(t)
	populate(t, w)

	data := w.Marshal()
	restored, err := Unmarshal(data, w.Catalog())
	require.NoError(t, err)

	assert.Equal(t, data, restored.Marshal(), "повторная упаковка побайтно совпадает")
	assert.Equal(t, uint32(77), restored.ID)
	assert.Equal(t, "TEST", restored.Name)
	assert.Equal(t, int32(42), restored.OwnerID)
	assert.True(t, restored.HasBan(13))
	assert.Equal(t, 2, restored.ObjectCount())
	assert.Equal(t, w.NextObjectID(), restored.NextObjectID())

	door, _ := restored.Tile(1, 1)
	assert.True(t, door.Extra.(*DoorExtra).CheckPassword("pw"))
}

func TestNetworkModeOmitsPrivateFields(t *testing.T) {
	w := newTestWorld(t)
	populate(t, w)
	door, _ := w.Tile(1, 1)

	persist := protocol.NewBuffer(64)
	door.Pack(persist, ModePersist)
	network := protocol.NewBuffer(64)
	door.Pack(network, ModeNetwork)
	assert.Less(t, network.Len(), persist.Len(), "хэш пароля и назначение не уходят клиенту")

	dst := newTile(1, 1, w.Catalog())
	require.NoError(t, dst.Unpack(protocol.NewReader(network.Bytes()), ModeNetwork))
	de := dst.Extra.(*DoorExtra)
	assert.Equal(t, "HOME", de.Label)
	assert.Empty(t, de.PasswordHash)

	blob := w.PackNetwork()
	r := protocol.NewReader(blob)
	assert.Equal(t, WorldFormatVersion, r.U16())
	assert.Equal(t, uint32(WorldPublic), r.U32())
	assert.Equal(t, "TEST", r.String())
	assert.Equal(t, uint32(20), r.U32())
	assert.Equal(t, uint32(20), r.U32())
	require.NoError(t, r.Err())
}

func TestUnmarshalCorrupt(t *testing.T) {
	w := newTestWorld(t)
	populate(t, w)
	data := w.Marshal()

	t.Run("truncated", func(t *testing.T) {
		_, err := Unmarshal(data[:len(data)-3], w.Catalog())
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("wrong version", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[0] = 9
		_, err := Unmarshal(bad, w.Catalog())
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("trailing bytes", func(t *testing.T) {
		bad := append(append([]byte(nil), data...), 0)
		_, err := Unmarshal(bad, w.Catalog())
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("extra type mismatch", func(t *testing.T) {
		b := protocol.NewBuffer(32)
		b.WriteU16(items.DirtID)
		b.WriteU16(0)
		b.WriteU16(0)
		b.WriteU16(uint16(FlagTileExtra))
		b.WriteU8(0)
		b.WriteU8(uint8(items.ExtraSign))
		b.WriteString("x")
		b.WriteI32(-1)

		tile := newTile(0, 0, w.Catalog())
		err := tile.Unpack(protocol.NewReader(b.Bytes()), ModePersist)
		assert.ErrorIs(t, err, ErrCorrupt, "SIGN на тайле с землёй - повреждение")
	})

	t.Run("empty", func(t *testing.T) {
		_, err := Unmarshal(nil, w.Catalog())
		assert.ErrorIs(t, err, ErrCorrupt)
	})
}
