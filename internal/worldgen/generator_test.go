package worldgen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/tileworld/internal/items"
	"github.com/annel0/tileworld/internal/protocol"
	"github.com/annel0/tileworld/internal/world"
)

func gridBytes(w *world.World) []byte {
	b := protocol.NewBuffer(w.TileCount() * 9)
	w.PackGrid(b, world.ModePersist)
	return b.Bytes()
}

func TestGenerateLayout(t *testing.T) {
	cat := items.Default()
	w, err := Generate("start", world.DefaultWidth, world.DefaultHeight, 7, cat)
	require.NoError(t, err)
	assert.Equal(t, "START", w.Name)

	for x := 0; x < w.Width; x++ {
		bottom, _ := w.Tile(x, w.Height-1)
		assert.Equal(t, items.BedrockID, bottom.Foreground, "нижний ряд из бедрока, x=%d", x)
		top, _ := w.Tile(x, 0)
		assert.True(t, top.IsEmpty(), "верхний ряд пустой, x=%d", x)
	}

	door, ok := w.MainDoor()
	require.True(t, ok, "в мире есть главная дверь")
	under, _ := w.Tile(door.X, door.Y+1)
	assert.Equal(t, items.BedrockID, under.Foreground)
	tile, _ := w.TileAt(door)
	assert.Equal(t, MainDoorLabel, tile.Extra.(*world.DoorExtra).Label)
	assert.Equal(t, door, SpawnPoint(w))
}

func TestGenerateIsDeterministic(t *testing.T) {
	cat := items.Default()
	a, err := Generate("a", 60, 40, 42, cat)
	require.NoError(t, err)
	b, err := Generate("a", 60, 40, 42, cat)
	require.NoError(t, err)
	c, err := Generate("a", 60, 40, 43, cat)
	require.NoError(t, err)

	assert.Equal(t, gridBytes(a), gridBytes(b), "одинаковый сид - одинаковая сетка")
	assert.NotEqual(t, gridBytes(a), gridBytes(c))
}

func TestGenerateRoundTrip(t *testing.T) {
	fixed := time.Unix(1700000000, 0)
	g := &Generator{Seed: 1, Now: func() time.Time { return fixed }}
	w, err := g.Generate("round", 30, 20, items.Default())
	require.NoError(t, err)
	assert.Equal(t, fixed, w.CreatedAt)

	restored, err := world.Unmarshal(w.Marshal(), w.Catalog())
	require.NoError(t, err)
	assert.Equal(t, w.Marshal(), restored.Marshal())
}

func TestGenerateValidation(t *testing.T) {
	cat := items.Default()
	_, err := Generate("bad name!", 10, 10, 1, cat)
	assert.ErrorIs(t, err, world.ErrInvalidName)

	tiny, err := Generate("tiny", 4, 4, 1, cat)
	require.NoError(t, err)
	_, ok := tiny.MainDoor()
	assert.False(t, ok, "в крошечном мире нет рельефа")
	assert.Equal(t, 2, SpawnPoint(tiny).X)
}
