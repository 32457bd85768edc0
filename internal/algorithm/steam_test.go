package algorithm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/tileworld/internal/items"
	"github.com/annel0/tileworld/internal/vec"
	"github.com/annel0/tileworld/internal/world"
)

func TestSteamPulseRight(t *testing.T) {
	w := newWorld(t)
	for x := 0; x <= 5; x++ {
		place(t, w, x, 3, items.SteamPipeID)
	}

	acts := OnSteamPulse(w, vec.Vec2{X: 0, Y: 3}, DirRight)
	require.Len(t, acts, 5)
	for i, act := range acts {
		assert.Equal(t, vec.Vec2{X: i + 1, Y: 3}, act.Pos)
		assert.Equal(t, EffectPulse, act.Effect)
		assert.Equal(t, i+1, act.Hop)
		if i > 0 {
			assert.Greater(t, act.Delay, acts[i-1].Delay, "задержка строго растёт")
		}
	}
	assert.Equal(t, 100*time.Millisecond, acts[0].Delay)
}

func TestSteamPulseStopsOutsideNetwork(t *testing.T) {
	w := newWorld(t)
	place(t, w, 5, 5, items.SteamPipeID)
	place(t, w, 5, 6, items.SteamPipeID)
	place(t, w, 5, 7, items.DirtID)
	place(t, w, 5, 8, items.SteamPipeID)

	acts := OnSteamPulse(w, vec.Vec2{X: 5, Y: 5}, DirDown)
	require.Len(t, acts, 1)
	assert.Equal(t, vec.Vec2{X: 5, Y: 6}, acts[0].Pos)

	assert.Empty(t, OnSteamPulse(w, vec.Vec2{X: 5, Y: 5}, DirLeft))
	assert.Empty(t, OnSteamPulse(w, vec.Vec2{X: 0, Y: 0}, DirLeft), "граница мира")
}

func TestSteamPulseLengthCap(t *testing.T) {
	w, err := world.New("steam", 60, 5, items.Default())
	require.NoError(t, err)
	for x := 0; x < 60; x++ {
		place(t, w, x, 2, items.SteamPipeID)
	}

	acts := OnSteamPulse(w, vec.Vec2{X: 0, Y: 2}, DirRight)
	require.Len(t, acts, SteamPowerLength)
	assert.Equal(t, vec.Vec2{X: SteamPowerLength, Y: 2}, acts[len(acts)-1].Pos)
}

func TestSteamPulseNoDirection(t *testing.T) {
	w := newWorld(t)
	place(t, w, 2, 2, items.SteamVentID)
	place(t, w, 3, 2, items.SteamPipeID)

	acts := OnSteamPulse(w, vec.Vec2{X: 2, Y: 2}, DirNone)
	require.Len(t, acts, 1)
	assert.Equal(t, EffectActivateVent, acts[0].Effect)
	assert.Equal(t, 1, acts[0].Hop)

	place(t, w, 4, 4, items.DirtID)
	assert.Empty(t, OnSteamPulse(w, vec.Vec2{X: 4, Y: 4}, DirNone))
}

func TestSteamToggleFiresOnce(t *testing.T) {
	w := newWorld(t)
	place(t, w, 1, 1, items.SteamPipeID)
	door := place(t, w, 2, 1, items.SteamDoorID)

	acts := OnSteamPulse(w, vec.Vec2{X: 1, Y: 1}, DirRight)
	require.Len(t, acts, 1)
	require.Equal(t, EffectOpenDoor, acts[0].Effect)

	res := OnSteamActive(w, acts[0])
	assert.Equal(t, SteamResult{Fired: true, TileChanged: true}, res)
	assert.True(t, door.Flags.Has(world.FlagOpen))

	assert.Equal(t, SteamResult{}, OnSteamActive(w, acts[0]), "повтор того же срабатывания ничего не меняет")

	acts = OnSteamPulse(w, vec.Vec2{X: 1, Y: 1}, DirRight)
	require.Equal(t, EffectCloseDoor, acts[0].Effect)
	OnSteamActive(w, acts[0])
	assert.False(t, door.Flags.Has(world.FlagOpen))
}

func TestSteamActiveRevalidates(t *testing.T) {
	w := newWorld(t)
	place(t, w, 1, 1, items.SteamPipeID)
	lamp := place(t, w, 2, 1, items.SteamLampID)
	acts := OnSteamPulse(w, vec.Vec2{X: 1, Y: 1}, DirRight)
	require.Len(t, acts, 1)

	lamp.SetForeground(items.DirtID)
	assert.Equal(t, SteamResult{}, OnSteamActive(w, acts[0]), "предмет сменился до срабатывания")

	engine := place(t, w, 3, 3, items.SteamEngineID)
	res := OnSteamActive(w, SteamActivation{Pos: engine.Pos(), Item: items.SteamEngineID, Effect: EffectEngineSpurt})
	assert.Equal(t, SteamResult{Fired: true}, res)
}

func TestSteamEffectNames(t *testing.T) {
	assert.Equal(t, "OPEN_DOOR", EffectOpenDoor.String())
	assert.Equal(t, "UNKNOWN", SteamEffect(200).String())
}
