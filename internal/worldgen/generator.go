// Package worldgen создаёт новые миры: при первом входе в мир, которого нет
// в хранилище, и взамен мира с повреждёнными данными.
package worldgen

import (
	"math/rand"
	"time"

	"github.com/annel0/tileworld/internal/items"
	"github.com/annel0/tileworld/internal/vec"
	"github.com/annel0/tileworld/internal/world"
)

// Константы рельефа
const (
	SurfaceLevel   = 0.4  // Доля высоты мира над поверхностью
	SurfaceSpread  = 6    // Максимальный перепад поверхности в тайлах
	NoiseScale     = 0.08 // Масштаб шума поверхности
	PocketScale    = 0.15 // Масштаб шума карманов породы
	RockThreshold  = 0.68 // Выше - камень вместо земли
	LavaChance     = 0.15 // Шанс лавы в слое над бедроком
	MainDoorLabel  = "EXIT"
	minWorldHeight = 8
)

// Generator генерирует ландшафт мира
type Generator struct {
	Seed int64
	Now  func() time.Time
}

// NewGenerator создаёт генератор с заданным сидом
func NewGenerator(seed int64) *Generator {
	return &Generator{Seed: seed, Now: time.Now}
}

// Generate создаёт мир по умолчанию: фоновый слой пещеры, земля с волнистой
// поверхностью и карманами камня, лава над бедроком и главная дверь на
// поверхности. Один и тот же сид даёт одинаковую сетку.
func Generate(name string, width, height int, seed int64, catalog *items.Catalog) (*world.World, error) {
	return NewGenerator(seed).Generate(name, width, height, catalog)
}

// Generate см. пакетную функцию Generate
func (g *Generator) Generate(name string, width, height int, catalog *items.Catalog) (*world.World, error) {
	w, err := world.New(name, width, height, catalog)
	if err != nil {
		return nil, err
	}
	if height < minWorldHeight {
		// Слишком маленький мир остаётся пустым
		g.stamp(w)
		return w, nil
	}

	n := newNoise(g.Seed)
	rng := rand.New(rand.NewSource(g.Seed))

	bedrockRows := height / 10
	if bedrockRows < 1 {
		bedrockRows = 1
	}
	base := int(float64(height) * SurfaceLevel)
	lowest := height - bedrockRows - 2

	surface := make([]int, width)
	for x := 0; x < width; x++ {
		s := base + int((n.at1(float64(x)*NoiseScale)-0.5)*2*SurfaceSpread)
		if s < 2 {
			s = 2
		}
		if s > lowest {
			s = lowest
		}
		surface[x] = s
	}

	for x := 0; x < width; x++ {
		for y := surface[x]; y < height; y++ {
			t, _ := w.Tile(x, y)
			t.SetBackground(items.CaveBackID)

			switch {
			case y >= height-bedrockRows:
				t.SetForeground(items.BedrockID)
			case y == height-bedrockRows-1 && rng.Float64() < LavaChance:
				t.SetForeground(items.LavaID)
			case y > surface[x]+2 && n.at2(float64(x)*PocketScale, float64(y)*PocketScale) > RockThreshold:
				t.SetForeground(items.RockID)
			default:
				t.SetForeground(items.DirtID)
			}
		}
	}

	g.placeMainDoor(w, surface, rng)
	g.stamp(w)
	return w, nil
}

// placeMainDoor ставит главную дверь на поверхности и бедрок под ней
func (g *Generator) placeMainDoor(w *world.World, surface []int, rng *rand.Rand) {
	if w.Width < 3 {
		return
	}
	x := 1 + rng.Intn(w.Width-2)
	y := surface[x]

	if under, ok := w.Tile(x, y); ok {
		under.SetForeground(items.BedrockID)
	}
	door, ok := w.Tile(x, y-1)
	if !ok {
		return
	}
	door.SetForeground(items.MainDoorID)
	if d, ok := door.Extra.(*world.DoorExtra); ok {
		d.Label = MainDoorLabel
	}
}

func (g *Generator) stamp(w *world.World) {
	now := g.Now()
	w.CreatedAt = now
	w.UpdatedAt = now
}

// SpawnPoint позиция появления игрока: главная дверь мира или центр
// верхней строки, если двери нет.
func SpawnPoint(w *world.World) vec.Vec2 {
	if pos, ok := w.MainDoor(); ok {
		return pos
	}
	return vec.Vec2{X: w.Width / 2, Y: 0}
}
