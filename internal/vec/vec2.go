package vec

import "math"

// Vec2 представляет координаты тайла в сетке мира
type Vec2 struct {
	X, Y int
}

// Index возвращает индекс тайла в row-major сетке ширины width
func (v Vec2) Index(width int) int {
	return v.Y*width + v.X
}

// FromIndex восстанавливает координаты по индексу тайла
func FromIndex(index, width int) Vec2 {
	return Vec2{X: index % width, Y: index / width}
}

// InBounds проверяет, лежит ли точка в [0,width)×[0,height)
func (v Vec2) InBounds(width, height int) bool {
	return v.X >= 0 && v.Y >= 0 && v.X < width && v.Y < height
}

// Add складывает координаты
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Y: v.Y + other.Y}
}

// Chebyshev возвращает расстояние Чебышёва (max(|dx|,|dy|))
func (v Vec2) Chebyshev(other Vec2) int {
	dx := abs(v.X - other.X)
	dy := abs(v.Y - other.Y)
	if dx > dy {
		return dx
	}
	return dy
}

// Manhattan возвращает манхэттенское расстояние
func (v Vec2) Manhattan(other Vec2) int {
	return abs(v.X-other.X) + abs(v.Y-other.Y)
}

// DistanceTo вычисляет расстояние до другой точки
func (v Vec2) DistanceTo(other Vec2) float64 {
	dx := float64(v.X - other.X)
	dy := float64(v.Y - other.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
