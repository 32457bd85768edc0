package vec

import "math"

// TileSize размер тайла в пикселях мировой системы координат
const TileSize = 32

// Vec2Float представляет 2D координаты с плавающей точкой (в пикселях)
type Vec2Float struct {
	X, Y float32
}

// ToTile преобразует пиксельные координаты в координаты тайла
func (v Vec2Float) ToTile() Vec2 {
	return Vec2{
		X: int(math.Floor(float64(v.X) / TileSize)),
		Y: int(math.Floor(float64(v.Y) / TileSize)),
	}
}

// FromTile возвращает пиксельные координаты левого верхнего угла тайла
func FromTile(v Vec2) Vec2Float {
	return Vec2Float{X: float32(v.X * TileSize), Y: float32(v.Y * TileSize)}
}

// TileCenter возвращает пиксельные координаты центра тайла
func TileCenter(v Vec2) Vec2Float {
	return Vec2Float{X: float32(v.X*TileSize) + TileSize/2, Y: float32(v.Y*TileSize) + TileSize/2}
}

// Add складывает два вектора
func (v Vec2Float) Add(other Vec2Float) Vec2Float {
	return Vec2Float{X: v.X + other.X, Y: v.Y + other.Y}
}

// Sub вычитает вектор
func (v Vec2Float) Sub(other Vec2Float) Vec2Float {
	return Vec2Float{X: v.X - other.X, Y: v.Y - other.Y}
}

// Length возвращает длину вектора
func (v Vec2Float) Length() float64 {
	return math.Sqrt(float64(v.X)*float64(v.X) + float64(v.Y)*float64(v.Y))
}

// DistanceTo вычисляет расстояние до другой точки
func (v Vec2Float) DistanceTo(other Vec2Float) float64 {
	return v.Sub(other).Length()
}
