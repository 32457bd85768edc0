package world

import (
	"github.com/annel0/tileworld/internal/items"
	"github.com/annel0/tileworld/internal/vec"
)

// WorldObject предмет, лежащий в мире
type WorldObject struct {
	ID     uint32
	ItemID items.ID
	Amount uint8
	Flags  uint8
	Pos    vec.Vec2Float
}

// Tile координаты тайла, на котором лежит объект
func (o *WorldObject) Tile() vec.Vec2 {
	return o.Pos.ToTile()
}
