package world

import (
	"github.com/annel0/tileworld/internal/items"
	"github.com/annel0/tileworld/internal/protocol"
	"github.com/annel0/tileworld/internal/vec"
)

// Role роль игрока
type Role uint8

const (
	RolePlayer Role = iota
	RoleModerator
	RoleDeveloper
)

// Inventory инвентарь игрока в том объёме, который нужен ядру
type Inventory interface {
	Contains(id items.ID, amount uint8) bool
	// Add добавляет до amount предметов и возвращает, сколько поместилось
	Add(id items.ID, amount uint8) uint8
	Erase(id items.ID, amount uint8) bool
}

// Player то, что мир знает об игроке. Мир не владеет игроком: он
// принадлежит соединению, мир держит только ссылку для поиска и рассылки.
type Player interface {
	ConnID() uint64
	UserID() int32
	NetID() int32
	Name() string
	Role() Role
	Position() vec.Vec2Float
	SetPosition(pos vec.Vec2Float)
	PunchRange() int
	BuildRange() int
	Inventory() Inventory
	Send(p *protocol.GamePacket)
}
