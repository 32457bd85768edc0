package shard

import (
	"sort"

	"github.com/annel0/tileworld/internal/items"
	"github.com/annel0/tileworld/internal/protocol"
	"github.com/annel0/tileworld/internal/vec"
	"github.com/annel0/tileworld/internal/world"
)

const (
	// DefaultPunchRange дальность удара в тайлах
	DefaultPunchRange = 4
	// DefaultBuildRange дальность установки в тайлах
	DefaultBuildRange = 4
	// BackpackSlots количество разных предметов в инвентаре
	BackpackSlots = 32
)

// Conn сторона соединения, которую видит шард
type Conn interface {
	Send(p *protocol.GamePacket)
	// Rebind переводит дальнейшие события соединения на шард s
	Rebind(s *Shard)
}

// WorldTracker необязательное расширение Conn: соединение узнаёт, в какой
// мир вошёл игрок
type WorldTracker interface {
	EnteredWorld(name string)
}

// Backpack инвентарь игрока: количество по предметам, не больше MaxStack
// каждого и не больше BackpackSlots разных предметов.
type Backpack struct {
	catalog *items.Catalog
	slots   map[items.ID]uint8
}

// NewBackpack создает пустой инвентарь
func NewBackpack(catalog *items.Catalog) *Backpack {
	return &Backpack{catalog: catalog, slots: make(map[items.ID]uint8)}
}

func (b *Backpack) Contains(id items.ID, amount uint8) bool {
	return b.slots[id] >= amount && amount > 0
}

func (b *Backpack) Count(id items.ID) uint8 {
	return b.slots[id]
}

func (b *Backpack) Add(id items.ID, amount uint8) uint8 {
	it, ok := b.catalog.Get(id)
	if !ok || id == items.BlankID {
		return 0
	}
	have, exists := b.slots[id]
	if !exists && len(b.slots) >= BackpackSlots {
		return 0
	}
	limit := it.MaxStack
	if limit == 0 {
		limit = 1
	}
	if have >= limit {
		return 0
	}
	room := limit - have
	if amount > room {
		amount = room
	}
	if amount > 0 {
		b.slots[id] = have + amount
	}
	return amount
}

func (b *Backpack) Erase(id items.ID, amount uint8) bool {
	have := b.slots[id]
	if have < amount {
		return false
	}
	if have == amount {
		delete(b.slots, id)
		return true
	}
	b.slots[id] = have - amount
	return true
}

// Items предметы инвентаря по возрастанию ID
func (b *Backpack) Items() []items.ID {
	out := make([]items.ID, 0, len(b.slots))
	for id := range b.slots {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Player игрок шарда. Реализует world.Player.
type Player struct {
	conn   Conn
	connID uint64
	userID int32
	netID  int32
	name   string
	role   world.Role
	pos    vec.Vec2Float
	inv    *Backpack
	world  string // Имя мира, в котором игрок находится или которого ждёт
	inside bool   // Игрок добавлен в мир
}

func newPlayer(ev JoinEvent, netID int32, catalog *items.Catalog) *Player {
	p := &Player{
		conn:   ev.Conn,
		connID: ev.ConnID,
		userID: ev.UserID,
		netID:  netID,
		name:   ev.Name,
		role:   ev.Role,
		inv:    NewBackpack(catalog),
	}
	p.inv.Add(items.FistID, 1)
	p.inv.Add(items.WrenchID, 1)
	return p
}

func (p *Player) ConnID() uint64                { return p.connID }
func (p *Player) UserID() int32                 { return p.userID }
func (p *Player) NetID() int32                  { return p.netID }
func (p *Player) Name() string                  { return p.name }
func (p *Player) Role() world.Role              { return p.role }
func (p *Player) Position() vec.Vec2Float       { return p.pos }
func (p *Player) SetPosition(pos vec.Vec2Float) { p.pos = pos }
func (p *Player) PunchRange() int               { return DefaultPunchRange }
func (p *Player) BuildRange() int               { return DefaultBuildRange }
func (p *Player) Inventory() world.Inventory    { return p.inv }
func (p *Player) Backpack() *Backpack           { return p.inv }

func (p *Player) Send(pkt *protocol.GamePacket) {
	if p.conn != nil {
		p.conn.Send(pkt)
	}
}

// TilePos тайл, на котором стоит игрок
func (p *Player) TilePos() vec.Vec2 {
	return p.pos.ToTile()
}

var _ world.Player = (*Player)(nil)
