package shard

import (
	"github.com/annel0/tileworld/internal/algorithm"
	"github.com/annel0/tileworld/internal/items"
	"github.com/annel0/tileworld/internal/vec"
	"github.com/annel0/tileworld/internal/world"
)

// Event входящее событие шарда. Все события обрабатываются по одному в
// цикле шарда.
type Event interface {
	// Kind короткое имя события для метрик и трассировки
	Kind() string
}

// JoinEvent вход соединения в мир. Повторный Join того же соединения
// переводит игрока в другой мир.
type JoinEvent struct {
	Conn   Conn
	ConnID uint64
	UserID int32
	Name   string
	Role   world.Role
	World  string
}

// LeaveEvent соединение закрыто
type LeaveEvent struct {
	ConnID uint64
}

// MoveEvent обновление позиции от клиента
type MoveEvent struct {
	ConnID uint64
	Pos    vec.Vec2Float
	Flags  uint32
}

// PunchEvent удар по тайлу
type PunchEvent struct {
	ConnID uint64
	Pos    vec.Vec2
}

// PlaceEvent установка предмета из инвентаря
type PlaceEvent struct {
	ConnID uint64
	Pos    vec.Vec2
	Item   items.ID
}

// WrenchEvent настройка тайла гаечным ключом: подпись таблички или двери,
// пароль двери, список доступа и публичность замка.
type WrenchEvent struct {
	ConnID   uint64
	Pos      vec.Vec2
	Label    string
	Password string
	Access   []int32
	Public   bool
}

// ActivateEvent взаимодействие с тайлом: вход в дверь, выход через
// главную дверь, сбор урожая.
type ActivateEvent struct {
	ConnID   uint64
	Pos      vec.Vec2
	Password string
}

// CollectEvent подбор объекта
type CollectEvent struct {
	ConnID   uint64
	ObjectID uint32
}

// DropEvent выбросить предметы из инвентаря к ногам игрока
type DropEvent struct {
	ConnID uint64
	Item   items.ID
	Amount uint8
}

// SteamActivateEvent запуск импульса пара
type SteamActivateEvent struct {
	ConnID uint64
	Pos    vec.Vec2
	Dir    algorithm.Direction
}

// worldLoadedEvent результат загрузки мира от воркера хранения
type worldLoadedEvent struct {
	name  string
	world *world.World
	err   error
}

func (JoinEvent) Kind() string          { return "join" }
func (LeaveEvent) Kind() string         { return "leave" }
func (MoveEvent) Kind() string          { return "move" }
func (PunchEvent) Kind() string         { return "punch" }
func (PlaceEvent) Kind() string         { return "place" }
func (WrenchEvent) Kind() string        { return "wrench" }
func (ActivateEvent) Kind() string      { return "activate" }
func (CollectEvent) Kind() string       { return "collect" }
func (DropEvent) Kind() string          { return "drop" }
func (SteamActivateEvent) Kind() string { return "steam" }
func (worldLoadedEvent) Kind() string   { return "world_loaded" }
