package world

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/annel0/tileworld/internal/items"
	"github.com/annel0/tileworld/internal/protocol"
	"github.com/annel0/tileworld/internal/vec"
)

const (
	// MaxNameLength максимальная длина имени мира
	MaxNameLength = 24
	// MaxTiles предел размера сетки: индексы тайлов передаются как u16
	MaxTiles = 0xffff
	// DefaultWidth и DefaultHeight размер стандартного мира
	DefaultWidth  = 100
	DefaultHeight = 60
)

// Ban запись о бане в мире
type Ban struct {
	UserID int32
	At     time.Time
}

// World мир: сетка тайлов, объекты, игроки, баны и метаданные.
//
// World не потокобезопасен: все обращения идут из цикла шарда, которому
// принадлежит мир.
type World struct {
	ID            uint32
	Name          string
	Width         int
	Height        int
	OwnerID       int32 // -1 если мир никому не принадлежит
	MainLockID    int32 // Индекс тайла мирового замка, -1 если его нет
	WeatherID     uint16
	BaseWeatherID uint16
	Flags         WorldFlag
	CreatedAt     time.Time
	UpdatedAt     time.Time

	catalog      *items.Catalog
	tiles        []Tile
	objects      map[uint32]*WorldObject
	nextObjectID uint32
	players      map[uint64]Player
	bans         map[int32]time.Time
}

// NormalizeName приводит имя мира к каноническому виду и проверяет его
func NormalizeName(name string) (string, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" || len(name) > MaxNameLength {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	for _, r := range name {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	return name, nil
}

// New создаёт пустой мир
func New(name string, width, height int, catalog *items.Catalog) (*World, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 || width*height > MaxTiles {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}

	now := time.Now()
	w := &World{
		Name:       name,
		Width:      width,
		Height:     height,
		OwnerID:    -1,
		MainLockID: -1,
		CreatedAt:  now,
		UpdatedAt:  now,
		catalog:    catalog,
		tiles:      make([]Tile, width*height),
		objects:    make(map[uint32]*WorldObject),
		players:    make(map[uint64]Player),
		bans:       make(map[int32]time.Time),
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			w.tiles[y*width+x] = newTile(x, y, catalog)
		}
	}
	return w, nil
}

// Catalog каталог предметов, с которым создан мир
func (w *World) Catalog() *items.Catalog {
	return w.catalog
}

// InBounds проверяет, что координаты внутри мира
func (w *World) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < w.Width && y < w.Height
}

// Tile возвращает тайл по координатам
func (w *World) Tile(x, y int) (*Tile, bool) {
	if !w.InBounds(x, y) {
		return nil, false
	}
	return &w.tiles[y*w.Width+x], true
}

// TileAt возвращает тайл по вектору
func (w *World) TileAt(pos vec.Vec2) (*Tile, bool) {
	return w.Tile(pos.X, pos.Y)
}

// TileByIndex возвращает тайл по индексу
func (w *World) TileByIndex(index int) (*Tile, bool) {
	if index < 0 || index >= len(w.tiles) {
		return nil, false
	}
	return &w.tiles[index], true
}

// TileCount количество тайлов
func (w *World) TileCount() int {
	return len(w.tiles)
}

// MainDoor позиция первой главной двери в порядке индексов
func (w *World) MainDoor() (vec.Vec2, bool) {
	for i := range w.tiles {
		it, ok := w.tiles[i].ForegroundItem()
		if ok && it.Category == items.CategoryMainDoor {
			return w.tiles[i].Pos(), true
		}
	}
	return vec.Vec2{}, false
}

// Touch обновляет время изменения мира
func (w *World) Touch() {
	w.UpdatedAt = time.Now()
}

// AddPlayer добавляет игрока в индекс мира
func (w *World) AddPlayer(p Player) {
	w.players[p.ConnID()] = p
}

// RemovePlayer убирает игрока и все его маркеры на тайлах
func (w *World) RemovePlayer(connID uint64) bool {
	if _, ok := w.players[connID]; !ok {
		return false
	}
	delete(w.players, connID)
	for i := range w.tiles {
		if w.tiles[i].devPunch != nil {
			w.tiles[i].DevPunchRemove(connID)
		}
	}
	return true
}

// Player ищет игрока по соединению
func (w *World) Player(connID uint64) (Player, bool) {
	p, ok := w.players[connID]
	return p, ok
}

// PlayerCount количество игроков в мире
func (w *World) PlayerCount() int {
	return len(w.players)
}

// Players снимок игроков, отсортированный по ID соединения
func (w *World) Players() []Player {
	ids := make([]uint64, 0, len(w.players))
	for id := range w.players {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]Player, len(ids))
	for i, id := range ids {
		out[i] = w.players[id]
	}
	return out
}

// Broadcast вызывает fn для каждого игрока в мире. Порядок стабилен в
// пределах одного вызова; fn не должен менять состав игроков.
func (w *World) Broadcast(fn func(p Player)) {
	for _, p := range w.Players() {
		fn(p)
	}
}

// SendAll рассылает пакет всем игрокам мира
func (w *World) SendAll(pkt *protocol.GamePacket) {
	w.Broadcast(func(p Player) { p.Send(pkt) })
}

// SendOthers рассылает пакет всем, кроме указанного соединения
func (w *World) SendOthers(except uint64, pkt *protocol.GamePacket) {
	w.Broadcast(func(p Player) {
		if p.ConnID() != except {
			p.Send(pkt)
		}
	})
}

// BanPlayer банит пользователя в мире
func (w *World) BanPlayer(userID int32, at time.Time) {
	w.bans[userID] = at
}

// HasBan проверяет бан
func (w *World) HasBan(userID int32) bool {
	_, ok := w.bans[userID]
	return ok
}

// Unban снимает бан
func (w *World) Unban(userID int32) bool {
	if _, ok := w.bans[userID]; !ok {
		return false
	}
	delete(w.bans, userID)
	return true
}

// ClearBans снимает все баны
func (w *World) ClearBans() {
	w.bans = make(map[int32]time.Time)
}

// Bans список банов по возрастанию ID пользователя
func (w *World) Bans() []Ban {
	out := make([]Ban, 0, len(w.bans))
	for id, at := range w.bans {
		out = append(out, Ban{UserID: id, At: at})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}
