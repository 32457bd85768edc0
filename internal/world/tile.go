package world

import (
	"time"

	"github.com/annel0/tileworld/internal/items"
	"github.com/annel0/tileworld/internal/vec"
)

const (
	// DefaultPunchDelay минимальный интервал между ударами по тайлу
	DefaultPunchDelay = 150 * time.Millisecond
	// HitResetAfter через сколько после последнего удара прогресс поломки сбрасывается
	HitResetAfter = 8 * time.Second
)

// HitResult результат удара по тайлу
type HitResult struct {
	TooFast bool  // Удар пришёл раньше punch delay и проигнорирован
	Broken  bool  // Удар сломал верхний слой
	Hits    uint8 // Текущий счётчик ударов
}

// Tile состояние одной клетки мира. Соседей не знает: всё, что касается
// областей и сетей, делает пакет algorithm.
type Tile struct {
	X, Y       int
	Foreground items.ID
	Background items.ID
	Parent     uint16 // Индекс тайла замка, если установлен FlagLocked
	Flags      TileFlag
	HitCount   uint8
	LastHit    time.Time
	PunchDelay time.Duration
	Extra      TileExtra

	catalog  *items.Catalog
	devPunch map[uint64]struct{}
}

func newTile(x, y int, catalog *items.Catalog) Tile {
	return Tile{X: x, Y: y, PunchDelay: DefaultPunchDelay, catalog: catalog}
}

// Pos координаты тайла
func (t *Tile) Pos() vec.Vec2 {
	return vec.Vec2{X: t.X, Y: t.Y}
}

// Index индекс тайла в сетке шириной width
func (t *Tile) Index(width int) int {
	return t.Y*width + t.X
}

// IsEmpty сообщает, что на тайле нет ни переднего, ни фонового слоя
func (t *Tile) IsEmpty() bool {
	return t.Foreground == items.BlankID && t.Background == items.BlankID
}

// ForegroundItem метаданные предмета переднего слоя
func (t *Tile) ForegroundItem() (*items.Item, bool) {
	if t.Foreground == items.BlankID {
		return nil, false
	}
	return t.catalog.Get(t.Foreground)
}

// IsLock сообщает, что на тайле стоит замок
func (t *Tile) IsLock() bool {
	it, ok := t.ForegroundItem()
	return ok && it.Category.IsLock()
}

// SetForeground ставит предмет в передний слой. Неизвестный каталогу
// предмет молча игнорируется (false): вызывающий должен проверить ID заранее.
func (t *Tile) SetForeground(id items.ID) bool {
	return t.setForeground(id, time.Now())
}

func (t *Tile) setForeground(id items.ID, now time.Time) bool {
	if id != items.BlankID && !t.catalog.Has(id) {
		return false
	}

	wasLock := t.IsLock()

	t.Foreground = id
	t.resetHits()
	t.Flags &^= itemStateFlags
	t.Extra = nil

	if wasLock && id == items.BlankID {
		t.Flags &^= FlagLocked
		t.Parent = 0
	}

	it, ok := t.ForegroundItem()
	if !ok {
		return true
	}
	t.Flags |= TileFlag(it.DefaultFlags) &^ (FlagTileExtra | FlagLocked)
	if extra := NewExtra(it.Category.ExtraType(), now); extra != nil {
		t.Extra = extra
		t.Flags |= FlagTileExtra
	}
	return true
}

// SetBackground ставит фоновый слой
func (t *Tile) SetBackground(id items.ID) bool {
	if id != items.BlankID && !t.catalog.Has(id) {
		return false
	}
	t.Background = id
	t.resetHits()
	return true
}

// Clear очищает оба слоя и все флаги, кроме привязки к замку
func (t *Tile) Clear() {
	t.setForeground(items.BlankID, time.Time{})
	t.Background = items.BlankID
	t.Flags &= FlagLocked
}

func (t *Tile) resetHits() {
	t.HitCount = 0
	t.LastHit = time.Time{}
}

// breakThreshold количество ударов для верхнего слоя; 0 означает неломаемый
func (t *Tile) breakThreshold() uint8 {
	id := t.Foreground
	if id == items.BlankID {
		id = t.Background
	}
	if id == items.BlankID {
		return 0
	}
	it, ok := t.catalog.Get(id)
	if !ok || it.Unbreakable() {
		return 0
	}
	return it.BreakHits
}

// IndicateHit регистрирует удар по тайлу
func (t *Tile) IndicateHit(now time.Time) HitResult {
	if !t.LastHit.IsZero() {
		since := now.Sub(t.LastHit)
		if since < t.PunchDelay {
			return HitResult{TooFast: true, Hits: t.HitCount}
		}
		if since > HitResetAfter {
			t.HitCount = 0
		}
	}

	if t.HitCount < 0xff {
		t.HitCount++
	}
	t.LastHit = now

	threshold := t.breakThreshold()
	if threshold > 0 && t.HitCount >= threshold {
		hits := t.HitCount
		t.resetHits()
		return HitResult{Broken: true, Hits: hits}
	}
	return HitResult{Hits: t.HitCount}
}

// DevPunchAdd отмечает, что игрок держит на тайле маркер dev-удара
func (t *Tile) DevPunchAdd(connID uint64) {
	if t.devPunch == nil {
		t.devPunch = make(map[uint64]struct{})
	}
	t.devPunch[connID] = struct{}{}
}

// DevPunchRemove снимает маркер игрока
func (t *Tile) DevPunchRemove(connID uint64) {
	delete(t.devPunch, connID)
	if len(t.devPunch) == 0 {
		t.devPunch = nil
	}
}

// DevPunchHas проверяет маркер игрока
func (t *Tile) DevPunchHas(connID uint64) bool {
	_, ok := t.devPunch[connID]
	return ok
}

// DevPunchReset снимает маркеры всех игроков
func (t *Tile) DevPunchReset() {
	t.devPunch = nil
}

// DevPunchCount количество игроков с маркером
func (t *Tile) DevPunchCount() int {
	return len(t.devPunch)
}
