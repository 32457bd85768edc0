package world

import (
	"fmt"

	"github.com/annel0/tileworld/internal/items"
	"github.com/annel0/tileworld/internal/vec"
)

// EditAction действие массового редактирования
type EditAction uint8

const (
	EditPlace EditAction = iota // Поставить предмет на пустой слой
	EditClear                   // Очистить тайл
	EditFill                    // Поставить предмет, заменив текущий
)

// EditTile применяет действие ко всем тайлам в квадрате radius вокруг
// center. Тайлы, на которых у actor нет права строить, пропускаются,
// если не задан ignoreAreas. actor может быть nil только с ignoreAreas.
// Замки так не ставятся (ErrUnknownItem): им нужен владелец и захват
// области. Области замков рядом с изменёнными тайлами вызывающий
// пересчитывает сам через algorithm.OnLockReApply.
// Возвращает индексы изменённых тайлов.
func (w *World) EditTile(actor Player, action EditAction, center vec.Vec2, radius int, item items.ID, ignoreAreas bool) ([]int, error) {
	if !w.InBounds(center.X, center.Y) {
		return nil, fmt.Errorf("%w: %d,%d", ErrOutOfBounds, center.X, center.Y)
	}
	if radius < 0 {
		radius = 0
	}
	if actor == nil && !ignoreAreas {
		return nil, fmt.Errorf("%w: edit without actor", ErrNoAccess)
	}

	var it *items.Item
	if action != EditClear {
		var ok bool
		it, ok = w.catalog.Get(item)
		if !ok || item == items.BlankID {
			return nil, fmt.Errorf("%w: %d", ErrUnknownItem, item)
		}
		if it.Category.IsLock() {
			return nil, fmt.Errorf("%w: lock %d needs an owner", ErrUnknownItem, item)
		}
	}

	var changed []int
	for y := center.Y - radius; y <= center.Y+radius; y++ {
		for x := center.X - radius; x <= center.X+radius; x++ {
			t, ok := w.Tile(x, y)
			if !ok {
				continue
			}
			if !ignoreAreas {
				if w.CanBuild(actor, t) != nil || t.IsLock() {
					continue
				}
			}
			if w.applyEdit(t, action, it) {
				changed = append(changed, t.Index(w.Width))
			}
		}
	}
	if len(changed) > 0 {
		w.Touch()
	}
	return changed, nil
}

func (w *World) applyEdit(t *Tile, action EditAction, it *items.Item) bool {
	switch action {
	case EditClear:
		if t.IsEmpty() {
			return false
		}
		t.Clear()
		return true
	case EditPlace:
		if it.Category.IsBackground() {
			if t.Background != items.BlankID {
				return false
			}
			return t.SetBackground(it.ID)
		}
		if t.Foreground != items.BlankID {
			return false
		}
		return t.SetForeground(it.ID)
	case EditFill:
		if it.Category.IsBackground() {
			if t.Background == it.ID {
				return false
			}
			return t.SetBackground(it.ID)
		}
		if t.Foreground == it.ID {
			return false
		}
		return t.SetForeground(it.ID)
	}
	return false
}
