package algorithm

import (
	"fmt"
	"sort"

	"github.com/annel0/tileworld/internal/items"
	"github.com/annel0/tileworld/internal/vec"
	"github.com/annel0/tileworld/internal/world"
)

// LockGeometry область замка: квадрат Чебышёва радиуса Radius (границы
// включительно). Связанные с замком занятые тайлы квадрата захватываются
// все; MaxTiles ограничивает только захват с ignoreAir, когда в область
// входят и пустые тайлы. Сам замок не считается.
type LockGeometry struct {
	Radius   int
	MaxTiles int
}

// claimLimit предел для discover: 0 без ограничения
func (g LockGeometry) claimLimit(ignoreAir bool) int {
	if ignoreAir {
		return g.MaxTiles
	}
	return 0
}

var lockGeometry = map[items.LockClass]LockGeometry{
	items.LockSmall: {Radius: 2, MaxTiles: 10},
	items.LockBig:   {Radius: 4, MaxTiles: 48},
	items.LockHuge:  {Radius: 8, MaxTiles: 200},
	items.LockSteam: {Radius: 3, MaxTiles: 49},
}

// GeometryFor возвращает геометрию замка для предмета
func GeometryFor(it *items.Item) (LockGeometry, bool) {
	if it == nil || it.Category != items.CategoryLock {
		return LockGeometry{}, false
	}
	g, ok := lockGeometry[it.LockClass]
	return g, ok
}

// Порядок соседей при обходе: влево, вправо, вверх, вниз
var neighbourDirs = [4]vec.Vec2{{X: -1}, {X: 1}, {Y: -1}, {Y: 1}}

// lockTarget проверяет, что в pos стоит замок, и возвращает его данные
func lockTarget(w *world.World, pos vec.Vec2) (*world.Tile, *world.LockExtra, LockGeometry, error) {
	t, ok := w.TileAt(pos)
	if !ok {
		return nil, nil, LockGeometry{}, fmt.Errorf("%w: lock at %d,%d", world.ErrOutOfBounds, pos.X, pos.Y)
	}
	it, _ := t.ForegroundItem()
	geom, ok := GeometryFor(it)
	if !ok {
		return nil, nil, LockGeometry{}, fmt.Errorf("%w: %d is not an area lock", world.ErrUnknownItem, t.Foreground)
	}
	lock, ok := t.Extra.(*world.LockExtra)
	if !ok {
		return nil, nil, LockGeometry{}, fmt.Errorf("%w: lock at %d,%d has no lock data", world.ErrCorrupt, pos.X, pos.Y)
	}
	return t, lock, geom, nil
}

// discover обход в ширину от замка внутри его квадрата. Без ignoreAir
// область растёт только по тайлам с передним слоем. skip исключает тайлы
// из обхода целиком. limit <= 0 снимает ограничение на количество.
func discover(w *world.World, lockPos vec.Vec2, geom LockGeometry, ignoreAir bool, limit int, skip func(t *world.Tile) bool) []int {
	lockIdx := lockPos.Index(w.Width)
	visited := map[int]struct{}{lockIdx: {}}
	queue := []vec.Vec2{lockPos}
	var found []int

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, d := range neighbourDirs {
			next := cur.Add(d)
			if next.Chebyshev(lockPos) > geom.Radius {
				continue
			}
			t, ok := w.TileAt(next)
			if !ok {
				continue
			}
			idx := next.Index(w.Width)
			if _, seen := visited[idx]; seen {
				continue
			}
			visited[idx] = struct{}{}

			if t.IsLock() || (skip != nil && skip(t)) {
				continue
			}
			if !ignoreAir && t.Foreground == items.BlankID {
				continue
			}

			found = append(found, idx)
			if limit > 0 && len(found) >= limit {
				return found
			}
			queue = append(queue, next)
		}
	}
	return found
}

// IsLockNeighbour сообщает, попадает ли tile в область замка lockPos:
// внутри квадрата класса замка и, если ignoreAir не задан, связан с замком
// непрерывной цепочкой занятых тайлов.
func IsLockNeighbour(w *world.World, tile *world.Tile, lockPos vec.Vec2, ignoreAir bool) bool {
	lt, ok := w.TileAt(lockPos)
	if !ok {
		return false
	}
	it, _ := lt.ForegroundItem()
	geom, ok := GeometryFor(it)
	if !ok {
		return false
	}
	pos := tile.Pos()
	if pos == lockPos || pos.Chebyshev(lockPos) > geom.Radius {
		return false
	}
	if ignoreAir {
		return true
	}

	idx := pos.Index(w.Width)
	for _, found := range discover(w, lockPos, geom, false, 0, nil) {
		if found == idx {
			return true
		}
	}
	return false
}

// foreignOwner возвращает владельца другого действующего замка, к которому
// привязан тайл. Устаревшие маркеры (родитель уже не замок) не учитываются.
func foreignOwner(w *world.World, t *world.Tile, lockIdx int) (int32, bool) {
	if t.Flags&world.FlagLocked == 0 || int(t.Parent) == lockIdx {
		return 0, false
	}
	parent, ok := w.TileByIndex(int(t.Parent))
	if !ok || !parent.IsLock() {
		return 0, false
	}
	lock, ok := parent.Extra.(*world.LockExtra)
	if !ok {
		return 0, false
	}
	return lock.OwnerID, true
}

// OnLockApply захватывает область только что поставленного замка для
// userID. Если область задевает тайл чужого замка другого владельца,
// ничего не меняется и возвращается ErrAlreadyLocked. Тайлы замков того
// же владельца и тайлы с устаревшими маркерами переходят новому замку.
func OnLockApply(w *world.World, lockPos vec.Vec2, userID int32, ignoreAir bool) ([]int, error) {
	lockTile, lock, geom, err := lockTarget(w, lockPos)
	if err != nil {
		return nil, err
	}
	lockIdx := lockPos.Index(w.Width)

	if owner, ok := foreignOwner(w, lockTile, lockIdx); ok && owner != userID {
		return nil, fmt.Errorf("%w: lock tile %d,%d belongs to %d", world.ErrAlreadyLocked, lockPos.X, lockPos.Y, owner)
	}

	found := discover(w, lockPos, geom, ignoreAir, geom.claimLimit(ignoreAir), nil)
	for _, idx := range found {
		t, _ := w.TileByIndex(idx)
		if owner, ok := foreignOwner(w, t, lockIdx); ok && owner != userID {
			return nil, fmt.Errorf("%w: tile %d,%d belongs to %d", world.ErrAlreadyLocked, t.X, t.Y, owner)
		}
	}

	lock.OwnerID = userID
	if ignoreAir {
		lock.Flags |= world.LockIgnoreAir
	} else {
		lock.Flags &^= world.LockIgnoreAir
	}
	lockTile.Flags |= world.FlagLocked
	lockTile.Parent = uint16(lockIdx)

	for _, idx := range found {
		t, _ := w.TileByIndex(idx)
		t.Flags |= world.FlagLocked
		t.Parent = uint16(lockIdx)
	}
	w.Touch()
	return found, nil
}

// claimedBy индексы тайлов внутри квадрата, привязанных к замку lockIdx
func claimedBy(w *world.World, lockPos vec.Vec2, radius int) map[int]struct{} {
	lockIdx := lockPos.Index(w.Width)
	out := make(map[int]struct{})
	for y := lockPos.Y - radius; y <= lockPos.Y+radius; y++ {
		for x := lockPos.X - radius; x <= lockPos.X+radius; x++ {
			t, ok := w.Tile(x, y)
			if !ok || t.Index(w.Width) == lockIdx {
				continue
			}
			if t.Flags&world.FlagLocked != 0 && int(t.Parent) == lockIdx {
				out[t.Index(w.Width)] = struct{}{}
			}
		}
	}
	return out
}

// OnLockReApply пересчитывает область существующего замка после изменения
// рядом с ним. Тайлы чужих действующих замков не отбираются. Повторный
// вызов без изменений рельефа ничего не меняет.
func OnLockReApply(w *world.World, lockPos vec.Vec2) (claimed, released []int) {
	_, lock, geom, err := lockTarget(w, lockPos)
	if err != nil {
		return nil, nil
	}
	lockIdx := lockPos.Index(w.Width)
	ignoreAir := lock.Flags&world.LockIgnoreAir != 0

	found := discover(w, lockPos, geom, ignoreAir, geom.claimLimit(ignoreAir), func(t *world.Tile) bool {
		_, foreign := foreignOwner(w, t, lockIdx)
		return foreign
	})
	current := claimedBy(w, lockPos, geom.Radius)

	for _, idx := range found {
		if _, ok := current[idx]; ok {
			delete(current, idx)
			continue
		}
		t, _ := w.TileByIndex(idx)
		t.Flags |= world.FlagLocked
		t.Parent = uint16(lockIdx)
		claimed = append(claimed, idx)
	}
	for idx := range current {
		t, _ := w.TileByIndex(idx)
		t.Flags &^= world.FlagLocked
		t.Parent = 0
		released = append(released, idx)
	}
	sort.Ints(released)

	if len(claimed) > 0 || len(released) > 0 {
		w.Touch()
	}
	return claimed, released
}

// OnLockRemove освобождает все тайлы замка, стоявшего в lockPos. Вызывается
// после того, как замок сломан: передний слой тайла уже может быть пустым.
func OnLockRemove(w *world.World, lockPos vec.Vec2, radius int) []int {
	released := make([]int, 0)
	for idx := range claimedBy(w, lockPos, radius) {
		t, _ := w.TileByIndex(idx)
		t.Flags &^= world.FlagLocked
		t.Parent = 0
		released = append(released, idx)
	}
	sort.Ints(released)
	return released
}

// OnWorldLockApply делает userID владельцем мира. Мир, уже принадлежащий
// другому игроку, возвращает ErrAlreadyLocked.
func OnWorldLockApply(w *world.World, lockPos vec.Vec2, userID int32) error {
	t, ok := w.TileAt(lockPos)
	if !ok {
		return fmt.Errorf("%w: world lock at %d,%d", world.ErrOutOfBounds, lockPos.X, lockPos.Y)
	}
	it, ok := t.ForegroundItem()
	if !ok || it.Category != items.CategoryWorldLock {
		return fmt.Errorf("%w: %d is not a world lock", world.ErrUnknownItem, t.Foreground)
	}
	lock, ok := t.Extra.(*world.LockExtra)
	if !ok {
		return fmt.Errorf("%w: world lock without lock data", world.ErrCorrupt)
	}
	if w.OwnerID != -1 && w.OwnerID != userID {
		return fmt.Errorf("%w: world owned by %d", world.ErrAlreadyLocked, w.OwnerID)
	}
	if _, exists := w.MainLock(); exists && int(w.MainLockID) != lockPos.Index(w.Width) {
		return fmt.Errorf("%w: world already has a main lock", world.ErrAlreadyLocked)
	}

	lock.OwnerID = userID
	w.OwnerID = userID
	w.MainLockID = int32(lockPos.Index(w.Width))
	w.Touch()
	return nil
}

// OnWorldLockRemove снимает владельца мира после уничтожения мирового замка
func OnWorldLockRemove(w *world.World) {
	w.OwnerID = -1
	w.MainLockID = -1
	w.Touch()
}
