package world

import "fmt"

// IsOwner сообщает, владеет ли пользователь миром
func (w *World) IsOwner(userID int32) bool {
	return w.OwnerID != -1 && w.OwnerID == userID
}

// MainLock доп. данные мирового замка, если он есть
func (w *World) MainLock() (*LockExtra, bool) {
	if w.MainLockID < 0 {
		return nil, false
	}
	t, ok := w.TileByIndex(int(w.MainLockID))
	if !ok {
		return nil, false
	}
	lock, ok := t.Extra.(*LockExtra)
	return lock, ok
}

// LockOwnerOf возвращает тайл замка, к области которого относится t.
// Для самого замка возвращается он же. Маркеры, указывающие не на замок,
// считаются устаревшими и игнорируются.
func (w *World) LockOwnerOf(t *Tile) (*Tile, *LockExtra, bool) {
	if lock, ok := t.Extra.(*LockExtra); ok && t.IsLock() {
		return t, lock, true
	}
	if t.Flags&FlagLocked == 0 {
		return nil, nil, false
	}
	parent, ok := w.TileByIndex(int(t.Parent))
	if !ok || !parent.IsLock() {
		return nil, nil, false
	}
	lock, ok := parent.Extra.(*LockExtra)
	if !ok {
		return nil, nil, false
	}
	return parent, lock, true
}

// HasAccess проверяет право пользователя строить на тайле: владелец мира,
// владелец замка, список доступа замка или публичный замок.
func (w *World) HasAccess(userID int32, t *Tile) bool {
	if w.IsOwner(userID) {
		return true
	}
	if _, lock, ok := w.LockOwnerOf(t); ok {
		return lock.Allows(userID)
	}
	if w.OwnerID == -1 {
		return true
	}
	if main, ok := w.MainLock(); ok {
		return main.Allows(userID)
	}
	return false
}

// CanBuild проверяет, может ли игрок менять тайл
func (w *World) CanBuild(p Player, t *Tile) error {
	if w.HasBan(p.UserID()) {
		return fmt.Errorf("%w: user %d", ErrBanned, p.UserID())
	}
	if p.Role() >= RoleDeveloper {
		return nil
	}
	if !w.HasAccess(p.UserID(), t) {
		return fmt.Errorf("%w: user %d at %d,%d", ErrNoAccess, p.UserID(), t.X, t.Y)
	}
	return nil
}
