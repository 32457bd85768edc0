package world

import (
	"fmt"
	"sort"

	"github.com/annel0/tileworld/internal/items"
	"github.com/annel0/tileworld/internal/vec"
)

func (w *World) posInBounds(pos vec.Vec2Float) bool {
	t := pos.ToTile()
	return w.InBounds(t.X, t.Y)
}

// AddObject кладёт предмет в мир. Если на том же тайле уже лежит стопка
// этого предмета и сумма помещается в MaxStack, amount добавляется к ней
// (merged = true).
func (w *World) AddObject(itemID items.ID, amount uint8, pos vec.Vec2Float, flags uint8) (obj *WorldObject, merged bool, err error) {
	it, ok := w.catalog.Get(itemID)
	if !ok || itemID == items.BlankID || amount == 0 {
		return nil, false, fmt.Errorf("%w: %d x%d", ErrUnknownItem, itemID, amount)
	}
	if !w.posInBounds(pos) {
		return nil, false, fmt.Errorf("%w: object at %.1f,%.1f", ErrOutOfBounds, pos.X, pos.Y)
	}

	tile := pos.ToTile()
	for _, o := range w.Objects() {
		if o.ItemID != itemID || o.Flags != flags || o.Tile() != tile {
			continue
		}
		if int(o.Amount)+int(amount) <= int(it.MaxStack) {
			o.Amount += amount
			return o, true, nil
		}
	}

	w.nextObjectID++
	obj = &WorldObject{
		ID:     w.nextObjectID,
		ItemID: itemID,
		Amount: amount,
		Flags:  flags,
		Pos:    pos,
	}
	w.objects[obj.ID] = obj
	return obj, false, nil
}

// Object возвращает объект по ID
func (w *World) Object(id uint32) (*WorldObject, bool) {
	o, ok := w.objects[id]
	return o, ok
}

// ModifyObject меняет количество в стопке. amount == 0 удаляет объект.
func (w *World) ModifyObject(id uint32, amount uint8) (*WorldObject, error) {
	o, ok := w.objects[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrObjectNotFound, id)
	}
	if amount == 0 {
		delete(w.objects, id)
		return o, nil
	}
	o.Amount = amount
	return o, nil
}

// RemoveObject удаляет объект
func (w *World) RemoveObject(id uint32) bool {
	if _, ok := w.objects[id]; !ok {
		return false
	}
	delete(w.objects, id)
	return true
}

// CollectObject забирает объект целиком. Удаётся ровно один раз для
// каждого ID, повторные попытки получают ErrAlreadyCollected.
func (w *World) CollectObject(id uint32) (WorldObject, error) {
	o, ok := w.objects[id]
	if !ok {
		return WorldObject{}, fmt.Errorf("%w: %d", ErrAlreadyCollected, id)
	}
	delete(w.objects, id)
	return *o, nil
}

// ObjectCount количество объектов
func (w *World) ObjectCount() int {
	return len(w.objects)
}

// NextObjectID последний выданный ID объекта
func (w *World) NextObjectID() uint32 {
	return w.nextObjectID
}

// Objects объекты по возрастанию ID
func (w *World) Objects() []*WorldObject {
	out := make([]*WorldObject, 0, len(w.objects))
	for _, o := range w.objects {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
