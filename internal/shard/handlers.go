package shard

import (
	"fmt"
	"time"

	"github.com/annel0/tileworld/internal/algorithm"
	"github.com/annel0/tileworld/internal/eventbus"
	"github.com/annel0/tileworld/internal/items"
	"github.com/annel0/tileworld/internal/protocol"
	"github.com/annel0/tileworld/internal/vec"
	"github.com/annel0/tileworld/internal/world"
)

// maxLockRadius самый большой радиус области замка
const maxLockRadius = 8

// target тайл запроса в пределах досягаемости игрока
func (s *Shard) target(p *Player, w *world.World, pos vec.Vec2, reach int) (*world.Tile, error) {
	t, ok := w.TileAt(pos)
	if !ok {
		return nil, fmt.Errorf("%w: %d,%d", world.ErrOutOfBounds, pos.X, pos.Y)
	}
	if d := p.TilePos().Chebyshev(pos); d > reach {
		return nil, fmt.Errorf("%w: %d tiles away", ErrOutOfReach, d)
	}
	return t, nil
}

// sendTile рассылает состояние тайла всем в мире
func sendTile(w *world.World, t *world.Tile) {
	w.SendAll(protocol.TileUpdate(t.X, t.Y, w.PackTile(t), 0))
}

func sendTiles(w *world.World, indexes []int) {
	for _, idx := range indexes {
		if t, ok := w.TileByIndex(idx); ok {
			sendTile(w, t)
		}
	}
}

// reapplyNearby пересчитывает области замков, которые могут задевать pos
func (s *Shard) reapplyNearby(w *world.World, pos vec.Vec2) {
	for y := pos.Y - maxLockRadius; y <= pos.Y+maxLockRadius; y++ {
		for x := pos.X - maxLockRadius; x <= pos.X+maxLockRadius; x++ {
			t, ok := w.Tile(x, y)
			if !ok || !t.IsLock() {
				continue
			}
			claimed, released := algorithm.OnLockReApply(w, t.Pos())
			sendTiles(w, claimed)
			sendTiles(w, released)
		}
	}
}

// spawnObject кладёт предмет в мир и сообщает об этом игрокам
func (s *Shard) spawnObject(w *world.World, collector int32, id items.ID, amount uint8, pos vec.Vec2Float) {
	obj, merged, err := w.AddObject(id, amount, pos, 0)
	if err != nil {
		s.log.Warn("Объект %d x%d в %s: %v", id, amount, w.Name, err)
		return
	}
	kind := protocol.ObjectAdded
	if merged {
		kind = protocol.ObjectModified
	}
	w.SendAll(protocol.ObjectChange(kind, collector, obj.ID, obj.ItemID, obj.Amount, obj.Pos.X, obj.Pos.Y))
}

func (s *Shard) handleMove(ev MoveEvent) error {
	p, ws, err := s.session(ev.ConnID)
	if err != nil {
		return s.reject(p, nil, err, nil)
	}
	w := ws.w
	to := ev.Pos.ToTile()
	if !w.InBounds(to.X, to.Y) {
		return s.reject(p, w, fmt.Errorf("%w: move to %d,%d", world.ErrOutOfBounds, to.X, to.Y), nil)
	}
	if !algorithm.OnFindPath(w, p, p.TilePos(), to, s.opts.MoveLimits) {
		return s.reject(p, w, fmt.Errorf("%w: move to %d,%d", ErrNoPath, to.X, to.Y), nil)
	}
	p.SetPosition(ev.Pos)
	w.SendOthers(p.ConnID(), protocol.PlayerMoved(p.NetID(), ev.Pos.X, ev.Pos.Y, ev.Flags))
	return nil
}

func (s *Shard) handlePunch(ev PunchEvent) error {
	p, ws, err := s.session(ev.ConnID)
	if err != nil {
		return s.reject(p, nil, err, nil)
	}
	w := ws.w
	t, err := s.target(p, w, ev.Pos, p.PunchRange())
	if err != nil {
		return s.reject(p, w, err, &ev.Pos)
	}
	if t.IsEmpty() {
		return s.reject(p, w, fmt.Errorf("%w: empty tile", ErrNotActionable), &ev.Pos)
	}
	if err := w.CanBuild(p, t); err != nil {
		return s.reject(p, w, err, &ev.Pos)
	}
	if lock, ok := t.Extra.(*world.LockExtra); ok && t.IsLock() && p.Role() < world.RoleDeveloper && lock.OwnerID != p.UserID() {
		return s.reject(p, w, fmt.Errorf("%w: lock of %d", world.ErrNoAccess, lock.OwnerID), &ev.Pos)
	}

	if p.Role() >= world.RoleDeveloper {
		return s.devBreak(p, w, t, ev.Pos)
	}

	res := t.IndicateHit(s.opts.Now())
	switch {
	case res.TooFast:
		return nil
	case !res.Broken:
		w.SendAll(protocol.TileDamage(p.NetID(), t.X, t.Y, res.Hits))
		return nil
	}
	s.breakTile(p, w, t)
	return nil
}

// devBreak удар разработчика: верхний слой снимается сразу, прочность и
// задержка удара не учитываются. Маркер игрока держится на тайле, пока на
// нём есть что ломать.
func (s *Shard) devBreak(p *Player, w *world.World, t *world.Tile, pos vec.Vec2) error {
	if t.Foreground == items.MainDoorID {
		return s.reject(p, w, fmt.Errorf("%w: main door", ErrNotActionable), &pos)
	}
	t.DevPunchAdd(p.ConnID())
	s.breakTile(p, w, t)
	if t.IsEmpty() {
		t.DevPunchReset()
	}
	return nil
}

// breakTile снимает верхний слой тайла после последнего удара
func (s *Shard) breakTile(p *Player, w *world.World, t *world.Tile) {
	pos := t.Pos()
	var broken *items.Item
	if it, ok := t.ForegroundItem(); ok {
		broken = it
		geom, isAreaLock := algorithm.GeometryFor(it)
		t.SetForeground(items.BlankID)
		switch {
		case isAreaLock:
			sendTiles(w, algorithm.OnLockRemove(w, pos, geom.Radius))
		case it.Category == items.CategoryWorldLock:
			algorithm.OnWorldLockRemove(w)
		}
	} else {
		broken, _ = w.Catalog().Get(t.Background)
		t.SetBackground(items.BlankID)
	}
	w.Touch()
	sendTile(w, t)
	s.reapplyNearby(w, pos)
	if broken != nil {
		s.dropLoot(w, p, broken, pos)
	}
}

// dropLoot случайный дроп со сломанного блока: семя или сам блок и
// немного кристаллов. Замки возвращаются всегда.
func (s *Shard) dropLoot(w *world.World, p *Player, it *items.Item, pos vec.Vec2) {
	center := vec.TileCenter(pos)
	if it.Category.IsLock() {
		s.spawnObject(w, p.NetID(), it.ID, 1, center)
		return
	}
	if seed, ok := w.Catalog().Get(it.SeedID()); ok && seed.IsSeed() && !it.IsSeed() && s.rng.Intn(4) == 0 {
		s.spawnObject(w, p.NetID(), seed.ID, 1, center)
	} else if s.rng.Intn(8) == 0 {
		s.spawnObject(w, p.NetID(), it.ID, 1, center)
	}
	if it.Rarity > 0 && s.rng.Intn(3) == 0 {
		gems := 1 + s.rng.Intn(int(it.Rarity)/8+1)
		s.spawnObject(w, p.NetID(), items.GemsID, uint8(gems), center)
	}
}

func (s *Shard) handlePlace(ev PlaceEvent) error {
	p, ws, err := s.session(ev.ConnID)
	if err != nil {
		return s.reject(p, nil, err, nil)
	}
	w := ws.w
	it, ok := s.opts.Catalog.Get(ev.Item)
	if !ok || ev.Item == items.BlankID {
		return s.reject(p, w, fmt.Errorf("%w: %d", world.ErrUnknownItem, ev.Item), &ev.Pos)
	}
	switch it.Category {
	case items.CategoryFist, items.CategoryWrench, items.CategoryClothes, items.CategoryGems:
		return s.reject(p, w, fmt.Errorf("%w: %s can't be placed", ErrNotActionable, it.Category), &ev.Pos)
	}
	if !p.inv.Contains(ev.Item, 1) {
		return s.reject(p, w, fmt.Errorf("%w: %d", ErrMissingItem, ev.Item), &ev.Pos)
	}
	t, err := s.target(p, w, ev.Pos, p.BuildRange())
	if err != nil {
		return s.reject(p, w, err, &ev.Pos)
	}
	if err := w.CanBuild(p, t); err != nil {
		return s.reject(p, w, err, &ev.Pos)
	}

	if it.Category.IsBackground() {
		if t.Background != items.BlankID {
			return s.reject(p, w, ErrTileOccupied, &ev.Pos)
		}
		t.SetBackground(it.ID)
	} else {
		if t.Foreground != items.BlankID {
			return s.reject(p, w, ErrTileOccupied, &ev.Pos)
		}
		t.SetForeground(it.ID)
		if seed, ok := t.Extra.(*world.SeedExtra); ok {
			seed.Planted = s.opts.Now()
		}
	}

	var claimed []int
	switch it.Category {
	case items.CategoryLock:
		claimed, err = algorithm.OnLockApply(w, ev.Pos, p.UserID(), false)
	case items.CategoryWorldLock:
		err = algorithm.OnWorldLockApply(w, ev.Pos, p.UserID())
	}
	if err != nil {
		t.SetForeground(items.BlankID)
		return s.reject(p, w, err, &ev.Pos)
	}

	p.inv.Erase(ev.Item, 1)
	w.Touch()
	sendTile(w, t)

	switch it.Category {
	case items.CategoryLock:
		w.SendAll(protocol.LockApplied(p.UserID(), it.ID, t.X, t.Y, claimed))
		sendTiles(w, claimed)
		s.publishLock(w, p, t, len(claimed))
	case items.CategoryWorldLock:
		s.publishLock(w, p, t, 0)
	default:
		s.reapplyNearby(w, ev.Pos)
	}
	return nil
}

func (s *Shard) publishLock(w *world.World, p *Player, t *world.Tile, claimed int) {
	ev, err := eventbus.NewEnvelope(s.source, eventbus.TypeLockApplied, map[string]interface{}{
		"world":   w.Name,
		"owner":   float64(p.UserID()),
		"item":    float64(t.Foreground),
		"x":       float64(t.X),
		"y":       float64(t.Y),
		"claimed": float64(claimed),
	})
	if err != nil {
		s.log.Warn("Событие замка: %v", err)
		return
	}
	s.persist.publish(ev)
}

func (s *Shard) handleWrench(ev WrenchEvent) error {
	p, ws, err := s.session(ev.ConnID)
	if err != nil {
		return s.reject(p, nil, err, nil)
	}
	w := ws.w
	t, err := s.target(p, w, ev.Pos, p.BuildRange())
	if err != nil {
		return s.reject(p, w, err, &ev.Pos)
	}

	switch extra := t.Extra.(type) {
	case *world.SignExtra:
		if err := w.CanBuild(p, t); err != nil {
			return s.reject(p, w, err, &ev.Pos)
		}
		extra.Label = ev.Label
	case *world.DoorExtra:
		if err := w.CanBuild(p, t); err != nil {
			return s.reject(p, w, err, &ev.Pos)
		}
		extra.Label = ev.Label
		extra.Locked = !ev.Public
		if err := extra.SetPassword(ev.Password); err != nil {
			return s.reject(p, w, err, &ev.Pos)
		}
	case *world.LockExtra:
		if extra.OwnerID != p.UserID() && p.Role() < world.RoleDeveloper {
			return s.reject(p, w, fmt.Errorf("%w: lock of %d", world.ErrNoAccess, extra.OwnerID), &ev.Pos)
		}
		extra.Access = nil
		for _, id := range ev.Access {
			extra.AddAccess(id)
		}
		if ev.Public {
			extra.Flags |= world.LockPublic
		} else {
			extra.Flags &^= world.LockPublic
		}
	default:
		return s.reject(p, w, fmt.Errorf("%w: nothing to configure", ErrNotActionable), &ev.Pos)
	}
	w.Touch()
	sendTile(w, t)
	return nil
}

func (s *Shard) handleActivate(ev ActivateEvent) error {
	p, ws, err := s.session(ev.ConnID)
	if err != nil {
		return s.reject(p, nil, err, nil)
	}
	w := ws.w
	t, err := s.target(p, w, ev.Pos, p.BuildRange())
	if err != nil {
		return s.reject(p, w, err, &ev.Pos)
	}
	it, ok := t.ForegroundItem()
	if !ok {
		return s.reject(p, w, fmt.Errorf("%w: empty tile", ErrNotActionable), &ev.Pos)
	}

	switch it.Category {
	case items.CategoryMainDoor:
		s.leaveWorld(p)
		p.Send(protocol.CallFunction(p.NetID(), "OnRequestWorldSelectMenu"))
		return nil
	case items.CategoryDoor:
		return s.enterDoor(p, ws, t, ev.Password)
	case items.CategorySeed:
		return s.harvest(p, w, t, it)
	}
	return s.reject(p, w, fmt.Errorf("%w: %s", ErrNotActionable, it.Category), &ev.Pos)
}

// enterDoor проводит игрока через дверь. Назначение "МИР:ДВЕРЬ", ":ДВЕРЬ"
// или "МИР"; пустое назначение просто пропускает.
func (s *Shard) enterDoor(p *Player, ws *worldState, t *world.Tile, password string) error {
	w := ws.w
	door, ok := t.Extra.(*world.DoorExtra)
	if !ok {
		return s.reject(p, w, fmt.Errorf("%w: door without data", world.ErrCorrupt), nil)
	}
	pos := t.Pos()
	if p.Role() < world.RoleDeveloper && !w.IsOwner(p.UserID()) {
		if door.HasPassword() && !door.CheckPassword(password) {
			return s.reject(p, w, ErrWrongPassword, &pos)
		}
		if !door.HasPassword() && door.Locked && !w.HasAccess(p.UserID(), t) {
			return s.reject(p, w, world.ErrNoAccess, &pos)
		}
	}

	if door.Destination == "" {
		return nil
	}
	dest, doorID := splitDestination(door.Destination)
	if dest != "" && dest != w.Name {
		s.transfer(p, dest)
		return nil
	}

	target, found := w.MainDoor()
	for i := 0; i < w.TileCount(); i++ {
		other, _ := w.TileByIndex(i)
		if d, ok := other.Extra.(*world.DoorExtra); ok && doorID != "" && d.DoorID == doorID {
			target, found = other.Pos(), true
			break
		}
	}
	if !found {
		return s.reject(p, w, fmt.Errorf("%w: door %q not found", ErrNotActionable, doorID), &pos)
	}
	at := vec.TileCenter(target)
	p.SetPosition(at)
	p.Send(protocol.PositionCorrection(p.NetID(), at.X, at.Y))
	w.SendOthers(p.ConnID(), protocol.PlayerMoved(p.NetID(), at.X, at.Y, 0))
	return nil
}

func splitDestination(dest string) (worldName, doorID string) {
	for i := 0; i < len(dest); i++ {
		if dest[i] == ':' {
			return normalizeOrEmpty(dest[:i]), dest[i+1:]
		}
	}
	return normalizeOrEmpty(dest), ""
}

func normalizeOrEmpty(name string) string {
	norm, err := world.NormalizeName(name)
	if err != nil {
		return ""
	}
	return norm
}

// harvest собирает созревшее семя: плоды и, иногда, новое семя падают на землю
func (s *Shard) harvest(p *Player, w *world.World, t *world.Tile, seedItem *items.Item) error {
	pos := t.Pos()
	seed, ok := t.Extra.(*world.SeedExtra)
	if !ok {
		return s.reject(p, w, fmt.Errorf("%w: seed without data", world.ErrCorrupt), nil)
	}
	if err := w.CanBuild(p, t); err != nil {
		return s.reject(p, w, err, &pos)
	}
	now := s.opts.Now()
	if !seed.Ready(now, seedItem.GrowTime) {
		left := (seedItem.GrowTime - seed.Elapsed(now)).Round(time.Second)
		p.Send(protocol.Notice(p.NetID(), fmt.Sprintf("%s will be ready in %s.", seedItem.Name, left)))
		s.metrics.reject(classPolicy.String())
		return ErrNotReady
	}

	fruit := seed.Fruit
	if fruit == 0 {
		fruit = uint8(1 + s.rng.Intn(4))
	}
	t.SetForeground(items.BlankID)
	w.Touch()
	sendTile(w, t)

	center := vec.TileCenter(pos)
	s.spawnObject(w, p.NetID(), seedItem.ID-1, fruit, center)
	if s.rng.Intn(3) == 0 {
		s.spawnObject(w, p.NetID(), seedItem.ID, 1, center)
	}
	return nil
}

func (s *Shard) handleCollect(ev CollectEvent) error {
	p, ws, err := s.session(ev.ConnID)
	if err != nil {
		return s.reject(p, nil, err, nil)
	}
	w := ws.w
	obj, ok := w.Object(ev.ObjectID)
	if !ok {
		return s.reject(p, w, fmt.Errorf("%w: %d", world.ErrAlreadyCollected, ev.ObjectID), nil)
	}
	if !algorithm.OnFindPath(w, p, p.TilePos(), obj.Tile(), s.opts.CollectLimits) {
		return s.reject(p, w, fmt.Errorf("%w: object %d", ErrNoPath, obj.ID), nil)
	}

	added := p.inv.Add(obj.ItemID, obj.Amount)
	if added == 0 {
		return s.reject(p, w, ErrInventoryFull, nil)
	}
	if added < obj.Amount {
		left, err := w.ModifyObject(obj.ID, obj.Amount-added)
		if err != nil {
			return s.reject(p, w, err, nil)
		}
		w.Touch()
		w.SendAll(protocol.ObjectChange(protocol.ObjectModified, p.NetID(), left.ID, left.ItemID, left.Amount, left.Pos.X, left.Pos.Y))
		return nil
	}

	got, err := w.CollectObject(obj.ID)
	if err != nil {
		return s.reject(p, w, err, nil)
	}
	w.Touch()
	w.SendAll(protocol.ObjectChange(protocol.ObjectRemoved, p.NetID(), got.ID, got.ItemID, got.Amount, got.Pos.X, got.Pos.Y))
	return nil
}

func (s *Shard) handleDrop(ev DropEvent) error {
	p, ws, err := s.session(ev.ConnID)
	if err != nil {
		return s.reject(p, nil, err, nil)
	}
	w := ws.w
	it, ok := s.opts.Catalog.Get(ev.Item)
	if !ok || ev.Item == items.BlankID || ev.Amount == 0 {
		return s.reject(p, w, fmt.Errorf("%w: %d x%d", world.ErrUnknownItem, ev.Item, ev.Amount), nil)
	}
	if it.Category == items.CategoryFist || it.Category == items.CategoryWrench {
		return s.reject(p, w, fmt.Errorf("%w: %s can't be dropped", ErrNotActionable, it.Category), nil)
	}
	if !p.inv.Contains(ev.Item, ev.Amount) {
		return s.reject(p, w, fmt.Errorf("%w: %d x%d", ErrMissingItem, ev.Item, ev.Amount), nil)
	}

	obj, merged, err := w.AddObject(ev.Item, ev.Amount, p.Position(), 0)
	if err != nil {
		return s.reject(p, w, err, nil)
	}
	p.inv.Erase(ev.Item, ev.Amount)
	w.Touch()
	kind := protocol.ObjectAdded
	if merged {
		kind = protocol.ObjectModified
	}
	w.SendAll(protocol.ObjectChange(kind, p.NetID(), obj.ID, obj.ItemID, obj.Amount, obj.Pos.X, obj.Pos.Y))
	return nil
}

func (s *Shard) handleSteam(ev SteamActivateEvent) error {
	p, ws, err := s.session(ev.ConnID)
	if err != nil {
		return s.reject(p, nil, err, nil)
	}
	w := ws.w
	t, err := s.target(p, w, ev.Pos, p.PunchRange())
	if err != nil {
		return s.reject(p, w, err, &ev.Pos)
	}
	it, _ := t.ForegroundItem()
	if !algorithm.IsSteamPowered(it) {
		return s.reject(p, w, fmt.Errorf("%w: not a steam tile", ErrNotActionable), &ev.Pos)
	}
	if err := w.CanBuild(p, t); err != nil {
		return s.reject(p, w, err, &ev.Pos)
	}

	for _, act := range algorithm.OnSteamPulse(w, ev.Pos, ev.Dir) {
		act := act
		s.sched.After(s.opts.Now(), act.Delay, func(time.Time) {
			s.fireSteam(ws, act)
		})
	}
	return nil
}

// fireSteam срабатывание импульса. Выгруженный мир или сменившийся тайл
// превращают вызов в пустой.
func (s *Shard) fireSteam(ws *worldState, act algorithm.SteamActivation) {
	if cur, ok := s.worlds[ws.w.Name]; !ok || cur != ws {
		return
	}
	w := ws.w
	res := algorithm.OnSteamActive(w, act)
	if res.Fired {
		w.SendAll(protocol.SteamEffect(act.Pos.X, act.Pos.Y, uint8(act.Effect), 0))
	}
	if res.TileChanged {
		if t, ok := w.TileAt(act.Pos); ok {
			sendTile(w, t)
		}
	}
}
