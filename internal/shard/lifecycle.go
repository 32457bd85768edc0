package shard

import (
	"github.com/annel0/tileworld/internal/protocol"
	"github.com/annel0/tileworld/internal/vec"
	"github.com/annel0/tileworld/internal/world"
	"github.com/annel0/tileworld/internal/worldgen"
)

// handleJoin вводит соединение в мир. Если мир не загружен, игрок ждёт
// загрузки, а воркер получает задание.
func (s *Shard) handleJoin(ev JoinEvent) {
	name, err := world.NormalizeName(ev.World)
	if err != nil {
		if ev.Conn != nil {
			ev.Conn.Send(protocol.Notice(-1, "Invalid world name."))
		}
		s.metrics.reject(classInvalid.String())
		return
	}

	// Соединение могло закрыться, пока событие шло от другого шарда.
	if c, ok := ev.Conn.(interface{ Closed() bool }); ok && c.Closed() {
		return
	}

	p, ok := s.players[ev.ConnID]
	if ok {
		s.leaveWorld(p)
	} else {
		s.netID++
		p = newPlayer(ev, s.netID, s.opts.Catalog)
		s.players[ev.ConnID] = p
	}
	p.world = name

	if ws, ok := s.worlds[name]; ok {
		s.enterWorld(p, ws)
		return
	}
	s.pending[name] = append(s.pending[name], p)
	if len(s.pending[name]) == 1 {
		s.persist.enqueue(persistJob{kind: jobLoad, name: name})
		s.log.Debug("Загрузка мира %s для %s", name, p.Name())
	}
}

// handleWorldLoaded принимает мир от воркера и вводит в него ждущих игроков
func (s *Shard) handleWorldLoaded(ev worldLoadedEvent) {
	waiting := s.pending[ev.name]
	delete(s.pending, ev.name)

	if ev.err != nil {
		for _, p := range waiting {
			if s.players[p.connID] != p || p.world != ev.name {
				continue
			}
			p.world = ""
			s.reject(p, nil, ev.err, nil)
		}
		return
	}

	ws, ok := s.worlds[ev.world.Name]
	if !ok {
		ws = s.adopt(ev.world)
	}
	entered := 0
	for _, p := range waiting {
		if s.players[p.connID] != p || p.world != ev.name || p.inside {
			continue
		}
		s.enterWorld(p, ws)
		entered++
	}
	if entered == 0 {
		s.scheduleEvict(ws)
	}
}

// enterWorld добавляет игрока в загруженный мир и отправляет ему мир
func (s *Shard) enterWorld(p *Player, ws *worldState) {
	w := ws.w
	if w.HasBan(p.UserID()) && p.Role() < world.RoleModerator {
		p.world = ""
		s.reject(p, w, world.ErrBanned, nil)
		if w.PlayerCount() == 0 {
			s.scheduleEvict(ws)
		}
		return
	}

	spawn := vec.TileCenter(worldgen.SpawnPoint(w))
	p.SetPosition(spawn)
	p.inside = true
	if t, ok := p.conn.(WorldTracker); ok {
		t.EnteredWorld(w.Name)
	}

	p.Send(protocol.ItemDatabase(s.opts.Catalog.Pack(), s.opts.Catalog.Hash()))
	p.Send(protocol.MapData(w.PackNetwork()))
	for _, other := range w.Players() {
		pos := other.Position()
		p.Send(protocol.Spawn(other.NetID(), other.Name(), pos.X, pos.Y))
	}
	w.AddPlayer(p)
	w.SendAll(protocol.Spawn(p.NetID(), p.Name(), spawn.X, spawn.Y))
	s.log.Info("%s вошёл в мир %s (%s)", p.Name(), w.Name, s.source)
}

// leaveWorld убирает игрока из текущего мира, соединение остаётся
func (s *Shard) leaveWorld(p *Player) {
	name := p.world
	p.world = ""
	if !p.inside {
		s.dropPending(name, p)
		return
	}
	p.inside = false

	ws, ok := s.worlds[name]
	if !ok {
		return
	}
	w := ws.w
	if !w.RemovePlayer(p.ConnID()) {
		return
	}
	w.SendAll(protocol.Remove(p.NetID()))
	if w.PlayerCount() == 0 {
		s.scheduleEvict(ws)
	}
}

func (s *Shard) dropPending(name string, p *Player) {
	list := s.pending[name]
	for i, q := range list {
		if q == p {
			s.pending[name] = append(list[:i], list[i+1:]...)
			break
		}
	}
}

func (s *Shard) handleLeave(ev LeaveEvent) {
	p, ok := s.players[ev.ConnID]
	if !ok {
		return
	}
	s.leaveWorld(p)
	delete(s.players, ev.ConnID)
}

// transfer переводит игрока в другой мир. Если мир обслуживает другой
// шард, соединение передаётся ему.
func (s *Shard) transfer(p *Player, dest string) {
	target := s
	if s.route != nil {
		target = s.route(dest)
	}
	join := JoinEvent{
		Conn:   p.conn,
		ConnID: p.connID,
		UserID: p.userID,
		Name:   p.name,
		Role:   p.role,
		World:  dest,
	}
	if target == s {
		s.handleJoin(join)
		return
	}

	s.leaveWorld(p)
	delete(s.players, p.connID)
	if p.conn != nil {
		p.conn.Rebind(target)
	}
	// Очередь другого шарда может быть полна; отправка не должна держать цикл.
	go func() {
		select {
		case target.inbox <- join:
		case <-target.stopped:
		}
	}()
}
