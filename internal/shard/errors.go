package shard

import (
	"errors"

	"github.com/annel0/tileworld/internal/protocol"
	"github.com/annel0/tileworld/internal/vec"
	"github.com/annel0/tileworld/internal/world"
)

// Ошибки запросов шарда. Классифицируются вместе с ошибками мира.
var (
	ErrNotInWorld    = errors.New("shard: player is not in a world")
	ErrOutOfReach    = errors.New("shard: target out of reach")
	ErrTileOccupied  = errors.New("shard: tile occupied")
	ErrMissingItem   = errors.New("shard: item not in inventory")
	ErrNotActionable = errors.New("shard: tile has nothing to do")
	ErrNoPath        = errors.New("shard: no path to target")
	ErrInventoryFull = errors.New("shard: inventory full")
	ErrNotReady      = errors.New("shard: not ready yet")
	ErrWrongPassword = errors.New("shard: wrong password")
)

// Класс ошибки определяет ответ игроку
type errorClass uint8

const (
	classInvalid errorClass = iota // Коррекция состояния только запросившему
	classPolicy                    // Уведомление запросившему
	classRace                      // Тихий отказ
	classInternal
)

func (c errorClass) String() string {
	switch c {
	case classInvalid:
		return "invalid"
	case classPolicy:
		return "policy"
	case classRace:
		return "race"
	default:
		return "internal"
	}
}

func classify(err error) errorClass {
	switch {
	case world.IsInvalidRequest(err),
		errors.Is(err, ErrNotInWorld),
		errors.Is(err, ErrOutOfReach),
		errors.Is(err, ErrTileOccupied),
		errors.Is(err, ErrMissingItem),
		errors.Is(err, ErrNotActionable),
		errors.Is(err, ErrNoPath):
		return classInvalid
	case world.IsPolicyDenial(err),
		errors.Is(err, ErrWrongPassword),
		errors.Is(err, ErrInventoryFull),
		errors.Is(err, ErrNotReady),
		errors.Is(err, ErrWorldBusy):
		return classPolicy
	case world.IsRace(err):
		return classRace
	default:
		return classInternal
	}
}

var noticeText = map[error]string{
	world.ErrNoAccess: "That area is owned by someone else.",
	world.ErrBanned:   "You are banned from this world.",
	ErrWrongPassword:  "Wrong password!",
	ErrInventoryFull:  "Your backpack is full.",
	ErrNotReady:       "It is not ready yet.",
	ErrWorldBusy:      "That world is busy, try again later.",
}

func noticeFor(err error) string {
	for target, text := range noticeText {
		if errors.Is(err, target) {
			return text
		}
	}
	return "You can't do that."
}

// reject отвечает игроку на отклонённый запрос. at тайл запроса, если он
// был: при некорректном запросе клиенту возвращается настоящее состояние
// тайла и позиция игрока.
func (s *Shard) reject(p *Player, w *world.World, err error, at *vec.Vec2) error {
	class := classify(err)
	s.metrics.reject(class.String())
	if p == nil {
		return err
	}

	switch class {
	case classInvalid:
		pos := p.Position()
		p.Send(protocol.PositionCorrection(p.NetID(), pos.X, pos.Y))
		if w != nil && at != nil {
			if t, ok := w.TileAt(*at); ok {
				p.Send(protocol.TileUpdate(t.X, t.Y, w.PackTile(t), 0))
			}
		}
		s.log.Debug("Некорректный запрос от %s: %v", p.Name(), err)
	case classPolicy:
		p.Send(protocol.Notice(p.NetID(), noticeFor(err)))
	case classRace:
	default:
		s.log.Error("Запрос %s: %v", p.Name(), err)
	}
	return err
}
