package algorithm

import (
	"time"

	"github.com/annel0/tileworld/internal/items"
	"github.com/annel0/tileworld/internal/vec"
	"github.com/annel0/tileworld/internal/world"
)

const (
	// SteamPowerLength максимальная длина одного импульса пара в тайлах
	SteamPowerLength = 49
	// SteamStepDelay задержка на каждый шаг импульса
	SteamStepDelay = 100 * time.Millisecond
)

// Direction направление импульса пара
type Direction uint8

const (
	DirNone Direction = iota
	DirLeft
	DirRight
	DirUp
	DirDown
)

func (d Direction) step() vec.Vec2 {
	switch d {
	case DirLeft:
		return vec.Vec2{X: -1}
	case DirRight:
		return vec.Vec2{X: 1}
	case DirUp:
		return vec.Vec2{Y: -1}
	case DirDown:
		return vec.Vec2{Y: 1}
	default:
		return vec.Vec2{}
	}
}

// SteamEffect эффект, применяемый к тайлу при срабатывании импульса
type SteamEffect uint8

const (
	EffectPulse SteamEffect = iota
	EffectActivateVent
	EffectOpenDoor
	EffectCloseDoor
	EffectOpenLauncher
	EffectCloseLauncher
	EffectEngineSpurt
	EffectActivateLamp
	EffectOpenSpike
	EffectCloseSpike
)

var steamEffectNames = [...]string{
	"PULSE", "ACTIVATE_VENT", "OPEN_DOOR", "CLOSE_DOOR", "OPEN_LAUNCHER",
	"CLOSE_LAUNCHER", "ENGINE_SPURT", "ACTIVATE_LAMP", "OPEN_SPIKE", "CLOSE_SPIKE",
}

func (e SteamEffect) String() string {
	if int(e) < len(steamEffectNames) {
		return steamEffectNames[e]
	}
	return "UNKNOWN"
}

// SteamActivation отложенное срабатывание тайла паровой сети
type SteamActivation struct {
	Pos    vec.Vec2
	Item   items.ID
	Effect SteamEffect
	Hop    int
	Delay  time.Duration
}

// IsSteamPowered сообщает, участвует ли предмет в паровой сети
func IsSteamPowered(it *items.Item) bool {
	return it != nil && it.Category.IsSteam()
}

// toggle выбирает открытие или закрытие по текущему состоянию тайла
func toggle(t *world.Tile, open, close SteamEffect) SteamEffect {
	if t.Flags&world.FlagOpen != 0 {
		return close
	}
	return open
}

// SteamEffectFor определяет эффект для тайла. Целевое состояние
// переключаемых предметов фиксируется в момент планирования, поэтому
// повторное срабатывание того же импульса ничего не меняет.
func SteamEffectFor(t *world.Tile) (SteamEffect, bool) {
	it, ok := t.ForegroundItem()
	if !ok || !IsSteamPowered(it) {
		return 0, false
	}
	switch it.Category {
	case items.CategorySteamVent:
		return EffectActivateVent, true
	case items.CategorySteamDoor:
		return toggle(t, EffectOpenDoor, EffectCloseDoor), true
	case items.CategorySteamLauncher:
		return toggle(t, EffectOpenLauncher, EffectCloseLauncher), true
	case items.CategorySteamEngine:
		return EffectEngineSpurt, true
	case items.CategorySteamLamp:
		return EffectActivateLamp, true
	case items.CategorySteamSpike:
		return toggle(t, EffectOpenSpike, EffectCloseSpike), true
	default:
		return EffectPulse, true
	}
}

// OnSteamPulse строит расписание импульса от тайла src в направлении dir.
// Проходятся до SteamPowerLength тайлов до первого тайла вне сети или
// границы мира; задержка растёт на SteamStepDelay с каждым шагом.
// DirNone срабатывает только сам src.
func OnSteamPulse(w *world.World, src vec.Vec2, dir Direction) []SteamActivation {
	if dir == DirNone {
		t, ok := w.TileAt(src)
		if !ok {
			return nil
		}
		effect, ok := SteamEffectFor(t)
		if !ok {
			return nil
		}
		return []SteamActivation{{Pos: src, Item: t.Foreground, Effect: effect, Hop: 1, Delay: SteamStepDelay}}
	}

	step := dir.step()
	var out []SteamActivation
	pos := src
	for hop := 1; hop <= SteamPowerLength; hop++ {
		pos = pos.Add(step)
		t, ok := w.TileAt(pos)
		if !ok {
			break
		}
		effect, ok := SteamEffectFor(t)
		if !ok {
			break
		}
		out = append(out, SteamActivation{
			Pos:    pos,
			Item:   t.Foreground,
			Effect: effect,
			Hop:    hop,
			Delay:  time.Duration(hop) * SteamStepDelay,
		})
	}
	return out
}

// SteamResult итог срабатывания
type SteamResult struct {
	Fired       bool // Эффект сработал (клиенты должны показать его)
	TileChanged bool // Изменилось состояние тайла (нужно обновление тайла)
}

// OnSteamActive применяет запланированное срабатывание. Тайл
// перепроверяется: если предмет сменился или тайла нет, ничего не
// происходит. Переключатели, уже находящиеся в целевом состоянии, не меняются.
func OnSteamActive(w *world.World, act SteamActivation) SteamResult {
	t, ok := w.TileAt(act.Pos)
	if !ok || t.Foreground != act.Item {
		return SteamResult{}
	}
	it, ok := t.ForegroundItem()
	if !ok || !IsSteamPowered(it) {
		return SteamResult{}
	}

	switch act.Effect {
	case EffectOpenDoor, EffectOpenLauncher, EffectOpenSpike, EffectActivateLamp:
		if t.Flags&world.FlagOpen != 0 {
			return SteamResult{}
		}
		t.Flags |= world.FlagOpen
		w.Touch()
		return SteamResult{Fired: true, TileChanged: true}
	case EffectCloseDoor, EffectCloseLauncher, EffectCloseSpike:
		if t.Flags&world.FlagOpen == 0 {
			return SteamResult{}
		}
		t.Flags &^= world.FlagOpen
		w.Touch()
		return SteamResult{Fired: true, TileChanged: true}
	default:
		return SteamResult{Fired: true}
	}
}
