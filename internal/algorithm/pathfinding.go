package algorithm

import (
	"container/heap"

	"github.com/annel0/tileworld/internal/items"
	"github.com/annel0/tileworld/internal/vec"
	"github.com/annel0/tileworld/internal/world"
)

// PathLimits ограничения поиска пути
type PathLimits struct {
	Range    int // Тайлы дальше Range по Чебышёву от старта считаются препятствием
	MaxSteps int // Максимальная длина пути в шагах
}

var (
	// MoveLimits короткий шаг: проверка одного обновления позиции
	MoveLimits = PathLimits{Range: 3, MaxSteps: 6}
	// CollectLimits дотянуться до объекта пешком
	CollectLimits = PathLimits{Range: 6, MaxSteps: 16}
)

// pathArena рабочие поля A* для окна вокруг старта. Создаётся на каждый
// вызов, сам мир не хранит служебных данных поиска.
type pathArena struct {
	origin vec.Vec2 // Левый верхний угол окна в координатах мира
	side   int
	local  []int32 // Стоимость от старта, -1 если не достигнут
	parent []int32
	closed []bool
}

func newPathArena(from vec.Vec2, radius int) *pathArena {
	side := 2*radius + 1
	a := &pathArena{
		origin: vec.Vec2{X: from.X - radius, Y: from.Y - radius},
		side:   side,
		local:  make([]int32, side*side),
		parent: make([]int32, side*side),
		closed: make([]bool, side*side),
	}
	for i := range a.local {
		a.local[i] = -1
		a.parent[i] = -1
	}
	return a
}

func (a *pathArena) index(p vec.Vec2) (int, bool) {
	x, y := p.X-a.origin.X, p.Y-a.origin.Y
	if x < 0 || y < 0 || x >= a.side || y >= a.side {
		return 0, false
	}
	return y*a.side + x, true
}

// path восстанавливает путь от старта до узла end
func (a *pathArena) path(end int) []vec.Vec2 {
	var out []vec.Vec2
	for i := int32(end); i != -1; i = a.parent[i] {
		out = append(out, vec.Vec2{X: a.origin.X + int(i)%a.side, Y: a.origin.Y + int(i)/a.side})
	}
	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return out
}

// pathNode элемент открытого списка. seq задаёт FIFO среди равных по стоимости.
type pathNode struct {
	pos    vec.Vec2
	global int
	seq    int
}

type openList []pathNode

func (o openList) Len() int { return len(o) }

func (o openList) Less(i, j int) bool {
	if o[i].global != o[j].global {
		return o[i].global < o[j].global
	}
	return o[i].seq < o[j].seq
}

func (o openList) Swap(i, j int) { o[i], o[j] = o[j], o[i] }

func (o *openList) Push(x interface{}) { *o = append(*o, x.(pathNode)) }

func (o *openList) Pop() interface{} {
	old := *o
	n := len(old)
	item := old[n-1]
	*o = old[:n-1]
	return item
}

// IsObstacle сообщает, мешает ли тайл пройти игроку
func IsObstacle(w *world.World, actor world.Player, t *world.Tile) bool {
	it, ok := t.ForegroundItem()
	if !ok {
		return false
	}
	switch it.Collision {
	case items.CollisionFull:
		return true
	case items.CollisionGateway:
		return actor == nil || !w.HasAccess(actor.UserID(), t)
	case items.CollisionIfOff:
		return t.Flags&world.FlagOpen == 0
	case items.CollisionIfOn:
		return t.Flags&world.FlagOpen != 0
	}
	if door, ok := t.Extra.(*world.DoorExtra); ok && door.Locked {
		return actor == nil || !w.HasAccess(actor.UserID(), t)
	}
	return false
}

// OnFindPath проверяет, может ли игрок дойти из from в to с учётом
// ограничений.
func OnFindPath(w *world.World, actor world.Player, from, to vec.Vec2, limits PathLimits) bool {
	_, ok := FindPath(w, actor, from, to, limits)
	return ok
}

// FindPath ищет путь A* по 4 направлениям с манхэттенской эвристикой;
// из равных по стоимости узлов первым раскрывается добавленный раньше.
// Разработчик проходит сквозь препятствия, но не за пределы limits.
// Путь включает from и to.
func FindPath(w *world.World, actor world.Player, from, to vec.Vec2, limits PathLimits) ([]vec.Vec2, bool) {
	if !w.InBounds(from.X, from.Y) || !w.InBounds(to.X, to.Y) {
		return nil, false
	}
	if from == to {
		return []vec.Vec2{from}, true
	}
	if to.Chebyshev(from) > limits.Range || to.Manhattan(from) > limits.MaxSteps {
		return nil, false
	}

	ignoreObstacles := actor != nil && actor.Role() >= world.RoleDeveloper
	passable := func(p vec.Vec2) bool {
		if p.Chebyshev(from) > limits.Range {
			return false
		}
		t, ok := w.TileAt(p)
		if !ok {
			return false
		}
		return ignoreObstacles || !IsObstacle(w, actor, t)
	}
	if !passable(to) {
		return nil, false
	}

	arena := newPathArena(from, limits.Range)
	start, _ := arena.index(from)
	arena.local[start] = 0

	open := &openList{}
	seq := 0
	heap.Push(open, pathNode{pos: from, global: to.Manhattan(from), seq: seq})

	for open.Len() > 0 {
		cur := heap.Pop(open).(pathNode)
		ci, _ := arena.index(cur.pos)
		if arena.closed[ci] {
			continue
		}
		arena.closed[ci] = true
		if cur.pos == to {
			if int(arena.local[ci]) > limits.MaxSteps {
				return nil, false
			}
			return arena.path(ci), true
		}

		cost := arena.local[ci] + 1
		for _, d := range neighbourDirs {
			next := cur.pos.Add(d)
			ni, ok := arena.index(next)
			if !ok || arena.closed[ni] || !passable(next) {
				continue
			}
			if arena.local[ni] != -1 && arena.local[ni] <= cost {
				continue
			}
			global := int(cost) + next.Manhattan(to)
			if global > limits.MaxSteps {
				continue
			}
			arena.local[ni] = cost
			arena.parent[ni] = int32(ci)
			seq++
			heap.Push(open, pathNode{pos: next, global: global, seq: seq})
		}
	}
	return nil, false
}
