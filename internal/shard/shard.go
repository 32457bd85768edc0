// Package shard реализует однопоточный цикл обработки событий: шард
// владеет своими мирами и соединениями, все изменения миров идут из
// одной горутины. Хранение вынесено в отдельный воркер.
package shard

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/tileworld/internal/algorithm"
	"github.com/annel0/tileworld/internal/cache"
	"github.com/annel0/tileworld/internal/eventbus"
	"github.com/annel0/tileworld/internal/items"
	"github.com/annel0/tileworld/internal/logging"
	"github.com/annel0/tileworld/internal/storage"
	"github.com/annel0/tileworld/internal/world"
	"github.com/annel0/tileworld/internal/worldgen"
)

// ErrStopped шард остановлен и не принимает события
var ErrStopped = errors.New("shard: stopped")

// Options параметры шарда
type Options struct {
	ID          int
	Node        string // Имя узла для каталога владельцев миров
	Catalog     *items.Catalog
	Repo        *storage.WorldRepo
	Directory   cache.Directory   // nil отключает закрепление миров
	Bus         eventbus.EventBus // nil отключает публикацию событий
	Generator   *worldgen.Generator
	Metrics     *Metrics
	WorldWidth  int
	WorldHeight int

	// Пределы проверки пути, нулевые берутся из algorithm
	MoveLimits    algorithm.PathLimits
	CollectLimits algorithm.PathLimits

	TickInterval time.Duration
	EvictGrace   time.Duration
	SaveInterval time.Duration
	QueueSize    int

	Now  func() time.Time
	Seed int64 // Зерно генератора дропа
}

func (o *Options) setDefaults() {
	if o.Catalog == nil {
		o.Catalog = items.Default()
	}
	if o.Generator == nil {
		o.Generator = worldgen.NewGenerator(0)
	}
	if o.Metrics == nil {
		o.Metrics = NewMetrics(nil)
	}
	if o.WorldWidth == 0 {
		o.WorldWidth = world.DefaultWidth
	}
	if o.WorldHeight == 0 {
		o.WorldHeight = world.DefaultHeight
	}
	if o.MoveLimits.Range <= 0 || o.MoveLimits.MaxSteps <= 0 {
		o.MoveLimits = algorithm.MoveLimits
	}
	if o.CollectLimits.Range <= 0 || o.CollectLimits.MaxSteps <= 0 {
		o.CollectLimits = algorithm.CollectLimits
	}
	if o.TickInterval <= 0 {
		o.TickInterval = 50 * time.Millisecond
	}
	if o.EvictGrace <= 0 {
		o.EvictGrace = 30 * time.Second
	}
	if o.SaveInterval <= 0 {
		o.SaveInterval = 2 * time.Minute
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 1024
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Node == "" {
		o.Node = "local"
	}
}

// worldState загруженный мир шарда
type worldState struct {
	w         *world.World
	lastSaved time.Time
}

// Shard владеет подмножеством миров и их игроков. Все поля кроме inbox и
// snapshot используются только из горутины Run.
type Shard struct {
	opts    Options
	source  string
	inbox   chan Event
	stopped chan struct{}

	sched   *Scheduler
	worlds  map[string]*worldState
	pending map[string][]*Player
	players map[uint64]*Player
	netID   int32
	rng     *rand.Rand

	persist  *persister
	snapshot atomic.Pointer[Snapshot]
	metrics  shardMetrics
	tracer   trace.Tracer
	log      *logging.Logger

	// route находит шард для мира; задаётся пулом
	route func(name string) *Shard
}

// New создаёт шард. Repo обязателен.
func New(opts Options) (*Shard, error) {
	if opts.Repo == nil {
		return nil, fmt.Errorf("shard %d: world repository is required", opts.ID)
	}
	opts.setDefaults()

	s := &Shard{
		opts:    opts,
		source:  fmt.Sprintf("shard-%d@%s", opts.ID, opts.Node),
		inbox:   make(chan Event, opts.QueueSize),
		stopped: make(chan struct{}),
		sched:   NewScheduler(),
		worlds:  make(map[string]*worldState),
		pending: make(map[string][]*Player),
		players: make(map[uint64]*Player),
		rng:     rand.New(rand.NewSource(opts.Seed)),
		metrics: opts.Metrics.forShard(opts.ID),
		tracer:  otel.Tracer("github.com/annel0/tileworld/internal/shard"),
		log:     logging.GetShardLogger(),
	}
	s.persist = newPersister(s.source, opts, s.deliver)
	s.snapshot.Store(&Snapshot{Shard: opts.ID})
	return s, nil
}

// ID номер шарда в пуле
func (s *Shard) ID() int { return s.opts.ID }

// Source имя шарда как владельца миров и источника событий
func (s *Shard) Source() string { return s.source }

// Submit передаёт событие в цикл шарда. Блокируется, пока очередь полна.
func (s *Shard) Submit(ctx context.Context, ev Event) error {
	select {
	case <-s.stopped:
		return ErrStopped
	default:
	}
	select {
	case s.inbox <- ev:
		return nil
	case <-s.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// deliver передаёт результат воркера в цикл. После остановки цикла
// результаты отбрасываются.
func (s *Shard) deliver(ev Event) bool {
	select {
	case s.inbox <- ev:
		return true
	case <-s.stopped:
		return false
	}
}

// Snapshot последний снимок состояния шарда. Безопасен для вызова из
// любой горутины, может отставать на один тик.
func (s *Shard) Snapshot() Snapshot {
	return *s.snapshot.Load()
}

// Run выполняет цикл шарда до отмены ctx. При остановке все загруженные
// миры сохраняются, воркер хранения дорабатывает очередь.
func (s *Shard) Run(ctx context.Context) error {
	persistCtx, cancelPersist := context.WithCancel(context.Background())
	defer cancelPersist()
	go s.persist.run(persistCtx)

	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()
	s.sched.After(s.opts.Now(), s.opts.SaveInterval, s.autosave)

	s.log.Info("Шард %s запущен", s.source)
	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return nil
		case ev := <-s.inbox:
			s.handle(ctx, ev)
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Shard) shutdown() {
	close(s.stopped)
	for name, ws := range s.worlds {
		s.persist.enqueue(persistJob{kind: jobSave, name: name, snap: storage.TakeSnapshot(ws.w), release: true})
	}
	s.persist.close()
	<-s.persist.done
	s.log.Info("Шард %s остановлен, сохранено миров: %d", s.source, len(s.worlds))
}

// tick выполняет наступившие отложенные вызовы и обновляет снимок
func (s *Shard) tick() {
	start := time.Now()
	s.sched.RunDue(s.opts.Now())
	s.refreshSnapshot()
	s.metrics.observeTick(time.Since(start))
}

// autosave периодически сохраняет изменившиеся миры
func (s *Shard) autosave(now time.Time) {
	for name, ws := range s.worlds {
		if !ws.w.UpdatedAt.After(ws.lastSaved) && !ws.lastSaved.IsZero() {
			continue
		}
		s.persist.enqueue(persistJob{kind: jobSave, name: name, snap: storage.TakeSnapshot(ws.w)})
		ws.lastSaved = ws.w.UpdatedAt
	}
	s.sched.After(now, s.opts.SaveInterval, s.autosave)
}

// handle обрабатывает одно событие
func (s *Shard) handle(ctx context.Context, ev Event) {
	_, span := s.tracer.Start(ctx, "shard.handle", trace.WithAttributes(
		attribute.String("event", ev.Kind()),
		attribute.Int("shard", s.opts.ID),
	))
	defer span.End()
	s.metrics.event(ev.Kind())

	var err error
	switch e := ev.(type) {
	case JoinEvent:
		s.handleJoin(e)
	case LeaveEvent:
		s.handleLeave(e)
	case worldLoadedEvent:
		s.handleWorldLoaded(e)
	case MoveEvent:
		err = s.handleMove(e)
	case PunchEvent:
		err = s.handlePunch(e)
	case PlaceEvent:
		err = s.handlePlace(e)
	case WrenchEvent:
		err = s.handleWrench(e)
	case ActivateEvent:
		err = s.handleActivate(e)
	case CollectEvent:
		err = s.handleCollect(e)
	case DropEvent:
		err = s.handleDrop(e)
	case SteamActivateEvent:
		err = s.handleSteam(e)
	default:
		s.log.Warn("Неизвестное событие %T", ev)
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
}

// session игрок соединения и его мир, если он в мире
func (s *Shard) session(connID uint64) (*Player, *worldState, error) {
	p, ok := s.players[connID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: connection %d", ErrNotInWorld, connID)
	}
	ws, ok := s.worlds[p.world]
	if !ok || !p.inside {
		return p, nil, fmt.Errorf("%w: connection %d", ErrNotInWorld, connID)
	}
	return p, ws, nil
}

// adopt делает мир загруженным в шарде
func (s *Shard) adopt(w *world.World) *worldState {
	ws := &worldState{w: w, lastSaved: w.UpdatedAt}
	s.worlds[w.Name] = ws
	return ws
}

// scheduleEvict планирует выгрузку опустевшего мира. При срабатывании
// мир выгружается, только если он всё ещё загружен и пуст.
func (s *Shard) scheduleEvict(ws *worldState) {
	name := ws.w.Name
	s.sched.After(s.opts.Now(), s.opts.EvictGrace, func(now time.Time) {
		cur, ok := s.worlds[name]
		if !ok || cur != ws || cur.w.PlayerCount() > 0 || len(s.pending[name]) > 0 {
			return
		}
		s.unload(cur)
	})
}

func (s *Shard) unload(ws *worldState) {
	name := ws.w.Name
	delete(s.worlds, name)
	s.persist.enqueue(persistJob{kind: jobSave, name: name, snap: storage.TakeSnapshot(ws.w), release: true})
	s.log.Info("Мир %s выгружен из %s", name, s.source)
}

// world загруженный мир по имени
func (s *Shard) world(name string) (*world.World, bool) {
	ws, ok := s.worlds[name]
	if !ok {
		return nil, false
	}
	return ws.w, true
}
