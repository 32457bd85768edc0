package shard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/annel0/tileworld/internal/cache"
	"github.com/annel0/tileworld/internal/eventbus"
	"github.com/annel0/tileworld/internal/items"
	"github.com/annel0/tileworld/internal/logging"
	"github.com/annel0/tileworld/internal/storage"
	"github.com/annel0/tileworld/internal/world"
	"github.com/annel0/tileworld/internal/worldgen"
)

// ErrWorldBusy мир обслуживает другой шард или узел
var ErrWorldBusy = errors.New("shard: world is owned by another shard")

type jobKind uint8

const (
	jobLoad jobKind = iota
	jobSave
	jobPublish
)

type persistJob struct {
	kind    jobKind
	name    string
	snap    storage.Snapshot
	release bool // После сохранения снять закрепление мира (выгрузка)
	event   *eventbus.Envelope
}

// persister воркер хранения шарда. Цикл шарда только ставит задания в
// очередь и никогда не ждёт ввода-вывода; результаты загрузки приходят
// обратно событием worldLoadedEvent.
type persister struct {
	source  string
	repo    *storage.WorldRepo
	dir     cache.Directory
	bus     eventbus.EventBus
	gen     *worldgen.Generator
	catalog *items.Catalog
	width   int
	height  int
	deliver func(Event) bool
	log     *logging.Logger

	mu     sync.Mutex
	queue  []persistJob
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func newPersister(source string, opts Options, deliver func(Event) bool) *persister {
	return &persister{
		source:  source,
		repo:    opts.Repo,
		dir:     opts.Directory,
		bus:     opts.Bus,
		gen:     opts.Generator,
		catalog: opts.Catalog,
		width:   opts.WorldWidth,
		height:  opts.WorldHeight,
		deliver: deliver,
		log:     logging.GetStorageLogger(),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// enqueue ставит задание в очередь. Очередь не ограничена, вызов не блокируется.
func (p *persister) enqueue(job persistJob) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	p.queue = append(p.queue, job)
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return true
}

func (p *persister) publish(ev *eventbus.Envelope) {
	if p.bus == nil || ev == nil {
		return
	}
	p.enqueue(persistJob{kind: jobPublish, event: ev})
}

// pending количество заданий в очереди
func (p *persister) pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// close запрещает новые задания. run дорабатывает очередь и завершается.
func (p *persister) close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *persister) next() (persistJob, bool, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return persistJob{}, false, p.closed
	}
	job := p.queue[0]
	p.queue[0] = persistJob{}
	p.queue = p.queue[1:]
	return job, true, false
}

func (p *persister) run(ctx context.Context) {
	defer close(p.done)
	for {
		job, ok, closed := p.next()
		if closed {
			return
		}
		if !ok {
			select {
			case <-p.wake:
			case <-ctx.Done():
				return
			}
			continue
		}
		p.process(ctx, job)
	}
}

func (p *persister) process(ctx context.Context, job persistJob) {
	switch job.kind {
	case jobLoad:
		w, err := p.load(ctx, job.name)
		if err != nil {
			p.log.Warn("Загрузка мира %s: %v", job.name, err)
		}
		p.deliver(worldLoadedEvent{name: job.name, world: w, err: err})
	case jobSave:
		p.save(ctx, job)
	case jobPublish:
		if err := p.bus.Publish(ctx, job.event); err != nil {
			p.log.Warn("Публикация %s: %v", job.event.EventType, err)
		}
	}
}

// load закрепляет мир за шардом и читает его из хранилища. Отсутствующий
// или повреждённый мир генерируется заново.
func (p *persister) load(ctx context.Context, name string) (*world.World, error) {
	if p.dir != nil {
		ok, err := p.dir.Claim(ctx, name, p.source)
		if err != nil {
			return nil, fmt.Errorf("закрепление мира: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrWorldBusy, name)
		}
	}

	w, err := p.repo.LoadByName(ctx, name)
	generated := false
	switch {
	case err == nil:
	case storage.IsNotFound(err), errors.Is(err, world.ErrCorrupt):
		if errors.Is(err, world.ErrCorrupt) {
			p.log.Error("Мир %s повреждён, генерируем заново: %v", name, err)
		}
		w, err = p.generate(ctx, name)
		generated = true
	}
	if err != nil {
		p.releaseClaim(ctx, name)
		return nil, err
	}

	ev, evErr := eventbus.NewEnvelope(p.source, eventbus.TypeWorldLoaded, map[string]interface{}{
		"world":     w.Name,
		"id":        float64(w.ID),
		"generated": generated,
	})
	if evErr == nil && p.bus != nil {
		if err := p.bus.Publish(ctx, ev); err != nil {
			p.log.Warn("Публикация %s: %v", ev.EventType, err)
		}
	}
	return w, nil
}

func (p *persister) generate(ctx context.Context, name string) (*world.World, error) {
	w, err := p.gen.Generate(name, p.width, p.height, p.catalog)
	if err != nil {
		return nil, fmt.Errorf("генерация мира: %w", err)
	}
	if err := p.repo.AssignID(ctx, w); err != nil {
		return nil, err
	}
	if err := p.repo.Save(ctx, w); err != nil {
		return nil, err
	}
	p.log.Info("Сгенерирован мир %s (id=%d, %dx%d)", w.Name, w.ID, w.Width, w.Height)
	return w, nil
}

func (p *persister) save(ctx context.Context, job persistJob) {
	if err := p.repo.SaveSnapshot(ctx, job.snap); err != nil {
		p.log.Error("Сохранение мира %s: %v", job.snap.Name, err)
	} else if ev, err := eventbus.NewEnvelope(p.source, eventbus.TypeWorldSaved, map[string]interface{}{
		"world": job.snap.Name,
		"id":    float64(job.snap.ID),
		"bytes": float64(len(job.snap.Blob)),
	}); err == nil && p.bus != nil {
		_ = p.bus.Publish(ctx, ev)
	}

	if !job.release {
		if p.dir != nil {
			if _, err := p.dir.Claim(ctx, job.snap.Name, p.source); err != nil {
				p.log.Warn("Продление закрепления мира %s: %v", job.snap.Name, err)
			}
		}
		return
	}
	p.releaseClaim(ctx, job.snap.Name)
	if ev, err := eventbus.NewEnvelope(p.source, eventbus.TypeWorldEvicted, map[string]interface{}{
		"world": job.snap.Name,
	}); err == nil && p.bus != nil {
		_ = p.bus.Publish(ctx, ev)
	}
}

func (p *persister) releaseClaim(ctx context.Context, name string) {
	if p.dir == nil {
		return
	}
	if err := p.dir.Release(ctx, name, p.source); err != nil && !errors.Is(err, cache.ErrNotOwner) {
		p.log.Warn("Освобождение мира %s: %v", name, err)
	}
}
