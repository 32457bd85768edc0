package shard

import (
	"context"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/annel0/tileworld/internal/world"
)

// Pool набор шардов узла. Мир всегда обслуживается шардом
// xxhash(имя) mod N.
type Pool struct {
	shards []*Shard
}

// NewPool создаёт count шардов с общими параметрами base. ID шардов 0..count-1.
func NewPool(count int, base Options) (*Pool, error) {
	if count <= 0 {
		return nil, fmt.Errorf("shard pool: invalid shard count %d", count)
	}
	p := &Pool{shards: make([]*Shard, 0, count)}
	for i := 0; i < count; i++ {
		opts := base
		opts.ID = i
		opts.Seed = base.Seed + int64(i)
		s, err := New(opts)
		if err != nil {
			return nil, err
		}
		s.route = p.Route
		p.shards = append(p.shards, s)
	}
	return p, nil
}

// Len количество шардов
func (p *Pool) Len() int { return len(p.shards) }

// Shard шард по номеру
func (p *Pool) Shard(i int) *Shard { return p.shards[i] }

// ShardIndex номер шарда для мира
func (p *Pool) ShardIndex(name string) int {
	norm, err := world.NormalizeName(name)
	if err != nil {
		norm = name
	}
	return int(xxhash.Sum64String(norm) % uint64(len(p.shards)))
}

// Route шард, обслуживающий мир
func (p *Pool) Route(name string) *Shard {
	return p.shards[p.ShardIndex(name)]
}

// Submit отправляет событие шарду мира
func (p *Pool) Submit(ctx context.Context, worldName string, ev Event) error {
	return p.Route(worldName).Submit(ctx, ev)
}

// Run запускает все шарды и ждёт их остановки после отмены ctx
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, s := range p.shards {
		wg.Add(1)
		go func(s *Shard) {
			defer wg.Done()
			_ = s.Run(ctx)
		}(s)
	}
	wg.Wait()
}

// Snapshot снимки всех шардов. Снимки разных шардов сняты в разные
// моменты и между собой не согласованы.
func (p *Pool) Snapshot() []Snapshot {
	out := make([]Snapshot, 0, len(p.shards))
	for _, s := range p.shards {
		out = append(out, s.Snapshot())
	}
	return out
}

// FindWorld ищет загруженный мир в снимках пула
func (p *Pool) FindWorld(name string) (WorldInfo, int, bool) {
	norm, err := world.NormalizeName(name)
	if err != nil {
		return WorldInfo{}, 0, false
	}
	snap := p.Route(norm).Snapshot()
	for _, w := range snap.Worlds {
		if w.Name == norm {
			return w, snap.Shard, true
		}
	}
	return WorldInfo{}, 0, false
}

// Totals суммарные показатели пула по снимкам
func (p *Pool) Totals() (worlds, players int) {
	for _, snap := range p.Snapshot() {
		worlds += len(snap.Worlds)
		players += snap.Players
	}
	return worlds, players
}
