// Package cache хранит каталог владения мирами между шардами и узлами:
// какой узел сейчас держит мир загруженным.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotOwner мир загружен другим узлом
var ErrNotOwner = errors.New("world is owned by another node")

// Directory каталог владения мирами. Запись живёт TTL и продлевается
// повторным Claim того же владельца.
type Directory interface {
	// Claim закрепляет мир за owner. false, если мир держит другой владелец.
	Claim(ctx context.Context, world, owner string) (bool, error)
	// Owner текущий владелец мира
	Owner(ctx context.Context, world string) (string, bool, error)
	// Release снимает закрепление, если оно принадлежит owner
	Release(ctx context.Context, world, owner string) error
	Close() error
}

// MemoryDirectory каталог в памяти процесса для одного узла и тестов
type MemoryDirectory struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]dirEntry
}

type dirEntry struct {
	owner   string
	expires time.Time
}

// NewMemoryDirectory создаёт каталог с заданным TTL записей
func NewMemoryDirectory(ttl time.Duration) *MemoryDirectory {
	return &MemoryDirectory{ttl: ttl, now: time.Now, entries: make(map[string]dirEntry)}
}

func (d *MemoryDirectory) live(world string) (dirEntry, bool) {
	e, ok := d.entries[world]
	if !ok {
		return dirEntry{}, false
	}
	if d.ttl > 0 && !d.now().Before(e.expires) {
		delete(d.entries, world)
		return dirEntry{}, false
	}
	return e, true
}

func (d *MemoryDirectory) Claim(ctx context.Context, world, owner string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.live(world); ok && e.owner != owner {
		return false, nil
	}
	d.entries[world] = dirEntry{owner: owner, expires: d.now().Add(d.ttl)}
	return true, nil
}

func (d *MemoryDirectory) Owner(ctx context.Context, world string) (string, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.live(world)
	return e.owner, ok, nil
}

func (d *MemoryDirectory) Release(ctx context.Context, world, owner string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.live(world)
	if !ok {
		return nil
	}
	if e.owner != owner {
		return ErrNotOwner
	}
	delete(d.entries, world)
	return nil
}

func (d *MemoryDirectory) Close() error { return nil }
