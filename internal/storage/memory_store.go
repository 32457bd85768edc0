package storage

import (
	"context"
	"sync"
)

// MemoryStore хранит записи в памяти. Используется в тестах и как
// хранилище по умолчанию, если постоянное не настроено.
type MemoryStore struct {
	mu     sync.RWMutex
	byName map[string]Record
	byID   map[uint32]string
	nextID uint32
}

// NewMemoryStore создаёт пустое хранилище
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byName: make(map[string]Record),
		byID:   make(map[uint32]string),
	}
}

func (s *MemoryStore) Get(ctx context.Context, name string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byName[name]
	if !ok {
		return Record{}, ErrWorldNotFound
	}
	rec.Data = append([]byte(nil), rec.Data...)
	return rec, nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id uint32) (Record, error) {
	s.mu.RLock()
	name, ok := s.byID[id]
	s.mu.RUnlock()
	if !ok {
		return Record{}, ErrWorldNotFound
	}
	return s.Get(ctx, name)
}

func (s *MemoryStore) Put(ctx context.Context, rec Record) error {
	rec.Data = append([]byte(nil), rec.Data...)

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.byName[rec.Name]; ok && old.ID != rec.ID {
		delete(s.byID, old.ID)
	}
	s.byName[rec.Name] = rec
	s.byID[rec.ID] = rec.Name
	if rec.ID > s.nextID {
		s.nextID = rec.ID
	}
	return nil
}

func (s *MemoryStore) NextID(ctx context.Context) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return s.nextID, nil
}

// Len количество сохранённых миров
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byName)
}

func (s *MemoryStore) Close() error { return nil }
