package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Location последний мир пользователя. Привязан к UserID, а не к
// соединению, и переживает переподключение.
type Location struct {
	UserID    int32     `json:"user_id"`
	World     string    `json:"world"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LocationRepo хранилище последних миров пользователей
type LocationRepo interface {
	// SaveLocation сохраняет мир пользователя
	SaveLocation(ctx context.Context, loc Location) error
	// LoadLocation возвращает false, если пользователь ещё не входил в мир
	LoadLocation(ctx context.Context, userID int32) (Location, bool, error)
	DeleteLocation(ctx context.Context, userID int32) error
	Close() error
}

// MemoryLocationRepo LocationRepo в памяти процесса. Данные теряются при
// перезапуске.
type MemoryLocationRepo struct {
	mu   sync.RWMutex
	data map[int32]Location
}

func NewMemoryLocationRepo() *MemoryLocationRepo {
	return &MemoryLocationRepo{data: make(map[int32]Location)}
}

func validLocation(loc Location) error {
	if loc.UserID <= 0 {
		return fmt.Errorf("недействительный userID: %d", loc.UserID)
	}
	if loc.World == "" {
		return fmt.Errorf("пустой мир для пользователя %d", loc.UserID)
	}
	return nil
}

func (r *MemoryLocationRepo) SaveLocation(ctx context.Context, loc Location) error {
	if err := validLocation(loc); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if loc.UpdatedAt.IsZero() {
		loc.UpdatedAt = time.Now()
	}

	r.mu.Lock()
	r.data[loc.UserID] = loc
	r.mu.Unlock()
	return nil
}

func (r *MemoryLocationRepo) LoadLocation(ctx context.Context, userID int32) (Location, bool, error) {
	if err := ctx.Err(); err != nil {
		return Location{}, false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	loc, ok := r.data[userID]
	return loc, ok, nil
}

func (r *MemoryLocationRepo) DeleteLocation(ctx context.Context, userID int32) error {
	r.mu.Lock()
	delete(r.data, userID)
	r.mu.Unlock()
	return nil
}

// Count количество сохранённых записей
func (r *MemoryLocationRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

func (r *MemoryLocationRepo) Close() error { return nil }
