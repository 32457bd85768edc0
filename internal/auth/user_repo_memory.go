package auth

import (
	"context"
	"sync"
	"time"

	"github.com/annel0/tileworld/internal/world"
)

// MemoryUserRepo потокобезопасное хранилище в памяти для тестов и
// одиночного сервера. Идентификаторы выдаются с 1.
type MemoryUserRepo struct {
	mu     sync.RWMutex
	byName map[string]*User
	byID   map[int32]*User
	nextID int32
}

func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{
		byName: make(map[string]*User),
		byID:   make(map[int32]*User),
		nextID: 1,
	}
}

func (r *MemoryUserRepo) GetUserByName(ctx context.Context, username string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byName[normalize(username)]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *MemoryUserRepo) GetUserByID(ctx context.Context, id int32) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *MemoryUserRepo) CreateUser(ctx context.Context, username, passwordHash string, role world.Role) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := normalize(username)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[key]; exists {
		return nil, ErrUserExists
	}

	now := time.Now()
	u := &User{
		ID:           r.nextID,
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
		LastLogin:    now,
	}
	r.nextID++
	r.byName[key] = u
	r.byID[u.ID] = u
	cp := *u
	return &cp, nil
}

func (r *MemoryUserRepo) TouchLogin(ctx context.Context, id int32, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	u.LastLogin = at
	return nil
}

func (r *MemoryUserRepo) Close() error { return nil }
