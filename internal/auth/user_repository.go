package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/annel0/tileworld/internal/world"
)

// UserRepository хранилище учётных записей
type UserRepository interface {
	// GetUserByName возвращает ErrUserNotFound, если имени нет
	GetUserByName(ctx context.Context, username string) (*User, error)
	GetUserByID(ctx context.Context, id int32) (*User, error)
	// CreateUser ожидает уже хэшированный пароль. Занятое имя даёт ErrUserExists.
	CreateUser(ctx context.Context, username, passwordHash string, role world.Role) (*User, error)
	// TouchLogin обновляет время последнего входа
	TouchLogin(ctx context.Context, id int32, at time.Time) error
	Close() error
}

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

// normalize имена пользователей сравниваются без учёта регистра
func normalize(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
