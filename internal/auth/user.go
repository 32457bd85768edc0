package auth

import (
	"time"

	"github.com/annel0/tileworld/internal/world"
)

// User учётная запись игрока
type User struct {
	ID           int32      // Неизменяемый идентификатор, он же UserID в мирах
	Username     string     // Уникальное имя (без учёта регистра)
	PasswordHash string     // bcrypt
	Role         world.Role // Роль для проверок доступа в мирах
	CreatedAt    time.Time
	LastLogin    time.Time
}
