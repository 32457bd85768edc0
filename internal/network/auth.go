package network

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/annel0/tileworld/internal/world"
)

// ErrUnauthorized логин отклонён
var ErrUnauthorized = errors.New("network: unauthorized")

// Identity результат входа
type Identity struct {
	UserID int32
	Name   string
	Role   world.Role
	Token  string // Если не пусто, отправляется клиенту для следующих входов
}

// Authenticator проверяет логин из первого текстового сообщения клиента.
// Поля приходят в виде "ключ|значение", см. ParseFields.
type Authenticator interface {
	Authenticate(ctx context.Context, fields map[string]string) (Identity, error)
}

// GuestAuthenticator пускает всех под выданными по порядку id. Имя берётся
// из поля name, при отсутствии формируется из id.
type GuestAuthenticator struct {
	next atomic.Int32
}

// NewGuestAuthenticator id начинаются с first
func NewGuestAuthenticator(first int32) *GuestAuthenticator {
	g := &GuestAuthenticator{}
	g.next.Store(first - 1)
	return g
}

func (g *GuestAuthenticator) Authenticate(_ context.Context, fields map[string]string) (Identity, error) {
	id := g.next.Add(1)
	name := fields["name"]
	if name == "" {
		name = "Guest_" + strconv.Itoa(int(id))
	}
	return Identity{UserID: id, Name: name, Role: world.RolePlayer}, nil
}

// StaticAuthenticator пускает по токенам из фиксированной таблицы
type StaticAuthenticator struct {
	mu     sync.RWMutex
	tokens map[string]Identity
}

func NewStaticAuthenticator() *StaticAuthenticator {
	return &StaticAuthenticator{tokens: make(map[string]Identity)}
}

// Add регистрирует токен
func (a *StaticAuthenticator) Add(token string, id Identity) {
	a.mu.Lock()
	a.tokens[token] = id
	a.mu.Unlock()
}

func (a *StaticAuthenticator) Authenticate(_ context.Context, fields map[string]string) (Identity, error) {
	token := fields["token"]
	a.mu.RLock()
	id, ok := a.tokens[token]
	a.mu.RUnlock()
	if !ok || token == "" {
		return Identity{}, fmt.Errorf("%w: unknown token", ErrUnauthorized)
	}
	return id, nil
}
