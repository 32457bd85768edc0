package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/annel0/tileworld/internal/logging"
	"github.com/annel0/tileworld/internal/network"
	"github.com/annel0/tileworld/internal/world"
)

// GameAuthenticator проверяет вход по токену или по имени и паролю.
// Реализует network.Authenticator.
type GameAuthenticator struct {
	users        UserRepository
	tokens       *TokenIssuer
	autoRegister bool
	log          *logging.Logger
}

// NewGameAuthenticator при autoRegister неизвестное имя с паролем
// создаёт новую учётную запись.
func NewGameAuthenticator(users UserRepository, tokens *TokenIssuer, autoRegister bool) *GameAuthenticator {
	return &GameAuthenticator{
		users:        users,
		tokens:       tokens,
		autoRegister: autoRegister,
		log:          logging.GetComponentLogger("auth"),
	}
}

// Authenticate выбирает способ входа по полям логина: token, затем
// name и password.
func (ga *GameAuthenticator) Authenticate(ctx context.Context, fields map[string]string) (network.Identity, error) {
	var (
		u   *User
		err error
	)
	switch {
	case fields["token"] != "":
		u, err = ga.byToken(ctx, fields["token"])
	case strings.TrimSpace(fields["name"]) != "" && fields["password"] != "":
		u, err = ga.byPassword(ctx, strings.TrimSpace(fields["name"]), fields["password"])
	default:
		err = errors.New("token or name/password required")
	}
	if err != nil {
		ga.log.Info("Вход отклонён: %v", err)
		return network.Identity{}, fmt.Errorf("%w: %v", network.ErrUnauthorized, err)
	}

	if err := ga.users.TouchLogin(ctx, u.ID, time.Now()); err != nil {
		ga.log.Warn("Время входа %s не обновлено: %v", u.Username, err)
	}
	token, err := ga.tokens.Issue(u)
	if err != nil {
		ga.log.Warn("Токен для %s не выпущен: %v", u.Username, err)
	}
	return network.Identity{UserID: u.ID, Name: u.Username, Role: u.Role, Token: token}, nil
}

func (ga *GameAuthenticator) byToken(ctx context.Context, token string) (*User, error) {
	claims, err := ga.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	return ga.users.GetUserByID(ctx, claims.UserID)
}

func (ga *GameAuthenticator) byPassword(ctx context.Context, name, password string) (*User, error) {
	u, err := ga.users.GetUserByName(ctx, name)
	if errors.Is(err, ErrUserNotFound) && ga.autoRegister {
		return ga.Register(ctx, name, password, world.RolePlayer)
	}
	if err != nil {
		return nil, err
	}
	if !passwordMatches(u, password) {
		return nil, fmt.Errorf("wrong password for %s", name)
	}
	return u, nil
}

// Register создаёт учётную запись с паролем
func (ga *GameAuthenticator) Register(ctx context.Context, name, password string, role world.Role) (*User, error) {
	if !validUsername(name) {
		return nil, fmt.Errorf("invalid username %q", name)
	}
	if len(password) < 4 {
		return nil, errors.New("password too short")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u, err := ga.users.CreateUser(ctx, name, string(hash), role)
	if err != nil {
		return nil, err
	}
	ga.log.Info("Зарегистрирован %s (ID: %d)", u.Username, u.ID)
	return u, nil
}

// passwordMatches сверяет пароль с bcrypt-хэшем. Учётная запись без хэша
// по паролю не входит.
func passwordMatches(u *User, password string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// validUsername 3..18 символов: латиница и цифры
func validUsername(name string) bool {
	if len(name) < 3 || len(name) > 18 {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
