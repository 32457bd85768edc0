package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisConfig настройки подключения к Redis
type RedisConfig struct {
	Addr      string        // Адрес Redis сервера
	Password  string        // Пароль (пустой если не требуется)
	DB        int           // Номер базы данных
	KeyPrefix string        // Префикс ключей
	TTL       time.Duration // Время жизни закрепления
}

// DefaultRedisConfig конфигурация по умолчанию
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "tileworld:owner:",
		TTL:       2 * time.Minute,
	}
}

// Закрепить мир, если он свободен или уже наш; продлить TTL
var claimScript = redis.NewScript(`
local cur = redis.call("GET", KEYS[1])
if not cur or cur == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
	return 1
end
return 0
`)

// Удалить закрепление, только если оно наше
var releaseScript = redis.NewScript(`
local cur = redis.call("GET", KEYS[1])
if not cur then return 1 end
if cur == ARGV[1] then
	redis.call("DEL", KEYS[1])
	return 1
end
return 0
`)

// RedisDirectory каталог владения мирами в Redis, общий для всех узлов
type RedisDirectory struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisDirectory подключается к Redis и проверяет соединение
func NewRedisDirectory(cfg RedisConfig) (*RedisDirectory, error) {
	def := DefaultRedisConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = def.KeyPrefix
	}
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisDirectory{client: client, prefix: cfg.KeyPrefix, ttl: cfg.TTL}, nil
}

func (d *RedisDirectory) key(world string) string {
	return d.prefix + world
}

func (d *RedisDirectory) Claim(ctx context.Context, world, owner string) (bool, error) {
	n, err := claimScript.Run(ctx, d.client, []string{d.key(world)}, owner, d.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", world, err)
	}
	return n == 1, nil
}

func (d *RedisDirectory) Owner(ctx context.Context, world string) (string, bool, error) {
	owner, err := d.client.Get(ctx, d.key(world)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("owner %s: %w", world, err)
	}
	return owner, true, nil
}

func (d *RedisDirectory) Release(ctx context.Context, world, owner string) error {
	n, err := releaseScript.Run(ctx, d.client, []string{d.key(world)}, owner).Int()
	if err != nil {
		return fmt.Errorf("release %s: %w", world, err)
	}
	if n == 0 {
		return ErrNotOwner
	}
	return nil
}

func (d *RedisDirectory) Close() error {
	return d.client.Close()
}

var (
	_ Directory = (*MemoryDirectory)(nil)
	_ Directory = (*RedisDirectory)(nil)
)
