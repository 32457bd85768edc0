package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/annel0/tileworld/internal/logging"
)

// RedisConfig настройки подключения к Redis
type RedisConfig struct {
	Addr      string        // Адрес Redis сервера
	Password  string        // Пароль (пустой если не требуется)
	DB        int           // Номер базы данных
	KeyPrefix string        // Префикс для ключей
	TTL       time.Duration // Время жизни записей, 0 - без ограничения
}

// DefaultRedisConfig конфигурация по умолчанию
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "tileworld:loc:",
		TTL:       30 * 24 * time.Hour,
	}
}

// RedisLocationRepo LocationRepo поверх Redis: одна JSON-запись на пользователя
type RedisLocationRepo struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisLocationRepo подключается к Redis и проверяет соединение
func NewRedisLocationRepo(cfg RedisConfig) (*RedisLocationRepo, error) {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultRedisConfig().KeyPrefix
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

	logging.GetStorageLogger().Info("Redis для локаций подключён: %s", cfg.Addr)
	return &RedisLocationRepo{client: client, keyPrefix: cfg.KeyPrefix, ttl: cfg.TTL}, nil
}

func (r *RedisLocationRepo) key(userID int32) string {
	return r.keyPrefix + strconv.Itoa(int(userID))
}

func (r *RedisLocationRepo) SaveLocation(ctx context.Context, loc Location) error {
	if err := validLocation(loc); err != nil {
		return err
	}
	if loc.UpdatedAt.IsZero() {
		loc.UpdatedAt = time.Now()
	}
	data, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("marshal location: %w", err)
	}
	if err := r.client.Set(ctx, r.key(loc.UserID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("save location %d: %w", loc.UserID, err)
	}
	return nil
}

func (r *RedisLocationRepo) LoadLocation(ctx context.Context, userID int32) (Location, bool, error) {
	data, err := r.client.Get(ctx, r.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Location{}, false, nil
	}
	if err != nil {
		return Location{}, false, fmt.Errorf("load location %d: %w", userID, err)
	}
	var loc Location
	if err := json.Unmarshal(data, &loc); err != nil {
		return Location{}, false, fmt.Errorf("unmarshal location %d: %w", userID, err)
	}
	return loc, true, nil
}

func (r *RedisLocationRepo) DeleteLocation(ctx context.Context, userID int32) error {
	return r.client.Del(ctx, r.key(userID)).Err()
}

func (r *RedisLocationRepo) Close() error { return r.client.Close() }
