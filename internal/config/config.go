package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации сервера.
// Любое отсутствующее значение берётся из Default.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Shard     ShardConfig     `yaml:"shard"`
	World     WorldConfig     `yaml:"world"`
	Storage   StorageConfig   `yaml:"storage"`
	Cache     CacheConfig     `yaml:"cache"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Auth      AuthConfig      `yaml:"auth"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	KCPPort     int    `yaml:"kcp_port"`
	AdminPort   int    `yaml:"admin_port"`
	GRPCPort    int    `yaml:"grpc_port"`
	Compression bool   `yaml:"compression"` // zstd для исходящих кадров
	AdminToken  string `yaml:"admin_token"` // Bearer-токен admin API, пусто - без авторизации
}

type ShardConfig struct {
	NodeID       string        `yaml:"node_id"`
	Count        int           `yaml:"count"`
	TickInterval time.Duration `yaml:"tick_interval"`
	EvictGrace   time.Duration `yaml:"evict_grace"`
	SaveInterval time.Duration `yaml:"save_interval"`
	QueueSize    int           `yaml:"queue_size"`
}

type WorldConfig struct {
	Width  int   `yaml:"width"`
	Height int   `yaml:"height"`
	Seed   int64 `yaml:"seed"` // 0 - сид из имени мира

	// Дальность и длина пути для перемещения и подбора объектов, 0 - по умолчанию
	MoveRange    int `yaml:"move_range"`
	MoveSteps    int `yaml:"move_steps"`
	CollectRange int `yaml:"collect_range"`
	CollectSteps int `yaml:"collect_steps"`
}

type StorageConfig struct {
	Driver   string      `yaml:"driver"` // memory | badger | maria | mongo
	DataPath string      `yaml:"data_path"`
	MariaDSN string      `yaml:"maria_dsn"`
	Mongo    MongoConfig `yaml:"mongo"`
}

type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

type CacheConfig struct {
	Driver        string        `yaml:"driver"` // memory | redis
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
}

type EventBusConfig struct {
	Driver    string `yaml:"driver"` // memory | jetstream
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
	Buffer    int    `yaml:"buffer"`
}

type AuthConfig struct {
	Mode         string        `yaml:"mode"`       // guest | accounts
	Driver       string        `yaml:"driver"`     // memory | mongo, для accounts
	JWTSecret    string        `yaml:"jwt_secret"` // base64, пусто - случайный на запуск
	TokenTTL     time.Duration `yaml:"token_ttl"`
	AutoRegister bool          `yaml:"auto_register"`
	Mongo        MongoConfig   `yaml:"mongo"`
}

type CatalogConfig struct {
	Path string `yaml:"path"` // Пусто - встроенный каталог
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	ServiceName  string  `yaml:"service_name"`
	SampleRatio  float64 `yaml:"sample_ratio"`
}

type LoggingConfig struct {
	Level      string            `yaml:"level"`
	ToFile     bool              `yaml:"to_file"`
	Components map[string]string `yaml:"components"` // Уровни отдельных компонентов: shard: debug
}

// Default конфигурация, с которой сервер запускается без файла
func Default() *Config {
	return &Config{
		Server: ServerConfig{KCPPort: 7777, AdminPort: 8088, GRPCPort: 9090},
		Shard: ShardConfig{
			NodeID:       "node-1",
			Count:        4,
			TickInterval: 50 * time.Millisecond,
			EvictGrace:   30 * time.Second,
			SaveInterval: 2 * time.Minute,
			QueueSize:    1024,
		},
		World:    WorldConfig{Width: 100, Height: 60},
		Storage:  StorageConfig{Driver: "badger", DataPath: "data"},
		Cache:    CacheConfig{Driver: "memory", RedisAddr: "localhost:6379", TTL: 2 * time.Minute},
		EventBus: EventBusConfig{Driver: "memory", URL: "nats://127.0.0.1:4222", Stream: "WORLD_EVENTS", Retention: 24, Buffer: 1024},
		Auth:     AuthConfig{Mode: "guest", Driver: "memory", TokenTTL: 24 * time.Hour, AutoRegister: true},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: "localhost:4318",
			ServiceName:  "tileworld",
			SampleRatio:  0.1,
		},
		Logging: LoggingConfig{Level: "INFO"},
	}
}

// GetKCPPort возвращает KCP порт с поддержкой fallback значений
func (s *ServerConfig) GetKCPPort() int {
	return getPortWithEnvFallback(s.KCPPort, "GAME_KCP_PORT", 7777)
}

// GetAdminPort возвращает порт admin API
func (s *ServerConfig) GetAdminPort() int {
	return getPortWithEnvFallback(s.AdminPort, "GAME_ADMIN_PORT", 8088)
}

// GetGRPCPort возвращает порт gRPC health
func (s *ServerConfig) GetGRPCPort() int {
	return getPortWithEnvFallback(s.GRPCPort, "GAME_GRPC_PORT", 9090)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}
	return defaultPort
}

// Load читает YAML поверх Default. Если path == "", берётся ENV
// TILEWORLD_CONFIG; если и он пуст, возвращается Default.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("TILEWORLD_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет значения, с которыми сервер не сможет работать
func (c *Config) Validate() error {
	if c.Shard.Count <= 0 {
		return fmt.Errorf("shard.count must be positive, got %d", c.Shard.Count)
	}
	if c.Shard.TickInterval <= 0 {
		return fmt.Errorf("shard.tick_interval must be positive")
	}
	switch c.Storage.Driver {
	case "memory", "badger", "maria", "mongo":
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	switch c.Cache.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown cache.driver %q", c.Cache.Driver)
	}
	switch c.EventBus.Driver {
	case "memory", "jetstream":
	default:
		return fmt.Errorf("unknown eventbus.driver %q", c.EventBus.Driver)
	}
	switch c.Auth.Mode {
	case "guest":
	case "accounts":
		if c.Auth.Driver != "memory" && c.Auth.Driver != "mongo" {
			return fmt.Errorf("unknown auth.driver %q", c.Auth.Driver)
		}
	default:
		return fmt.Errorf("unknown auth.mode %q", c.Auth.Mode)
	}
	return nil
}
