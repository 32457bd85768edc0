package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/annel0/tileworld/internal/algorithm"
	"github.com/annel0/tileworld/internal/api"
	"github.com/annel0/tileworld/internal/auth"
	"github.com/annel0/tileworld/internal/cache"
	"github.com/annel0/tileworld/internal/config"
	"github.com/annel0/tileworld/internal/eventbus"
	"github.com/annel0/tileworld/internal/items"
	"github.com/annel0/tileworld/internal/logging"
	"github.com/annel0/tileworld/internal/network"
	"github.com/annel0/tileworld/internal/observability"
	"github.com/annel0/tileworld/internal/shard"
	"github.com/annel0/tileworld/internal/storage"
	"github.com/annel0/tileworld/internal/worldgen"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML-конфигурации (по умолчанию $TILEWORLD_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Ошибка конфигурации: %v", err)
	}
	if err := setupLogging(cfg.Logging); err != nil {
		log.Fatalf("Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	defer logging.GetLoggerManager().CloseAll()

	if err := run(cfg); err != nil {
		logging.Error("Сервер остановлен с ошибкой: %v", err)
		logging.GetLoggerManager().CloseAll()
		logging.CloseDefaultLogger()
		os.Exit(1)
	}
}

func setupLogging(cfg config.LoggingConfig) error {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	components := make(map[string]logging.LogLevel, len(cfg.Components))
	for name, s := range cfg.Components {
		lvl, err := logging.ParseLevel(s)
		if err != nil {
			return fmt.Errorf("logging.components.%s: %w", name, err)
		}
		components[name] = lvl
	}
	if cfg.ToFile {
		if err := logging.InitDefaultLogger("server"); err != nil {
			return err
		}
	}
	logging.SetDefaultLevels(level, logging.DEBUG)
	logging.GetLoggerManager().Configure(logging.Options{
		ToFile:     cfg.ToFile,
		Console:    level,
		File:       logging.DEBUG,
		Components: components,
	})
	return nil
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Info("Запуск tileworld: узел %s, шардов %d", cfg.Shard.NodeID, cfg.Shard.Count)

	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer shutdownTelemetry(context.Background())

	catalog, err := loadCatalog(cfg.Catalog)
	if err != nil {
		return err
	}

	store, err := openStore(cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()
	repo, err := storage.NewWorldRepo(store, catalog)
	if err != nil {
		return err
	}

	dir, err := openDirectory(cfg.Cache)
	if err != nil {
		return err
	}
	defer dir.Close()

	locations, err := openLocations(cfg.Cache)
	if err != nil {
		return err
	}
	defer locations.Close()

	bus, err := openBus(cfg.EventBus)
	if err != nil {
		return err
	}
	defer bus.Close()
	if _, err := eventbus.StartLoggingListener(bus); err != nil {
		return err
	}

	reg := prometheus.DefaultRegisterer
	busMetrics := eventbus.NewMetricsExporter(bus, reg)
	busMetrics.Start()
	defer busMetrics.Stop()

	pool, err := shard.NewPool(cfg.Shard.Count, shard.Options{
		Node:          cfg.Shard.NodeID,
		Catalog:       catalog,
		Repo:          repo,
		Directory:     dir,
		Bus:           bus,
		Generator:     worldgen.NewGenerator(cfg.World.Seed),
		Metrics:       shard.NewMetrics(reg),
		WorldWidth:    cfg.World.Width,
		WorldHeight:   cfg.World.Height,
		MoveLimits:    algorithm.PathLimits{Range: cfg.World.MoveRange, MaxSteps: cfg.World.MoveSteps},
		CollectLimits: algorithm.PathLimits{Range: cfg.World.CollectRange, MaxSteps: cfg.World.CollectSteps},
		TickInterval:  cfg.Shard.TickInterval,
		EvictGrace:    cfg.Shard.EvictGrace,
		SaveInterval:  cfg.Shard.SaveInterval,
		QueueSize:     cfg.Shard.QueueSize,
		Seed:          time.Now().UnixNano(),
	})
	if err != nil {
		return err
	}

	authenticator, closeAuth, err := openAuth(ctx, cfg.Auth)
	if err != nil {
		return err
	}
	defer closeAuth()

	gameServer, err := network.NewServer(network.Config{
		Addr:        fmt.Sprintf(":%d", cfg.Server.GetKCPPort()),
		Compression: cfg.Server.Compression,
		Locations:   locations,
	}, pool, authenticator, network.NewMetrics(reg))
	if err != nil {
		return err
	}

	webhooks := api.NewOutboundWebhookManager(cfg.Shard.NodeID)
	if err := webhooks.Start(ctx, bus); err != nil {
		return err
	}
	defer webhooks.Stop()

	admin, err := api.NewAdminServer(api.Config{
		Addr:        fmt.Sprintf(":%d", cfg.Server.GetAdminPort()),
		Token:       cfg.Server.AdminToken,
		ServiceName: cfg.Telemetry.ServiceName,
		Worlds:      pool,
		Bus:         bus,
		Webhooks:    webhooks,
		Registerer:  reg,
		Gatherer:    prometheus.DefaultGatherer,
		Connections: gameServer.Connections,
	})
	if err != nil {
		return err
	}
	health := api.NewHealthServer()

	// Пул останавливается последним: сетевой слой к этому моменту закрыт,
	// миры сохраняются при остановке шардов.
	poolCtx, stopPool := context.WithCancel(context.Background())
	var poolWG sync.WaitGroup
	poolWG.Add(1)
	go func() {
		defer poolWG.Done()
		pool.Run(poolCtx)
	}()
	health.SetServing(true)

	errCh := make(chan error, 3)
	var wg sync.WaitGroup
	start := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				errCh <- fmt.Errorf("%s: %w", name, err)
				stop()
			}
		}()
	}
	start("kcp", gameServer.Run)
	start("admin", admin.Run)
	start("grpc", func(ctx context.Context) error {
		return health.Run(ctx, fmt.Sprintf(":%d", cfg.Server.GetGRPCPort()))
	})

	<-ctx.Done()
	logging.Info("Остановка сервера...")
	health.SetServing(false)
	gameServer.Close()
	wg.Wait()

	stopPool()
	poolWG.Wait()
	logging.Info("Шарды остановлены, миры сохранены")

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

func loadCatalog(cfg config.CatalogConfig) (*items.Catalog, error) {
	if cfg.Path == "" {
		return items.Default(), nil
	}
	catalog, err := items.LoadFile(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", cfg.Path, err)
	}
	return catalog, nil
}

func openStore(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Driver {
	case "memory":
		return storage.NewMemoryStore(), nil
	case "badger":
		return storage.NewBadgerStore(cfg.DataPath)
	case "maria":
		return storage.NewMariaStore(cfg.MariaDSN)
	case "mongo":
		return storage.NewMongoStore(storage.MongoConfig{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
		})
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

func openDirectory(cfg config.CacheConfig) (cache.Directory, error) {
	switch cfg.Driver {
	case "memory":
		return cache.NewMemoryDirectory(cfg.TTL), nil
	case "redis":
		return cache.NewRedisDirectory(cache.RedisConfig{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: "tileworld:",
			TTL:       cfg.TTL,
		})
	}
	return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
}

func openLocations(cfg config.CacheConfig) (storage.LocationRepo, error) {
	switch cfg.Driver {
	case "memory":
		return storage.NewMemoryLocationRepo(), nil
	case "redis":
		rc := storage.DefaultRedisConfig()
		rc.Addr = cfg.RedisAddr
		rc.Password = cfg.RedisPassword
		rc.DB = cfg.RedisDB
		return storage.NewRedisLocationRepo(rc)
	}
	return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
}

func openAuth(ctx context.Context, cfg config.AuthConfig) (network.Authenticator, func() error, error) {
	if cfg.Mode == "guest" {
		return network.NewGuestAuthenticator(1), func() error { return nil }, nil
	}
	secret, err := auth.DecodeSecret(cfg.JWTSecret)
	if err != nil {
		return nil, nil, fmt.Errorf("auth.jwt_secret: %w", err)
	}
	tokens, err := auth.NewTokenIssuer(secret, cfg.TokenTTL)
	if err != nil {
		return nil, nil, err
	}

	var users auth.UserRepository
	switch cfg.Driver {
	case "mongo":
		repo, err := auth.NewMongoUserRepo(ctx, auth.MongoConfig{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("auth mongo: %w", err)
		}
		users = repo
	default:
		users = auth.NewMemoryUserRepo()
	}
	return auth.NewGameAuthenticator(users, tokens, cfg.AutoRegister), users.Close, nil
}

func openBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	switch cfg.Driver {
	case "memory":
		return eventbus.NewMemoryBus(cfg.Buffer), nil
	case "jetstream":
		return eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, time.Duration(cfg.Retention)*time.Hour)
	}
	return nil, fmt.Errorf("unknown eventbus driver %q", cfg.Driver)
}
