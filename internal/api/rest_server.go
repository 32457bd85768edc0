// Package api административный HTTP API узла (статистика шардов и миров,
// исходящие webhook'и, /metrics) и gRPC health.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/annel0/tileworld/internal/eventbus"
	"github.com/annel0/tileworld/internal/logging"
	"github.com/annel0/tileworld/internal/middleware"
	"github.com/annel0/tileworld/internal/shard"
)

// WorldSource источник состояния шардов, обычно *shard.Pool
type WorldSource interface {
	Snapshot() []shard.Snapshot
	FindWorld(name string) (shard.WorldInfo, int, bool)
	Totals() (worlds, players int)
}

// Config параметры admin API
type Config struct {
	Addr        string
	Token       string // Пусто - /api без авторизации
	ServiceName string
	Worlds      WorldSource
	Bus         eventbus.EventBus
	Webhooks    *OutboundWebhookManager
	Registerer  prometheus.Registerer
	Gatherer    prometheus.Gatherer
	Connections func() int
}

// GenericResponse общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// AdminServer HTTP API администрирования узла
type AdminServer struct {
	cfg     Config
	router  *gin.Engine
	metrics *ServerMetrics
	log     *logging.Logger
}

// NewAdminServer создаёт сервер и настраивает маршруты
func NewAdminServer(cfg Config) (*AdminServer, error) {
	if cfg.Worlds == nil {
		return nil, errors.New("api: world source is required")
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "tileworld"
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Webhooks == nil {
		cfg.Webhooks = NewOutboundWebhookManager(cfg.ServiceName)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.NewRequestLogger().Handler())
	router.Use(otelgin.Middleware(cfg.ServiceName))

	promMw := middleware.NewPrometheusMiddleware(cfg.ServiceName, cfg.Registerer)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, cfg.Gatherer)

	s := &AdminServer{
		cfg:     cfg,
		router:  router,
		metrics: NewServerMetrics(),
		log:     logging.GetComponentLogger("api"),
	}
	s.setupRoutes()
	return s, nil
}

func (s *AdminServer) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	if s.cfg.Token != "" {
		api.Use(tokenMiddleware(s.cfg.Token))
	}
	api.GET("/stats", s.handleStats)
	api.GET("/shards", s.handleShards)
	api.GET("/worlds", s.handleWorlds)
	api.GET("/worlds/:name", s.handleWorld)

	hooks := api.Group("/webhooks")
	hooks.GET("", s.handleGetWebhooks)
	hooks.POST("", s.handleCreateWebhook)
	hooks.GET("/events", s.handleWebhookEvents)
	hooks.GET("/:id", s.handleGetWebhook)
	hooks.PUT("/:id", s.handleUpdateWebhook)
	hooks.DELETE("/:id", s.handleDeleteWebhook)
}

// Handler http.Handler сервера
func (s *AdminServer) Handler() http.Handler { return s.router }

// Run обслуживает cfg.Addr до отмены ctx
func (s *AdminServer) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("admin listen %s: %w", s.cfg.Addr, err)
	}
	srv := &http.Server{Handler: s.router, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(l) }()
	s.log.Info("Admin API слушает %s", l.Addr())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *AdminServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

func (s *AdminServer) handleStats(c *gin.Context) {
	worlds, players := s.cfg.Worlds.Totals()
	cpuPercent, _ := s.metrics.CPUPercent()
	memPercent, _ := s.metrics.SystemMemory()

	stats := map[string]interface{}{
		"worlds":  worlds,
		"players": players,
		"server": map[string]interface{}{
			"uptime":        s.metrics.Uptime(),
			"cpu_percent":   fmt.Sprintf("%.2f", cpuPercent),
			"system_memory": fmt.Sprintf("%.2f", memPercent),
			"server_time":   time.Now().Unix(),
		},
		"memory": s.metrics.MemoryStats(),
	}
	if s.cfg.Connections != nil {
		stats["connections"] = s.cfg.Connections()
	}
	if s.cfg.Bus != nil {
		stats["eventbus"] = s.cfg.Bus.Metrics()
	}

	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Статистика получена", Data: stats})
}

func (s *AdminServer) handleShards(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Состояние шардов", Data: s.cfg.Worlds.Snapshot()})
}

func (s *AdminServer) handleWorlds(c *gin.Context) {
	type entry struct {
		shard.WorldInfo
		Shard int `json:"shard"`
	}
	var out []entry
	for _, snap := range s.cfg.Worlds.Snapshot() {
		for _, w := range snap.Worlds {
			out = append(out, entry{WorldInfo: w, Shard: snap.Shard})
		}
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Загруженные миры",
		Data:    gin.H{"worlds": out, "total": len(out)},
	})
}

func (s *AdminServer) handleWorld(c *gin.Context) {
	info, shardID, ok := s.cfg.Worlds.FindWorld(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Мир не загружен"})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Мир найден",
		Data:    gin.H{"world": info, "shard": shardID},
	})
}

func (s *AdminServer) handleGetWebhooks(c *gin.Context) {
	hooks := s.cfg.Webhooks.Webhooks()
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Список webhook'ов получен",
		Data:    gin.H{"webhooks": hooks, "total": len(hooks)},
	})
}

func (s *AdminServer) handleCreateWebhook(c *gin.Context) {
	var req OutboundWebhook
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверный формат запроса: " + err.Error()})
		return
	}
	hook := s.cfg.Webhooks.AddWebhook(req)
	c.JSON(http.StatusCreated, GenericResponse{Success: true, Message: "Webhook создан", Data: hook})
}

func (s *AdminServer) handleWebhookEvents(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Типы событий", Data: s.cfg.Webhooks.EventTypes()})
}

// webhookID разбирает :id; при ошибке отвечает 400
func webhookID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверный ID webhook"})
		return 0, false
	}
	return id, true
}

func (s *AdminServer) handleGetWebhook(c *gin.Context) {
	id, ok := webhookID(c)
	if !ok {
		return
	}
	hook, ok := s.cfg.Webhooks.Webhook(id)
	if !ok {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Webhook не найден"})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Webhook найден", Data: hook})
}

func (s *AdminServer) handleUpdateWebhook(c *gin.Context) {
	id, ok := webhookID(c)
	if !ok {
		return
	}
	var req OutboundWebhook
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверный формат запроса: " + err.Error()})
		return
	}
	hook, ok := s.cfg.Webhooks.UpdateWebhook(id, req)
	if !ok {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Webhook не найден"})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Webhook обновлён", Data: hook})
}

func (s *AdminServer) handleDeleteWebhook(c *gin.Context) {
	id, ok := webhookID(c)
	if !ok {
		return
	}
	if !s.cfg.Webhooks.DeleteWebhook(id) {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Webhook не найден"})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Webhook удалён"})
}
