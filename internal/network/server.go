// Package network принимает KCP-соединения клиентов, проводит вход и
// переводит входящие сообщения в события шардов.
//
// Обмен кадрами: u32 длина, u8 признак сжатия (0 без сжатия, 1 zstd),
// сообщение. Сообщение начинается с u32 типа (protocol.MessageType).
//
// Порядок работы соединения:
//  1. сервер отправляет ServerHello;
//  2. клиент отвечает текстовым сообщением с полями входа
//     (token|..., name|..., world|...);
//  3. Authenticator проверяет вход, соединение входит в мир world;
//  4. далее клиент шлёт игровые пакеты и текстовые действия.
package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xtaci/kcp-go/v5"

	"github.com/annel0/tileworld/internal/logging"
	"github.com/annel0/tileworld/internal/protocol"
	"github.com/annel0/tileworld/internal/shard"
	"github.com/annel0/tileworld/internal/storage"
)

// Config параметры сервера
type Config struct {
	Addr         string
	Compression  bool
	DefaultWorld string
	IdleTimeout  time.Duration
	LoginTimeout time.Duration
	SendQueue    int
	DataShards   int // FEC KCP, 0 отключает
	ParityShards int
	// Locations запоминает последний мир пользователя; вход без поля world
	// возвращает в него. nil отключает.
	Locations storage.LocationRepo
}

func (c *Config) setDefaults() {
	if c.DefaultWorld == "" {
		c.DefaultWorld = "START"
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 30 * time.Second
	}
	if c.LoginTimeout <= 0 {
		c.LoginTimeout = 10 * time.Second
	}
	if c.SendQueue <= 0 {
		c.SendQueue = 256
	}
}

// Server KCP-сервер игровых соединений
type Server struct {
	cfg     Config
	pool    *shard.Pool
	auth    Authenticator
	codec   *FrameCodec
	metrics *Metrics
	log     *logging.Logger

	nextID atomic.Uint64

	mu       sync.Mutex
	conns    map[uint64]*Conn
	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer создаёт сервер. metrics == nil создаёт незарегистрированные метрики.
func NewServer(cfg Config, pool *shard.Pool, auth Authenticator, metrics *Metrics) (*Server, error) {
	if pool == nil {
		return nil, errors.New("network: shard pool is required")
	}
	if auth == nil {
		return nil, errors.New("network: authenticator is required")
	}
	cfg.setDefaults()
	codec, err := NewFrameCodec(cfg.Compression)
	if err != nil {
		return nil, err
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Server{
		cfg:     cfg,
		pool:    pool,
		auth:    auth,
		codec:   codec,
		metrics: metrics,
		log:     logging.GetNetworkLogger(),
		conns:   make(map[uint64]*Conn),
	}, nil
}

// Run слушает cfg.Addr по KCP до отмены ctx
func (s *Server) Run(ctx context.Context) error {
	l, err := kcp.ListenWithOptions(s.cfg.Addr, nil, s.cfg.DataShards, s.cfg.ParityShards)
	if err != nil {
		return fmt.Errorf("kcp listen %s: %w", s.cfg.Addr, err)
	}
	s.log.Info("KCP сервер слушает %s", l.Addr())
	return s.Serve(ctx, l)
}

// Serve принимает соединения из l до отмены ctx или закрытия l
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.Close()
	}()

	for {
		nc, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.tune(nc)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.ServeConn(ctx, nc)
		}()
	}
}

// tune настройки KCP-сессии для интерактивного трафика
func (s *Server) tune(nc net.Conn) {
	sess, ok := nc.(*kcp.UDPSession)
	if !ok {
		return
	}
	sess.SetStreamMode(true)
	sess.SetWriteDelay(false)
	sess.SetNoDelay(1, 20, 2, 1)
	sess.SetWindowSize(512, 512)
	sess.SetMtu(1400)
}

// Connections количество открытых соединений
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Close закрывает слушатель и все соединения и ждёт их обработчиков
func (s *Server) Close() {
	s.mu.Lock()
	if s.listener != nil {
		s.listener.Close()
	}
	conns := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	s.wg.Wait()
	s.codec.Close()
}

// ServeConn обслуживает одно соединение до его закрытия
func (s *Server) ServeConn(ctx context.Context, nc net.Conn) {
	c := newConn(s.nextID.Add(1), nc, s.codec, s.cfg.SendQueue, s.metrics)
	s.track(c)
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.done:
		}
	}()
	defer func() {
		c.Shutdown()
		c.wait()
		s.untrack(c)
	}()

	c.SendText(protocol.MessageServerHello, "")
	worldName, err := s.login(ctx, c)
	if err != nil {
		s.log.Info("Вход с %s отклонён: %v", c.RemoteAddr(), err)
		s.metrics.failure("auth")
		return
	}
	s.log.Info("Соединение %d: %s (user %d) вошёл", c.id, c.ident.Name, c.ident.UserID)

	defer s.leave(c)
	defer s.remember(c)
	if err := s.join(ctx, c, worldName); err != nil {
		return
	}
	s.readLoop(ctx, c)
}

func (s *Server) track(c *Conn) {
	s.mu.Lock()
	s.conns[c.id] = c
	s.mu.Unlock()
	s.metrics.opened()
}

func (s *Server) untrack(c *Conn) {
	s.mu.Lock()
	delete(s.conns, c.id)
	s.mu.Unlock()
	s.metrics.closed()
}

// login ждёт первое текстовое сообщение и проверяет вход
func (s *Server) login(ctx context.Context, c *Conn) (string, error) {
	c.nc.SetReadDeadline(time.Now().Add(s.cfg.LoginTimeout))
	msg, err := s.codec.ReadMessage(c.nc)
	if err != nil {
		return "", fmt.Errorf("read login: %w", err)
	}
	s.metrics.frame("in", len(msg))
	mt, body, err := messageType(msg)
	if err != nil {
		return "", err
	}
	if mt != protocol.MessageText && mt != protocol.MessageAction {
		return "", fmt.Errorf("%w: %d before login", protocol.ErrBadMessageType, mt)
	}

	fields := ParseFields(string(body))
	ident, err := s.auth.Authenticate(ctx, fields)
	if err != nil {
		c.SendText(protocol.MessageText, "action|log\nmsg|Login failed.\n")
		return "", err
	}
	c.ident = ident
	if ident.Token != "" {
		c.SendText(protocol.MessageText, FormatFields(map[string]string{
			"action": "logon",
			"token":  ident.Token,
		}, "action", "token"))
	}

	worldName := strings.TrimSpace(fields["world"])
	if worldName == "" && s.cfg.Locations != nil {
		loc, ok, err := s.cfg.Locations.LoadLocation(ctx, ident.UserID)
		if err != nil {
			s.log.Warn("Последний мир пользователя %d не загружен: %v", ident.UserID, err)
		} else if ok {
			worldName = loc.World
		}
	}
	if worldName == "" {
		worldName = s.cfg.DefaultWorld
	}
	return worldName, nil
}

// remember сохраняет последний мир пользователя
func (s *Server) remember(c *Conn) {
	worldName := c.World()
	if s.cfg.Locations == nil || worldName == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := s.cfg.Locations.SaveLocation(ctx, storage.Location{UserID: c.ident.UserID, World: worldName})
	if err != nil {
		s.log.Warn("Последний мир пользователя %d не сохранён: %v", c.ident.UserID, err)
	}
}

// join вводит соединение в мир. Если мир обслуживает другой шард, прежний
// шард получает LeaveEvent, соединение перепривязывается.
func (s *Server) join(ctx context.Context, c *Conn, worldName string) error {
	target := s.pool.Route(worldName)
	if cur := c.Shard(); cur != nil && cur != target {
		if err := cur.Submit(ctx, shard.LeaveEvent{ConnID: c.id}); err != nil {
			return err
		}
	}
	c.Rebind(target)
	return target.Submit(ctx, shard.JoinEvent{
		Conn:   c,
		ConnID: c.id,
		UserID: c.ident.UserID,
		Name:   c.ident.Name,
		Role:   c.ident.Role,
		World:  worldName,
	})
}

// leave сообщает шарду об уходе соединения. Контекст соединения к этому
// моменту может быть отменён, поэтому используется свой.
func (s *Server) leave(c *Conn) {
	sh := c.Shard()
	if sh == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := sh.Submit(ctx, shard.LeaveEvent{ConnID: c.id}); err != nil && !errors.Is(err, shard.ErrStopped) {
		s.log.Warn("Соединение %d: leave не доставлен: %v", c.id, err)
	}
}

func (s *Server) readLoop(ctx context.Context, c *Conn) {
	for {
		c.nc.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		msg, err := s.codec.ReadMessage(c.nc)
		if err != nil {
			if !c.Closed() {
				s.log.Debug("Соединение %d закрыто: %v", c.id, err)
			}
			return
		}
		s.metrics.frame("in", len(msg))

		ev, err := s.decode(c, msg)
		if err != nil {
			s.metrics.failure("decode")
			logging.LogProtocolError(c.id, err, msg)
			continue
		}

		if join, ok := ev.(shard.JoinEvent); ok {
			err = s.join(ctx, c, join.World)
		} else {
			err = c.Shard().Submit(ctx, ev)
		}
		if err != nil {
			return
		}
	}
}

func (s *Server) decode(c *Conn, msg []byte) (shard.Event, error) {
	mt, body, err := messageType(msg)
	if err != nil {
		return nil, err
	}
	switch mt {
	case protocol.MessageGamePacket:
		p, err := protocol.UnmarshalPacket(body)
		if err != nil {
			return nil, err
		}
		return DecodePacket(c.id, p)
	case protocol.MessageText, protocol.MessageAction:
		return DecodeAction(c.id, ParseFields(string(body)))
	}
	return nil, fmt.Errorf("%w: %d", protocol.ErrBadMessageType, mt)
}
