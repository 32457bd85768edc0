package network

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/tileworld/internal/cache"
	"github.com/annel0/tileworld/internal/items"
	"github.com/annel0/tileworld/internal/protocol"
	"github.com/annel0/tileworld/internal/shard"
	"github.com/annel0/tileworld/internal/storage"
)

// newTestServer сервер над пулом из двух шардов с хранилищем в памяти
func newTestServer(t *testing.T, auth Authenticator) (*Server, context.Context) {
	t.Helper()
	return newTestServerWith(t, auth, Config{})
}

func newTestServerWith(t *testing.T, auth Authenticator, cfg Config) (*Server, context.Context) {
	t.Helper()
	repo, err := storage.NewWorldRepo(storage.NewMemoryStore(), items.Default())
	require.NoError(t, err)

	pool, err := shard.NewPool(2, shard.Options{
		Repo:         repo,
		Directory:    cache.NewMemoryDirectory(time.Minute),
		WorldWidth:   30,
		WorldHeight:  20,
		TickInterval: 5 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	cfg.LoginTimeout = time.Second
	cfg.IdleTimeout = 5 * time.Second
	srv, err := NewServer(cfg, pool, auth, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		cancel()
		srv.Close()
		<-done
	})
	return srv, ctx
}

// client тестовая сторона соединения
type client struct {
	t     *testing.T
	nc    net.Conn
	codec *FrameCodec
}

func dial(t *testing.T, srv *Server, ctx context.Context) *client {
	t.Helper()
	serverSide, clientSide := net.Pipe()
	srv.wg.Add(1)
	go func() {
		defer srv.wg.Done()
		srv.ServeConn(ctx, serverSide)
	}()
	t.Cleanup(func() { clientSide.Close() })
	return &client{t: t, nc: clientSide, codec: newCodec(t, false)}
}

func (c *client) read() (protocol.MessageType, []byte) {
	c.t.Helper()
	c.nc.SetReadDeadline(time.Now().Add(3 * time.Second))
	msg, err := c.codec.ReadMessage(c.nc)
	require.NoError(c.t, err)
	mt, body, err := messageType(msg)
	require.NoError(c.t, err)
	return mt, body
}

// waitPacket читает сообщения, пока не придёт пакет типа pt
func (c *client) waitPacket(pt protocol.PacketType) *protocol.GamePacket {
	c.t.Helper()
	for {
		mt, body := c.read()
		if mt != protocol.MessageGamePacket {
			continue
		}
		p, err := protocol.UnmarshalPacket(body)
		require.NoError(c.t, err)
		if p.Type == pt {
			return p
		}
	}
}

func (c *client) sendText(text string) {
	c.t.Helper()
	c.nc.SetWriteDeadline(time.Now().Add(3 * time.Second))
	_, err := c.nc.Write(c.codec.EncodeText(protocol.MessageText, text))
	require.NoError(c.t, err)
}

func TestServerLoginEntersWorld(t *testing.T) {
	srv, ctx := newTestServer(t, NewGuestAuthenticator(100))
	c := dial(t, srv, ctx)

	mt, _ := c.read()
	require.Equal(t, protocol.MessageServerHello, mt)

	c.sendText("name|alice\nworld|start\n")
	db := c.waitPacket(protocol.PacketSendItemDatabaseData)
	assert.NotEmpty(t, db.Payload, "клиент получает базу предметов")
	mapData := c.waitPacket(protocol.PacketSendMapData)
	assert.NotEmpty(t, mapData.Payload)

	assert.Eventually(t, func() bool {
		info, _, ok := srv.pool.FindWorld("START")
		return ok && info.Players == 1
	}, 3*time.Second, 10*time.Millisecond, "мир START загружен с одним игроком")
	assert.Equal(t, 1, srv.Connections())

	c.nc.Close()
	assert.Eventually(t, func() bool {
		info, _, ok := srv.pool.FindWorld("START")
		return srv.Connections() == 0 && ok && info.Players == 0
	}, 3*time.Second, 10*time.Millisecond, "отключение выводит игрока из мира")
}

func TestServerJoinRequestSwitchesWorld(t *testing.T) {
	srv, ctx := newTestServer(t, NewGuestAuthenticator(1))
	c := dial(t, srv, ctx)
	c.read()
	c.sendText("name|bob\nworld|ALPHA\n")
	c.waitPacket(protocol.PacketSendMapData)

	c.sendText("action|join_request\nname|BETA\n")
	c.waitPacket(protocol.PacketSendMapData)

	assert.Eventually(t, func() bool {
		alpha, _, okA := srv.pool.FindWorld("ALPHA")
		beta, _, okB := srv.pool.FindWorld("BETA")
		return okA && okB && alpha.Players == 0 && beta.Players == 1
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, srv.pool.Route("BETA"), c.connShard(t, srv))
}

// connShard шард единственного соединения сервера
func (c *client) connShard(t *testing.T, srv *Server) *shard.Shard {
	t.Helper()
	srv.mu.Lock()
	defer srv.mu.Unlock()
	require.Len(t, srv.conns, 1)
	for _, conn := range srv.conns {
		return conn.Shard()
	}
	return nil
}

func TestServerRejectsBadLogin(t *testing.T) {
	auth := NewStaticAuthenticator()
	auth.Add("secret", Identity{UserID: 7, Name: "admin"})
	srv, ctx := newTestServer(t, auth)

	c := dial(t, srv, ctx)
	c.read()
	c.sendText("token|wrong\n")

	mt, body := c.read()
	assert.Equal(t, protocol.MessageText, mt)
	assert.Contains(t, string(body), "Login failed")

	c.nc.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, err := c.codec.ReadMessage(c.nc)
	assert.Error(t, err, "соединение закрыто после отказа")
}

func TestServerIgnoresMalformedMessages(t *testing.T) {
	srv, ctx := newTestServer(t, NewGuestAuthenticator(1))
	c := dial(t, srv, ctx)
	c.read()
	c.sendText("name|carol\nworld|GAMMA\n")
	c.waitPacket(protocol.PacketSendMapData)

	c.sendText("action|dance\n")
	c.sendText("action|drop\nitemID|x\n")

	// Соединение живо: смена мира проходит.
	c.sendText("action|join_request\nname|DELTA\n")
	c.waitPacket(protocol.PacketSendMapData)
	assert.Equal(t, 1, srv.Connections())
}

func TestServerRestoresLastWorld(t *testing.T) {
	auth := NewStaticAuthenticator()
	auth.Add("t9", Identity{UserID: 9, Name: "dave"})
	locations := storage.NewMemoryLocationRepo()
	srv, ctx := newTestServerWith(t, auth, Config{Locations: locations})

	c := dial(t, srv, ctx)
	c.read()
	c.sendText("token|t9\nworld|ALPHA\n")
	c.waitPacket(protocol.PacketSendMapData)
	c.nc.Close()

	assert.Eventually(t, func() bool {
		loc, ok, err := locations.LoadLocation(context.Background(), 9)
		return err == nil && ok && loc.World == "ALPHA"
	}, 3*time.Second, 10*time.Millisecond, "мир сохраняется при отключении")

	c = dial(t, srv, ctx)
	c.read()
	c.sendText("token|t9\n")
	c.waitPacket(protocol.PacketSendMapData)
	assert.Eventually(t, func() bool {
		info, _, ok := srv.pool.FindWorld("ALPHA")
		return ok && info.Players == 1
	}, 3*time.Second, 10*time.Millisecond, "вход без мира возвращает в последний")
}

func TestStaticAuthenticator(t *testing.T) {
	auth := NewStaticAuthenticator()
	auth.Add("t1", Identity{UserID: 5, Name: "mod"})

	id, err := auth.Authenticate(context.Background(), map[string]string{"token": "t1"})
	require.NoError(t, err)
	assert.Equal(t, int32(5), id.UserID)

	_, err = auth.Authenticate(context.Background(), map[string]string{})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestGuestAuthenticator(t *testing.T) {
	auth := NewGuestAuthenticator(10)
	a, _ := auth.Authenticate(context.Background(), map[string]string{"name": "x"})
	b, _ := auth.Authenticate(context.Background(), nil)
	assert.Equal(t, int32(10), a.UserID)
	assert.Equal(t, "x", a.Name)
	assert.Equal(t, int32(11), b.UserID)
	assert.Equal(t, "Guest_11", b.Name)
}
