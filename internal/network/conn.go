package network

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/tileworld/internal/logging"
	"github.com/annel0/tileworld/internal/protocol"
	"github.com/annel0/tileworld/internal/shard"
)

const writeTimeout = 5 * time.Second

// Conn соединение игрока. Отправка не блокирует вызывающего: кадры идут
// через очередь writeLoop, переполнение очереди закрывает соединение.
type Conn struct {
	id      uint64
	nc      net.Conn
	codec   *FrameCodec
	metrics *Metrics
	log     *logging.Logger

	ident Identity
	shard atomic.Pointer[shard.Shard]
	world atomic.Pointer[string]

	out       chan []byte
	done      chan struct{}
	flush     chan struct{}
	once      sync.Once
	flushOnce sync.Once
	writeWG   sync.WaitGroup
}

func newConn(id uint64, nc net.Conn, codec *FrameCodec, queue int, metrics *Metrics) *Conn {
	c := &Conn{
		id:      id,
		nc:      nc,
		codec:   codec,
		metrics: metrics,
		log:     logging.GetNetworkLogger(),
		out:     make(chan []byte, queue),
		done:    make(chan struct{}),
		flush:   make(chan struct{}),
	}
	c.writeWG.Add(1)
	go c.writeLoop()
	return c
}

// ID номер соединения
func (c *Conn) ID() uint64 { return c.id }

// Identity пользователь соединения после входа
func (c *Conn) Identity() Identity { return c.ident }

// RemoteAddr адрес клиента
func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

// Send ставит пакет в очередь отправки
func (c *Conn) Send(p *protocol.GamePacket) {
	c.enqueue(c.codec.EncodePacket(p))
}

// SendText ставит в очередь текстовое сообщение
func (c *Conn) SendText(mt protocol.MessageType, text string) {
	c.enqueue(c.codec.EncodeText(mt, text))
}

func (c *Conn) enqueue(frame []byte) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.out <- frame:
	default:
		c.log.Warn("Очередь отправки соединения %d переполнена, закрываем", c.id)
		c.metrics.failure("overflow")
		c.Close()
	}
}

// Rebind привязывает соединение к шарду, обслуживающему мир игрока
func (c *Conn) Rebind(s *shard.Shard) { c.shard.Store(s) }

// Shard текущий шард соединения, nil до первого входа в мир
func (c *Conn) Shard() *shard.Shard { return c.shard.Load() }

// EnteredWorld запоминает мир, в который вошёл игрок
func (c *Conn) EnteredWorld(name string) { c.world.Store(&name) }

// World последний мир, в который вошёл игрок
func (c *Conn) World() string {
	if w := c.world.Load(); w != nil {
		return *w
	}
	return ""
}

// Closed сообщает, закрыто ли соединение
func (c *Conn) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Close закрывает соединение. Повторный вызов ничего не делает.
func (c *Conn) Close() {
	c.once.Do(func() {
		close(c.done)
		c.nc.Close()
	})
}

// Shutdown дописывает уже поставленные в очередь кадры и закрывает соединение
func (c *Conn) Shutdown() {
	c.flushOnce.Do(func() { close(c.flush) })
}

// wait ждёт завершения writeLoop
func (c *Conn) wait() { c.writeWG.Wait() }

func (c *Conn) writeLoop() {
	defer c.writeWG.Done()
	for {
		select {
		case <-c.done:
			return
		case <-c.flush:
			for {
				select {
				case frame := <-c.out:
					if !c.write(frame) {
						return
					}
				default:
					c.Close()
					return
				}
			}
		case frame := <-c.out:
			if !c.write(frame) {
				return
			}
		}
	}
}

func (c *Conn) write(frame []byte) bool {
	c.nc.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := c.nc.Write(frame); err != nil {
		c.log.Debug("Ошибка записи в соединение %d: %v", c.id, err)
		c.metrics.failure("write")
		c.Close()
		return false
	}
	c.metrics.frame("out", len(frame))
	return true
}
