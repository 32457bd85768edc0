package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	nats "github.com/nats-io/nats.go"

	"github.com/annel0/tileworld/internal/logging"
)

// subjectPrefix события публикуются в subject world_events.<type>
const subjectPrefix = "world_events."

// JetStreamBus EventBus поверх NATS JetStream. Подписки получают только
// события, опубликованные после подписки.
type JetStreamBus struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	stream string
	log    *logging.Logger

	published atomic.Uint64
	consumed  atomic.Uint64
	dropped   atomic.Uint64
	inflight  atomic.Int64
}

// NewJetStreamBus подключается к NATS и создаёт стрим, если его нет.
// retention 0 хранит события без ограничения по времени.
func NewJetStreamBus(url, stream string, retention time.Duration) (*JetStreamBus, error) {
	if stream == "" {
		stream = "WORLD_EVENTS"
	}
	log := logging.GetComponentLogger("eventbus")

	nc, err := nats.Connect(url,
		nats.Name("tileworld"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("NATS отключён: %v", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("NATS переподключён к %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	if _, err = js.StreamInfo(stream); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:      stream,
			Subjects:  []string{subjectPrefix + ">"},
			Retention: nats.LimitsPolicy,
			MaxAge:    retention,
			Storage:   nats.FileStorage,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("add stream %s: %w", stream, err)
		}
		log.Info("Создан стрим %s", stream)
	}

	return &JetStreamBus{nc: nc, js: js, stream: stream, log: log}, nil
}

// Publish сериализует Envelope в JSON. ID события служит ключом
// дедупликации JetStream.
func (jb *JetStreamBus) Publish(ctx context.Context, ev *Envelope) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = jb.js.Publish(subjectPrefix+ev.EventType, data, nats.Context(ctx), nats.MsgId(ev.ID))
	if err != nil {
		jb.dropped.Add(1)
		return err
	}
	jb.published.Add(1)
	return nil
}

// subjects по subject на каждый тип фильтра, без типов все события
func subjects(f Filter) []string {
	if len(f.Types) == 0 {
		return []string{subjectPrefix + ">"}
	}
	out := make([]string, 0, len(f.Types))
	for _, t := range f.Types {
		out = append(out, subjectPrefix+t)
	}
	return out
}

// Subscribe создаёт эфемерного потребителя на каждый subject фильтра.
// Подписка снимается при Unsubscribe или отмене ctx.
func (jb *JetStreamBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	sub := &jetSub{cancel: cancel}

	handle := func(msg *nats.Msg) {
		jb.inflight.Add(1)
		defer jb.inflight.Add(-1)
		var ev Envelope
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			jb.log.Warn("Событие %s не разобрано: %v", msg.Subject, err)
			_ = msg.Term()
			return
		}
		if matchFilter(&ev, f) && ctx.Err() == nil {
			h(ctx, &ev)
			jb.consumed.Add(1)
		}
		_ = msg.Ack()
	}

	for _, subj := range subjects(f) {
		s, err := jb.js.Subscribe(subj, handle,
			nats.BindStream(jb.stream),
			nats.DeliverNew(),
			nats.ManualAck(),
			nats.AckWait(30*time.Second),
		)
		if err != nil {
			sub.Unsubscribe()
			return nil, fmt.Errorf("subscribe %s: %w", subj, err)
		}
		sub.subs = append(sub.subs, s)
	}

	go func() {
		<-ctx.Done()
		sub.Unsubscribe()
	}()
	return sub, nil
}

type jetSub struct {
	cancel context.CancelFunc
	once   sync.Once
	subs   []*nats.Subscription
}

func (j *jetSub) Unsubscribe() {
	j.once.Do(func() {
		j.cancel()
		for _, s := range j.subs {
			_ = s.Unsubscribe()
		}
	})
}

func (jb *JetStreamBus) Metrics() Stats {
	return Stats{
		Published: jb.published.Load(),
		Consumed:  jb.consumed.Load(),
		Dropped:   jb.dropped.Load(),
		InFlight:  int(jb.inflight.Load()),
	}
}

// Close дожидается отправки буферов и закрывает соединение
func (jb *JetStreamBus) Close() error {
	return jb.nc.Drain()
}
