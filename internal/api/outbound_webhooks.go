package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/annel0/tileworld/internal/eventbus"
	"github.com/annel0/tileworld/internal/logging"
)

// OutboundWebhook исходящий webhook, получающий события миров
type OutboundWebhook struct {
	ID           uint64     `json:"id"`
	Name         string     `json:"name" binding:"required"`
	URL          string     `json:"url" binding:"required,url"`
	Secret       string     `json:"secret,omitempty"`
	Events       []string   `json:"events" binding:"required"` // Типы событий, "*" - все
	Active       bool       `json:"active"`
	Timeout      int        `json:"timeout"` // Секунды
	RetryCount   int        `json:"retry_count"`
	CreatedAt    time.Time  `json:"created_at"`
	LastUsed     *time.Time `json:"last_used,omitempty"`
	FailureCount int        `json:"failure_count"`
}

// OutboundWebhookEvent тело запроса к webhook
type OutboundWebhookEvent struct {
	ID        string                 `json:"id"`
	EventType string                 `json:"event_type"`
	Timestamp int64                  `json:"timestamp"`
	ServerID  string                 `json:"server_id"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
}

// OutboundWebhookManager пересылает события шины подписанным webhook'ам
type OutboundWebhookManager struct {
	mu       sync.RWMutex
	webhooks map[uint64]*OutboundWebhook
	nextID   uint64

	queue    chan OutboundWebhookEvent
	client   *http.Client
	serverID string
	backoff  time.Duration
	log      *logging.Logger

	sub  eventbus.Subscription
	stop context.CancelFunc
	wg   sync.WaitGroup
}

func NewOutboundWebhookManager(serverID string) *OutboundWebhookManager {
	return &OutboundWebhookManager{
		webhooks: make(map[uint64]*OutboundWebhook),
		nextID:   1,
		queue:    make(chan OutboundWebhookEvent, 1000),
		client:   &http.Client{Timeout: 30 * time.Second},
		serverID: serverID,
		backoff:  time.Second,
		log:      logging.GetComponentLogger("webhooks"),
	}
}

// Start подписывается на все события bus и запускает рассылку
func (owm *OutboundWebhookManager) Start(ctx context.Context, bus eventbus.EventBus) error {
	ctx, cancel := context.WithCancel(ctx)
	sub, err := bus.Subscribe(ctx, eventbus.Filter{}, func(_ context.Context, env *eventbus.Envelope) {
		data, err := eventbus.DecodePayload(env.Payload)
		if err != nil {
			owm.log.Warn("Событие %s с повреждённой нагрузкой: %v", env.ID, err)
			return
		}
		owm.Enqueue(OutboundWebhookEvent{
			ID:        env.ID,
			EventType: env.EventType,
			Timestamp: env.Timestamp.Unix(),
			ServerID:  owm.serverID,
			Source:    env.Source,
			Data:      data,
		})
	})
	if err != nil {
		cancel()
		return fmt.Errorf("webhooks subscribe: %w", err)
	}
	owm.sub = sub
	owm.stop = cancel

	owm.wg.Add(1)
	go owm.worker(ctx)
	return nil
}

// Stop отписывается от шины и ждёт текущих отправок
func (owm *OutboundWebhookManager) Stop() {
	if owm.sub != nil {
		owm.sub.Unsubscribe()
	}
	if owm.stop != nil {
		owm.stop()
	}
	owm.wg.Wait()
}

// Enqueue ставит событие в очередь рассылки. false, если очередь полна.
func (owm *OutboundWebhookManager) Enqueue(event OutboundWebhookEvent) bool {
	select {
	case owm.queue <- event:
		return true
	default:
		owm.log.Warn("Очередь webhook'ов переполнена, событие %s пропущено", event.EventType)
		return false
	}
}

// AddWebhook регистрирует webhook
func (owm *OutboundWebhookManager) AddWebhook(webhook OutboundWebhook) *OutboundWebhook {
	owm.mu.Lock()
	defer owm.mu.Unlock()

	webhook.ID = owm.nextID
	owm.nextID++
	webhook.CreatedAt = time.Now()
	webhook.Active = true
	if webhook.Timeout <= 0 {
		webhook.Timeout = 30
	}
	if webhook.RetryCount <= 0 {
		webhook.RetryCount = 3
	}

	owm.webhooks[webhook.ID] = &webhook
	out := webhook
	return &out
}

// Webhooks список webhook'ов по возрастанию ID
func (owm *OutboundWebhookManager) Webhooks() []OutboundWebhook {
	owm.mu.RLock()
	defer owm.mu.RUnlock()

	out := make([]OutboundWebhook, 0, len(owm.webhooks))
	for _, w := range owm.webhooks {
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Webhook webhook по ID
func (owm *OutboundWebhookManager) Webhook(id uint64) (OutboundWebhook, bool) {
	owm.mu.RLock()
	defer owm.mu.RUnlock()
	w, ok := owm.webhooks[id]
	if !ok {
		return OutboundWebhook{}, false
	}
	return *w, true
}

// UpdateWebhook меняет заданные поля webhook
func (owm *OutboundWebhookManager) UpdateWebhook(id uint64, updates OutboundWebhook) (OutboundWebhook, bool) {
	owm.mu.Lock()
	defer owm.mu.Unlock()

	w, ok := owm.webhooks[id]
	if !ok {
		return OutboundWebhook{}, false
	}
	if updates.Name != "" {
		w.Name = updates.Name
	}
	if updates.URL != "" {
		w.URL = updates.URL
	}
	if updates.Secret != "" {
		w.Secret = updates.Secret
	}
	if len(updates.Events) > 0 {
		w.Events = updates.Events
	}
	if updates.Timeout > 0 {
		w.Timeout = updates.Timeout
	}
	if updates.RetryCount > 0 {
		w.RetryCount = updates.RetryCount
	}
	w.Active = updates.Active
	return *w, true
}

// DeleteWebhook удаляет webhook
func (owm *OutboundWebhookManager) DeleteWebhook(id uint64) bool {
	owm.mu.Lock()
	defer owm.mu.Unlock()
	if _, ok := owm.webhooks[id]; !ok {
		return false
	}
	delete(owm.webhooks, id)
	return true
}

// EventTypes типы событий, на которые можно подписать webhook
func (owm *OutboundWebhookManager) EventTypes() []string {
	return []string{
		eventbus.TypeWorldLoaded,
		eventbus.TypeWorldSaved,
		eventbus.TypeWorldEvicted,
		eventbus.TypeLockApplied,
	}
}

func (owm *OutboundWebhookManager) worker(ctx context.Context) {
	defer owm.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-owm.queue:
			for _, w := range owm.subscribers(event.EventType) {
				owm.wg.Add(1)
				go func(w OutboundWebhook) {
					defer owm.wg.Done()
					owm.send(ctx, w, event)
				}(w)
			}
		}
	}
}

func (owm *OutboundWebhookManager) subscribers(eventType string) []OutboundWebhook {
	owm.mu.RLock()
	defer owm.mu.RUnlock()

	var out []OutboundWebhook
	for _, w := range owm.webhooks {
		if !w.Active {
			continue
		}
		for _, e := range w.Events {
			if e == eventType || e == "*" {
				out = append(out, *w)
				break
			}
		}
	}
	return out
}

// send доставляет событие с повторами; задержка растёт линейно
func (owm *OutboundWebhookManager) send(ctx context.Context, w OutboundWebhook, event OutboundWebhookEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		owm.log.Error("Маршалинг события для webhook %s: %v", w.Name, err)
		return
	}

	var lastErr error
	for attempt := 0; attempt <= w.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(attempt) * owm.backoff):
			}
		}
		if lastErr = owm.post(ctx, w, event.EventType, body); lastErr == nil {
			break
		}
		owm.log.Debug("Webhook %s, попытка %d/%d: %v", w.Name, attempt+1, w.RetryCount+1, lastErr)
	}

	owm.mu.Lock()
	if cur, ok := owm.webhooks[w.ID]; ok {
		now := time.Now()
		cur.LastUsed = &now
		if lastErr != nil {
			cur.FailureCount++
		}
	}
	owm.mu.Unlock()

	if lastErr != nil {
		owm.log.Warn("Событие %s не доставлено в webhook %s: %v", event.EventType, w.Name, lastErr)
	}
}

var errWebhookStatus = errors.New("webhook returned non-2xx status")

func (owm *OutboundWebhookManager) post(ctx context.Context, w OutboundWebhook, eventType string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(w.Timeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "tileworld/1.0")
	req.Header.Set("X-Event-Type", eventType)
	req.Header.Set("X-Server-ID", owm.serverID)
	if w.Secret != "" {
		req.Header.Set("X-Webhook-Signature", Sign(body, w.Secret))
	}

	resp, err := owm.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %d", errWebhookStatus, resp.StatusCode)
	}
	return nil
}

// Sign HMAC-SHA256 подпись тела в формате "sha256=<hex>"
func Sign(data []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(data)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
