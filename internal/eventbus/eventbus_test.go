package eventbus

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadRoundTrip(t *testing.T) {
	data, err := EncodePayload(map[string]interface{}{
		"world":   "START",
		"id":      7,
		"players": []interface{}{1, 2},
		"public":  true,
	})
	require.NoError(t, err)

	fields, err := DecodePayload(data)
	require.NoError(t, err)
	assert.Equal(t, "START", fields["world"])
	assert.Equal(t, float64(7), fields["id"], "числа приходят как float64")
	assert.Equal(t, true, fields["public"])
	assert.Len(t, fields["players"], 2)

	_, err = EncodePayload(map[string]interface{}{"bad": struct{}{}})
	assert.Error(t, err)
}

func TestNewEnvelope(t *testing.T) {
	a, err := NewEnvelope("shard-0", TypeWorldLoaded, map[string]interface{}{"world": "A"})
	require.NoError(t, err)
	b, err := NewEnvelope("shard-0", TypeWorldLoaded, nil)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Len(t, a.ID, 36, "UUID в текстовом виде")
	assert.Equal(t, PayloadVersion, a.Version)
}

func TestMemoryBusDelivery(t *testing.T) {
	bus := NewMemoryBus(16)
	ctx := context.Background()

	var mu sync.Mutex
	var got []string
	_, err := bus.Subscribe(ctx, Filter{Types: []string{TypeWorldSaved}}, func(ctx context.Context, ev *Envelope) {
		mu.Lock()
		got = append(got, ev.EventType+":"+ev.Source)
		mu.Unlock()
	})
	require.NoError(t, err)

	all := 0
	sub, err := bus.Subscribe(ctx, Filter{}, func(ctx context.Context, ev *Envelope) {
		mu.Lock()
		all++
		mu.Unlock()
	})
	require.NoError(t, err)

	for _, typ := range []string{TypeWorldLoaded, TypeWorldSaved, TypeWorldSaved} {
		ev, err := NewEnvelope("s1", typ, nil)
		require.NoError(t, err)
		require.NoError(t, bus.Publish(ctx, ev))
	}
	sub.Unsubscribe()
	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"world.saved:s1", "world.saved:s1"}, got, "фильтр по типу")
	assert.LessOrEqual(t, all, 3)

	stats := bus.Metrics()
	assert.Equal(t, uint64(3), stats.Published)

	ev, _ := NewEnvelope("s1", TypeWorldSaved, nil)
	assert.ErrorIs(t, bus.Publish(ctx, ev), ErrClosed)
	assert.NoError(t, bus.Close(), "повторное закрытие безопасно")
}

func TestMemoryBusDropsLowPriority(t *testing.T) {
	bus := NewMemoryBus(1)
	ctx := context.Background()
	block := make(chan struct{})
	_, err := bus.Subscribe(ctx, Filter{}, func(ctx context.Context, ev *Envelope) { <-block })
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(ctx, &Envelope{EventType: TypeWorldSaved}))
	}
	close(block)
	require.NoError(t, bus.Close())

	stats := bus.Metrics()
	assert.Equal(t, uint64(5), stats.Published+stats.Dropped)
	assert.NotZero(t, stats.Dropped, "при переполнении события с низким приоритетом отбрасываются")
}

func TestMetricsExporterUpdate(t *testing.T) {
	bus := NewMemoryBus(4)
	reg := prometheus.NewRegistry()
	me := NewMetricsExporter(bus, reg)

	require.NoError(t, bus.Publish(context.Background(), &Envelope{EventType: TypeLockApplied}))
	require.NoError(t, bus.Close())

	prev := me.update(Stats{})
	assert.Equal(t, uint64(1), prev.Published)
	assert.Equal(t, float64(1), testutil.ToFloat64(me.published))

	me.update(prev)
	assert.Equal(t, float64(1), testutil.ToFloat64(me.published), "повторный опрос не удваивает счётчик")
}

func TestFilters(t *testing.T) {
	ev := &Envelope{EventType: TypeWorldSaved, Source: "shard-1@node-1"}

	assert.True(t, matchFilter(ev, Filter{}))
	assert.True(t, matchFilter(ev, Filter{Types: []string{TypeWorldLoaded, TypeWorldSaved}}))
	assert.False(t, matchFilter(ev, Filter{Types: []string{TypeLockApplied}}))
	assert.False(t, matchFilter(ev, Filter{Types: []string{TypeWorldSaved}, Sources: []string{"shard-0@node-1"}}))

	assert.Equal(t, []string{"world_events.>"}, subjects(Filter{}))
	assert.Equal(t, []string{"world_events.world.saved", "world_events.lock.applied"},
		subjects(Filter{Types: []string{TypeWorldSaved, TypeLockApplied}}))
}
