package shard

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics prometheus-метрики шардов. Один экземпляр на пул, шард
// различается меткой shard.
//
// Метрики:
// * shard_events_total{shard,kind}: counter
// * shard_rejected_total{shard,reason}: counter
// * shard_tick_duration_seconds{shard}: histogram
// * shard_worlds_active{shard}, shard_players{shard}, shard_scheduled_callbacks{shard}: gauge
type Metrics struct {
	events    *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	tick      *prometheus.HistogramVec
	worlds    *prometheus.GaugeVec
	players   *prometheus.GaugeVec
	scheduled *prometheus.GaugeVec
}

// NewMetrics создаёт метрики и регистрирует их в reg. reg == nil оставляет
// метрики незарегистрированными (удобно в тестах).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tileworld",
			Name:      "shard_events_total",
			Help:      "Обработанные события шарда.",
		}, []string{"shard", "kind"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tileworld",
			Name:      "shard_rejected_total",
			Help:      "Отклонённые запросы по причине.",
		}, []string{"shard", "reason"}),
		tick: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tileworld",
			Name:      "shard_tick_duration_seconds",
			Help:      "Длительность тика шарда.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		}, []string{"shard"}),
		worlds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tileworld",
			Name:      "shard_worlds_active",
			Help:      "Загруженные миры.",
		}, []string{"shard"}),
		players: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tileworld",
			Name:      "shard_players",
			Help:      "Подключённые игроки.",
		}, []string{"shard"}),
		scheduled: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tileworld",
			Name:      "shard_scheduled_callbacks",
			Help:      "Ожидающие отложенные вызовы.",
		}, []string{"shard"}),
	}
	if reg != nil {
		reg.MustRegister(m.events, m.rejected, m.tick, m.worlds, m.players, m.scheduled)
	}
	return m
}

// shardMetrics метрики, привязанные к одному шарду
type shardMetrics struct {
	m     *Metrics
	label string
}

func (m *Metrics) forShard(id int) shardMetrics {
	return shardMetrics{m: m, label: strconv.Itoa(id)}
}

func (s shardMetrics) event(kind string) {
	s.m.events.WithLabelValues(s.label, kind).Inc()
}

func (s shardMetrics) reject(reason string) {
	s.m.rejected.WithLabelValues(s.label, reason).Inc()
}

func (s shardMetrics) observeTick(d time.Duration) {
	s.m.tick.WithLabelValues(s.label).Observe(d.Seconds())
}

func (s shardMetrics) gauges(snap *Snapshot) {
	s.m.worlds.WithLabelValues(s.label).Set(float64(len(snap.Worlds)))
	s.m.players.WithLabelValues(s.label).Set(float64(snap.Players))
	s.m.scheduled.WithLabelValues(s.label).Set(float64(snap.Scheduled))
}
