package network

import "github.com/prometheus/client_golang/prometheus"

// Metrics prometheus-метрики сетевого слоя
type Metrics struct {
	active   prometheus.Gauge
	accepted prometheus.Counter
	frames   *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	errors   *prometheus.CounterVec
}

// NewMetrics создаёт метрики и регистрирует их в reg, если он задан
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tileworld",
			Name:      "network_connections_active",
			Help:      "Открытые соединения.",
		}),
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tileworld",
			Name:      "network_connections_total",
			Help:      "Принятые соединения.",
		}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tileworld",
			Name:      "network_frames_total",
			Help:      "Кадры по направлению (in/out).",
		}, []string{"direction"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tileworld",
			Name:      "network_bytes_total",
			Help:      "Байты кадров по направлению (in/out).",
		}, []string{"direction"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tileworld",
			Name:      "network_errors_total",
			Help:      "Ошибки соединений по виду.",
		}, []string{"kind"}),
	}
	if reg != nil {
		reg.MustRegister(m.active, m.accepted, m.frames, m.bytes, m.errors)
	}
	return m
}

func (m *Metrics) opened() {
	m.accepted.Inc()
	m.active.Inc()
}

func (m *Metrics) closed() { m.active.Dec() }

func (m *Metrics) frame(direction string, size int) {
	m.frames.WithLabelValues(direction).Inc()
	m.bytes.WithLabelValues(direction).Add(float64(size))
}

func (m *Metrics) failure(kind string) { m.errors.WithLabelValues(kind).Inc() }
