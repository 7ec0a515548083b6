package stagehand

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the World's Prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	commands     *prometheus.CounterVec
	loads        *prometheus.CounterVec
	loadDuration *prometheus.HistogramVec
	controllers  prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stagehand_commands_total",
				Help: "Total number of executed commands",
			},
			[]string{"command", "result"},
		),
		loads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stagehand_load_tasks_total",
				Help: "Total number of settled asynchronous loads",
			},
			[]string{"format", "result"},
		),
		loadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stagehand_load_duration_seconds",
				Help:    "Duration of asynchronous asset loads",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
			},
			[]string{"format"},
		),
		controllers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stagehand_controllers_live",
			Help: "Number of registered controllers",
		}),
	}
	for _, c := range []prometheus.Collector{m.commands, m.loads, m.loadDuration, m.controllers} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) recordCommand(kind string, err error) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(kind, resultLabel(err)).Inc()
}

func (m *Metrics) recordLoad(format Format, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.loads.WithLabelValues(string(format), resultLabel(err)).Inc()
	m.loadDuration.WithLabelValues(string(format)).Observe(d.Seconds())
}

func (m *Metrics) setControllers(n int) {
	if m == nil {
		return
	}
	m.controllers.Set(float64(n))
}
