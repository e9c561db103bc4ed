package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cowin"

// Poller метрики циклов опроса. Метки низкой кардинальности: имя класса и исход.
type Poller struct {
	Cycles        *prometheus.CounterVec
	Requests      *prometheus.CounterVec
	Alerts        *prometheus.CounterVec
	CycleDuration *prometheus.HistogramVec
}

func NewPoller(reg prometheus.Registerer) *Poller {
	f := promauto.With(reg)
	return &Poller{
		Cycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_cycles_total",
			Help:      "Poll cycles by cadence and result.",
		}, []string{"cadence", "result"}),
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Availability provider calls by cadence and status.",
		}, []string{"cadence", "status"}),
		Alerts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alert dispatch outcomes by cadence.",
		}, []string{"cadence", "outcome"}),
		CycleDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_cycle_duration_seconds",
			Help:      "Wall time of one poll cycle.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"cadence"}),
	}
}

func (p *Poller) ObserveCycle(cadence, result string, d time.Duration) {
	if p == nil {
		return
	}
	p.Cycles.WithLabelValues(cadence, result).Inc()
	p.CycleDuration.WithLabelValues(cadence).Observe(d.Seconds())
}

func (p *Poller) ObserveRequest(cadence, status string) {
	if p == nil {
		return
	}
	p.Requests.WithLabelValues(cadence, status).Inc()
}

func (p *Poller) ObserveAlert(cadence, outcome string) {
	if p == nil {
		return
	}
	p.Alerts.WithLabelValues(cadence, outcome).Inc()
}
