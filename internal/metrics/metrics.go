// Package metrics exposes Prometheus counters for conversation turns,
// outbound delivery and session housekeeping. A nil *Metrics is valid and
// records nothing.
package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	turnsTotal    *prometheus.CounterVec
	turnLatency   *prometheus.HistogramVec
	deliveryTotal *prometheus.CounterVec
	failuresTotal *prometheus.CounterVec
	prunedTotal   prometheus.Counter
	lanes         prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tirtabot",
			Subsystem: "engine",
			Name:      "turns_total",
			Help:      "Conversation turns by outcome",
		}, []string{"outcome"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tirtabot",
			Subsystem: "engine",
			Name:      "turn_duration_seconds",
			Help:      "Time spent deciding a reply, excluding pacing waits",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		deliveryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tirtabot",
			Subsystem: "delivery",
			Name:      "actions_total",
			Help:      "Outbound actions executed by channel and status",
		}, []string{"channel", "kind", "status"}),
		failuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tirtabot",
			Subsystem: "gateway",
			Name:      "failures_total",
			Help:      "Failed turns by stage",
		}, []string{"stage"}),
		prunedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tirtabot",
			Subsystem: "sessions",
			Name:      "pruned_total",
			Help:      "Expired session rows removed by the pruner",
		}),
		lanes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tirtabot",
			Subsystem: "gateway",
			Name:      "lanes",
			Help:      "Sender lanes currently held by the gateway",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.turnLatency, m.deliveryTotal, m.failuresTotal, m.prunedTotal, m.lanes)
	return m
}

func (m *Metrics) ObserveTurn(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(outcome).Inc()
	m.turnLatency.WithLabelValues(outcome).Observe(seconds)
}

func (m *Metrics) ObserveDelivery(channel, kind, status string) {
	if m == nil {
		return
	}
	m.deliveryTotal.WithLabelValues(channel, kind, status).Inc()
}

// ObserveFailure counts a turn that failed at stage ("engine" or "delivery").
func (m *Metrics) ObserveFailure(stage string) {
	if m == nil {
		return
	}
	m.failuresTotal.WithLabelValues(stage).Inc()
}

func (m *Metrics) ObservePruned(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.prunedTotal.Add(float64(n))
}

func (m *Metrics) SetLanes(n int) {
	if m == nil {
		return
	}
	m.lanes.Set(float64(n))
}
