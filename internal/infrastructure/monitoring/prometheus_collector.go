package monitoring

import (
	"time"

	"camsignal/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector implements ports.SignalMetrics.
type PrometheusCollector struct {
	// Registry gauges
	connections  prometheus.Gauge
	broadcasters prometheus.Gauge
	viewers      prometheus.Gauge

	// Counters
	eventsTotal        *prometheus.CounterVec
	relaysTotal        *prometheus.CounterVec
	errorsTotal        *prometheus.CounterVec
	sendDroppedTotal   prometheus.Counter
	presenceBroadcasts prometheus.Counter

	// Histograms
	eventDuration      *prometheus.HistogramVec
	presenceRecipients prometheus.Histogram
}

// NewPrometheusCollector registers the signaling metrics with reg.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)

	return &PrometheusCollector{
		connections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "camsignal_connections",
			Help: "Number of live signaling connections",
		}),

		broadcasters: factory.NewGauge(prometheus.GaugeOpts{
			Name: "camsignal_broadcasters",
			Help: "Number of registered broadcasters",
		}),

		viewers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "camsignal_viewers",
			Help: "Number of viewers paired with a broadcaster",
		}),

		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "camsignal_events_total",
			Help: "Inbound events processed by the coordinator",
		}, []string{"type"}),

		relaysTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "camsignal_relays_total",
			Help: "Relayed peer messages by outcome",
		}, []string{"kind", "outcome"}),

		errorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "camsignal_errors_total",
			Help: "Error events sent to clients",
		}, []string{"code"}),

		sendDroppedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "camsignal_send_dropped_total",
			Help: "Outbound messages dropped because a send queue was full",
		}),

		presenceBroadcasts: factory.NewCounter(prometheus.CounterOpts{
			Name: "camsignal_presence_broadcasts_total",
			Help: "Presence snapshots pushed to all connections",
		}),

		eventDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "camsignal_event_duration_seconds",
			Help:    "Time spent handling one inbound event",
			Buckets: []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}, []string{"type"}),

		presenceRecipients: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "camsignal_presence_recipients",
			Help:    "Connections reached by one presence snapshot",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
}

func (p *PrometheusCollector) RecordEvent(eventType domain.EventType, duration time.Duration) {
	p.eventsTotal.WithLabelValues(string(eventType)).Inc()
	p.eventDuration.WithLabelValues(string(eventType)).Observe(duration.Seconds())
}

func (p *PrometheusCollector) RecordRelay(kind domain.EventType, delivered bool) {
	outcome := "dropped"
	if delivered {
		outcome = "delivered"
	}
	p.relaysTotal.WithLabelValues(string(kind), outcome).Inc()
}

func (p *PrometheusCollector) RecordError(code string) {
	p.errorsTotal.WithLabelValues(code).Inc()
}

func (p *PrometheusCollector) RecordSendDropped() {
	p.sendDroppedTotal.Inc()
}

func (p *PrometheusCollector) RecordPresenceBroadcast(recipients int) {
	p.presenceBroadcasts.Inc()
	p.presenceRecipients.Observe(float64(recipients))
}

func (p *PrometheusCollector) SetRegistryStats(stats domain.RegistryStats) {
	p.connections.Set(float64(stats.Connections))
	p.broadcasters.Set(float64(stats.Broadcasters))
	p.viewers.Set(float64(stats.Viewers))
}
