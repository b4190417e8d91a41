package cardtable

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder collects operational counters from the reconciler and the hub.
type Recorder interface {
	BatchApplied(deltas int)
	BatchFailed()
	EventPublished(deltas int)
	SendDropped()
	SessionsChanged(connected int)
}

// NopRecorder is a Recorder that records nothing. Handy in tests.
type NopRecorder struct{}

func (NopRecorder) BatchApplied(int)    {}
func (NopRecorder) BatchFailed()        {}
func (NopRecorder) EventPublished(int)  {}
func (NopRecorder) SendDropped()        {}
func (NopRecorder) SessionsChanged(int) {}

// Collector is the prometheus-backed Recorder.
type Collector struct {
	batches    prometheus.Counter
	batchFails prometheus.Counter
	deltas     prometheus.Counter
	events     prometheus.Counter
	sendDrops  prometheus.Counter
	sessions   prometheus.Gauge
}

// NewCollector creates a Collector and registers its metrics with the given
// registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cardtable_batches_total",
			Help: "Action batches committed.",
		}),
		batchFails: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cardtable_batch_failures_total",
			Help: "Action batches that failed at the store and committed nothing.",
		}),
		deltas: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cardtable_deltas_total",
			Help: "Per-card deltas produced by committed batches.",
		}),
		events: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cardtable_broadcasts_total",
			Help: "cardUpdate events fanned out to connected sessions.",
		}),
		sendDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cardtable_broadcast_drops_total",
			Help: "Sessions dropped because a broadcast send failed.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cardtable_connected_sessions",
			Help: "Currently connected websocket sessions.",
		}),
	}

	reg.MustRegister(c.batches, c.batchFails, c.deltas, c.events, c.sendDrops, c.sessions)
	return c
}

func (c *Collector) BatchApplied(deltas int) {
	c.batches.Inc()
	c.deltas.Add(float64(deltas))
}

func (c *Collector) BatchFailed() {
	c.batchFails.Inc()
}

func (c *Collector) EventPublished(int) {
	c.events.Inc()
}

func (c *Collector) SendDropped() {
	c.sendDrops.Inc()
}

func (c *Collector) SessionsChanged(connected int) {
	c.sessions.Set(float64(connected))
}

// MetricsHandler exposes the registry for scraping.
func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
