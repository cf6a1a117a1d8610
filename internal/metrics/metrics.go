// Package metrics exposes session lifecycle counters to Prometheus.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/fastygo/storefront/domain"
	"github.com/fastygo/storefront/usecase/session"
)

// Collector counts session events and tracks whether a session is active.
type Collector struct {
	events      *prometheus.CounterVec
	transitions *prometheus.CounterVec
	active      prometheus.Gauge
	generation  prometheus.Gauge
}

// NewCollector registers the session metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_session_events_total",
			Help: "Session audit events by type.",
		}, []string{"type"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_session_transitions_total",
			Help: "Session status transitions by target status.",
		}, []string{"to"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "storefront_session_authenticated",
			Help: "1 while a user is logged in.",
		}),
		generation: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "storefront_session_generation",
			Help: "Session manager transition counter.",
		}),
	}

	reg.MustRegister(c.events, c.transitions, c.active, c.generation)
	return c
}

// Observe follows manager transitions.
func (c *Collector) Observe(t session.Transition) {
	c.transitions.WithLabelValues(t.To.String()).Inc()
	c.generation.Set(float64(t.Generation))
	if t.To == domain.StatusAuthenticated {
		c.active.Set(1)
	} else {
		c.active.Set(0)
	}
}

// Record counts an audit event.
func (c *Collector) Record(_ context.Context, event domain.SessionEvent) error {
	c.events.WithLabelValues(string(event.Type)).Inc()
	return nil
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) fasthttp.RequestHandler {
	return fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}

var _ session.EventRecorder = (*Collector)(nil)
