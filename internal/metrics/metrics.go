package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	AgentCalls    *prometheus.CounterVec   // op: plan|chat|concierge, outcome: ok|transport|rejected|stale|error
	AgentDuration *prometheus.HistogramVec // op
	AgentInflight prometheus.Gauge

	Routes        *prometheus.CounterVec // result: ok|fallback
	RouteDuration prometheus.Histogram
	RouteDropped  prometheus.Counter

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge

	WSClients prometheus.Gauge

	MaxWaypoints prometheus.Gauge
}

func NewCollector(maxWaypoints int) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		AgentCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "itera_agent_calls_total",
			Help: "Agent calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		AgentDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "itera_agent_call_duration_seconds",
			Help:    "Duration of agent calls.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"op"}),
		AgentInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "itera_agent_inflight",
			Help: "Agent calls currently in flight.",
		}),
		Routes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "itera_routes_total",
			Help: "Computed routes by result.",
		}, []string{"result"}),
		RouteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "itera_route_duration_seconds",
			Help:    "Duration of route computations including provider calls.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		RouteDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "itera_route_dropped_waypoints_total",
			Help: "Interior waypoints dropped by the provider limit.",
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "itera_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "itera_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "itera_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "itera_ws_clients",
			Help: "Connected websocket clients.",
		}),
		MaxWaypoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "itera_route_max_waypoints",
			Help: "Configured interior waypoint limit.",
		}),
	}

	// Register
	reg.MustRegister(
		c.AgentCalls, c.AgentDuration, c.AgentInflight,
		c.Routes, c.RouteDuration, c.RouteDropped,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected,
		c.WSClients, c.MaxWaypoints,
	)

	c.MaxWaypoints.Set(float64(maxWaypoints))

	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// ObserveAgentCall records one finished agent call.
func (c *Collector) ObserveAgentCall(op, outcome string, d time.Duration) {
	c.AgentCalls.WithLabelValues(op, outcome).Inc()
	c.AgentDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (c *Collector) SetInflight(n int) { c.AgentInflight.Set(float64(n)) }

// ObserveRoute records one computed route.
func (c *Collector) ObserveRoute(degraded bool, dropped int, d time.Duration) {
	result := "ok"
	if degraded {
		result = "fallback"
	}
	c.Routes.WithLabelValues(result).Inc()
	c.RouteDuration.Observe(d.Seconds())
	c.RouteDropped.Add(float64(dropped))
}

func (c *Collector) NATSPublishedInc()  { c.NATSPublished.Inc() }
func (c *Collector) NATSPublishErrInc() { c.NATSPublishErrs.Inc() }

func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}

func (c *Collector) SetClients(n int) { c.WSClients.Set(float64(n)) }
