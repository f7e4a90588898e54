package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wsmesh"

// Counter is a cumulative metric that only increases.
type Counter interface {
	Inc()
	Add(float64)
}

// CounterVec is a Counter with labels.
type CounterVec interface {
	WithLabelValues(lvs ...string) Counter
}

// Registry holds all application metrics.
type Registry struct {
	prom *prometheus.Registry

	// Connection registry
	Visits          Counter
	Logins          Counter
	Rejected        CounterVec // label: reason
	MessagesIn      Counter
	MessagesOut     Counter
	DeliveryFailure Counter
	RateLimited     Counter

	// Room broker
	Published    CounterVec // label: room kind
	DeniedAccess CounterVec // label: op (subscribe, post)

	// Session aggregator
	SessionLogins  Counter
	SessionLogouts Counter
	SessionExpired Counter

	// Peer links
	PeerReconnects CounterVec // label: node
	PeerFrames     CounterVec // label: direction (in, out)
}

type counterVec struct{ v *prometheus.CounterVec }

func (c counterVec) WithLabelValues(lvs ...string) Counter { return c.v.WithLabelValues(lvs...) }

// NewRegistry creates a registry with all metrics registered, plus the Go
// runtime and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{prom: reg}

	counter := func(sub, name, help string) Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Subsystem: sub, Name: name, Help: help})
		reg.MustRegister(c)
		return c
	}
	vec := func(sub, name, help, label string) CounterVec {
		v := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Subsystem: sub, Name: name, Help: help}, []string{label})
		reg.MustRegister(v)
		return counterVec{v}
	}

	r.Visits = counter("hub", "visits_total", "Accepted client connections")
	r.Logins = counter("hub", "logins_total", "Accepted authenticated connections")
	r.Rejected = vec("hub", "rejected_total", "Rejected connection attempts", "reason")
	r.MessagesIn = counter("hub", "messages_in_total", "Frames received from clients")
	r.MessagesOut = counter("hub", "messages_out_total", "Frames sent to clients")
	r.DeliveryFailure = counter("hub", "delivery_failures_total", "Frames that could not be queued for a recipient")
	r.RateLimited = counter("hub", "rate_limited_total", "Client frames dropped by the command rate limit")

	r.Published = vec("pubsub", "published_total", "Messages published to rooms", "kind")
	r.DeniedAccess = vec("pubsub", "denied_total", "Room operations refused by policy", "op")

	r.SessionLogins = counter("session", "logins_total", "User sessions that became active")
	r.SessionLogouts = counter("session", "logouts_total", "User sessions whose grace period ran out")
	r.SessionExpired = counter("session", "expired_total", "User sessions removed by the sweep")

	r.PeerReconnects = vec("peer", "reconnect_attempts_total", "Peer link connection attempts", "node")
	r.PeerFrames = vec("peer", "frames_total", "Peer link frames", "direction")

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Prometheus returns the underlying registry.
func (r *Registry) Prometheus() *prometheus.Registry {
	return r.prom
}

// MustRegister registers additional collectors.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	r.prom.MustRegister(cs...)
}

// GaugeFunc registers a gauge sampled from fn at scrape time.
func (r *Registry) GaugeFunc(subsystem, name, help string, fn func() float64) {
	r.prom.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, fn))
}

// CounterFunc registers a counter read from fn at scrape time. fn must
// never decrease.
func (r *Registry) CounterFunc(subsystem, name, help string, fn func() float64) {
	r.prom.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, fn))
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.prom, promhttp.HandlerOpts{Registry: r.prom})
}
