package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Subscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_active_subscriptions",
		Help: "Live fan-out subscriptions",
	})
	Published = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_events_published_total",
		Help: "Events handed to the fan-out bus, by type",
	}, []string{"type"})
	Delivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_events_delivered_total",
		Help: "Events buffered for a subscriber",
	})
	Evicted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_subscribers_evicted_total",
		Help: "Subscribers dropped because their buffer was full",
	})
	SinkFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_event_sink_failures_total",
		Help: "Events the outbound sink failed to write",
	})
	Requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_http_requests_total",
		Help: "HTTP requests by method and status",
	}, []string{"method", "status"})
)

var once sync.Once

// Init registers the collectors with the default registry. Safe to call more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(Subscriptions, Published, Delivered, Evicted, SinkFailures, Requests)
	})
}

// Handler returns an http.Handler for Prometheus scraping
func Handler() http.Handler {
	return promhttp.Handler()
}
