// Package metrics provides the optional admin HTTP surface
// (/metrics, /ping, /ready) that both binaries can start on a
// `-metrics-addr` flag, with pprof support dropped (nothing in this
// repo needs profiling endpoints wired up).
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewAdminServer returns an initialized *http.Server serving /metrics,
// /ping, and /ready on addr. ready is polled on every /ready request so
// the caller can flip it once startup has finished.
func NewAdminServer(addr string, ready *bool) *http.Server {
	h := &handler{
		promHandler: promhttp.Handler(),
		ready:       ready,
	}
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 15 * time.Second,
	}
}

type handler struct {
	promHandler http.Handler
	ready       *bool
}

func (h *handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	switch req.URL.Path {
	case "/metrics":
		h.promHandler.ServeHTTP(w, req)
	case "/ping":
		w.Write([]byte("pong\n"))
	case "/ready":
		if h.ready != nil && *h.ready {
			w.Write([]byte("ok\n"))
			return
		}
		http.Error(w, "not ready\n", http.StatusServiceUnavailable)
	default:
		http.NotFound(w, req)
	}
}

// Counters are the overlay-specific metrics exported alongside the
// default Go/process collectors, built with prometheus.NewCounter /
// prometheus.NewGauge and registered with MustRegister.
type Counters struct {
	IndexSize         prometheus.Gauge
	MessagesForwarded prometheus.Counter
	MessagesDeduped   prometheus.Counter
	InvalidationsSent prometheus.Counter
	PendingQueueDepth prometheus.Gauge
}

// NewCounters constructs and registers the overlay's metrics with the
// default Prometheus registry.
func NewCounters(subsystem string) *Counters {
	c := &Counters{
		IndexSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Subsystem: subsystem,
			Name:      "file_index_size",
			Help:      "Number of distinct filenames currently indexed.",
		}),
		MessagesForwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "flood_messages_forwarded_total",
			Help:      "Number of flood messages forwarded to neighbors.",
		}),
		MessagesDeduped: prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "flood_messages_deduped_total",
			Help:      "Number of flood messages dropped as duplicates.",
		}),
		InvalidationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "invalidations_sent_total",
			Help:      "Number of invalidate/compare notifications sent to leaves.",
		}),
		PendingQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Subsystem: subsystem,
			Name:      "pending_modifications_depth",
			Help:      "Current depth of the PULL-P pending modifications queue.",
		}),
	}
	prometheus.MustRegister(
		c.IndexSize,
		c.MessagesForwarded,
		c.MessagesDeduped,
		c.InvalidationsSent,
		c.PendingQueueDepth,
	)
	return c
}
