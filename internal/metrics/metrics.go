package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Relay results used as the "result" label.
const (
	ResultOK            = "ok"
	ResultBadRequest    = "bad_request"
	ResultUpstreamError = "upstream_error"
	ResultInterrupted   = "interrupted"
)

var (
	once sync.Once

	// RelayRequestsTotal counts relay requests by transport and outcome.
	RelayRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "support_chat",
		Subsystem: "relay",
		Name:      "requests_total",
		Help:      "Total number of relay requests, labeled by transport and result.",
	}, []string{"transport", "result"})

	// ChunksTotal counts non-empty deltas forwarded to clients.
	ChunksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "support_chat",
		Subsystem: "relay",
		Name:      "chunks_total",
		Help:      "Total number of upstream text deltas forwarded to clients.",
	})

	// BytesTotal counts response bytes forwarded to clients.
	BytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "support_chat",
		Subsystem: "relay",
		Name:      "bytes_total",
		Help:      "Total number of streamed bytes forwarded to clients.",
	})

	// InFlight is the number of streams currently open upstream.
	InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "support_chat",
		Subsystem: "relay",
		Name:      "streams_in_flight",
		Help:      "Current number of upstream streams being relayed.",
	})

	// StreamDurationSeconds is the wall time from upstream call to stream end.
	StreamDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "support_chat",
		Subsystem: "relay",
		Name:      "stream_duration_seconds",
		Help:      "Time from the upstream call until the relayed stream ends.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60, 120, 300},
	}, []string{"result"})
)

// ObserveRelay records the outcome of one relay request.
func ObserveRelay(transport, result string, started time.Time) {
	RelayRequestsTotal.WithLabelValues(transport, result).Inc()
	StreamDurationSeconds.WithLabelValues(result).Observe(time.Since(started).Seconds())
}

// Register registers relay metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			RelayRequestsTotal,
			ChunksTotal,
			BytesTotal,
			InFlight,
			StreamDurationSeconds,
		)
	})
}
