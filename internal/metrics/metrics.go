// ABOUTME: Prometheus collectors for the tatasbox service
// ABOUTME: HTTP instrumentation plus counters for story generation and persistence writes

package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tatasbox"

var (
	// Registry holds the service's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "path"},
	)

	storyGenerations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "story",
			Name:      "generations_total",
			Help:      "Daily story generations by result.",
		},
		[]string{"result"},
	)

	storyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "story",
			Name:      "generation_duration_seconds",
			Help:      "Latency of upstream LLM calls.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8), // 250ms to ~32s
		},
	)

	kvWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kv",
			Name:      "writes_total",
			Help:      "Persisted state writes by store and result.",
		},
		[]string{"store", "result"},
	)

	kvWriteFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kv",
			Name:      "write_failures_total",
			Help:      "Persisted state writes that failed.",
		},
		[]string{"store"},
	)

	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "kv",
			Name:      "queue_depth",
			Help:      "Writes waiting in per-store persistence queues.",
		},
		[]string{"store"},
	)

	devicesHydrated = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "devices",
			Name:      "hydrated",
			Help:      "Devices whose stores are loaded in memory.",
		},
	)

	ephemeralSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "ephemeral_sessions_swept_total",
			Help:      "Ephemeral dialogue sessions removed by the scheduled sweep.",
		},
	)

	rateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		},
		[]string{"path"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		storyGenerations,
		storyDuration,
		kvWrites,
		kvWriteFailures,
		queueDepth,
		devicesHydrated,
		ephemeralSwept,
		rateLimited,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
// metricsPath is excluded so scrapes don't count themselves.
func InstrumentHandler(metricsPath string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == metricsPath {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		path := CanonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

// RecordStoryGeneration records the outcome and latency of one LLM call.
func RecordStoryGeneration(success bool, duration time.Duration) {
	result := "error"
	if success {
		result = "ok"
	}
	storyGenerations.WithLabelValues(result).Inc()
	storyDuration.Observe(duration.Seconds())
}

// RecordStoryCacheHit counts a story served from the daily cache.
func RecordStoryCacheHit() {
	storyGenerations.WithLabelValues("cached").Inc()
}

// RecordKVWrite records a persistence write for the named store.
func RecordKVWrite(store string, err error) {
	if err != nil {
		kvWrites.WithLabelValues(store, "error").Inc()
		kvWriteFailures.WithLabelValues(store).Inc()
		return
	}
	kvWrites.WithLabelValues(store, "ok").Inc()
}

// AddQueueDepth adjusts the pending-write gauge for the named store.
func AddQueueDepth(store string, delta int) {
	queueDepth.WithLabelValues(store).Add(float64(delta))
}

// SetDevicesHydrated records how many devices are currently loaded.
func SetDevicesHydrated(n int) {
	devicesHydrated.Set(float64(n))
}

// RecordEphemeralSweep counts sessions removed by one sweep.
func RecordEphemeralSweep(removed int) {
	ephemeralSwept.Add(float64(removed))
}

// RecordRateLimited counts a rejected request.
func RecordRateLimited(path string) {
	rateLimited.WithLabelValues(CanonicalPath(path)).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// Flush keeps SSE streams working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// CanonicalPath collapses ids and months out of API paths so label
// cardinality stays bounded. "/api/goals/1712/pin" becomes "/api/goals/:id/pin".
func CanonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if parts[0] != "api" || len(parts) < 3 {
		return "/" + trimmed
	}
	out := []string{parts[0], parts[1]}
	for _, p := range parts[2:] {
		switch p {
		case "done", "pin", "identity", "steps", "end", "ephemeral", "ticks",
			"complete", "abandon", "gift", "export", "generate", "today", "theme", "toggle":
			out = append(out, p)
		default:
			if parts[1] == "journal" && isJournalCollection(p) {
				out = append(out, p)
				continue
			}
			out = append(out, ":id")
		}
	}
	return "/" + strings.Join(out, "/")
}

func isJournalCollection(p string) bool {
	switch p {
	case "checkins", "sessions", "experiments", "reports", "settings", "streak":
		return true
	}
	return false
}
