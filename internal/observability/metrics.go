package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is nil-safe: every recording method is a no-op on a nil receiver.
type Metrics struct {
	registry          *prometheus.Registry
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	attemptsTotal     *prometheus.CounterVec
	dispatchDuration  prometheus.Histogram
	mailFailures      prometheus.Counter
	webhookCalls      *prometheus.CounterVec
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	nextRun           prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		attemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gst_report_attempts_total",
			Help: "Report send attempts by trigger source and outcome.",
		}, []string{"source", "outcome"}),
		dispatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gst_report_dispatch_duration_seconds",
			Help:    "Time spent building and mailing a report.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		mailFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gst_report_mail_failures_total",
			Help: "Per-recipient mail delivery failures.",
		}),
		webhookCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gst_report_webhook_calls_total",
			Help: "Webhook invocations by result.",
		}, []string{"result"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tax_schema_cache_hits_total",
			Help: "Total tax schema cache hits observed.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tax_schema_cache_misses_total",
			Help: "Total tax schema cache misses observed.",
		}),
		nextRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gst_report_next_run_timestamp_seconds",
			Help: "Unix time of the armed single-shot wake-up.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpDuration,
		m.attemptsTotal,
		m.dispatchDuration,
		m.mailFailures,
		m.webhookCalls,
		m.cacheHits,
		m.cacheMisses,
		m.nextRun,
	)

	return m
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Middleware records request counts and durations labelled by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if m == nil {
			return
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Attempt(source, outcome string) {
	if m == nil {
		return
	}
	m.attemptsTotal.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) Dispatch(duration time.Duration) {
	if m == nil {
		return
	}
	m.dispatchDuration.Observe(duration.Seconds())
}

func (m *Metrics) MailFailure() {
	if m == nil {
		return
	}
	m.mailFailures.Inc()
}

func (m *Metrics) Webhook(result string) {
	if m == nil {
		return
	}
	m.webhookCalls.WithLabelValues(result).Inc()
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

func (m *Metrics) NextRun(at time.Time) {
	if m == nil {
		return
	}
	if at.IsZero() {
		m.nextRun.Set(0)
		return
	}
	m.nextRun.Set(float64(at.Unix()))
}
