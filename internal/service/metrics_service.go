package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/campus-hub/clearance-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the
// clearance workflow. All methods tolerate a nil receiver so metrics can be
// disabled by configuration.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	decisionsTotal  *prometheus.CounterVec
	phaseAdvanced   *prometheus.CounterVec
	certificates    prometheus.Counter
	requestsOpened  prometheus.Counter
}

// NewMetricsService registers the collectors on a fresh registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	decisionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "clearance_decisions_total",
		Help: "Approval decisions recorded, by workflow role and verdict",
	}, []string{"role", "status"})

	phaseAdvanced := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "clearance_phase_advanced_total",
		Help: "Requests advanced to a later workflow phase",
	}, []string{"phase"})

	certificates := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clearance_certificates_issued_total",
		Help: "Certificates generated and stored",
	})

	requestsOpened := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clearance_requests_opened_total",
		Help: "Clearance requests submitted",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheHits, cacheMisses,
		decisionsTotal, phaseAdvanced, certificates, requestsOpened, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		decisionsTotal:  decisionsTotal,
		phaseAdvanced:   phaseAdvanced,
		certificates:    certificates,
		requestsOpened:  requestsOpened,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache lookup outcome.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// RecordDecision counts a recorded approval decision.
func (m *MetricsService) RecordDecision(role models.GeneralRole, status models.ApprovalStatus) {
	if m == nil {
		return
	}
	m.decisionsTotal.WithLabelValues(string(role), string(status)).Inc()
}

// RecordPhaseAdvance counts a request reaching a later phase.
func (m *MetricsService) RecordPhaseAdvance(phase models.Phase) {
	if m == nil {
		return
	}
	m.phaseAdvanced.WithLabelValues(fmt.Sprintf("%d", phase)).Inc()
}

// RecordCertificateIssued counts a generated certificate.
func (m *MetricsService) RecordCertificateIssued() {
	if m == nil {
		return
	}
	m.certificates.Inc()
}

// RecordRequestOpened counts a submitted clearance request.
func (m *MetricsService) RecordRequestOpened() {
	if m == nil {
		return
	}
	m.requestsOpened.Inc()
}
