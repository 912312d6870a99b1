package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-enrollment-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP traffic, cache
// lookups and the enrollment engine.
type MetricsService struct {
	registry            *prometheus.Registry
	handler             http.Handler
	requestDuration     *prometheus.HistogramVec
	requestTotal        *prometheus.CounterVec
	cacheLatency        prometheus.Observer
	cacheWrite          prometheus.Observer
	cacheHitRatio       prometheus.Gauge
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
	enrollmentOutcomes  *prometheus.CounterVec
	waitlistPromotions  prometheus.Counter
	changeDecisions     *prometheus.CounterVec
	changeOverdue       prometheus.Counter
	allocationDuration  prometheus.Histogram
	notificationsFailed prometheus.Counter

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers the collectors on a private registry.
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	enrollmentOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrollment_outcomes_total",
		Help: "Enrollment request transitions by resulting status",
	}, []string{"status"})

	waitlistPromotions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "waitlist_promotions_total",
		Help: "Waitlisted requests promoted into a seat",
	})

	changeDecisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_change_decisions_total",
		Help: "Schedule change transitions by resulting status",
	}, []string{"status"})

	changeOverdue := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "schedule_change_overdue_total",
		Help: "Schedule changes flagged overdue",
	})

	allocationDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "allocation_duration_seconds",
		Help:    "Duration of allocation batches",
		Buckets: prometheus.DefBuckets,
	})

	notificationsFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notification_failures_total",
		Help: "Event deliveries that failed on a sink",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		enrollmentOutcomes, waitlistPromotions, changeDecisions, changeOverdue, allocationDuration, notificationsFailed, goroutines)

	return &MetricsService{
		registry:            registry,
		handler:             promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:     requestDuration,
		requestTotal:        requestTotal,
		cacheLatency:        cacheLatency,
		cacheWrite:          cacheWrite,
		cacheHitRatio:       cacheHitRatio,
		cacheHits:           cacheHits,
		cacheMisses:         cacheMisses,
		enrollmentOutcomes:  enrollmentOutcomes,
		waitlistPromotions:  waitlistPromotions,
		changeDecisions:     changeDecisions,
		changeOverdue:       changeOverdue,
		allocationDuration:  allocationDuration,
		notificationsFailed: notificationsFailed,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordEnrollmentOutcome counts an enrollment transition.
func (m *MetricsService) RecordEnrollmentOutcome(status models.EnrollmentRequestStatus) {
	if m == nil {
		return
	}
	m.enrollmentOutcomes.WithLabelValues(string(status)).Inc()
}

// RecordPromotion counts a waitlist promotion.
func (m *MetricsService) RecordPromotion() {
	if m == nil {
		return
	}
	m.waitlistPromotions.Inc()
}

// RecordChangeDecision counts a schedule change transition.
func (m *MetricsService) RecordChangeDecision(status models.ScheduleChangeStatus) {
	if m == nil {
		return
	}
	m.changeDecisions.WithLabelValues(string(status)).Inc()
}

// RecordOverdue counts schedule changes newly flagged overdue.
func (m *MetricsService) RecordOverdue(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.changeOverdue.Add(float64(n))
}

// ObserveAllocation records how long an allocation batch took.
func (m *MetricsService) ObserveAllocation(duration time.Duration) {
	if m == nil {
		return
	}
	m.allocationDuration.Observe(duration.Seconds())
}

// RecordNotificationFailure counts a failed event delivery.
func (m *MetricsService) RecordNotificationFailure() {
	if m == nil {
		return
	}
	m.notificationsFailed.Inc()
}
