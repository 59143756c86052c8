package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricsNamespaceConstant              = "stepprof"
	fetchOutcomeSuccessConstant           = "success"
	fetchOutcomeFailureConstant           = "failure"
	cacheOutcomeHitConstant               = "hit"
	cacheOutcomeMissConstant              = "miss"
	registryNotConfiguredMessageConstant  = "prometheus registry not configured"
	collectorRegistrationTemplateConstant = "register collector: %w"
)

// ErrRegistryNotConfigured indicates the recorder was built without a registry.
var ErrRegistryNotConfigured = errors.New(registryNotConfiguredMessageConstant)

// Recorder receives profiling observations.
type Recorder interface {
	ObserveFetch(success bool, duration time.Duration)
	ObserveCacheLookup(hit bool)
	ObserveStep(workflowRole string, seconds float64)
	ObserveLoops(count int)
	ObserveProfile(duration time.Duration)
}

// NopRecorder discards observations.
type NopRecorder struct{}

func (NopRecorder) ObserveFetch(bool, time.Duration) {}
func (NopRecorder) ObserveCacheLookup(bool)           {}
func (NopRecorder) ObserveStep(string, float64)       {}
func (NopRecorder) ObserveLoops(int)                  {}
func (NopRecorder) ObserveProfile(time.Duration)      {}

// PrometheusRecorder reports profiling metrics using Prometheus primitives.
type PrometheusRecorder struct {
	fetches       *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	cacheLookups  *prometheus.CounterVec
	stepDurations *prometheus.HistogramVec
	loops         prometheus.Counter
	profiles      prometheus.Histogram
}

// NewPrometheusRecorder registers the profiler collectors on the registry.
func NewPrometheusRecorder(registry prometheus.Registerer) (*PrometheusRecorder, error) {
	if registry == nil {
		return nil, ErrRegistryNotConfigured
	}

	recorder := &PrometheusRecorder{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespaceConstant,
			Name:      "history_fetches_total",
			Help:      "Execution history fetches by outcome",
		}, []string{"outcome"}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespaceConstant,
			Name:      "history_fetch_duration_seconds",
			Help:      "Execution history fetch latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespaceConstant,
			Name:      "history_cache_lookups_total",
			Help:      "History cache lookups by outcome",
		}, []string{"outcome"}),
		stepDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespaceConstant,
			Name:      "step_duration_seconds",
			Help:      "Reconstructed step durations in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"role"}),
		loops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespaceConstant,
			Name:      "loops_detected_total",
			Help:      "Loops detected across profiled executions",
		}),
		profiles: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespaceConstant,
			Name:      "profile_duration_seconds",
			Help:      "End-to-end profiling latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	collectors := []prometheus.Collector{
		recorder.fetches,
		recorder.fetchDuration,
		recorder.cacheLookups,
		recorder.stepDurations,
		recorder.loops,
		recorder.profiles,
	}
	for _, collector := range collectors {
		if registrationError := registry.Register(collector); registrationError != nil {
			return nil, fmt.Errorf(collectorRegistrationTemplateConstant, registrationError)
		}
	}
	return recorder, nil
}

// ObserveFetch counts one history fetch and its latency.
func (recorder *PrometheusRecorder) ObserveFetch(success bool, duration time.Duration) {
	outcome := fetchOutcomeSuccessConstant
	if !success {
		outcome = fetchOutcomeFailureConstant
	}
	recorder.fetches.WithLabelValues(outcome).Inc()
	recorder.fetchDuration.Observe(duration.Seconds())
}

// ObserveCacheLookup counts one cache lookup.
func (recorder *PrometheusRecorder) ObserveCacheLookup(hit bool) {
	outcome := cacheOutcomeMissConstant
	if hit {
		outcome = cacheOutcomeHitConstant
	}
	recorder.cacheLookups.WithLabelValues(outcome).Inc()
}

// ObserveStep records one step duration. Negative durations are clamped to zero.
func (recorder *PrometheusRecorder) ObserveStep(workflowRole string, seconds float64) {
	if seconds < 0 {
		seconds = 0
	}
	recorder.stepDurations.WithLabelValues(workflowRole).Observe(seconds)
}

// ObserveLoops adds detected loops.
func (recorder *PrometheusRecorder) ObserveLoops(count int) {
	if count <= 0 {
		return
	}
	recorder.loops.Add(float64(count))
}

// ObserveProfile records the end-to-end profiling latency.
func (recorder *PrometheusRecorder) ObserveProfile(duration time.Duration) {
	recorder.profiles.Observe(duration.Seconds())
}

// Handler exposes the gatherer in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
