package metrics

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Ticks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aibook_ticks_total",
		Help: "Total simulation ticks executed",
	})
	TickErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aibook_tick_errors_total",
		Help: "Total ticks that ended in a recovered error",
	})
	TickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "aibook_tick_duration_seconds",
		Help:    "Tick duration seconds",
		Buckets: prometheus.DefBuckets,
	})
	ProviderCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aibook_provider_calls_total",
		Help: "Total action provider calls",
	}, []string{"provider", "kind"})
	ProviderErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aibook_provider_errors_total",
		Help: "Total action provider failures recovered with fallbacks",
	}, []string{"provider", "kind"})
	FallbackActivations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aibook_fallback_activations_total",
		Help: "Times the budget governor forced the offline provider",
	})
	Intents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aibook_intents_total",
		Help: "Total user intents dispatched",
	}, []string{"intent"})
	IntentErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aibook_intent_errors_total",
		Help: "Total user intents that failed",
	}, []string{"intent"})
)

func init() {
	prometheus.MustRegister(Ticks, TickErrors, TickDuration, ProviderCalls, ProviderErrors, FallbackActivations, Intents, IntentErrors)
}

// StartServer starts a metrics HTTP server on addr (e.g., ":9090").
func StartServer(addr string) {
	if addr == "" {
		addr = os.Getenv("METRICS_ADDR")
	}
	if addr == "" {
		return
	}
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	go func() { _ = http.ListenAndServe(addr, nil) }()
}

// ObserveTickDuration records one tick's duration.
func ObserveTickDuration(start time.Time) {
	TickDuration.Observe(time.Since(start).Seconds())
}

// IncProviderCall increments the call counter for a provider and call kind.
func IncProviderCall(provider, kind string) { ProviderCalls.WithLabelValues(provider, kind).Inc() }

// IncProviderError increments the recovered-failure counter.
func IncProviderError(provider, kind string) { ProviderErrors.WithLabelValues(provider, kind).Inc() }

// IncIntent increments the user-intent counter.
func IncIntent(intent string) { Intents.WithLabelValues(intent).Inc() }

// IncIntentError increments the user-intent failure counter.
func IncIntentError(intent string) { IntentErrors.WithLabelValues(intent).Inc() }
