// Package metrics exposes prometheus instruments for translations,
// fallbacks, status checks and the coordinator state.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeCached  = "cached"
)

// Metrics groups the instruments registered on one registry.
type Metrics struct {
	Translations     *prometheus.CounterVec
	Fallbacks        *prometheus.CounterVec
	Attempts         *prometheus.CounterVec
	AttemptDuration  *prometheus.HistogramVec
	StatusChecks     *prometheus.CounterVec
	CoordinatorState *prometheus.GaugeVec
	RateLimited      prometheus.Counter
}

// New registers the instruments on reg. A nil reg uses a private registry,
// which keeps tests independent.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		Translations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "glosa_translations_total",
				Help: "Translation requests by backend and outcome",
			},
			[]string{"backend", "outcome"},
		),
		Fallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "glosa_fallbacks_total",
				Help: "Translations that went to the fallback model",
			},
			[]string{"backend"},
		),
		Attempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "glosa_model_attempts_total",
				Help: "Model attempts by model id and outcome",
			},
			[]string{"model", "outcome"},
		),
		AttemptDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "glosa_model_attempt_duration_seconds",
				Help:    "Duration of single model attempts in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"model"},
		),
		StatusChecks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "glosa_status_checks_total",
				Help: "Backend and model status checks by result",
			},
			[]string{"backend", "status"},
		),
		CoordinatorState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "glosa_coordinator_state",
				Help: "1 for the coordinator's current state, 0 otherwise",
			},
			[]string{"state"},
		),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Name: "glosa_rate_limited_total",
			Help: "HTTP requests rejected by the rate limiter",
		}),
	}
}

// ObserveAttempt records one model attempt.
func (m *Metrics) ObserveAttempt(model string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.Attempts.WithLabelValues(model, outcome).Inc()
	m.AttemptDuration.WithLabelValues(model).Observe(d.Seconds())
}

// ObserveTranslation records one finished translation request.
func (m *Metrics) ObserveTranslation(backend, outcome string, usedFallback bool) {
	if m == nil {
		return
	}
	m.Translations.WithLabelValues(backend, outcome).Inc()
	if usedFallback {
		m.Fallbacks.WithLabelValues(backend).Inc()
	}
}

// ObserveStatus records one status check.
func (m *Metrics) ObserveStatus(backend, status string) {
	if m == nil {
		return
	}
	m.StatusChecks.WithLabelValues(backend, status).Inc()
}

// ObserveRateLimited records one request rejected by the rate limiter.
func (m *Metrics) ObserveRateLimited() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}

// SetState marks state as the current coordinator state among all.
func (m *Metrics) SetState(state string, all []string) {
	if m == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		m.CoordinatorState.WithLabelValues(s).Set(v)
	}
}
