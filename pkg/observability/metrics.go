package observability

import (
	"context"
	"strconv"

	"github.com/aretw0/troupe/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline collectors.
type Metrics struct {
	StageRuns     *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	StageErrors   *prometheus.CounterVec
	Degrades      *prometheus.CounterVec
	Retries       *prometheus.CounterVec
	Turns         prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		StageRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "troupe_stage_runs_total",
			Help: "Total number of stage executions",
		}, []string{"stage"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "troupe_stage_duration_seconds",
			Help:    "Duration of stage executions",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 9),
		}, []string{"stage"}),
		StageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "troupe_stage_errors_total",
			Help: "Stage executions that reported an error",
		}, []string{"stage"}),
		Degrades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "troupe_stage_degrades_total",
			Help: "Stage fallbacks to the rule-based or deterministic path",
		}, []string{"stage"}),
		Retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "troupe_format_retries_total",
			Help: "Routing decisions after a failed format gate",
		}, []string{"forced"}),
		Turns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "troupe_turns_total",
			Help: "Completed turns",
		}),
	}

	for _, c := range []prometheus.Collector{m.StageRuns, m.StageDuration, m.StageErrors, m.Degrades, m.Retries, m.Turns} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks that record into the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStageLeave: func(_ context.Context, t *domain.StageTiming) {
			stage := string(t.Stage)
			m.StageRuns.WithLabelValues(stage).Inc()
			m.StageDuration.WithLabelValues(stage).Observe(t.Duration.Seconds())
			if t.Error != "" {
				m.StageErrors.WithLabelValues(stage).Inc()
			}
		},
		OnDegrade: func(_ context.Context, e *domain.DegradeEvent) {
			m.Degrades.WithLabelValues(string(e.Stage)).Inc()
		},
		OnRetry: func(_ context.Context, e *domain.RetryEvent) {
			m.Retries.WithLabelValues(strconv.FormatBool(e.Forced)).Inc()
		},
		OnComplete: func(context.Context, *domain.GraphState) {
			m.Turns.Inc()
		},
	}
}
