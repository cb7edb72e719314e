package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/troupe/pkg/domain"
)

// LoggingHooks logs the pipeline lifecycle.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStageEnter: func(_ context.Context, stage domain.StageName) {
			logger.Debug("stage_enter", "stage", string(stage))
		},
		OnStageLeave: func(_ context.Context, t *domain.StageTiming) {
			logger.Debug("stage_leave",
				"stage", string(t.Stage),
				"attempt", t.Attempt,
				"duration", t.Duration,
				"reported_error", t.Error,
			)
		},
		OnRetry: func(_ context.Context, e *domain.RetryEvent) {
			logger.Info("format_retry", "retry_count", e.RetryCount, "forced", e.Forced)
		},
		OnComplete: func(_ context.Context, s *domain.GraphState) {
			logger.Info("turn_complete",
				"active_characters", len(s.ActiveCharacters),
				"retry_count", s.RetryCount,
			)
		},
	}
}

// Combine returns hooks that call every non-nil hook of each set, in order.
func Combine(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range sets {
		if h.OnStageEnter != nil {
			out.OnStageEnter = chain(out.OnStageEnter, h.OnStageEnter)
		}
		if h.OnStageLeave != nil {
			out.OnStageLeave = chain(out.OnStageLeave, h.OnStageLeave)
		}
		if h.OnDegrade != nil {
			out.OnDegrade = chain(out.OnDegrade, h.OnDegrade)
		}
		if h.OnRetry != nil {
			out.OnRetry = chain(out.OnRetry, h.OnRetry)
		}
		if h.OnComplete != nil {
			out.OnComplete = chain(out.OnComplete, h.OnComplete)
		}
	}
	return out
}

func chain[T any](first, next func(context.Context, T)) func(context.Context, T) {
	if first == nil {
		return next
	}
	return func(ctx context.Context, v T) {
		first(ctx, v)
		next(ctx, v)
	}
}
