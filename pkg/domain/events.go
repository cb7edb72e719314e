package domain

import (
	"context"
	"time"
)

// StageEvent is emitted after a stage completes and its update has been merged.
type StageEvent struct {
	Stage     StageName `json:"stage"`
	Update    Update    `json:"update"`
	Attempt   int       `json:"attempt"`
	Timestamp time.Time `json:"timestamp"`

	// Err is set only on the final event of a run aborted by a defect.
	Err error `json:"-"`
}

// StageTiming describes one stage execution for observability hooks.
type StageTiming struct {
	Stage    StageName
	Attempt  int
	Duration time.Duration
	Error    string
}

// DegradeEvent reports a stage falling back to its rule-based or deterministic path.
type DegradeEvent struct {
	Stage  StageName
	Reason string
	Err    error
}

// RetryEvent reports a routing decision taken after a failed format gate.
type RetryEvent struct {
	RetryCount int
	Forced     bool
}

// LifecycleHooks defines callbacks for pipeline observability.
// Any hook may be nil.
type LifecycleHooks struct {
	OnStageEnter func(context.Context, StageName)
	OnStageLeave func(context.Context, *StageTiming)
	OnDegrade    func(context.Context, *DegradeEvent)
	OnRetry      func(context.Context, *RetryEvent)
	OnComplete   func(context.Context, *GraphState)
}
