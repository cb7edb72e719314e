package orchestrator

import (
	"github.com/aretw0/troupe/internal/state"
	"github.com/aretw0/troupe/pkg/domain"
)

// Pipeline states.
const (
	StateParse    domain.PipelineState = "parse"
	StateNarrate  domain.PipelineState = "narrate"
	StateDirect   domain.PipelineState = "direct"
	StateFanOut   domain.PipelineState = "fanout"
	StateEvaluate domain.PipelineState = "evaluate"
	StateCompose  domain.PipelineState = "compose"
	StateDone     domain.PipelineState = "done"
)

// Guard names.
const (
	GuardAlways         = "always"
	GuardFormatPassed   = "format_passed"
	GuardRetryAvailable = "retry_available"
	GuardRetryExhausted = "retry_exhausted"
)

// Effect names.
const (
	EffectClearOutputs = "clear_outputs"
	EffectForcePass    = "force_pass"
)

// transitions is evaluated in order; the first edge whose guard holds wins.
var transitions = []domain.Transition{
	{From: StateParse, To: StateNarrate, Guard: GuardAlways},
	{From: StateNarrate, To: StateDirect, Guard: GuardAlways},
	{From: StateDirect, To: StateFanOut, Guard: GuardAlways},
	{From: StateFanOut, To: StateEvaluate, Guard: GuardAlways},
	{From: StateEvaluate, To: StateCompose, Guard: GuardFormatPassed},
	{From: StateEvaluate, To: StateFanOut, Guard: GuardRetryAvailable, Effect: EffectClearOutputs},
	{From: StateEvaluate, To: StateCompose, Guard: GuardRetryExhausted, Effect: EffectForcePass},
	{From: StateCompose, To: StateDone, Guard: GuardAlways},
}

var guards = map[string]func(s domain.GraphState) bool{
	GuardAlways:       func(domain.GraphState) bool { return true },
	GuardFormatPassed: func(s domain.GraphState) bool { return s.FormatCheckPassed },
	GuardRetryAvailable: func(s domain.GraphState) bool {
		return !s.FormatCheckPassed && s.RetryCount < domain.MaxRetries
	},
	GuardRetryExhausted: func(s domain.GraphState) bool {
		return !s.FormatCheckPassed && s.RetryCount >= domain.MaxRetries
	},
}

var effects = map[string]func(st *state.Store) error{
	EffectClearOutputs: func(st *state.Store) error {
		st.ClearOutputs()
		return nil
	},
	EffectForcePass: func(st *state.Store) error {
		return st.Apply(domain.Update{domain.FieldFormatCheckPassed: true})
	},
}

// stageOf names the stage run in each non-terminal state.
var stageOf = map[domain.PipelineState]domain.StageName{
	StateParse:    domain.StageParser,
	StateNarrate:  domain.StageNarrator,
	StateDirect:   domain.StageDirector,
	StateFanOut:   domain.StagePersona,
	StateEvaluate: domain.StageEvaluator,
	StateCompose:  domain.StageComposer,
}

// Transitions returns a copy of the transition table.
func Transitions() []domain.Transition {
	return append([]domain.Transition(nil), transitions...)
}

// StageOf returns the stage run in a state; terminal states have none.
func StageOf(s domain.PipelineState) (domain.StageName, bool) {
	name, ok := stageOf[s]
	return name, ok
}

// next picks the first transition out of from whose guard holds.
func next(from domain.PipelineState, s domain.GraphState) (domain.Transition, bool) {
	for _, t := range transitions {
		if t.From == from && guards[t.Guard](s) {
			return t, true
		}
	}
	return domain.Transition{}, false
}
