package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/troupe/internal/logging"
	"github.com/aretw0/troupe/internal/stages"
	"github.com/aretw0/troupe/internal/state"
	"github.com/aretw0/troupe/pkg/domain"
)

// Pipeline holds one stage per non-terminal state.
type Pipeline struct {
	Parser    stages.Stage
	Narrator  stages.Stage
	Director  stages.Stage
	Persona   stages.Stage
	Evaluator stages.Stage
	Composer  stages.Stage
}

func (p Pipeline) stage(s domain.PipelineState) stages.Stage {
	switch s {
	case StateParse:
		return p.Parser
	case StateNarrate:
		return p.Narrator
	case StateDirect:
		return p.Director
	case StateFanOut:
		return p.Persona
	case StateEvaluate:
		return p.Evaluator
	case StateCompose:
		return p.Composer
	}
	return nil
}

// Observer receives every stage event in completion order.
type Observer func(domain.StageEvent)

// Orchestrator runs turns through the pipeline. It is safe for concurrent
// use; each Run owns its own state store.
type Orchestrator struct {
	pipeline Pipeline
	table    state.Table
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(o *Orchestrator) {
		o.hooks = hooks
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMergeTable overrides the merge policy table.
func WithMergeTable(table state.Table) Option {
	return func(o *Orchestrator) {
		o.table = table
	}
}

// New creates an orchestrator. Every stage of the pipeline is required.
func New(p Pipeline, opts ...Option) (*Orchestrator, error) {
	for _, s := range []domain.PipelineState{StateParse, StateNarrate, StateDirect, StateFanOut, StateEvaluate, StateCompose} {
		if p.stage(s) == nil {
			return nil, fmt.Errorf("pipeline has no stage for state %q", s)
		}
	}
	o := &Orchestrator{
		pipeline: p,
		table:    state.DefaultTable,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Run drives the initial state to completion and returns the final state.
// observe may be nil. The returned error is non-nil only for defects: a
// stage returning an error, an update violating the merge table, or a state
// without a matching transition.
func (o *Orchestrator) Run(ctx context.Context, initial domain.GraphState, observe Observer) (domain.GraphState, error) {
	store := state.NewStore(initial, o.table)
	attempts := make(map[domain.StageName]int)

	current := StateParse
	for current != StateDone {
		stage := o.pipeline.stage(current)
		name := stage.Name()
		attempts[name]++

		update, err := o.execute(ctx, stage, store.Snapshot(), attempts[name])
		if err != nil {
			return store.State(), fmt.Errorf("stage %s: %w", name, err)
		}
		if err := store.Apply(update); err != nil {
			return store.State(), fmt.Errorf("stage %s: %w", name, err)
		}
		if msg := update.ErrorText(); msg != "" {
			o.logger.Warn("Stage reported error", "stage", string(name), "err", msg)
		}
		if observe != nil {
			observe(domain.StageEvent{Stage: name, Update: update, Attempt: attempts[name], Timestamp: time.Now()})
		}

		t, ok := next(current, store.State())
		if !ok {
			return store.State(), fmt.Errorf("no transition out of state %q", current)
		}
		if err := o.applyEffect(ctx, t, store); err != nil {
			return store.State(), err
		}
		o.logger.Debug("Transition", "from", string(t.From), "to", string(t.To), "guard", t.Guard)
		current = t.To
	}

	final := store.State()
	if o.hooks.OnComplete != nil {
		o.hooks.OnComplete(ctx, &final)
	}
	return final, nil
}

func (o *Orchestrator) execute(ctx context.Context, stage stages.Stage, snapshot domain.GraphState, attempt int) (domain.Update, error) {
	name := stage.Name()
	if o.hooks.OnStageEnter != nil {
		o.hooks.OnStageEnter(ctx, name)
	}
	start := time.Now()
	update, err := stage.Execute(ctx, snapshot)
	if o.hooks.OnStageLeave != nil {
		timing := &domain.StageTiming{Stage: name, Attempt: attempt, Duration: time.Since(start)}
		if err != nil {
			timing.Error = err.Error()
		} else {
			timing.Error = update.ErrorText()
		}
		o.hooks.OnStageLeave(ctx, timing)
	}
	return update, err
}

func (o *Orchestrator) applyEffect(ctx context.Context, t domain.Transition, store *state.Store) error {
	if t.Effect == "" {
		return nil
	}
	if err := effects[t.Effect](store); err != nil {
		return fmt.Errorf("effect %s: %w", t.Effect, err)
	}
	s := store.State()
	forced := t.Effect == EffectForcePass
	if forced {
		o.logger.Warn("Retry bound reached, forcing format pass", "retry_count", s.RetryCount)
	} else {
		o.logger.Info("Format gate failed, regenerating", "retry_count", s.RetryCount)
	}
	if o.hooks.OnRetry != nil {
		o.hooks.OnRetry(ctx, &domain.RetryEvent{RetryCount: s.RetryCount, Forced: forced})
	}
	return nil
}
