package troupe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/troupe/internal/orchestrator"
	"github.com/aretw0/troupe/internal/stages"
	"github.com/aretw0/troupe/pkg/adapters/memory"
	"github.com/aretw0/troupe/pkg/adapters/prompt"
	"github.com/aretw0/troupe/pkg/domain"
	"github.com/aretw0/troupe/pkg/ports"
	"github.com/aretw0/troupe/pkg/session"
)

// streamBuffer is larger than the longest possible event sequence of a run
// (six stages, two extra fan-out/evaluate rounds, one error event), so the
// run goroutine never blocks on a consumer that stopped reading.
const streamBuffer = 16

// Engine is the high-level entry point for the troupe library.
// It wires the six stages into the orchestrator and exposes blocking,
// streaming and session-backed turns.
type Engine struct {
	orchestrator *orchestrator.Orchestrator
	sessions     *session.Manager

	prompts        ports.PromptRenderer
	table          ports.TableSource
	models         map[domain.StageName]stages.Capability
	defaultModel   *stages.Capability
	store          ports.SessionStore
	locker         ports.DistributedLocker
	lockTTL        time.Duration
	maxConcurrency int
	hooks          domain.LifecycleHooks
	logger         *slog.Logger
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithPromptRenderer replaces the built-in prompt templates.
func WithPromptRenderer(r ports.PromptRenderer) Option {
	return func(e *Engine) {
		e.prompts = r
	}
}

// WithTableSource attaches a read-only table snapshot to every parsed input.
func WithTableSource(t ports.TableSource) Option {
	return func(e *Engine) {
		e.table = t
	}
}

// WithModel configures the model of one stage. A nil model pins the stage
// to its rule-based path even when a default model is set.
// Parser and Evaluator never call a model; configuring them is ignored.
func WithModel(stage domain.StageName, model ports.Model, opts ports.GenerateOptions) Option {
	return func(e *Engine) {
		e.models[stage] = stages.Capability{Model: model, Options: opts}
	}
}

// WithDefaultModel configures the model of every stage that has none of its own.
func WithDefaultModel(model ports.Model, opts ports.GenerateOptions) Option {
	return func(e *Engine) {
		e.defaultModel = &stages.Capability{Model: model, Options: opts}
	}
}

// WithSessionStore sets the store backing RunSession (default: in-memory).
func WithSessionStore(store ports.SessionStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLocker serializes turns of one session across replicas.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(e *Engine) {
		e.locker = locker
		e.lockTTL = ttl
	}
}

// WithMaxConcurrency bounds the number of concurrent persona invocations.
// Zero or less means unbounded.
func WithMaxConcurrency(n int) Option {
	return func(e *Engine) {
		e.maxConcurrency = n
	}
}

// New initializes a troupe Engine. Without options every stage runs its
// rule-based path and sessions live in memory.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{
		models: make(map[domain.StageName]stages.Capability),
	}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if eng.prompts == nil {
		eng.prompts = prompt.NewRenderer(prompt.Defaults()...)
	}
	if eng.store == nil {
		eng.store = memory.NewStore()
	}

	deps := stages.Deps{
		Prompts: eng.prompts,
		Table:   eng.table,
		Logger:  eng.logger,
		Hooks:   eng.hooks,
	}
	orch, err := orchestrator.New(orchestrator.Pipeline{
		Parser:    stages.NewParser(deps),
		Narrator:  stages.NewNarrator(deps, eng.capability(domain.StageNarrator)),
		Director:  stages.NewDirector(deps, eng.capability(domain.StageDirector)),
		Persona:   stages.NewPersonaFanOut(deps, eng.capability(domain.StagePersona), eng.maxConcurrency),
		Evaluator: stages.NewEvaluator(deps),
		Composer:  stages.NewComposer(deps, eng.capability(domain.StageComposer)),
	},
		orchestrator.WithLifecycleHooks(eng.hooks),
		orchestrator.WithLogger(eng.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}
	eng.orchestrator = orch

	sessionOpts := []session.Option{session.WithLogger(eng.logger)}
	if eng.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(eng.locker), session.WithLockTTL(eng.lockTTL))
	}
	eng.sessions = session.NewManager(eng.store, sessionOpts...)

	return eng, nil
}

func (e *Engine) capability(stage domain.StageName) stages.Capability {
	if c, ok := e.models[stage]; ok {
		return c
	}
	if e.defaultModel != nil {
		return *e.defaultModel
	}
	return stages.Capability{}
}

// Execute runs one turn and returns the final state.
// The error is non-nil only for defects that abort the run.
func (e *Engine) Execute(ctx context.Context, messages []domain.RawMessage) (domain.GraphState, error) {
	return e.execute(ctx, messages, nil, nil)
}

// Run runs one turn and returns its final output.
func (e *Engine) Run(ctx context.Context, messages []domain.RawMessage) (string, error) {
	final, err := e.Execute(ctx, messages)
	if err != nil {
		return "", err
	}
	return final.FinalOutput, nil
}

// Stream runs one turn in the background and delivers a StageEvent for
// every completed stage, in completion order. The channel is closed after
// the Composer event, or after an event carrying Err when a defect aborts
// the run.
func (e *Engine) Stream(ctx context.Context, messages []domain.RawMessage) (<-chan domain.StageEvent, error) {
	events := make(chan domain.StageEvent, streamBuffer)
	go func() {
		defer close(events)
		_, _ = e.streamRun(ctx, messages, nil, events)
	}()
	return events, nil
}

// RunSession runs one turn seeded with the world state stored for the
// session and persists the resulting world. Turns of one session are
// serialized.
func (e *Engine) RunSession(ctx context.Context, sessionID string, messages []domain.RawMessage) (string, error) {
	if sessionID == "" {
		return "", fmt.Errorf("session id is required")
	}
	var final domain.GraphState
	_, err := e.sessions.Turn(ctx, sessionID, func(ctx context.Context, world *domain.WorldState) (*domain.WorldState, error) {
		var err error
		final, err = e.execute(ctx, messages, world, nil)
		if err != nil {
			return nil, err
		}
		return final.WorldState, nil
	})
	if err != nil {
		return "", err
	}
	return final.FinalOutput, nil
}

// StreamSession is Stream over a session: the run is seeded from and
// persisted to the session store. A failure to persist is delivered as a
// final event carrying Err.
func (e *Engine) StreamSession(ctx context.Context, sessionID string, messages []domain.RawMessage) (<-chan domain.StageEvent, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	events := make(chan domain.StageEvent, streamBuffer)
	go func() {
		defer close(events)
		delivered := false
		_, err := e.sessions.Turn(ctx, sessionID, func(ctx context.Context, world *domain.WorldState) (*domain.WorldState, error) {
			final, err := e.streamRun(ctx, messages, world, events)
			if err != nil {
				delivered = true
				return nil, err
			}
			return final.WorldState, nil
		})
		if err != nil && !delivered {
			e.logger.Error("Session turn failed", "session_id", sessionID, "err", err)
			events <- domain.StageEvent{Err: err, Timestamp: time.Now()}
		}
	}()
	return events, nil
}

// streamRun runs a turn forwarding every event to out. A defect is
// delivered as a final event carrying Err.
func (e *Engine) streamRun(ctx context.Context, messages []domain.RawMessage, world *domain.WorldState, out chan<- domain.StageEvent) (domain.GraphState, error) {
	final, err := e.execute(ctx, messages, world, func(ev domain.StageEvent) {
		out <- ev
	})
	if err != nil {
		out <- domain.StageEvent{Err: err, Timestamp: time.Now()}
	}
	return final, err
}

func (e *Engine) execute(ctx context.Context, messages []domain.RawMessage, world *domain.WorldState, observe orchestrator.Observer) (domain.GraphState, error) {
	return e.orchestrator.Run(ctx, domain.NewGraphState(messages, world), observe)
}

// Transitions returns the orchestration state machine for introspection.
func (e *Engine) Transitions() []domain.Transition {
	return orchestrator.Transitions()
}

// Sessions returns the session manager backing RunSession.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}
