package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/troupe"
	"github.com/aretw0/troupe/internal/config"
	"github.com/aretw0/troupe/pkg/adapters/file"
	"github.com/aretw0/troupe/pkg/adapters/memory"
	"github.com/aretw0/troupe/pkg/adapters/model"
	"github.com/aretw0/troupe/pkg/adapters/process"
	"github.com/aretw0/troupe/pkg/adapters/prompt"
	"github.com/aretw0/troupe/pkg/adapters/redis"
	"github.com/aretw0/troupe/pkg/adapters/table"
	"github.com/aretw0/troupe/pkg/domain"
	"github.com/aretw0/troupe/pkg/observability"
	"github.com/aretw0/troupe/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// modelStages are the stages that may call a model.
var modelStages = []domain.StageName{
	domain.StageNarrator,
	domain.StageDirector,
	domain.StagePersona,
	domain.StageComposer,
}

// Stack is an Engine together with the adapters built for it.
type Stack struct {
	Engine    *troupe.Engine
	Prompts   *prompt.Renderer
	Templates *prompt.Directory // nil when the built-in templates are used
	Store     ports.SessionStore
	Metrics   *prometheus.Registry // nil when metrics are disabled

	closers []func() error
}

// Close releases the adapters that hold connections.
func (s *Stack) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

// CreateEngine builds an Engine and its adapters from the configuration.
func CreateEngine(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Stack, error) {
	s := &Stack{}
	engineOpts := []troupe.Option{
		troupe.WithLogger(logger),
		troupe.WithMaxConcurrency(cfg.FanOutLimit),
	}

	// 1. Prompt templates
	if cfg.Templates != "" {
		dir, err := prompt.Open(cfg.Templates)
		if err != nil {
			return nil, err
		}
		r, err := dir.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load templates: %w", err)
		}
		s.Templates, s.Prompts = dir, r
	} else {
		s.Prompts = prompt.NewRenderer(prompt.Defaults()...)
	}
	engineOpts = append(engineOpts, troupe.WithPromptRenderer(s.Prompts))

	// 2. Models
	modelOpts, err := createModels(cfg, s.Prompts, logger)
	if err != nil {
		return nil, err
	}
	engineOpts = append(engineOpts, modelOpts...)

	// 3. Table source
	switch cfg.Table.Kind {
	case "file":
		engineOpts = append(engineOpts, troupe.WithTableSource(table.NewFile(cfg.Table.Path)))
	case "sqlite":
		db, err := table.OpenSQLite(cfg.Table.Path, cfg.Table.Tables...)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db.Close)
		engineOpts = append(engineOpts, troupe.WithTableSource(db))
	}

	// 4. Sessions
	switch cfg.Session.Store {
	case "file":
		s.Store = file.New(cfg.Session.Path)
	case "redis":
		store := redis.New(cfg.Session.RedisAddr, cfg.Session.RedisPassword, cfg.Session.RedisDB, redis.WithTTL(cfg.Session.TTL))
		s.closers = append(s.closers, store.Close)
		s.Store = store
		if cfg.Session.DistributedLock {
			engineOpts = append(engineOpts, troupe.WithLocker(redis.NewLocker(store.Client(), "troupe:"), cfg.Session.LockTTL))
		}
	default:
		s.Store = memory.NewStore()
	}
	engineOpts = append(engineOpts, troupe.WithSessionStore(s.Store))

	// 5. Observability
	hooks := observability.LoggingHooks(logger)
	if cfg.HTTP.Metrics {
		reg := prometheus.NewRegistry()
		metrics, err := observability.NewMetrics(reg)
		if err != nil {
			return nil, err
		}
		s.Metrics = reg
		hooks = observability.Combine(hooks, metrics.Hooks())
	}
	engineOpts = append(engineOpts, troupe.WithLifecycleHooks(hooks))

	engine, err := troupe.New(engineOpts...)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	s.Engine = engine
	return s, nil
}

// createModels resolves the model of every stage. Stages without a model
// are pinned to their rule-based path. Stages sharing a model share its
// failure guard.
func createModels(cfg config.Config, prompts *prompt.Renderer, logger *slog.Logger) ([]troupe.Option, error) {
	var registry *process.Registry
	if cfg.Models != "" {
		configs, err := process.LoadModels(cfg.Models)
		if err != nil {
			return nil, err
		}
		registry = process.NewRegistry(configs, process.WithBaseDir(filepath.Dir(cfg.Models)))
	}

	guards := make(map[string]ports.Model)
	opts := make([]troupe.Option, 0, len(modelStages))
	for _, stage := range modelStages {
		name, ok := cfg.StageModel(string(stage))
		if !ok {
			opts = append(opts, troupe.WithModel(stage, nil, ports.GenerateOptions{}))
			continue
		}
		if registry == nil {
			return nil, fmt.Errorf("stage %s uses model %q but no models file is configured", stage, name)
		}
		m, found := registry.Get(name)
		if !found {
			return nil, fmt.Errorf("stage %s: unknown model %q (known: %v)", stage, name, registry.Names())
		}
		guarded, ok := guards[name]
		if !ok {
			guarded = model.NewGuard(m, cfg.Guard.MaxFailures, cfg.Guard.Cooldown)
			guards[name] = guarded
		}

		bound := &stageModel{
			next:        guarded,
			prompts:     prompts,
			stage:       string(stage),
			name:        name,
			temperature: cfg.Stages[string(stage)].Temperature,
		}
		logger.Debug("Stage model", "stage", string(stage), "model", name, "temperature", bound.options().Temperature)
		opts = append(opts, troupe.WithModel(stage, bound, ports.GenerateOptions{}))
	}
	return opts, nil
}

// stageModel resolves generation options on every call, so templates
// reloaded by the watcher take effect on the next turn. Template frontmatter
// sets the defaults; a configured stage temperature wins, and the model name
// falls back to the registry name.
type stageModel struct {
	next        ports.Model
	prompts     *prompt.Renderer
	stage       string
	name        string
	temperature float64
}

func (m *stageModel) options() ports.GenerateOptions {
	opts, _ := m.prompts.Options(m.stage)
	if opts.ModelName == "" {
		opts.ModelName = m.name
	}
	if m.temperature != 0 {
		opts.Temperature = m.temperature
	}
	return opts
}

func (m *stageModel) Generate(ctx context.Context, systemPrompt, userPrompt string, _ ports.GenerateOptions) (string, error) {
	return m.next.Generate(ctx, systemPrompt, userPrompt, m.options())
}
