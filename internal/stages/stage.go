package stages

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/troupe/internal/logging"
	"github.com/aretw0/troupe/pkg/domain"
	"github.com/aretw0/troupe/pkg/ports"
)

// Stage is one node of the orchestration sequence. Execute reads an isolated
// snapshot and returns a partial update; a returned error is a defect and
// aborts the run, anticipated failures are absorbed inside the stage.
type Stage interface {
	Name() domain.StageName
	Execute(ctx context.Context, snapshot domain.GraphState) (domain.Update, error)
}

// Capability is the model configuration injected into a single stage.
// A zero Capability selects the stage's rule-based path.
type Capability struct {
	Model   ports.Model
	Options ports.GenerateOptions
}

// Configured reports whether the stage may call a model.
func (c Capability) Configured() bool {
	return c.Model != nil
}

// Deps are the collaborators shared by every stage.
type Deps struct {
	Prompts ports.PromptRenderer
	Table   ports.TableSource
	Logger  *slog.Logger
	Hooks   domain.LifecycleHooks
}

func (d Deps) logger(stage domain.StageName) *slog.Logger {
	l := d.Logger
	if l == nil {
		l = logging.NewNop()
	}
	return l.With("stage", string(stage))
}

func (d Deps) render(stage domain.StageName, vars map[string]string) (string, error) {
	if d.Prompts == nil {
		return "", fmt.Errorf("%w: %s", domain.ErrTemplateNotFound, stage)
	}
	return d.Prompts.Render(string(stage), vars)
}

// degrade records a fallback to the rule-based or deterministic path.
func (d Deps) degrade(ctx context.Context, stage domain.StageName, reason string, err error) {
	d.logger(stage).Warn("Stage degraded", "reason", reason, "err", err)
	if d.Hooks.OnDegrade != nil {
		d.Hooks.OnDegrade(ctx, &domain.DegradeEvent{Stage: stage, Reason: reason, Err: err})
	}
}

// generate renders the stage template and invokes the model.
func (c Capability) generate(ctx context.Context, d Deps, stage domain.StageName, system string, vars map[string]string) (string, error) {
	prompt, err := d.render(stage, vars)
	if err != nil {
		return "", err
	}
	reply, err := c.Model.Generate(ctx, system, prompt, c.Options)
	if err != nil {
		return "", fmt.Errorf("%s invocation: %w", stage, err)
	}
	return reply, nil
}
