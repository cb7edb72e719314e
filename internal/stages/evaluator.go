package stages

import (
	"context"
	"strings"

	"github.com/aretw0/troupe/pkg/domain"
)

// Evaluator is the syntactic format gate over the persona outputs.
// It passes iff every output has non-blank content; a failure consumes one
// retry. Placeholders from failed generations carry text and pass.
type Evaluator struct {
	deps Deps
}

func NewEvaluator(deps Deps) *Evaluator {
	return &Evaluator{deps: deps}
}

func (e *Evaluator) Name() domain.StageName { return domain.StageEvaluator }

func (e *Evaluator) Execute(ctx context.Context, snapshot domain.GraphState) (domain.Update, error) {
	passed, failing := Gate(snapshot.PersonaOutputs)
	if passed {
		return domain.Update{domain.FieldFormatCheckPassed: true}, nil
	}
	e.deps.logger(domain.StageEvaluator).Info("Format gate failed", "failing", failing, "retry_count", snapshot.RetryCount)
	return domain.Update{
		domain.FieldFormatCheckPassed: false,
		domain.FieldRetryCount:        snapshot.RetryCount + 1,
	}, nil
}

// Gate reports whether all outputs pass and names the ones that do not.
// An empty set passes.
func Gate(outputs []domain.PersonaOutput) (bool, []string) {
	var failing []string
	for _, o := range outputs {
		if strings.TrimSpace(o.Content) == "" {
			failing = append(failing, o.CharacterName)
		}
	}
	return len(failing) == 0, failing
}
