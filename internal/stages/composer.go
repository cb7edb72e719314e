package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/troupe/pkg/domain"
)

const composerSystem = "You fuse the replies of several characters into one coherent passage of the story. " +
	"Keep every character's words and actions; do not add new dialogue."

// Separator joins the kept replies of the deterministic path.
const Separator = "\n\n"

// Composer produces the final output of the turn.
type Composer struct {
	deps  Deps
	model Capability
}

// NewComposer creates the Composer stage. A zero capability selects the
// deterministic concatenation.
func NewComposer(deps Deps, model Capability) *Composer {
	return &Composer{deps: deps, model: model}
}

func (c *Composer) Name() domain.StageName { return domain.StageComposer }

func (c *Composer) Execute(ctx context.Context, snapshot domain.GraphState) (domain.Update, error) {
	outputs := snapshot.PersonaOutputs
	if len(outputs) == 0 {
		return domain.Update{domain.FieldFinalOutput: domain.NoRepliesSentinel}, nil
	}
	if !c.model.Configured() {
		return domain.Update{domain.FieldFinalOutput: Concatenate(outputs)}, nil
	}

	scene, sceneTime := "unspecified", "unspecified"
	if w := snapshot.WorldState; w != nil {
		scene, sceneTime = w.Scene, w.Time
	}
	reply, err := c.model.generate(ctx, c.deps, domain.StageComposer, composerSystem, map[string]string{
		"transcript": Transcript(outputs),
		"scene":      scene,
		"time":       sceneTime,
	})
	if err == nil && strings.TrimSpace(reply) == "" {
		err = fmt.Errorf("%w: empty reply", domain.ErrMalformedOutput)
	}
	if err != nil {
		c.deps.degrade(ctx, domain.StageComposer, "deterministic concatenation", err)
		return domain.Update{domain.FieldFinalOutput: Concatenate(outputs)}, nil
	}
	return domain.Update{domain.FieldFinalOutput: strings.TrimSpace(reply)}, nil
}

// Concatenate keeps the format-valid outputs, tags each with the speaker's
// name unless the content already mentions it, and joins them with Separator.
// When nothing is kept the sentinel is returned.
func Concatenate(outputs []domain.PersonaOutput) string {
	kept := make([]string, 0, len(outputs))
	for _, o := range outputs {
		if !o.FormatValid {
			continue
		}
		content := o.Content
		if !strings.Contains(content, o.CharacterName) {
			content = "【" + o.CharacterName + "】\n" + content
		}
		kept = append(kept, content)
	}
	if len(kept) == 0 {
		return domain.NoRepliesSentinel
	}
	return strings.Join(kept, Separator)
}

// Transcript lists every output under a heading with the character's name.
func Transcript(outputs []domain.PersonaOutput) string {
	var b strings.Builder
	for i, o := range outputs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "### %s\n%s", o.CharacterName, o.Content)
	}
	return b.String()
}
