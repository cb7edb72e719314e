package stages

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/troupe/pkg/domain"
	"golang.org/x/sync/errgroup"
)

// Failure classes reported in placeholder outputs.
const (
	FailureModelUnconfigured = "model_unconfigured"
	FailureInvocation        = "invocation_failed"
)

const personaRules = `Rules:
- Stay in character as %[1]s for the whole reply.
- Speak and act only as %[1]s; never write lines or actions for anyone else.
- Use only what your context tells you. Do not mention people who are not present.
- Reply with the in-story text only, without notes or headings.`

var (
	styleKeys      = []string{"fiction_style", "writing_style", "narrative_perspective"}
	constraintKeys = []string{"writing_rules", "constraints", "output_format", "word_count"}
)

// PersonaFanOut generates one reply per active character concurrently.
type PersonaFanOut struct {
	deps  Deps
	model Capability
	limit int
}

// NewPersonaFanOut creates the fan-out stage. A positive limit caps how many
// generations run at once; zero runs every character concurrently.
func NewPersonaFanOut(deps Deps, model Capability, limit int) *PersonaFanOut {
	return &PersonaFanOut{deps: deps, model: model, limit: limit}
}

func (p *PersonaFanOut) Name() domain.StageName { return domain.StagePersona }

func (p *PersonaFanOut) Execute(ctx context.Context, snapshot domain.GraphState) (domain.Update, error) {
	active := snapshot.ActiveCharacters
	if len(active) == 0 {
		return domain.Update{domain.FieldPersonaOutputs: []domain.PersonaOutput{}}, nil
	}

	var preset map[string]string
	if snapshot.ParsedInput != nil {
		preset = snapshot.ParsedInput.PresetInstructions
	}
	style := joinPreset(preset, styleKeys)
	constraints := joinPreset(preset, constraintKeys)

	// Each task writes only its own slot; Wait is the barrier before results are read.
	results := make([]domain.PersonaOutput, len(active))
	g := new(errgroup.Group)
	if p.limit > 0 {
		g.SetLimit(p.limit)
	}
	for i, name := range active {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("persona %s panicked: %v", name, r)
				}
			}()
			results[i] = p.generate(ctx, name, style, constraints, snapshot.CharacterContexts[name])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return domain.Update{domain.FieldPersonaOutputs: results}, nil
}

func (p *PersonaFanOut) generate(ctx context.Context, name, style, constraints, charContext string) domain.PersonaOutput {
	log := p.deps.logger(domain.StagePersona).With("character", name)
	if !p.model.Configured() {
		log.Debug("No model configured")
		return placeholder(name, FailureModelUnconfigured)
	}

	reply, err := p.model.Model.Generate(ctx, p.systemPrompt(name, style, constraints), charContext, p.model.Options)
	if err != nil {
		p.deps.degrade(ctx, domain.StagePersona, "placeholder for "+name, err)
		return placeholder(name, FailureInvocation)
	}
	return domain.PersonaOutput{
		CharacterName: name,
		Content:       reply,
		FormatValid:   len(reply) > 0,
	}
}

func (p *PersonaFanOut) systemPrompt(name, style, constraints string) string {
	rules := fmt.Sprintf(personaRules, name)
	head, err := p.deps.render(domain.StagePersona, map[string]string{
		"character_name": name,
		"style":          style,
		"constraints":    constraints,
	})
	if err != nil {
		if !errors.Is(err, domain.ErrTemplateNotFound) {
			p.deps.logger(domain.StagePersona).Warn("Persona template render failed", "err", err)
		}
		return fmt.Sprintf("You are %s.\n\n%s", name, rules)
	}
	return strings.TrimSpace(head) + "\n\n" + rules
}

func placeholder(name, class string) domain.PersonaOutput {
	return domain.PersonaOutput{
		CharacterName: name,
		Content:       fmt.Sprintf("[%s: no reply (%s)]", name, class),
		FormatValid:   false,
	}
}

func joinPreset(preset map[string]string, keys []string) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if v := strings.TrimSpace(preset[k]); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, "\n")
}
