package stages

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/aretw0/troupe/pkg/domain"
)

const narratorSystem = "You maintain the world state of an interactive story. " +
	"Reply with one JSON object with the keys scene, time, characters and recent_events."

// settingsPriority is consulted before the remaining character settings when
// looking for a name declaration.
const settingsPriority = "character_info"

var nameDeclaration = regexp.MustCompile(`(?i)\bname\s*[:：]\s*([^\n\r,，;；]+)`)

// Narrator maintains the WorldState.
type Narrator struct {
	deps  Deps
	model Capability
}

// NewNarrator creates the Narrator stage. A zero capability selects rule mode.
func NewNarrator(deps Deps, model Capability) *Narrator {
	return &Narrator{deps: deps, model: model}
}

func (n *Narrator) Name() domain.StageName { return domain.StageNarrator }

func (n *Narrator) Execute(ctx context.Context, snapshot domain.GraphState) (domain.Update, error) {
	if snapshot.ParsedInput == nil {
		return domain.Update{
			domain.FieldError: fmt.Sprintf("%s: %v: parsed input", domain.StageNarrator, domain.ErrMissingPrerequisite),
		}, nil
	}
	if !n.model.Configured() {
		return domain.Update{domain.FieldWorldState: RuleBasedWorld(snapshot.WorldState, snapshot.ParsedInput)}, nil
	}

	world, err := n.modelWorld(ctx, snapshot)
	if err != nil {
		n.deps.degrade(ctx, domain.StageNarrator, "keep prior world", err)
		return domain.Update{domain.FieldWorldState: snapshot.WorldState.Clone()}, nil
	}
	return domain.Update{domain.FieldWorldState: world}, nil
}

// RuleBasedWorld upserts the declared character into a copy of prior and
// records a short summary of the user input.
func RuleBasedWorld(prior *domain.WorldState, parsed *domain.ParsedInput) *domain.WorldState {
	world := prior.Clone()
	if world == nil {
		world = domain.NewWorldState()
	}

	if name := declaredName(parsed.CharacterSettings); name != "" {
		world.Upsert(domain.Character{Name: name, Present: true, LastPosition: world.Scene})
	}
	if summary := truncateRunes(strings.TrimSpace(parsed.UserInput), domain.EventSummaryLimit); summary != "" {
		world.AppendEvent(summary)
	}
	return world
}

func declaredName(settings map[string]string) string {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		if k != settingsPriority {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if _, ok := settings[settingsPriority]; ok {
		keys = append([]string{settingsPriority}, keys...)
	}

	for _, k := range keys {
		if m := nameDeclaration.FindStringSubmatch(settings[k]); m != nil {
			if name := strings.TrimSpace(m[1]); name != "" {
				return name
			}
		}
	}
	return ""
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}

func (n *Narrator) modelWorld(ctx context.Context, snapshot domain.GraphState) (*domain.WorldState, error) {
	parsed := snapshot.ParsedInput
	prior := snapshot.WorldState
	if prior == nil {
		prior = domain.NewWorldState()
	}

	reply, err := n.model.generate(ctx, n.deps, domain.StageNarrator, narratorSystem, map[string]string{
		"character_settings": formatSettings(parsed.CharacterSettings),
		"chat_history":       formatHistory(parsed.LastHistory(domain.HistoryWindow)),
		"user_input":         parsed.UserInput,
		"world_state":        mustJSON(prior),
	})
	if err != nil {
		return nil, err
	}

	var world domain.WorldState
	if err := decodeFirstObject(reply, &world); err != nil {
		return nil, err
	}
	if world.Characters == nil {
		world.Characters = make(map[string]domain.Character)
	}
	for name, ch := range world.Characters {
		if ch.Name == "" {
			ch.Name = name
			world.Characters[name] = ch
		}
	}
	world.TrimEvents()
	return &world, nil
}

func formatSettings(settings map[string]string) string {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, settings[k])
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatHistory(history []domain.RawMessage) string {
	lines := make([]string, 0, len(history))
	for _, m := range history {
		lines = append(lines, m.Role+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}
