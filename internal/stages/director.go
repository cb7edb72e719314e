package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/troupe/pkg/domain"
)

const directorSystem = "You direct an interactive story. Decide which of the present characters " +
	"act this turn. Reply with a JSON array of character names."

// Director selects the acting characters and builds their private contexts.
type Director struct {
	deps  Deps
	model Capability
}

// NewDirector creates the Director stage.
func NewDirector(deps Deps, model Capability) *Director {
	return &Director{deps: deps, model: model}
}

func (d *Director) Name() domain.StageName { return domain.StageDirector }

func (d *Director) Execute(ctx context.Context, snapshot domain.GraphState) (domain.Update, error) {
	world := snapshot.WorldState
	if world == nil {
		return domain.Update{
			domain.FieldActiveCharacters:  []string{},
			domain.FieldCharacterContexts: map[string]string{},
			domain.FieldError:             fmt.Sprintf("%s: %v: world state", domain.StageDirector, domain.ErrMissingPrerequisite),
		}, nil
	}

	userInput := ""
	if snapshot.ParsedInput != nil {
		userInput = snapshot.ParsedInput.UserInput
	}

	present := world.PresentCharacters()
	active := present
	if d.model.Configured() && len(present) > 0 {
		selected, err := d.selectWithModel(ctx, world, userInput, present)
		if err != nil {
			d.deps.degrade(ctx, domain.StageDirector, "select all present", err)
		} else {
			active = selected
		}
	}

	contexts := make(map[string]string, len(active))
	for _, name := range active {
		contexts[name] = BuildContext(name, world, userInput)
	}

	d.deps.logger(domain.StageDirector).Debug("Selected characters", "present", present, "active", active)
	return domain.Update{
		domain.FieldActiveCharacters:  append([]string{}, active...),
		domain.FieldCharacterContexts: contexts,
	}, nil
}

func (d *Director) selectWithModel(ctx context.Context, world *domain.WorldState, userInput string, present []string) ([]string, error) {
	reply, err := d.model.generate(ctx, d.deps, domain.StageDirector, directorSystem, map[string]string{
		"world_state":        mustJSON(world),
		"user_input":         userInput,
		"present_characters": mustJSON(present),
	})
	if err != nil {
		return nil, err
	}

	var names []string
	if err := decodeFirstArray(reply, &names); err != nil {
		return nil, err
	}
	return IntersectPresent(names, present), nil
}

// IntersectPresent keeps the names that are present, in the given order, without duplicates.
func IntersectPresent(names, present []string) []string {
	allowed := make(map[string]bool, len(present))
	for _, p := range present {
		allowed[p] = true
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if allowed[n] {
			out = append(out, n)
			allowed[n] = false
		}
	}
	return out
}

// BuildContext renders what one character is allowed to know this turn.
// Absent characters and other characters' private state never appear in it.
func BuildContext(self string, world *domain.WorldState, userInput string) string {
	others := make([]string, 0, len(world.Characters))
	for _, name := range world.PresentCharacters() {
		if name != self {
			others = append(others, name)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s.\n", self)
	fmt.Fprintf(&b, "Scene: %s\n", world.Scene)
	fmt.Fprintf(&b, "Time: %s\n", world.Time)
	if len(others) == 0 {
		b.WriteString("Others present: none\n")
	} else {
		fmt.Fprintf(&b, "Others present: %s\n", strings.Join(others, ", "))
	}
	b.WriteString("Recent events:\n")
	events := world.LastEvents(domain.HistoryWindow)
	if len(events) == 0 {
		b.WriteString("- none\n")
	}
	for _, e := range events {
		fmt.Fprintf(&b, "- %s\n", e)
	}
	fmt.Fprintf(&b, "User input: %s", userInput)
	return b.String()
}
