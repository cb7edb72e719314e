package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/troupe/pkg/domain"
)

// GraphOverlay contains run data to visualize on the graph.
type GraphOverlay struct {
	VisitedStates []domain.PipelineState
	CurrentState  domain.PipelineState
}

// StageNamer resolves the stage run in a state; ok is false for terminal states.
type StageNamer func(domain.PipelineState) (domain.StageName, bool)

// GenerateMermaid produces a Mermaid flowchart of the orchestration state
// machine. It applies semantic styling:
// - Entry state: ((Circle))
// - Fan-out: [[Subroutine]]
// - Gate (a state with more than one way out): {Rhombus}
// - Terminal: (((Double circle)))
// - Default: [Rectangle]
// Edges leading back to an earlier state are dotted.
func GenerateMermaid(transitions []domain.Transition, stageOf StageNamer, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	order := states(transitions)
	rank := make(map[domain.PipelineState]int, len(order))
	for i, s := range order {
		rank[s] = i
	}
	outgoing := make(map[domain.PipelineState]int)
	for _, t := range transitions {
		outgoing[t.From]++
	}

	for i, s := range order {
		opener, closer := "[", "]"
		switch {
		case i == 0:
			opener, closer = "((", "))"
		case outgoing[s] == 0:
			opener, closer = "(((", ")))"
		case outgoing[s] > 1:
			opener, closer = "{", "}"
		case s == "fanout":
			opener, closer = "[[", "]]"
		}

		label := string(s)
		if stageOf != nil {
			if stage, ok := stageOf(s); ok {
				label = fmt.Sprintf("%s <br/> %s", s, stage)
			}
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", sanitizeMermaidID(string(s)), opener, label, closer))
	}

	for _, t := range transitions {
		back := rank[t.To] <= rank[t.From]
		arrow := "-->"
		if back {
			arrow = "-.->"
		}
		if text := edgeLabel(t); text != "" {
			arrow = fmt.Sprintf("-- \"%s\" -->", text)
			if back {
				arrow = fmt.Sprintf("-. \"%s\" .->", text)
			}
		}
		sb.WriteString(fmt.Sprintf("    %s %s %s\n", sanitizeMermaidID(string(t.From)), arrow, sanitizeMermaidID(string(t.To))))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, s := range overlay.VisitedStates {
			id := sanitizeMermaidID(string(s))
			if !seen[id] && id != "" {
				seen[id] = true
				sb.WriteString(fmt.Sprintf("    class %s visited;\n", id))
			}
		}
		if overlay.CurrentState != "" {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(string(overlay.CurrentState))))
		}
	}

	return sb.String()
}

// states lists every state in order of first appearance.
func states(transitions []domain.Transition) []domain.PipelineState {
	var out []domain.PipelineState
	seen := make(map[domain.PipelineState]bool)
	add := func(s domain.PipelineState) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, t := range transitions {
		add(t.From)
		add(t.To)
	}
	return out
}

func edgeLabel(t domain.Transition) string {
	guard := t.Guard
	if guard == "always" {
		guard = ""
	}
	switch {
	case guard != "" && t.Effect != "":
		return strings.ReplaceAll(guard+" / "+t.Effect, "\"", "'")
	case guard != "":
		return strings.ReplaceAll(guard, "\"", "'")
	default:
		return strings.ReplaceAll(t.Effect, "\"", "'")
	}
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
