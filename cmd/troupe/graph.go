package main

import (
	"context"
	"fmt"

	"github.com/aretw0/troupe"
	"github.com/aretw0/troupe/internal/orchestrator"
	"github.com/aretw0/troupe/internal/presentation/graph"
	"github.com/aretw0/troupe/pkg/domain"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the pipeline visualization",
	Long: `Outputs a Mermaid diagram (graph TD) of the orchestration state machine.
With --trace, a rule-based turn is run on the given message and the states
it visited are highlighted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		trace, _ := cmd.Flags().GetString("trace")

		var overlay *graph.GraphOverlay
		if trace != "" {
			var err error
			if overlay, err = traceTurn(cmd.Context(), trace); err != nil {
				return err
			}
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(orchestrator.Transitions(), orchestrator.StageOf, overlay))
		return nil
	},
}

// traceTurn runs a rule-based turn and records the states it passed through.
func traceTurn(ctx context.Context, message string) (*graph.GraphOverlay, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	eng, err := troupe.New()
	if err != nil {
		return nil, err
	}
	events, err := eng.Stream(ctx, []domain.RawMessage{{Role: domain.RoleUser, Content: message}})
	if err != nil {
		return nil, err
	}

	stateOf := make(map[domain.StageName]domain.PipelineState)
	for _, t := range orchestrator.Transitions() {
		if stage, ok := orchestrator.StageOf(t.From); ok {
			stateOf[stage] = t.From
		}
	}

	overlay := &graph.GraphOverlay{}
	for ev := range events {
		if ev.Err != nil {
			return nil, ev.Err
		}
		overlay.VisitedStates = append(overlay.VisitedStates, stateOf[ev.Stage])
	}
	overlay.CurrentState = orchestrator.StateDone
	return overlay, nil
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("trace", "", "Run a rule-based turn on this message and highlight its path")
}
