package stages_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/troupe/internal/stages"
	"github.com/aretw0/troupe/internal/testutils"
	"github.com/aretw0/troupe/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func composeState(outputs ...domain.PersonaOutput) domain.GraphState {
	w := domain.NewWorldState()
	w.Scene, w.Time = "harbor", "dawn"
	s := domain.NewGraphState(nil, w)
	s.PersonaOutputs = outputs
	return s
}

func TestConcatenate(t *testing.T) {
	tests := []struct {
		name    string
		outputs []domain.PersonaOutput
		want    string
	}{
		{
			name: "drops invalid and tags name",
			outputs: []domain.PersonaOutput{
				{CharacterName: "A", Content: "hi", FormatValid: true},
				{CharacterName: "B", Content: "", FormatValid: false},
			},
			want: "【A】\nhi",
		},
		{
			name: "content naming the speaker is kept as is",
			outputs: []domain.PersonaOutput{
				{CharacterName: "Alice", Content: "Alice waves.", FormatValid: true},
				{CharacterName: "Bob", Content: "Nods.", FormatValid: true},
			},
			want: "Alice waves.\n\n【Bob】\nNods.",
		},
		{
			name:    "nothing kept",
			outputs: []domain.PersonaOutput{{CharacterName: "A", Content: "[A: no reply (invocation_failed)]"}},
			want:    domain.NoRepliesSentinel,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stages.Concatenate(tt.outputs))
		})
	}
}

func TestComposer_EmptyOutputsSkipModel(t *testing.T) {
	model := testutils.Reply("fused")
	c := stages.NewComposer(stages.Deps{Prompts: testutils.Prompts{}}, stages.Capability{Model: model})

	update, err := c.Execute(context.Background(), composeState())
	require.NoError(t, err)
	assert.Equal(t, domain.NoRepliesSentinel, update[domain.FieldFinalOutput])
	assert.Zero(t, model.CallCount())
}

func TestComposer_ModelFusion(t *testing.T) {
	model := testutils.Reply("  The harbor wakes.  ")
	c := stages.NewComposer(stages.Deps{Prompts: testutils.Prompts{Keys: []string{"transcript", "scene", "time"}}}, stages.Capability{Model: model})

	update, err := c.Execute(context.Background(), composeState(
		domain.PersonaOutput{CharacterName: "A", Content: "hi", FormatValid: true},
		domain.PersonaOutput{CharacterName: "B", Content: "[B: no reply (invocation_failed)]"},
	))
	require.NoError(t, err)
	assert.Equal(t, "The harbor wakes.", update[domain.FieldFinalOutput])

	user := model.Calls()[0].User
	assert.Contains(t, user, "### A\nhi")
	assert.Contains(t, user, "### B\n")
	assert.Contains(t, user, "scene=harbor")
	assert.Contains(t, user, "time=dawn")
}

func TestComposer_FallsBack(t *testing.T) {
	outputs := []domain.PersonaOutput{{CharacterName: "A", Content: "hi", FormatValid: true}}

	tests := []struct {
		name  string
		model *testutils.RecordingModel
	}{
		{name: "invocation failure", model: testutils.Fail(errors.New("timeout"))},
		{name: "empty reply", model: testutils.Reply("   ")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var degraded []string
			deps := stages.Deps{
				Prompts: testutils.Prompts{},
				Hooks: domain.LifecycleHooks{OnDegrade: func(_ context.Context, e *domain.DegradeEvent) {
					degraded = append(degraded, string(e.Stage))
				}},
			}
			c := stages.NewComposer(deps, stages.Capability{Model: tt.model})

			update, err := c.Execute(context.Background(), composeState(outputs...))
			require.NoError(t, err)
			assert.Equal(t, "【A】\nhi", update[domain.FieldFinalOutput])
			assert.Equal(t, []string{"composer"}, degraded)
		})
	}
}
