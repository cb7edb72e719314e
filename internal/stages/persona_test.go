package stages_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/troupe/internal/stages"
	"github.com/aretw0/troupe/internal/testutils"
	"github.com/aretw0/troupe/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fanOutState(names ...string) domain.GraphState {
	s := domain.NewGraphState(nil, nil)
	s.ParsedInput = &domain.ParsedInput{PresetInstructions: map[string]string{"fiction_style": "noir"}}
	s.ActiveCharacters = names
	for _, n := range names {
		s.CharacterContexts[n] = "You are " + n + "."
	}
	return s
}

func TestPersona_FailureIsolation(t *testing.T) {
	model := &testutils.RecordingModel{Reply: func(c testutils.Call) (string, error) {
		if strings.HasPrefix(c.User, "You are B.") {
			return "", errors.New("rate limited")
		}
		return strings.TrimPrefix(c.User, "You are ") + " speaks", nil
	}}
	p := stages.NewPersonaFanOut(stages.Deps{Prompts: testutils.Prompts{}}, stages.Capability{Model: model}, 0)

	update, err := p.Execute(context.Background(), fanOutState("A", "B", "C"))
	require.NoError(t, err)

	outs := update[domain.FieldPersonaOutputs].([]domain.PersonaOutput)
	require.Len(t, outs, 3)
	assert.Equal(t, domain.PersonaOutput{CharacterName: "A", Content: "A. speaks", FormatValid: true}, outs[0])
	assert.Equal(t, "B", outs[1].CharacterName)
	assert.False(t, outs[1].FormatValid)
	assert.Contains(t, outs[1].Content, stages.FailureInvocation)
	assert.Equal(t, domain.PersonaOutput{CharacterName: "C", Content: "C. speaks", FormatValid: true}, outs[2])
}

func TestPersona_NoModelPlaceholders(t *testing.T) {
	p := stages.NewPersonaFanOut(stages.Deps{}, stages.Capability{}, 0)
	update, err := p.Execute(context.Background(), fanOutState("A", "B"))
	require.NoError(t, err)

	outs := update[domain.FieldPersonaOutputs].([]domain.PersonaOutput)
	require.Len(t, outs, 2)
	for _, o := range outs {
		assert.False(t, o.FormatValid)
		assert.Contains(t, o.Content, stages.FailureModelUnconfigured)
	}
}

func TestPersona_OrderFollowsActiveCharacters(t *testing.T) {
	// Earlier characters finish last; results must still follow input order.
	delays := map[string]time.Duration{"A": 30 * time.Millisecond, "B": 10 * time.Millisecond, "C": 0}
	model := &testutils.RecordingModel{Reply: func(c testutils.Call) (string, error) {
		name := strings.TrimSuffix(strings.TrimPrefix(c.User, "You are "), ".")
		time.Sleep(delays[name])
		return name, nil
	}}
	p := stages.NewPersonaFanOut(stages.Deps{}, stages.Capability{Model: model}, 0)

	update, err := p.Execute(context.Background(), fanOutState("A", "B", "C"))
	require.NoError(t, err)
	outs := update[domain.FieldPersonaOutputs].([]domain.PersonaOutput)
	assert.Equal(t, []string{"A", "B", "C"}, []string{outs[0].Content, outs[1].Content, outs[2].Content})
}

func TestPersona_ConcurrencyLimit(t *testing.T) {
	var running, peak int32
	model := &testutils.RecordingModel{Reply: func(c testutils.Call) (string, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return "ok", nil
	}}
	p := stages.NewPersonaFanOut(stages.Deps{}, stages.Capability{Model: model}, 2)

	_, err := p.Execute(context.Background(), fanOutState("A", "B", "C", "D", "E"))
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	assert.Equal(t, 5, model.CallCount())
}

func TestPersona_SystemPromptCarriesStyleAndRules(t *testing.T) {
	model := testutils.Reply("line")
	p := stages.NewPersonaFanOut(stages.Deps{Prompts: testutils.Prompts{Keys: []string{"character_name", "style"}}}, stages.Capability{Model: model}, 0)

	_, err := p.Execute(context.Background(), fanOutState("A"))
	require.NoError(t, err)

	call := model.Calls()[0]
	assert.Contains(t, call.System, "character_name=A")
	assert.Contains(t, call.System, "style=noir")
	assert.Contains(t, call.System, "Stay in character as A")
	assert.Equal(t, "You are A.", call.User)
}

func TestPersona_ZeroActiveMakesNoCalls(t *testing.T) {
	model := testutils.Reply("never")
	p := stages.NewPersonaFanOut(stages.Deps{}, stages.Capability{Model: model}, 0)

	update, err := p.Execute(context.Background(), fanOutState())
	require.NoError(t, err)
	assert.Empty(t, update[domain.FieldPersonaOutputs])
	assert.Zero(t, model.CallCount())
}

func TestPersona_PanicIsFatal(t *testing.T) {
	model := &testutils.RecordingModel{Reply: func(c testutils.Call) (string, error) {
		panic("nil map write")
	}}
	p := stages.NewPersonaFanOut(stages.Deps{}, stages.Capability{Model: model}, 0)

	_, err := p.Execute(context.Background(), fanOutState("A"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}
