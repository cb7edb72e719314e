package testutils

import (
	"context"
	"strings"
	"sync"

	"github.com/aretw0/troupe/pkg/ports"
)

// Call is one recorded model invocation.
type Call struct {
	System  string
	User    string
	Options ports.GenerateOptions
}

// RecordingModel is a ports.Model double that records every call.
// Reply decides the outcome; it may be invoked concurrently.
type RecordingModel struct {
	Reply func(call Call) (string, error)

	mu    sync.Mutex
	calls []Call
}

// Reply returns a model that always answers with text.
func Reply(text string) *RecordingModel {
	return &RecordingModel{Reply: func(Call) (string, error) { return text, nil }}
}

// Fail returns a model that always fails with err.
func Fail(err error) *RecordingModel {
	return &RecordingModel{Reply: func(Call) (string, error) { return "", err }}
}

// Generate implements ports.Model.
func (m *RecordingModel) Generate(ctx context.Context, system, user string, opts ports.GenerateOptions) (string, error) {
	call := Call{System: system, User: user, Options: opts}
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()
	return m.Reply(call)
}

// Calls returns a copy of the recorded calls.
func (m *RecordingModel) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallCount returns how many times the model was invoked.
func (m *RecordingModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Prompts is a ports.PromptRenderer double: the template of every stage is
// its variables rendered as "key=value" lines, in the order given by Keys.
type Prompts struct {
	Keys []string
}

// Render implements ports.PromptRenderer.
func (p Prompts) Render(stageID string, vars map[string]string) (string, error) {
	lines := []string{"stage=" + stageID}
	for _, k := range p.Keys {
		if v, ok := vars[k]; ok {
			lines = append(lines, k+"="+v)
		}
	}
	return strings.Join(lines, "\n"), nil
}
