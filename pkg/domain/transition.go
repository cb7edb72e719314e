package domain

// PipelineState names a state of the orchestration state machine.
type PipelineState string

// Transition describes one edge of the orchestration state machine.
// Guard and Effect are descriptive names used for introspection; the
// orchestrator owns their implementation.
type Transition struct {
	From   PipelineState `json:"from"`
	To     PipelineState `json:"to"`
	Guard  string        `json:"guard,omitempty"`
	Effect string        `json:"effect,omitempty"`
}
