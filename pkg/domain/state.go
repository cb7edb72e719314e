package domain

// PersonaOutput is one character's reply for the turn.
type PersonaOutput struct {
	CharacterName string `json:"character_name"`
	Content       string `json:"content"`
	FormatValid   bool   `json:"format_valid"`
}

// GraphState is the aggregate threaded through every stage of a run.
// Stages only ever see a copy; the orchestrator is its sole writer.
type GraphState struct {
	RawMessages       []RawMessage      `json:"raw_messages"`
	ParsedInput       *ParsedInput      `json:"parsed_input,omitempty"`
	WorldState        *WorldState       `json:"world_state,omitempty"`
	ActiveCharacters  []string          `json:"active_characters"`
	CharacterContexts map[string]string `json:"character_contexts"`
	PersonaOutputs    []PersonaOutput   `json:"persona_outputs"`
	FormatCheckPassed bool              `json:"format_check_passed"`
	RetryCount        int               `json:"retry_count"`
	FinalOutput       string            `json:"final_output"`
	Error             string            `json:"error,omitempty"`
}

// NewGraphState creates the state for a run, optionally seeded with a prior world.
func NewGraphState(messages []RawMessage, world *WorldState) GraphState {
	return GraphState{
		RawMessages:       append([]RawMessage(nil), messages...),
		WorldState:        world.Clone(),
		CharacterContexts: make(map[string]string),
	}
}

// Clone returns a deep copy of the mutable containers of the state.
// ParsedInput is treated as immutable once produced and is shared.
func (s GraphState) Clone() GraphState {
	c := s
	c.RawMessages = append([]RawMessage(nil), s.RawMessages...)
	c.WorldState = s.WorldState.Clone()
	c.ActiveCharacters = append([]string(nil), s.ActiveCharacters...)
	c.CharacterContexts = make(map[string]string, len(s.CharacterContexts))
	for k, v := range s.CharacterContexts {
		c.CharacterContexts[k] = v
	}
	c.PersonaOutputs = append([]PersonaOutput(nil), s.PersonaOutputs...)
	return c
}

// Field names a GraphState member that an Update can carry.
type Field string

const (
	FieldParsedInput       Field = "parsed_input"
	FieldWorldState        Field = "world_state"
	FieldActiveCharacters  Field = "active_characters"
	FieldCharacterContexts Field = "character_contexts"
	FieldPersonaOutputs    Field = "persona_outputs"
	FieldFormatCheckPassed Field = "format_check_passed"
	FieldRetryCount        Field = "retry_count"
	FieldFinalOutput       Field = "final_output"
	FieldError             Field = "error"
)

// Update is the partial state fragment a stage returns.
// Only the fields present in the map are merged; how is decided by the merge policy table.
type Update map[Field]any

// Has reports whether the update carries the field.
func (u Update) Has(f Field) bool {
	_, ok := u[f]
	return ok
}

// ErrorText returns the error message carried by the update, if any.
func (u Update) ErrorText() string {
	s, _ := u[FieldError].(string)
	return s
}
