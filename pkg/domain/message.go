package domain

// RawMessage is an immutable unit of input to a turn.
type RawMessage struct {
	Role    string `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// ParsedInput is the structured view the Parser derives from the raw messages.
type ParsedInput struct {
	PresetInstructions map[string]string `json:"preset_instructions"`
	CharacterSettings  map[string]string `json:"character_settings"`
	History            map[string]string `json:"history"`
	ChatHistory        []RawMessage      `json:"chat_history"`
	UserInput          string            `json:"user_input"`

	// TableData is an opaque read-only snapshot; nil when the source is unavailable.
	TableData any `json:"table_data,omitempty"`
}

// LastHistory returns up to n trailing chat history entries.
func (p *ParsedInput) LastHistory(n int) []RawMessage {
	if p == nil || n <= 0 {
		return nil
	}
	if len(p.ChatHistory) <= n {
		return p.ChatHistory
	}
	return p.ChatHistory[len(p.ChatHistory)-n:]
}
