package domain

import "time"

// Session carries the world state that survives between turns of one conversation.
type Session struct {
	ID        string      `json:"id"`
	World     *WorldState `json:"world,omitempty"`
	Turns     int         `json:"turns"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// NewSession creates an empty session.
func NewSession(id string) *Session {
	return &Session{ID: id}
}
