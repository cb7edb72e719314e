package domain

import "sort"

// Character is an entity tracked by the Narrator.
type Character struct {
	Name         string `json:"name"`
	Present      bool   `json:"present"`
	LastPosition string `json:"last_position"`
	Description  string `json:"description,omitempty"`
}

// WorldState is the Narrator's model of the scene.
type WorldState struct {
	Scene        string               `json:"scene"`
	Time         string               `json:"time"`
	Characters   map[string]Character `json:"characters"`
	RecentEvents []string             `json:"recent_events"`
}

// NewWorldState creates an empty world with placeholder scene and time.
func NewWorldState() *WorldState {
	return &WorldState{
		Scene:      "unspecified",
		Time:       "unspecified",
		Characters: make(map[string]Character),
	}
}

// Clone returns a deep copy so callers never share maps or slices with a snapshot.
func (w *WorldState) Clone() *WorldState {
	if w == nil {
		return nil
	}
	c := *w
	c.Characters = make(map[string]Character, len(w.Characters))
	for k, v := range w.Characters {
		c.Characters[k] = v
	}
	c.RecentEvents = append([]string(nil), w.RecentEvents...)
	return &c
}

// PresentCharacters lists the names of characters currently in the scene, sorted by name.
func (w *WorldState) PresentCharacters() []string {
	if w == nil {
		return nil
	}
	names := make([]string, 0, len(w.Characters))
	for name, ch := range w.Characters {
		if ch.Present {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Upsert adds a character or refreshes an existing entry of the same name.
// Entries for other names are left untouched.
func (w *WorldState) Upsert(ch Character) {
	if w.Characters == nil {
		w.Characters = make(map[string]Character)
	}
	if existing, ok := w.Characters[ch.Name]; ok {
		existing.Present = ch.Present
		if ch.LastPosition != "" {
			existing.LastPosition = ch.LastPosition
		}
		if ch.Description != "" {
			existing.Description = ch.Description
		}
		w.Characters[ch.Name] = existing
		return
	}
	w.Characters[ch.Name] = ch
}

// AppendEvent records an event, evicting the oldest entries beyond MaxRecentEvents.
func (w *WorldState) AppendEvent(event string) {
	w.RecentEvents = append(w.RecentEvents, event)
	w.TrimEvents()
}

// TrimEvents enforces the MaxRecentEvents window, keeping the newest entries.
func (w *WorldState) TrimEvents() {
	if over := len(w.RecentEvents) - MaxRecentEvents; over > 0 {
		w.RecentEvents = append([]string(nil), w.RecentEvents[over:]...)
	}
}

// LastEvents returns up to n of the newest events, oldest first.
func (w *WorldState) LastEvents(n int) []string {
	if w == nil || n <= 0 {
		return nil
	}
	if len(w.RecentEvents) <= n {
		return w.RecentEvents
	}
	return w.RecentEvents[len(w.RecentEvents)-n:]
}
