package state

import "github.com/aretw0/troupe/pkg/domain"

// Store holds the aggregate of one run. It is owned by a single orchestrator
// goroutine and applies updates strictly between stage executions.
type Store struct {
	current domain.GraphState
	table   Table
}

// NewStore creates a store seeded with the initial state.
// A nil table selects DefaultTable.
func NewStore(initial domain.GraphState, table Table) *Store {
	if table == nil {
		table = DefaultTable
	}
	return &Store{current: initial.Clone(), table: table}
}

// Snapshot returns an isolated copy for a stage to read.
func (s *Store) Snapshot() domain.GraphState {
	return s.current.Clone()
}

// Apply merges an update into the aggregate.
func (s *Store) Apply(update domain.Update) error {
	next, err := s.table.Merge(s.current, update)
	if err != nil {
		return err
	}
	s.current = next
	return nil
}

// ClearOutputs empties personaOutputs ahead of a retry. The Append policy
// never shrinks the slice, so this is the only path that resets it.
func (s *Store) ClearOutputs() {
	s.current.PersonaOutputs = nil
}

// State returns a copy of the current aggregate.
func (s *Store) State() domain.GraphState {
	return s.current.Clone()
}
