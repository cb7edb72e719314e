// Package state holds the shared GraphState of a run and the per-field merge
// policy the orchestrator applies to every partial update.
package state
