// Package orchestrator drives one turn through the fixed stage sequence.
//
// The pipeline is an explicit finite-state machine: every state runs one
// stage, and the ordered transition table decides the next state after the
// stage's update has been merged. The only conditional edges leave the
// evaluate state, which either composes or loops back to the fan-out until
// the retry bound forces a pass.
package orchestrator
