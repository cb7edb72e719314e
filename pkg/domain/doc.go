/*
Package domain contains the core data model of the troupe orchestration engine.

It defines the shared state record threaded through the pipeline, the partial
updates stages return, the world model maintained by the Narrator and the events
emitted for observability. The package is kept free of I/O and external
dependencies.

# Key Entities

  - GraphState: the aggregate for one run (parsed input, world, selections, outputs).
  - Update: a partial fragment keyed by Field, merged centrally by the orchestrator.
  - WorldState: scene, time, characters and a bounded window of recent events.
  - StageEvent: what the streaming entry point emits after every stage.
*/
package domain
