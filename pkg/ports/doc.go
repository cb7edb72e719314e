/*
Package ports defines the driven ports (interfaces) of the troupe engine.

These interfaces decouple the pipeline from its collaborators so the stages can
run against real adapters or test doubles alike.

# Key Interfaces

  - Model: the language-model capability used by Narrator, Director, Persona and Composer.
  - PromptRenderer: resolves and fills the prompt template of each stage.
  - TableSource: returns the read-only table snapshot attached to parsed input.
  - SessionStore: persists world state between turns of a conversation.
  - DistributedLocker: coordinates concurrent turns of one session across replicas.
*/
package ports
