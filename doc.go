/*
Package troupe is a multi-agent role-play orchestration engine.

A turn takes the raw chat messages of a role-play session and runs them
through a fixed pipeline of stages driven by an explicit state machine:

	parse -> narrate -> direct -> fanout -> evaluate -> compose
	                                ^           |
	                                +-- retry --+

The Parser extracts tagged preset instructions, character settings and
history from the messages. The Narrator maintains the world state (scene,
time, characters present, recent events). The Director picks the characters
that reply and builds a context for each of them that only holds what that
character can perceive. The persona fan-out generates every reply
concurrently, the Evaluator applies a syntactic format gate (with a bounded
number of regenerations) and the Composer fuses the replies into the final
text.

Every model-backed stage degrades to a rule-based or deterministic path when
no model is configured or the model fails, so a turn always completes unless
a defect aborts it.

# Usage

	eng, err := troupe.New(
		troupe.WithModel(domain.StagePersona, myModel, ports.GenerateOptions{Temperature: 0.8}),
	)
	if err != nil {
		log.Fatal(err)
	}

	out, err := eng.Run(ctx, []domain.RawMessage{
		{Role: "user", Content: "<character_info>name: Alice</character_info>Hello there."},
	})

Stream delivers one StageEvent per completed stage instead of the final text,
and RunSession keeps the world state of a conversation between turns in a
SessionStore (memory, file or Redis).

# Adapters

  - pkg/adapters/process: a Model that runs a configured command per request.
  - pkg/adapters/prompt: stage prompt templates, built-in or loaded from a Markdown directory.
  - pkg/adapters/table: read-only table snapshots from YAML/JSON files or SQLite.
  - pkg/adapters/http and pkg/adapters/mcp: network surfaces over an Engine.
*/
package troupe
