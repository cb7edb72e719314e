// Package process runs local commands as language models.
//
// Any executable that reads a prompt and prints a reply can back a stage:
// a wrapper script around a hosted API, a local inference binary, or a fixed
// responder in tests. Commands come from an allow-list loaded from
// models.yaml; prompts are never passed as command-line flags.
package process
