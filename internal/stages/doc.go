/*
Package stages implements the executors of the orchestration pipeline.

Every stage is a function from an immutable GraphState snapshot to a partial
Update. Stages that can use a language model follow the same degrade policy:
with no model configured they take a rule-based or deterministic path, and when
an invocation fails or the reply is malformed they fall back instead of
aborting the run.
*/
package stages
