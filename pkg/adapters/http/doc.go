/*
Package http exposes a troupe Engine over HTTP using chi.

# Routes

  - POST /v1/turns: run one turn; with session_id the world state is kept between turns.
  - POST /v1/turns/stream: the same turn as Server-Sent Events, one "stage" event per completed stage, then "done" or "error".
  - GET /v1/pipeline: the orchestration state machine as Mermaid (or JSON with ?format=json).
  - GET, DELETE /v1/sessions/{id} and GET /v1/sessions: session inspection.
  - GET /health and, when enabled, GET /metrics.
*/
package http
