package http_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aretw0/troupe"
	"github.com/aretw0/troupe/internal/testutils"
	httpAdapter "github.com/aretw0/troupe/pkg/adapters/http"
	"github.com/aretw0/troupe/pkg/domain"
	"github.com/aretw0/troupe/pkg/observability"
	"github.com/aretw0/troupe/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const turnBody = `{"messages":[{"role":"user","content":"<character_info>name: Alice</character_info>Hello."}]}`

func newHandler(t *testing.T, persona ports.Model, opts ...httpAdapter.Option) http.Handler {
	t.Helper()
	eng, err := troupe.New(troupe.WithModel(domain.StagePersona, persona, ports.GenerateOptions{}))
	require.NoError(t, err)
	return httpAdapter.NewHandler(eng, opts...)
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

type sseEvent struct {
	Name string
	Data string
}

func readEvents(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	var cur sseEvent
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			cur.Name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.Data = strings.TrimPrefix(line, "data: ")
		case line == "":
			if cur.Name != "" {
				events = append(events, cur)
			}
			cur = sseEvent{}
		}
	}
	return events
}

func TestPostTurn(t *testing.T) {
	h := newHandler(t, testutils.Reply("Alice waves."))

	w := do(h, http.MethodPost, "/v1/turns", turnBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp httpAdapter.TurnResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Alice waves.", resp.FinalOutput)
	assert.Equal(t, []string{"Alice"}, resp.ActiveCharacters)
	assert.Equal(t, 0, resp.RetryCount)
}

func TestPostTurn_BadRequests(t *testing.T) {
	h := newHandler(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"Malformed JSON", `{"messages":`},
		{"No Messages", `{"messages":[]}`},
		{"Unknown Role", `{"messages":[{"role":"system","content":"x"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(h, http.MethodPost, "/v1/turns", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestPostTurn_BodyTooLarge(t *testing.T) {
	h := newHandler(t, nil)
	body := `{"messages":[{"role":"user","content":"` + strings.Repeat("a", httpAdapter.MaxBodySize) + `"}]}`

	w := do(h, http.MethodPost, "/v1/turns", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), `"error"`)

	w = do(h, http.MethodPost, "/v1/turns/stream", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestSessions(t *testing.T) {
	h := newHandler(t, testutils.Reply("Alice waves."))
	body := `{"session_id":"s1","messages":[{"role":"user","content":"<character_info>name: Alice</character_info>Hi."}]}`

	w := do(h, http.MethodPost, "/v1/turns", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"session_id":"s1"`)

	w = do(h, http.MethodGet, "/v1/sessions", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `["s1"]`, w.Body.String())

	w = do(h, http.MethodGet, "/v1/sessions/s1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var sess domain.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
	assert.Equal(t, 1, sess.Turns)
	assert.True(t, sess.World.Characters["Alice"].Present)

	w = do(h, http.MethodDelete, "/v1/sessions/s1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(h, http.MethodGet, "/v1/sessions/s1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStreamTurn(t *testing.T) {
	h := newHandler(t, testutils.Reply("Alice waves."))

	w := do(h, http.MethodPost, "/v1/turns/stream", turnBody)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	events := readEvents(t, w.Body.String())
	require.Len(t, events, 7)
	for _, ev := range events[:6] {
		assert.Equal(t, "stage", ev.Name)
	}
	var first struct {
		Stage string `json:"stage"`
	}
	require.NoError(t, json.Unmarshal([]byte(events[0].Data), &first))
	assert.Equal(t, "parser", first.Stage)

	assert.Equal(t, "done", events[6].Name)
	assert.JSONEq(t, `{"final_output":"Alice waves.","retry_count":0}`, events[6].Data)
}

func TestStreamTurn_Defect(t *testing.T) {
	panicky := ports.ModelFunc(func(context.Context, string, string, ports.GenerateOptions) (string, error) {
		panic("boom")
	})
	h := newHandler(t, panicky)

	w := do(h, http.MethodPost, "/v1/turns/stream", turnBody)
	events := readEvents(t, w.Body.String())
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, "error", last.Name)
	assert.Contains(t, last.Data, "panicked")
}

func TestGetPipeline(t *testing.T) {
	h := newHandler(t, nil)

	w := do(h, http.MethodGet, "/v1/pipeline", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "graph TD\n"))
	assert.Contains(t, w.Body.String(), "evaluate -. \"retry_available / clear_outputs\" .-> fanout")

	w = do(h, http.MethodGet, "/v1/pipeline?format=json", "")
	require.Equal(t, http.StatusOK, w.Code)
	var transitions []domain.Transition
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &transitions))
	assert.Len(t, transitions, 8)
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	eng, err := troupe.New(troupe.WithLifecycleHooks(metrics.Hooks()))
	require.NoError(t, err)
	h := httpAdapter.NewHandler(eng, httpAdapter.WithMetrics(reg))

	w := do(h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	require.Equal(t, http.StatusOK, do(h, http.MethodPost, "/v1/turns", turnBody).Code)

	w = do(h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "troupe_turns_total 1")
}

func TestMetricsDisabled(t *testing.T) {
	h := newHandler(t, nil)
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/metrics", "").Code)
}
