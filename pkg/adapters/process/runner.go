package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/troupe/pkg/ports"
)

// Environment variables set for every invocation.
const (
	EnvSystemPrompt = "TROUPE_SYSTEM_PROMPT"
	EnvUserPrompt   = "TROUPE_USER_PROMPT"
	EnvModelName    = "TROUPE_MODEL"
	EnvTemperature  = "TROUPE_TEMPERATURE"
)

const waitDelay = 500 * time.Millisecond

// Request is written as JSON to the process's stdin.
type Request struct {
	System  string                `json:"system"`
	User    string                `json:"user"`
	Options ports.GenerateOptions `json:"options"`
}

// Model implements ports.Model by running a local command per invocation.
// The prompts reach the command both as environment variables and as a JSON
// request on stdin; the trimmed stdout is the reply. A non-zero exit, a
// timeout or a blank reply is a failure.
type Model struct {
	cfg ModelConfig
	dir string
}

// NewModel creates a process-backed model.
func NewModel(cfg ModelConfig, opts ...Option) *Model {
	m := &Model{cfg: cfg}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Option configures a Model.
type Option func(*Model)

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) Option {
	return func(m *Model) {
		m.dir = dir
	}
}

// Name returns the configured model name.
func (m *Model) Name() string {
	return m.cfg.Name
}

// Generate implements ports.Model.
func (m *Model) Generate(ctx context.Context, systemPrompt, userPrompt string, opts ports.GenerateOptions) (string, error) {
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
	}

	payload, err := json.Marshal(Request{System: systemPrompt, User: userPrompt, Options: opts})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	// Prompts travel as env vars and stdin, never as flags.
	cmd := exec.CommandContext(ctx, m.cfg.Command, m.cfg.Args...)
	cmd.Dir = m.dir
	cmd.Env = append(cmd.Environ(), m.env(systemPrompt, userPrompt, opts)...)
	cmd.Stdin = bytes.NewReader(payload)
	// Children that outlive a killed command must not hold Wait open.
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("model %s: %w", m.label(), ctxErr)
		}
		return "", fmt.Errorf("model %s execution failed: %w. Stderr: %s", m.label(), err, strings.TrimSpace(stderr.String()))
	}

	reply := strings.TrimSpace(stdout.String())
	if reply == "" {
		return "", fmt.Errorf("model %s returned an empty reply", m.label())
	}
	return reply, nil
}

func (m *Model) env(systemPrompt, userPrompt string, opts ports.GenerateOptions) []string {
	keys := make([]string, 0, len(m.cfg.Environment))
	for k := range m.cfg.Environment {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys)+4)
	for _, k := range keys {
		env = append(env, k+"="+m.cfg.Environment[k])
	}
	modelName := opts.ModelName
	if modelName == "" {
		modelName = m.cfg.Name
	}
	return append(env,
		EnvSystemPrompt+"="+systemPrompt,
		EnvUserPrompt+"="+userPrompt,
		EnvModelName+"="+modelName,
		EnvTemperature+"="+strconv.FormatFloat(opts.Temperature, 'f', -1, 64),
	)
}

func (m *Model) label() string {
	if m.cfg.Name != "" {
		return m.cfg.Name
	}
	return m.cfg.Command
}

// Registry is the allow-list of models a configuration may reference.
type Registry struct {
	models map[string]*Model
}

// NewRegistry builds a registry from loaded configs.
func NewRegistry(configs map[string]ModelConfig, opts ...Option) *Registry {
	r := &Registry{models: make(map[string]*Model, len(configs))}
	for name, cfg := range configs {
		if cfg.Name == "" {
			cfg.Name = name
		}
		r.models[name] = NewModel(cfg, opts...)
	}
	return r
}

// Get returns the named model.
func (r *Registry) Get(name string) (*Model, bool) {
	m, ok := r.models[name]
	return m, ok
}

// Names lists the registered models in order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.models))
	for n := range r.models {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
