package process_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/aretw0/troupe/pkg/adapters/process"
	"github.com/aretw0/troupe/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shell(t *testing.T, script string) process.ModelConfig {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell fixtures require sh")
	}
	return process.ModelConfig{Name: "test", Command: "sh", Args: []string{"-c", script}}
}

func TestModel_Generate(t *testing.T) {
	ctx := context.Background()

	t.Run("Prompts via Env Vars", func(t *testing.T) {
		m := process.NewModel(shell(t, `printf '%s|%s|%s|%s' "$TROUPE_SYSTEM_PROMPT" "$TROUPE_USER_PROMPT" "$TROUPE_MODEL" "$TROUPE_TEMPERATURE"`))
		reply, err := m.Generate(ctx, "be terse", "hello", ports.GenerateOptions{Temperature: 0.5})
		require.NoError(t, err)
		assert.Equal(t, "be terse|hello|test|0.5", reply)
	})

	t.Run("Request on Stdin", func(t *testing.T) {
		m := process.NewModel(shell(t, `cat`))
		reply, err := m.Generate(ctx, "sys", "usr", ports.GenerateOptions{ModelName: "big"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"system":"sys","user":"usr","options":{"temperature":0,"model":"big"}}`, reply)
	})

	t.Run("Configured Environment", func(t *testing.T) {
		cfg := shell(t, `echo "$PERSONA_MOOD"`)
		cfg.Environment = map[string]string{"PERSONA_MOOD": "grim"}
		reply, err := process.NewModel(cfg).Generate(ctx, "", "", ports.GenerateOptions{})
		require.NoError(t, err)
		assert.Equal(t, "grim", reply)
	})

	t.Run("Non-zero Exit", func(t *testing.T) {
		m := process.NewModel(shell(t, `echo boom >&2; exit 3`))
		_, err := m.Generate(ctx, "", "", ports.GenerateOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	})

	t.Run("Blank Reply", func(t *testing.T) {
		m := process.NewModel(shell(t, `echo "   "`))
		_, err := m.Generate(ctx, "", "", ports.GenerateOptions{})
		assert.Error(t, err)
	})

	t.Run("Timeout", func(t *testing.T) {
		cfg := shell(t, `sleep 5`)
		cfg.Timeout = 100 * time.Millisecond
		start := time.Now()
		_, err := process.NewModel(cfg).Generate(ctx, "", "", ports.GenerateOptions{})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), 3*time.Second)
	})
}

func TestLoadModels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`models:
  - name: local
    command: ./bin/llm
    args: ["--fast"]
    timeout: 30s
  - name: broken
`), 0644))

	models, err := process.LoadModels(path)
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, []string{"--fast"}, models["local"].Args)
	assert.Equal(t, 30*time.Second, models["local"].Timeout)

	missing, err := process.LoadModels(filepath.Join(dir, "absent.yaml"))
	require.NoError(t, err)
	assert.Empty(t, missing)

	reg := process.NewRegistry(models)
	assert.Equal(t, []string{"local"}, reg.Names())
	m, ok := reg.Get("local")
	require.True(t, ok)
	assert.Equal(t, "local", m.Name())
}
