package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/aretw0/troupe/internal/cli"
	"github.com/aretw0/troupe/internal/config"
	"github.com/aretw0/troupe/internal/logging"
	"github.com/aretw0/troupe/pkg/adapters/file"
	"github.com/aretw0/troupe/pkg/adapters/prompt"
	"github.com/aretw0/troupe/pkg/domain"
	"github.com/aretw0/troupe/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const aliceMessage = "<character_info>name: Alice</character_info>Hello."

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func modelsFile(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell fixtures require sh")
	}
	return writeFile(t, t.TempDir(), "models.yaml", `models:
  - name: echo
    command: sh
    args: ["-c", "printf '%s at %s' \"$TROUPE_MODEL\" \"$TROUPE_TEMPERATURE\""]
`)
}

func TestCreateEngine_Defaults(t *testing.T) {
	stack, err := cli.CreateEngine(context.Background(), config.Default(), logging.NewNop())
	require.NoError(t, err)
	defer stack.Close()

	assert.Nil(t, stack.Templates)
	assert.NotNil(t, stack.Metrics)
	assert.ElementsMatch(t, []string{"narrator", "director", "persona", "composer"}, stack.Prompts.IDs())

	out, err := stack.Engine.Run(context.Background(), []domain.RawMessage{{Role: domain.RoleUser, Content: aliceMessage}})
	require.NoError(t, err)
	assert.Equal(t, domain.NoRepliesSentinel, out)
}

func TestCreateEngine_StageModelFromRegistry(t *testing.T) {
	cfg := config.Default()
	cfg.Models = modelsFile(t)
	cfg.Stages = map[string]config.StageConfig{
		"persona": {Model: "echo", Temperature: 0.4},
	}

	stack, err := cli.CreateEngine(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	defer stack.Close()

	out, err := stack.Engine.Run(context.Background(), []domain.RawMessage{{Role: domain.RoleUser, Content: aliceMessage}})
	require.NoError(t, err)
	assert.Equal(t, "【Alice】\necho at 0.4", out)
}

func TestCreateEngine_ReloadedTemplateOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Models = modelsFile(t)
	cfg.Stages = map[string]config.StageConfig{"persona": {Model: "echo"}}

	stack, err := cli.CreateEngine(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	defer stack.Close()

	msgs := []domain.RawMessage{{Role: domain.RoleUser, Content: aliceMessage}}
	out, err := stack.Engine.Run(context.Background(), msgs)
	require.NoError(t, err)
	assert.Equal(t, "【Alice】\necho at 0", out)

	templates := prompt.Defaults()
	for i := range templates {
		if templates[i].ID == string(domain.StagePersona) {
			templates[i].Options = ports.GenerateOptions{ModelName: "tuned", Temperature: 0.6}
		}
	}
	stack.Prompts.Replace(templates...)

	out, err = stack.Engine.Run(context.Background(), msgs)
	require.NoError(t, err)
	assert.Equal(t, "【Alice】\ntuned at 0.6", out)
}

func TestCreateEngine_UnknownModel(t *testing.T) {
	cfg := config.Default()
	cfg.Models = modelsFile(t)
	cfg.DefaultModel = "missing"

	_, err := cli.CreateEngine(context.Background(), cfg, logging.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown model "missing"`)
}

func TestCreateEngine_ModelWithoutModelsFile(t *testing.T) {
	cfg := config.Default()
	cfg.DefaultModel = "echo"

	_, err := cli.CreateEngine(context.Background(), cfg, logging.NewNop())
	assert.Error(t, err)
}

func TestCreateEngine_TemplateDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "persona.md", "---\nstage: persona\ntemperature: 0.9\n---\nYou play {{character_name}} with flair.\n")

	cfg := config.Default()
	cfg.Templates = dir
	stack, err := cli.CreateEngine(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	defer stack.Close()

	require.NotNil(t, stack.Templates)
	body, err := stack.Prompts.Render("persona", map[string]string{"character_name": "Alice"})
	require.NoError(t, err)
	assert.Equal(t, "You play Alice with flair.", body)

	opts, ok := stack.Prompts.Options("persona")
	require.True(t, ok)
	assert.Equal(t, 0.9, opts.Temperature)
}

func TestCreateEngine_FileSessionStore(t *testing.T) {
	cfg := config.Default()
	cfg.Session.Store = "file"
	cfg.Session.Path = t.TempDir()

	stack, err := cli.CreateEngine(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	defer stack.Close()

	_, ok := stack.Store.(*file.Store)
	require.True(t, ok)

	_, err = stack.Engine.RunSession(context.Background(), "s1", []domain.RawMessage{{Role: domain.RoleUser, Content: aliceMessage}})
	require.NoError(t, err)
	ids, err := stack.Store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids)
}

func TestReadMessages(t *testing.T) {
	t.Run("JSON List", func(t *testing.T) {
		msgs, err := cli.ReadMessages(strings.NewReader(`[{"role":"user","content":"hi"}]`))
		require.NoError(t, err)
		assert.Equal(t, []domain.RawMessage{{Role: "user", Content: "hi"}}, msgs)
	})

	t.Run("YAML Wrapped", func(t *testing.T) {
		msgs, err := cli.ReadMessages(strings.NewReader("messages:\n  - role: assistant\n    content: hello\n  - role: user\n    content: bye\n"))
		require.NoError(t, err)
		assert.Len(t, msgs, 2)
		assert.Equal(t, "bye", msgs[1].Content)
	})

	t.Run("Malformed", func(t *testing.T) {
		_, err := cli.ReadMessages(strings.NewReader("messages: [unterminated"))
		assert.Error(t, err)
	})
}

func TestRun(t *testing.T) {
	cfg := config.Default()
	cfg.Models = modelsFile(t)
	cfg.Stages = map[string]config.StageConfig{"persona": {Model: "echo"}}
	stack, err := cli.CreateEngine(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	defer stack.Close()

	t.Run("Plain Message", func(t *testing.T) {
		var out, progress bytes.Buffer
		err := cli.Run(context.Background(), stack, cli.RunOptions{Message: aliceMessage, Plain: true, Progress: true}, nil, &out, &progress)
		require.NoError(t, err)
		assert.Equal(t, "【Alice】\necho at 0\n", out.String())
		assert.Contains(t, progress.String(), "composer")
	})

	t.Run("JSON From Stdin", func(t *testing.T) {
		var out bytes.Buffer
		stdin := strings.NewReader(`[{"role":"user","content":"` + strings.ReplaceAll(aliceMessage, `"`, `\"`) + `"}]`)
		err := cli.Run(context.Background(), stack, cli.RunOptions{Input: "-", JSON: true}, stdin, &out, nil)
		require.NoError(t, err)

		var res struct {
			FinalOutput string `json:"final_output"`
			Events      []struct {
				Stage string `json:"stage"`
			} `json:"events"`
		}
		require.NoError(t, json.Unmarshal(out.Bytes(), &res))
		assert.Equal(t, "【Alice】\necho at 0", res.FinalOutput)
		assert.Len(t, res.Events, 6)
	})

	t.Run("Session", func(t *testing.T) {
		var out bytes.Buffer
		err := cli.Run(context.Background(), stack, cli.RunOptions{Message: aliceMessage, SessionID: "cli", Plain: true}, nil, &out, nil)
		require.NoError(t, err)
		sess, err := stack.Store.Load(context.Background(), "cli")
		require.NoError(t, err)
		assert.Equal(t, 1, sess.Turns)
	})

	t.Run("Nothing To Run", func(t *testing.T) {
		err := cli.Run(context.Background(), stack, cli.RunOptions{}, nil, &bytes.Buffer{}, nil)
		assert.Error(t, err)
	})

	t.Run("Invalid Role", func(t *testing.T) {
		stdin := strings.NewReader(`[{"role":"system","content":"x"}]`)
		err := cli.Run(context.Background(), stack, cli.RunOptions{Input: "-"}, stdin, &bytes.Buffer{}, nil)
		assert.Error(t, err)
	})
}
