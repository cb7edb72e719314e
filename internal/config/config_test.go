package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "troupe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
templates: ./prompts
default_model: local
fanout_limit: 4
stages:
  narrator:
    model: none
  persona:
    model: creative
    temperature: 0.9
table:
  kind: sqlite
  path: world.db
  tables: npcs,items
guard:
  cooldown: 1m
session:
  store: file
  path: .sessions
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 4, cfg.FanOutLimit)
	assert.Equal(t, []string{"npcs", "items"}, cfg.Table.Tables)
	assert.Equal(t, time.Minute, cfg.Guard.Cooldown)
	assert.Equal(t, 3, cfg.Guard.MaxFailures, "unset keys keep their defaults")
	assert.Equal(t, "file", cfg.Session.Store)
	assert.InDelta(t, 0.9, cfg.Stages["persona"].Temperature, 1e-9)

	name, ok := cfg.StageModel("persona")
	assert.True(t, ok)
	assert.Equal(t, "creative", name)

	_, ok = cfg.StageModel("narrator")
	assert.False(t, ok)

	name, ok = cfg.StageModel("director")
	assert.True(t, ok)
	assert.Equal(t, "local", name)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "log_level: debug\nsession:\n  store: memory\n")
	t.Setenv("TROUPE_LOG_LEVEL", "warn")
	t.Setenv("TROUPE_SESSION_STORE", "redis")
	t.Setenv("TROUPE_SESSION_REDIS_ADDR", "localhost:6379")
	t.Setenv("TROUPE_SESSION_TTL", "2h")
	t.Setenv("TROUPE_HTTP_ADDR", ":9090")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "redis", cfg.Session.Store)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown store", "session:\n  store: etcd\n"},
		{"redis without addr", "session:\n  store: redis\n"},
		{"lock without redis", "session:\n  distributed_lock: true\n"},
		{"sqlite without path", "table:\n  kind: sqlite\n"},
		{"unknown key", "colour: blue\n"},
		{"bad duration", "guard:\n  cooldown: soon\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
