package main

import (
	"bytes"
	"testing"

	"github.com/aretw0/troupe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCommand(t *testing.T, args ...string) string {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return buf.String()
}

func TestVersionCommand(t *testing.T) {
	out := executeCommand(t, "version")
	assert.Equal(t, "troupe version "+troupe.Version+"\n", out)
}

func TestGraphCommand(t *testing.T) {
	out := executeCommand(t, "graph")
	assert.Contains(t, out, "graph TD")
	assert.Contains(t, out, "fanout")
	assert.NotContains(t, out, "classDef visited")
}

func TestGraphCommand_Trace(t *testing.T) {
	out := executeCommand(t, "graph", "--trace", "<character_info>name: Alice</character_info>Hello.")
	assert.Contains(t, out, "class fanout visited;")
	assert.Contains(t, out, "class compose visited;")
	assert.Contains(t, out, "class done current;")
}

func TestSessionCommand_EmptyStore(t *testing.T) {
	t.Setenv("TROUPE_SESSION_STORE", "file")
	t.Setenv("TROUPE_SESSION_PATH", t.TempDir())
	out := executeCommand(t, "session", "ls")
	assert.Equal(t, "No sessions found.\n", out)
}
