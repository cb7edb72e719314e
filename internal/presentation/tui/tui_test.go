package tui_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/troupe/internal/presentation/tui"
	"github.com/aretw0/troupe/pkg/domain"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer_RendersMarkdown(t *testing.T) {
	render := tui.NewRenderer(40)
	out, err := render("**Alice** waves.")
	require.NoError(t, err)
	assert.Contains(t, out, "Alice")
	assert.Contains(t, out, "waves.")
}

func TestWidth_NonTerminal(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out.txt"))
	require.NoError(t, err)
	defer f.Close()

	assert.False(t, tui.IsTerminal(f))
	assert.Equal(t, tui.DefaultWidth, tui.Width(f))
}

func TestStagePrinter(t *testing.T) {
	var buf bytes.Buffer
	p := tui.NewStagePrinter(&buf, termenv.WithProfile(termenv.Ascii))
	start := time.Now()

	p.Print(domain.StageEvent{Stage: domain.StageParser, Attempt: 1, Timestamp: start})
	p.Print(domain.StageEvent{Stage: domain.StagePersona, Attempt: 2, Timestamp: start.Add(1500 * time.Millisecond)})
	p.Print(domain.StageEvent{
		Stage:     domain.StageNarrator,
		Attempt:   1,
		Update:    domain.Update{domain.FieldError: "narrator: missing prerequisite"},
		Timestamp: start.Add(2 * time.Second),
	})
	p.Print(domain.StageEvent{Err: errors.New("stage persona: boom")})

	assert.Equal(t, "✓ parser\n"+
		"✓ persona (attempt 2) [1.5s]\n"+
		"✓ narrator - narrator: missing prerequisite [500ms]\n"+
		"✗ stage persona: boom\n", buf.String())
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	tui.PrintBanner(&buf)
	assert.Contains(t, buf.String(), "|_|")
}
