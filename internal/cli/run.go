package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/troupe/internal/presentation/tui"
	"github.com/aretw0/troupe/pkg/domain"
	"github.com/aretw0/troupe/pkg/sanitize"
	"gopkg.in/yaml.v3"
)

// RunOptions contains all the configuration for the run command.
type RunOptions struct {
	Message   string // single user message; takes precedence over Input
	Input     string // path of a YAML/JSON message list, "-" for stdin
	SessionID string
	JSON      bool // print the final state as JSON
	Progress  bool // print stage progress to Progress writer
	Plain     bool // skip markdown rendering
}

// ReadMessages decodes a message list. YAML is accepted as a superset of
// JSON, and both a bare list and an object with a "messages" key work.
func ReadMessages(r io.Reader) ([]domain.RawMessage, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}

	var list []domain.RawMessage
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Messages []domain.RawMessage `yaml:"messages"`
	}
	if err := yaml.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse messages: %w", err)
	}
	return wrapped.Messages, nil
}

// Messages resolves and sanitizes the messages of a run.
func (o RunOptions) Messages(stdin io.Reader) ([]domain.RawMessage, error) {
	var msgs []domain.RawMessage
	switch {
	case o.Message != "":
		msgs = []domain.RawMessage{{Role: domain.RoleUser, Content: o.Message}}
	case o.Input == "-":
		m, err := ReadMessages(stdin)
		if err != nil {
			return nil, err
		}
		msgs = m
	case o.Input != "":
		f, err := os.Open(o.Input)
		if err != nil {
			return nil, fmt.Errorf("failed to open messages: %w", err)
		}
		defer f.Close()
		m, err := ReadMessages(f)
		if err != nil {
			return nil, err
		}
		msgs = m
	default:
		return nil, fmt.Errorf("nothing to run: pass --message or --input")
	}
	return sanitize.Messages(msgs)
}

// Run executes one turn and writes its result to out. Stage progress goes
// to progress when enabled.
func Run(ctx context.Context, stack *Stack, opts RunOptions, stdin io.Reader, out, progress io.Writer) error {
	msgs, err := opts.Messages(stdin)
	if err != nil {
		return err
	}

	var events <-chan domain.StageEvent
	if opts.SessionID != "" {
		events, err = stack.Engine.StreamSession(ctx, opts.SessionID, msgs)
	} else {
		events, err = stack.Engine.Stream(ctx, msgs)
	}
	if err != nil {
		return err
	}

	var printer *tui.StagePrinter
	if opts.Progress && progress != nil {
		printer = tui.NewStagePrinter(progress)
	}

	var final string
	var updates []domain.StageEvent
	for ev := range events {
		if printer != nil {
			printer.Print(ev)
		}
		if ev.Err != nil {
			return ev.Err
		}
		updates = append(updates, ev)
		if s, ok := ev.Update[domain.FieldFinalOutput].(string); ok {
			final = s
		}
	}

	if opts.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			FinalOutput string              `json:"final_output"`
			Events      []domain.StageEvent `json:"events"`
		}{final, updates})
	}

	if !opts.Plain {
		if rendered, err := tui.NewRenderer(widthOf(out))(final); err == nil {
			final = rendered
		}
	}
	_, err = fmt.Fprintln(out, final)
	return err
}

func widthOf(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		return tui.Width(f)
	}
	return tui.DefaultWidth
}
