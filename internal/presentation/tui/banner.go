package tui

import (
	"fmt"
	"io"
	"time"

	"github.com/aretw0/troupe/pkg/domain"
	"github.com/muesli/termenv"
)

// PrintBanner outputs the troupe banner.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	lines := []struct{ text, color string }{
		{"  _                             ", "#818cf8"},
		{" | |_ _ __ ___  _   _ _ __   ___ ", "#a78bfa"},
		{" | __| '__/ _ \\| | | | '_ \\ / _ \\", "#c084fc"},
		{" | |_| | | (_) | |_| | |_) |  __/", "#e879f9"},
		{"  \\__|_|  \\___/ \\__,_| .__/ \\___|", "#f472b6"},
		{"                     |_|         ", "#fb7185"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
}

// StagePrinter writes one progress line per stage event.
type StagePrinter struct {
	out  *termenv.Output
	last time.Time
}

// NewStagePrinter creates a printer writing to w. Colors follow the
// capabilities of w; pass termenv.WithProfile(termenv.Ascii) to disable them.
func NewStagePrinter(w io.Writer, opts ...termenv.OutputOption) *StagePrinter {
	return &StagePrinter{out: termenv.NewOutput(w, opts...)}
}

// Print writes the event. Defects are printed in red, repeated attempts in yellow.
func (p *StagePrinter) Print(ev domain.StageEvent) {
	if ev.Err != nil {
		fmt.Fprintln(p.out, p.out.String("✗ "+ev.Err.Error()).Foreground(p.out.Color("#ef4444")))
		return
	}

	var elapsed time.Duration
	if !p.last.IsZero() {
		elapsed = ev.Timestamp.Sub(p.last)
	}
	p.last = ev.Timestamp

	color := "#22c55e"
	label := string(ev.Stage)
	if ev.Attempt > 1 {
		color = "#eab308"
		label = fmt.Sprintf("%s (attempt %d)", ev.Stage, ev.Attempt)
	}
	line := "✓ " + label
	if msg := ev.Update.ErrorText(); msg != "" {
		line += " - " + msg
	}
	if elapsed > 0 {
		line += fmt.Sprintf(" [%s]", elapsed.Round(time.Millisecond))
	}
	fmt.Fprintln(p.out, p.out.String(line).Foreground(p.out.Color(color)))
}
