package model

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/troupe/pkg/domain"
	"github.com/aretw0/troupe/pkg/ports"
)

// Guard wraps a model with a failure breaker: after maxFailures consecutive
// failures the model is skipped for the cooldown, and calls fail fast with
// domain.ErrModelUnavailable so stages take their degrade path without
// waiting on a dead backend. Safe for concurrent use.
type Guard struct {
	next        ports.Model
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time

	mu            sync.Mutex
	failures      int
	disabledUntil time.Time
}

// NewGuard wraps next. A non-positive maxFailures disables the breaker.
func NewGuard(next ports.Model, maxFailures int, cooldown time.Duration) *Guard {
	return &Guard{
		next:        next,
		maxFailures: maxFailures,
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// Generate implements ports.Model.
func (g *Guard) Generate(ctx context.Context, systemPrompt, userPrompt string, opts ports.GenerateOptions) (string, error) {
	if until, ok := g.allow(); !ok {
		return "", fmt.Errorf("%w: cooling down until %s", domain.ErrModelUnavailable, until.Format(time.RFC3339))
	}
	reply, err := g.next.Generate(ctx, systemPrompt, userPrompt, opts)
	if err != nil {
		g.recordFailure()
		return "", err
	}
	g.recordSuccess()
	return reply, nil
}

func (g *Guard) allow() (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.disabledUntil.IsZero() {
		return time.Time{}, true
	}
	return g.disabledUntil, g.now().After(g.disabledUntil)
}

func (g *Guard) recordFailure() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.maxFailures <= 0 {
		return
	}
	g.failures++
	if g.failures >= g.maxFailures {
		g.disabledUntil = g.now().Add(g.cooldown)
	}
}

func (g *Guard) recordSuccess() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures = 0
	g.disabledUntil = time.Time{}
}

// Failures returns the current consecutive failure count.
func (g *Guard) Failures() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.failures
}

// DisabledUntil returns the end of the current cooldown, or the zero time.
func (g *Guard) DisabledUntil() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.disabledUntil
}
