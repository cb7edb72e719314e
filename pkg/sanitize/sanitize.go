// Package sanitize cleans message content arriving at the transport edges
// (HTTP, MCP, CLI) before it reaches the engine.
package sanitize

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aretw0/troupe/pkg/domain"
)

var (
	// DefaultMaxInputSize is 64KB per message. Role-play prompts carry
	// whole character sheets, so the limit is generous.
	DefaultMaxInputSize = 64 * 1024
	// EnvMaxInputSize is the environment variable to override the default
	EnvMaxInputSize = "TROUPE_MAX_INPUT_SIZE"
)

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
	ErrInvalidRole   = errors.New("invalid message role")
)

// Input cleans user input by enforcing size limits,
// validating UTF-8, and stripping dangerous control characters.
func Input(input string) (string, error) {
	limit := maxInputSize()
	if len(input) > limit {
		// Rejected rather than truncated: a cut tag block would change how the input parses.
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), limit)
	}

	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	// Newline, tab and carriage return are kept; ESC, NULL, BEL and the
	// other control characters are removed.
	clean := true
	for _, r := range input {
		if unicode.IsControl(r) && !isSafeControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return input, nil
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !unicode.IsControl(r) || isSafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

// Messages sanitizes every message and normalizes its role.
// An empty role is treated as user; roles other than user and assistant are rejected.
func Messages(msgs []domain.RawMessage) ([]domain.RawMessage, error) {
	out := make([]domain.RawMessage, len(msgs))
	for i, m := range msgs {
		role := strings.ToLower(strings.TrimSpace(m.Role))
		switch role {
		case "":
			role = domain.RoleUser
		case domain.RoleUser, domain.RoleAssistant:
		default:
			return nil, fmt.Errorf("message %d: %w %q", i, ErrInvalidRole, m.Role)
		}
		content, err := Input(m.Content)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		out[i] = domain.RawMessage{Role: role, Content: content}
	}
	return out, nil
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}

func maxInputSize() int {
	if val := os.Getenv(EnvMaxInputSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxInputSize
}
