package stages

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/troupe/pkg/domain"
)

// firstBalanced returns the first substring of s that starts with open and
// ends at its matching close, skipping delimiters inside JSON strings.
func firstBalanced(s string, open, close byte) (string, bool) {
	start := strings.IndexByte(s, open)
	if start < 0 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// decodeFirstObject extracts the first JSON object in a model reply into v.
func decodeFirstObject(reply string, v any) error {
	raw, ok := firstBalanced(reply, '{', '}')
	if !ok {
		return fmt.Errorf("%w: no JSON object in reply", domain.ErrMalformedOutput)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedOutput, err)
	}
	return nil
}

// decodeFirstArray extracts the first JSON array in a model reply into v.
func decodeFirstArray(reply string, v any) error {
	raw, ok := firstBalanced(reply, '[', ']')
	if !ok {
		return fmt.Errorf("%w: no JSON array in reply", domain.ErrMalformedOutput)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedOutput, err)
	}
	return nil
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}
