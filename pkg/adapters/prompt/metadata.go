package prompt

import (
	"encoding/json"
	"strconv"
)

// Metadata is the frontmatter of a template document.
type Metadata struct {
	ID          string `json:"id" mapstructure:"id"`
	Stage       string `json:"stage" mapstructure:"stage"`
	Model       string `json:"model" mapstructure:"model"`
	Temperature any    `json:"temperature" mapstructure:"temperature"`
}

// temperature accepts the numeric shapes strict and lenient decoders produce.
func (m Metadata) temperature() (float64, bool) {
	switch v := m.Temperature.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}
