package ports

import "context"

// GenerateOptions are the generation parameters passed with every model invocation.
type GenerateOptions struct {
	Temperature float64 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`
	ModelName   string  `json:"model" yaml:"model" mapstructure:"model"`
}

// Model is the language-model capability: prompt in, text out, or failure.
// Timeouts and backoff are the implementation's concern and must surface as an error.
type Model interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, opts GenerateOptions) (string, error)
}

// ModelFunc adapts a function to the Model interface.
type ModelFunc func(ctx context.Context, systemPrompt, userPrompt string, opts GenerateOptions) (string, error)

// Generate calls f.
func (f ModelFunc) Generate(ctx context.Context, systemPrompt, userPrompt string, opts GenerateOptions) (string, error) {
	return f(ctx, systemPrompt, userPrompt, opts)
}
