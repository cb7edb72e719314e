package ports

// PromptRenderer resolves the prompt template for a stage and substitutes {{name}} placeholders.
// Placeholders without a matching variable are left verbatim.
type PromptRenderer interface {
	Render(stageID string, vars map[string]string) (string, error)
}
