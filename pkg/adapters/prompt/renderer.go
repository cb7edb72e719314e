package prompt

import (
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/aretw0/troupe/pkg/domain"
	"github.com/aretw0/troupe/pkg/ports"
)

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

// Template is one stage's prompt with its optional generation overrides.
type Template struct {
	ID      string
	Body    string
	Options ports.GenerateOptions
}

// Renderer substitutes {{name}} placeholders into stage templates.
// Placeholders without a matching variable are left verbatim.
// It is safe for concurrent use; Replace swaps the template set atomically.
type Renderer struct {
	mu        sync.RWMutex
	templates map[string]Template
}

// NewRenderer creates a renderer over the given templates.
func NewRenderer(templates ...Template) *Renderer {
	r := &Renderer{}
	r.Replace(templates...)
	return r
}

// Render implements ports.PromptRenderer.
func (r *Renderer) Render(stageID string, vars map[string]string) (string, error) {
	r.mu.RLock()
	t, ok := r.templates[stageID]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrTemplateNotFound, stageID)
	}
	return Substitute(t.Body, vars), nil
}

// Options returns the generation overrides declared by a stage template.
func (r *Renderer) Options(stageID string) (ports.GenerateOptions, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[stageID]
	return t.Options, ok
}

// IDs lists the known template identifiers in order.
func (r *Renderer) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.templates))
	for id := range r.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Replace swaps the whole template set.
func (r *Renderer) Replace(templates ...Template) {
	m := make(map[string]Template, len(templates))
	for _, t := range templates {
		m[t.ID] = t
	}
	r.mu.Lock()
	r.templates = m
	r.mu.Unlock()
}

// Substitute replaces every {{name}} with vars[name], leaving unknown names untouched.
func Substitute(body string, vars map[string]string) string {
	return placeholder.ReplaceAllStringFunc(body, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return m
	})
}
