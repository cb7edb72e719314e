package stages

import (
	"context"
	"strings"

	"github.com/aretw0/troupe/pkg/domain"
)

// Parser turns raw messages into ParsedInput.
type Parser struct {
	deps Deps
}

// NewParser creates the Parser stage.
func NewParser(deps Deps) *Parser {
	return &Parser{deps: deps}
}

func (p *Parser) Name() domain.StageName { return domain.StageParser }

// Execute classifies tagged content, strips all markup and collects plain dialogue.
func (p *Parser) Execute(ctx context.Context, snapshot domain.GraphState) (domain.Update, error) {
	parsed := Parse(snapshot.RawMessages)
	parsed.TableData = p.readTable(ctx)

	p.deps.logger(domain.StageParser).Debug("Parsed input",
		"messages", len(snapshot.RawMessages),
		"history", len(parsed.ChatHistory),
		"preset", len(parsed.PresetInstructions),
		"settings", len(parsed.CharacterSettings),
	)
	return domain.Update{domain.FieldParsedInput: parsed}, nil
}

func (p *Parser) readTable(ctx context.Context) any {
	if p.deps.Table == nil {
		return nil
	}
	snap, err := p.deps.Table.Snapshot(ctx)
	if err != nil {
		p.deps.logger(domain.StageParser).Warn("Table snapshot unavailable", "err", err)
		return nil
	}
	return snap
}

// Parse is the pure part of the Parser: it never touches external sources.
func Parse(messages []domain.RawMessage) *domain.ParsedInput {
	parsed := &domain.ParsedInput{
		PresetInstructions: make(map[string]string),
		CharacterSettings:  make(map[string]string),
		History:            make(map[string]string),
	}

	lastUser := ""
	for _, msg := range messages {
		spans, dialogue := scanTags(msg.Content)
		for _, span := range spans {
			// Catalog keys are lowercase whatever the tag's spelling.
			name := strings.ToLower(span.Name)
			switch Classify(name) {
			case CatalogPreset:
				parsed.PresetInstructions[name] = span.Inner
			case CatalogCharacter:
				parsed.CharacterSettings[name] = span.Inner
			case CatalogHistory:
				parsed.History[name] = span.Inner
			}
		}

		if dialogue == "" {
			continue
		}
		if msg.Role != domain.RoleUser && msg.Role != domain.RoleAssistant {
			continue
		}
		parsed.ChatHistory = append(parsed.ChatHistory, domain.RawMessage{Role: msg.Role, Content: dialogue})
		if msg.Role == domain.RoleUser {
			lastUser = dialogue
		}
	}
	parsed.UserInput = lastUser
	return parsed
}
