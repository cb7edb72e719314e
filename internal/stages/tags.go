package stages

import (
	"regexp"
	"strings"
)

// Catalog is the bucket a recognized tag is filed under.
type Catalog int

const (
	CatalogNone Catalog = iota
	CatalogPreset
	CatalogCharacter
	CatalogHistory
)

var catalogs = map[string]Catalog{
	"fiction_style":         CatalogPreset,
	"writing_style":         CatalogPreset,
	"writing_rules":         CatalogPreset,
	"output_format":         CatalogPreset,
	"narrative_perspective": CatalogPreset,
	"word_count":            CatalogPreset,
	"system_prompt":         CatalogPreset,
	"constraints":           CatalogPreset,

	"character_info":     CatalogCharacter,
	"char_info":          CatalogCharacter,
	"character_settings": CatalogCharacter,
	"info_settings":      CatalogCharacter,
	"world_info":         CatalogCharacter,
	"user_persona":       CatalogCharacter,
	"scenario":           CatalogCharacter,

	"chat_history": CatalogHistory,
	"history":      CatalogHistory,
	"summary":      CatalogHistory,
	"memory":       CatalogHistory,
}

// Classify returns the catalog of a tag name, or CatalogNone for unknown names.
func Classify(name string) Catalog {
	return catalogs[strings.ToLower(name)]
}

var (
	openTag  = regexp.MustCompile(`<([A-Za-z_][A-Za-z0-9_\-]*)>`)
	strayTag = regexp.MustCompile(`</?[A-Za-z_][A-Za-z0-9_\-]*>`)
)

type tagSpan struct {
	Name  string
	Inner string
}

// scanTags extracts non-nested <name>...</name> spans and returns them with the
// text left once every span and any stray tag marker has been removed.
func scanTags(content string) ([]tagSpan, string) {
	var (
		spans []tagSpan
		rest  strings.Builder
		pos   int
	)
	for pos < len(content) {
		loc := openTag.FindStringSubmatchIndex(content[pos:])
		if loc == nil {
			break
		}
		start, openEnd := pos+loc[0], pos+loc[1]
		name := content[pos+loc[2] : pos+loc[3]]

		rest.WriteString(content[pos:start])
		closer := "</" + name + ">"
		rel := strings.Index(content[openEnd:], closer)
		if rel < 0 {
			// Unpaired marker: drop it and keep scanning behind it.
			pos = openEnd
			continue
		}
		spans = append(spans, tagSpan{
			Name:  name,
			Inner: strings.TrimSpace(content[openEnd : openEnd+rel]),
		})
		pos = openEnd + rel + len(closer)
	}
	if pos < len(content) {
		rest.WriteString(content[pos:])
	}
	return spans, strings.TrimSpace(strayTag.ReplaceAllString(rest.String(), ""))
}
