package prompt

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/troupe/pkg/ports"
)

// Directory loads stage templates from a Loam repository: one markdown
// document per stage, the body being the template and the frontmatter
// carrying the stage id and generation overrides.
type Directory struct {
	Repo *loam.TypedRepository[Metadata]
}

// Open initializes a read-only Loam repository at path.
func Open(path string) (*Directory, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return &Directory{Repo: loam.NewTypedRepository[Metadata](repo)}, nil
}

// Templates lists every template in the repository. Two documents naming the
// same stage are rejected.
func (d *Directory) Templates(ctx context.Context) ([]Template, error) {
	docs, err := d.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string, len(docs))
	templates := make([]Template, 0, len(docs))
	for _, doc := range docs {
		id := doc.Data.Stage
		if id == "" {
			id = doc.Data.ID
		}
		if id == "" {
			id = doc.ID
		}
		id = trimExtension(id)

		if existing, ok := seen[id]; ok {
			return nil, fmt.Errorf("collision detected: template '%s' is defined in both '%s' and '%s'", id, existing, doc.ID)
		}
		seen[id] = doc.ID

		opts := ports.GenerateOptions{ModelName: doc.Data.Model}
		if temp, ok := doc.Data.temperature(); ok {
			opts.Temperature = temp
		}
		templates = append(templates, Template{ID: id, Body: strings.TrimSpace(doc.Content), Options: opts})
	}
	return templates, nil
}

// Load returns the built-in templates overlaid with the repository's.
func (d *Directory) Load(ctx context.Context) (*Renderer, error) {
	r := NewRenderer()
	if err := d.Reload(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload refreshes r from the repository.
func (d *Directory) Reload(ctx context.Context, r *Renderer) error {
	files, err := d.Templates(ctx)
	if err != nil {
		return err
	}
	r.Replace(append(Defaults(), files...)...)
	return nil
}

// Watch reloads r whenever a template document changes, until ctx is done.
// Each successful reload is reported on the returned channel; failed reloads
// keep the previous templates and are reported through onError.
func (d *Directory) Watch(ctx context.Context, r *Renderer, onError func(error)) (<-chan string, error) {
	events, err := d.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan string, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				if err := d.Reload(ctx, r); err != nil {
					if onError != nil {
						onError(err)
					}
					continue
				}
				select {
				case ch <- evt.ID:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
