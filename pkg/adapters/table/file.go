package table

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// File reads a YAML or JSON document on every snapshot, so edits are picked
// up by the next turn.
type File struct {
	Path string
}

// NewFile creates a file-backed source. The format follows the extension;
// anything other than .json is decoded as YAML.
func NewFile(path string) *File {
	return &File{Path: path}
}

// Snapshot implements ports.TableSource.
func (f *File) Snapshot(ctx context.Context) (any, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read table %s: %w", f.Path, err)
	}

	var v any
	if strings.EqualFold(filepath.Ext(f.Path), ".json") {
		err = json.Unmarshal(data, &v)
	} else {
		err = yaml.Unmarshal(data, &v)
	}
	if err != nil {
		return nil, fmt.Errorf("decode table %s: %w", f.Path, err)
	}
	return v, nil
}

// Static always returns the same value.
type Static struct {
	Value any
}

// Snapshot implements ports.TableSource.
func (s Static) Snapshot(context.Context) (any, error) {
	return s.Value, nil
}
