package model

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"
)

// Load reads a definition document from the supplied URL (any scheme the
// abstract file system supports) and validates it.
func Load(ctx context.Context, URL string) (*Definition, error) {
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load definition from %s: %w", URL, err)
	}
	return Parse(data)
}

// Parse decodes a YAML definition document and validates it.
func Parse(data []byte) (*Definition, error) {
	definition := &Definition{}
	if err := yaml.Unmarshal(data, definition); err != nil {
		return nil, fmt.Errorf("failed to parse definition: %w", err)
	}
	if issues := definition.Validate(); len(issues) > 0 {
		return nil, fmt.Errorf("invalid definition: %v", issues)
	}
	return definition, nil
}
