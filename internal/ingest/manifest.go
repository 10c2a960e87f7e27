package ingest

import (
	"fmt"

	"github.com/raphaelgruber/fsechat/internal/models"
	"gopkg.in/yaml.v3"
)

// Manifest lists documents with explicit indices, typically exported from
// the knowledge base the chat engine answers from.
type Manifest struct {
	Source    string                 `yaml:"source"`
	Documents []models.DocumentInput `yaml:"documents"`
}

// ParseManifest decodes a YAML manifest. Documents without their own source
// inherit the manifest's.
func ParseManifest(data []byte) ([]models.DocumentInput, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	docs := make([]models.DocumentInput, 0, len(m.Documents))
	for i, d := range m.Documents {
		if d.Content == "" {
			return nil, fmt.Errorf("manifest document %d (index %d): content is required", i, d.Index)
		}
		if d.Index < 0 {
			return nil, fmt.Errorf("manifest document %d: negative index %d", i, d.Index)
		}
		if d.Source == "" {
			d.Source = m.Source
		}
		docs = append(docs, d)
	}
	return docs, nil
}
