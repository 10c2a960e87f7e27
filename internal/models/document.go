package models

import surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

// Document is a retrievable context unit. Documents are loaded by the import
// command and are read-only to the chat engine.
type Document struct {
	ID        surrealmodels.RecordID `json:"id"`
	Index     int                    `json:"index"`
	Title     string                 `json:"title,omitempty"`
	Content   string                 `json:"content"`
	Source    *string                `json:"source,omitempty"`
	Section   *string                `json:"section,omitempty"`
	Embedding []float32              `json:"embedding,omitempty"`
	Distance  float64                `json:"distance,omitempty"`
}

// DocumentInput is the write-side shape used by bulk imports.
type DocumentInput struct {
	Index     int       `json:"index" yaml:"index"`
	Title     string    `json:"title" yaml:"title"`
	Content   string    `json:"content" yaml:"content"`
	Source    string    `json:"source,omitempty" yaml:"source,omitempty"`
	Section   string    `json:"section,omitempty" yaml:"section,omitempty"`
	Embedding []float32 `json:"embedding,omitempty" yaml:"-"`
}

// Params converts the input into the named parameter map consumed by the
// batched document upsert.
func (d DocumentInput) Params() map[string]any {
	p := map[string]any{
		"index":   d.Index,
		"title":   d.Title,
		"content": d.Content,
	}
	if d.Source != "" {
		p["source"] = d.Source
	}
	if d.Section != "" {
		p["section"] = d.Section
	}
	if len(d.Embedding) > 0 {
		p["embedding"] = d.Embedding
	}
	return p
}
