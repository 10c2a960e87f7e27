package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/raphaelgruber/fsechat/internal/db"
	"github.com/raphaelgruber/fsechat/internal/models"
)

// DefaultEmbedBatchSize is the number of passages sent per embedding call.
const DefaultEmbedBatchSize = 32

// BatchWriter runs a write operation over chunks of parameter sets.
type BatchWriter interface {
	ExecuteBatch(ctx context.Context, op string, paramSets []map[string]any, batchSize int) error
}

// BatchEmbedder embeds passages.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// IndexSource reports the highest document index already stored.
type IndexSource interface {
	MaxDocumentIndex(ctx context.Context) (int, error)
}

// Report summarises an import.
type Report struct {
	Files      int
	Documents  int
	Embedded   int
	FirstIndex int
	LastIndex  int
	Duration   time.Duration
}

// Importer loads manuals and manifests into the document table.
type Importer struct {
	writer     BatchWriter
	embedder   BatchEmbedder
	indices    IndexSource
	logger     *slog.Logger
	batchSize  int
	embedBatch int
	chunking   ChunkConfig
}

// Option configures an Importer.
type Option func(*Importer)

// WithBatchSize sets the number of documents per write transaction.
func WithBatchSize(n int) Option {
	return func(i *Importer) { i.batchSize = n }
}

// WithEmbedBatchSize sets the number of passages per embedding call.
func WithEmbedBatchSize(n int) Option {
	return func(i *Importer) {
		if n > 0 {
			i.embedBatch = n
		}
	}
}

// WithChunkConfig overrides how manuals are split.
func WithChunkConfig(cfg ChunkConfig) Option {
	return func(i *Importer) { i.chunking = cfg }
}

// NewImporter creates an importer. embedder and indices may be nil: without
// an embedder documents are stored unembedded and are not retrievable;
// without an index source manual passages are numbered after the manifests.
func NewImporter(writer BatchWriter, embedder BatchEmbedder, indices IndexSource, logger *slog.Logger, opts ...Option) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	i := &Importer{
		writer:     writer,
		embedder:   embedder,
		indices:    indices,
		logger:     logger,
		batchSize:  db.DefaultBatchSize,
		embedBatch: DefaultEmbedBatchSize,
		chunking:   DefaultChunkConfig(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// pendingPassage is a manual passage still waiting for its index.
type pendingPassage struct {
	title   string
	source  string
	passage Passage
}

// Import reads every path (files or directories), assigns indices, embeds
// and writes the documents. Manifest indices are kept; manual passages are
// numbered after the highest known index. Nothing is written when a file
// fails to parse.
func (im *Importer) Import(ctx context.Context, paths []string) (*Report, error) {
	start := time.Now()

	files, err := collectFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .md, .yaml or .yml files found")
	}

	var (
		docs    []models.DocumentInput
		pending []pendingPassage
		seen    = make(map[int]string)
	)
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			manifest, err := ParseManifest(data)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			for _, d := range manifest {
				if other, dup := seen[d.Index]; dup {
					return nil, fmt.Errorf("%s: document index %d already used in %s", path, d.Index, other)
				}
				seen[d.Index] = path
				docs = append(docs, d)
			}
		default:
			manual, err := ParseManual(string(data))
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			title, source := manual.Title, manual.Frontmatter.Source
			if title == "" {
				title = name
			}
			if source == "" {
				source = filepath.Base(path)
			}
			for _, p := range Chunk(manual, im.chunking) {
				pending = append(pending, pendingPassage{title: title, source: source, passage: p})
			}
		}
	}

	if len(pending) > 0 {
		next, err := im.nextIndex(ctx, seen)
		if err != nil {
			return nil, err
		}
		for _, p := range pending {
			docs = append(docs, models.DocumentInput{
				Index:   next,
				Title:   p.title,
				Content: p.passage.Content,
				Source:  p.source,
				Section: p.passage.HeadingPath,
			})
			next++
		}
	}

	report := &Report{Files: len(files), Documents: len(docs)}
	if len(docs) == 0 {
		report.Duration = time.Since(start)
		return report, nil
	}

	embedded, err := im.embed(ctx, docs)
	if err != nil {
		return nil, err
	}
	report.Embedded = embedded

	params := make([]map[string]any, len(docs))
	report.FirstIndex, report.LastIndex = docs[0].Index, docs[0].Index
	for i, d := range docs {
		params[i] = d.Params()
		report.FirstIndex = min(report.FirstIndex, d.Index)
		report.LastIndex = max(report.LastIndex, d.Index)
	}

	if err := im.writer.ExecuteBatch(ctx, db.OpUpsertDocuments, params, im.batchSize); err != nil {
		return nil, fmt.Errorf("write documents: %w", err)
	}

	report.Duration = time.Since(start)
	im.logger.Info("documents imported",
		"files", report.Files,
		"documents", report.Documents,
		"embedded", report.Embedded,
		"first_index", report.FirstIndex,
		"last_index", report.LastIndex,
		"duration_ms", report.Duration.Milliseconds(),
	)
	return report, nil
}

func (im *Importer) nextIndex(ctx context.Context, seen map[int]string) (int, error) {
	highest := -1
	if im.indices != nil {
		stored, err := im.indices.MaxDocumentIndex(ctx)
		if err != nil {
			return 0, fmt.Errorf("find next document index: %w", err)
		}
		highest = stored
	}
	for idx := range seen {
		highest = max(highest, idx)
	}
	return highest + 1, nil
}

// embed fills in embeddings in place and returns how many were set.
func (im *Importer) embed(ctx context.Context, docs []models.DocumentInput) (int, error) {
	if im.embedder == nil {
		im.logger.Warn("no embedder configured, documents will not be retrievable", "documents", len(docs))
		return 0, nil
	}

	embedded := 0
	for _, batch := range db.Chunk(indexRange(len(docs)), im.embedBatch) {
		texts := make([]string, len(batch))
		for i, idx := range batch {
			texts[i] = embeddingText(docs[idx])
		}
		vectors, err := im.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return embedded, fmt.Errorf("embed documents %d-%d: %w", batch[0], batch[len(batch)-1], err)
		}
		for i, idx := range batch {
			docs[idx].Embedding = vectors[i]
			embedded++
		}
		im.logger.Debug("embedded passages", "done", embedded, "total", len(docs))
	}
	return embedded, nil
}

// embeddingText prefixes the passage with its title and section so short
// passages keep their context.
func embeddingText(d models.DocumentInput) string {
	parts := make([]string, 0, 3)
	if d.Title != "" {
		parts = append(parts, d.Title)
	}
	if d.Section != "" {
		parts = append(parts, d.Section)
	}
	parts = append(parts, d.Content)
	return strings.Join(parts, "\n")
}

func indexRange(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// collectFiles expands directories into the supported files they contain.
func collectFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			if !supported(p) {
				return nil, fmt.Errorf("%s: unsupported file type %q", p, filepath.Ext(p))
			}
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && supported(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", p, err)
		}
	}
	return files, nil
}

func supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".yaml", ".yml":
		return true
	}
	return false
}
