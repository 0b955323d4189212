package knowledge

import (
	"context"
	"errors"
	"fmt"

	"github.com/fitstack/fitplanner/internal/log"
	"github.com/fitstack/fitplanner/internal/vecstore"
)

// Embedder converts chunk texts into vectors. Implemented by
// embedding.Gateway; tests substitute a deterministic fake.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Index is the slice of the vector store ingestion needs.
type Index interface {
	Upsert(ctx context.Context, records []vecstore.Record) error
	DeleteBySource(ctx context.Context, sourceID string) error
}

// Ingester runs the document-to-index pipeline: validate, chunk, embed,
// replace. Each document is processed independently so one bad document
// never blocks the rest of a corpus.
type Ingester struct {
	chunker  *Chunker
	embedder Embedder
	index    Index
	logger   log.Logger
}

// NewIngester wires an ingestion pipeline.
func NewIngester(chunker *Chunker, embedder Embedder, index Index, logger log.Logger) *Ingester {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Ingester{
		chunker:  chunker,
		embedder: embedder,
		index:    index,
		logger:   logger.With("component", "ingester"),
	}
}

// Report summarizes a batch ingest. Failed maps source ID to the error
// that stopped that document.
type Report struct {
	Ingested int
	Chunks   int
	Failed   map[string]error
}

// Err returns a combined error when any document failed, nil otherwise.
func (r *Report) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failed))
	for id, err := range r.Failed {
		errs = append(errs, fmt.Errorf("document %q: %w", id, err))
	}
	return errors.Join(errs...)
}

// IngestDocument validates, chunks, embeds, and indexes one document.
// Existing chunks for the same source ID are deleted first, so
// re-ingesting a shrunk document leaves no stale tail chunks behind.
func (ing *Ingester) IngestDocument(ctx context.Context, doc *Document) (int, error) {
	if err := doc.Validate(); err != nil {
		return 0, err
	}

	chunks := ing.chunker.Split(doc)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("%w: no chunks produced (source %q)", ErrInvalidDocument, doc.SourceID)
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}

	vectors, err := ing.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	records := make([]vecstore.Record, len(chunks))
	for i, ch := range chunks {
		records[i] = vecstore.Record{
			ChunkID:   ch.ID,
			SourceID:  ch.SourceID,
			Position:  ch.Position,
			Category:  ch.Category,
			Tags:      ch.Tags,
			Text:      ch.Text,
			Embedding: vectors[i],
		}
	}

	// Replace, not append: drop whatever the index holds for this source
	// before inserting the fresh chunk set.
	if err := ing.index.DeleteBySource(ctx, doc.SourceID); err != nil {
		return 0, fmt.Errorf("clearing previous chunks: %w", err)
	}
	if err := ing.index.Upsert(ctx, records); err != nil {
		return 0, fmt.Errorf("indexing chunks: %w", err)
	}

	ing.logger.Info("document ingested",
		"source_id", doc.SourceID,
		"category", doc.Category,
		"chunks", len(chunks))

	return len(chunks), nil
}

// IngestAll processes documents independently and reports per-document
// outcomes. A context cancellation aborts the remainder of the batch.
func (ing *Ingester) IngestAll(ctx context.Context, docs []*Document) (*Report, error) {
	report := &Report{Failed: make(map[string]error)}

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		n, err := ing.IngestDocument(ctx, doc)
		if err != nil {
			key := doc.SourceID
			if key == "" {
				key = "(missing source id)"
			}
			report.Failed[key] = err
			ing.logger.Warn("document skipped", "source_id", key, "error", err)
			continue
		}
		report.Ingested++
		report.Chunks += n
	}

	return report, nil
}
