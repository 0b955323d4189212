// Package knowledge handles the ingestion side of the pipeline: documents
// come in, deterministic chunks with stable IDs go out to the vector index.
package knowledge

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidDocument indicates a document failed ingestion validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrEmptyCorpus indicates a directory ingest found no loadable documents.
	ErrEmptyCorpus = errors.New("no documents found")
)

// Known document categories. Category is a hard retrieval filter, so
// ingestion rejects anything outside this set rather than letting typos
// create unreachable content.
const (
	CategoryWorkout   = "workout"
	CategoryDiet      = "diet"
	CategoryRecovery  = "recovery"
	CategoryNutrition = "nutrition"
)

var validCategories = map[string]bool{
	CategoryWorkout:   true,
	CategoryDiet:      true,
	CategoryRecovery:  true,
	CategoryNutrition: true,
}

// Document is a source knowledge item prior to chunking.
type Document struct {
	// SourceID uniquely identifies the document; re-ingesting the same
	// SourceID replaces all previously indexed chunks for it.
	SourceID string `json:"source_id"`

	// Category is one of the Category* constants.
	Category string `json:"category"`

	// Tags carry filterable attributes such as dietary_type,
	// experience_level, and location. String-to-string by design so they
	// map directly onto JSONB containment filters.
	Tags map[string]string `json:"tags,omitempty"`

	// RawText is the full document text.
	RawText string `json:"raw_text"`
}

// Validate checks the fields ingestion depends on.
func (d *Document) Validate() error {
	if strings.TrimSpace(d.SourceID) == "" {
		return fmt.Errorf("%w: source ID is empty", ErrInvalidDocument)
	}
	if !validCategories[d.Category] {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidDocument, d.Category)
	}
	if strings.TrimSpace(d.RawText) == "" {
		return fmt.Errorf("%w: raw text is empty (source %q)", ErrInvalidDocument, d.SourceID)
	}
	return nil
}

// Chunk is one indexable slice of a document. Chunks inherit the parent
// document's category and tags so retrieval filters apply uniformly.
type Chunk struct {
	// ID is deterministic: the same document content always yields the
	// same chunk IDs, which is what makes re-ingestion an idempotent
	// replace instead of an append.
	ID string `json:"id"`

	SourceID string            `json:"source_id"`
	Position int               `json:"position"`
	Category string            `json:"category"`
	Tags     map[string]string `json:"tags,omitempty"`
	Text     string            `json:"text"`

	CreatedAt time.Time `json:"created_at"`
}

// ChunkID derives the stable chunk identifier for a document position.
// Format: doc_<sha256(sourceID)[:16]>:<position, zero padded>. Hashing
// keeps IDs fixed-width and safe regardless of what characters the
// source ID contains.
func ChunkID(sourceID string, position int) string {
	sum := sha256.Sum256([]byte(sourceID))
	return fmt.Sprintf("doc_%s:%03d", hex.EncodeToString(sum[:])[:16], position)
}
