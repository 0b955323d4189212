// Package vecstore implements the vector index on PostgreSQL with the
// pgvector extension. Chunks are stored with their embedding, category,
// and tag metadata; queries combine cosine similarity with hard metadata
// filters in a single SQL statement.
package vecstore

import (
	"errors"
	"time"
)

var (
	// ErrUnavailable indicates the vector index could not be reached or
	// the operation failed at the storage layer.
	ErrUnavailable = errors.New("vector index unavailable")

	// ErrDimensionMismatch indicates an embedding does not match the
	// index's configured dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// VectorDimension is the embedding width the schema is built for. It
// matches the output of the configured Gemini embedding model.
const VectorDimension = 768

// Record is one indexed chunk.
type Record struct {
	ChunkID   string
	SourceID  string
	Position  int
	Category  string
	Tags      map[string]string
	Text      string
	Embedding []float32
}

// ScoredChunk is a query hit with its similarity to the query vector.
type ScoredChunk struct {
	ChunkID    string            `json:"chunk_id"`
	SourceID   string            `json:"source_id"`
	Position   int               `json:"position"`
	Category   string            `json:"category"`
	Tags       map[string]string `json:"tags,omitempty"`
	Text       string            `json:"text"`
	Similarity float64           `json:"similarity"`
	CreatedAt  time.Time         `json:"created_at"`
}

// QueryOption configures a similarity query.
type QueryOption func(*queryConfig)

type queryConfig struct {
	topK     int
	category string
	tags     map[string]string
}

// WithTopK caps the number of hits. Default is 5.
func WithTopK(k int) QueryOption {
	return func(c *queryConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithCategory restricts hits to one document category.
func WithCategory(category string) QueryOption {
	return func(c *queryConfig) {
		c.category = category
	}
}

// WithTag adds a tag equality filter. Multiple calls AND together.
func WithTag(key, value string) QueryOption {
	return func(c *queryConfig) {
		if c.tags == nil {
			c.tags = make(map[string]string)
		}
		c.tags[key] = value
	}
}

func buildQueryConfig(opts []QueryOption) *queryConfig {
	cfg := &queryConfig{topK: 5}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
