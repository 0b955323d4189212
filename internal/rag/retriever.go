// Package rag implements profile-enhanced retrieval over the vector
// index: the user's goal and experience bias the semantic query, while
// dietary type and training location apply as hard metadata filters.
package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/fitstack/fitplanner/internal/knowledge"
	"github.com/fitstack/fitplanner/internal/log"
	"github.com/fitstack/fitplanner/internal/profile"
	"github.com/fitstack/fitplanner/internal/vecstore"
)

// QueryEmbedder embeds a single query string. Implemented by
// embedding.Gateway.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// SearchIndex is the slice of the vector store retrieval needs.
type SearchIndex interface {
	Query(ctx context.Context, embedding []float32, opts ...vecstore.QueryOption) ([]vecstore.ScoredChunk, error)
}

// Result is the outcome of one retrieval.
type Result struct {
	// Query is the enhanced query text that was actually embedded.
	Query string `json:"query"`

	// Chunks are ordered by descending similarity, ties broken by
	// ascending chunk ID.
	Chunks []vecstore.ScoredChunk `json:"chunks"`

	// LowConfidence is set when the hard filters matched nothing and the
	// result came from the category-only fallback. Downstream generation
	// surfaces this so plans built on weaker grounding are marked.
	LowConfidence bool `json:"low_confidence"`
}

// Retriever runs profile-enhanced similarity search.
type Retriever struct {
	embedder QueryEmbedder
	index    SearchIndex
	topK     int
	logger   log.Logger
}

// NewRetriever creates a retriever with the given default result size.
func NewRetriever(embedder QueryEmbedder, index SearchIndex, topK int, logger log.Logger) *Retriever {
	if topK <= 0 {
		topK = 5
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Retriever{
		embedder: embedder,
		index:    index,
		topK:     topK,
		logger:   logger.With("component", "retriever"),
	}
}

// EnhanceQuery appends the profile's goal and experience level to the
// raw query so the embedding carries them as semantic signal.
// Example: "meal prep [Goal: weight_loss | Level: beginner]".
func EnhanceQuery(query string, prof *profile.Profile) string {
	if prof == nil {
		return query
	}
	return fmt.Sprintf("%s [Goal: %s | Level: %s]", query, prof.Goal, prof.Level)
}

// filtersFor returns the hard metadata filters for a category. Dietary
// type gates diet and nutrition content; experience level and location
// gate workout content. Recovery content applies to everyone.
func filtersFor(category string, prof *profile.Profile) []vecstore.QueryOption {
	if prof == nil {
		return nil
	}
	switch category {
	case knowledge.CategoryDiet, knowledge.CategoryNutrition:
		return []vecstore.QueryOption{
			vecstore.WithTag("dietary_type", string(prof.DietaryType)),
		}
	case knowledge.CategoryWorkout:
		return []vecstore.QueryOption{
			vecstore.WithTag("experience_level", string(prof.Level)),
			vecstore.WithTag("location", string(prof.Location)),
		}
	default:
		return nil
	}
}

// Retrieve embeds the profile-enhanced query and searches the index with
// the category and profile filters. When the filtered search matches
// nothing, it falls back to a category-only search and flags the result
// as low confidence rather than failing the request.
func (r *Retriever) Retrieve(ctx context.Context, query, category string, prof *profile.Profile) (*Result, error) {
	enhanced := EnhanceQuery(strings.TrimSpace(query), prof)

	vector, err := r.embedder.EmbedQuery(ctx, enhanced)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	base := []vecstore.QueryOption{vecstore.WithTopK(r.topK)}
	if category != "" {
		base = append(base, vecstore.WithCategory(category))
	}

	filters := filtersFor(category, prof)

	hits, err := r.index.Query(ctx, vector, append(append([]vecstore.QueryOption{}, base...), filters...)...)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	lowConfidence := false
	if len(hits) == 0 && len(filters) > 0 {
		r.logger.Warn("filtered search empty, falling back to category-only",
			"query", enhanced,
			"category", category)

		hits, err = r.index.Query(ctx, vector, base...)
		if err != nil {
			return nil, fmt.Errorf("fallback search: %w", err)
		}
		lowConfidence = true
	}

	sortHits(hits)

	r.logger.Debug("retrieval complete",
		"query", enhanced,
		"category", category,
		"hits", len(hits),
		"low_confidence", lowConfidence)

	return &Result{
		Query:         enhanced,
		Chunks:        hits,
		LowConfidence: lowConfidence,
	}, nil
}

// sortHits enforces the deterministic order contract regardless of how
// the index returned rows: descending similarity, then ascending chunk
// ID.
func sortHits(hits []vecstore.ScoredChunk) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
}
