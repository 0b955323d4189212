// Package embedding wraps the Genkit embedder behind a batching,
// rate-limited gateway with retry. Callers see a plain text-to-vector
// API and a single sentinel error for an unreachable backend.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"golang.org/x/time/rate"

	"github.com/fitstack/fitplanner/internal/log"
)

// ErrUnavailable indicates the embedding backend could not produce
// vectors after retries.
var ErrUnavailable = errors.New("embedding service unavailable")

// embedTimeout bounds one embed attempt; a hung call counts as transient
// and the retry loop takes over.
const embedTimeout = 30 * time.Second

// Gateway batches texts through an ai.Embedder. Batches larger than the
// configured size are split into sub-batches; a rate limiter spaces the
// API calls so bulk ingestion does not trip provider quotas.
type Gateway struct {
	embedder  ai.Embedder
	batchSize int
	limiter   *rate.Limiter
	retry     RetryConfig
	logger    log.Logger
}

// NewGateway creates an embedding gateway. ratePerSec bounds API calls
// per second; batchSize bounds texts per call.
func NewGateway(embedder ai.Embedder, batchSize, ratePerSec int, logger log.Logger) *Gateway {
	if batchSize <= 0 {
		batchSize = 32
	}
	if ratePerSec <= 0 {
		ratePerSec = 5
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Gateway{
		embedder:  embedder,
		batchSize: batchSize,
		limiter:   rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
		retry:     DefaultRetryConfig(),
		logger:    logger.With("component", "embedding"),
	}
}

// EmbedTexts embeds texts in order. The i-th vector in the result always
// corresponds to the i-th input text, across sub-batch boundaries.
func (g *Gateway) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += g.batchSize {
		end := min(start+g.batchSize, len(texts))

		batch, err := g.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("batch [%d:%d]: %w", start, end, err)
		}
		vectors = append(vectors, batch...)
	}

	return vectors, nil
}

// EmbedQuery embeds a single query string.
func (g *Gateway) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := g.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (g *Gateway) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	docs := make([]*ai.Document, len(texts))
	for i, text := range texts {
		docs[i] = ai.DocumentFromText(text, nil)
	}

	resp, err := WithRetry(ctx, g.retry, func() (*ai.EmbedResponse, error) {
		// Rate limit each attempt, retries included.
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
		attemptCtx, cancel := context.WithTimeout(ctx, embedTimeout)
		defer cancel()
		return g.embedder.Embed(attemptCtx, &ai.EmbedRequest{Input: docs})
	})
	if err != nil {
		g.logger.Error("embed call failed", "texts", len(texts), "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts",
			ErrUnavailable, len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		out[i] = emb.Embedding
	}
	return out, nil
}
