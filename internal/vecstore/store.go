package vecstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/fitstack/fitplanner/internal/log"
)

// Per-call timeouts so a wedged database surfaces as ErrUnavailable
// instead of blocking the pipeline. Upserts get longer because ingest
// batches can be large.
const (
	queryTimeout  = 10 * time.Second
	upsertTimeout = 30 * time.Second
)

// Store is the pgvector-backed index. All methods are safe for
// concurrent use; pgxpool handles connection management.
type Store struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// NewStore creates a vector index over an existing connection pool. The
// schema (knowledge_chunks table, vector extension, ivfflat index) is
// managed by the db migrations, not here.
func NewStore(pool *pgxpool.Pool, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{
		pool:   pool,
		logger: logger.With("component", "vecstore"),
	}
}

// Upsert inserts or replaces records by chunk ID in a single batch.
// Either all records land or none do; the batch runs in one implicit
// transaction via SendBatch.
func (s *Store) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		if len(r.Embedding) != VectorDimension {
			return fmt.Errorf("%w: chunk %s has %d dimensions, want %d",
				ErrDimensionMismatch, r.ChunkID, len(r.Embedding), VectorDimension)
		}

		tags, err := json.Marshal(tagsOrEmpty(r.Tags))
		if err != nil {
			return fmt.Errorf("encoding tags for chunk %s: %w", r.ChunkID, err)
		}

		batch.Queue(`
			INSERT INTO knowledge_chunks (chunk_id, source_id, position, category, tags, content, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (chunk_id) DO UPDATE SET
				source_id = EXCLUDED.source_id,
				position  = EXCLUDED.position,
				category  = EXCLUDED.category,
				tags      = EXCLUDED.tags,
				content   = EXCLUDED.content,
				embedding = EXCLUDED.embedding`,
			r.ChunkID, r.SourceID, r.Position, r.Category, tags, r.Text,
			pgvector.NewVector(r.Embedding))
	}

	batchCtx, cancel := context.WithTimeout(ctx, upsertTimeout)
	defer cancel()

	results := s.pool.SendBatch(batchCtx, batch)
	defer func() {
		if err := results.Close(); err != nil {
			s.logger.Warn("closing upsert batch", "error", err)
		}
	}()

	for range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("%w: upsert failed: %v", ErrUnavailable, err)
		}
	}

	s.logger.Debug("chunks upserted", "count", len(records))
	return nil
}

// Query returns the chunks nearest to the query embedding under cosine
// distance, after applying the category and tag filters. Similarity is
// reported as 1 - distance, so identical vectors score 1.0. Ties on
// distance break by ascending chunk ID for deterministic output.
func (s *Store) Query(ctx context.Context, embedding []float32, opts ...QueryOption) ([]ScoredChunk, error) {
	if len(embedding) != VectorDimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, want %d",
			ErrDimensionMismatch, len(embedding), VectorDimension)
	}

	cfg := buildQueryConfig(opts)

	var sb strings.Builder
	sb.WriteString(`
		SELECT chunk_id, source_id, position, category, tags, content,
		       1 - (embedding <=> $1) AS similarity, created_at
		FROM knowledge_chunks`)

	args := []any{pgvector.NewVector(embedding)}
	var conds []string

	if cfg.category != "" {
		args = append(args, cfg.category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if len(cfg.tags) > 0 {
		tagJSON, err := json.Marshal(cfg.tags)
		if err != nil {
			return nil, fmt.Errorf("encoding tag filter: %w", err)
		}
		args = append(args, tagJSON)
		conds = append(conds, fmt.Sprintf("tags @> $%d", len(args)))
	}
	if len(conds) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}

	args = append(args, cfg.topK)
	sb.WriteString(fmt.Sprintf(" ORDER BY embedding <=> $1, chunk_id LIMIT $%d", len(args)))

	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.pool.Query(queryCtx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query failed: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var hits []ScoredChunk
	for rows.Next() {
		var (
			hit     ScoredChunk
			tagJSON []byte
		)
		if err := rows.Scan(&hit.ChunkID, &hit.SourceID, &hit.Position, &hit.Category,
			&tagJSON, &hit.Text, &hit.Similarity, &hit.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scanning hit: %v", ErrUnavailable, err)
		}
		if len(tagJSON) > 0 {
			if err := json.Unmarshal(tagJSON, &hit.Tags); err != nil {
				return nil, fmt.Errorf("decoding tags for chunk %s: %w", hit.ChunkID, err)
			}
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading hits: %v", ErrUnavailable, err)
	}

	return hits, nil
}

// FetchByIDs returns the stored chunks for the given IDs, in the order
// requested. Missing IDs are silently absent from the result; the
// caller decides whether that matters.
func (s *Store) FetchByIDs(ctx context.Context, chunkIDs []string) ([]ScoredChunk, error) {
	if len(chunkIDs) == 0 {
		return nil, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.pool.Query(fetchCtx, `
		SELECT chunk_id, source_id, position, category, tags, content, created_at
		FROM knowledge_chunks
		WHERE chunk_id = ANY($1)`, chunkIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch failed: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	byID := make(map[string]ScoredChunk, len(chunkIDs))
	for rows.Next() {
		var (
			hit     ScoredChunk
			tagJSON []byte
		)
		if err := rows.Scan(&hit.ChunkID, &hit.SourceID, &hit.Position, &hit.Category,
			&tagJSON, &hit.Text, &hit.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scanning chunk: %v", ErrUnavailable, err)
		}
		if len(tagJSON) > 0 {
			if err := json.Unmarshal(tagJSON, &hit.Tags); err != nil {
				return nil, fmt.Errorf("decoding tags for chunk %s: %w", hit.ChunkID, err)
			}
		}
		byID[hit.ChunkID] = hit
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading chunks: %v", ErrUnavailable, err)
	}

	ordered := make([]ScoredChunk, 0, len(byID))
	for _, id := range chunkIDs {
		if hit, ok := byID[id]; ok {
			ordered = append(ordered, hit)
		}
	}
	return ordered, nil
}

// DeleteBySource removes every chunk belonging to a source document.
func (s *Store) DeleteBySource(ctx context.Context, sourceID string) error {
	deleteCtx, cancel := context.WithTimeout(ctx, upsertTimeout)
	defer cancel()

	tag, err := s.pool.Exec(deleteCtx,
		`DELETE FROM knowledge_chunks WHERE source_id = $1`, sourceID)
	if err != nil {
		return fmt.Errorf("%w: delete failed: %v", ErrUnavailable, err)
	}

	if tag.RowsAffected() > 0 {
		s.logger.Debug("source chunks deleted",
			"source_id", sourceID,
			"count", tag.RowsAffected())
	}
	return nil
}

// Count reports the number of indexed chunks, used by the health check.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM knowledge_chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count failed: %v", ErrUnavailable, err)
	}
	return n, nil
}

func tagsOrEmpty(tags map[string]string) map[string]string {
	if tags == nil {
		return map[string]string{}
	}
	return tags
}
