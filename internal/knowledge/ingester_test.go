package knowledge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitstack/fitplanner/internal/log"
	"github.com/fitstack/fitplanner/internal/vecstore"
)

// fakeEmbedder returns a fixed-width vector per text, failing when told to.
type fakeEmbedder struct {
	failOn string
	calls  int
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if f.failOn != "" && strings.Contains(text, f.failOn) {
			return nil, errors.New("embedding backend down")
		}
		out[i] = []float32{float32(len(text))}
	}
	return out, nil
}

// fakeIndex records upserts and deletes in memory.
type fakeIndex struct {
	records map[string]vecstore.Record
	deleted []string
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{records: make(map[string]vecstore.Record)}
}

func (f *fakeIndex) Upsert(_ context.Context, records []vecstore.Record) error {
	for _, r := range records {
		f.records[r.ChunkID] = r
	}
	return nil
}

func (f *fakeIndex) DeleteBySource(_ context.Context, sourceID string) error {
	f.deleted = append(f.deleted, sourceID)
	for id, r := range f.records {
		if r.SourceID == sourceID {
			delete(f.records, id)
		}
	}
	return nil
}

func newTestIngester(embedder Embedder, index Index) *Ingester {
	return NewIngester(NewChunker(100, 20), embedder, index, log.NewNop())
}

func TestIngestDocument(t *testing.T) {
	index := newFakeIndex()
	ing := newTestIngester(&fakeEmbedder{}, index)

	doc := &Document{
		SourceID: "strength-basics",
		Category: CategoryWorkout,
		Tags:     map[string]string{"experience_level": "beginner"},
		RawText:  strings.Repeat("Progressive overload drives adaptation. ", 10),
	}

	n, err := ing.IngestDocument(context.Background(), doc)
	require.NoError(t, err)
	assert.Greater(t, n, 1)
	assert.Len(t, index.records, n)
	assert.Equal(t, []string{"strength-basics"}, index.deleted)

	for _, r := range index.records {
		assert.Equal(t, CategoryWorkout, r.Category)
		assert.Equal(t, "beginner", r.Tags["experience_level"])
		assert.NotEmpty(t, r.Embedding)
	}
}

func TestIngestDocument_ReingestReplacesStaleChunks(t *testing.T) {
	index := newFakeIndex()
	ing := newTestIngester(&fakeEmbedder{}, index)
	ctx := context.Background()

	long := &Document{
		SourceID: "d",
		Category: CategoryDiet,
		RawText:  strings.Repeat("Meal timing around training sessions. ", 20),
	}
	nLong, err := ing.IngestDocument(ctx, long)
	require.NoError(t, err)

	short := &Document{SourceID: "d", Category: CategoryDiet, RawText: "Eat enough protein."}
	nShort, err := ing.IngestDocument(ctx, short)
	require.NoError(t, err)

	require.Less(t, nShort, nLong)
	// No stale tail chunks from the long version may survive.
	assert.Len(t, index.records, nShort)
}

func TestIngestDocument_InvalidDocument(t *testing.T) {
	index := newFakeIndex()
	emb := &fakeEmbedder{}
	ing := newTestIngester(emb, index)

	_, err := ing.IngestDocument(context.Background(), &Document{SourceID: "d", Category: "bogus", RawText: "x"})
	assert.ErrorIs(t, err, ErrInvalidDocument)
	assert.Zero(t, emb.calls, "invalid documents must not reach the embedder")
	assert.Empty(t, index.deleted, "invalid documents must not touch the index")
}

func TestIngestDocument_EmbedFailureLeavesIndexUntouched(t *testing.T) {
	index := newFakeIndex()
	ing := newTestIngester(&fakeEmbedder{failOn: "Protein"}, index)

	// Seed a previous version.
	_, err := ing.IngestDocument(context.Background(), &Document{
		SourceID: "d", Category: CategoryDiet, RawText: "Old version of the document.",
	})
	require.NoError(t, err)
	before := len(index.records)

	_, err = ing.IngestDocument(context.Background(), &Document{
		SourceID: "d", Category: CategoryDiet, RawText: "Protein intake guidance.",
	})
	require.Error(t, err)
	assert.Len(t, index.records, before, "failed ingest must not delete the previous version")
}

func TestIngestAll_IsolatesFailures(t *testing.T) {
	index := newFakeIndex()
	ing := newTestIngester(&fakeEmbedder{}, index)

	docs := []*Document{
		{SourceID: "ok-1", Category: CategoryWorkout, RawText: "Squat twice a week."},
		{SourceID: "bad", Category: "nonsense", RawText: "x"},
		{SourceID: "ok-2", Category: CategoryDiet, RawText: "Hydrate before sessions."},
	}

	report, err := ing.IngestAll(context.Background(), docs)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Ingested)
	assert.Len(t, report.Failed, 1)
	assert.ErrorIs(t, report.Failed["bad"], ErrInvalidDocument)
	assert.Error(t, report.Err())
}

func TestIngestAll_ContextCancellation(t *testing.T) {
	ing := newTestIngester(&fakeEmbedder{}, newFakeIndex())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ing.IngestAll(ctx, []*Document{
		{SourceID: "d", Category: CategoryWorkout, RawText: "text"},
	})
	assert.ErrorIs(t, err, context.Canceled)
}
