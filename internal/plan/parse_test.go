package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fitstack/fitplanner/internal/log"
)

func TestParseResponse_ValidCitations(t *testing.T) {
	raw := "Day 1: squats.\nDay 2: rest.\nCITED_CHUNKS: chunk-a, chunk-b"

	p := parseResponse(raw, []string{"chunk-a", "chunk-b", "chunk-c"}, log.NewNop())

	assert.Equal(t, "Day 1: squats.\nDay 2: rest.", p.Content)
	assert.Equal(t, []string{"chunk-a", "chunk-b"}, p.Citations)
	assert.Empty(t, p.Violations)
	assert.False(t, p.MissingLine)
}

func TestParseResponse_DropsUnknownCitations(t *testing.T) {
	raw := "Plan text.\nCITED_CHUNKS: chunk-a, invented-1, chunk-b"

	p := parseResponse(raw, []string{"chunk-a", "chunk-b"}, log.NewNop())

	assert.Equal(t, []string{"chunk-a", "chunk-b"}, p.Citations)
	assert.Equal(t, []string{"invented-1"}, p.Violations)
}

func TestParseResponse_None(t *testing.T) {
	p := parseResponse("Not enough context to answer.\nCITED_CHUNKS: none", []string{"a"}, log.NewNop())

	assert.Equal(t, "Not enough context to answer.", p.Content)
	assert.Empty(t, p.Citations)
	assert.Empty(t, p.Violations)
	assert.False(t, p.MissingLine)
}

func TestParseResponse_MissingLine(t *testing.T) {
	p := parseResponse("Plan with no citations at all.", []string{"a"}, log.NewNop())

	assert.True(t, p.MissingLine)
	assert.Equal(t, "Plan with no citations at all.", p.Content)
}

func TestParseResponse_Deduplicates(t *testing.T) {
	p := parseResponse("x\nCITED_CHUNKS: a, a, b", []string{"a", "b"}, log.NewNop())
	assert.Equal(t, []string{"a", "b"}, p.Citations)
}

func TestParseResponse_CitationLineNotLast(t *testing.T) {
	// Some models append whitespace or a sign-off after the line; the
	// parser scans from the end for the last citation line.
	raw := "Plan text.\nCITED_CHUNKS: a\n\n"
	p := parseResponse(raw, []string{"a"}, log.NewNop())

	assert.Equal(t, []string{"a"}, p.Citations)
	assert.Equal(t, "Plan text.", p.Content)
}
