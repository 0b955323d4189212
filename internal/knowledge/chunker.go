package knowledge

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Chunker splits document text into overlapping chunks of bounded size.
// The split is deterministic: the same input always produces the same
// chunks in the same order, which keeps chunk IDs stable across
// re-ingestion.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker with the given maximum chunk size and
// overlap, both in bytes. Overlap must be smaller than size; the
// constructor clamps rather than errors since config validation already
// rejects inconsistent values.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split chunks a validated document. Boundaries prefer paragraph breaks,
// then sentence ends, then whitespace, and only cut mid-word as a last
// resort, so a chunk rarely starts in the middle of a thought. Adjacent
// chunks share the trailing overlap bytes of the previous chunk.
func (c *Chunker) Split(doc *Document) []Chunk {
	text := strings.TrimSpace(doc.RawText)
	if text == "" {
		return nil
	}

	now := time.Now().UTC()
	var chunks []Chunk

	start := 0
	position := 0
	for start < len(text) {
		end := start + c.size
		if end >= len(text) {
			end = len(text)
		} else {
			end = c.cutPoint(text, start, end)
		}

		piece := strings.TrimSpace(text[start:end])
		if piece != "" {
			chunks = append(chunks, Chunk{
				ID:        ChunkID(doc.SourceID, position),
				SourceID:  doc.SourceID,
				Position:  position,
				Category:  doc.Category,
				Tags:      doc.Tags,
				Text:      piece,
				CreatedAt: now,
			})
			position++
		}

		if end >= len(text) {
			break
		}
		next := end - c.overlap
		if next <= start {
			// Guard against zero progress on pathological inputs.
			next = start + 1
		}
		// The overlap step counts bytes, so align forward to the next
		// rune start; end itself is always a boundary.
		for next < end && !utf8.RuneStart(text[next]) {
			next++
		}
		start = next
	}

	return chunks
}

// cutPoint finds the best boundary at or before the hard limit. It scans
// the back half of the window so a found boundary never produces a tiny
// fragment.
func (c *Chunker) cutPoint(text string, start, limit int) int {
	// Never split a multi-byte rune.
	for limit > start && !utf8.RuneStart(text[limit]) {
		limit--
	}

	window := text[start:limit]
	floor := len(window) / 2

	if i := strings.LastIndex(window, "\n\n"); i > floor {
		return start + i + 2
	}
	for _, sep := range []string{". ", "! ", "? ", "\n"} {
		if i := strings.LastIndex(window, sep); i > floor {
			return start + i + len(sep)
		}
	}
	if i := strings.LastIndexByte(window, ' '); i > floor {
		return start + i + 1
	}
	return limit
}
