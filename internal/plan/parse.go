package plan

import (
	"strings"

	"github.com/fitstack/fitplanner/internal/log"
)

const citationPrefix = "CITED_CHUNKS:"

// parsedResponse is a model response split into plan content and its
// validated citation list.
type parsedResponse struct {
	// Content is the response with the citation line stripped.
	Content string

	// Citations are the cited chunk IDs that exist in the provided
	// context, in the order the model listed them, de-duplicated.
	Citations []string

	// Violations are cited IDs that do NOT exist in the provided
	// context. Any violation downgrades the plan to unverified.
	Violations []string

	// MissingLine is set when the response had no citation line at all,
	// which also downgrades the plan.
	MissingLine bool
}

// parseResponse extracts and validates the citation line against the
// chunk IDs that were actually in the prompt. Invalid citations are
// dropped, never silently kept: a plan must not claim grounding it does
// not have.
func parseResponse(raw string, contextIDs []string, logger log.Logger) parsedResponse {
	if logger == nil {
		logger = log.NewNop()
	}

	known := make(map[string]bool, len(contextIDs))
	for _, id := range contextIDs {
		known[id] = true
	}

	lines := strings.Split(strings.TrimSpace(raw), "\n")
	citationLine := -1
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), citationPrefix) {
			citationLine = i
			break
		}
	}

	if citationLine == -1 {
		logger.Warn("response missing citation line")
		return parsedResponse{Content: strings.TrimSpace(raw), MissingLine: true}
	}

	content := strings.TrimSpace(strings.Join(append(append([]string{}, lines[:citationLine]...), lines[citationLine+1:]...), "\n"))

	payload := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(lines[citationLine]), citationPrefix))
	if strings.EqualFold(payload, "none") || payload == "" {
		return parsedResponse{Content: content}
	}

	var (
		citations  []string
		violations []string
		seen       = make(map[string]bool)
	)
	for _, field := range strings.Split(payload, ",") {
		id := strings.TrimSpace(field)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		if known[id] {
			citations = append(citations, id)
		} else {
			violations = append(violations, id)
		}
	}

	if len(violations) > 0 {
		logger.Warn("dropped citations not present in context",
			"invalid", violations,
			"kept", len(citations))
	}

	return parsedResponse{
		Content:    content,
		Citations:  citations,
		Violations: violations,
	}
}
