package knowledge

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitstack/fitplanner/internal/log"
)

func articlePage(title, body, link string) string {
	linkHTML := ""
	if link != "" {
		linkHTML = fmt.Sprintf(`<p><a href=%q>related reading</a></p>`, link)
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html><head><title>%s</title></head>
<body>
<article>
<h1>%s</h1>
<p>%s Progressive overload means gradually increasing the weight, frequency,
or number of repetitions in your strength training routine. Increasing the
demand placed on the body forces it to adapt, which over time builds both
muscle size and strength. Without progression, the stimulus stays constant
and adaptation stalls.</p>
<p>Beginners should add load conservatively, around five percent per week on
compound lifts, and deload every fourth week to let connective tissue catch
up with muscular adaptation. Tracking every session in a log makes stalls
visible early.</p>
%s
</article>
</body></html>`, title, title, body, linkHTML)
}

func TestFetcherFetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, articlePage("Progressive Overload", "Start page.", "/linked"))
	})
	mux.HandleFunc("/linked", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, articlePage("Deload Weeks", "Linked page.", ""))
	})
	mux.HandleFunc("/data.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"not":"html"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	logger := log.NewNop()

	t.Run("single page at depth 1", func(t *testing.T) {
		f := NewFetcher(1, 10, logger)
		docs, err := f.Fetch(srv.URL+"/start", CategoryWorkout, map[string]string{"experience_level": "beginner"})
		require.NoError(t, err)
		require.Len(t, docs, 1)

		doc := docs[0]
		assert.Equal(t, srv.URL+"/start", doc.SourceID)
		assert.Equal(t, CategoryWorkout, doc.Category)
		assert.Equal(t, "beginner", doc.Tags["experience_level"])
		assert.Contains(t, doc.RawText, "Progressive Overload")
		assert.Contains(t, doc.RawText, "Progressive overload means gradually")
		require.NoError(t, doc.Validate())
	})

	t.Run("follows same host links at depth 2", func(t *testing.T) {
		f := NewFetcher(2, 10, logger)
		docs, err := f.Fetch(srv.URL+"/start", CategoryWorkout, nil)
		require.NoError(t, err)
		require.Len(t, docs, 2)

		// Sorted by URL: /linked before /start.
		assert.Equal(t, srv.URL+"/linked", docs[0].SourceID)
		assert.Equal(t, srv.URL+"/start", docs[1].SourceID)
		assert.Contains(t, docs[0].RawText, "Deload Weeks")
	})

	t.Run("page cap limits crawl", func(t *testing.T) {
		f := NewFetcher(2, 1, logger)
		docs, err := f.Fetch(srv.URL+"/start", CategoryWorkout, nil)
		require.NoError(t, err)
		assert.Len(t, docs, 1)
	})

	t.Run("non-html content is skipped", func(t *testing.T) {
		f := NewFetcher(1, 10, logger)
		_, err := f.Fetch(srv.URL+"/data.json", CategoryNutrition, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEmptyCorpus)
	})

	t.Run("unknown category rejected", func(t *testing.T) {
		f := NewFetcher(1, 10, logger)
		_, err := f.Fetch(srv.URL+"/start", "mindfulness", nil)
		assert.ErrorIs(t, err, ErrInvalidDocument)
	})

	t.Run("unsupported scheme rejected", func(t *testing.T) {
		f := NewFetcher(1, 10, logger)
		_, err := f.Fetch("ftp://example.com/doc", CategoryWorkout, nil)
		assert.Error(t, err)
	})
}
