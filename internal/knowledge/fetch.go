package knowledge

import (
	"bytes"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/gocolly/colly/v2"

	"github.com/fitstack/fitplanner/internal/log"
)

// Fetcher crawls web pages and converts their readable article content
// into Documents ready for ingestion. The crawl stays on the start URL's
// host; the SourceID is the page URL, so re-fetching a page replaces its
// chunks the same way re-ingesting a file does.
type Fetcher struct {
	maxDepth int
	maxPages int
	timeout  time.Duration
	logger   log.Logger
}

// NewFetcher creates a Fetcher. maxDepth 1 fetches only the start URL;
// 2 follows its same-host links one hop. maxPages caps the total pages
// visited regardless of depth.
func NewFetcher(maxDepth, maxPages int, logger log.Logger) *Fetcher {
	if maxDepth < 1 {
		maxDepth = 1
	}
	if maxPages < 1 {
		maxPages = 1
	}
	return &Fetcher{
		maxDepth: maxDepth,
		maxPages: maxPages,
		timeout:  30 * time.Second,
		logger:   logger,
	}
}

// Fetch crawls from startURL and returns one Document per page whose
// article extraction yielded usable text. Pages that fail extraction are
// logged and skipped. Results are sorted by URL so repeated fetches
// produce documents in the same order.
func (f *Fetcher) Fetch(startURL, category string, tags map[string]string) ([]*Document, error) {
	if !validCategories[category] {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidDocument, category)
	}
	start, err := url.Parse(startURL)
	if err != nil {
		return nil, fmt.Errorf("parsing start URL: %w", err)
	}
	if start.Scheme != "http" && start.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme %q", start.Scheme)
	}

	c := colly.NewCollector(
		colly.AllowedDomains(start.Hostname()),
		colly.MaxDepth(f.maxDepth),
	)
	c.SetRequestTimeout(f.timeout)

	var (
		mu      sync.Mutex
		docs    []*Document
		visited int
	)

	c.OnRequest(func(r *colly.Request) {
		mu.Lock()
		defer mu.Unlock()
		if visited >= f.maxPages {
			r.Abort()
			return
		}
		visited++
	})

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		// Visit errors here are expected noise: off-host links, depth
		// limit, already-visited pages.
		_ = e.Request.Visit(e.Attr("href"))
	})

	c.OnResponse(func(r *colly.Response) {
		contentType := r.Headers.Get("Content-Type")
		if contentType != "" && !strings.Contains(contentType, "html") {
			return
		}

		article, err := readability.FromReader(bytes.NewReader(r.Body), r.Request.URL)
		if err != nil {
			f.logger.Warn("article extraction failed", "url", r.Request.URL.String(), "error", err)
			return
		}
		text := strings.TrimSpace(article.TextContent)
		if text == "" {
			f.logger.Debug("page has no readable article content", "url", r.Request.URL.String())
			return
		}
		if article.Title != "" {
			text = article.Title + "\n\n" + text
		}

		mu.Lock()
		docs = append(docs, &Document{
			SourceID: r.Request.URL.String(),
			Category: category,
			Tags:     tags,
			RawText:  text,
		})
		mu.Unlock()
	})

	c.OnError(func(r *colly.Response, err error) {
		f.logger.Warn("fetch failed", "url", r.Request.URL.String(), "error", err)
	})

	if err := c.Visit(start.String()); err != nil {
		return nil, fmt.Errorf("fetching %s: %w", start, err)
	}
	c.Wait()

	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no readable pages at %s", ErrEmptyCorpus, start)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].SourceID < docs[j].SourceID })
	return docs, nil
}
