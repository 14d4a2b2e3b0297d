// Package newsmaker scrapes the newsmaker.id site: per-symbol historical
// price tables, the symbol directory, news listings and the economic
// calendar. All pages are plain HTML tables or lists.
package newsmaker

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jpillora/backoff"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL    = "https://www.newsmaker.id/index.php/en"
	defaultTimeout    = 120 * time.Second
	defaultAttempts   = 3
	defaultRetryDelay = time.Second
	userAgent         = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

// Scraper fetches and parses pages from the source site.
type Scraper struct {
	client     *http.Client
	baseURL    string
	attempts   int
	retryDelay time.Duration
	limiter    *rate.Limiter

	newsCategories []string
	newsPages      int
}

// New creates a Scraper with the given options applied.
func New(opts ...Option) *Scraper {
	s := &Scraper{
		client:         &http.Client{Timeout: defaultTimeout},
		baseURL:        defaultBaseURL,
		attempts:       defaultAttempts,
		retryDelay:     defaultRetryDelay,
		limiter:        rate.NewLimiter(rate.Inf, 1),
		newsCategories: defaultNewsCategories,
		newsPages:      defaultNewsPages,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithClient sets the HTTP client.
func WithClient(c *http.Client) Option {
	return func(s *Scraper) { s.client = c }
}

// WithBaseURL overrides the site root that every page path is joined to.
func WithBaseURL(u string) Option {
	return func(s *Scraper) { s.baseURL = u }
}

// WithRetryDelay sets the first backoff delay for page retries. Each
// further retry doubles it.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Scraper) { s.retryDelay = d }
}

// WithRequestsPerSecond caps the request rate across all callers of the
// scraper. Zero or less leaves it unlimited.
func WithRequestsPerSecond(rps float64) Option {
	return func(s *Scraper) {
		if rps > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithNewsCategories replaces the news category paths that are scraped.
func WithNewsCategories(categories ...string) Option {
	return func(s *Scraper) { s.newsCategories = categories }
}

// WithNewsPages sets how many listing pages are read per category.
func WithNewsPages(n int) Option {
	return func(s *Scraper) { s.newsPages = n }
}

// fetchDocument performs a single GET and parses the body as HTML.
func (s *Scraper) fetchDocument(ctx context.Context, reqURL string) (*goquery.Document, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	res, err := s.client.Do(req) //nolint:gosec // URL built from internal config
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("newsmaker returned HTTP %d for %s", res.StatusCode, reqURL)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// fetchWithRetry retries fetchDocument, and the optional check on the parsed
// document, with exponential backoff. It gives up after s.attempts tries.
func (s *Scraper) fetchWithRetry(ctx context.Context, reqURL string, check func(*goquery.Document) error) (*goquery.Document, error) {
	b := &backoff.Backoff{
		Min:    s.retryDelay,
		Max:    s.retryDelay * time.Duration(1<<s.attempts),
		Factor: 2,
	}

	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		doc, err := s.fetchDocument(ctx, reqURL)
		if err == nil && check != nil {
			err = check(doc)
		}
		if err == nil {
			return doc, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == s.attempts {
			break
		}

		wait := b.Duration()
		slog.Warn("newsmaker request failed, retrying", "url", reqURL,
			"attempt", attempt, "wait", wait.String(), "error", err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", s.attempts, lastErr)
}

// absURL resolves href against the site origin.
func (s *Scraper) absURL(href string) string {
	if href == "" {
		return ""
	}
	base, err := url.Parse(s.baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
