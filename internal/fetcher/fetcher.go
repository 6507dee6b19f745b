// CLAUDE:SUMMARY Rate-limited HTTP GET for the rewrite proxy: browser-like headers, body cap, status and content-type checks.
// Package fetcher is the HTTP acquisition path of the rewrite proxy: one
// GET per page, paced by a token bucket, with a capped body.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMaxBody caps a page download.
const DefaultMaxBody = 10 << 20

// ErrNotHTML is returned when the response is not an HTML document.
var ErrNotHTML = errors.New("fetcher: response is not html")

// ErrTooLarge is returned when the body exceeds the cap.
var ErrTooLarge = errors.New("fetcher: body exceeds limit")

// StatusError reports a non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetcher: %s: status %d", e.URL, e.Code)
}

// Result is a fetched page.
type Result struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
	// Static is false when the page looks like a script-rendered shell
	// that needs a browser to show its content.
	Static bool
}

// Fetcher performs paced HTTP GETs.
type Fetcher struct {
	client  *http.Client
	ua      string
	limiter *rate.Limiter
	maxBody int64
	logger  *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets a custom HTTP client.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.ua = ua
		}
	}
}

// WithRate limits requests to r per second with the given burst. A
// non-positive r disables pacing.
func WithRate(r float64, burst int) Option {
	return func(f *Fetcher) {
		if r <= 0 {
			f.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		f.limiter = rate.NewLimiter(rate.Limit(r), max(burst, 1))
	}
}

// WithMaxBody sets the body cap in bytes.
func WithMaxBody(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBody = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// New creates a Fetcher. Defaults: 30s timeout, 2 requests per second
// with a burst of 4, 10MB body cap.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:  &http.Client{Timeout: 30 * time.Second},
		ua:      "Mozilla/5.0 (compatible; adfriend/1.0)",
		limiter: rate.NewLimiter(2, 4),
		maxBody: DefaultMaxBody,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch GETs pageURL once the limiter allows it.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*Result, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("fetcher: rate limit: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetcher: new request: %w", err)
	}
	req.Header.Set("User-Agent", f.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetcher: do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: pageURL, Code: resp.StatusCode}
	}
	ct := resp.Header.Get("Content-Type")
	if ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || (mt != "text/html" && mt != "application/xhtml+xml") {
			return nil, fmt.Errorf("%w: %s", ErrNotHTML, ct)
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("fetcher: read body: %w", err)
	}
	if int64(len(body)) > f.maxBody {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, f.maxBody)
	}

	res := &Result{
		URL:         pageURL,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: ct,
		Body:        body,
		Static:      IsStatic(body),
	}
	f.logger.Debug("fetcher: fetched",
		"url", pageURL, "status", resp.StatusCode,
		"size", len(body), "static", res.Static)
	return res, nil
}
