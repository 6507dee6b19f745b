// CLAUDE:SUMMARY Rewrite proxy: fetch a page, run the ad engine on a parsed document, render HTML or Markdown; concurrent identical requests share one run.
// Package rewrite runs the ad engine outside a browser. A page is fetched
// over HTTP, parsed into an htmldom document and initialised exactly as a
// live page would be; the resulting tree is rendered back as HTML, or as
// Markdown for reading.
package rewrite

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"golang.org/x/sync/singleflight"

	"github.com/hazyhaar/adfriend/adreplacer"
	"github.com/hazyhaar/adfriend/adtaxonomy"
	"github.com/hazyhaar/adfriend/dom"
	"github.com/hazyhaar/adfriend/dom/htmldom"
	"github.com/hazyhaar/adfriend/internal/fetcher"
	"github.com/hazyhaar/adfriend/replacement"
)

// Format selects the output rendering.
type Format string

const (
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts "html", "markdown" and "md". Empty means HTML.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "html":
		return FormatHTML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("rewrite: unknown format %q", s)
}

// Result is a rewritten page.
type Result struct {
	URL     string           `json:"url"`
	Format  Format           `json:"format"`
	Content string           `json:"content"`
	Stats   adreplacer.Stats `json:"stats"`
	// NeedsBrowser is set when the fetched HTML looks like a
	// script-rendered shell; its ads only exist in a live page.
	NeedsBrowser bool `json:"needs_browser"`
}

// Fetcher acquires a page. *fetcher.Fetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (*fetcher.Result, error)
}

// Config configures a Rewriter.
type Config struct {
	Fetcher   Fetcher
	Taxonomy  *adtaxonomy.Taxonomy
	Reminders replacement.ReminderSource
	Quotes    []replacement.Quote
	Logger    *slog.Logger

	// DebounceWindow and MaxBuffer tune the document observer.
	DebounceWindow time.Duration
	MaxBuffer      int

	Now func() time.Time
}

// Rewriter turns pages into their ad-free rendition.
type Rewriter struct {
	cfg   Config
	md    *converter.Converter
	group singleflight.Group
}

// New creates a Rewriter.
func New(cfg Config) *Rewriter {
	if cfg.Fetcher == nil {
		cfg.Fetcher = fetcher.New(fetcher.WithLogger(cfg.Logger))
	}
	if cfg.Taxonomy == nil {
		cfg.Taxonomy = adtaxonomy.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Rewriter{
		cfg: cfg,
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Rewrite fetches pageURL and rewrites it. Concurrent calls for the same
// URL and format share a single fetch and engine run.
func (rw *Rewriter) Rewrite(ctx context.Context, pageURL string, format Format) (*Result, error) {
	v, err, shared := rw.group.Do(string(format)+"\x00"+pageURL, func() (any, error) {
		page, err := rw.cfg.Fetcher.Fetch(ctx, pageURL)
		if err != nil {
			return nil, err
		}
		base := page.FinalURL
		if base == "" {
			base = pageURL
		}
		res, err := rw.RewriteHTML(ctx, base, page.Body, format)
		if err != nil {
			return nil, err
		}
		res.NeedsBrowser = !page.Static
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		rw.cfg.Logger.Debug("rewrite: shared result", "url", pageURL)
	}
	return v.(*Result), nil
}

// RewriteHTML runs the ad engine on body, a page served from pageURL.
// Step failures inside the engine are logged; only a cancelled context or
// an unparseable document fails the call.
func (rw *Rewriter) RewriteHTML(ctx context.Context, pageURL string, body []byte, format Format) (*Result, error) {
	log := rw.cfg.Logger.With("url", pageURL)
	var opts []htmldom.Option
	opts = append(opts, htmldom.WithOrigin(pageURL), htmldom.WithLogger(rw.cfg.Logger))
	if rw.cfg.DebounceWindow > 0 {
		opts = append(opts, htmldom.WithDebounce(rw.cfg.DebounceWindow, rw.cfg.MaxBuffer))
	}
	doc, err := htmldom.Parse(bytes.NewReader(body), opts...)
	if err != nil {
		return nil, fmt.Errorf("rewrite: %w", err)
	}

	ropts := replacement.Options{Quotes: rw.cfg.Quotes, Reminders: rw.cfg.Reminders, Logger: rw.cfg.Logger}
	mgr := replacement.NewManager(rw.cfg.Logger, replacement.Defaults(doc, ropts)...)
	rep := adreplacer.New(doc, mgr, adreplacer.Config{
		Taxonomy: rw.cfg.Taxonomy,
		Logger:   rw.cfg.Logger,
		Now:      rw.cfg.Now,
	})

	initErr := rep.Initialize(ctx)
	rep.Stop()
	rep.Wait()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("rewrite: %w", err)
	}
	if initErr != nil {
		log.Warn("rewrite: engine reported errors", "error", initErr)
	}

	stats := rep.Stats()
	log.Info("rewrite: page rewritten",
		"format", format, "processed", stats.Processed, "replaced", stats.Replaced)

	var content string
	switch format {
	case FormatMarkdown:
		if err := stripForReading(doc); err != nil {
			log.Debug("rewrite: strip failed", "error", err)
		}
		content, err = rw.md.ConvertString(doc.String(), converter.WithDomain(pageURL))
		if err != nil {
			return nil, fmt.Errorf("rewrite: markdown: %w", err)
		}
	default:
		if err := addBase(doc, pageURL); err != nil {
			log.Debug("rewrite: base href failed", "error", err)
		}
		content = doc.String()
	}
	return &Result{URL: pageURL, Format: format, Content: content, Stats: stats}, nil
}

// stripForReading removes the hidden ads and the template container, which
// a text rendition would otherwise show.
func stripForReading(doc *htmldom.Document) error {
	var errs []error
	if box, err := doc.ElementByID(replacement.ContainerID); err == nil {
		errs = append(errs, box.Remove())
	}
	hidden, err := doc.QueryAll(`[` + adreplacer.ProcessedAttr + `="true"]`)
	if err != nil {
		return err
	}
	for _, el := range hidden {
		if err := el.Remove(); err != nil && !errors.Is(err, dom.ErrDetached) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// addBase keeps relative links working once the page is served from the
// proxy. Pages that declare their own base are left alone.
func addBase(doc *htmldom.Document, pageURL string) error {
	if bases, err := doc.QueryAll("base[href]"); err != nil || len(bases) > 0 {
		return err
	}
	heads, err := doc.QueryAll("head")
	if err != nil || len(heads) == 0 {
		return err
	}
	return doc.AppendHTML(heads[0], `<base href="`+html.EscapeString(pageURL)+`">`)
}
