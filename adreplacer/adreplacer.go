// CLAUDE:SUMMARY Page lifecycle of the ad engine: templates, script removal, interceptions, sweep, iframe scan, mutation watch, all funnelled into ReplaceSingleAd.
// Package adreplacer finds ad slots in a dom.Document and swaps each one for
// a piece of friendly content.
//
// Every detection path (initial sweep, iframe scan, mutation watch and the
// interception shims) ends in the same funnel, ReplaceSingleAd, which claims
// the element, hides it, normalises its size and splices the replacement in
// as its next sibling. Hidden ads are never removed, so host scripts that
// hold references to them keep working.
package adreplacer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/adfriend/adtaxonomy"
	"github.com/hazyhaar/adfriend/dom"
	"github.com/hazyhaar/adfriend/replacement"
)

const (
	// InitializedFlag is the page-global flag that makes Initialize run once per page.
	InitializedFlag = "adFriendInitialized"
	// ProcessedAttr marks elements the replacer has claimed.
	ProcessedAttr = "data-adfriend-processed"
	// ReplacementAttr marks inserted replacement content.
	ReplacementAttr = "data-adfriend-replacement"
)

// excluded matches elements that must never be treated as ad candidates:
// our own templates and replacements, and everything inside them.
var excluded = "#" + replacement.ContainerID + ", #" + replacement.ContainerID + " *, " +
	"[" + ReplacementAttr + "], [" + ReplacementAttr + "] *"

// ContentSource produces replacement content for a normalised slot.
// *replacement.Manager satisfies it.
type ContentSource interface {
	Next(ctx context.Context, rect *dom.Rect) dom.Element
}

// Config configures a Replacer.
type Config struct {
	// Taxonomy defaults to adtaxonomy.Default().
	Taxonomy *adtaxonomy.Taxonomy
	Logger   *slog.Logger
	// Interceptions defaults to DefaultInterceptions(). A non-nil empty
	// slice installs nothing.
	Interceptions []Interception
	// Now stamps the reminder template header. Default: time.Now.
	Now func() time.Time
}

// Replacer runs the ad engine on one document.
type Replacer struct {
	doc     dom.Document
	content ContentSource
	tax     *adtaxonomy.Taxonomy
	union   string
	logger  *slog.Logger
	now     func() time.Time

	interceptions []Interception
	registry      *Registry
	stats         counters
	wg            sync.WaitGroup

	tplMu sync.Mutex

	mu        sync.Mutex
	ctx       context.Context
	installed bool
	stopWatch func()
}

// New returns a Replacer for doc. It does nothing until Initialize.
func New(doc dom.Document, content ContentSource, cfg Config) *Replacer {
	if cfg.Taxonomy == nil {
		cfg.Taxonomy = adtaxonomy.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Interceptions == nil {
		cfg.Interceptions = DefaultInterceptions()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Replacer{
		doc:           doc,
		content:       content,
		tax:           cfg.Taxonomy,
		union:         cfg.Taxonomy.Union(),
		logger:        cfg.Logger,
		now:           cfg.Now,
		interceptions: cfg.Interceptions,
		registry:      NewRegistry(),
		ctx:           context.Background(),
	}
}

// Registry returns the processed-element set.
func (r *Replacer) Registry() *Registry { return r.registry }

// Stats returns a snapshot of the counters.
func (r *Replacer) Stats() Stats { return r.stats.snapshot() }

// Initialize runs the page lifecycle once per page: templates, ad script
// removal, interceptions, the initial sweep, the iframe scan and the
// mutation watch, in that order. A failing step does not stop the next
// one; step errors are joined and returned at the end.
func (r *Replacer) Initialize(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("adreplacer: initialize panicked", "panic", p)
			err = fmt.Errorf("adreplacer: initialize: panic: %v", p)
		}
	}()

	if err := r.doc.WaitReady(ctx, dom.Interactive); err != nil {
		return fmt.Errorf("adreplacer: wait ready: %w", err)
	}
	if !r.doc.Window().MarkOnce(InitializedFlag) {
		r.logger.Debug("adreplacer: already initialized")
		return nil
	}
	r.mu.Lock()
	r.ctx = ctx
	r.mu.Unlock()

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"templates", r.injectTemplates},
		{"scripts", r.removeAdScripts},
		{"interceptions", func(context.Context) error { return r.InstallInterceptions() }},
		{"sweep", r.sweep},
		{"iframes", func(ctx context.Context) error { return r.scanIframes(ctx, r.ReplaceSingleAd) }},
		{"observe", func(context.Context) error { return r.observe() }},
	}
	var errs []error
	for _, s := range steps {
		if err := r.runStep(ctx, s.name, s.fn); err != nil {
			errs = append(errs, fmt.Errorf("adreplacer: %s: %w", s.name, err))
		}
	}
	r.logger.Info("adreplacer: initialized", "processed", r.stats.processed.Load(), "errors", len(errs))
	return errors.Join(errs...)
}

func (r *Replacer) runStep(ctx context.Context, name string, fn func(context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("adreplacer: step panicked", "step", name, "panic", p)
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	if err := fn(ctx); err != nil {
		r.logger.Warn("adreplacer: step failed", "step", name, "error", err)
		return err
	}
	return nil
}

// context returns the context Initialize was called with, for work that
// starts from callbacks.
func (r *Replacer) context() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ctx
}

// injectTemplates appends the hidden template container to <body> unless
// it is already there. The interception shims may call it before Initialize.
func (r *Replacer) injectTemplates(context.Context) error {
	r.tplMu.Lock()
	defer r.tplMu.Unlock()
	if _, err := r.doc.ElementByID(replacement.ContainerID); err == nil {
		return nil
	} else if !errors.Is(err, dom.ErrNotFound) {
		return err
	}
	body, err := r.doc.Body()
	if err != nil {
		return err
	}
	box, err := r.doc.CreateElement("div")
	if err != nil {
		return err
	}
	if err := box.SetAttr("id", replacement.ContainerID); err != nil {
		return err
	}
	if err := box.SetStyle("display", "none", false); err != nil {
		return err
	}
	if err := r.doc.AppendHTML(box, replacement.TemplatesHTML(r.now())); err != nil {
		return err
	}
	return body.AppendChild(box)
}

// removeAdScripts removes <script> elements loading from a known ad host.
func (r *Replacer) removeAdScripts(context.Context) error {
	scripts, err := r.doc.QueryAll("script[src]")
	if err != nil {
		return err
	}
	var errs []error
	for _, s := range scripts {
		src, _ := s.Attr("src")
		if !r.tax.MatchesScriptDomain(src) {
			continue
		}
		if err := s.Remove(); err != nil && !errors.Is(err, dom.ErrDetached) {
			errs = append(errs, err)
			continue
		}
		r.stats.scriptsRemoved.Add(1)
		r.logger.Debug("adreplacer: removed ad script", "src", src)
	}
	return errors.Join(errs...)
}

// sweep replaces every ad already in the document, one at a time.
func (r *Replacer) sweep(ctx context.Context) error {
	ads, err := r.doc.QueryAll(r.union)
	if err != nil {
		return err
	}
	for _, el := range ads {
		if r.isExcluded(el) {
			continue
		}
		r.ReplaceSingleAd(ctx, el)
	}
	r.logger.Debug("adreplacer: sweep done", "candidates", len(ads))
	return nil
}

// Stop disconnects the mutation watch. In-flight replacements keep
// running; use Wait to drain them.
func (r *Replacer) Stop() {
	r.mu.Lock()
	stop := r.stopWatch
	r.stopWatch = nil
	r.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// Wait blocks until every dispatched replacement has finished.
func (r *Replacer) Wait() { r.wg.Wait() }

func (r *Replacer) matchesUnion(el dom.Element) bool {
	ok, err := el.Matches(r.union)
	return err == nil && ok
}

func (r *Replacer) isExcluded(el dom.Element) bool {
	ok, err := el.Matches(excluded)
	return err != nil || ok
}
