// CLAUDE:SUMMARY Live browser session: stealth tab, roddom document, interceptions installed before navigation, engine initialised, periodic stats logging.
// Package live runs the ad engine inside a real Chrome tab.
package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/adfriend/adreplacer"
	"github.com/hazyhaar/adfriend/adtaxonomy"
	"github.com/hazyhaar/adfriend/dom/roddom"
	"github.com/hazyhaar/adfriend/replacement"
)

// DefaultStatsInterval is how often Run logs the counters.
const DefaultStatsInterval = 30 * time.Second

// TabOpener hands out blank tabs. *browser.Manager satisfies it.
type TabOpener interface {
	OpenTab(ctx context.Context) (*rod.Page, error)
}

// Config configures a Session.
type Config struct {
	Browser   TabOpener
	Taxonomy  *adtaxonomy.Taxonomy
	Reminders replacement.ReminderSource
	Quotes    []replacement.Quote
	Logger    *slog.Logger

	// NavigateTimeout bounds the initial navigation. Default: 30s.
	NavigateTimeout time.Duration
	StatsInterval   time.Duration
	Now             func() time.Time
}

func (c *Config) defaults() {
	if c.Taxonomy == nil {
		c.Taxonomy = adtaxonomy.Default()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = 30 * time.Second
	}
	if c.StatsInterval <= 0 {
		c.StatsInterval = DefaultStatsInterval
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Session is one page under the engine's control.
type Session struct {
	URL string

	cfg  Config
	page *rod.Page
	doc  *roddom.Document
	rep  *adreplacer.Replacer
}

// Open opens a tab on pageURL with the engine running. The interception
// shims are registered before navigation so that ad globals defined by the
// page's first scripts are already wrapped.
func Open(ctx context.Context, cfg Config, pageURL string) (*Session, error) {
	cfg.defaults()
	if cfg.Browser == nil {
		return nil, errors.New("live: no browser")
	}
	log := cfg.Logger.With("url", pageURL)

	page, err := cfg.Browser.OpenTab(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := roddom.New(ctx, page, roddom.WithLogger(cfg.Logger))
	if err != nil {
		_ = page.Close()
		return nil, err
	}

	ropts := replacement.Options{Quotes: cfg.Quotes, Reminders: cfg.Reminders, Logger: cfg.Logger}
	mgr := replacement.NewManager(cfg.Logger, replacement.Defaults(doc, ropts)...)
	rep := adreplacer.New(doc, mgr, adreplacer.Config{
		Taxonomy: cfg.Taxonomy,
		Logger:   cfg.Logger,
		Now:      cfg.Now,
	})
	s := &Session{URL: pageURL, cfg: cfg, page: page, doc: doc, rep: rep}

	if err := rep.InstallInterceptions(); err != nil {
		log.Warn("live: interceptions failed", "error", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, cfg.NavigateTimeout)
	defer cancel()
	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		s.Close()
		return nil, fmt.Errorf("live: navigate %s: %w", pageURL, err)
	}

	if err := rep.Initialize(ctx); err != nil {
		if ctx.Err() != nil {
			s.Close()
			return nil, fmt.Errorf("live: initialize: %w", err)
		}
		log.Warn("live: engine reported errors", "error", err)
	}
	log.Info("live: session open", "stats", rep.Stats())
	return s, nil
}

// Stats returns the engine counters.
func (s *Session) Stats() adreplacer.Stats { return s.rep.Stats() }

// Replacer returns the engine bound to the page.
func (s *Session) Replacer() *adreplacer.Replacer { return s.rep }

// Run logs the counters every StatsInterval until ctx ends, then closes
// the session.
func (s *Session) Run(ctx context.Context) error {
	defer s.Close()
	t := time.NewTicker(s.cfg.StatsInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.cfg.Logger.Info("live: session done", "url", s.URL, "stats", s.rep.Stats())
			return nil
		case <-t.C:
			s.cfg.Logger.Info("live: stats", "url", s.URL, "stats", s.rep.Stats())
		}
	}
}

// Close stops the engine and closes the tab.
func (s *Session) Close() error {
	s.rep.Stop()
	s.rep.Wait()
	err := s.doc.Close()
	if perr := s.page.Close(); perr != nil && err == nil {
		err = perr
	}
	return err
}
