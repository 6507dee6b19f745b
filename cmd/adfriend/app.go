package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazyhaar/adfriend/adtaxonomy"
	"github.com/hazyhaar/adfriend/connectivity"
	"github.com/hazyhaar/adfriend/internal/config"
	"github.com/hazyhaar/adfriend/internal/fetcher"
	"github.com/hazyhaar/adfriend/reminders"
	"github.com/hazyhaar/adfriend/rewrite"
)

// app holds what every subcommand shares: the taxonomy, the reminder
// store and service, and the connectivity router the engine calls them
// through.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	tax      *adtaxonomy.Taxonomy
	store    *reminders.Store
	service  *reminders.Service
	router   *connectivity.Router
	routesDB *sql.DB
	client   *reminders.Client
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	tax, err := adtaxonomy.Load(cfg.TaxonomyFile)
	if err != nil {
		return nil, err
	}
	store, err := reminders.OpenStore(cfg.Reminders.DBPath, reminders.WithStoreLogger(logger))
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, tax: tax, store: store}

	a.service = reminders.NewService(store,
		reminders.WithLogger(logger),
		reminders.WithPurgeSpec(cfg.Reminders.PurgeSpec))

	a.router = connectivity.New(connectivity.WithLogger(logger))
	a.router.RegisterTransport("http", connectivity.HTTPFactory())
	a.service.RegisterConnectivity(a.router)

	if cfg.Reminders.RoutesDB == cfg.Reminders.DBPath {
		a.routesDB = store.DB
		err = connectivity.Init(a.routesDB)
	} else {
		a.routesDB, err = connectivity.OpenDB(cfg.Reminders.RoutesDB)
	}
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("routes db: %w", err)
	}
	if err := a.routeReminders(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.client = reminders.NewClient(a.router)
	return a, nil
}

// routeReminders points the reminder service at the configured remote
// endpoint, or back at the local store.
func (a *app) routeReminders(ctx context.Context) error {
	admin := connectivity.NewAdmin(a.routesDB)
	if ep := a.cfg.Reminders.Service; ep != "" {
		if err := admin.UpsertRoute(ctx, reminders.ServiceName, "http", ep, nil); err != nil {
			return err
		}
	} else if rt, err := admin.GetRoute(ctx, reminders.ServiceName); err == nil && rt != nil && rt.Strategy == "http" {
		if err := admin.DeleteRoute(ctx, reminders.ServiceName); err != nil {
			return err
		}
	}
	if err := a.router.Reload(ctx, a.routesDB); err != nil {
		a.logger.Warn("adfriend: some routes could not be built", "error", err)
	}
	return nil
}

func (a *app) rewriter() *rewrite.Rewriter {
	f := a.cfg.Fetch
	return rewrite.New(rewrite.Config{
		Fetcher: fetcher.New(
			fetcher.WithClient(&http.Client{Timeout: f.Timeout}),
			fetcher.WithUserAgent(f.UserAgent),
			fetcher.WithRate(f.Rate, f.Burst),
			fetcher.WithMaxBody(f.MaxBody),
			fetcher.WithLogger(a.logger),
		),
		Taxonomy:       a.tax,
		Reminders:      a.client,
		Logger:         a.logger,
		DebounceWindow: a.cfg.Observer.DebounceWindow,
		MaxBuffer:      a.cfg.Observer.MaxBuffer,
	})
}

// watchRoutes reloads the routes table when it changes, until ctx ends.
func (a *app) watchRoutes(ctx context.Context) {
	a.router.Watch(ctx, a.routesDB, 5*time.Second)
}

func (a *app) Close() error {
	a.service.Stop()
	var errs []error
	if a.router != nil {
		errs = append(errs, a.router.Close())
	}
	if a.routesDB != nil && a.routesDB != a.store.DB {
		errs = append(errs, a.routesDB.Close())
	}
	errs = append(errs, a.store.Close())
	return errors.Join(errs...)
}
