package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/adfriend/kit"
	"github.com/hazyhaar/adfriend/rewrite"
	"github.com/hazyhaar/adfriend/shield"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reminder service, message API and rewrite proxy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				opts.cfg.Server.Addr = addr
			}
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func runServe(ctx context.Context, opts *rootOptions) error {
	a, err := newApp(ctx, opts.cfg, opts.logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.service.Start(); err != nil {
		return err
	}
	go a.watchRoutes(ctx)

	srv := &http.Server{
		Addr:              opts.cfg.Server.Addr,
		Handler:           newHandler(a, a.rewriter()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		opts.logger.Info("adfriend: listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	opts.logger.Info("adfriend: shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

func newHandler(a *app, rw *rewrite.Rewriter) http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack(shield.StackConfig{
		MaxBody: a.cfg.Server.MaxBody,
		Rate:    10,
		Burst:   20,
		Exempt:  []string{"/health"},
	}) {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Message API: the same envelope the engine sends through connectivity.
	r.Post("/api/message", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": err.Error()})
			return
		}
		ctx := kit.WithRequestID(r.Context(), r.Header.Get("X-Request-ID"))
		resp, err := a.service.Handle(ctx, body)
		if err != nil {
			shield.GetLogger(r.Context()).Warn("adfriend: bad message", "error", err)
			writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(resp)
	})

	rw.Routes(r)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
