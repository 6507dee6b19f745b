package rewrite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/adfriend/internal/fetcher"
)

const pageCSP = "sandbox allow-popups allow-popups-to-escape-sandbox"

// Routes mounts GET /rewrite?url=...&format=html|markdown on r.
func (rw *Rewriter) Routes(r chi.Router) {
	r.Get("/rewrite", rw.handleRewrite)
}

func (rw *Rewriter) handleRewrite(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if err := ValidateURL(target); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	format, err := ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := rw.Rewrite(r.Context(), target, format)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	h := w.Header()
	// Rewritten pages keep third-party markup; it runs in an opaque origin.
	h.Set("Content-Security-Policy", pageCSP)
	if format == FormatMarkdown {
		h.Set("Content-Type", "text/markdown; charset=utf-8")
	} else {
		h.Set("Content-Type", "text/html; charset=utf-8")
	}
	h.Set("X-Adfriend-Processed", strconv.FormatInt(res.Stats.Processed, 10))
	h.Set("X-Adfriend-Replaced", strconv.FormatInt(res.Stats.Replaced, 10))
	if res.NeedsBrowser {
		h.Set("X-Adfriend-Needs-Browser", "true")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(res.Content))
}

// ValidateURL accepts absolute http and https URLs only.
func ValidateURL(raw string) error {
	if raw == "" {
		return errors.New("rewrite: url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("rewrite: bad url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("rewrite: only absolute http(s) urls are proxied, got %q", raw)
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, fetcher.ErrNotHTML):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
