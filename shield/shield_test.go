package shield

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/adfriend/kit"
)

func newRouter(cfg StackConfig) *chi.Mux {
	r := chi.NewRouter()
	for _, mw := range DefaultStack(cfg) {
		r.Use(mw)
	}
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("ok")) })
	r.Get("/trace", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(kit.GetTraceID(r.Context()) + " " + kit.GetTransport(r.Context())))
	})
	r.Post("/echo", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		w.Write(body)
	})
	return r
}

func TestHeadToGet(t *testing.T) {
	r := newRouter(StackConfig{})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("HEAD /health = %d", rec.Code)
	}
}

func TestSecurityHeadersAndTrace(t *testing.T) {
	r := newRouter(StackConfig{})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/trace", nil))
	h := rec.Header()
	if h.Get("X-Content-Type-Options") != "nosniff" || h.Get("X-Frame-Options") != "DENY" {
		t.Errorf("headers = %v", h)
	}
	id := h.Get("X-Trace-ID")
	if len(id) != 8 {
		t.Fatalf("trace id = %q", id)
	}
	if got := rec.Body.String(); got != id+" http" {
		t.Errorf("context = %q", got)
	}
}

func TestMaxBody(t *testing.T) {
	r := newRouter(StackConfig{MaxBody: 16})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"action":"log"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("small body = %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(strings.Repeat("x", 64))))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("large body = %d", rec.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	r := newRouter(StackConfig{Rate: 1, Burst: 2, Exempt: []string{"/health"}})
	do := func(path, ip string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}
	if do("/trace", "1.1.1.1") != 200 || do("/trace", "1.1.1.1") != 200 {
		t.Fatal("burst not honoured")
	}
	if code := do("/trace", "1.1.1.1"); code != http.StatusTooManyRequests {
		t.Fatalf("third request = %d, want 429", code)
	}
	if do("/trace", "2.2.2.2") != 200 {
		t.Error("other client limited")
	}
	for range 5 {
		if do("/health", "1.1.1.1") != 200 {
			t.Fatal("exempt path limited")
		}
	}
}

func TestRateLimiter_ForgetsIdleVisitors(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }
	rl.allow("a")
	rl.allow("b")
	now = now.Add(2 * IdleTTL)
	rl.allow("c")
	if len(rl.visitors) != 1 {
		t.Fatalf("visitors = %d, want 1", len(rl.visitors))
	}
}

func TestExtractIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	if got := ExtractIP(req); got != "192.0.2.7" {
		t.Errorf("ExtractIP = %q", got)
	}
}
