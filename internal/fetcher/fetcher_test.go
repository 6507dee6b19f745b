package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const article = `<!DOCTYPE html><html><head><title>Test Page</title></head><body><main><article>
<h1>Article Title</h1>
<p>Lorem ipsum dolor sit amet, consectetur adipiscing elit. Sed do eiusmod tempor incididunt ut labore et dolore magna aliqua. Ut enim ad minim veniam, quis nostrud exercitation ullamco laboris nisi ut aliquip ex ea commodo consequat. Duis aute irure dolor in reprehenderit in voluptate velit esse cillum dolore eu fugiat nulla pariatur.</p>
</article></main></body></html>`

func TestFetch_OK(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(article))
	}))
	defer srv.Close()

	f := New(WithUserAgent("adfriend-test"), WithRate(0, 0))
	res, err := f.Fetch(context.Background(), srv.URL+"/post")
	if err != nil {
		t.Fatal(err)
	}
	if ua != "adfriend-test" {
		t.Errorf("user agent = %q", ua)
	}
	if res.StatusCode != 200 || !res.Static || string(res.Body) != article {
		t.Errorf("result = %+v", res)
	}
}

func TestFetch_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		case "/json":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{}`))
		case "/big":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(strings.Repeat("a", 2048)))
		}
	}))
	defer srv.Close()
	f := New(WithRate(0, 0), WithMaxBody(1024))
	ctx := context.Background()

	_, err := f.Fetch(ctx, srv.URL+"/missing")
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Errorf("missing: %v", err)
	}
	if _, err := f.Fetch(ctx, srv.URL+"/json"); !errors.Is(err, ErrNotHTML) {
		t.Errorf("json: %v", err)
	}
	if _, err := f.Fetch(ctx, srv.URL+"/big"); !errors.Is(err, ErrTooLarge) {
		t.Errorf("big: %v", err)
	}
}

func TestFetch_RateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(article))
	}))
	defer srv.Close()

	f := New(WithRate(0.01, 1))
	if _, err := f.Fetch(context.Background(), srv.URL); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := f.Fetch(ctx, srv.URL); err == nil {
		t.Fatal("second fetch was not paced")
	}
}

func TestIsStatic(t *testing.T) {
	shell := `<!DOCTYPE html><html><head><meta charset="utf-8"><title>App</title></head>
<body><div id="root"></div><script src="/static/js/main.chunk.js"></script></body></html>`
	scripty := `<html><body><script>` + strings.Repeat("var x = 1;", 200) + `</script><p>hi</p></body></html>`

	tests := []struct {
		name string
		body string
		want bool
	}{
		{"article", article, true},
		{"spa shell", shell, false},
		{"too short", `<html><body>hi</body></html>`, false},
		{"script only", scripty, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsStatic([]byte(tt.body)); got != tt.want {
				t.Errorf("IsStatic = %v, want %v", got, tt.want)
			}
		})
	}
}
