package connectivity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/adfriend/dbopen"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	return dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
}

func echoFactory(prefix string) TransportFactory {
	return func(endpoint string, _ json.RawMessage) (Handler, func(), error) {
		h := func(_ context.Context, payload []byte) ([]byte, error) {
			return []byte(prefix + endpoint), nil
		}
		return h, nil, nil
	}
}

func TestRegisterLocal_and_Call(t *testing.T) {
	r := New()
	r.RegisterLocal("adfriend_reminders", func(_ context.Context, payload []byte) ([]byte, error) {
		return payload, nil
	})

	resp, err := r.Call(context.Background(), "adfriend_reminders", []byte(`{"action":"getTodayReminders"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp) != `{"action":"getTodayReminders"}` {
		t.Fatalf("got %q", resp)
	}
}

func TestCall_ServiceNotFound(t *testing.T) {
	r := New()
	_, err := r.Call(context.Background(), "nonexistent", nil)
	var snf *ErrServiceNotFound
	if !errors.As(err, &snf) {
		t.Fatalf("expected ErrServiceNotFound, got %T: %v", err, err)
	}
	if snf.Service != "nonexistent" {
		t.Fatalf("got service %q", snf.Service)
	}
}

func TestReload_LocalStrategy(t *testing.T) {
	db := setupTestDB(t)
	r := New()
	r.RegisterLocal("reminders", func(context.Context, []byte) ([]byte, error) {
		return []byte("ok"), nil
	})
	if _, err := db.Exec(`INSERT INTO routes (service_name, strategy) VALUES ('reminders', 'local')`); err != nil {
		t.Fatal(err)
	}
	if err := r.Reload(context.Background(), db); err != nil {
		t.Fatalf("reload: %v", err)
	}
	resp, err := r.Call(context.Background(), "reminders", nil)
	if err != nil || string(resp) != "ok" {
		t.Fatalf("got %q, %v", resp, err)
	}
}

func TestReload_NoopStrategy(t *testing.T) {
	db := setupTestDB(t)
	r := New()
	r.RegisterLocal("disabled", func(context.Context, []byte) ([]byte, error) {
		t.Error("local handler must not run for noop")
		return nil, nil
	})
	if _, err := db.Exec(`INSERT INTO routes (service_name, strategy) VALUES ('disabled', 'noop')`); err != nil {
		t.Fatal(err)
	}
	if err := r.Reload(context.Background(), db); err != nil {
		t.Fatal(err)
	}
	resp, err := r.Call(context.Background(), "disabled", []byte("data"))
	if err != nil || resp != nil {
		t.Fatalf("noop: got %q, %v", resp, err)
	}
}

func TestReload_RemoteOverridesLocal(t *testing.T) {
	db := setupTestDB(t)
	r := New()
	r.RegisterLocal("reminders", func(context.Context, []byte) ([]byte, error) {
		return []byte("local"), nil
	})
	r.RegisterTransport("http", echoFactory("remote:"))
	if _, err := db.Exec(`INSERT INTO routes (service_name, strategy, endpoint) VALUES ('reminders', 'http', 'http://10.0.0.1:8080')`); err != nil {
		t.Fatal(err)
	}
	if err := r.Reload(context.Background(), db); err != nil {
		t.Fatal(err)
	}
	resp, err := r.Call(context.Background(), "reminders", nil)
	if err != nil || string(resp) != "remote:http://10.0.0.1:8080" {
		t.Fatalf("got %q, %v", resp, err)
	}
}

func TestReload_UnchangedRoutePreservesHandler(t *testing.T) {
	db := setupTestDB(t)
	r := New()
	var builds int32
	r.RegisterTransport("http", func(endpoint string, config json.RawMessage) (Handler, func(), error) {
		atomic.AddInt32(&builds, 1)
		return echoFactory("")(endpoint, config)
	})
	if _, err := db.Exec(`INSERT INTO routes (service_name, strategy, endpoint) VALUES ('svc', 'http', 'http://a')`); err != nil {
		t.Fatal(err)
	}
	for range 2 {
		if err := r.Reload(context.Background(), db); err != nil {
			t.Fatal(err)
		}
	}
	if c := atomic.LoadInt32(&builds); c != 1 {
		t.Fatalf("builds = %d, want 1", c)
	}
}

func TestReload_ChangedRouteRebuildsAndCloses(t *testing.T) {
	db := setupTestDB(t)
	r := New()
	var closed int32
	r.RegisterTransport("http", func(endpoint string, _ json.RawMessage) (Handler, func(), error) {
		h := func(context.Context, []byte) ([]byte, error) { return []byte(endpoint), nil }
		return h, func() { atomic.AddInt32(&closed, 1) }, nil
	})
	if _, err := db.Exec(`INSERT INTO routes (service_name, strategy, endpoint) VALUES ('svc', 'http', 'http://old')`); err != nil {
		t.Fatal(err)
	}
	if err := r.Reload(context.Background(), db); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`UPDATE routes SET endpoint='http://new' WHERE service_name='svc'`); err != nil {
		t.Fatal(err)
	}
	if err := r.Reload(context.Background(), db); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt32(&closed) != 1 {
		t.Fatal("old handler not closed")
	}
	resp, _ := r.Call(context.Background(), "svc", nil)
	if string(resp) != "http://new" {
		t.Fatalf("got %q", resp)
	}

	if _, err := db.Exec(`DELETE FROM routes WHERE service_name='svc'`); err != nil {
		t.Fatal(err)
	}
	if err := r.Reload(context.Background(), db); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt32(&closed) != 2 {
		t.Fatal("removed route not closed")
	}
}

func TestReload_ReportsBrokenRoutes(t *testing.T) {
	db := setupTestDB(t)
	if _, err := db.Exec(`INSERT INTO routes (service_name, strategy, endpoint) VALUES ('nofactory', 'http', 'http://x')`); err != nil {
		t.Fatal(err)
	}

	r := New()
	err := r.Reload(context.Background(), db)
	var nf *ErrNoFactory
	if !errors.As(err, &nf) || nf.Service != "nofactory" {
		t.Fatalf("expected ErrNoFactory, got %v", err)
	}
	if _, err := r.Call(context.Background(), "nofactory", nil); err == nil {
		t.Fatal("service with no factory must not be routable")
	}

	cause := errors.New("dial refused")
	r.RegisterTransport("http", func(string, json.RawMessage) (Handler, func(), error) {
		return nil, nil, cause
	})
	err = r.Reload(context.Background(), db)
	var ff *ErrFactoryFailed
	if !errors.As(err, &ff) || !errors.Is(err, cause) {
		t.Fatalf("expected ErrFactoryFailed wrapping cause, got %v", err)
	}
}

func TestSchema_RejectsUnknownStrategy(t *testing.T) {
	db := setupTestDB(t)
	if _, err := db.Exec(`INSERT INTO routes (service_name, strategy) VALUES ('svc', 'quic')`); err == nil {
		t.Fatal("CHECK constraint should reject unknown strategy")
	}
}

func TestCall_RemoteTimeout(t *testing.T) {
	db := setupTestDB(t)
	r := New()
	r.RegisterTransport("http", func(string, json.RawMessage) (Handler, func(), error) {
		h := func(ctx context.Context, _ []byte) ([]byte, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return h, nil, nil
	})
	if _, err := db.Exec(`INSERT INTO routes (service_name, strategy, endpoint, config) VALUES ('slow', 'http', 'http://x', '{"timeout_ms": 20}')`); err != nil {
		t.Fatal(err)
	}
	if err := r.Reload(context.Background(), db); err != nil {
		t.Fatal(err)
	}
	_, err := r.Call(context.Background(), "slow", nil)
	var te *ErrCallTimeout
	if !errors.As(err, &te) || te.Service != "slow" {
		t.Fatalf("expected ErrCallTimeout, got %v", err)
	}
}

func TestClose(t *testing.T) {
	r := New()
	closeCalled := false
	r.remoteEntries["svc"] = remoteEntry{
		handler: func(context.Context, []byte) ([]byte, error) { return nil, nil },
		close:   func() { closeCalled = true },
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if !closeCalled || len(r.remoteEntries) != 0 {
		t.Fatal("close did not release entries")
	}
}

func TestChain(t *testing.T) {
	var order []string
	mw := func(name string) HandlerMiddleware {
		return func(next Handler) Handler {
			return func(ctx context.Context, payload []byte) ([]byte, error) {
				order = append(order, name+"-before")
				resp, err := next(ctx, payload)
				order = append(order, name+"-after")
				return resp, err
			}
		}
	}
	base := func(context.Context, []byte) ([]byte, error) {
		order = append(order, "handler")
		return nil, nil
	}
	Chain(mw("mw1"), mw("mw2"))(base)(context.Background(), nil)

	want := "mw1-before,mw2-before,handler,mw2-after,mw1-after"
	if got := strings.Join(order, ","); got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestRecoveryAndLogging(t *testing.T) {
	base := func(context.Context, []byte) ([]byte, error) { panic("boom") }
	wrapped := Chain(Logging(slog.Default(), "svc"), Recovery(slog.Default()))(base)
	_, err := wrapped(context.Background(), nil)
	var ep *ErrPanic
	if !errors.As(err, &ep) || ep.Value != "boom" {
		t.Fatalf("expected ErrPanic, got %T: %v", err, err)
	}
}

func TestTimeoutMiddleware(t *testing.T) {
	base := func(ctx context.Context, _ []byte) ([]byte, error) {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("no deadline set")
		}
		return nil, nil
	}
	Timeout(time.Second)(base)(context.Background(), nil)
}

func TestHTTPFactory_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		body, _ := io.ReadAll(r.Body)
		w.Write([]byte(`{"success":true,"echo":` + string(body) + `}`))
	}))
	defer srv.Close()

	h, closeFn, err := HTTPFactory()(srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()

	resp, err := h(context.Background(), []byte(`{"action":"getTodayReminders"}`))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(resp), `"echo":{"action":"getTodayReminders"}`) {
		t.Fatalf("got %s", resp)
	}
}

func TestHTTPFactory_Errors(t *testing.T) {
	f := HTTPFactory()
	for _, bad := range []string{"ftp://host/x", "not a url", "http://"} {
		if _, _, err := f(bad, nil); err == nil {
			t.Errorf("endpoint %q accepted", bad)
		}
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	h, _, err := f(srv.URL, json.RawMessage(`{"content_type":"text/plain"}`))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h(context.Background(), nil); err == nil || !strings.Contains(err.Error(), "status 503") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestAdmin(t *testing.T) {
	db := setupTestDB(t)
	a := NewAdmin(db)
	ctx := context.Background()

	if err := a.UpsertRoute(ctx, "reminders", "http", "http://peer:8080/api/message", json.RawMessage(`{"timeout_ms":500}`)); err != nil {
		t.Fatal(err)
	}
	if err := a.UpsertRoute(ctx, "reminders", "local", "", nil); err != nil {
		t.Fatal(err)
	}
	got, err := a.GetRoute(ctx, "reminders")
	if err != nil || got == nil || got.Strategy != "local" {
		t.Fatalf("get: %+v, %v", got, err)
	}
	list, _ := a.ListRoutes(ctx)
	if len(list) != 1 {
		t.Fatalf("list = %d", len(list))
	}

	if err := a.UpsertRoute(ctx, "x", "quic", "", nil); err == nil {
		t.Error("unknown strategy accepted")
	}
	if err := a.UpsertRoute(ctx, "x", "http", "", nil); err == nil {
		t.Error("http without endpoint accepted")
	}
	if err := a.UpsertRoute(ctx, "x", "noop", "", json.RawMessage(`{`)); err == nil {
		t.Error("invalid config accepted")
	}

	if err := a.DeleteRoute(ctx, "reminders"); err != nil {
		t.Fatal(err)
	}
	if err := a.DeleteRoute(ctx, "reminders"); err == nil {
		t.Fatal("delete of missing route should fail")
	}
	if got, _ := a.GetRoute(ctx, "reminders"); got != nil {
		t.Fatal("route still present")
	}
}

func TestWatch_DetectsChanges(t *testing.T) {
	// data_version only moves when another connection writes.
	dbPath := t.TempDir() + "/routes.db"
	writerDB, err := OpenDB(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { writerDB.Close() })
	readerDB, err := OpenDB(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { readerDB.Close() })

	r := New()
	var builds int32
	r.RegisterTransport("http", func(endpoint string, cfg json.RawMessage) (Handler, func(), error) {
		atomic.AddInt32(&builds, 1)
		return echoFactory("")(endpoint, cfg)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Watch(ctx, readerDB, 20*time.Millisecond)
		close(done)
	}()
	defer func() { cancel(); <-done }()

	time.Sleep(60 * time.Millisecond)
	if err := NewAdmin(writerDB).UpsertRoute(context.Background(), "svc", "http", "http://x", nil); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&builds) < 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if atomic.LoadInt32(&builds) < 1 {
		t.Fatal("watcher did not reload after route insert")
	}
}
