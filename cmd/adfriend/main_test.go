package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/adfriend/connectivity"
	"github.com/hazyhaar/adfriend/internal/config"
	"github.com/hazyhaar/adfriend/reminders"
)

func testApp(t *testing.T, mutate func(*config.Config)) *app {
	t.Helper()
	cfg := config.Default()
	cfg.Reminders.DBPath = filepath.Join(t.TempDir(), "adfriend.db")
	cfg.Reminders.RoutesDB = cfg.Reminders.DBPath
	if mutate != nil {
		mutate(cfg)
	}
	a, err := newApp(context.Background(), cfg, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func postMessage(t *testing.T, h http.Handler, body string) (int, reminders.Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/message", strings.NewReader(body)))
	var resp reminders.Response
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	return rec.Code, resp
}

func TestHandler_HealthAndMessages(t *testing.T) {
	a := testApp(t, nil)
	h := newHandler(a, a.rewriter())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ok") {
		t.Fatalf("health = %d %s", rec.Code, rec.Body)
	}

	code, resp := postMessage(t, h, `{"action":"saveReminder","payload":{"text":"Stretch","remindAt":"09:00","days":["M","T","W","TH","FR","SA","SU"]}}`)
	if code != http.StatusOK || !resp.Success {
		t.Fatalf("save = %d %+v", code, resp)
	}
	code, resp = postMessage(t, h, `{"action":"getAllReminders"}`)
	if code != http.StatusOK || !resp.Success {
		t.Fatalf("list = %d %+v", code, resp)
	}
	if list, _ := resp.Data.([]any); len(list) != 1 {
		t.Errorf("data = %v", resp.Data)
	}

	code, resp = postMessage(t, h, `{"action":"explode"}`)
	if code != http.StatusOK || resp.Success || resp.Error != "Unknown action: explode" {
		t.Errorf("unknown = %d %+v", code, resp)
	}
	if code, _ := postMessage(t, h, `not json`); code != http.StatusBadRequest {
		t.Errorf("malformed = %d", code)
	}
}

func TestApp_ClientGoesThroughRouter(t *testing.T) {
	a := testApp(t, nil)
	if _, err := a.store.Save(context.Background(), reminders.Input{Text: "Drink water", RemindAt: "08:00", Days: []string{"M", "T", "W", "TH", "FR", "SA", "SU"}}); err != nil {
		t.Fatal(err)
	}
	list, err := a.client.AllReminders(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Text != "Drink water" {
		t.Errorf("list = %+v", list)
	}
}

func TestApp_RemoteReminderService(t *testing.T) {
	// A second instance plays the remote reminder service.
	remote := testApp(t, nil)
	if _, err := remote.store.Save(context.Background(), reminders.Input{Text: "Remote", RemindAt: "08:00", Days: []string{"M", "T", "W", "TH", "FR", "SA", "SU"}}); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(newHandler(remote, remote.rewriter()))
	defer srv.Close()

	dbPath := filepath.Join(t.TempDir(), "local.db")
	local := testApp(t, func(c *config.Config) {
		c.Reminders.DBPath = dbPath
		c.Reminders.RoutesDB = dbPath
		c.Reminders.Service = srv.URL + "/api/message"
	})
	list, err := local.client.AllReminders(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Text != "Remote" {
		t.Fatalf("list = %+v", list)
	}

	// Dropping the service setting routes back to the local store.
	local.cfg.Reminders.Service = ""
	if err := local.routeReminders(context.Background()); err != nil {
		t.Fatal(err)
	}
	rt, err := connectivity.NewAdmin(local.routesDB).GetRoute(context.Background(), reminders.ServiceName)
	if err != nil || rt != nil {
		t.Fatalf("route = %+v, %v", rt, err)
	}
	list, err = local.client.AllReminders(context.Background())
	if err != nil || len(list) != 0 {
		t.Fatalf("local list = %+v, %v", list, err)
	}
}

func TestRewriteCommand(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, `<html><head><title>t</title></head><body><h1>Weather</h1><p>Sunny all week along the coast, with light winds.</p><div class="ad-unit" style="width:300px;height:250px">AD</div></body></html>`)
	}))
	defer upstream.Close()

	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("ADFRIEND_REMINDERS_DB_PATH", filepath.Join(dir, "adfriend.db"))
	t.Setenv("ADFRIEND_FETCH_RATE", "-1")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"rewrite", upstream.URL, "--format", "markdown"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatal(err)
	}
	md := out.String()
	if !strings.Contains(md, "# Weather") || strings.Contains(md, "AD\n") {
		t.Errorf("output:\n%s", md)
	}
}

func TestRewriteCommand_RejectsBadURL(t *testing.T) {
	t.Chdir(t.TempDir())
	root := newRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"rewrite", "file:///etc/hosts"})
	if err := root.ExecuteContext(context.Background()); err == nil {
		t.Fatal("expected an error")
	}
}

func TestRemindersCommand_AddThenList(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("ADFRIEND_REMINDERS_DB_PATH", filepath.Join(dir, "adfriend.db"))

	run := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		root := newRootCmd()
		root.SetOut(&out)
		root.SetArgs(args)
		if err := root.ExecuteContext(context.Background()); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
		return out.String()
	}

	id := strings.TrimSpace(run("reminders", "add", "Water the plants", "--at", "18:00", "--days", "M,SA"))
	if !strings.HasPrefix(id, "rem_") {
		t.Fatalf("id = %q", id)
	}
	list := run("reminders", "list")
	for _, want := range []string{id, "18:00", "M,SA", "Water the plants"} {
		if !strings.Contains(list, want) {
			t.Errorf("list lacks %q:\n%s", want, list)
		}
	}

	root := newRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"reminders", "add", "bad", "--at", "25:00"})
	if err := root.ExecuteContext(context.Background()); err == nil {
		t.Fatal("invalid time accepted")
	}
}
