package browser

import (
	"context"
	"errors"
	"testing"
)

func TestOpenTab_BeforeStart(t *testing.T) {
	m := NewManager(Config{})
	if _, err := m.OpenTab(context.Background()); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("err = %v, want ErrNotStarted", err)
	}
	if m.Browser() != nil {
		t.Fatal("browser before start")
	}
}

func TestClosedManager(t *testing.T) {
	m := NewManager(Config{})
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := m.Start(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("start after close: %v", err)
	}
	if _, err := m.OpenTab(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("open after close: %v", err)
	}
}

func TestStart_BadRemote(t *testing.T) {
	m := NewManager(Config{RemoteURL: "ws://127.0.0.1:1/devtools/browser/none"})
	defer m.Close()
	if _, err := m.Start(context.Background()); err == nil {
		t.Fatal("expected connect error")
	}
	if m.Browser() != nil {
		t.Fatal("browser set after failed start")
	}
}
