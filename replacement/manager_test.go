package replacement

import (
	"context"
	"errors"
	"testing"

	"github.com/hazyhaar/adfriend/dom"
	"github.com/hazyhaar/adfriend/dom/htmldom"
)

type stubStrategy struct {
	kind  Kind
	calls int
	el    dom.Element
	err   error
	panic bool
}

func (s *stubStrategy) Kind() Kind { return s.kind }

func (s *stubStrategy) CreateElement(context.Context, *dom.Rect) (dom.Element, error) {
	s.calls++
	if s.panic {
		panic("strategy exploded")
	}
	return s.el, s.err
}

func someElement(t *testing.T) dom.Element {
	t.Helper()
	doc, _ := htmldom.ParseString(`<html><body></body></html>`)
	el, _ := doc.CreateElement("div")
	return el
}

func TestManager_RoundRobin(t *testing.T) {
	a := &stubStrategy{kind: KindReminder}
	b := &stubStrategy{kind: KindQuote, el: someElement(t)}
	m := NewManager(nil, a, b)

	// A is empty and B succeeds: A, B | A, B | A, B.
	for i := range 3 {
		if m.Next(context.Background(), nil) == nil {
			t.Fatalf("call %d returned nil", i)
		}
	}
	if a.calls != 3 || b.calls != 3 {
		t.Fatalf("calls A=%d B=%d, want 3 and 3", a.calls, b.calls)
	}
}

func TestManager_CursorPersists(t *testing.T) {
	a := &stubStrategy{kind: KindReminder, el: someElement(t)}
	b := &stubStrategy{kind: KindQuote, el: someElement(t)}
	m := NewManager(nil, a, b)

	m.Next(context.Background(), nil)
	m.Next(context.Background(), nil)
	m.Next(context.Background(), nil)
	if a.calls != 2 || b.calls != 1 {
		t.Fatalf("calls A=%d B=%d, want 2 and 1", a.calls, b.calls)
	}
}

func TestManager_AllEmpty(t *testing.T) {
	a := &stubStrategy{kind: KindReminder, err: errors.New("boom")}
	b := &stubStrategy{kind: KindQuote, panic: true}
	m := NewManager(nil, a, b)
	if el := m.Next(context.Background(), nil); el != nil {
		t.Fatalf("got %v, want nil", el)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Fatalf("each strategy must be tried once per call: A=%d B=%d", a.calls, b.calls)
	}
}
