package replacement

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/adfriend/dom"
	"github.com/hazyhaar/adfriend/dom/htmldom"
	"github.com/hazyhaar/adfriend/reminders"
)

func templatedDoc(t *testing.T) *htmldom.Document {
	t.Helper()
	doc, err := htmldom.ParseString(`<html><body><div id="` + ContainerID + `" style="display:none">` +
		TemplatesHTML(time.Date(2026, 3, 4, 9, 5, 0, 0, time.UTC)) + `</div></body></html>`)
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func emptyDoc(t *testing.T) *htmldom.Document {
	t.Helper()
	doc, err := htmldom.ParseString(`<html><body></body></html>`)
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

type fakeSource struct {
	calls atomic.Int32
	list  []reminders.Reminder
	err   error
	delay time.Duration
}

func (f *fakeSource) TodayReminders(context.Context) ([]reminders.Reminder, error) {
	f.calls.Add(1)
	time.Sleep(f.delay)
	return f.list, f.err
}

func TestTemplatesHTML(t *testing.T) {
	doc := templatedDoc(t)
	box, err := doc.CloneTemplate(ReminderTemplateID)
	if err != nil {
		t.Fatal(err)
	}
	html := box.(*htmldom.Element).OuterHTML()
	for _, want := range []string{`class="reminder-box"`, "Daily Reminders", "09:05", `class="reminder-list"`} {
		if !strings.Contains(html, want) {
			t.Errorf("reminder template lacks %q: %s", want, html)
		}
	}
	if _, err := doc.CloneTemplate(QuoteTemplateID); err != nil {
		t.Fatal(err)
	}
}

func TestQuote_FillsAndSizes(t *testing.T) {
	doc := templatedDoc(t)
	s, err := New(KindQuote, doc, Options{
		Quotes: []Quote{{Text: "Keep going.", Author: "Someone"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	el, err := s.CreateElement(context.Background(), &dom.Rect{Width: 300, Height: 250})
	if err != nil || el == nil {
		t.Fatalf("CreateElement: %v, %v", el, err)
	}
	box := el.(*htmldom.Element)
	if cls, _ := box.Attr("class"); cls != "motivation-box" {
		t.Errorf("class = %q", cls)
	}
	for prop, want := range map[string]string{"width": "300px", "height": "250px", "display": "flex"} {
		if got, _ := box.Style(prop); got != want {
			t.Errorf("style %s = %q, want %q", prop, got, want)
		}
	}
	text, _ := box.Query(".quote-text")
	author, _ := box.Query(".quote-author")
	if got := text.(*htmldom.Element).Text(); got != "Keep going." {
		t.Errorf("text = %q", got)
	}
	if got := author.(*htmldom.Element).Text(); got != "- Someone" {
		t.Errorf("author = %q", got)
	}
}

func TestQuote_AutoHeightAndNoRect(t *testing.T) {
	doc := templatedDoc(t)
	s, _ := New(KindQuote, doc, Options{})

	el, _ := s.CreateElement(context.Background(), &dom.Rect{Width: 160})
	if got, _ := el.(*htmldom.Element).Style("height"); got != "auto" {
		t.Errorf("height = %q, want auto", got)
	}

	el, _ = s.CreateElement(context.Background(), nil)
	if _, ok := el.(*htmldom.Element).Style("width"); ok {
		t.Error("width set without a rect")
	}
}

func TestQuote_FallbackWhenEmpty(t *testing.T) {
	s, _ := New(KindQuote, templatedDoc(t), Options{Quotes: []Quote{}})
	el, _ := s.CreateElement(context.Background(), nil)
	text, _ := el.Query(".quote-text")
	if got := text.(*htmldom.Element).Text(); got != FallbackQuote.Text {
		t.Fatalf("text = %q", got)
	}
}

func TestQuote_SeededPickIsFromList(t *testing.T) {
	quotes := BundledQuotes()
	if len(quotes) == 0 {
		t.Fatal("no bundled quotes")
	}
	s, _ := New(KindQuote, templatedDoc(t), Options{Rand: rand.New(rand.NewPCG(7, 7))})
	known := make(map[string]bool, len(quotes))
	for _, q := range quotes {
		known[q.Text] = true
	}
	for range 20 {
		el, _ := s.CreateElement(context.Background(), nil)
		text, _ := el.Query(".quote-text")
		if got := text.(*htmldom.Element).Text(); !known[got] {
			t.Fatalf("quote %q not in bundled list", got)
		}
	}
}

func TestStrategies_MissingTemplate(t *testing.T) {
	doc := emptyDoc(t)
	src := &fakeSource{list: []reminders.Reminder{{Text: "x", RemindAt: "10:00"}}}
	for _, kind := range []Kind{KindQuote, KindReminder} {
		s, err := New(kind, doc, Options{Reminders: src})
		if err != nil {
			t.Fatal(err)
		}
		el, err := s.CreateElement(context.Background(), nil)
		if el != nil || err != nil {
			t.Errorf("%v: got %v, %v; want nil, nil", kind, el, err)
		}
	}
	if src.calls.Load() != 0 {
		t.Error("reminders fetched although the template is missing")
	}
}

func TestReminder_Items(t *testing.T) {
	src := &fakeSource{list: []reminders.Reminder{
		{Text: "Stretch <b>now</b>", RemindAt: "10:00"},
		{Text: "Water", RemindAt: "11:30"},
	}}
	s, _ := New(KindReminder, templatedDoc(t), Options{Reminders: src})
	el, err := s.CreateElement(context.Background(), &dom.Rect{Width: 728, Height: 90})
	if err != nil || el == nil {
		t.Fatalf("CreateElement: %v, %v", el, err)
	}
	items, _ := el.QueryAll(".reminder-list > .reminder-item")
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	first, _ := items[0].Query(".reminder-text")
	if got := first.(*htmldom.Element).Text(); got != "Stretch <b>now</b>" {
		t.Errorf("text = %q", got)
	}
	if bold, _ := items[0].QueryAll("b"); len(bold) != 0 {
		t.Error("reminder text was parsed as markup")
	}
	at, _ := items[1].Query(".reminder-time")
	if got := at.(*htmldom.Element).Text(); got != "11:30" {
		t.Errorf("time = %q", got)
	}
	if w, _ := el.(*htmldom.Element).Style("width"); w != "728px" {
		t.Errorf("width = %q", w)
	}
}

func TestReminder_EmptyOrFailingSource(t *testing.T) {
	for name, src := range map[string]*fakeSource{
		"empty":  {},
		"failed": {err: errors.New("success:false")},
	} {
		t.Run(name, func(t *testing.T) {
			s, _ := New(KindReminder, templatedDoc(t), Options{Reminders: src})
			for range 3 {
				if el, err := s.CreateElement(context.Background(), nil); el != nil || err != nil {
					t.Fatalf("got %v, %v", el, err)
				}
			}
			if n := src.calls.Load(); n != 1 {
				t.Fatalf("fetches = %d, want 1", n)
			}
		})
	}
}

func TestReminder_FetchOnceUnderConcurrency(t *testing.T) {
	src := &fakeSource{list: []reminders.Reminder{{Text: "a", RemindAt: "10:00"}}, delay: 20 * time.Millisecond}
	s, _ := New(KindReminder, templatedDoc(t), Options{Reminders: src})

	var wg sync.WaitGroup
	var produced atomic.Int32
	for range 16 {
		wg.Go(func() {
			if el, _ := s.CreateElement(context.Background(), nil); el != nil {
				produced.Add(1)
			}
		})
	}
	wg.Wait()
	if n := src.calls.Load(); n != 1 {
		t.Fatalf("fetches = %d, want 1", n)
	}
	if produced.Load() != 16 {
		t.Fatalf("produced = %d, want 16", produced.Load())
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(KindReminder, emptyDoc(t), Options{}); err == nil {
		t.Error("reminder strategy without source accepted")
	}
	if _, err := New(Kind(9), emptyDoc(t), Options{}); err == nil {
		t.Error("unknown kind accepted")
	}
}

func TestDefaults_Order(t *testing.T) {
	doc := emptyDoc(t)
	got := Defaults(doc, Options{Reminders: &fakeSource{}})
	if len(got) != 2 || got[0].Kind() != KindReminder || got[1].Kind() != KindQuote {
		t.Fatalf("Defaults order wrong: %v", got)
	}
	if got := Defaults(doc, Options{}); len(got) != 1 || got[0].Kind() != KindQuote {
		t.Fatalf("Defaults without source: %v", got)
	}
}
