package adreplacer

import (
	"context"
	"testing"

	"github.com/hazyhaar/adfriend/dom"
	"github.com/hazyhaar/adfriend/dom/htmldom"
)

func TestAdsbygooglePush(t *testing.T) {
	doc, r := setup(t, `<html><body><div id="main"></div></body></html>`, nil)
	doc.Globals().Set("adsbygoogle", []any{"queued-before-load"})
	if err := r.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	// Without the watch, only the shim can find the new slot.
	r.Stop()
	main := el(t, doc, "main")
	_ = doc.AppendHTML(main, `<ins id="old" class="adsbygoogle" data-adfriend-processed="true"></ins><ins id="new" class="adsbygoogle" style="width:728px;height:90px"></ins>`)

	q, ok := doc.Globals().Get("adsbygoogle").(*htmldom.Queue)
	if !ok {
		t.Fatalf("adsbygoogle is %T", doc.Globals().Get("adsbygoogle"))
	}
	if n := q.Push(map[string]any{}); n != 2 {
		t.Fatalf("queue length = %d, want 2", n)
	}
	r.Wait()

	if el(t, doc, "new").NextElementSibling() == nil {
		t.Fatal("pushed slot not replaced")
	}
	if got := r.Stats().Intercepted; got != 1 {
		t.Fatalf("Intercepted = %d", got)
	}
	if doc.Globals().Set("adsbygoogle", []any{}) {
		t.Fatal("page was able to overwrite the shim")
	}
}

func TestAdsbygooglePush_WhileLoading(t *testing.T) {
	doc, r := setup(t, `<html><body><ins id="slot" class="adsbygoogle" style="width:300px;height:250px"></ins></body></html>`, nil,
		htmldom.WithReadyState(dom.Loading))
	if err := r.InstallInterceptions(); err != nil {
		t.Fatal(err)
	}
	q, ok := doc.Globals().Get("adsbygoogle").(*htmldom.Queue)
	if !ok {
		t.Fatalf("adsbygoogle is %T", doc.Globals().Get("adsbygoogle"))
	}
	q.Push(map[string]any{})
	r.Wait()

	doc.SetReadyState(dom.Interactive)
	if err := r.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	settle(doc, r)

	next := el(t, doc, "slot").NextElementSibling()
	if next == nil {
		t.Fatal("slot pushed while loading has no replacement")
	}
	if v, _ := next.Attr(ReplacementAttr); v != "true" {
		t.Fatalf("sibling is not a replacement: %s", next.TagName())
	}
	st := r.Stats()
	if st.Replaced != 1 || st.HiddenOnly != 0 || st.Intercepted != 1 {
		t.Fatalf("stats = %+v", st)
	}
	containers, err := doc.QueryAll("#adfriend-templates-container")
	if err != nil {
		t.Fatal(err)
	}
	if len(containers) != 1 {
		t.Fatalf("template containers = %d, want 1", len(containers))
	}
}

func TestNoopInterceptions(t *testing.T) {
	doc, r := setup(t, `<html><body></body></html>`, nil)
	if err := r.InstallInterceptions(); err != nil {
		t.Fatal(err)
	}
	if err := r.InstallInterceptions(); err != nil {
		t.Fatal(err)
	}
	for _, g := range []string{"googletag", "OxP", "AdButler"} {
		n, ok := doc.Globals().Get(g).(*htmldom.Noop)
		if !ok {
			t.Fatalf("%s is %T", g, doc.Globals().Get(g))
		}
		if cmd, ok := n.Get("cmd").([]any); !ok || len(cmd) != 0 {
			t.Errorf("%s.cmd = %#v", g, n.Get("cmd"))
		}
		if got := n.Call("display", "div-gpt-ad-1"); got != nil {
			t.Errorf("%s.display returned %v", g, got)
		}
		if doc.Globals().Set(g, "replaced") {
			t.Errorf("%s was overwritten", g)
		}
	}
}
