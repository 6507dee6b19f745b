package roddom

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hazyhaar/adfriend/dom"
)

// Window installs shims through the helper script and routes queue pushes
// reported over the binding to their OnPush handlers.
type Window struct {
	doc *Document

	mu     sync.Mutex
	pushes map[string]func([]any)
}

var _ dom.Window = (*Window)(nil)

// MarkOnce implements dom.Window.
func (w *Window) MarkOnce(flag string) bool {
	res, err := w.doc.page.Eval(`f => window.__adfriend ? window.__adfriend.markOnce(f) : false`, flag)
	if err != nil {
		w.doc.logger.Warn("roddom: mark once failed", "flag", flag, "error", err)
		return false
	}
	return res.Value.Bool()
}

// Install implements dom.Window. The shim is applied to the current
// document and registered for every later one, so calling Install before
// navigation puts it in place ahead of the page's own scripts.
func (w *Window) Install(global string, shim dom.Shim) error {
	js, err := shimScript(global, shim)
	if err != nil {
		return err
	}
	if shim.Kind == dom.ShimQueue && shim.OnPush != nil {
		w.mu.Lock()
		w.pushes[global] = shim.OnPush
		w.mu.Unlock()
	}
	if err := w.doc.evalOnNewDocument(injectJS + js); err != nil {
		return err
	}
	return w.doc.evalScript(js)
}

func (w *Window) onPush(global string, items []any) {
	w.mu.Lock()
	fn := w.pushes[global]
	w.mu.Unlock()
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			w.doc.logger.Error("roddom: push handler panicked", "global", global, "panic", r)
		}
	}()
	fn(items)
}

// shimScript returns the statement that installs one shim through the
// helper script.
func shimScript(global string, shim dom.Shim) (string, error) {
	name, err := json.Marshal(global)
	if err != nil {
		return "", err
	}
	switch shim.Kind {
	case dom.ShimQueue:
		return fmt.Sprintf(`window.__adfriend.queue(%s);`, name), nil
	case dom.ShimNoop:
		lists := shim.ListProps
		if lists == nil {
			lists = []string{}
		}
		raw, err := json.Marshal(lists)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(`window.__adfriend.noop(%s, %s);`, name, raw), nil
	}
	return "", fmt.Errorf("roddom: install %s: unknown shim kind %d", global, shim.Kind)
}
