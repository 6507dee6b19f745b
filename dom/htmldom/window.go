package htmldom

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/hazyhaar/adfriend/dom"
)

// Window holds page globals: boolean flags and named objects. Ad scripts
// are simulated by calling Get and Set the way they would read and assign
// window properties.
type Window struct {
	mu      sync.Mutex
	flags   map[string]bool
	globals map[string]any
	locked  map[string]bool
}

var _ dom.Window = (*Window)(nil)

// NewWindow returns an empty window.
func NewWindow() *Window {
	return &Window{
		flags:   make(map[string]bool),
		globals: make(map[string]any),
		locked:  make(map[string]bool),
	}
}

// MarkOnce implements dom.Window.
func (w *Window) MarkOnce(flag string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.flags[flag] {
		return false
	}
	w.flags[flag] = true
	return true
}

// Flag reports a flag set by MarkOnce.
func (w *Window) Flag(flag string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flags[flag]
}

// Install implements dom.Window. A queue shim adopts whatever the page had
// already queued under the same name.
func (w *Window) Install(global string, shim dom.Shim) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch shim.Kind {
	case dom.ShimQueue:
		q := &Queue{onPush: shim.OnPush}
		switch prev := w.globals[global].(type) {
		case []any:
			q.items = slices.Clone(prev)
		case *Queue:
			q.items = prev.Items()
		}
		w.globals[global] = q
	case dom.ShimNoop:
		w.globals[global] = &Noop{Name: global, list: slices.Clone(shim.ListProps)}
	default:
		return fmt.Errorf("htmldom: install %s: unknown shim kind %d", global, shim.Kind)
	}
	w.locked[global] = true
	return nil
}

// Get reads a global, or nil.
func (w *Window) Get(name string) any {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.globals[name]
}

// Set assigns a global. Assignments to installed shims are swallowed and
// Set reports false.
func (w *Window) Set(name string, v any) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.locked[name] {
		return false
	}
	w.globals[name] = v
	return true
}

// Queue stands in for a push-style ad command queue.
type Queue struct {
	mu     sync.Mutex
	items  []any
	onPush func([]any)
}

// Push reports the items to the shim, then appends them to the queue so
// code reading the queue back keeps working. It returns the new length.
func (q *Queue) Push(items ...any) int {
	if q.onPush != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("htmldom: queue push handler panicked", "panic", r)
				}
			}()
			q.onPush(items)
		}()
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
	return len(q.items)
}

// Items returns a copy of the queue contents.
func (q *Queue) Items() []any {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.items)
}

// Noop stands in for an ad library command object.
type Noop struct {
	Name string
	list []string
}

// Get returns an empty list for list properties and a no-op function for
// anything else.
func (n *Noop) Get(prop string) any {
	if slices.Contains(n.list, prop) {
		return []any{}
	}
	return func(...any) any { return nil }
}

// Set drops the assignment.
func (n *Noop) Set(string, any) {}

// Call invokes a method by name. Every method is a no-op.
func (n *Noop) Call(method string, args ...any) any {
	fn, _ := n.Get(method).(func(...any) any)
	if fn == nil {
		return nil
	}
	return fn(args...)
}
