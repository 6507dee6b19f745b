// CLAUDE:SUMMARY dom.Document over a live go-rod page: injected helper script, CDP runtime binding for mutations and shim pushes, element handles keyed by backend node id.
// Package roddom implements dom.Document on a live Chrome page driven by
// go-rod.
//
// A helper script (inject.js) is evaluated in every document of the page.
// It owns the MutationObserver and the shims, and reports back through a
// CDP runtime binding. Elements reported by the observer travel as small
// integer ids that the script maps back to nodes through weak references.
package roddom

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/adfriend/dom"
)

//go:embed inject.js
var injectJS string

const bindingName = "__adfriend_binding"

// Document is a dom.Document backed by a rod page.
type Document struct {
	page   *rod.Page
	logger *slog.Logger
	poll   time.Duration

	win *Window

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	observer *observer
	removers []func() error

	collectMu  sync.Mutex
	collectors map[any][]func()
}

var _ dom.Document = (*Document)(nil)

// Option configures a Document.
type Option func(*Document)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Document) { d.logger = l }
}

// WithPollInterval sets how often WaitReady re-reads document.readyState.
// Default: 50ms.
func WithPollInterval(p time.Duration) Option {
	return func(d *Document) { d.poll = p }
}

// New prepares page: it adds the runtime binding, registers the helper
// script for future documents, evaluates it in the current one and starts
// listening for binding calls. The listener stops when ctx ends or Close
// is called.
func New(ctx context.Context, page *rod.Page, opts ...Option) (*Document, error) {
	ctx, cancel := context.WithCancel(ctx)
	d := &Document{
		page:   page.Context(ctx),
		logger: slog.Default(),
		poll:   50 * time.Millisecond,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, o := range opts {
		o(d)
	}
	d.win = &Window{doc: d, pushes: make(map[string]func([]any))}

	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(d.page); err != nil {
		cancel()
		return nil, fmt.Errorf("roddom: add binding: %w", err)
	}
	if err := d.evalOnNewDocument(injectJS); err != nil {
		cancel()
		return nil, err
	}
	if err := d.evalScript(injectJS); err != nil {
		cancel()
		return nil, err
	}

	go d.listen()
	return d, nil
}

// Page returns the underlying page.
func (d *Document) Page() *rod.Page { return d.page }

// Close stops the observer and the binding listener and removes the
// scripts registered for new documents.
func (d *Document) Close() error {
	d.mu.Lock()
	obs := d.observer
	d.observer = nil
	removers := d.removers
	d.removers = nil
	d.mu.Unlock()
	if obs != nil {
		obs.close()
	}
	d.cancel()
	d.collectAll()
	var first error
	for _, rm := range removers {
		if err := rm(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// evalOnNewDocument registers a script that runs before any page script
// in every later document.
func (d *Document) evalOnNewDocument(js string) error {
	remove, err := d.page.EvalOnNewDocument(js)
	if err != nil {
		return fmt.Errorf("roddom: eval on new document: %w", err)
	}
	d.mu.Lock()
	d.removers = append(d.removers, remove)
	d.mu.Unlock()
	return nil
}

// evalScript runs a statement list in the current document.
func (d *Document) evalScript(js string) error {
	if _, err := d.page.Eval(`() => {` + js + `}`); err != nil {
		return fmt.Errorf("roddom: eval: %w", err)
	}
	return nil
}

// ReadyState implements dom.Document. An unreadable page reads as Loading.
func (d *Document) ReadyState() dom.ReadyState {
	res, err := d.page.Eval(`() => document.readyState`)
	if err != nil {
		return dom.Loading
	}
	return dom.ParseReadyState(res.Value.Str())
}

// WaitReady implements dom.Document.
func (d *Document) WaitReady(ctx context.Context, min dom.ReadyState) error {
	t := time.NewTicker(d.poll)
	defer t.Stop()
	for {
		if d.ReadyState() >= min {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// object evaluates js for a single node. A null result is ErrNotFound.
func (d *Document) object(what, js string, args ...any) (*Element, error) {
	obj, err := d.page.Evaluate(rod.Eval(js, args...).ByObject())
	if err != nil {
		return nil, fmt.Errorf("roddom: %s: %w", what, err)
	}
	if obj.ObjectID == "" {
		return nil, fmt.Errorf("roddom: %s: %w", what, dom.ErrNotFound)
	}
	el, err := d.page.ElementFromObject(obj)
	if err != nil {
		return nil, fmt.Errorf("roddom: %s: %w", what, err)
	}
	return d.wrap(el), nil
}

// Body implements dom.Document.
func (d *Document) Body() (dom.Element, error) {
	return d.object("body", `() => document.body`)
}

// ElementByID implements dom.Document.
func (d *Document) ElementByID(id string) (dom.Element, error) {
	return d.object("#"+id, `id => document.getElementById(id)`, id)
}

// QueryAll implements dom.Document.
func (d *Document) QueryAll(selector string) ([]dom.Element, error) {
	els, err := d.page.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("roddom: query %q: %w", selector, err)
	}
	return d.wrapAll(els), nil
}

// CreateElement implements dom.Document.
func (d *Document) CreateElement(tag string) (dom.Element, error) {
	return d.object("create "+tag, `tag => document.createElement(tag)`, tag)
}

// AppendHTML implements dom.Document.
func (d *Document) AppendHTML(parent dom.Element, markup string) error {
	p, err := d.own(parent)
	if err != nil {
		return err
	}
	if _, err := p.el.Eval(`m => this.insertAdjacentHTML("beforeend", m)`, markup); err != nil {
		return fmt.Errorf("roddom: append html: %w", err)
	}
	return nil
}

// CloneTemplate implements dom.Document.
func (d *Document) CloneTemplate(id string) (dom.Element, error) {
	return d.object("template "+id, `id => {
		const t = document.getElementById(id);
		if (!t || !t.content || !t.content.firstElementChild) return null;
		return t.content.firstElementChild.cloneNode(true);
	}`, id)
}

// Window implements dom.Document.
func (d *Document) Window() dom.Window { return d.win }

func (d *Document) wrap(el *rod.Element) *Element {
	return &Element{doc: d, el: el}
}

func (d *Document) wrapAll(els rod.Elements) []dom.Element {
	out := make([]dom.Element, len(els))
	for i, el := range els {
		out[i] = d.wrap(el)
	}
	return out
}

func (d *Document) own(el dom.Element) (*Element, error) {
	e, ok := el.(*Element)
	if !ok || e == nil {
		return nil, fmt.Errorf("roddom: foreign element %T", el)
	}
	return e, nil
}

// node resolves an id reported by the helper script.
func (d *Document) node(id int) (*Element, error) {
	return d.object("node", `id => window.__adfriend ? window.__adfriend.node(id) : null`, id)
}
