// CLAUDE:SUMMARY In-memory dom.Document over golang.org/x/net/html with cascadia selectors, frame documents, window globals and a debounced mutation observer.
// Package htmldom implements dom.Document on top of a golang.org/x/net/html
// tree. It is the backend for server-side rewriting and for tests: CSS
// selectors are matched with cascadia, inline styles are parsed with
// douceur, and mutations made through the API are reported to observers
// in debounced batches the way a browser MutationObserver would.
//
// Layout is not computed. BoundingRect reads explicit pixel sizes from the
// inline style or the width/height attributes.
package htmldom

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/adfriend/dom"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is a parsed HTML document. All tree access is serialised by an
// internal lock, so elements may be used from several goroutines.
type Document struct {
	mu      sync.RWMutex
	root    *html.Node
	origin  string
	state   dom.ReadyState
	stateCh chan struct{}
	frames  map[*html.Node]*Document

	win       *Window
	sel       *selectorCache
	observers []*observer

	debounceWindow time.Duration
	maxBuffer      int
	logger         *slog.Logger
}

var _ dom.Document = (*Document)(nil)

// Option configures a Document.
type Option func(*Document)

// WithOrigin sets the document URL. Frames are same-origin when their
// scheme and host match it.
func WithOrigin(rawURL string) Option {
	return func(d *Document) { d.origin = originOf(rawURL) }
}

// WithReadyState sets the initial readyState. Parsed documents default to Complete.
func WithReadyState(s dom.ReadyState) Option {
	return func(d *Document) { d.state = s }
}

// WithDebounce sets the observer batching window and the buffer size that
// forces an immediate delivery.
func WithDebounce(window time.Duration, maxBuffer int) Option {
	return func(d *Document) {
		d.debounceWindow = window
		d.maxBuffer = maxBuffer
	}
}

// WithLogger sets the logger used for observer callback failures.
func WithLogger(l *slog.Logger) Option {
	return func(d *Document) { d.logger = l }
}

// Parse reads an HTML document.
func Parse(r io.Reader, opts ...Option) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("htmldom: parse: %w", err)
	}
	return newDocument(root, opts...), nil
}

// ParseString is Parse for an in-memory string.
func ParseString(s string, opts ...Option) (*Document, error) {
	return Parse(strings.NewReader(s), opts...)
}

func newDocument(root *html.Node, opts ...Option) *Document {
	d := &Document{
		root:           root,
		state:          dom.Complete,
		stateCh:        make(chan struct{}),
		frames:         make(map[*html.Node]*Document),
		win:            NewWindow(),
		sel:            newSelectorCache(),
		debounceWindow: 10 * time.Millisecond,
		maxBuffer:      256,
		logger:         slog.Default(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Origin returns the scheme://host the document was created with.
func (d *Document) Origin() string { return d.origin }

// ReadyState implements dom.Document.
func (d *Document) ReadyState() dom.ReadyState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// SetReadyState advances the document lifecycle and wakes WaitReady callers.
func (d *Document) SetReadyState(s dom.ReadyState) {
	d.mu.Lock()
	d.state = s
	close(d.stateCh)
	d.stateCh = make(chan struct{})
	d.mu.Unlock()
}

// WaitReady implements dom.Document.
func (d *Document) WaitReady(ctx context.Context, min dom.ReadyState) error {
	for {
		d.mu.RLock()
		s, ch := d.state, d.stateCh
		d.mu.RUnlock()
		if s >= min {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// Window implements dom.Document.
func (d *Document) Window() dom.Window { return d.win }

// Globals returns the concrete window for inspecting installed shims.
func (d *Document) Globals() *Window { return d.win }

// Body implements dom.Document.
func (d *Document) Body() (dom.Element, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var body *html.Node
	walk(d.root, func(n *html.Node) bool {
		if n.DataAtom == atom.Body {
			body = n
			return false
		}
		return true
	})
	if body == nil {
		return nil, fmt.Errorf("htmldom: body: %w", dom.ErrNotFound)
	}
	return d.wrap(body), nil
}

// ElementByID implements dom.Document.
func (d *Document) ElementByID(id string) (dom.Element, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if n := d.byID(id); n != nil {
		return d.wrap(n), nil
	}
	return nil, fmt.Errorf("htmldom: #%s: %w", id, dom.ErrNotFound)
}

func (d *Document) byID(id string) *html.Node {
	var found *html.Node
	walk(d.root, func(n *html.Node) bool {
		if v, ok := attr(n, "id"); ok && v == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// QueryAll implements dom.Document.
func (d *Document) QueryAll(selector string) ([]dom.Element, error) {
	m, err := d.sel.get(selector)
	if err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.wrapAll(queryAll(d.root, m)), nil
}

// CreateElement implements dom.Document.
func (d *Document) CreateElement(tag string) (dom.Element, error) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return nil, fmt.Errorf("htmldom: create element: empty tag")
	}
	n := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
	return d.wrap(n), nil
}

// AppendHTML implements dom.Document.
func (d *Document) AppendHTML(parent dom.Element, markup string) error {
	p, err := d.own(parent)
	if err != nil {
		return err
	}
	d.mu.Lock()
	nodes, err := html.ParseFragment(strings.NewReader(markup), p.n)
	if err != nil {
		d.mu.Unlock()
		return fmt.Errorf("htmldom: parse fragment: %w", err)
	}
	var added []*html.Node
	for _, n := range nodes {
		p.n.AppendChild(n)
		if n.Type == html.ElementNode {
			added = append(added, n)
		}
	}
	d.emitChildList(p.n, added)
	d.mu.Unlock()
	return nil
}

// CloneTemplate implements dom.Document. The first element child of the
// <template> is deep-cloned and returned detached.
func (d *Document) CloneTemplate(id string) (dom.Element, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	tpl := d.byID(id)
	if tpl == nil || tpl.DataAtom != atom.Template {
		return nil, fmt.Errorf("htmldom: template %s: %w", id, dom.ErrNotFound)
	}
	for c := tpl.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return d.wrap(cloneNode(c)), nil
		}
	}
	return nil, fmt.Errorf("htmldom: template %s is empty: %w", id, dom.ErrNotFound)
}

// AttachFrame binds a nested document to an iframe element, as a browser
// would after loading the frame. Readability follows the two origins.
func (d *Document) AttachFrame(iframe dom.Element, frame *Document) error {
	e, err := d.own(iframe)
	if err != nil {
		return err
	}
	if e.n.DataAtom != atom.Iframe {
		return fmt.Errorf("htmldom: attach frame: <%s> is not an iframe", e.n.Data)
	}
	d.mu.Lock()
	d.frames[e.n] = frame
	d.mu.Unlock()
	return nil
}

func (d *Document) contentDocument(n *html.Node) (*Document, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if f, ok := d.frames[n]; ok {
		if f.origin != d.origin {
			return nil, dom.ErrCrossOrigin
		}
		return f, nil
	}
	if srcdoc, ok := attr(n, "srcdoc"); ok {
		root, err := html.Parse(strings.NewReader(srcdoc))
		if err != nil {
			return nil, fmt.Errorf("htmldom: srcdoc: %w", err)
		}
		f := newDocument(root, WithLogger(d.logger))
		f.origin = d.origin
		d.frames[n] = f
		return f, nil
	}
	src, _ := attr(n, "src")
	if src == "" || src == "about:blank" {
		f := newDocument(emptyDocument(), WithLogger(d.logger))
		f.origin = d.origin
		d.frames[n] = f
		return f, nil
	}
	if d.origin == "" || originOf(d.resolve(src)) != d.origin {
		return nil, dom.ErrCrossOrigin
	}
	// Same origin but never loaded here.
	return nil, dom.ErrNotFound
}

func (d *Document) resolve(ref string) string {
	base, err := url.Parse(d.origin)
	if err != nil {
		return ref
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}

// Render writes the current tree as HTML.
func (d *Document) Render(w io.Writer) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return html.Render(w, d.root)
}

// String renders the document, for tests and logs.
func (d *Document) String() string {
	var buf bytes.Buffer
	_ = d.Render(&buf)
	return buf.String()
}

func (d *Document) wrap(n *html.Node) *Element {
	return &Element{doc: d, n: n}
}

func (d *Document) wrapAll(nodes []*html.Node) []dom.Element {
	out := make([]dom.Element, len(nodes))
	for i, n := range nodes {
		out[i] = d.wrap(n)
	}
	return out
}

// own checks that el belongs to this document.
func (d *Document) own(el dom.Element) (*Element, error) {
	e, ok := el.(*Element)
	if !ok || e == nil {
		return nil, fmt.Errorf("htmldom: foreign element %T", el)
	}
	if e.doc != d {
		return nil, fmt.Errorf("htmldom: element belongs to another document")
	}
	return e, nil
}

func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}

func emptyDocument() *html.Node {
	root, _ := html.Parse(strings.NewReader(""))
	return root
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func cloneNode(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		c.AppendChild(cloneNode(ch))
	}
	return c
}
