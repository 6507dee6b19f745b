package roddom

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/adfriend/dom"
)

// Element is a handle on a node of a rod page.
type Element struct {
	doc *Document
	el  *rod.Element

	idOnce sync.Once
	id     any
}

var _ dom.Element = (*Element)(nil)

// Rod returns the underlying rod element.
func (e *Element) Rod() *rod.Element { return e.el }

// Identity implements dom.Element. Handles on the same node share the
// node's backend id; when the node cannot be described the remote object
// id is used, which is only stable for this handle.
func (e *Element) Identity() any {
	e.idOnce.Do(func() {
		node, err := e.el.Describe(0, false)
		if err == nil && node != nil {
			e.id = node.BackendNodeID
			return
		}
		e.id = e.el.Object.ObjectID
	})
	return e.id
}

func (e *Element) eval(js string, args ...any) (*rodResult, error) {
	res, err := e.el.Eval(js, args...)
	if err != nil {
		return nil, err
	}
	return &rodResult{res.Value.Str(), res.Value.Bool()}, nil
}

type rodResult struct {
	str string
	ok  bool
}

// TagName implements dom.Element.
func (e *Element) TagName() string {
	res, err := e.eval(`() => this.tagName.toLowerCase()`)
	if err != nil {
		return ""
	}
	return res.str
}

// Attr implements dom.Element.
func (e *Element) Attr(name string) (string, bool) {
	v, err := e.el.Attribute(name)
	if err != nil || v == nil {
		return "", false
	}
	return *v, true
}

// SetAttr implements dom.Element.
func (e *Element) SetAttr(name, value string) error {
	if _, err := e.el.Eval(`(n, v) => this.setAttribute(n, v)`, name, value); err != nil {
		return fmt.Errorf("roddom: set %s: %w", name, err)
	}
	return nil
}

// Matches implements dom.Element.
func (e *Element) Matches(selector string) (bool, error) {
	ok, err := e.el.Matches(selector)
	if err != nil {
		return false, fmt.Errorf("roddom: matches: %w", err)
	}
	return ok, nil
}

// QueryAll implements dom.Element.
func (e *Element) QueryAll(selector string) ([]dom.Element, error) {
	els, err := e.el.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("roddom: query %q: %w", selector, err)
	}
	return e.doc.wrapAll(els), nil
}

// Query implements dom.Element.
func (e *Element) Query(selector string) (dom.Element, error) {
	all, err := e.QueryAll(selector)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("roddom: %s: %w", selector, dom.ErrNotFound)
	}
	return all[0], nil
}

// SetStyle implements dom.Element.
func (e *Element) SetStyle(prop, value string, important bool) error {
	if _, err := e.el.Eval(`(p, v, i) => this.style.setProperty(p, v, i ? "important" : "")`, prop, value, important); err != nil {
		return fmt.Errorf("roddom: style %s: %w", prop, err)
	}
	return nil
}

// AddClass implements dom.Element.
func (e *Element) AddClass(name string) error {
	if _, err := e.el.Eval(`c => this.classList.add(c)`, name); err != nil {
		return fmt.Errorf("roddom: add class: %w", err)
	}
	return nil
}

// SetText implements dom.Element.
func (e *Element) SetText(text string) error {
	if _, err := e.el.Eval(`t => { this.textContent = t }`, text); err != nil {
		return fmt.Errorf("roddom: set text: %w", err)
	}
	return nil
}

// AppendChild implements dom.Element.
func (e *Element) AppendChild(child dom.Element) error {
	c, err := e.doc.own(child)
	if err != nil {
		return err
	}
	if _, err := e.el.Eval(`c => this.appendChild(c)`, c.el.Object); err != nil {
		return fmt.Errorf("roddom: append child: %w", err)
	}
	return nil
}

// InsertAfter implements dom.Element.
func (e *Element) InsertAfter(node dom.Element) error {
	c, err := e.doc.own(node)
	if err != nil {
		return err
	}
	res, err := e.eval(`n => {
		if (!this.parentNode) return false;
		this.parentNode.insertBefore(n, this.nextSibling);
		return true;
	}`, c.el.Object)
	if err != nil {
		return fmt.Errorf("roddom: insert after: %w", err)
	}
	if !res.ok {
		return dom.ErrDetached
	}
	return nil
}

// Remove implements dom.Element.
func (e *Element) Remove() error {
	if err := e.el.Remove(); err != nil {
		return fmt.Errorf("roddom: remove: %w", err)
	}
	return nil
}

// BoundingRect implements dom.Element.
func (e *Element) BoundingRect() (dom.Rect, error) {
	res, err := e.el.Eval(`() => {
		const r = this.getBoundingClientRect();
		return { width: r.width, height: r.height, top: r.top, left: r.left, right: r.right, bottom: r.bottom };
	}`)
	if err != nil {
		return dom.Rect{}, fmt.Errorf("roddom: bounding rect: %w", err)
	}
	var r dom.Rect
	if err := res.Value.Unmarshal(&r); err != nil {
		return dom.Rect{}, fmt.Errorf("roddom: bounding rect: %w", err)
	}
	return r, nil
}

// ContentDocument implements dom.Element. Frames whose document the
// parent cannot read report dom.ErrCrossOrigin.
func (e *Element) ContentDocument() (dom.Document, error) {
	res, err := e.eval(`() => {
		if (this.tagName !== "IFRAME") return false;
		try { return !!this.contentDocument; } catch (e) { return false; }
	}`)
	if err != nil {
		return nil, fmt.Errorf("roddom: content document: %w", err)
	}
	if !res.ok {
		if e.TagName() != "iframe" {
			return nil, fmt.Errorf("roddom: <%s> has no content document: %w", e.TagName(), dom.ErrNotFound)
		}
		return nil, dom.ErrCrossOrigin
	}
	fp, err := e.el.Frame()
	if err != nil {
		return nil, fmt.Errorf("roddom: frame: %w", err)
	}
	return e.doc.frame(fp), nil
}

// frame wraps a same-origin frame page. Frame documents are read-only
// views: they have no binding listener of their own.
func (d *Document) frame(fp *rod.Page) *Document {
	ctx, cancel := context.WithCancel(d.ctx)
	f := &Document{
		page:   fp.Context(ctx),
		logger: d.logger,
		poll:   d.poll,
		ctx:    ctx,
		cancel: cancel,
	}
	f.win = &Window{doc: f, pushes: make(map[string]func([]any))}
	return f
}
