package htmldom

import (
	"fmt"
	"runtime"
	"slices"
	"strings"
	"weak"

	"github.com/hazyhaar/adfriend/dom"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Element is a handle on one node of a Document.
type Element struct {
	doc *Document
	n   *html.Node
}

var (
	_ dom.Element     = (*Element)(nil)
	_ dom.Collectable = (*Element)(nil)
)

// Identity returns a weak pointer to the node, so identity keys never keep
// a removed node alive.
func (e *Element) Identity() any { return weak.Make(e.n) }

// OnCollect runs fn once the node has been garbage collected.
func (e *Element) OnCollect(fn func()) {
	runtime.AddCleanup(e.n, func(f func()) { f() }, fn)
}

// Node exposes the underlying html node.
func (e *Element) Node() *html.Node { return e.n }

// TagName implements dom.Element.
func (e *Element) TagName() string { return e.n.Data }

// Attr implements dom.Element.
func (e *Element) Attr(name string) (string, bool) {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return attr(e.n, name)
}

// SetAttr implements dom.Element.
func (e *Element) SetAttr(name, value string) error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	setAttr(e.n, name, value)
	e.doc.emitAttr(e.n, name)
	return nil
}

// Matches implements dom.Element.
func (e *Element) Matches(selector string) (bool, error) {
	m, err := e.doc.sel.get(selector)
	if err != nil {
		return false, err
	}
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return m.Match(e.n), nil
}

// QueryAll implements dom.Element.
func (e *Element) QueryAll(selector string) ([]dom.Element, error) {
	m, err := e.doc.sel.get(selector)
	if err != nil {
		return nil, err
	}
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	if e.n.DataAtom == atom.Template {
		return nil, nil
	}
	return e.doc.wrapAll(queryAll(e.n, m)), nil
}

// Query implements dom.Element.
func (e *Element) Query(selector string) (dom.Element, error) {
	all, err := e.QueryAll(selector)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("htmldom: %s: %w", selector, dom.ErrNotFound)
	}
	return all[0], nil
}

// SetStyle implements dom.Element.
func (e *Element) SetStyle(prop, value string, important bool) error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	setStyleProp(e.n, prop, value, important)
	e.doc.emitAttr(e.n, "style")
	return nil
}

// Style returns the inline value of prop.
func (e *Element) Style(prop string) (string, bool) {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return styleValue(e.n, prop)
}

// AddClass implements dom.Element.
func (e *Element) AddClass(name string) error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	cur, _ := attr(e.n, "class")
	fields := strings.Fields(cur)
	if slices.Contains(fields, name) {
		return nil
	}
	setAttr(e.n, "class", strings.Join(append(fields, name), " "))
	e.doc.emitAttr(e.n, "class")
	return nil
}

// SetText implements dom.Element.
func (e *Element) SetText(text string) error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	for c := e.n.FirstChild; c != nil; {
		next := c.NextSibling
		e.n.RemoveChild(c)
		c = next
	}
	e.n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	e.doc.emitChildList(e.n, nil)
	return nil
}

// Text returns the concatenated text content.
func (e *Element) Text() string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	var b strings.Builder
	var rec func(*html.Node)
	rec = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}
	rec(e.n)
	return b.String()
}

// AppendChild implements dom.Element.
func (e *Element) AppendChild(child dom.Element) error {
	c, err := e.doc.own(child)
	if err != nil {
		return err
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if contains(c.n, e.n) {
		return fmt.Errorf("htmldom: append would create a cycle")
	}
	detach(c.n)
	e.n.AppendChild(c.n)
	e.doc.emitChildList(e.n, []*html.Node{c.n})
	return nil
}

// InsertAfter implements dom.Element.
func (e *Element) InsertAfter(node dom.Element) error {
	c, err := e.doc.own(node)
	if err != nil {
		return err
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	parent := e.n.Parent
	if parent == nil {
		return dom.ErrDetached
	}
	if contains(c.n, e.n) {
		return fmt.Errorf("htmldom: insert would create a cycle")
	}
	detach(c.n)
	parent.InsertBefore(c.n, e.n.NextSibling)
	e.doc.emitChildList(parent, []*html.Node{c.n})
	return nil
}

// NextElementSibling returns the following element sibling, or nil.
func (e *Element) NextElementSibling() *Element {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	for s := e.n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return e.doc.wrap(s)
		}
	}
	return nil
}

// Remove implements dom.Element.
func (e *Element) Remove() error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	parent := e.n.Parent
	if parent == nil {
		return dom.ErrDetached
	}
	parent.RemoveChild(e.n)
	e.doc.emitChildList(parent, nil)
	return nil
}

// BoundingRect implements dom.Element. Sizes come from inline px values or
// width/height attributes; a hidden element or ancestor measures zero.
func (e *Element) BoundingRect() (dom.Rect, error) {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	if !displayed(e.n) {
		return dom.Rect{}, nil
	}
	w := dimension(e.n, "width")
	h := dimension(e.n, "height")
	return dom.Rect{Width: w, Height: h, Right: w, Bottom: h}, nil
}

// ContentDocument implements dom.Element.
func (e *Element) ContentDocument() (dom.Document, error) {
	if e.n.DataAtom != atom.Iframe {
		return nil, fmt.Errorf("htmldom: <%s> has no content document: %w", e.n.Data, dom.ErrNotFound)
	}
	f, err := e.doc.contentDocument(e.n)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// OuterHTML renders the element.
func (e *Element) OuterHTML() string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	var b strings.Builder
	_ = html.Render(&b, e.n)
	return b.String()
}

func detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}
