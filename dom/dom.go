// CLAUDE:SUMMARY Backend-neutral DOM contract (Document, Element, Window, mutation records, shims) shared by htmldom and roddom.
// Package dom defines the small document model the ad engine works against.
//
// Two backends implement it: htmldom (an in-memory tree built on
// golang.org/x/net/html, used by the rewrite proxy and tests) and roddom
// (a live Chrome page driven through go-rod). The engine never imports a
// backend directly.
package dom

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an id, selector or template has no match.
	ErrNotFound = errors.New("dom: not found")
	// ErrCrossOrigin is returned when a frame document belongs to another origin.
	ErrCrossOrigin = errors.New("dom: cross-origin document")
	// ErrDetached is returned when an element is no longer attached to a parent.
	ErrDetached = errors.New("dom: element detached")
)

// ReadyState mirrors document.readyState.
type ReadyState int

const (
	Loading ReadyState = iota
	Interactive
	Complete
)

func (s ReadyState) String() string {
	switch s {
	case Loading:
		return "loading"
	case Interactive:
		return "interactive"
	case Complete:
		return "complete"
	}
	return fmt.Sprintf("ReadyState(%d)", int(s))
}

// ParseReadyState maps document.readyState strings. Unknown values read as Loading.
func ParseReadyState(s string) ReadyState {
	switch s {
	case "interactive":
		return Interactive
	case "complete":
		return Complete
	}
	return Loading
}

// Rect is a measured element box in CSS pixels.
type Rect struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// Element is a handle on one DOM element. Handles are cheap; two handles on
// the same element return equal Identity values.
type Element interface {
	// Identity is a comparable key for the underlying element. It must not
	// keep the element alive.
	Identity() any
	TagName() string
	Attr(name string) (string, bool)
	SetAttr(name, value string) error
	Matches(selector string) (bool, error)
	// QueryAll returns matching descendants in document order, excluding
	// the element itself.
	QueryAll(selector string) ([]Element, error)
	// Query returns the first matching descendant or ErrNotFound.
	Query(selector string) (Element, error)
	SetStyle(prop, value string, important bool) error
	AddClass(name string) error
	// SetText replaces all children with a single text node.
	SetText(text string) error
	AppendChild(child Element) error
	// InsertAfter inserts node as the next sibling of the receiver.
	InsertAfter(node Element) error
	Remove() error
	BoundingRect() (Rect, error)
	// ContentDocument returns the nested document of an iframe. It fails
	// with ErrCrossOrigin when the frame is not readable.
	ContentDocument() (Document, error)
}

// Collectable is implemented by elements whose backend can report when
// the underlying node has been garbage collected.
type Collectable interface {
	OnCollect(fn func())
}

// Document is one browsing context's document.
type Document interface {
	ReadyState() ReadyState
	// WaitReady blocks until ReadyState is at least min.
	WaitReady(ctx context.Context, min ReadyState) error
	Body() (Element, error)
	ElementByID(id string) (Element, error)
	QueryAll(selector string) ([]Element, error)
	// CreateElement returns a detached element owned by this document.
	CreateElement(tag string) (Element, error)
	// AppendHTML parses markup as a fragment and appends it to parent.
	AppendHTML(parent Element, markup string) error
	// CloneTemplate deep-clones the content of the <template> with the given id.
	CloneTemplate(id string) (Element, error)
	Window() Window
	// Observe delivers mutation batches for the whole document until stop is called.
	Observe(opts ObserveOptions, fn func([]MutationRecord)) (stop func(), err error)
}

// Window exposes the page-global state the engine needs.
type Window interface {
	// MarkOnce sets a page-global boolean flag and reports whether this
	// call was the one that set it.
	MarkOnce(flag string) bool
	// Install replaces a page global with a shim.
	Install(global string, shim Shim) error
}

// MutationType is the kind of a MutationRecord.
type MutationType int

const (
	ChildList MutationType = iota
	Attributes
)

func (t MutationType) String() string {
	if t == Attributes {
		return "attributes"
	}
	return "childList"
}

// MutationRecord is one observed change.
type MutationRecord struct {
	Type          MutationType
	Target        Element
	Added         []Element
	AttributeName string
}

// ObserveOptions selects which changes are reported.
type ObserveOptions struct {
	ChildList       bool
	Subtree         bool
	Attributes      bool
	AttributeFilter []string
}

// WantsAttribute reports whether an attribute change on name is observed.
func (o ObserveOptions) WantsAttribute(name string) bool {
	if !o.Attributes && len(o.AttributeFilter) == 0 {
		return false
	}
	if len(o.AttributeFilter) == 0 {
		return true
	}
	for _, f := range o.AttributeFilter {
		if f == name {
			return true
		}
	}
	return false
}
