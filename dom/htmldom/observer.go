package htmldom

import (
	"fmt"
	"sync"

	"github.com/hazyhaar/adfriend/dom"
	"golang.org/x/net/html"
)

// observer delivers batches for one Observe call. Records are buffered by
// a debouncer and handed to fn from a dedicated goroutine; deliveries for
// one observer never overlap.
type observer struct {
	doc  *Document
	opts dom.ObserveOptions
	fn   func([]dom.MutationRecord)

	mu  sync.Mutex
	deb *debouncer

	deliverMu sync.Mutex
	kick      chan struct{}
	stop      chan struct{}
	stopOnce  sync.Once
}

// Observe implements dom.Document.
func (d *Document) Observe(opts dom.ObserveOptions, fn func([]dom.MutationRecord)) (func(), error) {
	if fn == nil {
		return nil, fmt.Errorf("htmldom: observe: nil callback")
	}
	o := &observer{
		doc:  d,
		opts: opts,
		fn:   fn,
		deb:  newDebouncer(debounceConfig{Window: d.debounceWindow, MaxBuffer: d.maxBuffer}),
		kick: make(chan struct{}, 1),
		stop: make(chan struct{}),
	}
	d.mu.Lock()
	d.observers = append(d.observers, o)
	d.mu.Unlock()

	go o.loop()

	return func() {
		d.mu.Lock()
		for i, x := range d.observers {
			if x == o {
				d.observers = append(d.observers[:i], d.observers[i+1:]...)
				break
			}
		}
		d.mu.Unlock()
		o.stopOnce.Do(func() { close(o.stop) })
	}, nil
}

// Flush delivers every pending record synchronously.
func (d *Document) Flush() {
	d.mu.RLock()
	obs := append([]*observer(nil), d.observers...)
	d.mu.RUnlock()
	for _, o := range obs {
		for o.flush() {
		}
	}
}

func (o *observer) loop() {
	for {
		select {
		case <-o.stop:
			return
		default:
		}

		o.mu.Lock()
		full := o.deb.full()
		tc := o.deb.timerC()
		o.mu.Unlock()

		if full {
			o.flush()
			continue
		}

		select {
		case <-o.stop:
			return
		case <-o.kick:
		case <-tc:
			o.flush()
		}
	}
}

func (o *observer) enqueue(rec record) {
	o.mu.Lock()
	o.deb.add(rec)
	o.mu.Unlock()
	select {
	case o.kick <- struct{}{}:
	default:
	}
}

// flush delivers one batch and reports whether there was anything to deliver.
func (o *observer) flush() bool {
	o.deliverMu.Lock()
	defer o.deliverMu.Unlock()

	o.mu.Lock()
	batch := o.deb.take()
	o.mu.Unlock()
	if len(batch) == 0 {
		return false
	}

	select {
	case <-o.stop:
		return false
	default:
	}

	out := make([]dom.MutationRecord, len(batch))
	for i, r := range batch {
		out[i] = dom.MutationRecord{
			Type:          r.typ,
			Target:        o.doc.wrap(r.target),
			AttributeName: r.name,
		}
		for _, n := range r.added {
			out[i].Added = append(out[i].Added, o.doc.wrap(n))
		}
	}

	defer func() {
		if r := recover(); r != nil {
			o.doc.logger.Error("htmldom: observer callback panicked", "panic", r)
		}
	}()
	o.fn(out)
	return true
}

// covers reports whether a change on n is inside the observed scope.
func (o *observer) covers(root, n *html.Node) bool {
	return n == root || (o.opts.Subtree && contains(root, n))
}

// emitChildList and emitAttr are called with d.mu held for writing.
func (d *Document) emitChildList(target *html.Node, added []*html.Node) {
	if len(d.observers) == 0 || !contains(d.root, target) || inTemplate(target) {
		return
	}
	for _, o := range d.observers {
		if !o.opts.ChildList || !o.covers(d.root, target) {
			continue
		}
		o.enqueue(record{typ: dom.ChildList, target: target, added: append([]*html.Node(nil), added...)})
	}
}

func (d *Document) emitAttr(target *html.Node, name string) {
	if len(d.observers) == 0 || !contains(d.root, target) || inTemplate(target) {
		return
	}
	for _, o := range d.observers {
		if !o.opts.WantsAttribute(name) || !o.covers(d.root, target) {
			continue
		}
		o.enqueue(record{typ: dom.Attributes, target: target, name: name})
	}
}
