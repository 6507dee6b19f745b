package roddom

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/hazyhaar/adfriend/dom"
)

// observer turns reported records into dom.MutationRecord batches on its
// own goroutine, one batch at a time.
type observer struct {
	doc *Document
	fn  func([]dom.MutationRecord)

	ch       chan []jsRecord
	done     chan struct{}
	stopOnce sync.Once
}

// Observe implements dom.Document. A page has a single observer; a second
// call fails until the first is stopped.
func (d *Document) Observe(opts dom.ObserveOptions, fn func([]dom.MutationRecord)) (func(), error) {
	if fn == nil {
		return nil, fmt.Errorf("roddom: observe: nil callback")
	}
	d.mu.Lock()
	if d.observer != nil {
		d.mu.Unlock()
		return nil, errors.New("roddom: observe: already observing")
	}
	o := &observer{doc: d, fn: fn, ch: make(chan []jsRecord, 1024), done: make(chan struct{})}
	d.observer = o
	d.mu.Unlock()

	raw, err := json.Marshal(map[string]any{
		"childList":       opts.ChildList,
		"subtree":         opts.Subtree,
		"attributes":      opts.Attributes,
		"attributeFilter": opts.AttributeFilter,
	})
	if err != nil {
		d.dropObserver(o)
		return nil, err
	}
	js := fmt.Sprintf(`window.__adfriend.observe(%s);`, raw)
	if err := d.evalScript(js); err != nil {
		d.dropObserver(o)
		return nil, err
	}
	go o.loop()

	return func() {
		if d.dropObserver(o) {
			if err := d.evalScript(`window.__adfriend && window.__adfriend.disconnect();`); err != nil {
				d.logger.Debug("roddom: disconnect observer", "error", err)
			}
		}
		o.close()
	}, nil
}

func (d *Document) dropObserver(o *observer) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.observer != o {
		return false
	}
	d.observer = nil
	return true
}

func (o *observer) close() {
	o.stopOnce.Do(func() { close(o.done) })
}

func (o *observer) enqueue(recs []jsRecord) {
	select {
	case o.ch <- recs:
	case <-o.done:
	case <-o.doc.ctx.Done():
	}
}

func (o *observer) loop() {
	for {
		select {
		case <-o.done:
			return
		case <-o.doc.ctx.Done():
			return
		case recs := <-o.ch:
			o.deliver(recs)
		}
	}
}

func (o *observer) deliver(recs []jsRecord) {
	out := make([]dom.MutationRecord, 0, len(recs))
	for _, r := range recs {
		typ, ok := mutationType(r.Type)
		if !ok {
			continue
		}
		target, err := o.doc.node(r.Target)
		if err != nil {
			continue
		}
		rec := dom.MutationRecord{Type: typ, Target: target, AttributeName: r.Name}
		for _, id := range r.Added {
			if el, err := o.doc.node(id); err == nil {
				rec.Added = append(rec.Added, el)
			}
		}
		out = append(out, rec)
	}
	if len(out) == 0 {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			o.doc.logger.Error("roddom: observer callback panicked", "panic", p)
		}
	}()
	o.fn(out)
}
