package roddom

import "github.com/hazyhaar/adfriend/dom"

var _ dom.Collectable = (*Element)(nil)

// OnCollect implements dom.Collectable. Chrome does not report node
// garbage collection over CDP, so a node counts as collected once its
// document is gone: when the main frame navigates or the Document closes.
func (e *Element) OnCollect(fn func()) {
	e.doc.onCollect(e.Identity(), fn)
}

func (d *Document) onCollect(id any, fn func()) {
	d.collectMu.Lock()
	defer d.collectMu.Unlock()
	if d.collectors == nil {
		d.collectors = make(map[any][]func())
	}
	d.collectors[id] = append(d.collectors[id], fn)
}

// collectAll runs and forgets every registered collector.
func (d *Document) collectAll() {
	d.collectMu.Lock()
	pending := d.collectors
	d.collectors = nil
	d.collectMu.Unlock()
	for _, fns := range pending {
		for _, fn := range fns {
			fn()
		}
	}
}

// tracked returns the number of nodes with pending collectors.
func (d *Document) tracked() int {
	d.collectMu.Lock()
	defer d.collectMu.Unlock()
	return len(d.collectors)
}
