package htmldom

import (
	"slices"
	"time"

	"github.com/hazyhaar/adfriend/dom"
	"golang.org/x/net/html"
)

// record is a pending mutation, kept on raw nodes until delivery.
type record struct {
	typ    dom.MutationType
	target *html.Node
	added  []*html.Node
	name   string
}

// debounceConfig controls the batching behaviour.
type debounceConfig struct {
	// Window is the quiet period before a batch is delivered. Default: 10ms.
	Window time.Duration
	// MaxBuffer forces delivery when this many records accumulate. Default: 256.
	MaxBuffer int
}

func (dc *debounceConfig) defaults() {
	if dc.Window <= 0 {
		dc.Window = 10 * time.Millisecond
	}
	if dc.MaxBuffer <= 0 {
		dc.MaxBuffer = 256
	}
}

// debouncer buffers records until the window expires or the buffer fills.
// It is not safe for concurrent use; the observer guards it.
type debouncer struct {
	cfg     debounceConfig
	records []record
	timer   *time.Timer
	timerCh <-chan time.Time
}

func newDebouncer(cfg debounceConfig) *debouncer {
	cfg.defaults()
	return &debouncer{cfg: cfg}
}

// add buffers a record and restarts the window.
func (d *debouncer) add(rec record) {
	d.records = append(d.records, rec)
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.NewTimer(d.cfg.Window)
	d.timerCh = d.timer.C
}

func (d *debouncer) full() bool { return len(d.records) >= d.cfg.MaxBuffer }

func (d *debouncer) timerC() <-chan time.Time { return d.timerCh }

// take returns at most MaxBuffer compressed records and keeps the rest
// buffered with a fresh window.
func (d *debouncer) take() []record {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
		d.timerCh = nil
	}
	if len(d.records) == 0 {
		return nil
	}
	n := min(len(d.records), d.cfg.MaxBuffer)
	out := compress(d.records[:n])
	d.records = slices.Clone(d.records[n:])
	if len(d.records) > 0 {
		d.timer = time.NewTimer(d.cfg.Window)
		d.timerCh = d.timer.C
	}
	return out
}

// compress folds runs of attribute records on the same (target, name) into
// one. Child list records are structurally significant and always kept.
func compress(records []record) []record {
	if len(records) <= 1 {
		return records
	}
	out := make([]record, 0, len(records))
	for i := 0; i < len(records); i++ {
		rec := records[i]
		if rec.typ == dom.Attributes {
			j := i + 1
			for j < len(records) &&
				records[j].typ == dom.Attributes &&
				records[j].target == rec.target &&
				records[j].name == rec.name {
				j++
			}
			i = j - 1
		}
		out = append(out, rec)
	}
	return out
}
