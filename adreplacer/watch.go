package adreplacer

import (
	"strings"

	"github.com/hazyhaar/adfriend/dom"
)

// watchOptions observes structure and the attributes that can turn an
// element into an ad match.
var watchOptions = dom.ObserveOptions{
	ChildList:       true,
	Subtree:         true,
	AttributeFilter: []string{"style", "class", "id", "src"},
}

func (r *Replacer) observe() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopWatch != nil {
		return nil
	}
	stop, err := r.doc.Observe(watchOptions, r.onMutations)
	if err != nil {
		return err
	}
	r.stopWatch = stop
	return nil
}

// onMutations only claims and dispatches; it never waits for content.
func (r *Replacer) onMutations(records []dom.MutationRecord) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("adreplacer: mutation handler panicked", "panic", p)
		}
	}()

	rescan := false
	for _, rec := range records {
		switch rec.Type {
		case dom.ChildList:
			for _, el := range rec.Added {
				if r.onAdded(el) {
					rescan = true
				}
			}
		case dom.Attributes:
			if rec.Target != nil && !r.isExcluded(rec.Target) && r.matchesUnion(rec.Target) {
				r.Dispatch(rec.Target)
			}
		}
	}
	if rescan {
		if err := r.scanIframes(r.context(), r.dispatchFrame); err != nil {
			r.logger.Warn("adreplacer: iframe rescan failed", "error", err)
		}
	}
}

// onAdded dispatches el and any ad inside it, and reports whether el is an
// iframe.
func (r *Replacer) onAdded(el dom.Element) bool {
	if el == nil || r.isExcluded(el) {
		return false
	}
	if r.matchesUnion(el) {
		r.Dispatch(el)
	}
	if inner, err := el.QueryAll(r.union); err == nil {
		for _, ad := range inner {
			if !r.isExcluded(ad) {
				r.Dispatch(ad)
			}
		}
	}
	return strings.EqualFold(el.TagName(), "iframe")
}
