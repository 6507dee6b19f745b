package adreplacer

import (
	"context"
	"fmt"

	"github.com/hazyhaar/adfriend/adtaxonomy"
	"github.com/hazyhaar/adfriend/dom"
)

// ReplaceSingleAd hides el and inserts replacement content after it. It
// returns whether content was inserted. An element is handled at most
// once: it is claimed before anything that can block, and stays claimed
// whatever the outcome. Errors and panics are logged here and never
// returned.
func (r *Replacer) ReplaceSingleAd(ctx context.Context, el dom.Element) bool {
	if !r.claim(el) {
		return false
	}
	return r.finish(ctx, el)
}

// Dispatch claims el synchronously and finishes the replacement on a
// tracked goroutine. It reports whether el was claimed.
func (r *Replacer) Dispatch(el dom.Element) bool {
	if !r.claim(el) {
		return false
	}
	ctx := r.context()
	r.wg.Go(func() { r.finish(ctx, el) })
	return true
}

// Processed reports whether el has been claimed, by this replacer or by a
// previous one on the same page.
func (r *Replacer) Processed(el dom.Element) bool {
	if el == nil {
		return false
	}
	if v, _ := el.Attr(ProcessedAttr); v == "true" {
		return true
	}
	return r.registry.Has(el)
}

func (r *Replacer) claim(el dom.Element) bool {
	if el == nil {
		return false
	}
	if v, _ := el.Attr(ProcessedAttr); v == "true" {
		return false
	}
	if !r.registry.Claim(el) {
		return false
	}
	if err := el.SetAttr(ProcessedAttr, "true"); err != nil {
		r.logger.Debug("adreplacer: mark failed", "error", err)
	}
	r.stats.processed.Add(1)
	return true
}

func (r *Replacer) finish(ctx context.Context, el dom.Element) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			r.stats.failed.Add(1)
			r.logger.Error("adreplacer: replace panicked", "tag", el.TagName(), "panic", p)
			ok = false
		}
	}()
	ok, err := r.replace(ctx, el)
	if err != nil {
		r.stats.failed.Add(1)
		r.logger.Warn("adreplacer: replace failed", "tag", el.TagName(), "error", err)
		return false
	}
	return ok
}

func (r *Replacer) replace(ctx context.Context, el dom.Element) (bool, error) {
	rect, err := el.BoundingRect()
	if err != nil {
		r.logger.Debug("adreplacer: measure failed", "error", err)
		rect = dom.Rect{}
	}
	if err := hide(el); err != nil {
		return false, fmt.Errorf("hide: %w", err)
	}

	size := r.tax.FindClosestAdSize(rect.Width, rect.Height)
	slot := rect
	slot.Width, slot.Height = float64(size.Width), float64(size.Height)
	slot.Right, slot.Bottom = slot.Left+slot.Width, slot.Top+slot.Height

	content := r.content.Next(ctx, &slot)
	if content == nil {
		r.stats.hiddenOnly.Add(1)
		r.logger.Debug("adreplacer: no replacement generated", "tag", el.TagName(), "size", size.String())
		return false, nil
	}
	if err := dress(content, size); err != nil {
		return false, fmt.Errorf("style replacement: %w", err)
	}
	if err := el.InsertAfter(content); err != nil {
		return false, fmt.Errorf("insert: %w", err)
	}
	r.stats.replaced.Add(1)
	r.logger.Debug("adreplacer: replaced ad", "tag", el.TagName(), "size", size.String())
	return true, nil
}

// hide collapses an ad without removing it.
func hide(el dom.Element) error {
	for _, s := range []struct {
		prop, value string
		important   bool
	}{
		{"display", "none", true},
		{"visibility", "hidden", true},
		{"width", "0px", false},
		{"height", "0px", false},
		{"overflow", "hidden", false},
	} {
		if err := el.SetStyle(s.prop, s.value, s.important); err != nil {
			return err
		}
	}
	return nil
}

// dress sizes a replacement to the normalised slot and marks it.
func dress(el dom.Element, size adtaxonomy.AdSize) error {
	for _, s := range [][2]string{
		{"width", fmt.Sprintf("%dpx", size.Width)},
		{"height", fmt.Sprintf("%dpx", size.Height)},
		{"display", "inline-block"},
		{"visibility", "visible"},
	} {
		if err := el.SetStyle(s[0], s[1], false); err != nil {
			return err
		}
	}
	if err := el.AddClass("ad-size-" + size.String()); err != nil {
		return err
	}
	return el.SetAttr(ReplacementAttr, "true")
}
