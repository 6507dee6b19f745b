package adreplacer

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/hazyhaar/adfriend/dom"
)

// scanIframes inspects every unprocessed iframe. Ads found inside readable
// frames are only counted; frames that look like ads themselves are handed
// to replace as a whole.
func (r *Replacer) scanIframes(ctx context.Context, replace func(context.Context, dom.Element) bool) error {
	frames, err := r.doc.QueryAll("iframe")
	if err != nil {
		return err
	}
	for _, f := range frames {
		if r.Processed(f) || r.isExcluded(f) {
			continue
		}
		r.inspectFrame(f)
		if r.likelyAdFrame(f) {
			replace(ctx, f)
		}
	}
	return nil
}

func (r *Replacer) dispatchFrame(_ context.Context, el dom.Element) bool {
	return r.Dispatch(el)
}

// inspectFrame counts ads inside a same-origin frame document.
func (r *Replacer) inspectFrame(f dom.Element) {
	doc, err := f.ContentDocument()
	switch {
	case errors.Is(err, dom.ErrCrossOrigin):
		r.logger.Debug("adreplacer: iframe not readable", "src", attrOf(f, "src"))
		return
	case err != nil:
		r.logger.Debug("adreplacer: iframe document unavailable", "error", err)
		return
	}
	// Live frame views hold a context on the page until closed.
	if c, ok := doc.(io.Closer); ok {
		defer c.Close()
	}
	ads, err := doc.QueryAll(r.union)
	if err != nil {
		r.logger.Debug("adreplacer: iframe query failed", "error", err)
		return
	}
	if len(ads) > 0 {
		r.stats.frameAds.Add(int64(len(ads)))
		r.logger.Info("adreplacer: ads found in readable iframe", "count", len(ads), "src", attrOf(f, "src"))
	}
}

// likelyAdFrame classifies an iframe from its source, its id and class, and
// its declared (or measured) size.
func (r *Replacer) likelyAdFrame(f dom.Element) bool {
	src := attrOf(f, "src")
	if src == "" {
		src = attrOf(f, "srcdoc")
	}
	if src != "" && (r.tax.MatchesScriptDomain(src) || r.tax.HasAdKeyword(src)) {
		return true
	}
	if r.tax.HasAdKeyword(attrOf(f, "id") + " " + attrOf(f, "class")) {
		return true
	}

	w, _ := strconv.Atoi(strings.TrimSpace(attrOf(f, "width")))
	h, _ := strconv.Atoi(strings.TrimSpace(attrOf(f, "height")))
	if w <= 0 || h <= 0 {
		if rect, err := f.BoundingRect(); err == nil {
			if w <= 0 {
				w = int(rect.Width)
			}
			if h <= 0 {
				h = int(rect.Height)
			}
		}
	}
	return r.tax.IsStandardSize(w, h)
}

func attrOf(el dom.Element, name string) string {
	v, _ := el.Attr(name)
	return v
}
