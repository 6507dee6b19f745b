package adreplacer

import (
	"errors"
	"fmt"

	"github.com/hazyhaar/adfriend/dom"
)

// Interception replaces one page global with a shim bound to a Replacer.
type Interception struct {
	Global string
	Shim   func(r *Replacer) dom.Shim
}

// DefaultInterceptions covers the AdSense command queue and the googletag,
// OxP and AdButler command objects.
func DefaultInterceptions() []Interception {
	return []Interception{
		{Global: "adsbygoogle", Shim: adsbygoogleShim},
		noopInterception("googletag"),
		noopInterception("OxP"),
		noopInterception("AdButler"),
	}
}

func noopInterception(global string) Interception {
	return Interception{
		Global: global,
		Shim: func(*Replacer) dom.Shim {
			return dom.Shim{Kind: dom.ShimNoop, ListProps: []string{"cmd"}}
		},
	}
}

func adsbygoogleShim(r *Replacer) dom.Shim {
	return dom.Shim{Kind: dom.ShimQueue, OnPush: r.onAdsbygooglePush}
}

// onAdsbygooglePush dispatches the most recent unprocessed AdSense slot,
// which is the one the page is asking to fill.
func (r *Replacer) onAdsbygooglePush(items []any) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("adreplacer: adsbygoogle push panicked", "panic", p)
		}
	}()
	r.stats.intercepted.Add(1)
	r.logger.Debug("adreplacer: adsbygoogle push intercepted", "items", len(items))

	slots, err := r.doc.QueryAll(`ins.adsbygoogle:not([` + ProcessedAttr + `="true"])`)
	if err != nil {
		r.logger.Warn("adreplacer: adsbygoogle lookup failed", "error", err)
		return
	}
	if len(slots) == 0 {
		return
	}
	// Pushes can fire while the page is still loading, before Initialize
	// has injected the templates the strategies clone.
	if err := r.injectTemplates(r.context()); err != nil {
		r.logger.Debug("adreplacer: templates not ready, leaving slot to the sweep", "error", err)
		return
	}
	r.Dispatch(slots[len(slots)-1])
}

// InstallInterceptions installs every configured shim on the page window.
// Live sessions call it before navigation so the shims are in place before
// ad scripts run; Initialize calls it again, which is a no-op.
func (r *Replacer) InstallInterceptions() error {
	r.mu.Lock()
	if r.installed {
		r.mu.Unlock()
		return nil
	}
	r.installed = true
	r.mu.Unlock()

	win := r.doc.Window()
	var errs []error
	for _, ic := range r.interceptions {
		if err := win.Install(ic.Global, ic.Shim(r)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ic.Global, err))
			continue
		}
		r.logger.Debug("adreplacer: interception installed", "global", ic.Global)
	}
	return errors.Join(errs...)
}
