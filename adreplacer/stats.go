package adreplacer

import "sync/atomic"

// Stats is a snapshot of the replacer counters.
type Stats struct {
	Processed      int64 `json:"processed"`
	Replaced       int64 `json:"replaced"`
	HiddenOnly     int64 `json:"hidden_only"`
	Failed         int64 `json:"failed"`
	ScriptsRemoved int64 `json:"scripts_removed"`
	FrameAds       int64 `json:"frame_ads"`
	Intercepted    int64 `json:"intercepted"`
}

type counters struct {
	processed      atomic.Int64
	replaced       atomic.Int64
	hiddenOnly     atomic.Int64
	failed         atomic.Int64
	scriptsRemoved atomic.Int64
	frameAds       atomic.Int64
	intercepted    atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Processed:      c.processed.Load(),
		Replaced:       c.replaced.Load(),
		HiddenOnly:     c.hiddenOnly.Load(),
		Failed:         c.failed.Load(),
		ScriptsRemoved: c.scriptsRemoved.Load(),
		FrameAds:       c.frameAds.Load(),
		Intercepted:    c.intercepted.Load(),
	}
}
