package dom

// ShimKind selects the behaviour of an installed global.
type ShimKind int

const (
	// ShimQueue stands in for a push-style command queue (adsbygoogle).
	// Every push is reported to OnPush and then forwarded to the queue
	// contents so host code keeps working.
	ShimQueue ShimKind = iota
	// ShimNoop stands in for a command object (googletag). Any property
	// read yields a no-op function, properties in ListProps yield an
	// empty list, and writes to the global or its properties are dropped.
	ShimNoop
)

func (k ShimKind) String() string {
	if k == ShimNoop {
		return "noop"
	}
	return "queue"
}

// Shim is a declarative description of a page-global stand-in. Each
// backend materialises it in its own way.
type Shim struct {
	Kind      ShimKind
	ListProps []string
	// OnPush receives the pushed items of a ShimQueue. It runs on the
	// caller's goroutine and must not block.
	OnPush func(items []any)
}
