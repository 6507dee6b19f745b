package replacement

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hazyhaar/adfriend/dom"
)

// Manager cycles through strategies round-robin. Each call tries at most
// len(strategies) of them, starting at the shared cursor, and the cursor
// moves past every strategy it tries.
type Manager struct {
	strategies []Strategy
	logger     *slog.Logger

	mu     sync.Mutex
	cursor int
}

// NewManager returns a Manager over strategies, in priority order.
func NewManager(logger *slog.Logger, strategies ...Strategy) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{strategies: strategies, logger: logger}
}

// advance returns the strategy under the cursor and moves the cursor on.
func (m *Manager) advance() Strategy {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.strategies[m.cursor]
	m.cursor = (m.cursor + 1) % len(m.strategies)
	return s
}

// Next returns the first element a strategy produces, or nil when every
// strategy came back empty. Strategy errors and panics count as empty.
func (m *Manager) Next(ctx context.Context, rect *dom.Rect) dom.Element {
	for range m.strategies {
		s := m.advance()
		el, err := m.try(ctx, s, rect)
		if err != nil {
			m.logger.Warn("replacement: strategy failed", "kind", s.Kind(), "error", err)
			continue
		}
		if el != nil {
			return el
		}
	}
	m.logger.Debug("replacement: no content could be generated")
	return nil
}

func (m *Manager) try(ctx context.Context, s Strategy, rect *dom.Rect) (el dom.Element, err error) {
	defer func() {
		if r := recover(); r != nil {
			el, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return s.CreateElement(ctx, rect)
}
