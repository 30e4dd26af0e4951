// Package budget meters network-backed provider calls against a session
// ceiling and owns the switch to the offline provider.
package budget

import (
	"sync"

	"aibook/internal/logging"
	"aibook/internal/metrics"
)

// Governor counts provider calls against a fixed ceiling. When the counter
// reaches the ceiling it activates the fallback provider; switching back is
// refused for the rest of the session. Calls made while the fallback is
// active are free.
type Governor struct {
	mu       sync.Mutex
	limit    int
	calls    int
	fallback bool
}

// New returns a governor with the given call ceiling.
func New(limit int) *Governor {
	return &Governor{limit: limit}
}

// RecordCalls adds n to the counter unless the fallback provider is active.
// Reaching the ceiling activates the fallback. Returns true when this call
// caused the activation.
func (g *Governor) RecordCalls(n int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fallback {
		return false
	}
	g.calls += n
	if g.calls >= g.limit {
		g.fallback = true
		metrics.FallbackActivations.Inc()
		logging.Warn("api_limit_reached", map[string]any{"calls": g.calls, "limit": g.limit})
		return true
	}
	return false
}

// Calls returns the number of metered calls so far.
func (g *Governor) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// Limit returns the session ceiling.
func (g *Governor) Limit() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.limit
}

// FallbackActive reports whether the offline provider is in use.
func (g *Governor) FallbackActive() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fallback
}

// Exhausted reports whether the counter has reached the ceiling.
func (g *Governor) Exhausted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls >= g.limit
}

// SetFallback toggles the provider manually. Switching back to the
// network-backed provider is refused once the ceiling has been reached; the
// refusal is logged, not returned as an error. Reports whether the toggle
// took effect.
func (g *Governor) SetFallback(on bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !on && g.calls >= g.limit {
		logging.Warn("fallback_toggle_refused", map[string]any{"reason": "api limit reached", "calls": g.calls})
		return false
	}
	g.fallback = on
	return true
}
