package alerts

import (
	"sync"
	"time"
)

// Gate decides which evaluated alerts are forwarded to notifiers.
type Gate interface {
	Filter(alerts []Alert) []Alert
}

// AllowAll forwards every alert.
type AllowAll struct{}

func (AllowAll) Filter(alerts []Alert) []Alert { return alerts }

// CooldownGate forwards an alert for a category at most once per window.
type CooldownGate struct {
	mu     sync.Mutex
	window time.Duration
	now    func() time.Time
	last   map[string]time.Time
}

// NewCooldownGate creates a gate; a nil clock uses time.Now.
func NewCooldownGate(window time.Duration, now func() time.Time) *CooldownGate {
	if now == nil {
		now = time.Now
	}
	return &CooldownGate{window: window, now: now, last: map[string]time.Time{}}
}

func (g *CooldownGate) Filter(alerts []Alert) []Alert {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	out := make([]Alert, 0, len(alerts))
	for _, a := range alerts {
		if at, ok := g.last[a.Category]; ok && now.Sub(at) < g.window {
			continue
		}
		g.last[a.Category] = now
		out = append(out, a)
	}
	return out
}
