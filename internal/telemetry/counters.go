package telemetry

import "sync"

// Counters is a map-backed Metrics implementation. The diagnostics endpoint
// and the security dashboard read it through Snapshot, so writes must stay
// cheap and never block the game loop.
type Counters struct {
	mu     sync.RWMutex
	values map[string]uint64
}

// NewCounters constructs an empty counter registry.
func NewCounters() *Counters {
	return &Counters{values: make(map[string]uint64)}
}

// Add increments the named counter by delta.
func (c *Counters) Add(key string, delta uint64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.values[key] += delta
	c.mu.Unlock()
}

// Store overwrites the named counter with value.
func (c *Counters) Store(key string, value uint64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.values[key] = value
	c.mu.Unlock()
}

// Load returns the current value of the named counter.
func (c *Counters) Load(key string) uint64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values[key]
}

// Snapshot copies every counter into a fresh map.
func (c *Counters) Snapshot() map[string]uint64 {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	copied := make(map[string]uint64, len(c.values))
	for k, v := range c.values {
		copied[k] = v
	}
	return copied
}
