package security

import (
	"sync"
	"time"
)

const (
	// rateWindow is the span every per-kind and global cap is measured over.
	rateWindow = time.Second
	// rateRetention is how long per-player windows survive without traffic
	// before the periodic GC drops them.
	rateRetention = 5 * time.Minute
)

// DefaultActionLimits is the published per-kind budget per one-second window.
func DefaultActionLimits() map[string]int {
	return map[string]int{
		"move":   10,
		"flip":   5,
		"flag":   5,
		"unflag": 5,
	}
}

// DefaultGlobalLimit caps total actions per player per one-second window.
const DefaultGlobalLimit = 20

// RateLimiter keeps per-player, per-action-kind sliding windows. Admission
// trims expired records and requires both the per-kind and the global cap to
// hold; only admitted actions are recorded.
type RateLimiter struct {
	mu      sync.Mutex
	clock   func() time.Time
	limits  map[string]int
	global  int
	players map[string]*rateWindows
}

type rateWindows struct {
	perKind map[string][]time.Time
	all     []time.Time
	touched time.Time
}

// NewRateLimiter builds a limiter with the published defaults. A nil clock
// defaults to time.Now.
func NewRateLimiter(clock func() time.Time) *RateLimiter {
	if clock == nil {
		clock = time.Now
	}
	return &RateLimiter{
		clock:   clock,
		limits:  DefaultActionLimits(),
		global:  DefaultGlobalLimit,
		players: make(map[string]*rateWindows),
	}
}

// Allow admits or refuses one action for the player.
func (l *RateLimiter) Allow(playerID, kind string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	w := l.players[playerID]
	if w == nil {
		w = &rateWindows{perKind: make(map[string][]time.Time)}
		l.players[playerID] = w
	}
	w.touched = now

	cutoff := now.Add(-rateWindow)
	w.all = trimBefore(w.all, cutoff)
	kindWindow := trimBefore(w.perKind[kind], cutoff)
	w.perKind[kind] = kindWindow

	limit, known := l.limits[kind]
	if !known {
		limit = 0
	}
	if len(kindWindow) >= limit || len(w.all) >= l.global {
		return false
	}

	w.perKind[kind] = append(kindWindow, now)
	w.all = append(w.all, now)
	return true
}

// GC drops window state for players without traffic in the retention span.
func (l *RateLimiter) GC() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.clock().Add(-rateRetention)
	for id, w := range l.players {
		if w.touched.Before(cutoff) {
			delete(l.players, id)
		}
	}
}

// Forget drops all state for one player, used at eviction and ban.
func (l *RateLimiter) Forget(playerID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.players, playerID)
}

// Tracked reports how many players currently hold window state.
func (l *RateLimiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.players)
}

func trimBefore(window []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(window) && !window[idx].After(cutoff) {
		idx++
	}
	if idx == 0 {
		return window
	}
	remaining := len(window) - idx
	copy(window, window[idx:])
	return window[:remaining]
}
