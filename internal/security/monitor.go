package security

import (
	"sort"
	"sync"
	"time"
)

const (
	// DefaultBanThreshold is the risk score at which auto-ban (when enabled)
	// takes effect.
	DefaultBanThreshold = 10
	// incidentLimit bounds the dashboard's recent-incident ring.
	incidentLimit = 100
)

// Incident is one security rejection surfaced to the dashboard.
type Incident struct {
	Time     time.Time `json:"time"`
	PlayerID string    `json:"playerId"`
	Action   string    `json:"action"`
	Reason   string    `json:"reason"`
	Severity string    `json:"severity"`
}

// Snapshot is the dashboard view of the monitor.
type Snapshot struct {
	AutoBan   bool           `json:"autoBan"`
	Banned    []string       `json:"banned"`
	Flagged   []string       `json:"flagged"`
	Risk      map[string]int `json:"risk"`
	Incidents []Incident     `json:"incidents"`
}

// Monitor accumulates risk scores from high-severity rejections, tracks the
// ban set, and keeps the incident feed for the operator dashboard.
type Monitor struct {
	mu        sync.Mutex
	clock     func() time.Time
	autoBan   bool
	threshold int
	risk      map[string]int
	banned    map[string]bool
	flagged   map[string]bool
	incidents []Incident
}

// NewMonitor builds a monitor. Auto-ban is off unless asked for; the default
// posture is operator review, not automation.
func NewMonitor(autoBan bool, clock func() time.Time) *Monitor {
	if clock == nil {
		clock = time.Now
	}
	return &Monitor{
		clock:     clock,
		autoBan:   autoBan,
		threshold: DefaultBanThreshold,
		risk:      make(map[string]int),
		banned:    make(map[string]bool),
		flagged:   make(map[string]bool),
	}
}

// RecordRejection feeds one gate rejection into the incident feed. High
// severity increments the player's risk score; the return value reports
// whether this rejection crossed the auto-ban threshold.
func (m *Monitor) RecordRejection(playerID, action, reason, severity string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.incidents = append(m.incidents, Incident{
		Time:     m.clock(),
		PlayerID: playerID,
		Action:   action,
		Reason:   reason,
		Severity: severity,
	})
	if len(m.incidents) > incidentLimit {
		m.incidents = m.incidents[len(m.incidents)-incidentLimit:]
	}

	if severity != "high" {
		return false
	}
	m.risk[playerID]++
	if m.autoBan && !m.banned[playerID] && m.risk[playerID] >= m.threshold {
		m.banned[playerID] = true
		return true
	}
	return false
}

// Ban adds the player to the ban set; reports whether this was a new ban.
func (m *Monitor) Ban(playerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.banned[playerID] {
		return false
	}
	m.banned[playerID] = true
	return true
}

// IsBanned reports ban-set membership.
func (m *Monitor) IsBanned(playerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.banned[playerID]
}

// Flag marks the player for operator review; reports whether it was new.
func (m *Monitor) Flag(playerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.flagged[playerID] {
		return false
	}
	m.flagged[playerID] = true
	return true
}

// RiskScore returns the player's accumulated risk.
func (m *Monitor) RiskScore(playerID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.risk[playerID]
}

// View copies the dashboard state.
func (m *Monitor) View() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		AutoBan:   m.autoBan,
		Banned:    sortedKeys(m.banned),
		Flagged:   sortedKeys(m.flagged),
		Risk:      make(map[string]int, len(m.risk)),
		Incidents: append([]Incident(nil), m.incidents...),
	}
	for id, score := range m.risk {
		snap.Risk[id] = score
	}
	return snap
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k, ok := range set {
		if ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
