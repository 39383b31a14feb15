package security

import (
	"crypto/sha256"
	"strconv"
	"sync"
	"time"
)

const (
	// replayWindow is how recently an identical hash counts as a replay.
	replayWindow = 100 * time.Millisecond
	// duplicateWindow is how recently an identical kind+payload from the
	// same player counts as a duplicate.
	duplicateWindow = time.Second
	// historyWindow bounds the per-player action history used for sequence
	// sanity checks.
	historyWindow = 5 * time.Second
	// hashRetention bounds accepted-action records before GC.
	hashRetention = 5 * time.Minute
	// burstThreshold actions within any one-second span trip the sequence
	// guard.
	burstThreshold = 10
	// alternationThreshold consecutive flag/unflag flips trip the sequence
	// guard.
	alternationThreshold = 6
	// ReviewStrikes replay strikes flag a player for operator review.
	ReviewStrikes = 3
)

// Verdict classifies one inspected action.
type Verdict int

const (
	VerdictOK Verdict = iota
	VerdictReplay
	VerdictDuplicate
	VerdictAnomaly
)

func (v Verdict) String() string {
	switch v {
	case VerdictOK:
		return "ok"
	case VerdictReplay:
		return "replay"
	case VerdictDuplicate:
		return "duplicate"
	case VerdictAnomaly:
		return "anomaly"
	default:
		return "unknown"
	}
}

type stampedKind struct {
	kind string
	at   time.Time
}

type hashRecord struct {
	at time.Time
}

// ReplayGuard hashes accepted actions and inspects incoming ones for
// replays, duplicates, and insane sequences. Inspection looks only at what
// came before the candidate; acceptance is recorded separately via Commit so
// rule-rejected actions never enter the replay hash set.
type ReplayGuard struct {
	mu      sync.Mutex
	clock   func() time.Time
	hashes  map[[sha256.Size]byte]hashRecord
	lastKey map[string]time.Time
	history map[string][]stampedKind
	strikes map[string]int
}

// NewReplayGuard builds a guard. A nil clock defaults to time.Now.
func NewReplayGuard(clock func() time.Time) *ReplayGuard {
	if clock == nil {
		clock = time.Now
	}
	return &ReplayGuard{
		clock:   clock,
		hashes:  make(map[[sha256.Size]byte]hashRecord),
		lastKey: make(map[string]time.Time),
		history: make(map[string][]stampedKind),
	}
}

// Check inspects one action and returns the verdict. The action is appended
// to the player's sequence history whatever the verdict, so sustained abuse
// stays visible even while it is being rejected.
func (g *ReplayGuard) Check(playerID, kind, payload string) Verdict {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock()
	verdict := VerdictOK

	if record, ok := g.hashes[actionHash(playerID, kind, payload, now)]; ok &&
		now.Sub(record.at) <= replayWindow {
		verdict = VerdictReplay
		g.strikes[playerID] = g.strikeCountLocked(playerID) + 1
	}

	if verdict == VerdictOK {
		if last, ok := g.lastKey[dupKey(playerID, kind, payload)]; ok &&
			now.Sub(last) <= duplicateWindow {
			verdict = VerdictDuplicate
		}
	}

	hist := trimHistory(g.history[playerID], now.Add(-historyWindow))
	if verdict == VerdictOK {
		if burstTooDense(hist) || alternationRun(hist, kind) >= alternationThreshold {
			verdict = VerdictAnomaly
		}
	}

	g.history[playerID] = append(hist, stampedKind{kind: kind, at: now})
	return verdict
}

// Commit records an accepted action so later identical submissions are
// caught by the replay and duplicate rules.
func (g *ReplayGuard) Commit(playerID, kind, payload string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.clock()
	g.hashes[actionHash(playerID, kind, payload, now)] = hashRecord{at: now}
	g.lastKey[dupKey(playerID, kind, payload)] = now
}

// Strikes reports the player's accumulated replay strikes.
func (g *ReplayGuard) Strikes(playerID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.strikeCountLocked(playerID)
}

func (g *ReplayGuard) strikeCountLocked(playerID string) int {
	if g.strikes == nil {
		g.strikes = make(map[string]int)
	}
	return g.strikes[playerID]
}

// GC purges accepted-action records older than the retention span and empty
// histories.
func (g *ReplayGuard) GC() {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.clock()
	hashCutoff := now.Add(-hashRetention)
	for h, record := range g.hashes {
		if record.at.Before(hashCutoff) {
			delete(g.hashes, h)
		}
	}
	for key, at := range g.lastKey {
		if at.Before(hashCutoff) {
			delete(g.lastKey, key)
		}
	}
	histCutoff := now.Add(-historyWindow)
	for id, hist := range g.history {
		trimmed := trimHistory(hist, histCutoff)
		if len(trimmed) == 0 {
			delete(g.history, id)
			continue
		}
		g.history[id] = trimmed
	}
}

// Forget drops all state for one player.
func (g *ReplayGuard) Forget(playerID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.history, playerID)
	if g.strikes != nil {
		delete(g.strikes, playerID)
	}
}

// actionHash is the content hash of an action record: player, kind, payload,
// and a second-granularity timestamp.
func actionHash(playerID, kind, payload string, at time.Time) [sha256.Size]byte {
	h := sha256.New()
	h.Write([]byte(playerID))
	h.Write([]byte{'|'})
	h.Write([]byte(kind))
	h.Write([]byte{'|'})
	h.Write([]byte(payload))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.FormatInt(at.Unix(), 10)))
	var sum [sha256.Size]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

func dupKey(playerID, kind, payload string) string {
	return playerID + "|" + kind + "|" + payload
}

func trimHistory(hist []stampedKind, cutoff time.Time) []stampedKind {
	idx := 0
	for idx < len(hist) && hist[idx].at.Before(cutoff) {
		idx++
	}
	if idx == 0 {
		return hist
	}
	remaining := len(hist) - idx
	copy(hist, hist[idx:])
	return hist[:remaining]
}

// burstTooDense reports whether any one-second span of the history holds at
// least burstThreshold actions.
func burstTooDense(hist []stampedKind) bool {
	start := 0
	for end := range hist {
		for hist[end].at.Sub(hist[start].at) > time.Second {
			start++
		}
		if end-start+1 >= burstThreshold {
			return true
		}
	}
	return false
}

// alternationRun counts how long the flag/unflag zigzag would be with the
// candidate kind appended.
func alternationRun(hist []stampedKind, kind string) int {
	if kind != "flag" && kind != "unflag" {
		return 0
	}
	run := 1
	prev := kind
	for i := len(hist) - 1; i >= 0; i-- {
		k := hist[i].kind
		if (k != "flag" && k != "unflag") || k == prev {
			break
		}
		run++
		prev = k
	}
	return run
}
