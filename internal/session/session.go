package session

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"
)

var (
	// ErrUnknown means the session id was never issued or already evicted.
	ErrUnknown = errors.New("session: unknown session")
	// ErrExpired means the session passed its absolute lifetime.
	ErrExpired = errors.New("session: expired")
	// ErrMismatch means the session binds a different player id.
	ErrMismatch = errors.New("session: player mismatch")
	// ErrToken means the presented token failed verification.
	ErrToken = errors.New("session: token mismatch")
)

// Session binds one player id to one signed token for its whole lifetime.
type Session struct {
	ID         string
	PlayerID   string
	Username   string
	Token      string
	CreatedAt  time.Time
	LastActive time.Time
	ExpiresAt  time.Time
}

// Manager issues and verifies sessions. It has its own mutex: per §5 of the
// concurrency discipline it is never read during grid mutation, so it does
// not ride on the world lock.
type Manager struct {
	mu        sync.Mutex
	secret    []byte
	clock     func() time.Time
	maxAge    time.Duration
	idleAfter time.Duration
	sessions  map[string]*Session
	byPlayer  map[string]string
}

// NewManager builds a manager around the process-wide secret. A nil clock
// defaults to time.Now.
func NewManager(secret []byte, maxAge, idleAfter time.Duration, clock func() time.Time) *Manager {
	if clock == nil {
		clock = time.Now
	}
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	if idleAfter <= 0 {
		idleAfter = 30 * time.Second
	}
	return &Manager{
		secret:    secret,
		clock:     clock,
		maxAge:    maxAge,
		idleAfter: idleAfter,
		sessions:  make(map[string]*Session),
		byPlayer:  make(map[string]string),
	}
}

// Create issues a fresh session for the player, replacing any prior one.
func (m *Manager) Create(playerID, username string) (Session, error) {
	idBytes := make([]byte, 16)
	if _, err := rand.Read(idBytes); err != nil {
		return Session{}, fmt.Errorf("generate session id: %w", err)
	}
	id := hex.EncodeToString(idBytes)

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	s := &Session{
		ID:         id,
		PlayerID:   playerID,
		Username:   username,
		Token:      m.sign(id, playerID, username, now),
		CreatedAt:  now,
		LastActive: now,
		ExpiresAt:  now.Add(m.maxAge),
	}
	if old, ok := m.byPlayer[playerID]; ok {
		delete(m.sessions, old)
	}
	m.sessions[id] = s
	m.byPlayer[playerID] = id
	return *s, nil
}

// Validate checks existence, absolute expiry, idle expiry, the token, and
// the player binding, in that order, failing closed on any mismatch. Success
// bumps the session's last-activity.
func (m *Manager) Validate(sessionID, token, wantPlayerID string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return Session{}, ErrUnknown
	}
	now := m.clock()
	if now.After(s.ExpiresAt) || now.Sub(s.LastActive) > m.idleAfter {
		m.dropLocked(s)
		return Session{}, ErrExpired
	}
	if !m.tokensEqual(token, s.Token) {
		return Session{}, ErrToken
	}
	if wantPlayerID != "" && s.PlayerID != wantPlayerID {
		return Session{}, ErrMismatch
	}
	s.LastActive = now
	return *s, nil
}

// Resume is the reconnect path: it verifies the session without a player
// claim and returns the bound record so the caller can restore identity.
func (m *Manager) Resume(sessionID, token string) (Session, error) {
	return m.Validate(sessionID, token, "")
}

// Get returns the session without touching last-activity.
func (m *Manager) Get(sessionID string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// InvalidateByPlayer drops every session bound to the player. Used at ban
// and at eviction.
func (m *Manager) InvalidateByPlayer(playerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byPlayer[playerID]; ok {
		delete(m.sessions, id)
		delete(m.byPlayer, playerID)
	}
}

// SweepIdle removes sessions idle longer than the manager's idle timeout or
// past their absolute expiry, returning the removed records so the caller can
// evict the bound players.
func (m *Manager) SweepIdle() []Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	var evicted []Session
	for _, s := range m.sessions {
		if now.Sub(s.LastActive) > m.idleAfter || now.After(s.ExpiresAt) {
			evicted = append(evicted, *s)
		}
	}
	for _, s := range evicted {
		if live, ok := m.sessions[s.ID]; ok {
			m.dropLocked(live)
		}
	}
	return evicted
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) dropLocked(s *Session) {
	delete(m.sessions, s.ID)
	if m.byPlayer[s.PlayerID] == s.ID {
		delete(m.byPlayer, s.PlayerID)
	}
}

// sign computes the token: HMAC-SHA256 over the concatenation of session id,
// player id, username, and creation time in unix nanoseconds.
func (m *Manager) sign(id, playerID, username string, createdAt time.Time) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(id))
	mac.Write([]byte(playerID))
	mac.Write([]byte(username))
	mac.Write([]byte(strconv.FormatInt(createdAt.UnixNano(), 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// tokensEqual compares tokens in constant time regardless of length: both
// sides are mapped through HMAC first, so a short candidate cannot leak the
// expected length through an early exit.
func (m *Manager) tokensEqual(presented, expected string) bool {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(presented))
	a := mac.Sum(nil)

	mac = hmac.New(sha256.New, m.secret)
	mac.Write([]byte(expected))
	b := mac.Sum(nil)

	return hmac.Equal(a, b)
}
