// Package proto defines the wire protocol: the topic envelope shared by both
// directions and the typed payloads behind every topic.
package proto

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fed135/mine-land/internal/grid"
	"github.com/fed135/mine-land/internal/player"
)

// Version tracks the wire-protocol revision expected by clients.
const Version = 1

// Inbound topics.
const (
	TopicPreferences = "player-preferences"
	TopicAction      = "player-action"
	TopicDashboard   = "security-dashboard"
	TopicDisconnect  = "disconnect"
)

// Outbound topics.
const (
	TopicSessionAssigned = "session-assigned"
	TopicWelcome         = "welcome"
	TopicViewport        = "viewport-update"
	TopicPlayerUpdate    = "player-update"
	TopicTileUpdate      = "tile-update"
	TopicLeaderboard     = "leaderboard-update"
	TopicExplosion       = "explosion"
	TopicPlayerDeath     = "player-death"
	TopicGameEnd         = "game-end"
	TopicActionRejected  = "action-rejected"
)

// ErrEmptyTopic marks an envelope without a routable topic.
var ErrEmptyTopic = errors.New("proto: empty topic")

// Envelope is the frame wrapper in both directions.
type Envelope struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// DecodeEnvelope parses one inbound frame.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("proto: decode envelope: %w", err)
	}
	if strings.TrimSpace(env.Topic) == "" {
		return Envelope{}, ErrEmptyTopic
	}
	return env, nil
}

// Encode renders one outbound frame.
func Encode(topic string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("proto: encode %s payload: %w", topic, err)
	}
	return json.Marshal(Envelope{Topic: topic, Payload: raw})
}

// Preferences is the welcome/reconnect request. Color accepts either an HSL
// string or a bare hue number, so it stays raw until normalization.
type Preferences struct {
	Name         string          `json:"name"`
	Color        json.RawMessage `json:"color,omitempty"`
	SessionID    string          `json:"sessionId,omitempty"`
	SessionToken string          `json:"sessionToken,omitempty"`
}

// DecodePreferences parses a player-preferences payload.
func DecodePreferences(raw json.RawMessage) (Preferences, error) {
	var prefs Preferences
	if err := json.Unmarshal(raw, &prefs); err != nil {
		return Preferences{}, fmt.Errorf("proto: decode preferences: %w", err)
	}
	return prefs, nil
}

// ActionRequest is one player-action payload.
type ActionRequest struct {
	Action         string `json:"action"`
	X              int    `json:"x"`
	Y              int    `json:"y"`
	SessionID      string `json:"sessionId,omitempty"`
	SessionToken   string `json:"sessionToken,omitempty"`
	ViewportWidth  int    `json:"viewportWidth,omitempty"`
	ViewportHeight int    `json:"viewportHeight,omitempty"`
}

// DecodeAction parses a player-action payload.
func DecodeAction(raw json.RawMessage) (ActionRequest, error) {
	var req ActionRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return ActionRequest{}, fmt.Errorf("proto: decode action: %w", err)
	}
	if strings.TrimSpace(req.Action) == "" {
		return ActionRequest{}, errors.New("proto: action without kind")
	}
	return req, nil
}

// DashboardRequest is the operator dashboard payload, gated by the admin key.
type DashboardRequest struct {
	AdminKey string `json:"adminKey"`
	Command  string `json:"command,omitempty"`
	PlayerID string `json:"playerId,omitempty"`
}

// DecodeDashboard parses a security-dashboard payload.
func DecodeDashboard(raw json.RawMessage) (DashboardRequest, error) {
	var req DashboardRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return DashboardRequest{}, fmt.Errorf("proto: decode dashboard: %w", err)
	}
	return req, nil
}

// SessionAssigned echoes the credentials a client must attach to actions.
type SessionAssigned struct {
	SessionID      string `json:"sessionId"`
	SessionToken   string `json:"sessionToken"`
	IsReconnection bool   `json:"isReconnection"`
}

// GameState is the match summary inside a welcome. MinesRemaining carries the
// flagged-progress percentage, never the raw count.
type GameState struct {
	StartTime      int64 `json:"startTime"`
	Ended          bool  `json:"ended"`
	MinesRemaining int   `json:"minesRemaining"`
}

// ViewportPayload is the sanitized window around one player.
type ViewportPayload struct {
	Tiles   []TileView      `json:"tiles"`
	Players []player.Public `json:"players"`
}

// Welcome is the unicast answer to player-preferences.
type Welcome struct {
	PlayerID  string          `json:"playerId"`
	Player    player.Public   `json:"player"`
	GameState GameState       `json:"gameState"`
	Viewport  ViewportPayload `json:"viewport"`
}

// ViewportUpdate refreshes one player's window after an accepted action.
type ViewportUpdate struct {
	TargetPlayerID string          `json:"targetPlayerId"`
	Tiles          []TileView      `json:"tiles"`
	Players        []player.Public `json:"players"`
}

// PlayerUpdate broadcasts one player's public state.
type PlayerUpdate struct {
	Player player.Public `json:"player"`
}

// TileUpdate is the lightweight broadcast for one changed tile. Observers
// refresh tile contents through their own viewport materializations.
type TileUpdate struct {
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Action    string `json:"action"`
	PlayerID  string `json:"playerId"`
	Timestamp int64  `json:"timestamp"`
}

// LeaderboardEntry is one scored row, filtered to score>0 server-side.
type LeaderboardEntry struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Score    int    `json:"score"`
	Flags    int    `json:"flags"`
	Alive    bool   `json:"alive"`
	Color    string `json:"color"`
}

// LeaderboardUpdate broadcasts the current ranking.
type LeaderboardUpdate struct {
	Players []LeaderboardEntry `json:"players"`
}

// ExplosionEvent broadcasts one detonation with its blast footprint.
type ExplosionEvent struct {
	X             int        `json:"x"`
	Y             int        `json:"y"`
	AffectedTiles []TileView `json:"affectedTiles"`
	KilledPlayers []string   `json:"killedPlayers"`
}

// PlayerDeath broadcasts one casualty with a UI delay hint in milliseconds.
type PlayerDeath struct {
	PlayerID string `json:"playerId"`
	Reason   string `json:"reason"`
	Delay    int    `json:"delay"`
}

// GameEnd broadcasts the end of the match.
type GameEnd struct {
	Reason    string `json:"reason"`
	Timestamp int64  `json:"timestamp"`
}

// ActionRejected is unicast for security and authorization rejections only;
// rule rejections stay silent.
type ActionRejected struct {
	Action   string `json:"action"`
	Reason   string `json:"reason"`
	Severity string `json:"severity"`
}

// TileView is the sanitized projection of one tile. Kind, number, and the
// exploded marker are only present once the tile is revealed.
type TileView struct {
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Revealed  bool   `json:"revealed"`
	Flagged   bool   `json:"flagged,omitempty"`
	FlaggedBy string `json:"flaggedBy,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Number    int    `json:"number,omitempty"`
	Exploded  bool   `json:"exploded,omitempty"`
}

// RevealedTileView projects a revealed tile with its full contents.
func RevealedTileView(p grid.Pos, t *grid.Tile) TileView {
	view := TileView{
		X:        p.X,
		Y:        p.Y,
		Revealed: true,
		Kind:     t.Kind.String(),
		Exploded: t.Exploded,
	}
	if t.Kind == grid.KindNumbered {
		view.Number = int(t.Number)
	}
	return view
}

// CoveredTileView projects an unrevealed tile, suppressing its contents. Flag
// state is public information.
func CoveredTileView(p grid.Pos, t *grid.Tile) TileView {
	return TileView{
		X:         p.X,
		Y:         p.Y,
		Flagged:   t.Flagged,
		FlaggedBy: t.FlaggedBy,
	}
}

const (
	defaultHue       = 200
	maxUsernameRunes = 12
)

// CleanUsername trims, strips control characters, and truncates to the
// published 12-character limit. An unusable name falls back to "miner".
func CleanUsername(raw string) string {
	var b strings.Builder
	runes := 0
	for _, r := range strings.TrimSpace(raw) {
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
		runes++
		if runes >= maxUsernameRunes {
			break
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return "miner"
	}
	return cleaned
}

// NormalizeColor accepts an HSL string or a bare 0..360 hue and always
// returns an HSL string.
func NormalizeColor(raw json.RawMessage) string {
	fallback := hslFromHue(defaultHue)
	if len(raw) == 0 {
		return fallback
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		asString = strings.TrimSpace(asString)
		if strings.HasPrefix(asString, "hsl(") && strings.HasSuffix(asString, ")") && len(asString) <= 32 {
			return asString
		}
		if hue, err := strconv.ParseFloat(asString, 64); err == nil {
			return hslFromHue(clampHue(hue))
		}
		return fallback
	}

	var asNumber float64
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return hslFromHue(clampHue(asNumber))
	}
	return fallback
}

func clampHue(hue float64) int {
	if hue < 0 || hue > 360 {
		return defaultHue
	}
	return int(hue)
}

func hslFromHue(hue int) string {
	return fmt.Sprintf("hsl(%d, 70%%, 55%%)", hue)
}
