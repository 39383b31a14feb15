package game

import "time"

const (
	// StartingFlags is the flag inventory every fresh player receives.
	StartingFlags = 3
	// FlagTokenGrant is how many flags a collected flag token yields.
	FlagTokenGrant = 2
	// RevealScore is the score for flipping a safe tile or a flag token.
	RevealScore = 1
	// MineFlagScore is the score for correctly flagging a mine.
	MineFlagScore = 3

	// ExplosionRadius bounds both the blast footprint (dx²+dy²≤R²) and the
	// Euclidean kill radius.
	ExplosionRadius = 3
	// ChainDelay is the fuse between a blast sealing a mine and that mine's
	// own detonation.
	ChainDelay = 100 * time.Millisecond
	// DeathNoticeDelayMillis is the UI delay hint attached to player-death
	// broadcasts.
	DeathNoticeDelayMillis = 1500

	// SessionMaxAge is the absolute session lifetime.
	SessionMaxAge = 24 * time.Hour
	// SessionIdleTimeout evicts players whose session saw no validated
	// action for this long.
	SessionIdleTimeout = 30 * time.Second
	// SweepInterval is how often the idle sweeper runs.
	SweepInterval = 10 * time.Second
	// GuardGCInterval is how often the limiter and replay guard purge old
	// records.
	GuardGCInterval = time.Minute
)

// Game-end reasons.
const (
	EndReasonCleared = "all_mines_cleared"
	EndReasonReset   = "world_reset"
)

// Death reasons.
const DeathReasonExplosion = "explosion"
