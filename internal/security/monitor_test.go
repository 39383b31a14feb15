package security

import (
	"fmt"
	"testing"
	"time"
)

func TestLowSeverityCarriesNoRisk(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := NewMonitor(false, clock.Now)

	for i := 0; i < 20; i++ {
		if m.RecordRejection("p1", "flip", "duplicate", "low") {
			t.Fatalf("low severity must never cross the threshold")
		}
	}
	if m.RiskScore("p1") != 0 {
		t.Fatalf("low severity must not raise risk, got %d", m.RiskScore("p1"))
	}
}

func TestHighSeverityAccumulatesRisk(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := NewMonitor(false, clock.Now)

	for i := 0; i < DefaultBanThreshold+5; i++ {
		if m.RecordRejection("p1", "flip", "replay", "high") {
			t.Fatalf("auto-ban is off, nothing crosses")
		}
	}
	if m.RiskScore("p1") != DefaultBanThreshold+5 {
		t.Fatalf("unexpected risk: %d", m.RiskScore("p1"))
	}
	if m.IsBanned("p1") {
		t.Fatalf("auto-ban off must never ban")
	}
}

func TestAutoBanCrossesOnce(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := NewMonitor(true, clock.Now)

	for i := 0; i < DefaultBanThreshold-1; i++ {
		if m.RecordRejection("p1", "flip", "replay", "high") {
			t.Fatalf("rejection %d must not cross yet", i+1)
		}
	}
	if !m.RecordRejection("p1", "flip", "replay", "high") {
		t.Fatalf("rejection %d must cross the threshold", DefaultBanThreshold)
	}
	if !m.IsBanned("p1") {
		t.Fatalf("crossing must place the player in the ban set")
	}
	// Further rejections report no new crossing.
	if m.RecordRejection("p1", "flip", "replay", "high") {
		t.Fatalf("already banned, nothing to cross")
	}
}

func TestBanAndFlagAreIdempotent(t *testing.T) {
	m := NewMonitor(false, nil)

	if !m.Ban("p1") {
		t.Fatalf("first ban must report new")
	}
	if m.Ban("p1") {
		t.Fatalf("second ban must report existing")
	}
	if !m.Flag("p2") {
		t.Fatalf("first flag must report new")
	}
	if m.Flag("p2") {
		t.Fatalf("second flag must report existing")
	}
}

func TestViewIsSortedAndCopied(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := NewMonitor(false, clock.Now)
	m.Ban("zeta")
	m.Ban("alpha")
	m.Flag("mid")
	m.RecordRejection("alpha", "move", "rate_limited", "medium")

	snap := m.View()
	if len(snap.Banned) != 2 || snap.Banned[0] != "alpha" || snap.Banned[1] != "zeta" {
		t.Fatalf("banned set must be sorted: %v", snap.Banned)
	}
	if len(snap.Flagged) != 1 || snap.Flagged[0] != "mid" {
		t.Fatalf("unexpected flagged set: %v", snap.Flagged)
	}
	if len(snap.Incidents) != 1 || snap.Incidents[0].Reason != "rate_limited" {
		t.Fatalf("unexpected incidents: %+v", snap.Incidents)
	}

	// Mutating the snapshot must not touch the monitor.
	snap.Incidents[0].Reason = "edited"
	if got := m.View().Incidents[0].Reason; got != "rate_limited" {
		t.Fatalf("snapshot must be a copy, monitor now holds %q", got)
	}
}

func TestIncidentFeedIsBounded(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := NewMonitor(false, clock.Now)

	for i := 0; i < incidentLimit+25; i++ {
		m.RecordRejection(fmt.Sprintf("p%d", i), "flip", "duplicate", "low")
		clock.advance(time.Millisecond)
	}
	snap := m.View()
	if len(snap.Incidents) != incidentLimit {
		t.Fatalf("feed must hold %d incidents, got %d", incidentLimit, len(snap.Incidents))
	}
	if snap.Incidents[0].PlayerID != "p25" {
		t.Fatalf("oldest incidents must be dropped first, head is %s", snap.Incidents[0].PlayerID)
	}
}
