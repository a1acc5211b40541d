package services

import (
	"testing"
	"time"

	"github.com/studyloop/backend/internal/types"
)

func rewardRow(key, label, kind string, createdAt time.Time) *types.LedgerEvent {
	payload := types.LedgerPayload{Key: key, Label: label, Type: kind}
	return &types.LedgerEvent{
		SubjectType: types.SubjectDay,
		Action:      types.LedgerActionReward,
		Payload:     payload.JSON(),
		CreatedAt:   createdAt,
	}
}

func TestDedupeAchievements_NewestRowPerKeyWins(t *testing.T) {
	now := time.Now()
	rows := []*types.LedgerEvent{
		rewardRow("streak_7", "7 day streak", "badge", now),
		rewardRow("level_5", "Reached level 5", "badge", now.Add(-time.Hour)),
		rewardRow("streak_7", "7 day streak", "badge", now.Add(-48*time.Hour)),
	}

	achievements := dedupeAchievements(rows)
	if len(achievements) != 2 {
		t.Fatalf("expected 2 achievements, got %d", len(achievements))
	}
	if achievements[0].Key != "streak_7" || !achievements[0].EarnedAt.Equal(now) {
		t.Fatalf("expected newest streak_7 row first, got %+v", achievements[0])
	}
	if achievements[1].Key != "level_5" {
		t.Fatalf("expected level_5 second, got %+v", achievements[1])
	}
}

func TestDedupeAchievements_FallsBackToTypeAndLabel(t *testing.T) {
	now := time.Now()
	rows := []*types.LedgerEvent{
		rewardRow("", "Golden chest", "chest", now),
		rewardRow("", "Golden chest", "chest", now.Add(-time.Hour)),
		rewardRow("", "Silver chest", "chest", now.Add(-time.Hour)),
	}

	achievements := dedupeAchievements(rows)
	if len(achievements) != 2 {
		t.Fatalf("expected 2 achievements, got %d", len(achievements))
	}
	if achievements[0].Key != "chest:Golden chest" {
		t.Fatalf("unexpected fallback key %q", achievements[0].Key)
	}
}

func TestDedupeAchievements_SkipsCorruptPayloads(t *testing.T) {
	rows := []*types.LedgerEvent{
		{Action: types.LedgerActionReward, Payload: []byte(`{not json`)},
		rewardRow("k", "Label", "badge", time.Now()),
	}
	achievements := dedupeAchievements(rows)
	if len(achievements) != 1 || achievements[0].Key != "k" {
		t.Fatalf("expected single valid achievement, got %+v", achievements)
	}
}

func TestStreakLength_CountsBackFromToday(t *testing.T) {
	days := []string{
		"2026-03-10",
		"2026-03-09",
		"2026-03-08",
		// gap on the 7th
		"2026-03-06",
	}
	if got := streakLength("2026-03-10", days); got != 3 {
		t.Fatalf("expected streak 3, got %d", got)
	}
}

func TestStreakLength_ZeroWithoutAwardToday(t *testing.T) {
	days := []string{"2026-03-09", "2026-03-08"}
	if got := streakLength("2026-03-10", days); got != 0 {
		t.Fatalf("expected streak 0, got %d", got)
	}
}

func TestStreakLength_CrossesMonthBoundary(t *testing.T) {
	days := []string{"2026-03-01", "2026-02-28", "2026-02-27"}
	if got := streakLength("2026-03-01", days); got != 3 {
		t.Fatalf("expected streak 3 across month boundary, got %d", got)
	}
}

func TestStreakLength_EmptyLedger(t *testing.T) {
	if got := streakLength("2026-03-10", nil); got != 0 {
		t.Fatalf("expected streak 0, got %d", got)
	}
	if got := streakLength("garbage", []string{"2026-03-10"}); got != 0 {
		t.Fatalf("expected streak 0 for unparseable today, got %d", got)
	}
}
