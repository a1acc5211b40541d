package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/studyloop/backend/internal/types"
)

func TestLoadRewardConfig_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadRewardConfig("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BaseXP[types.SubjectTodo] != 2 {
		t.Fatalf("expected default base_xp 2, got %d", cfg.BaseXP[types.SubjectTodo])
	}
	if cfg.DailyCap[types.SubjectLesson] != 200 {
		t.Fatalf("expected default daily_cap 200, got %d", cfg.DailyCap[types.SubjectLesson])
	}
	if cfg.DayBonusXP != 10 {
		t.Fatalf("expected default day bonus 10, got %d", cfg.DayBonusXP)
	}
}

func TestLoadRewardConfig_OverrideMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rewards.yaml")
	raw := []byte("base_xp:\n  todo: 5\ndaily_cap:\n  lesson: 50\nday_bonus_xp: 25\n")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadRewardConfig(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BaseXP[types.SubjectTodo] != 5 {
		t.Fatalf("override base_xp not applied: %d", cfg.BaseXP[types.SubjectTodo])
	}
	if cfg.BaseXP[types.SubjectLesson] != 2 {
		t.Fatalf("untouched default changed: %d", cfg.BaseXP[types.SubjectLesson])
	}
	if cfg.DailyCap[types.SubjectLesson] != 50 {
		t.Fatalf("override daily_cap not applied: %d", cfg.DailyCap[types.SubjectLesson])
	}
	if cfg.DayBonusXP != 25 {
		t.Fatalf("override day bonus not applied: %d", cfg.DayBonusXP)
	}
}

func TestLoadRewardConfig_RejectsNegativeValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rewards.yaml")
	if err := os.WriteFile(path, []byte("base_xp:\n  todo: -1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadRewardConfig(path, nil); err == nil {
		t.Fatalf("expected error for negative base_xp")
	}
}

func TestLoadRewardConfig_MissingFile(t *testing.T) {
	if _, err := LoadRewardConfig("/nonexistent/rewards.yaml", nil); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
