package services

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/studyloop/backend/internal/logger"
	"github.com/studyloop/backend/internal/types"
)

// RewardConfig tunes XP amounts and per-category daily caps. Values ship with
// defaults and can be overridden from a YAML file (REWARDS_CONFIG_PATH).
type RewardConfig struct {
	// BaseXP is the fixed grant per completed entity, keyed by reward category.
	BaseXP map[string]int `yaml:"base_xp"`
	// DailyCap bounds XP grantable per category per server-local calendar day.
	DailyCap map[string]int `yaml:"daily_cap"`
	// DayBonusXP is granted once per study-plan day when its last task
	// completes. Not subject to category caps.
	DayBonusXP int `yaml:"day_bonus_xp"`
}

func DefaultRewardConfig() RewardConfig {
	return RewardConfig{
		BaseXP: map[string]int{
			types.SubjectTodo:        2,
			types.SubjectPlannerTask: 2,
			types.SubjectLesson:      2,
		},
		DailyCap: map[string]int{
			types.SubjectTodo:        200,
			types.SubjectPlannerTask: 200,
			types.SubjectLesson:      200,
		},
		DayBonusXP: 10,
	}
}

// LoadRewardConfig merges a YAML override file over the defaults. An empty
// path returns the defaults unchanged.
func LoadRewardConfig(path string, log *logger.Logger) (RewardConfig, error) {
	cfg := DefaultRewardConfig()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read rewards config: %w", err)
	}

	var override RewardConfig
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return cfg, fmt.Errorf("parse rewards config: %w", err)
	}

	for category, amount := range override.BaseXP {
		if amount < 0 {
			return cfg, fmt.Errorf("rewards config: negative base_xp for %q", category)
		}
		cfg.BaseXP[category] = amount
	}
	for category, cap := range override.DailyCap {
		if cap < 0 {
			return cfg, fmt.Errorf("rewards config: negative daily_cap for %q", category)
		}
		cfg.DailyCap[category] = cap
	}
	if override.DayBonusXP > 0 {
		cfg.DayBonusXP = override.DayBonusXP
	}

	if log != nil {
		log.Info("Loaded rewards config override", "path", path)
	}
	return cfg, nil
}
