package services

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/studyloop/backend/internal/logger"
	"github.com/studyloop/backend/internal/repos"
)

// CapEnforcer computes how much of a proposed XP grant fits under the
// category's daily cap. It only reads the ledger; callers decide what to do
// with the clamped amount.
type CapEnforcer struct {
	cfg        RewardConfig
	ledgerRepo repos.LedgerEventRepo
	log        *logger.Logger
}

func NewCapEnforcer(cfg RewardConfig, ledgerRepo repos.LedgerEventRepo, log *logger.Logger) *CapEnforcer {
	return &CapEnforcer{cfg: cfg, ledgerRepo: ledgerRepo, log: log.With("component", "CapEnforcer")}
}

// Allowance returns the portion of delta grantable today for (user, category).
// A category without a configured cap is unlimited.
func (ce *CapEnforcer) Allowance(ctx context.Context, tx *gorm.DB, userID uuid.UUID, category string, delta int) (int, error) {
	if delta <= 0 {
		return 0, nil
	}
	cap, ok := ce.cfg.DailyCap[category]
	if !ok {
		return delta, nil
	}

	sumToday, err := ce.ledgerRepo.SumAwardedToday(ctx, tx, userID, category)
	if err != nil {
		return 0, err
	}
	granted := grantWithinCap(delta, cap, sumToday)
	if granted < delta {
		ce.log.Debug("Daily cap clamped grant", "category", category, "delta", delta, "granted", granted, "sum_today", sumToday)
	}
	return granted, nil
}

// grantWithinCap clamps delta into [0, cap-sumToday].
func grantWithinCap(delta, cap, sumToday int) int {
	remaining := cap - sumToday
	if remaining < 0 {
		remaining = 0
	}
	if delta < 0 {
		delta = 0
	}
	if delta > remaining {
		return remaining
	}
	return delta
}
