package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/studyloop/backend/internal/logger"
	"github.com/studyloop/backend/internal/repos"
	"github.com/studyloop/backend/internal/types"
	"github.com/studyloop/backend/internal/xp"
)

// streakLookbackDays bounds the ledger scan for streak derivation. A streak
// longer than this window reports the window length.
const streakLookbackDays = 40

const rewardsCacheTTL = 60 * time.Second

// Achievement is the current state of one badge/chest, derived from the
// newest ledger reward row per key.
type Achievement struct {
	Key      string    `json:"key"`
	Label    string    `json:"label"`
	Type     string    `json:"type"`
	EarnedAt time.Time `json:"earned_at"`
}

// RewardsService derives achievements, day streaks and level progress from
// the ledger and the user aggregate. It never mutates state.
type RewardsService interface {
	Achievements(ctx context.Context) ([]Achievement, error)
	Streak(ctx context.Context) (int, error)
	LevelProgress(ctx context.Context) (xp.Progress, error)
}

type rewardsService struct {
	db         *gorm.DB
	log        *logger.Logger
	ledgerRepo repos.LedgerEventRepo
	userRepo   repos.UserRepo
	cache      RewardsCache
}

func NewRewardsService(db *gorm.DB, log *logger.Logger, ledgerRepo repos.LedgerEventRepo, userRepo repos.UserRepo, cache RewardsCache) RewardsService {
	serviceLog := log.With("service", "RewardsService")
	return &rewardsService{
		db:         db,
		log:        serviceLog,
		ledgerRepo: ledgerRepo,
		userRepo:   userRepo,
		cache:      cache,
	}
}

func (rs *rewardsService) Achievements(ctx context.Context) ([]Achievement, error) {
	userID, err := sessionUserID(ctx)
	if err != nil {
		return nil, err
	}

	var cached []Achievement
	if rs.cache != nil && rs.cache.GetJSON(ctx, achievementsCacheKey(userID), &cached) {
		return cached, nil
	}

	rows, err := rs.ledgerRepo.ListByUserAndAction(ctx, nil, userID, types.LedgerActionReward, 0)
	if err != nil {
		return nil, fmt.Errorf("list reward events: %w", err)
	}

	achievements := dedupeAchievements(rows)

	if rs.cache != nil {
		rs.cache.SetJSON(ctx, achievementsCacheKey(userID), achievements, rewardsCacheTTL)
	}
	return achievements, nil
}

func (rs *rewardsService) Streak(ctx context.Context) (int, error) {
	userID, err := sessionUserID(ctx)
	if err != nil {
		return 0, err
	}

	var cached int
	if rs.cache != nil && rs.cache.GetJSON(ctx, streakCacheKey(userID), &cached) {
		return cached, nil
	}

	since := time.Now().AddDate(0, 0, -streakLookbackDays)
	days, today, err := rs.ledgerRepo.DistinctAwardDaysSince(ctx, nil, userID, since)
	if err != nil {
		return 0, fmt.Errorf("list award days: %w", err)
	}

	streak := streakLength(today, days)

	if rs.cache != nil {
		rs.cache.SetJSON(ctx, streakCacheKey(userID), streak, rewardsCacheTTL)
	}
	return streak, nil
}

func (rs *rewardsService) LevelProgress(ctx context.Context) (xp.Progress, error) {
	userID, err := sessionUserID(ctx)
	if err != nil {
		return xp.Progress{}, err
	}

	users, err := rs.userRepo.GetByIDs(ctx, nil, []uuid.UUID{userID})
	if err != nil {
		return xp.Progress{}, fmt.Errorf("get user: %w", err)
	}
	if len(users) == 0 || users[0] == nil {
		return xp.Progress{}, ErrNotFound
	}
	return xp.ProgressAt(users[0].XP), nil
}

// dedupeAchievements keeps the newest row per achievement key. Rows arrive
// newest-first, so the first occurrence of a key wins.
func dedupeAchievements(rows []*types.LedgerEvent) []Achievement {
	achievements := []Achievement{}
	seen := map[string]struct{}{}
	for _, row := range rows {
		payload, err := row.DecodePayload()
		if err != nil {
			continue
		}
		key := payload.Key
		if key == "" {
			key = payload.Type + ":" + payload.Label
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		achievements = append(achievements, Achievement{
			Key:      key,
			Label:    payload.Label,
			Type:     payload.Type,
			EarnedAt: row.CreatedAt,
		})
	}
	return achievements
}

// streakLength walks backward from today counting consecutive calendar days
// with at least one award, stopping at the first gap. Both inputs are
// YYYY-MM-DD keys from the same clock.
func streakLength(today string, awardDays []string) int {
	present := map[string]struct{}{}
	for _, day := range awardDays {
		present[day] = struct{}{}
	}

	cursor, err := time.Parse("2006-01-02", today)
	if err != nil {
		return 0
	}
	streak := 0
	for i := 0; i <= streakLookbackDays; i++ {
		if _, ok := present[cursor.Format("2006-01-02")]; !ok {
			break
		}
		streak++
		cursor = cursor.AddDate(0, 0, -1)
	}
	return streak
}
