package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/studyloop/backend/internal/logger"
	"github.com/studyloop/backend/internal/repos"
	"github.com/studyloop/backend/internal/requestdata"
	"github.com/studyloop/backend/internal/types"
	"github.com/studyloop/backend/internal/xp"
)

// CompletableUpdate is the PATCH body shared by every completable entity.
// Name and Position are entity-lifecycle fields and never influence rewards.
type CompletableUpdate struct {
	IsCompleted *bool   `json:"is_completed"`
	Name        *string `json:"name"`
	Position    *int    `json:"position"`
}

// AwardResult reports what one award call granted. Progress is nil when no
// XP was granted, which covers both "already awarded" and "cap exhausted".
type AwardResult struct {
	Granted  int          `json:"xp_awarded"`
	Progress *xp.Progress `json:"progress"`
}

// AwardService is the only writer of xp_awarded flags and, together with the
// sync merger, of user XP. Every method runs as one transaction that locks
// the entity row and the user row it touches, so concurrent calls for the
// same entity serialize and the second one grants zero.
type AwardService interface {
	SetTodoCompletion(ctx context.Context, todoID uuid.UUID, update CompletableUpdate) (AwardResult, error)
	SetPlannerTaskCompletion(ctx context.Context, taskID uuid.UUID, update CompletableUpdate) (AwardResult, error)
	SetLessonCompletion(ctx context.Context, progressID uuid.UUID, update CompletableUpdate) (AwardResult, error)
}

type awardService struct {
	db              *gorm.DB
	log             *logger.Logger
	cfg             RewardConfig
	caps            *CapEnforcer
	userRepo        repos.UserRepo
	todoRepo        repos.TodoRepo
	plannerTaskRepo repos.PlannerTaskRepo
	lessonRepo      repos.LessonProgressRepo
	ledgerRepo      repos.LedgerEventRepo
	cache           RewardsCache
}

func NewAwardService(
	db *gorm.DB,
	log *logger.Logger,
	cfg RewardConfig,
	caps *CapEnforcer,
	userRepo repos.UserRepo,
	todoRepo repos.TodoRepo,
	plannerTaskRepo repos.PlannerTaskRepo,
	lessonRepo repos.LessonProgressRepo,
	ledgerRepo repos.LedgerEventRepo,
	cache RewardsCache,
) AwardService {
	serviceLog := log.With("service", "AwardService")
	return &awardService{
		db:              db,
		log:             serviceLog,
		cfg:             cfg,
		caps:            caps,
		userRepo:        userRepo,
		todoRepo:        todoRepo,
		plannerTaskRepo: plannerTaskRepo,
		lessonRepo:      lessonRepo,
		ledgerRepo:      ledgerRepo,
		cache:           cache,
	}
}

func (as *awardService) SetTodoCompletion(ctx context.Context, todoID uuid.UUID, update CompletableUpdate) (AwardResult, error) {
	userID, err := sessionUserID(ctx)
	if err != nil {
		return AwardResult{}, err
	}

	var result AwardResult
	err = as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		todo, err := as.todoRepo.GetByIDForUpdate(ctx, tx, todoID, userID)
		if err != nil {
			return fmt.Errorf("lock todo: %w", err)
		}
		if todo == nil {
			return ErrNotFound
		}

		fields := map[string]any{}
		if update.Name != nil {
			fields["name"] = *update.Name
		}
		if update.Position != nil {
			fields["position"] = *update.Position
		}

		granted, progress, err := as.applyCompletion(ctx, tx, userID, types.SubjectTodo, todo.ID.String(),
			todo.IsCompleted, todo.XPAwarded, update.IsCompleted, fields)
		if err != nil {
			return err
		}
		if err := as.todoRepo.UpdateFields(ctx, tx, todo.ID, fields); err != nil {
			return fmt.Errorf("update todo: %w", err)
		}
		result = AwardResult{Granted: granted, Progress: progress}
		return nil
	})
	if err != nil {
		return AwardResult{}, err
	}

	as.invalidateRewards(ctx, userID, result.Granted)
	return result, nil
}

func (as *awardService) SetPlannerTaskCompletion(ctx context.Context, taskID uuid.UUID, update CompletableUpdate) (AwardResult, error) {
	userID, err := sessionUserID(ctx)
	if err != nil {
		return AwardResult{}, err
	}

	var result AwardResult
	err = as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := as.plannerTaskRepo.GetByIDForUpdate(ctx, tx, taskID, userID)
		if err != nil {
			return fmt.Errorf("lock planner task: %w", err)
		}
		if task == nil {
			return ErrNotFound
		}

		fields := map[string]any{}
		if update.Name != nil {
			fields["name"] = *update.Name
		}
		if update.Position != nil {
			fields["position"] = *update.Position
		}

		completing := update.IsCompleted != nil && *update.IsCompleted && !task.IsCompleted

		granted, progress, err := as.applyCompletion(ctx, tx, userID, types.SubjectPlannerTask, task.ID.String(),
			task.IsCompleted, task.XPAwarded, update.IsCompleted, fields)
		if err != nil {
			return err
		}
		if err := as.plannerTaskRepo.UpdateFields(ctx, tx, task.ID, fields); err != nil {
			return fmt.Errorf("update planner task: %w", err)
		}

		if completing {
			bonus, bonusProgress, err := as.maybeAwardDayBonus(ctx, tx, userID, task.DayNumber)
			if err != nil {
				return err
			}
			if bonus > 0 {
				granted += bonus
				progress = bonusProgress
			}
		}

		result = AwardResult{Granted: granted, Progress: progress}
		return nil
	})
	if err != nil {
		return AwardResult{}, err
	}

	as.invalidateRewards(ctx, userID, result.Granted)
	return result, nil
}

func (as *awardService) SetLessonCompletion(ctx context.Context, progressID uuid.UUID, update CompletableUpdate) (AwardResult, error) {
	userID, err := sessionUserID(ctx)
	if err != nil {
		return AwardResult{}, err
	}

	var result AwardResult
	err = as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := as.lessonRepo.GetByIDForUpdate(ctx, tx, progressID, userID)
		if err != nil {
			return fmt.Errorf("lock lesson progress: %w", err)
		}
		if row == nil {
			return ErrNotFound
		}

		fields := map[string]any{}
		granted, progress, err := as.applyCompletion(ctx, tx, userID, types.SubjectLesson, row.ID.String(),
			row.IsCompleted, row.XPAwarded, update.IsCompleted, fields)
		if err != nil {
			return err
		}
		if err := as.lessonRepo.UpdateFields(ctx, tx, row.ID, fields); err != nil {
			return fmt.Errorf("update lesson progress: %w", err)
		}
		result = AwardResult{Granted: granted, Progress: progress}
		return nil
	})
	if err != nil {
		return AwardResult{}, err
	}

	as.invalidateRewards(ctx, userID, result.Granted)
	return result, nil
}

// applyCompletion decides the grant for one completable row and stages the
// completion fields. It never grants when the entity was already completed or
// already awarded, and it leaves xp_awarded false when the daily cap eats the
// whole grant, so the entity stays eligible on a later day.
func (as *awardService) applyCompletion(
	ctx context.Context,
	tx *gorm.DB,
	userID uuid.UUID,
	category, subjectID string,
	wasCompleted, wasAwarded bool,
	isCompleted *bool,
	fields map[string]any,
) (int, *xp.Progress, error) {
	if isCompleted == nil {
		return 0, nil, nil
	}

	fields["is_completed"] = *isCompleted
	if !*isCompleted {
		fields["completed_at"] = nil
		return 0, nil, nil
	}

	if wasCompleted || wasAwarded {
		return 0, nil, nil
	}

	// Cap math must run under the user lock: racing grants for different
	// entities of one user would otherwise read the same ledger sum and
	// overshoot the cap together.
	if _, err := as.userRepo.GetByIDForUpdate(ctx, tx, userID); err != nil {
		return 0, nil, fmt.Errorf("lock user: %w", err)
	}

	baseDelta := as.cfg.BaseXP[category]
	granted, err := as.caps.Allowance(ctx, tx, userID, category, baseDelta)
	if err != nil {
		return 0, nil, fmt.Errorf("daily cap: %w", err)
	}
	if granted == 0 {
		return 0, nil, nil
	}

	fields["xp_awarded"] = true
	fields["completed_at"] = time.Now().UTC()

	progress, err := as.grantXP(ctx, tx, userID, granted, category, subjectID)
	if err != nil {
		return 0, nil, err
	}
	return granted, progress, nil
}

// grantXP moves the user aggregate and appends the single xp_awarded ledger
// row, all under the user row lock taken here.
func (as *awardService) grantXP(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount int, subjectType, subjectID string) (*xp.Progress, error) {
	user, err := as.userRepo.GetByIDForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, fmt.Errorf("lock user: %w", err)
	}
	if user == nil {
		return nil, ErrNotFound
	}

	nextXP := user.XP + amount
	newLevel := xp.Level(nextXP)
	if err := as.userRepo.AddXP(ctx, tx, userID, amount, newLevel); err != nil {
		return nil, fmt.Errorf("add xp: %w", err)
	}

	payload := types.LedgerPayload{Amount: amount, TotalXP: nextXP, Subject: subjectType}
	if _, err := as.ledgerRepo.Append(ctx, tx, []*types.LedgerEvent{{
		UserID:      userID,
		SubjectType: subjectType,
		SubjectID:   subjectID,
		Action:      types.LedgerActionXPAwarded,
		Payload:     payload.JSON(),
	}}); err != nil {
		return nil, fmt.Errorf("append ledger: %w", err)
	}

	if newLevel > user.Level {
		rewardPayload := types.LedgerPayload{
			Key:   fmt.Sprintf("level_%d", newLevel),
			Label: fmt.Sprintf("Reached level %d", newLevel),
			Type:  "level",
		}
		if _, err := as.ledgerRepo.Append(ctx, tx, []*types.LedgerEvent{{
			UserID:      userID,
			SubjectType: subjectType,
			SubjectID:   subjectID,
			Action:      types.LedgerActionReward,
			Payload:     rewardPayload.JSON(),
		}}); err != nil {
			return nil, fmt.Errorf("append reward: %w", err)
		}
		as.log.Info("User leveled up", "user_id", userID, "level", newLevel)
	}

	progress := xp.ProgressAt(nextXP)
	return &progress, nil
}

// maybeAwardDayBonus grants the once-per-day study-plan bonus. The user row
// lock serializes racing transactions, so the existence check on the
// day_completed marker sees any winner that committed or is committing first.
func (as *awardService) maybeAwardDayBonus(ctx context.Context, tx *gorm.DB, userID uuid.UUID, dayNumber int) (int, *xp.Progress, error) {
	if _, err := as.userRepo.GetByIDForUpdate(ctx, tx, userID); err != nil {
		return 0, nil, fmt.Errorf("lock user: %w", err)
	}

	remaining, err := as.plannerTaskRepo.CountIncompleteForDay(ctx, tx, userID, dayNumber)
	if err != nil {
		return 0, nil, fmt.Errorf("count day tasks: %w", err)
	}
	if remaining > 0 {
		return 0, nil, nil
	}

	inserted, err := as.ledgerRepo.InsertDayCompletedIfAbsent(ctx, tx, userID, dayNumber, types.LedgerPayload{
		Label: fmt.Sprintf("Day %d completed", dayNumber),
	})
	if err != nil {
		return 0, nil, fmt.Errorf("day completed marker: %w", err)
	}
	if !inserted {
		return 0, nil, nil
	}

	bonus := as.cfg.DayBonusXP
	if bonus <= 0 {
		return 0, nil, nil
	}
	progress, err := as.grantXP(ctx, tx, userID, bonus, types.SubjectDay, strconv.Itoa(dayNumber))
	if err != nil {
		return 0, nil, err
	}
	as.log.Info("Day bonus awarded", "user_id", userID, "day_number", dayNumber, "bonus", bonus)
	return bonus, progress, nil
}

func (as *awardService) invalidateRewards(ctx context.Context, userID uuid.UUID, granted int) {
	if granted <= 0 || as.cache == nil {
		return
	}
	as.cache.Invalidate(ctx, userID)
}

func sessionUserID(ctx context.Context) (uuid.UUID, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return uuid.Nil, ErrNoSession
	}
	return rd.UserID, nil
}
