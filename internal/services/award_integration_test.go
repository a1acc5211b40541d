package services

import (
	"errors"
	"testing"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/studyloop/backend/internal/repos"
	"github.com/studyloop/backend/internal/repos/testutil"
	"github.com/studyloop/backend/internal/types"
)

func newAwardServiceForTest(t *testing.T, db *gorm.DB, cfg RewardConfig) AwardService {
	t.Helper()
	log := testutil.Logger(t)
	ledgerRepo := repos.NewLedgerEventRepo(db, log)
	return NewAwardService(
		db, log, cfg,
		NewCapEnforcer(cfg, ledgerRepo, log),
		repos.NewUserRepo(db, log),
		repos.NewTodoRepo(db, log),
		repos.NewPlannerTaskRepo(db, log),
		repos.NewLessonProgressRepo(db, log),
		ledgerRepo,
		nil,
	)
}

func boolPtr(b bool) *bool { return &b }

func TestAwardService_TodoCompletionGrantsOnce(t *testing.T) {
	db := testutil.DB(t)
	svc := newAwardServiceForTest(t, db, DefaultRewardConfig())
	user := testutil.SeedUser(t, db)
	todo := testutil.SeedTodo(t, db, user.ID)
	ctx := testutil.SessionContext(user.ID)

	result, err := svc.SetTodoCompletion(ctx, todo.ID, CompletableUpdate{IsCompleted: boolPtr(true)})
	if err != nil {
		t.Fatalf("first completion: %v", err)
	}
	if result.Granted != 2 {
		t.Fatalf("expected 2 XP granted, got %d", result.Granted)
	}
	if result.Progress == nil || result.Progress.Level != 1 {
		t.Fatalf("expected level progress, got %+v", result.Progress)
	}

	// Replayed PATCH grants nothing.
	result, err = svc.SetTodoCompletion(ctx, todo.ID, CompletableUpdate{IsCompleted: boolPtr(true)})
	if err != nil {
		t.Fatalf("second completion: %v", err)
	}
	if result.Granted != 0 {
		t.Fatalf("replay granted %d XP", result.Granted)
	}

	var reloaded types.User
	if err := db.First(&reloaded, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if reloaded.XP != 2 {
		t.Fatalf("expected user XP 2, got %d", reloaded.XP)
	}

	var ledgerRows int64
	db.Model(&types.LedgerEvent{}).
		Where("user_id = ? AND subject_id = ? AND action = ?", user.ID, todo.ID.String(), types.LedgerActionXPAwarded).
		Count(&ledgerRows)
	if ledgerRows != 1 {
		t.Fatalf("expected exactly 1 ledger row, got %d", ledgerRows)
	}
}

func TestAwardService_ConcurrentCompletionGrantsOnce(t *testing.T) {
	db := testutil.DB(t)
	svc := newAwardServiceForTest(t, db, DefaultRewardConfig())
	user := testutil.SeedUser(t, db)
	todo := testutil.SeedTodo(t, db, user.ID)
	ctx := testutil.SessionContext(user.ID)

	granted := make([]int, 8)
	var g errgroup.Group
	for i := range granted {
		i := i
		g.Go(func() error {
			result, err := svc.SetTodoCompletion(ctx, todo.ID, CompletableUpdate{IsCompleted: boolPtr(true)})
			if err != nil {
				return err
			}
			granted[i] = result.Granted
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent completion: %v", err)
	}

	total := 0
	for _, amount := range granted {
		total += amount
	}
	if total != 2 {
		t.Fatalf("expected 2 XP total across racers, got %d", total)
	}

	var reloaded types.User
	if err := db.First(&reloaded, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if reloaded.XP != 2 {
		t.Fatalf("expected user XP 2, got %d", reloaded.XP)
	}
}

func TestAwardService_UncompleteNeverRevokes(t *testing.T) {
	db := testutil.DB(t)
	svc := newAwardServiceForTest(t, db, DefaultRewardConfig())
	user := testutil.SeedUser(t, db)
	todo := testutil.SeedTodo(t, db, user.ID)
	ctx := testutil.SessionContext(user.ID)

	if _, err := svc.SetTodoCompletion(ctx, todo.ID, CompletableUpdate{IsCompleted: boolPtr(true)}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	result, err := svc.SetTodoCompletion(ctx, todo.ID, CompletableUpdate{IsCompleted: boolPtr(false)})
	if err != nil {
		t.Fatalf("uncomplete: %v", err)
	}
	if result.Granted != 0 {
		t.Fatalf("uncomplete granted %d XP", result.Granted)
	}

	var reloadedTodo types.Todo
	if err := db.First(&reloadedTodo, "id = ?", todo.ID).Error; err != nil {
		t.Fatalf("reload todo: %v", err)
	}
	if reloadedTodo.IsCompleted {
		t.Fatalf("todo should be incomplete")
	}
	if !reloadedTodo.XPAwarded {
		t.Fatalf("xp_awarded must survive uncompletion")
	}

	var reloadedUser types.User
	if err := db.First(&reloadedUser, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if reloadedUser.XP != 2 {
		t.Fatalf("uncompletion changed XP: %d", reloadedUser.XP)
	}

	// Completing again must not double-award.
	result, err = svc.SetTodoCompletion(ctx, todo.ID, CompletableUpdate{IsCompleted: boolPtr(true)})
	if err != nil {
		t.Fatalf("re-complete: %v", err)
	}
	if result.Granted != 0 {
		t.Fatalf("re-completion granted %d XP", result.Granted)
	}
}

func TestAwardService_DailyCapClampsAndPreservesEligibility(t *testing.T) {
	db := testutil.DB(t)
	cfg := DefaultRewardConfig()
	cfg.DailyCap[types.SubjectTodo] = 3
	svc := newAwardServiceForTest(t, db, cfg)
	user := testutil.SeedUser(t, db)
	ctx := testutil.SessionContext(user.ID)

	first := testutil.SeedTodo(t, db, user.ID)
	second := testutil.SeedTodo(t, db, user.ID)
	third := testutil.SeedTodo(t, db, user.ID)

	result, err := svc.SetTodoCompletion(ctx, first.ID, CompletableUpdate{IsCompleted: boolPtr(true)})
	if err != nil || result.Granted != 2 {
		t.Fatalf("first: granted=%d err=%v", result.Granted, err)
	}
	result, err = svc.SetTodoCompletion(ctx, second.ID, CompletableUpdate{IsCompleted: boolPtr(true)})
	if err != nil || result.Granted != 1 {
		t.Fatalf("second should clamp to 1: granted=%d err=%v", result.Granted, err)
	}
	result, err = svc.SetTodoCompletion(ctx, third.ID, CompletableUpdate{IsCompleted: boolPtr(true)})
	if err != nil || result.Granted != 0 {
		t.Fatalf("third should grant 0: granted=%d err=%v", result.Granted, err)
	}

	// The fully suppressed grant leaves the entity eligible for a later day.
	var reloaded types.Todo
	if err := db.First(&reloaded, "id = ?", third.ID).Error; err != nil {
		t.Fatalf("reload third todo: %v", err)
	}
	if !reloaded.IsCompleted {
		t.Fatalf("third todo should still be marked completed")
	}
	if reloaded.XPAwarded {
		t.Fatalf("suppressed grant must not set xp_awarded")
	}

	var reloadedUser types.User
	if err := db.First(&reloadedUser, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if reloadedUser.XP != 3 {
		t.Fatalf("expected XP pinned at cap 3, got %d", reloadedUser.XP)
	}
}

func TestAwardService_DayBonusAwardedOnceWhenDayFinishes(t *testing.T) {
	db := testutil.DB(t)
	svc := newAwardServiceForTest(t, db, DefaultRewardConfig())
	user := testutil.SeedUser(t, db)
	ctx := testutil.SessionContext(user.ID)

	first := testutil.SeedPlannerTask(t, db, user.ID, 1)
	second := testutil.SeedPlannerTask(t, db, user.ID, 1)

	result, err := svc.SetPlannerTaskCompletion(ctx, first.ID, CompletableUpdate{IsCompleted: boolPtr(true)})
	if err != nil {
		t.Fatalf("first task: %v", err)
	}
	if result.Granted != 2 {
		t.Fatalf("first task should grant base only, got %d", result.Granted)
	}

	result, err = svc.SetPlannerTaskCompletion(ctx, second.ID, CompletableUpdate{IsCompleted: boolPtr(true)})
	if err != nil {
		t.Fatalf("last task: %v", err)
	}
	if result.Granted != 12 {
		t.Fatalf("last task should carry the 10 XP day bonus, got %d", result.Granted)
	}

	var markers int64
	db.Model(&types.LedgerEvent{}).
		Where("user_id = ? AND action = ?", user.ID, types.LedgerActionDayCompleted).
		Count(&markers)
	if markers != 1 {
		t.Fatalf("expected 1 day_completed marker, got %d", markers)
	}

	// Uncomplete/recomplete cycles never re-grant the bonus.
	if _, err := svc.SetPlannerTaskCompletion(ctx, second.ID, CompletableUpdate{IsCompleted: boolPtr(false)}); err != nil {
		t.Fatalf("uncomplete: %v", err)
	}
	result, err = svc.SetPlannerTaskCompletion(ctx, second.ID, CompletableUpdate{IsCompleted: boolPtr(true)})
	if err != nil {
		t.Fatalf("re-complete: %v", err)
	}
	if result.Granted != 0 {
		t.Fatalf("re-completion granted %d XP", result.Granted)
	}
}

func TestAwardService_LessonCompletionGrants(t *testing.T) {
	db := testutil.DB(t)
	svc := newAwardServiceForTest(t, db, DefaultRewardConfig())
	user := testutil.SeedUser(t, db)
	row := testutil.SeedLessonProgress(t, db, user.ID)
	ctx := testutil.SessionContext(user.ID)

	result, err := svc.SetLessonCompletion(ctx, row.ID, CompletableUpdate{IsCompleted: boolPtr(true)})
	if err != nil {
		t.Fatalf("complete lesson: %v", err)
	}
	if result.Granted != 2 {
		t.Fatalf("expected 2 XP, got %d", result.Granted)
	}
}

func TestAwardService_LevelUpAppendsRewardRow(t *testing.T) {
	db := testutil.DB(t)
	svc := newAwardServiceForTest(t, db, DefaultRewardConfig())
	user := testutil.SeedUser(t, db)
	ctx := testutil.SessionContext(user.ID)

	// Level 2 starts at 10 XP; five 2-XP todos get there exactly.
	for i := 0; i < 5; i++ {
		todo := testutil.SeedTodo(t, db, user.ID)
		if _, err := svc.SetTodoCompletion(ctx, todo.ID, CompletableUpdate{IsCompleted: boolPtr(true)}); err != nil {
			t.Fatalf("complete todo %d: %v", i, err)
		}
	}

	var reloaded types.User
	if err := db.First(&reloaded, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if reloaded.Level != 2 {
		t.Fatalf("expected level 2, got %d", reloaded.Level)
	}

	var rewardRows int64
	db.Model(&types.LedgerEvent{}).
		Where("user_id = ? AND action = ?", user.ID, types.LedgerActionReward).
		Count(&rewardRows)
	if rewardRows != 1 {
		t.Fatalf("expected 1 reward row for the level-up, got %d", rewardRows)
	}
}

func TestAwardService_ForeignEntityIsNotFound(t *testing.T) {
	db := testutil.DB(t)
	svc := newAwardServiceForTest(t, db, DefaultRewardConfig())
	owner := testutil.SeedUser(t, db)
	intruder := testutil.SeedUser(t, db)
	todo := testutil.SeedTodo(t, db, owner.ID)

	_, err := svc.SetTodoCompletion(testutil.SessionContext(intruder.ID), todo.ID, CompletableUpdate{IsCompleted: boolPtr(true)})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
