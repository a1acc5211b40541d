// Package testutil holds shared helpers for tests that need a live Postgres.
// Tests skip unless TEST_POSTGRES_DSN points at a disposable database.
package testutil

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/studyloop/backend/internal/logger"
	"github.com/studyloop/backend/internal/requestdata"
	"github.com/studyloop/backend/internal/types"
)

func DB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		t.Fatalf("enable uuid-ossp: %v", err)
	}
	if err := db.AutoMigrate(
		&types.User{},
		&types.UserToken{},
		&types.Todo{},
		&types.PlannerTask{},
		&types.LessonProgress{},
		&types.LedgerEvent{},
		&types.ProgressSnapshot{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func Logger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

// SessionContext builds the context an authenticated request would carry.
func SessionContext(userID uuid.UUID) context.Context {
	return requestdata.WithRequestData(context.Background(), &requestdata.RequestData{UserID: userID})
}

func SeedUser(t *testing.T, db *gorm.DB) *types.User {
	t.Helper()
	user := &types.User{
		ID:    uuid.New(),
		Email: fmt.Sprintf("test-%s@example.com", uuid.New()),
		XP:    0,
		Level: 1,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	t.Cleanup(func() { cleanupUser(db, user.ID) })
	return user
}

func SeedTodo(t *testing.T, db *gorm.DB, userID uuid.UUID) *types.Todo {
	t.Helper()
	todo := &types.Todo{
		ID:     uuid.New(),
		UserID: userID,
		Name:   "test todo",
	}
	if err := db.Create(todo).Error; err != nil {
		t.Fatalf("seed todo: %v", err)
	}
	return todo
}

func SeedPlannerTask(t *testing.T, db *gorm.DB, userID uuid.UUID, dayNumber int) *types.PlannerTask {
	t.Helper()
	task := &types.PlannerTask{
		ID:        uuid.New(),
		UserID:    userID,
		DayNumber: dayNumber,
		Name:      "test task",
	}
	if err := db.Create(task).Error; err != nil {
		t.Fatalf("seed planner task: %v", err)
	}
	return task
}

func SeedLessonProgress(t *testing.T, db *gorm.DB, userID uuid.UUID) *types.LessonProgress {
	t.Helper()
	row := &types.LessonProgress{
		ID:        uuid.New(),
		UserID:    userID,
		LessonRef: rand.Int63n(1 << 40),
	}
	if err := db.Create(row).Error; err != nil {
		t.Fatalf("seed lesson progress: %v", err)
	}
	return row
}

// cleanupUser removes everything a test user accumulated, ledger included.
func cleanupUser(db *gorm.DB, userID uuid.UUID) {
	for _, model := range []any{
		&types.LedgerEvent{},
		&types.ProgressSnapshot{},
		&types.LessonProgress{},
		&types.PlannerTask{},
		&types.Todo{},
		&types.UserToken{},
	} {
		db.Where("user_id = ?", userID).Delete(model)
	}
	db.Where("id = ?", userID).Delete(&types.User{})
}
