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

func newSyncServiceForTest(t *testing.T, db *gorm.DB) ProgressSyncService {
	t.Helper()
	log := testutil.Logger(t)
	return NewProgressSyncService(
		db, log,
		repos.NewProgressSnapshotRepo(db, log),
		repos.NewUserRepo(db, log),
		repos.NewLedgerEventRepo(db, log),
	)
}

func TestProgressSync_MergeCreatesAndVersionsSnapshot(t *testing.T) {
	db := testutil.DB(t)
	svc := newSyncServiceForTest(t, db)
	user := testutil.SeedUser(t, db)
	ctx := testutil.SessionContext(user.ID)

	result, err := svc.Merge(ctx, SyncRequest{
		CourseID:         101,
		LessonsCompleted: []SyncItem{{ID: 1, TS: 1000}, {ID: 2, TS: 2000}},
		QuestionStatus:   []QuestionStatusItem{{ID: 5, Status: "correct", TS: 1500}},
		XPDelta:          XPDelta{Lessons: 4, Correct: 1},
	})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if !result.OK || result.Version != 1 || result.XPTotal != 5 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.ETag == "" {
		t.Fatalf("expected etag")
	}

	snapshot, err := svc.GetSnapshot(ctx, 101)
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	data, err := snapshot.DecodeData()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(data.Lessons) != 2 || data.Questions[5].Status != "correct" {
		t.Fatalf("unexpected snapshot data %+v", data)
	}

	// The user aggregate mirrors the declared delta and leaves a ledger trail.
	var reloaded types.User
	if err := db.First(&reloaded, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if reloaded.XP != 5 {
		t.Fatalf("expected user XP 5, got %d", reloaded.XP)
	}
	var ledgerRows int64
	db.Model(&types.LedgerEvent{}).
		Where("user_id = ? AND subject_type = ?", user.ID, types.SubjectSync).
		Count(&ledgerRows)
	if ledgerRows != 1 {
		t.Fatalf("expected 1 sync ledger row, got %d", ledgerRows)
	}
}

func TestProgressSync_ReplayedBatchConvergesDocument(t *testing.T) {
	db := testutil.DB(t)
	svc := newSyncServiceForTest(t, db)
	user := testutil.SeedUser(t, db)
	ctx := testutil.SessionContext(user.ID)

	req := SyncRequest{
		CourseID:         202,
		LessonsCompleted: []SyncItem{{ID: 1, TS: 1000}},
	}
	first, err := svc.Merge(ctx, req)
	if err != nil {
		t.Fatalf("first merge: %v", err)
	}
	second, err := svc.Merge(ctx, req)
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}

	if second.Version != first.Version+1 {
		t.Fatalf("version should bump per batch: %d -> %d", first.Version, second.Version)
	}
	if second.XPTotal != first.XPTotal {
		t.Fatalf("replay without delta changed xp_total: %d -> %d", first.XPTotal, second.XPTotal)
	}

	snapshot, err := svc.GetSnapshot(ctx, 202)
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	data, err := snapshot.DecodeData()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(data.Lessons) != 1 || data.Lessons[1].CompletedAt != 1000 {
		t.Fatalf("replay altered document: %+v", data)
	}
}

func TestProgressSync_ConcurrentFirstSyncsBothSurvive(t *testing.T) {
	db := testutil.DB(t)
	svc := newSyncServiceForTest(t, db)
	user := testutil.SeedUser(t, db)
	ctx := testutil.SessionContext(user.ID)

	batches := []SyncRequest{
		{
			CourseID:         404,
			LessonsCompleted: []SyncItem{{ID: 1, TS: 1000}},
			XPDelta:          XPDelta{Lessons: 2},
		},
		{
			CourseID:         404,
			LessonsCompleted: []SyncItem{{ID: 2, TS: 1000}},
			XPDelta:          XPDelta{Lessons: 3},
		},
	}

	var g errgroup.Group
	for _, req := range batches {
		req := req
		g.Go(func() error {
			_, err := svc.Merge(ctx, req)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent first syncs: %v", err)
	}

	snapshot, err := svc.GetSnapshot(ctx, 404)
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	data, err := snapshot.DecodeData()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(data.Lessons) != 2 {
		t.Fatalf("a first-sync batch was lost, document has %d lessons: %+v", len(data.Lessons), data.Lessons)
	}
	if snapshot.XPTotal != 5 {
		t.Fatalf("expected xp_total 5 from both batches, got %d", snapshot.XPTotal)
	}
	if snapshot.Version != 2 {
		t.Fatalf("expected version 2, got %d", snapshot.Version)
	}
}

func TestProgressSync_UncompleteRemovesLesson(t *testing.T) {
	db := testutil.DB(t)
	svc := newSyncServiceForTest(t, db)
	user := testutil.SeedUser(t, db)
	ctx := testutil.SessionContext(user.ID)

	if _, err := svc.Merge(ctx, SyncRequest{
		CourseID:         303,
		LessonsCompleted: []SyncItem{{ID: 1, TS: 1000}},
	}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := svc.Merge(ctx, SyncRequest{
		CourseID:          303,
		LessonsIncomplete: []SyncItem{{ID: 1, TS: 2000}},
	}); err != nil {
		t.Fatalf("uncomplete: %v", err)
	}

	snapshot, err := svc.GetSnapshot(ctx, 303)
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	data, err := snapshot.DecodeData()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(data.Lessons) != 0 {
		t.Fatalf("expected lesson removed, got %+v", data.Lessons)
	}
}

func TestProgressSync_GetSnapshotUnknownCourse(t *testing.T) {
	db := testutil.DB(t)
	svc := newSyncServiceForTest(t, db)
	user := testutil.SeedUser(t, db)

	_, err := svc.GetSnapshot(testutil.SessionContext(user.ID), 999999)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
