package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/studyloop/backend/internal/logger"
	"github.com/studyloop/backend/internal/repos"
	"github.com/studyloop/backend/internal/types"
	"github.com/studyloop/backend/internal/xp"
)

// Millis is a client wall-clock timestamp in epoch milliseconds. Clients may
// send it as a JSON number (seconds or milliseconds) or an RFC3339 string.
type Millis int64

func (m *Millis) UnmarshalJSON(raw []byte) error {
	if len(raw) == 0 {
		return fmt.Errorf("empty timestamp")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("timestamp %q: %w", s, err)
		}
		*m = Millis(t.UnixMilli())
		return nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return err
	}
	// Heuristic: epoch seconds are 10 digits until the year 2286, epoch
	// milliseconds 13. Anything below the millisecond range is seconds.
	if n < 1e12 {
		n *= 1000
	}
	*m = Millis(int64(n))
	return nil
}

func (m Millis) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(m))
}

type SyncItem struct {
	ID int64  `json:"id"`
	TS Millis `json:"ts"`
}

type QuestionStatusItem struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
	TS     Millis `json:"ts"`
}

// XPDelta is the client-declared additive XP breakdown for one sync batch.
type XPDelta struct {
	Lessons   int `json:"lessons"`
	Correct   int `json:"correct"`
	Attempted int `json:"attempted"`
	Other     int `json:"other"`
}

func (d XPDelta) Sum() int {
	return d.Lessons + d.Correct + d.Attempted + d.Other
}

type SyncRequest struct {
	CourseID          int64                `json:"course_id"`
	LessonsCompleted  []SyncItem           `json:"lessons_completed"`
	LessonsIncomplete []SyncItem           `json:"lessons_incomplete"`
	QuestionStatus    []QuestionStatusItem `json:"question_status"`
	XPDelta           XPDelta              `json:"xp_delta"`
	Version           int                  `json:"version"`
}

type SyncResult struct {
	OK      bool   `json:"ok"`
	XPTotal int    `json:"xp_total"`
	Version int    `json:"version"`
	ETag    string `json:"etag"`
}

// ProgressSyncService folds batched offline mutations into the per-course
// snapshot. Merging is last-write-wins per item key on client timestamps, so
// re-sending a batch or swapping the order of two batches converges to the
// same document.
type ProgressSyncService interface {
	Merge(ctx context.Context, req SyncRequest) (SyncResult, error)
	GetSnapshot(ctx context.Context, courseID int64) (*types.ProgressSnapshot, error)
}

type progressSyncService struct {
	db           *gorm.DB
	log          *logger.Logger
	snapshotRepo repos.ProgressSnapshotRepo
	userRepo     repos.UserRepo
	ledgerRepo   repos.LedgerEventRepo
}

func NewProgressSyncService(
	db *gorm.DB,
	log *logger.Logger,
	snapshotRepo repos.ProgressSnapshotRepo,
	userRepo repos.UserRepo,
	ledgerRepo repos.LedgerEventRepo,
) ProgressSyncService {
	serviceLog := log.With("service", "ProgressSyncService")
	return &progressSyncService{
		db:           db,
		log:          serviceLog,
		snapshotRepo: snapshotRepo,
		userRepo:     userRepo,
		ledgerRepo:   ledgerRepo,
	}
}

func (ps *progressSyncService) Merge(ctx context.Context, req SyncRequest) (SyncResult, error) {
	userID, err := sessionUserID(ctx)
	if err != nil {
		return SyncResult{}, err
	}
	if err := validateSyncRequest(req); err != nil {
		return SyncResult{}, err
	}

	var result SyncResult
	err = ps.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		snapshot, err := ps.snapshotRepo.GetByUserAndCourseForUpdate(ctx, tx, userID, req.CourseID)
		if err != nil {
			return fmt.Errorf("lock snapshot: %w", err)
		}
		if snapshot == nil {
			// First sync for this course: without a row there is nothing for
			// FOR UPDATE to serialize on, and two concurrent first syncs would
			// each merge from an empty base and overwrite each other. Insert
			// the empty document (losers no-op on the unique index) and lock
			// whichever row won.
			empty, err := types.NewSnapshotData().JSON()
			if err != nil {
				return fmt.Errorf("encode empty snapshot: %w", err)
			}
			if err := ps.snapshotRepo.CreateIfAbsent(ctx, tx, &types.ProgressSnapshot{
				UserID:   userID,
				CourseID: req.CourseID,
				Data:     empty,
			}); err != nil {
				return fmt.Errorf("seed snapshot: %w", err)
			}
			if snapshot, err = ps.snapshotRepo.GetByUserAndCourseForUpdate(ctx, tx, userID, req.CourseID); err != nil {
				return fmt.Errorf("lock snapshot: %w", err)
			}
			if snapshot == nil {
				return fmt.Errorf("snapshot row missing after seed")
			}
		}

		data, err := snapshot.DecodeData()
		if err != nil {
			return fmt.Errorf("decode snapshot: %w", err)
		}
		xpTotal := snapshot.XPTotal
		version := snapshot.Version

		mergeBatch(&data, req)

		delta := req.XPDelta.Sum()
		xpTotal += delta
		version++

		raw, err := data.JSON()
		if err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}
		if err := ps.snapshotRepo.Upsert(ctx, tx, &types.ProgressSnapshot{
			UserID:   userID,
			CourseID: req.CourseID,
			Data:     raw,
			XPTotal:  xpTotal,
			Version:  version,
		}); err != nil {
			return fmt.Errorf("upsert snapshot: %w", err)
		}

		if delta > 0 {
			if err := ps.applyUserXP(ctx, tx, userID, req.CourseID, delta); err != nil {
				return err
			}
		}

		result = SyncResult{
			OK:      true,
			XPTotal: xpTotal,
			Version: version,
			ETag:    snapshotETag(raw, version),
		}
		return nil
	})
	if err != nil {
		return SyncResult{}, err
	}
	return result, nil
}

func (ps *progressSyncService) GetSnapshot(ctx context.Context, courseID int64) (*types.ProgressSnapshot, error) {
	userID, err := sessionUserID(ctx)
	if err != nil {
		return nil, err
	}
	if courseID <= 0 {
		return nil, ErrValidation
	}
	snapshot, err := ps.snapshotRepo.GetByUserAndCourse(ctx, nil, userID, courseID)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return nil, ErrNotFound
	}
	return snapshot, nil
}

// applyUserXP mirrors the additive sync delta onto the user aggregate. The
// delta is trusted as-declared by the client (see DESIGN.md); it still goes
// through the locked read-increment-write and leaves a ledger trail.
func (ps *progressSyncService) applyUserXP(ctx context.Context, tx *gorm.DB, userID uuid.UUID, courseID int64, delta int) error {
	user, err := ps.userRepo.GetByIDForUpdate(ctx, tx, userID)
	if err != nil {
		return fmt.Errorf("lock user: %w", err)
	}
	if user == nil {
		return ErrNotFound
	}

	nextXP := user.XP + delta
	newLevel := xp.Level(nextXP)
	if err := ps.userRepo.AddXP(ctx, tx, userID, delta, newLevel); err != nil {
		return fmt.Errorf("add xp: %w", err)
	}

	payload := types.LedgerPayload{Amount: delta, TotalXP: nextXP, Subject: types.SubjectSync}
	if _, err := ps.ledgerRepo.Append(ctx, tx, []*types.LedgerEvent{{
		UserID:      userID,
		SubjectType: types.SubjectSync,
		SubjectID:   strconv.FormatInt(courseID, 10),
		Action:      types.LedgerActionXPAwarded,
		Payload:     payload.JSON(),
	}}); err != nil {
		return fmt.Errorf("append ledger: %w", err)
	}

	if newLevel > user.Level {
		rewardPayload := types.LedgerPayload{
			Key:   fmt.Sprintf("level_%d", newLevel),
			Label: fmt.Sprintf("Reached level %d", newLevel),
			Type:  "level",
		}
		if _, err := ps.ledgerRepo.Append(ctx, tx, []*types.LedgerEvent{{
			UserID:      userID,
			SubjectType: types.SubjectSync,
			SubjectID:   strconv.FormatInt(courseID, 10),
			Action:      types.LedgerActionReward,
			Payload:     rewardPayload.JSON(),
		}}); err != nil {
			return fmt.Errorf("append reward: %w", err)
		}
		ps.log.Info("User leveled up", "user_id", userID, "level", newLevel)
	}
	return nil
}

func validateSyncRequest(req SyncRequest) error {
	if req.CourseID <= 0 {
		return ErrValidation
	}
	if req.XPDelta.Lessons < 0 || req.XPDelta.Correct < 0 || req.XPDelta.Attempted < 0 || req.XPDelta.Other < 0 {
		return ErrValidation
	}
	// Non-positive timestamps would feed garbage clocks into the
	// last-write-wins comparison, so they are rejected outright.
	for _, item := range req.LessonsCompleted {
		if item.TS <= 0 {
			return ErrValidation
		}
	}
	for _, item := range req.LessonsIncomplete {
		if item.TS <= 0 {
			return ErrValidation
		}
	}
	for _, q := range req.QuestionStatus {
		if q.Status != "correct" && q.Status != "incorrect" {
			return ErrValidation
		}
		if q.TS <= 0 {
			return ErrValidation
		}
	}
	return nil
}

// mergeBatch applies one sync batch to a snapshot document. Per-key rules:
//   - lesson complete wins on a strictly newer timestamp;
//   - lesson uncomplete removes the entry on a greater-or-equal timestamp,
//     so an uncomplete that observed the completion wins while a strictly
//     older, stale uncomplete is ignored;
//   - question status overwrites on a strictly newer timestamp.
//
// Winners depend only on timestamp comparison, never on arrival order, which
// makes merging idempotent and commutative per key.
func mergeBatch(data *types.SnapshotData, req SyncRequest) {
	for _, item := range req.LessonsCompleted {
		stored, ok := data.Lessons[item.ID]
		if !ok || int64(item.TS) > stored.CompletedAt {
			data.Lessons[item.ID] = types.SnapshotLesson{CompletedAt: int64(item.TS)}
		}
	}
	for _, item := range req.LessonsIncomplete {
		stored, ok := data.Lessons[item.ID]
		if ok && int64(item.TS) >= stored.CompletedAt {
			delete(data.Lessons, item.ID)
		}
	}
	for _, item := range req.QuestionStatus {
		stored, ok := data.Questions[item.ID]
		if !ok || int64(item.TS) > stored.UpdatedAt {
			data.Questions[item.ID] = types.SnapshotQuestion{Status: item.Status, UpdatedAt: int64(item.TS)}
		}
	}
}

func snapshotETag(raw []byte, version int) string {
	h := sha256.New()
	h.Write(raw)
	h.Write([]byte(strconv.Itoa(version)))
	return hex.EncodeToString(h.Sum(nil))[:16]
}
