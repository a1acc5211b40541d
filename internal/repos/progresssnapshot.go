package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/studyloop/backend/internal/logger"
	"github.com/studyloop/backend/internal/types"
)

type ProgressSnapshotRepo interface {
	GetByUserAndCourse(ctx context.Context, tx *gorm.DB, userID uuid.UUID, courseID int64) (*types.ProgressSnapshot, error)
	// GetByUserAndCourseForUpdate serializes concurrent merges of the same
	// (user, course) document for the duration of the transaction.
	GetByUserAndCourseForUpdate(ctx context.Context, tx *gorm.DB, userID uuid.UUID, courseID int64) (*types.ProgressSnapshot, error)
	// CreateIfAbsent inserts the row only when no (user_id, course_id) row
	// exists yet, so a first sync has something to lock. Losing the insert
	// race is fine; callers re-select FOR UPDATE afterwards.
	CreateIfAbsent(ctx context.Context, tx *gorm.DB, row *types.ProgressSnapshot) error
	// Upsert writes the merged document in one statement keyed on
	// (user_id, course_id).
	Upsert(ctx context.Context, tx *gorm.DB, row *types.ProgressSnapshot) error
}

type progressSnapshotRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProgressSnapshotRepo(db *gorm.DB, baseLog *logger.Logger) ProgressSnapshotRepo {
	repoLog := baseLog.With("repo", "ProgressSnapshotRepo")
	return &progressSnapshotRepo{db: db, log: repoLog}
}

func (r *progressSnapshotRepo) GetByUserAndCourse(ctx context.Context, tx *gorm.DB, userID uuid.UUID, courseID int64) (*types.ProgressSnapshot, error) {
	return r.get(ctx, tx, userID, courseID, false)
}

func (r *progressSnapshotRepo) GetByUserAndCourseForUpdate(ctx context.Context, tx *gorm.DB, userID uuid.UUID, courseID int64) (*types.ProgressSnapshot, error) {
	return r.get(ctx, tx, userID, courseID, true)
}

func (r *progressSnapshotRepo) get(ctx context.Context, tx *gorm.DB, userID uuid.UUID, courseID int64, forUpdate bool) (*types.ProgressSnapshot, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	q := transaction.WithContext(ctx)
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var result types.ProgressSnapshot
	err := q.Where("user_id = ? AND course_id = ?", userID, courseID).First(&result).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *progressSnapshotRepo) CreateIfAbsent(ctx context.Context, tx *gorm.DB, row *types.ProgressSnapshot) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if row == nil {
		return nil
	}

	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
			DoNothing: true,
		}).
		Create(row).Error
}

func (r *progressSnapshotRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.ProgressSnapshot) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if row == nil {
		return nil
	}

	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"data":       row.Data,
				"xp_total":   row.XPTotal,
				"version":    row.Version,
				"updated_at": gorm.Expr("now()"),
			}),
		}).
		Create(row).Error
}
