package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/studyloop/backend/internal/logger"
	"github.com/studyloop/backend/internal/types"
)

type PlannerTaskRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.PlannerTask) ([]*types.PlannerTask, error)
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.PlannerTask, error)
	GetByUserAndDay(ctx context.Context, tx *gorm.DB, userID uuid.UUID, dayNumber int) ([]*types.PlannerTask, error)
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id, userID uuid.UUID) (*types.PlannerTask, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error
	// CountIncompleteForDay reflects updates already made inside tx, so the
	// award engine can detect "this completion finished the day".
	CountIncompleteForDay(ctx context.Context, tx *gorm.DB, userID uuid.UUID, dayNumber int) (int64, error)
	FullDeleteByID(ctx context.Context, tx *gorm.DB, id, userID uuid.UUID) (bool, error)
}

type plannerTaskRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPlannerTaskRepo(db *gorm.DB, baseLog *logger.Logger) PlannerTaskRepo {
	repoLog := baseLog.With("repo", "PlannerTaskRepo")
	return &plannerTaskRepo{db: db, log: repoLog}
}

func (r *plannerTaskRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.PlannerTask) ([]*types.PlannerTask, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(rows) == 0 {
		return []*types.PlannerTask{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *plannerTaskRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.PlannerTask, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.PlannerTask
	if userID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("day_number ASC, position ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *plannerTaskRepo) GetByUserAndDay(ctx context.Context, tx *gorm.DB, userID uuid.UUID, dayNumber int) ([]*types.PlannerTask, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.PlannerTask
	if userID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND day_number = ?", userID, dayNumber).
		Order("position ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *plannerTaskRepo) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id, userID uuid.UUID) (*types.PlannerTask, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.PlannerTask
	err := transaction.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND user_id = ?", id, userID).
		First(&result).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *plannerTaskRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = gorm.Expr("now()")

	return transaction.WithContext(ctx).
		Model(&types.PlannerTask{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *plannerTaskRepo) CountIncompleteForDay(ctx context.Context, tx *gorm.DB, userID uuid.UUID, dayNumber int) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var count int64
	err := transaction.WithContext(ctx).
		Model(&types.PlannerTask{}).
		Where("user_id = ? AND day_number = ? AND is_completed = false", userID, dayNumber).
		Count(&count).Error
	return count, err
}

func (r *plannerTaskRepo) FullDeleteByID(ctx context.Context, tx *gorm.DB, id, userID uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	res := transaction.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&types.PlannerTask{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
