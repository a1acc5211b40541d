package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/studyloop/backend/internal/logger"
	"github.com/studyloop/backend/internal/types"
)

type TodoRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.Todo) ([]*types.Todo, error)
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Todo, error)
	// GetByIDForUpdate locks the row scoped to its owner. A missing row and a
	// row owned by someone else are indistinguishable to the caller.
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id, userID uuid.UUID) (*types.Todo, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error
	FullDeleteByID(ctx context.Context, tx *gorm.DB, id, userID uuid.UUID) (bool, error)
}

type todoRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTodoRepo(db *gorm.DB, baseLog *logger.Logger) TodoRepo {
	repoLog := baseLog.With("repo", "TodoRepo")
	return &todoRepo{db: db, log: repoLog}
}

func (r *todoRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.Todo) ([]*types.Todo, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(rows) == 0 {
		return []*types.Todo{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *todoRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Todo, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Todo
	if userID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("position ASC, created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *todoRepo) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id, userID uuid.UUID) (*types.Todo, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.Todo
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

func (r *todoRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = gorm.Expr("now()")

	return transaction.WithContext(ctx).
		Model(&types.Todo{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *todoRepo) FullDeleteByID(ctx context.Context, tx *gorm.DB, id, userID uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	res := transaction.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&types.Todo{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
