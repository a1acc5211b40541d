package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/studyloop/backend/internal/logger"
	"github.com/studyloop/backend/internal/repos"
	"github.com/studyloop/backend/internal/types"
)

// LessonProgressService manages the per-user completable rows for catalog
// lessons. The catalog itself lives in another system; rows are created
// lazily the first time a client opens a lesson.
type LessonProgressService interface {
	EnsureRow(ctx context.Context, lessonRef int64) (*types.LessonProgress, error)
	List(ctx context.Context) ([]*types.LessonProgress, error)
}

type lessonProgressService struct {
	db         *gorm.DB
	log        *logger.Logger
	lessonRepo repos.LessonProgressRepo
}

func NewLessonProgressService(db *gorm.DB, log *logger.Logger, lessonRepo repos.LessonProgressRepo) LessonProgressService {
	serviceLog := log.With("service", "LessonProgressService")
	return &lessonProgressService{db: db, log: serviceLog, lessonRepo: lessonRepo}
}

func (ls *lessonProgressService) EnsureRow(ctx context.Context, lessonRef int64) (*types.LessonProgress, error) {
	userID, err := sessionUserID(ctx)
	if err != nil {
		return nil, err
	}
	if lessonRef <= 0 {
		return nil, ErrValidation
	}

	existing, err := ls.lessonRepo.GetByUserAndRefs(ctx, nil, userID, []int64{lessonRef})
	if err != nil {
		return nil, fmt.Errorf("get lesson progress: %w", err)
	}
	if len(existing) > 0 {
		return existing[0], nil
	}

	row := &types.LessonProgress{
		UserID:    userID,
		LessonRef: lessonRef,
	}
	if _, err := ls.lessonRepo.Create(ctx, nil, []*types.LessonProgress{row}); err != nil {
		return nil, fmt.Errorf("create lesson progress: %w", err)
	}
	return row, nil
}

func (ls *lessonProgressService) List(ctx context.Context) ([]*types.LessonProgress, error) {
	userID, err := sessionUserID(ctx)
	if err != nil {
		return nil, err
	}
	return ls.lessonRepo.GetByUserID(ctx, nil, userID)
}
