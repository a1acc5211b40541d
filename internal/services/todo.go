package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/studyloop/backend/internal/logger"
	"github.com/studyloop/backend/internal/repos"
	"github.com/studyloop/backend/internal/types"
)

// TodoService owns todo lifecycle (create/list/delete). Completion toggles go
// through the AwardService instead, which is the only writer of reward state.
type TodoService interface {
	Create(ctx context.Context, name string, position int) (*types.Todo, error)
	List(ctx context.Context) ([]*types.Todo, error)
	Delete(ctx context.Context, todoID uuid.UUID) error
}

type todoService struct {
	db       *gorm.DB
	log      *logger.Logger
	todoRepo repos.TodoRepo
}

func NewTodoService(db *gorm.DB, log *logger.Logger, todoRepo repos.TodoRepo) TodoService {
	serviceLog := log.With("service", "TodoService")
	return &todoService{db: db, log: serviceLog, todoRepo: todoRepo}
}

func (ts *todoService) Create(ctx context.Context, name string, position int) (*types.Todo, error) {
	userID, err := sessionUserID(ctx)
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrValidation
	}

	todo := &types.Todo{
		UserID:   userID,
		Name:     name,
		Position: position,
	}
	if _, err := ts.todoRepo.Create(ctx, nil, []*types.Todo{todo}); err != nil {
		return nil, fmt.Errorf("create todo: %w", err)
	}
	return todo, nil
}

func (ts *todoService) List(ctx context.Context) ([]*types.Todo, error) {
	userID, err := sessionUserID(ctx)
	if err != nil {
		return nil, err
	}
	return ts.todoRepo.GetByUserID(ctx, nil, userID)
}

func (ts *todoService) Delete(ctx context.Context, todoID uuid.UUID) error {
	userID, err := sessionUserID(ctx)
	if err != nil {
		return err
	}
	deleted, err := ts.todoRepo.FullDeleteByID(ctx, nil, todoID, userID)
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}
