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

// PlannerDay groups a study-plan day's tasks for the planner view.
type PlannerDay struct {
	DayNumber int                  `json:"day_number"`
	Tasks     []*types.PlannerTask `json:"tasks"`
	Completed bool                 `json:"completed"`
}

type PlannerService interface {
	CreateTask(ctx context.Context, dayNumber int, name string, position int) (*types.PlannerTask, error)
	ListDays(ctx context.Context) ([]PlannerDay, error)
	Day(ctx context.Context, dayNumber int) (PlannerDay, error)
	DeleteTask(ctx context.Context, taskID uuid.UUID) error
}

type plannerService struct {
	db       *gorm.DB
	log      *logger.Logger
	taskRepo repos.PlannerTaskRepo
}

func NewPlannerService(db *gorm.DB, log *logger.Logger, taskRepo repos.PlannerTaskRepo) PlannerService {
	serviceLog := log.With("service", "PlannerService")
	return &plannerService{db: db, log: serviceLog, taskRepo: taskRepo}
}

func (ps *plannerService) CreateTask(ctx context.Context, dayNumber int, name string, position int) (*types.PlannerTask, error) {
	userID, err := sessionUserID(ctx)
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" || dayNumber < 1 {
		return nil, ErrValidation
	}

	task := &types.PlannerTask{
		UserID:    userID,
		DayNumber: dayNumber,
		Name:      name,
		Position:  position,
	}
	if _, err := ps.taskRepo.Create(ctx, nil, []*types.PlannerTask{task}); err != nil {
		return nil, fmt.Errorf("create planner task: %w", err)
	}
	return task, nil
}

func (ps *plannerService) ListDays(ctx context.Context) ([]PlannerDay, error) {
	userID, err := sessionUserID(ctx)
	if err != nil {
		return nil, err
	}

	tasks, err := ps.taskRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("list planner tasks: %w", err)
	}

	days := []PlannerDay{}
	byDay := map[int]int{}
	for _, task := range tasks {
		idx, ok := byDay[task.DayNumber]
		if !ok {
			idx = len(days)
			byDay[task.DayNumber] = idx
			days = append(days, PlannerDay{DayNumber: task.DayNumber, Completed: true})
		}
		days[idx].Tasks = append(days[idx].Tasks, task)
		if !task.IsCompleted {
			days[idx].Completed = false
		}
	}
	return days, nil
}

func (ps *plannerService) Day(ctx context.Context, dayNumber int) (PlannerDay, error) {
	userID, err := sessionUserID(ctx)
	if err != nil {
		return PlannerDay{}, err
	}
	if dayNumber < 1 {
		return PlannerDay{}, ErrValidation
	}

	tasks, err := ps.taskRepo.GetByUserAndDay(ctx, nil, userID, dayNumber)
	if err != nil {
		return PlannerDay{}, fmt.Errorf("get planner day: %w", err)
	}

	day := PlannerDay{DayNumber: dayNumber, Tasks: tasks, Completed: len(tasks) > 0}
	for _, task := range tasks {
		if !task.IsCompleted {
			day.Completed = false
			break
		}
	}
	return day, nil
}

func (ps *plannerService) DeleteTask(ctx context.Context, taskID uuid.UUID) error {
	userID, err := sessionUserID(ctx)
	if err != nil {
		return err
	}
	deleted, err := ps.taskRepo.FullDeleteByID(ctx, nil, taskID, userID)
	if err != nil {
		return fmt.Errorf("delete planner task: %w", err)
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}
