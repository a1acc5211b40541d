package types

import (
	"time"

	"github.com/google/uuid"
)

// PlannerTask is one step of a study-plan day. Completing the last open task
// of a day can additionally earn the day-completed bonus.
type PlannerTask struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID      uuid.UUID  `gorm:"type:uuid;not null;index:idx_planner_user_day" json:"user_id"`
	DayNumber   int        `gorm:"column:day_number;not null;index:idx_planner_user_day" json:"day_number"`
	Name        string     `gorm:"not null;column:name" json:"name"`
	Position    int        `gorm:"column:position;not null;default:0" json:"position"`
	IsCompleted bool       `gorm:"column:is_completed;not null;default:false" json:"is_completed"`
	XPAwarded   bool       `gorm:"column:xp_awarded;not null;default:false" json:"xp_awarded"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (PlannerTask) TableName() string { return "planner_task" }
