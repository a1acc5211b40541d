package types

import (
	"time"

	"github.com/google/uuid"
)

// LessonProgress is the per-user completable row for one catalog lesson.
// The lesson catalog itself lives outside this service; LessonRef is the
// catalog id and is not a foreign key here.
type LessonProgress struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID      uuid.UUID  `gorm:"type:uuid;not null;index:idx_lesson_progress_user_ref,unique" json:"user_id"`
	LessonRef   int64      `gorm:"column:lesson_ref;not null;index:idx_lesson_progress_user_ref,unique" json:"lesson_ref"`
	IsCompleted bool       `gorm:"column:is_completed;not null;default:false" json:"is_completed"`
	XPAwarded   bool       `gorm:"column:xp_awarded;not null;default:false" json:"xp_awarded"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (LessonProgress) TableName() string { return "lesson_progress" }
