package types

import (
	"time"

	"github.com/google/uuid"
)

// Todo is a completable entity: XPAwarded flips false->true at most once,
// and only inside the transaction that grants its XP.
type Todo struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	Name        string     `gorm:"not null;column:name" json:"name"`
	Position    int        `gorm:"column:position;not null;default:0" json:"position"`
	IsCompleted bool       `gorm:"column:is_completed;not null;default:false" json:"is_completed"`
	XPAwarded   bool       `gorm:"column:xp_awarded;not null;default:false" json:"xp_awarded"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (Todo) TableName() string { return "todo" }
