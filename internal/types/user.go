package types

import (
	"time"

	"github.com/google/uuid"
)

// User is the learner aggregate. XP only ever grows and Level is always
// derived from XP through the level curve inside the same transaction that
// changed XP.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null;column:email" json:"email"`
	Password  string    `gorm:"not null;column:password" json:"-"`
	FirstName string    `gorm:"column:first_name" json:"first_name"`
	LastName  string    `gorm:"column:last_name" json:"last_name"`
	XP        int       `gorm:"column:xp;not null;default:0" json:"xp"`
	Level     int       `gorm:"column:level;not null;default:1" json:"level"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (User) TableName() string { return "user" }
