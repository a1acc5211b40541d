package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Ledger actions. The ledger is append-only: once a row exists it is never
// updated or deleted, and XP history is derived only from these rows.
const (
	LedgerActionXPAwarded    = "xp_awarded"
	LedgerActionReward       = "reward"
	LedgerActionDayCompleted = "day_completed"
)

// Subject types recorded on ledger rows. The subject type doubles as the
// reward category for daily caps.
const (
	SubjectTodo        = "todo"
	SubjectPlannerTask = "planner_task"
	SubjectLesson      = "lesson"
	SubjectDay         = "day"
	SubjectSync        = "sync"
)

// LedgerEvent is one immutable row of the rewards ledger.
type LedgerEvent struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID      uuid.UUID      `gorm:"type:uuid;not null;index:idx_ledger_user_action" json:"user_id"`
	SubjectType string         `gorm:"column:subject_type;not null" json:"subject_type"`
	SubjectID   string         `gorm:"column:subject_id;not null" json:"subject_id"`
	Action      string         `gorm:"column:action;not null;index:idx_ledger_user_action" json:"action"`
	Payload     datatypes.JSON `gorm:"type:jsonb;column:payload" json:"payload"`
	CreatedAt   time.Time      `gorm:"not null;default:now();index" json:"created_at"`
}

func (LedgerEvent) TableName() string { return "ledger_event" }

// LedgerPayload is the jsonb body of a ledger row. Amount/TotalXP are set on
// xp_awarded rows; Key/Label/Type on reward rows.
type LedgerPayload struct {
	Amount  int    `json:"amount,omitempty"`
	TotalXP int    `json:"total_xp,omitempty"`
	Subject string `json:"subject,omitempty"`
	Key     string `json:"key,omitempty"`
	Label   string `json:"label,omitempty"`
	Type    string `json:"type,omitempty"`
}

func (p LedgerPayload) JSON() datatypes.JSON {
	raw, _ := json.Marshal(p)
	return datatypes.JSON(raw)
}

func (e *LedgerEvent) DecodePayload() (LedgerPayload, error) {
	var p LedgerPayload
	if len(e.Payload) == 0 {
		return p, nil
	}
	err := json.Unmarshal(e.Payload, &p)
	return p, err
}
