package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ProgressSnapshot is the merged per-(user, course) progress document.
// Data holds the typed SnapshotData schema as jsonb; Version bumps on every
// merge so clients can detect concurrent writers.
type ProgressSnapshot struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;index:idx_snapshot_user_course,unique" json:"user_id"`
	CourseID  int64          `gorm:"column:course_id;not null;index:idx_snapshot_user_course,unique" json:"course_id"`
	Data      datatypes.JSON `gorm:"type:jsonb;column:data" json:"data"`
	XPTotal   int            `gorm:"column:xp_total;not null;default:0" json:"xp_total"`
	Version   int            `gorm:"column:version;not null;default:0" json:"version"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (ProgressSnapshot) TableName() string { return "progress_snapshot" }

// SnapshotLesson stores the winning completion timestamp for one lesson,
// epoch milliseconds as reported by the client.
type SnapshotLesson struct {
	CompletedAt int64 `json:"completed_at"`
}

// SnapshotQuestion stores the latest answer status for one question.
type SnapshotQuestion struct {
	Status    string `json:"status"`
	UpdatedAt int64  `json:"updated_at"`
}

// SnapshotData is the explicit schema of the snapshot jsonb document.
// Keys are catalog lesson/question ids.
type SnapshotData struct {
	Lessons   map[int64]SnapshotLesson   `json:"lessons"`
	Questions map[int64]SnapshotQuestion `json:"questions"`
}

func NewSnapshotData() SnapshotData {
	return SnapshotData{
		Lessons:   map[int64]SnapshotLesson{},
		Questions: map[int64]SnapshotQuestion{},
	}
}

func (d SnapshotData) JSON() (datatypes.JSON, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func (s *ProgressSnapshot) DecodeData() (SnapshotData, error) {
	data := NewSnapshotData()
	if len(s.Data) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(s.Data, &data); err != nil {
		return SnapshotData{}, err
	}
	if data.Lessons == nil {
		data.Lessons = map[int64]SnapshotLesson{}
	}
	if data.Questions == nil {
		data.Questions = map[int64]SnapshotQuestion{}
	}
	return data, nil
}
