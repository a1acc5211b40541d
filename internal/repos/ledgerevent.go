package repos

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/studyloop/backend/internal/logger"
	"github.com/studyloop/backend/internal/types"
)

// LedgerEventRepo is append-only on purpose: there are no update or delete
// methods, and none should ever be added. Corrections happen by appending.
type LedgerEventRepo interface {
	Append(ctx context.Context, tx *gorm.DB, rows []*types.LedgerEvent) ([]*types.LedgerEvent, error)
	// SumAwardedToday sums payload amounts of xp_awarded rows for one reward
	// category since the server-local start of day. Input for the daily cap.
	SumAwardedToday(ctx context.Context, tx *gorm.DB, userID uuid.UUID, subjectType string) (int, error)
	// InsertDayCompletedIfAbsent appends the day_completed marker only when no
	// marker for that (user, day) exists yet. Reports whether this call won.
	InsertDayCompletedIfAbsent(ctx context.Context, tx *gorm.DB, userID uuid.UUID, dayNumber int, payload types.LedgerPayload) (bool, error)
	ListByUserAndAction(ctx context.Context, tx *gorm.DB, userID uuid.UUID, action string, limit int) ([]*types.LedgerEvent, error)
	// DistinctAwardDaysSince returns the distinct calendar days carrying at
	// least one xp_awarded row (newest first) plus the current day, both as
	// YYYY-MM-DD keys cut on the database clock. One clock for bucketing and
	// "today" keeps streaks stable when the process timezone differs from the
	// database's.
	DistinctAwardDaysSince(ctx context.Context, tx *gorm.DB, userID uuid.UUID, since time.Time) (days []string, today string, err error)
	CountBySubject(ctx context.Context, tx *gorm.DB, userID uuid.UUID, subjectType, subjectID, action string) (int64, error)
}

type ledgerEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLedgerEventRepo(db *gorm.DB, baseLog *logger.Logger) LedgerEventRepo {
	repoLog := baseLog.With("repo", "LedgerEventRepo")
	return &ledgerEventRepo{db: db, log: repoLog}
}

func (r *ledgerEventRepo) Append(ctx context.Context, tx *gorm.DB, rows []*types.LedgerEvent) ([]*types.LedgerEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(rows) == 0 {
		return []*types.LedgerEvent{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ledgerEventRepo) SumAwardedToday(ctx context.Context, tx *gorm.DB, userID uuid.UUID, subjectType string) (int, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var total int
	err := transaction.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM((payload->>'amount')::int), 0)
		FROM ledger_event
		WHERE user_id = ?
		  AND action = ?
		  AND subject_type = ?
		  AND created_at >= date_trunc('day', now())`,
		userID, types.LedgerActionXPAwarded, subjectType,
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *ledgerEventRepo) InsertDayCompletedIfAbsent(ctx context.Context, tx *gorm.DB, userID uuid.UUID, dayNumber int, payload types.LedgerPayload) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	subjectID := strconv.Itoa(dayNumber)
	res := transaction.WithContext(ctx).Exec(`
		INSERT INTO ledger_event (user_id, subject_type, subject_id, action, payload)
		SELECT ?, ?, ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM ledger_event
			WHERE user_id = ? AND subject_type = ? AND subject_id = ? AND action = ?
		)`,
		userID, types.SubjectDay, subjectID, types.LedgerActionDayCompleted, payload.JSON(),
		userID, types.SubjectDay, subjectID, types.LedgerActionDayCompleted,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *ledgerEventRepo) ListByUserAndAction(ctx context.Context, tx *gorm.DB, userID uuid.UUID, action string, limit int) ([]*types.LedgerEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.LedgerEvent
	if userID == uuid.Nil {
		return results, nil
	}

	q := transaction.WithContext(ctx).
		Where("user_id = ? AND action = ?", userID, action).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *ledgerEventRepo) DistinctAwardDaysSince(ctx context.Context, tx *gorm.DB, userID uuid.UUID, since time.Time) ([]string, string, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var days []string
	err := transaction.WithContext(ctx).Raw(`
		SELECT DISTINCT to_char(created_at, 'YYYY-MM-DD') AS day
		FROM ledger_event
		WHERE user_id = ?
		  AND action = ?
		  AND created_at >= ?
		ORDER BY day DESC`,
		userID, types.LedgerActionXPAwarded, since,
	).Scan(&days).Error
	if err != nil {
		return nil, "", err
	}

	var today string
	if err := transaction.WithContext(ctx).
		Raw(`SELECT to_char(now(), 'YYYY-MM-DD')`).
		Scan(&today).Error; err != nil {
		return nil, "", err
	}
	return days, today, nil
}

func (r *ledgerEventRepo) CountBySubject(ctx context.Context, tx *gorm.DB, userID uuid.UUID, subjectType, subjectID, action string) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var count int64
	err := transaction.WithContext(ctx).
		Model(&types.LedgerEvent{}).
		Where("user_id = ? AND subject_type = ? AND subject_id = ? AND action = ?", userID, subjectType, subjectID, action).
		Count(&count).Error
	return count, err
}
