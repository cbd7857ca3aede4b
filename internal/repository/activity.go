package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/swipekit/swipekit/internal/model"
)

type ActivityRepository interface {
	Create(ctx context.Context, params model.CreateActivityParams) (*model.ActivityRecord, error)
	FindRecent(ctx context.Context, accountID int64, limit int) ([]model.ActivityRecord, error)
	CountByTypeSince(ctx context.Context, accountID int64, activityType model.ActivityType, since time.Time) (int, error)
}

type activityRepo struct {
	db sqlxDB
}

func NewActivityRepository(db *sqlx.DB) ActivityRepository {
	return &activityRepo{db: db}
}

func (r *activityRepo) Create(ctx context.Context, params model.CreateActivityParams) (*model.ActivityRecord, error) {
	var record model.ActivityRecord
	err := r.db.GetContext(ctx, &record, `
		INSERT INTO activity_records (
			account_id, session_id, activity_type, target_id,
			success, timing_ms, phase, details
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING *
	`, params.AccountID, params.SessionID, params.Type, params.TargetID,
		params.Success, params.TimingMS, params.Phase, params.Details)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *activityRepo) FindRecent(ctx context.Context, accountID int64, limit int) ([]model.ActivityRecord, error) {
	var records []model.ActivityRecord
	err := r.db.SelectContext(ctx, &records, `
		SELECT * FROM activity_records
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, accountID, limit)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *activityRepo) CountByTypeSince(ctx context.Context, accountID int64, activityType model.ActivityType, since time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM activity_records
		WHERE account_id = $1 AND activity_type = $2 AND created_at >= $3
	`, accountID, activityType, since)
	return count, err
}
