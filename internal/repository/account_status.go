package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/swipekit/swipekit/internal/model"
)

type AccountStatusRepository interface {
	Find(ctx context.Context, accountID int64) (*model.AccountStatus, error)
	Ensure(ctx context.Context, accountID int64) (*model.AccountStatus, error)
	SetPremium(ctx context.Context, accountID int64, premium bool, expiresAt *time.Time) error
	SetQueueCount(ctx context.Context, accountID int64, count int, checkedAt time.Time) error
	SetBioUpdated(ctx context.Context, accountID int64, updated bool) error
	SetPromptsUpdated(ctx context.Context, accountID int64, updated bool) error
	SetPhase(ctx context.Context, accountID int64, phase model.SessionPhase) error
	MarkSessionStart(ctx context.Context, accountID int64, at time.Time) error
	MarkSessionEnd(ctx context.Context, accountID int64, at time.Time) error
	SetConsecutiveErrors(ctx context.Context, accountID int64, n int) error
}

type accountStatusRepo struct {
	db sqlxDB
}

func NewAccountStatusRepository(db *sqlx.DB) AccountStatusRepository {
	return &accountStatusRepo{db: db}
}

func (r *accountStatusRepo) Find(ctx context.Context, accountID int64) (*model.AccountStatus, error) {
	var status model.AccountStatus
	err := r.db.GetContext(ctx, &status, `
		SELECT * FROM account_status WHERE account_id = $1
	`, accountID)
	return HandleNotFound(&status, err)
}

// Ensure returns the status row for the account, creating an empty one if it
// does not exist yet.
func (r *accountStatusRepo) Ensure(ctx context.Context, accountID int64) (*model.AccountStatus, error) {
	var status model.AccountStatus
	err := r.db.GetContext(ctx, &status, `
		INSERT INTO account_status (account_id)
		VALUES ($1)
		ON CONFLICT (account_id) DO UPDATE SET account_id = EXCLUDED.account_id
		RETURNING *
	`, accountID)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

func (r *accountStatusRepo) SetPremium(ctx context.Context, accountID int64, premium bool, expiresAt *time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE account_status SET premium = $2, premium_expires_at = $3, updated_at = $4
		WHERE account_id = $1
	`, accountID, premium, expiresAt, time.Now())
	return err
}

func (r *accountStatusRepo) SetQueueCount(ctx context.Context, accountID int64, count int, checkedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE account_status SET queue_count = $2, last_queue_check_at = $3, updated_at = $4
		WHERE account_id = $1
	`, accountID, count, checkedAt, time.Now())
	return err
}

func (r *accountStatusRepo) SetBioUpdated(ctx context.Context, accountID int64, updated bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE account_status SET bio_updated = $2, updated_at = $3 WHERE account_id = $1
	`, accountID, updated, time.Now())
	return err
}

func (r *accountStatusRepo) SetPromptsUpdated(ctx context.Context, accountID int64, updated bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE account_status SET prompts_updated = $2, updated_at = $3 WHERE account_id = $1
	`, accountID, updated, time.Now())
	return err
}

func (r *accountStatusRepo) SetPhase(ctx context.Context, accountID int64, phase model.SessionPhase) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE account_status SET current_phase = $2, updated_at = $3 WHERE account_id = $1
	`, accountID, phase, time.Now())
	return err
}

func (r *accountStatusRepo) MarkSessionStart(ctx context.Context, accountID int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE account_status SET
			last_session_start = $2,
			session_likes = 0,
			updated_at = $3
		WHERE account_id = $1
	`, accountID, at, time.Now())
	return err
}

func (r *accountStatusRepo) MarkSessionEnd(ctx context.Context, accountID int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE account_status SET
			last_session_end = $2,
			current_phase = NULL,
			updated_at = $3
		WHERE account_id = $1
	`, accountID, at, time.Now())
	return err
}

func (r *accountStatusRepo) SetConsecutiveErrors(ctx context.Context, accountID int64, n int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE account_status SET consecutive_errors = $2, updated_at = $3 WHERE account_id = $1
	`, accountID, n, time.Now())
	return err
}
