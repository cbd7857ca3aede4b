package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/swipekit/swipekit/internal/model"
)

type AccountRepository interface {
	FindByID(ctx context.Context, id int64) (*model.Account, error)
	FindByStatus(ctx context.Context, status model.AccountLifecycle) ([]model.Account, error)
	FindAll(ctx context.Context, limit, offset int) ([]model.Account, error)
	Create(ctx context.Context, params model.CreateAccountParams) (*model.Account, error)
	UpdateStatus(ctx context.Context, id int64, status model.AccountLifecycle) (*model.Account, error)
	UpdateTokens(ctx context.Context, id int64, authToken, refreshToken string) (*model.Account, error)
	UpdateBanScore(ctx context.Context, id int64, banScore float64) error
	RecordError(ctx context.Context, id int64, message string) error
	AddSessionTotals(ctx context.Context, id int64, requests, likes int64) error
	SetRemoteUserID(ctx context.Context, id int64, remoteUserID string) error
	CountByStatus(ctx context.Context) (map[model.AccountLifecycle]int, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) AccountRepository
}

type accountRepo struct {
	db sqlxDB
}

// sqlxDB is an interface satisfied by both *sqlx.DB and *sqlx.Tx
type sqlxDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func NewAccountRepository(db *sqlx.DB) AccountRepository {
	return &accountRepo{db: db}
}

func (r *accountRepo) WithTx(tx *sqlx.Tx) AccountRepository {
	return &accountRepo{db: tx}
}

func (r *accountRepo) FindByID(ctx context.Context, id int64) (*model.Account, error) {
	var account model.Account
	err := r.db.GetContext(ctx, &account, `
		SELECT * FROM accounts WHERE id = $1
	`, id)
	return HandleNotFound(&account, err)
}

func (r *accountRepo) FindByStatus(ctx context.Context, status model.AccountLifecycle) ([]model.Account, error) {
	var accounts []model.Account
	err := r.db.SelectContext(ctx, &accounts, `
		SELECT * FROM accounts
		WHERE status = $1
		ORDER BY created_at
	`, status)
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *accountRepo) FindAll(ctx context.Context, limit, offset int) ([]model.Account, error) {
	var accounts []model.Account
	err := r.db.SelectContext(ctx, &accounts, `
		SELECT * FROM accounts
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *accountRepo) Create(ctx context.Context, params model.CreateAccountParams) (*model.Account, error) {
	var account model.Account
	err := r.db.GetContext(ctx, &account, `
		INSERT INTO accounts (
			auth_token, refresh_token, device_id, persistent_device_id, install_id,
			advertising_id, proxy, assigned_city, assigned_name,
			latitude, longitude, timezone
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING *
	`, params.AuthToken, params.RefreshToken, params.DeviceID, params.PersistentDeviceID,
		params.InstallID, params.AdvertisingID, params.Proxy, params.AssignedCity,
		params.AssignedName, params.Latitude, params.Longitude, params.Timezone)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepo) UpdateStatus(ctx context.Context, id int64, status model.AccountLifecycle) (*model.Account, error) {
	var account model.Account
	err := r.db.GetContext(ctx, &account, `
		UPDATE accounts SET status = $2, updated_at = $3
		WHERE id = $1
		RETURNING *
	`, id, status, time.Now())
	return HandleNotFound(&account, err)
}

func (r *accountRepo) UpdateTokens(ctx context.Context, id int64, authToken, refreshToken string) (*model.Account, error) {
	var account model.Account
	err := r.db.GetContext(ctx, &account, `
		UPDATE accounts SET auth_token = $2, refresh_token = $3, updated_at = $4
		WHERE id = $1
		RETURNING *
	`, id, authToken, refreshToken, time.Now())
	return HandleNotFound(&account, err)
}

func (r *accountRepo) UpdateBanScore(ctx context.Context, id int64, banScore float64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET ban_score = $2, updated_at = $3 WHERE id = $1
	`, id, banScore, time.Now())
	return err
}

func (r *accountRepo) RecordError(ctx context.Context, id int64, message string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET
			error_count = error_count + 1,
			last_error = $2,
			last_error_at = $3,
			updated_at = $3
		WHERE id = $1
	`, id, message, time.Now())
	return err
}

func (r *accountRepo) AddSessionTotals(ctx context.Context, id int64, requests, likes int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET
			session_count = session_count + 1,
			total_requests = total_requests + $2,
			total_likes = total_likes + $3,
			updated_at = $4
		WHERE id = $1
	`, id, requests, likes, time.Now())
	return err
}

func (r *accountRepo) SetRemoteUserID(ctx context.Context, id int64, remoteUserID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET remote_user_id = $2, updated_at = $3 WHERE id = $1
	`, id, remoteUserID, time.Now())
	return err
}

func (r *accountRepo) CountByStatus(ctx context.Context) (map[model.AccountLifecycle]int, error) {
	var rows []struct {
		Status model.AccountLifecycle `db:"status"`
		Count  int                    `db:"count"`
	}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT status, COUNT(*) AS count FROM accounts GROUP BY status
	`)
	if err != nil {
		return nil, err
	}
	counts := make(map[model.AccountLifecycle]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
