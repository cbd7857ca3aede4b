package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/swipekit/swipekit/internal/model"
)

type BanIndicatorRepository interface {
	Create(ctx context.Context, params model.CreateBanIndicatorParams) (*model.BanIndicator, error)
	FindRecent(ctx context.Context, accountID int64, limit int) ([]model.BanIndicator, error)
	SeveritySince(ctx context.Context, accountID int64, since time.Time) (float64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) BanIndicatorRepository
}

type banIndicatorRepo struct {
	db sqlxDB
}

func NewBanIndicatorRepository(db *sqlx.DB) BanIndicatorRepository {
	return &banIndicatorRepo{db: db}
}

func (r *banIndicatorRepo) WithTx(tx *sqlx.Tx) BanIndicatorRepository {
	return &banIndicatorRepo{db: tx}
}

func (r *banIndicatorRepo) Create(ctx context.Context, params model.CreateBanIndicatorParams) (*model.BanIndicator, error) {
	var indicator model.BanIndicator
	err := r.db.GetContext(ctx, &indicator, `
		INSERT INTO ban_indicators (account_id, indicator, severity, http_code, context)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, params.AccountID, params.Indicator, params.Severity, params.HTTPCode, params.Context)
	if err != nil {
		return nil, err
	}
	return &indicator, nil
}

func (r *banIndicatorRepo) FindRecent(ctx context.Context, accountID int64, limit int) ([]model.BanIndicator, error) {
	var indicators []model.BanIndicator
	err := r.db.SelectContext(ctx, &indicators, `
		SELECT * FROM ban_indicators
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, accountID, limit)
	if err != nil {
		return nil, err
	}
	return indicators, nil
}

func (r *banIndicatorRepo) SeveritySince(ctx context.Context, accountID int64, since time.Time) (float64, error) {
	var total float64
	err := r.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(severity), 0) FROM ban_indicators
		WHERE account_id = $1 AND created_at >= $2
	`, accountID, since)
	return total, err
}
