package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/swipekit/swipekit/internal/model"
)

type RequestTimingRepository interface {
	Create(ctx context.Context, params model.CreateRequestTimingParams) (*model.RequestTimingRecord, error)
	CreateBatch(ctx context.Context, batch []model.CreateRequestTimingParams) error
}

type requestTimingRepo struct {
	db sqlxDB
}

func NewRequestTimingRepository(db *sqlx.DB) RequestTimingRepository {
	return &requestTimingRepo{db: db}
}

func (r *requestTimingRepo) Create(ctx context.Context, params model.CreateRequestTimingParams) (*model.RequestTimingRecord, error) {
	var record model.RequestTimingRecord
	err := r.db.GetContext(ctx, &record, `
		INSERT INTO request_timings (
			account_id, session_id, operation, latency_ms,
			interval_ms, burst, burst_position
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING *
	`, params.AccountID, params.SessionID, params.Operation, params.LatencyMS,
		params.IntervalMS, params.Burst, params.BurstPosition)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// CreateBatch inserts timing rows one at a time inside the caller's
// transaction boundary. Batches are small (one pattern execution).
func (r *requestTimingRepo) CreateBatch(ctx context.Context, batch []model.CreateRequestTimingParams) error {
	for _, params := range batch {
		if _, err := r.Create(ctx, params); err != nil {
			return err
		}
	}
	return nil
}
