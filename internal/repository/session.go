package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/swipekit/swipekit/internal/model"
)

type FinalizeSessionParams struct {
	Requests     int
	Likes        int
	Passes       int
	Matches      int
	Errors       int
	QualityScore float64
	FinalPhase   model.SessionPhase
}

type SessionRepository interface {
	FindByID(ctx context.Context, id int64) (*model.Session, error)
	FindRecent(ctx context.Context, accountID int64, limit int) ([]model.Session, error)
	Create(ctx context.Context, accountID int64, externalID string, startedAt time.Time) (*model.Session, error)
	Finalize(ctx context.Context, id int64, endedAt time.Time, params FinalizeSessionParams) (*model.Session, error)
	LikesSince(ctx context.Context, accountID int64, since time.Time) (int, error)
	CountToday(ctx context.Context, accountID int64, dayStart time.Time) (int, error)
}

type sessionRepo struct {
	db sqlxDB
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) FindByID(ctx context.Context, id int64) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM sessions WHERE id = $1
	`, id)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) FindRecent(ctx context.Context, accountID int64, limit int) ([]model.Session, error) {
	var sessions []model.Session
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT * FROM sessions
		WHERE account_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`, accountID, limit)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepo) Create(ctx context.Context, accountID int64, externalID string, startedAt time.Time) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO sessions (account_id, external_id, started_at)
		VALUES ($1, $2, $3)
		RETURNING *
	`, accountID, externalID, startedAt)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) Finalize(ctx context.Context, id int64, endedAt time.Time, params FinalizeSessionParams) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		UPDATE sessions SET
			ended_at = $2,
			duration_secs = EXTRACT(EPOCH FROM ($2 - started_at))::int,
			requests = $3,
			likes = $4,
			passes = $5,
			matches = $6,
			errors = $7,
			quality_score = $8,
			final_phase = $9
		WHERE id = $1
		RETURNING *
	`, id, endedAt, params.Requests, params.Likes, params.Passes, params.Matches,
		params.Errors, params.QualityScore, params.FinalPhase)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) LikesSince(ctx context.Context, accountID int64, since time.Time) (int, error) {
	var likes int
	err := r.db.GetContext(ctx, &likes, `
		SELECT COALESCE(SUM(likes), 0) FROM sessions
		WHERE account_id = $1 AND started_at >= $2
	`, accountID, since)
	return likes, err
}

func (r *sessionRepo) CountToday(ctx context.Context, accountID int64, dayStart time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM sessions
		WHERE account_id = $1 AND started_at >= $2
	`, accountID, dayStart)
	return count, err
}
