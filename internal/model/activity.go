package model

import (
	"time"
)

type ActivityRecord struct {
	ID        int64        `db:"id" json:"id"`
	AccountID int64        `db:"account_id" json:"accountId"`
	SessionID *int64       `db:"session_id" json:"sessionId,omitempty"`
	Type      ActivityType `db:"activity_type" json:"type"`
	TargetID  *string      `db:"target_id" json:"targetId,omitempty"`
	Success   bool         `db:"success" json:"success"`
	TimingMS  int64        `db:"timing_ms" json:"timingMs"`
	Phase     *string      `db:"phase" json:"phase,omitempty"`
	Details   *string      `db:"details" json:"details,omitempty"`
	CreatedAt time.Time    `db:"created_at" json:"createdAt"`
}

type CreateActivityParams struct {
	AccountID int64
	SessionID *int64
	Type      ActivityType
	TargetID  *string
	Success   bool
	TimingMS  int64
	Phase     *string
	Details   *string
}

// RequestTimingRecord captures per-request latency and inter-request spacing
// for later analysis of traffic shape.
type RequestTimingRecord struct {
	ID            int64     `db:"id" json:"id"`
	AccountID     int64     `db:"account_id" json:"accountId"`
	SessionID     *int64    `db:"session_id" json:"sessionId,omitempty"`
	Operation     string    `db:"operation" json:"operation"`
	LatencyMS     int64     `db:"latency_ms" json:"latencyMs"`
	IntervalMS    *int64    `db:"interval_ms" json:"intervalMs,omitempty"`
	Burst         bool      `db:"burst" json:"burst"`
	BurstPosition int       `db:"burst_position" json:"burstPosition"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

type CreateRequestTimingParams struct {
	AccountID     int64
	SessionID     *int64
	Operation     string
	LatencyMS     int64
	IntervalMS    *int64
	Burst         bool
	BurstPosition int
}

// BanIndicator records a single signal that contributed to an account's ban
// score, kept for audit and threshold tuning.
type BanIndicator struct {
	ID        int64     `db:"id" json:"id"`
	AccountID int64     `db:"account_id" json:"accountId"`
	Indicator string    `db:"indicator" json:"indicator"`
	Severity  float64   `db:"severity" json:"severity"`
	HTTPCode  *int      `db:"http_code" json:"httpCode,omitempty"`
	Context   *string   `db:"context" json:"context,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type CreateBanIndicatorParams struct {
	AccountID int64
	Indicator string
	Severity  float64
	HTTPCode  *int
	Context   *string
}
