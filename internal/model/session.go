package model

import (
	"time"
)

type Session struct {
	ID           int64      `db:"id" json:"id"`
	ExternalID   string     `db:"external_id" json:"externalId"`
	AccountID    int64      `db:"account_id" json:"accountId"`
	StartedAt    time.Time  `db:"started_at" json:"startedAt"`
	EndedAt      *time.Time `db:"ended_at" json:"endedAt,omitempty"`
	DurationSecs *int       `db:"duration_secs" json:"durationSecs,omitempty"`
	Requests     int        `db:"requests" json:"requests"`
	Likes        int        `db:"likes" json:"likes"`
	Passes       int        `db:"passes" json:"passes"`
	Matches      int        `db:"matches" json:"matches"`
	Errors       int        `db:"errors" json:"errors"`
	QualityScore *float64   `db:"quality_score" json:"qualityScore,omitempty"`
	FinalPhase   *string    `db:"final_phase" json:"finalPhase,omitempty"`
}

// SessionStats is the in-memory tally a running session accumulates. It is a
// value owned by exactly one orchestrator instance and merged into the
// Session row at finalization.
type SessionStats struct {
	Requests       int
	Likes          int
	Passes         int
	Matches        int
	Errors         int
	UsersProcessed int
	PhasesRun      []SessionPhase
}

func (s *SessionStats) Merge(other SessionStats) {
	s.Requests += other.Requests
	s.Likes += other.Likes
	s.Passes += other.Passes
	s.Matches += other.Matches
	s.Errors += other.Errors
	s.UsersProcessed += other.UsersProcessed
}
