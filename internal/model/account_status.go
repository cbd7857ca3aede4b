package model

import (
	"time"
)

// AccountStatus caches remote state for one account so the orchestrator can
// decide whether a session is worth starting without extra wire calls.
type AccountStatus struct {
	AccountID         int64        `db:"account_id" json:"accountId"`
	Premium           bool         `db:"premium" json:"premium"`
	PremiumExpiresAt  *time.Time   `db:"premium_expires_at" json:"premiumExpiresAt,omitempty"`
	QueueCount        int          `db:"queue_count" json:"queueCount"`
	LastQueueCheckAt  *time.Time   `db:"last_queue_check_at" json:"lastQueueCheckAt,omitempty"`
	BioUpdated        bool         `db:"bio_updated" json:"bioUpdated"`
	PromptsUpdated    bool         `db:"prompts_updated" json:"promptsUpdated"`
	CurrentPhase      SessionPhase `db:"current_phase" json:"currentPhase"`
	SessionLikes      int          `db:"session_likes" json:"sessionLikes"`
	ConsecutiveErrors int          `db:"consecutive_errors" json:"consecutiveErrors"`
	LastSessionStart  *time.Time   `db:"last_session_start" json:"lastSessionStart,omitempty"`
	LastSessionEnd    *time.Time   `db:"last_session_end" json:"lastSessionEnd,omitempty"`
	UpdatedAt         time.Time    `db:"updated_at" json:"updatedAt"`
}

// QueueCheckedToday reports whether the cached queue count was refreshed on
// the current calendar date in the given location. The dedup is deliberately
// account-local: "today" follows the account's assigned timezone.
func (s *AccountStatus) QueueCheckedToday(now time.Time, loc *time.Location) bool {
	if s.LastQueueCheckAt == nil {
		return false
	}
	y1, m1, d1 := s.LastQueueCheckAt.In(loc).Date()
	y2, m2, d2 := now.In(loc).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
