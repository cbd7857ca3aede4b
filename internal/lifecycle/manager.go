// Package lifecycle decides which accounts are eligible to start a session
// and records status transitions.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/swipekit/swipekit/internal/audit"
	"github.com/swipekit/swipekit/internal/config"
	"github.com/swipekit/swipekit/internal/metrics"
	"github.com/swipekit/swipekit/internal/model"
	"github.com/swipekit/swipekit/internal/repository"
)

// Counter is the Redis surface the readiness predicate reads.
type Counter interface {
	DailyLikes(ctx context.Context, accountID int64, localDate string) (int64, error)
}

type Manager struct {
	cfg       *config.Config
	accounts  repository.AccountRepository
	status    repository.AccountStatusRepository
	sessions  repository.SessionRepository
	counter   Counter
	collector *metrics.Collector
	log       zerolog.Logger
	now       func() time.Time
}

func NewManager(cfg *config.Config, accounts repository.AccountRepository, status repository.AccountStatusRepository, sessions repository.SessionRepository, counter Counter, collector *metrics.Collector, logger zerolog.Logger) *Manager {
	return &Manager{
		cfg:       cfg,
		accounts:  accounts,
		status:    status,
		sessions:  sessions,
		counter:   counter,
		collector: collector,
		log:       logger,
		now:       time.Now,
	}
}

// SelectReady returns the active accounts that pass the readiness predicate,
// in storage order. Accounts whose status row cannot be loaded are skipped,
// not failed: one broken row must not stall the whole cycle.
func (m *Manager) SelectReady(ctx context.Context) ([]model.Account, error) {
	active, err := m.accounts.FindByStatus(ctx, model.LifecycleActive)
	if err != nil {
		return nil, fmt.Errorf("list active accounts: %w", err)
	}

	ready := make([]model.Account, 0, len(active))
	for i := range active {
		account := &active[i]
		status, err := m.status.Ensure(ctx, account.ID)
		if err != nil {
			m.log.Warn().Err(err).Int64("account_id", account.ID).Msg("failed to load account status, skipping")
			continue
		}
		ok, reason := m.Ready(ctx, account, status)
		if !ok {
			m.log.Debug().Int64("account_id", account.ID).Str("reason", reason).Msg("account not ready")
			continue
		}
		ready = append(ready, *account)
	}
	return ready, nil
}

// Ready applies the readiness predicate for one account. The returned reason
// explains a false result.
//
// A cached queue count above zero short-circuits the time-window and
// cooldown checks: accounts with pending likes are always worth a session.
func (m *Manager) Ready(ctx context.Context, account *model.Account, status *model.AccountStatus) (bool, string) {
	now := m.now()
	loc := m.location(account)

	used, err := m.counter.DailyLikes(ctx, account.ID, now.In(loc).Format("2006-01-02"))
	if err != nil {
		// Cold or unreachable counter. Rebuild today's usage from the
		// session rows so the daily cap still holds.
		used = int64(m.likesSinceMidnight(ctx, account, now, loc))
	}
	if int(used) >= m.cfg.MaxLikesPerDay {
		return false, "daily like limit reached"
	}

	if status.QueueCount > 0 {
		return true, ""
	}

	if !m.inSwipeWindow(now, loc) {
		return false, "outside swipe hours"
	}

	if status.LastSessionEnd != nil && now.Sub(*status.LastSessionEnd) < m.cfg.BetweenSessionMin() {
		return false, "session cooldown"
	}

	if account.SessionCount > config.MinSessionsForErrorRate && account.ErrorRate() > m.cfg.MaxErrorRate {
		return false, fmt.Sprintf("error rate %.2f above limit", account.ErrorRate())
	}

	if status.QueueCheckedToday(now, loc) {
		return false, "queue already checked today"
	}
	return true, ""
}

// Transition moves an account to a new status and emits the audit trail.
// reason must be human readable: it is the operator-facing explanation for
// why the account left rotation.
func (m *Manager) Transition(ctx context.Context, account *model.Account, to model.AccountLifecycle, reason string) error {
	updated, err := m.accounts.UpdateStatus(ctx, account.ID, to)
	if err != nil {
		return fmt.Errorf("transition account %d to %s: %w", account.ID, to, err)
	}

	eventType := audit.EventAccountReactivate
	switch to {
	case model.LifecycleBanned:
		eventType = audit.EventAccountBanned
		if m.collector != nil {
			m.collector.IncBans()
		}
	case model.LifecycleDead:
		eventType = audit.EventAccountDead
	}
	audit.Log(ctx, audit.Event{
		Type:      eventType,
		AccountID: account.ID,
		Reason:    reason,
		Details: map[string]interface{}{
			"from": string(account.Status),
			"to":   string(to),
		},
	})

	account.Status = updated.Status
	return nil
}

// PublishCounts refreshes the per-status account gauge.
func (m *Manager) PublishCounts(ctx context.Context) {
	if m.collector == nil {
		return
	}
	counts, err := m.accounts.CountByStatus(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("failed to count accounts by status")
		return
	}
	for _, state := range []model.AccountLifecycle{model.LifecycleActive, model.LifecycleBanned, model.LifecycleDead, model.LifecycleCooldown} {
		m.collector.SetAccountState(string(state), counts[state])
	}
}

// likesSinceMidnight sums likes from session rows started since local
// midnight. Fallback path for when the Redis counter is unavailable.
func (m *Manager) likesSinceMidnight(ctx context.Context, account *model.Account, now time.Time, loc *time.Location) int {
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	likes, err := m.sessions.LikesSince(ctx, account.ID, midnight)
	if err != nil {
		m.log.Warn().Err(err).Int64("account_id", account.ID).Msg("daily like usage unavailable, assuming zero")
		return 0
	}
	m.log.Warn().Int64("account_id", account.ID).Int("likes", likes).Msg("daily like counter unavailable, rebuilt from session rows")
	return likes
}

func (m *Manager) location(account *model.Account) *time.Location {
	loc, err := time.LoadLocation(account.Timezone)
	if err == nil {
		return loc
	}
	if _, lon, ok := account.Location(); ok {
		if loc, err = time.LoadLocation(TimezoneForLongitude(lon)); err == nil {
			return loc
		}
	}
	return time.UTC
}

func (m *Manager) inSwipeWindow(now time.Time, loc *time.Location) bool {
	start, end, err := m.cfg.SwipeWindow()
	if err != nil {
		m.log.Warn().Err(err).Msg("bad swipe hours config, allowing all hours")
		return true
	}
	hour := now.In(loc).Hour()
	if start <= end {
		return hour >= start && hour <= end
	}
	// Window wraps midnight, e.g. "22-2".
	return hour >= start || hour <= end
}
