package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swipekit/swipekit/internal/config"
	"github.com/swipekit/swipekit/internal/model"
	"github.com/swipekit/swipekit/internal/repository"
)

type mockCounter struct {
	used int64
	err  error
}

func (m *mockCounter) DailyLikes(ctx context.Context, accountID int64, localDate string) (int64, error) {
	return m.used, m.err
}

type mockAccounts struct {
	repository.AccountRepository
	active        []model.Account
	statusUpdates []model.AccountLifecycle
	created       []model.CreateAccountParams
}

func (m *mockAccounts) FindByStatus(ctx context.Context, status model.AccountLifecycle) ([]model.Account, error) {
	return m.active, nil
}

func (m *mockAccounts) UpdateStatus(ctx context.Context, id int64, status model.AccountLifecycle) (*model.Account, error) {
	m.statusUpdates = append(m.statusUpdates, status)
	return &model.Account{ID: id, Status: status}, nil
}

func (m *mockAccounts) Create(ctx context.Context, params model.CreateAccountParams) (*model.Account, error) {
	m.created = append(m.created, params)
	return &model.Account{ID: int64(len(m.created)), Timezone: params.Timezone}, nil
}

func (m *mockAccounts) UpdateTokens(ctx context.Context, id int64, authToken, refreshToken string) (*model.Account, error) {
	return &model.Account{ID: id, AuthToken: authToken, RefreshToken: refreshToken}, nil
}

func (m *mockAccounts) SetRemoteUserID(ctx context.Context, id int64, remoteUserID string) error {
	return nil
}

type mockSessionRepo struct {
	repository.SessionRepository
	likes    int
	likesErr error
	since    time.Time
}

func (m *mockSessionRepo) LikesSince(ctx context.Context, accountID int64, since time.Time) (int, error) {
	m.since = since
	return m.likes, m.likesErr
}

type mockStatusRepo struct {
	repository.AccountStatusRepository
	rows map[int64]*model.AccountStatus
}

func (m *mockStatusRepo) Ensure(ctx context.Context, accountID int64) (*model.AccountStatus, error) {
	if row, ok := m.rows[accountID]; ok {
		return row, nil
	}
	return &model.AccountStatus{AccountID: accountID}, nil
}

func lifecycleConfig() *config.Config {
	return &config.Config{
		MaxLikesPerDay:        80,
		MaxErrorRate:          0.3,
		BetweenSessionMinSecs: 900,
		SwipeHours:            "9-23",
	}
}

func newTestManager(cfg *config.Config, counter *mockCounter) (*Manager, *mockAccounts, *mockStatusRepo) {
	accounts := &mockAccounts{}
	status := &mockStatusRepo{rows: map[int64]*model.AccountStatus{}}
	m := NewManager(cfg, accounts, status, &mockSessionRepo{}, counter, nil, zerolog.Nop())
	return m, accounts, status
}

// noonUTC pins the predicate clock inside the default swipe window.
var noonUTC = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func activeAccount() *model.Account {
	return &model.Account{ID: 1, Timezone: "UTC", Status: model.LifecycleActive}
}

func TestReady(t *testing.T) {
	ctx := context.Background()

	t.Run("rested account inside the window is ready", func(t *testing.T) {
		m, _, _ := newTestManager(lifecycleConfig(), &mockCounter{})
		m.now = func() time.Time { return noonUTC }

		ok, reason := m.Ready(ctx, activeAccount(), &model.AccountStatus{AccountID: 1})
		assert.True(t, ok, reason)
	})

	t.Run("daily like limit blocks even with a cached queue", func(t *testing.T) {
		m, _, _ := newTestManager(lifecycleConfig(), &mockCounter{used: 80})
		m.now = func() time.Time { return noonUTC }

		ok, reason := m.Ready(ctx, activeAccount(), &model.AccountStatus{QueueCount: 12})
		assert.False(t, ok)
		assert.Equal(t, "daily like limit reached", reason)
	})

	t.Run("cold daily counter rebuilds usage from session rows", func(t *testing.T) {
		sessions := &mockSessionRepo{likes: 80}
		m := NewManager(lifecycleConfig(), &mockAccounts{}, &mockStatusRepo{rows: map[int64]*model.AccountStatus{}}, sessions, &mockCounter{err: errors.New("redis down")}, nil, zerolog.Nop())
		m.now = func() time.Time { return noonUTC }

		ok, reason := m.Ready(ctx, activeAccount(), &model.AccountStatus{AccountID: 1})
		assert.False(t, ok)
		assert.Equal(t, "daily like limit reached", reason)
		assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), sessions.since)
	})

	t.Run("cold counter with headroom in the session rows stays ready", func(t *testing.T) {
		sessions := &mockSessionRepo{likes: 5}
		m := NewManager(lifecycleConfig(), &mockAccounts{}, &mockStatusRepo{rows: map[int64]*model.AccountStatus{}}, sessions, &mockCounter{err: errors.New("redis down")}, nil, zerolog.Nop())
		m.now = func() time.Time { return noonUTC }

		ok, reason := m.Ready(ctx, activeAccount(), &model.AccountStatus{AccountID: 1})
		assert.True(t, ok, reason)
	})

	t.Run("cached queue bypasses window and cooldown", func(t *testing.T) {
		m, _, _ := newTestManager(lifecycleConfig(), &mockCounter{})
		m.now = func() time.Time { return time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC) }

		recent := noonUTC.Add(-time.Minute)
		ok, _ := m.Ready(ctx, activeAccount(), &model.AccountStatus{QueueCount: 3, LastSessionEnd: &recent})
		assert.True(t, ok)
	})

	t.Run("outside swipe hours is not ready", func(t *testing.T) {
		m, _, _ := newTestManager(lifecycleConfig(), &mockCounter{})
		m.now = func() time.Time { return time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC) }

		ok, reason := m.Ready(ctx, activeAccount(), &model.AccountStatus{})
		assert.False(t, ok)
		assert.Equal(t, "outside swipe hours", reason)
	})

	t.Run("window wrapping midnight admits late hours", func(t *testing.T) {
		cfg := lifecycleConfig()
		cfg.SwipeHours = "22-2"
		m, _, _ := newTestManager(cfg, &mockCounter{})
		m.now = func() time.Time { return time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC) }

		ok, reason := m.Ready(ctx, activeAccount(), &model.AccountStatus{})
		assert.True(t, ok, reason)
	})

	t.Run("swipe hours follow the account timezone", func(t *testing.T) {
		m, _, _ := newTestManager(lifecycleConfig(), &mockCounter{})
		// 04:00 UTC is 13:00 in Tokyo.
		m.now = func() time.Time { return time.Date(2026, 3, 10, 4, 0, 0, 0, time.UTC) }

		account := activeAccount()
		account.Timezone = "Asia/Tokyo"
		ok, reason := m.Ready(ctx, account, &model.AccountStatus{})
		assert.True(t, ok, reason)
	})

	t.Run("recent session end forces a cooldown", func(t *testing.T) {
		m, _, _ := newTestManager(lifecycleConfig(), &mockCounter{})
		m.now = func() time.Time { return noonUTC }

		lastEnd := noonUTC.Add(-5 * time.Minute)
		ok, reason := m.Ready(ctx, activeAccount(), &model.AccountStatus{LastSessionEnd: &lastEnd})
		assert.False(t, ok)
		assert.Equal(t, "session cooldown", reason)
	})

	t.Run("high error rate blocks only with session history", func(t *testing.T) {
		m, _, _ := newTestManager(lifecycleConfig(), &mockCounter{})
		m.now = func() time.Time { return noonUTC }

		noisy := activeAccount()
		noisy.SessionCount = 10
		noisy.ErrorCount = 5
		ok, _ := m.Ready(ctx, noisy, &model.AccountStatus{})
		assert.False(t, ok)

		young := activeAccount()
		young.SessionCount = 3
		young.ErrorCount = 3
		ok, reason := m.Ready(ctx, young, &model.AccountStatus{})
		assert.True(t, ok, reason)
	})

	t.Run("queue already checked today defers until tomorrow", func(t *testing.T) {
		m, _, _ := newTestManager(lifecycleConfig(), &mockCounter{})
		m.now = func() time.Time { return noonUTC }

		checked := noonUTC.Add(-2 * time.Hour)
		ok, reason := m.Ready(ctx, activeAccount(), &model.AccountStatus{LastQueueCheckAt: &checked})
		assert.False(t, ok)
		assert.Equal(t, "queue already checked today", reason)

		yesterday := noonUTC.Add(-26 * time.Hour)
		ok, reason = m.Ready(ctx, activeAccount(), &model.AccountStatus{LastQueueCheckAt: &yesterday})
		assert.True(t, ok, reason)
	})

	t.Run("unknown timezone falls back to longitude", func(t *testing.T) {
		m, _, _ := newTestManager(lifecycleConfig(), &mockCounter{})
		// 04:00 UTC again, longitude in the Tokyo band.
		m.now = func() time.Time { return time.Date(2026, 3, 10, 4, 0, 0, 0, time.UTC) }

		lon := 139.7
		account := activeAccount()
		account.Timezone = "not-a-zone"
		account.Latitude = new(float64)
		account.Longitude = &lon
		ok, reason := m.Ready(ctx, account, &model.AccountStatus{})
		assert.True(t, ok, reason)
	})
}

func TestSelectReady(t *testing.T) {
	ctx := context.Background()

	m, accounts, statusRepo := newTestManager(lifecycleConfig(), &mockCounter{})
	m.now = func() time.Time { return noonUTC }

	recent := noonUTC.Add(-time.Minute)
	accounts.active = []model.Account{
		{ID: 1, Timezone: "UTC"},
		{ID: 2, Timezone: "UTC"},
	}
	statusRepo.rows[2] = &model.AccountStatus{AccountID: 2, LastSessionEnd: &recent}

	ready, err := m.SelectReady(ctx)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.Equal(t, int64(1), ready[0].ID)
}

func TestTransition(t *testing.T) {
	ctx := context.Background()

	m, accounts, _ := newTestManager(lifecycleConfig(), &mockCounter{})
	account := activeAccount()

	require.NoError(t, m.Transition(ctx, account, model.LifecycleBanned, "ban indicators detected"))
	assert.Equal(t, []model.AccountLifecycle{model.LifecycleBanned}, accounts.statusUpdates)
	assert.Equal(t, model.LifecycleBanned, account.Status)
}

func TestTimezoneForLongitude(t *testing.T) {
	cases := []struct {
		lon  float64
		zone string
	}{
		{-122.4, "America/Los_Angeles"},
		{-74.0, "America/New_York"},
		{-0.1, "Europe/London"},
		{20.0, "Europe/Berlin"},
		{139.7, "Asia/Tokyo"},
		{174.8, "Pacific/Auckland"},
		{500, "UTC"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.zone, TimezoneForLongitude(tc.lon), "lon %v", tc.lon)
	}
}
