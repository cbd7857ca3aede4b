package detect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swipekit/swipekit/internal/wire"
)

type mockRefresher struct {
	result *wire.LoginResult
	err    error
	calls  int
}

func (m *mockRefresher) RefreshLogin(ctx context.Context) (*wire.LoginResult, error) {
	m.calls++
	return m.result, m.err
}

func testClassifier() *Classifier {
	return NewClassifier(0.8, 5, zerolog.Nop())
}

func TestClassify(t *testing.T) {
	ctx := context.Background()

	t.Run("forbidden marks the account banned", func(t *testing.T) {
		a := testClassifier().Classify(ctx, &wire.Result{Status: wire.StatusForbidden, HTTPCode: 403}, nil, 0)
		assert.Equal(t, ActionMarkBanned, a.Action)
		assert.Equal(t, 1.0, a.BanScoreDelta)
	})

	t.Run("auth expired retries once after successful refresh", func(t *testing.T) {
		refresher := &mockRefresher{result: &wire.LoginResult{Success: true, AuthToken: "new"}}
		a := testClassifier().Classify(ctx, &wire.Result{Status: wire.StatusAuthExpired, HTTPCode: 401}, refresher, 0)
		assert.Equal(t, ActionRetryOnce, a.Action)
		assert.Equal(t, 1, refresher.calls)
	})

	t.Run("auth expired marks dead when refresh fails", func(t *testing.T) {
		refresher := &mockRefresher{err: errors.New("connection reset")}
		a := testClassifier().Classify(ctx, &wire.Result{Status: wire.StatusAuthExpired, HTTPCode: 401}, refresher, 0)
		assert.Equal(t, ActionMarkDead, a.Action)
	})

	t.Run("auth expired marks dead when refresh is rejected", func(t *testing.T) {
		refresher := &mockRefresher{result: &wire.LoginResult{Success: false, ErrorMessage: "bad token"}}
		a := testClassifier().Classify(ctx, &wire.Result{Status: wire.StatusAuthExpired, HTTPCode: 401}, refresher, 0)
		assert.Equal(t, ActionMarkDead, a.Action)
	})

	t.Run("rate limit sleeps the server hint", func(t *testing.T) {
		a := testClassifier().Classify(ctx, &wire.Result{
			Status:     wire.StatusRateLimited,
			HTTPCode:   429,
			RetryAfter: 90 * time.Second,
		}, nil, 0)
		assert.Equal(t, ActionSleepThenRetry, a.Action)
		assert.Equal(t, 90*time.Second, a.Sleep)
		assert.False(t, a.CountsAsError)
	})

	t.Run("rate limit without hint uses the default sleep", func(t *testing.T) {
		a := testClassifier().Classify(ctx, &wire.Result{Status: wire.StatusRateLimited, HTTPCode: 429}, nil, 0)
		assert.Equal(t, DefaultRateLimitSleep, a.Sleep)
	})

	t.Run("server errors back off until the ceiling aborts the session", func(t *testing.T) {
		c := testClassifier()
		a := c.Classify(ctx, &wire.Result{Status: wire.StatusServerError, HTTPCode: 503}, nil, 1)
		assert.Equal(t, ActionRetryWithBackoff, a.Action)

		a = c.Classify(ctx, &wire.Result{Status: wire.StatusServerError, HTTPCode: 503}, nil, 4)
		assert.Equal(t, ActionAbortSession, a.Action)
	})

	t.Run("nil result is a transport failure", func(t *testing.T) {
		a := testClassifier().Classify(ctx, nil, nil, 0)
		assert.Equal(t, ActionRetryWithBackoff, a.Action)
	})

	t.Run("clean success body yields no action", func(t *testing.T) {
		a := testClassifier().Classify(ctx, &wire.Result{
			Status:   wire.StatusOK,
			HTTPCode: 200,
			Body:     []byte(`{"data":{"count":3}}`),
		}, nil, 0)
		assert.Equal(t, ActionNone, a.Action)
		assert.Zero(t, a.BanScoreDelta)
	})

	t.Run("disable phrase in a successful body always bans", func(t *testing.T) {
		a := testClassifier().Classify(ctx, &wire.Result{
			Status:   wire.StatusOK,
			HTTPCode: 200,
			Body:     []byte(`{"error":"ACCOUNT_DISABLED"}`),
		}, nil, 0)
		assert.Equal(t, ActionMarkBanned, a.Action)
		assert.GreaterOrEqual(t, a.BanScoreDelta, 0.8)
	})

	t.Run("empty body alone stays below the threshold", func(t *testing.T) {
		a := testClassifier().Classify(ctx, &wire.Result{Status: wire.StatusOK, HTTPCode: 200, Body: []byte(`{}`)}, nil, 0)
		assert.Equal(t, ActionNone, a.Action)
		assert.Equal(t, emptyBodySeverity, a.BanScoreDelta)
	})
}

func TestScanBody(t *testing.T) {
	t.Run("weak indicators accumulate additively", func(t *testing.T) {
		score, indicators := ScanBody([]byte(`{"status":"temporarily_unavailable","retry":"rate_limited_until"}`))
		// 0.7 soft phrase + 0.5 rate limiting.
		assert.InDelta(t, 1.2, score, 1e-9)
		require.Len(t, indicators, 2)
	})

	t.Run("rate limit phrases count once", func(t *testing.T) {
		score, _ := ScanBody([]byte(`{"a":"rate_limited_until","b":"too_many_requests"}`))
		assert.InDelta(t, rateLimitSeverity, score, 1e-9)
	})

	t.Run("phrase match is case insensitive", func(t *testing.T) {
		score, _ := ScanBody([]byte(`{"reason":"APPEAL_BAN"}`))
		assert.Equal(t, 1.0, score)
	})
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Second, Backoff(0))
	assert.Equal(t, 2*time.Second, Backoff(1))
	assert.Equal(t, 4*time.Second, Backoff(2))
}
