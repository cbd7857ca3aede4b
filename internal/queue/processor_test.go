package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swipekit/swipekit/internal/detect"
	"github.com/swipekit/swipekit/internal/model"
	"github.com/swipekit/swipekit/internal/pattern"
	"github.com/swipekit/swipekit/internal/timing"
	"github.com/swipekit/swipekit/internal/wire"
)

type mockDelayer struct {
	sleeps   int
	betweens int
	classed  []timing.Class
}

func (m *mockDelayer) Sleep(ctx context.Context, d time.Duration) error {
	m.sleeps++
	return ctx.Err()
}

func (m *mockDelayer) DelayBetween(ctx context.Context, min, max time.Duration) (time.Duration, error) {
	m.betweens++
	return min, ctx.Err()
}

func (m *mockDelayer) Delay(ctx context.Context, class timing.Class, factor float64) (time.Duration, error) {
	m.classed = append(m.classed, class)
	return 0, ctx.Err()
}

type mockQueueClient struct {
	wire.Client
	total       int
	pages       [][]wire.LikedMeItem
	pageCursor  int
	likeResults map[string]wire.LikeOutcome
	likeCalls   []string
	passCalls   []string
	updateCalls int
	likeStatus  wire.Status
}

func (m *mockQueueClient) LikedMeCount(ctx context.Context) (int, *wire.Result, error) {
	return m.total, &wire.Result{Status: wire.StatusOK, HTTPCode: 200}, nil
}

func (m *mockQueueClient) LikedMePage(ctx context.Context, pageSize int, pageToken string) (*wire.LikedMePage, *wire.Result, error) {
	var items []wire.LikedMeItem
	if m.pageCursor < len(m.pages) {
		items = m.pages[m.pageCursor]
		m.pageCursor++
	}
	return &wire.LikedMePage{Items: items}, &wire.Result{Status: wire.StatusOK, HTTPCode: 200}, nil
}

func (m *mockQueueClient) Like(ctx context.Context, targetID string) (*wire.LikeResult, error) {
	m.likeCalls = append(m.likeCalls, targetID)
	status := m.likeStatus
	if status == "" {
		status = wire.StatusOK
	}
	outcome, ok := m.likeResults[targetID]
	if !ok {
		outcome = wire.LikeOutcomeLiked
	}
	return &wire.LikeResult{
		Result:  wire.Result{Status: status, HTTPCode: 200, Body: []byte(`{"ok":true}`)},
		Outcome: outcome,
	}, nil
}

func (m *mockQueueClient) Pass(ctx context.Context, targetID string) (*wire.Result, error) {
	m.passCalls = append(m.passCalls, targetID)
	return &wire.Result{Status: wire.StatusOK, HTTPCode: 200, Body: []byte(`{"ok":true}`)}, nil
}

func (m *mockQueueClient) GetUpdates(ctx context.Context, includeNudge bool) (*wire.Result, error) {
	m.updateCalls++
	return &wire.Result{Status: wire.StatusOK, HTTPCode: 200, Body: []byte(`{}`)}, nil
}

func (m *mockQueueClient) RefreshLogin(ctx context.Context) (*wire.LoginResult, error) {
	return &wire.LoginResult{Success: false}, nil
}

func items(from, to int) []wire.LikedMeItem {
	var out []wire.LikedMeItem
	for i := from; i <= to; i++ {
		out = append(out, wire.LikedMeItem{UserID: fmt.Sprintf("user-%d", i)})
	}
	return out
}

func newTestProcessor(client *mockQueueClient, processAll bool) (*Processor, *mockDelayer) {
	return newCustomProcessor(client, Config{ProcessAll: processAll})
}

func newCustomProcessor(client *mockQueueClient, cfg Config) (*Processor, *mockDelayer) {
	delayer := &mockDelayer{}
	classifier := detect.NewClassifier(0.8, 5, zerolog.Nop())
	if cfg.PageSize == 0 {
		cfg.PageSize = 10
	}
	cfg.DelayAfterPageFetch = time.Millisecond
	cfg.LikeDelayMin = time.Millisecond
	cfg.LikeDelayMax = 2 * time.Millisecond
	return NewProcessor(client, delayer, classifier, cfg, zerolog.Nop()), delayer
}

func breakCount(delayer *mockDelayer) int {
	n := 0
	for _, c := range delayer.classed {
		if c == timing.ClassBreak {
			n++
		}
	}
	return n
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	farFuture := time.Now().Add(time.Hour)

	t.Run("like budget stops processing and write-back subtracts processed", func(t *testing.T) {
		client := &mockQueueClient{
			total: 25,
			pages: [][]wire.LikedMeItem{items(1, 10), items(11, 20), items(21, 25)},
		}
		processor, _ := newTestProcessor(client, true)

		stats, err := processor.Run(ctx, 10, farFuture, &pattern.Progress{})
		require.NoError(t, err)

		assert.Equal(t, 10, stats.LikesSent)
		assert.Equal(t, 10, stats.UsersProcessed)
		assert.Equal(t, 25, stats.TotalAvailable)
		assert.Equal(t, 15, stats.RemainingEstimate)
		assert.Len(t, client.likeCalls, 10)
	})

	t.Run("all-duplicate page terminates as exhaustion", func(t *testing.T) {
		same := items(1, 5)
		client := &mockQueueClient{
			total: 40,
			pages: [][]wire.LikedMeItem{same, same, same},
		}
		processor, _ := newTestProcessor(client, true)

		stats, err := processor.Run(ctx, 100, farFuture, &pattern.Progress{})
		require.NoError(t, err)

		assert.Equal(t, 5, stats.UsersProcessed)
		assert.Equal(t, 35, stats.RemainingEstimate)
		assert.Len(t, client.likeCalls, 5)
	})

	t.Run("repeated profile within one page is swiped once", func(t *testing.T) {
		page := []wire.LikedMeItem{
			{UserID: "user-1"},
			{UserID: "user-1"},
			{UserID: "user-2"},
		}
		client := &mockQueueClient{
			total: 3,
			pages: [][]wire.LikedMeItem{page},
		}
		processor, _ := newTestProcessor(client, true)

		stats, err := processor.Run(ctx, 100, farFuture, &pattern.Progress{})
		require.NoError(t, err)

		assert.Equal(t, []string{"user-1", "user-2"}, client.likeCalls)
		assert.Equal(t, 2, stats.UsersProcessed)
	})

	t.Run("match triggers an immediate updates refresh", func(t *testing.T) {
		client := &mockQueueClient{
			total:       3,
			pages:       [][]wire.LikedMeItem{items(1, 3)},
			likeResults: map[string]wire.LikeOutcome{"user-2": wire.LikeOutcomeMatched},
		}
		processor, _ := newTestProcessor(client, true)

		stats, err := processor.Run(ctx, 100, farFuture, &pattern.Progress{})
		require.NoError(t, err)

		assert.Equal(t, 1, stats.MatchesGained)
		assert.Equal(t, 3, stats.LikesSent)
		assert.Equal(t, 1, client.updateCalls)
	})

	t.Run("process-all disabled stops after one page", func(t *testing.T) {
		client := &mockQueueClient{
			total: 20,
			pages: [][]wire.LikedMeItem{items(1, 10), items(11, 20)},
		}
		processor, _ := newTestProcessor(client, false)

		stats, err := processor.Run(ctx, 100, farFuture, &pattern.Progress{})
		require.NoError(t, err)

		assert.Equal(t, 10, stats.UsersProcessed)
		assert.Equal(t, 10, stats.RemainingEstimate)
	})

	t.Run("past end time processes nothing", func(t *testing.T) {
		client := &mockQueueClient{total: 10, pages: [][]wire.LikedMeItem{items(1, 10)}}
		processor, _ := newTestProcessor(client, true)

		stats, err := processor.Run(ctx, 100, time.Now().Add(-time.Second), &pattern.Progress{})
		require.NoError(t, err)

		assert.Zero(t, stats.UsersProcessed)
		assert.Empty(t, client.likeCalls)
	})

	t.Run("failed likes count as errors and do not delay", func(t *testing.T) {
		client := &mockQueueClient{
			total: 2,
			pages: [][]wire.LikedMeItem{items(1, 2)},
			likeResults: map[string]wire.LikeOutcome{
				"user-1": wire.LikeOutcomeFailed,
			},
		}
		processor, delayer := newTestProcessor(client, true)

		stats, err := processor.Run(ctx, 100, farFuture, &pattern.Progress{})
		require.NoError(t, err)

		assert.Equal(t, 1, stats.Errors)
		assert.Equal(t, 1, stats.LikesSent)
		// One between-likes delay for the single successful like.
		assert.Equal(t, 1, delayer.betweens)
	})

	t.Run("forbidden like halts with terminal assessment", func(t *testing.T) {
		client := &mockQueueClient{
			total:      5,
			pages:      [][]wire.LikedMeItem{items(1, 5)},
			likeStatus: wire.StatusForbidden,
		}
		processor, _ := newTestProcessor(client, true)

		stats, err := processor.Run(ctx, 100, farFuture, &pattern.Progress{})
		require.NoError(t, err)

		require.NotNil(t, stats.Terminal)
		assert.Equal(t, detect.ActionMarkBanned, stats.Terminal.Action)
		assert.Len(t, client.likeCalls, 1)
		// The forbidden response also lands in the detection accumulators
		// so the score survives the session even without a ban.
		assert.InDelta(t, 1.0, stats.BanScore, 0.001)
		require.NotEmpty(t, stats.Indicators)
		assert.Equal(t, "http_403", stats.Indicators[0].Name)
	})

	t.Run("like percentage routes the remainder to passes", func(t *testing.T) {
		client := &mockQueueClient{
			total: 30,
			pages: [][]wire.LikedMeItem{items(1, 10), items(11, 20), items(21, 30)},
		}
		processor, _ := newCustomProcessor(client, Config{ProcessAll: true, LikePercent: 1})

		stats, err := processor.Run(ctx, 100, farFuture, &pattern.Progress{})
		require.NoError(t, err)

		assert.Equal(t, 30, stats.UsersProcessed)
		assert.NotEmpty(t, client.passCalls)
		assert.Equal(t, 30, stats.LikesSent+stats.PassesSent)
	})

	t.Run("long break interrupts an extended swipe stretch", func(t *testing.T) {
		client := &mockQueueClient{
			total: 15,
			pages: [][]wire.LikedMeItem{items(1, 15)},
		}
		processor, delayer := newTestProcessor(client, true)

		_, err := processor.Run(ctx, 100, farFuture, &pattern.Progress{})
		require.NoError(t, err)

		assert.Equal(t, 1, breakCount(delayer))
	})

	t.Run("activity recorder sees pages and swipes", func(t *testing.T) {
		client := &mockQueueClient{
			total: 3,
			pages: [][]wire.LikedMeItem{items(1, 3)},
		}
		var kinds []model.ActivityType
		var targets []string
		processor, _ := newCustomProcessor(client, Config{
			ProcessAll: true,
			Record: func(kind model.ActivityType, targetID *string, success bool) {
				kinds = append(kinds, kind)
				if targetID != nil {
					targets = append(targets, *targetID)
				}
				assert.True(t, success)
			},
		})

		_, err := processor.Run(ctx, 100, farFuture, &pattern.Progress{})
		require.NoError(t, err)

		// One batch record per fetched page, one like record per profile.
		assert.Equal(t, []model.ActivityType{
			model.ActivityQueueBatch,
			model.ActivityLike, model.ActivityLike, model.ActivityLike,
			model.ActivityQueueBatch,
		}, kinds)
		assert.Equal(t, []string{"user-1", "user-2", "user-3"}, targets)
	})

	t.Run("cancelled context surfaces for session finalization", func(t *testing.T) {
		client := &mockQueueClient{total: 5, pages: [][]wire.LikedMeItem{items(1, 5)}}
		processor, _ := newTestProcessor(client, true)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := processor.Run(cancelled, 100, farFuture, &pattern.Progress{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
