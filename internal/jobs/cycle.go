// Package jobs holds the background loops: the account cycle that feeds
// ready accounts into the session orchestrator.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/swipekit/swipekit/internal/lifecycle"
	"github.com/swipekit/swipekit/internal/model"
	"github.com/swipekit/swipekit/internal/session"
	"github.com/swipekit/swipekit/internal/timing"
)

// SessionRunner runs one full session for one account. Satisfied by
// *session.Orchestrator.
type SessionRunner interface {
	Run(ctx context.Context, account *model.Account) error
}

// Delayer provides the inter-account gap. Satisfied by *timing.Engine.
type Delayer interface {
	Delay(ctx context.Context, class timing.Class, factor float64) (time.Duration, error)
}

type CycleJob struct {
	manager  *lifecycle.Manager
	runner   SessionRunner
	timing   Delayer
	interval time.Duration
	done     chan struct{}
	stopped  chan struct{}
}

func NewCycleJob(manager *lifecycle.Manager, runner SessionRunner, delayer Delayer, interval time.Duration) *CycleJob {
	return &CycleJob{
		manager:  manager,
		runner:   runner,
		timing:   delayer,
		interval: interval,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

func (j *CycleJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("account cycle started")
}

// Stop requests shutdown and waits for the in-flight cycle to finish its
// current session. Sessions finalize rather than abandon.
func (j *CycleJob) Stop() {
	close(j.done)
	<-j.stopped
	log.Info().Msg("account cycle stopped")
}

func (j *CycleJob) run() {
	defer close(j.stopped)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-j.done
		cancel()
	}()

	j.cycle(ctx)

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cycle(ctx)
		}
	}
}

// cycle runs one pass: pick the ready accounts and run them sequentially,
// one session at a time, with a session-gap delay between accounts.
func (j *CycleJob) cycle(ctx context.Context) {
	j.manager.PublishCounts(ctx)

	ready, err := j.manager.SelectReady(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to select ready accounts")
		return
	}
	if len(ready) == 0 {
		log.Debug().Msg("no accounts ready this cycle")
		return
	}
	log.Info().Int("ready", len(ready)).Msg("cycle starting")

	for i := range ready {
		if ctx.Err() != nil {
			return
		}
		account := &ready[i]
		if err := j.runner.Run(ctx, account); err != nil {
			switch {
			case errors.Is(err, session.ErrSessionActive):
				log.Debug().Int64("account_id", account.ID).Msg("session already running, skipping")
			case errors.Is(err, session.ErrStartRateLimited):
				log.Debug().Int64("account_id", account.ID).Msg("session start limit reached, skipping")
			case errors.Is(err, context.Canceled):
				return
			default:
				log.Error().Err(err).Int64("account_id", account.ID).Msg("session run failed")
			}
		}

		if i < len(ready)-1 {
			if _, err := j.timing.Delay(ctx, timing.ClassSessionGap, 1.0); err != nil {
				return
			}
		}
	}
}
