// Package queue drains the inbound liked-me queue one page at a time,
// liking each new profile while staying inside the session's time and like
// budgets.
package queue

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/swipekit/swipekit/internal/detect"
	"github.com/swipekit/swipekit/internal/model"
	"github.com/swipekit/swipekit/internal/pattern"
	"github.com/swipekit/swipekit/internal/timing"
	"github.com/swipekit/swipekit/internal/wire"
)

// Recorder appends one activity record. Nil disables recording.
type Recorder func(kind model.ActivityType, targetID *string, success bool)

type Config struct {
	PageSize            int
	ProcessAll          bool
	DelayAfterPageFetch time.Duration
	LikeDelayMin        time.Duration
	LikeDelayMax        time.Duration

	// LikePercent is the share of fresh profiles that get a like; the
	// rest are passed. Zero means 100.
	LikePercent int

	Record Recorder
}

// breakInterval is how many swipes happen before the processor pauses for
// a longer break, mimicking a person putting the phone down.
const breakInterval = 12

// Stats aggregates one processor run.
type Stats struct {
	UsersProcessed int
	LikesSent      int
	PassesSent     int
	MatchesGained  int
	Requests       int
	Errors         int

	// TotalAvailable is the remote's queue size reported at the start.
	TotalAvailable int
	// RemainingEstimate is TotalAvailable minus processed items, floored at
	// zero. It is a subtraction heuristic, not a re-fetch: items arriving
	// mid-session are not counted.
	RemainingEstimate int

	// BanScore and Indicators accumulate every detection signal seen
	// during the run, sub-threshold ones included.
	BanScore   float64
	Indicators []detect.Indicator

	// Terminal is set when the classifier demanded a stop.
	Terminal *detect.Assessment
}

// Delayer is the timing surface the processor uses. *timing.Engine
// satisfies it.
type Delayer interface {
	Sleep(ctx context.Context, d time.Duration) error
	DelayBetween(ctx context.Context, min, max time.Duration) (time.Duration, error)
	Delay(ctx context.Context, class timing.Class, factor float64) (time.Duration, error)
}

type Processor struct {
	client     wire.Client
	timing     Delayer
	classifier *detect.Classifier
	cfg        Config
	rng        *rand.Rand
	log        zerolog.Logger
}

func NewProcessor(client wire.Client, delayer Delayer, classifier *detect.Classifier, cfg Config, logger zerolog.Logger) *Processor {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	if cfg.LikePercent <= 0 || cfg.LikePercent > 100 {
		cfg.LikePercent = 100
	}
	return &Processor{
		client:     client,
		timing:     delayer,
		classifier: classifier,
		cfg:        cfg,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		log:        logger,
	}
}

// Run processes the queue until a budget is exhausted. maxLikes is the
// caller-computed remaining like budget; endTime bounds the session. The
// de-duplication set lives only for this run.
func (p *Processor) Run(ctx context.Context, maxLikes int, endTime time.Time, progress *pattern.Progress) (*Stats, error) {
	stats := &Stats{}
	seen := make(map[string]struct{})

	count, countResult, err := p.client.LikedMeCount(ctx)
	stats.Requests++
	progress.Actions++
	if err != nil || !countResult.Success() {
		if done := p.absorb(ctx, countResult, stats, progress); done {
			return p.finalize(stats), nil
		}
	} else {
		stats.TotalAvailable = count
	}

	pageToken := ""
	firstPage := true
	sinceBreak := 0

	for {
		if err := ctx.Err(); err != nil {
			return p.finalize(stats), err
		}
		if !time.Now().Before(endTime) {
			p.log.Debug().Msg("session end time reached, stopping queue processing")
			break
		}
		if stats.LikesSent >= maxLikes {
			p.log.Debug().Int("likes", stats.LikesSent).Msg("like budget exhausted")
			break
		}
		if !firstPage && !p.cfg.ProcessAll {
			break
		}

		page, pageResult, err := p.client.LikedMePage(ctx, p.cfg.PageSize, pageToken)
		stats.Requests++
		progress.Actions++
		if err != nil || page == nil {
			if done := p.absorb(ctx, pageResult, stats, progress); done {
				break
			}
			continue
		}
		progress.ConsecutiveErrors = 0
		firstPage = false
		p.record(model.ActivityQueueBatch, nil, true)

		if err := p.timing.Sleep(ctx, p.cfg.DelayAfterPageFetch); err != nil {
			return p.finalize(stats), err
		}

		// Deduplicate against earlier pages and within this page; the
		// remote occasionally repeats a profile on page boundaries.
		var fresh []wire.LikedMeItem
		for _, item := range page.Items {
			if _, dup := seen[item.UserID]; dup {
				continue
			}
			seen[item.UserID] = struct{}{}
			fresh = append(fresh, item)
		}
		if len(fresh) == 0 {
			// A page of all-duplicates means the remote queue did not
			// advance; treat as exhaustion.
			p.log.Debug().Int("page_items", len(page.Items)).Msg("queue exhausted")
			break
		}

		for _, item := range fresh {
			if err := ctx.Err(); err != nil {
				return p.finalize(stats), err
			}
			if !time.Now().Before(endTime) || stats.LikesSent >= maxLikes {
				break
			}

			mutated, err := p.swipeOnce(ctx, item.UserID, stats, progress)
			if err != nil {
				return p.finalize(stats), err
			}
			stats.UsersProcessed++
			progress.Actions++

			if stats.Terminal != nil {
				return p.finalize(stats), nil
			}

			if mutated {
				sinceBreak++
				if _, err := p.timing.DelayBetween(ctx, p.cfg.LikeDelayMin, p.cfg.LikeDelayMax); err != nil {
					return p.finalize(stats), err
				}
			}
			if sinceBreak >= breakInterval {
				sinceBreak = 0
				p.log.Debug().Msg("taking a swipe break")
				if _, err := p.timing.Delay(ctx, timing.ClassBreak, 1.0); err != nil {
					return p.finalize(stats), err
				}
			}
		}

		if stats.Terminal != nil {
			break
		}
		pageToken = page.PageToken
	}

	return p.finalize(stats), nil
}

// swipeOnce handles one fresh profile: like it with the configured
// probability, pass it otherwise. Returns whether the remote state changed.
func (p *Processor) swipeOnce(ctx context.Context, targetID string, stats *Stats, progress *pattern.Progress) (bool, error) {
	if p.cfg.LikePercent < 100 && p.rng.Intn(100) >= p.cfg.LikePercent {
		return p.passOnce(ctx, targetID, stats, progress)
	}

	outcome, err := p.likeOnce(ctx, targetID, stats, progress)
	if err != nil {
		return false, err
	}

	switch outcome {
	case wire.LikeOutcomeMatched:
		stats.LikesSent++
		stats.MatchesGained++
		p.record(model.ActivityLike, &targetID, true)
		p.log.Info().Str("target", targetID).Msg("matched")
		// The real client immediately refetches activity after a
		// match; one quick call, not a sub-session.
		if refresh, err := p.client.GetUpdates(ctx, true); err == nil && refresh.Success() {
			stats.Requests++
			progress.Actions++
		}
		return true, nil
	case wire.LikeOutcomeLiked:
		stats.LikesSent++
		p.record(model.ActivityLike, &targetID, true)
		return true, nil
	default:
		stats.Errors++
		p.record(model.ActivityLike, &targetID, false)
		return false, nil
	}
}

// likeOnce sends one like, retrying with backoff on transient failures.
func (p *Processor) likeOnce(ctx context.Context, targetID string, stats *Stats, progress *pattern.Progress) (wire.LikeOutcome, error) {
	for attempt := 0; ; attempt++ {
		likeResult, err := p.client.Like(ctx, targetID)
		stats.Requests++

		var result *wire.Result
		if likeResult != nil {
			result = &likeResult.Result
		}
		assessment := p.classify(ctx, result, stats, progress)

		switch assessment.Action {
		case detect.ActionMarkBanned, detect.ActionMarkDead, detect.ActionAbortSession:
			stats.Terminal = &assessment
			return wire.LikeOutcomeFailed, nil
		case detect.ActionSleepThenRetry:
			if err := p.timing.Sleep(ctx, assessment.Sleep); err != nil {
				return wire.LikeOutcomeFailed, err
			}
			if attempt < detect.MaxRetries {
				continue
			}
			return wire.LikeOutcomeFailed, nil
		case detect.ActionRetryWithBackoff:
			progress.ConsecutiveErrors++
			if attempt < detect.MaxRetries {
				if err := p.timing.Sleep(ctx, detect.Backoff(attempt)); err != nil {
					return wire.LikeOutcomeFailed, err
				}
				continue
			}
			return wire.LikeOutcomeFailed, nil
		case detect.ActionRetryOnce:
			if attempt == 0 {
				continue
			}
			return wire.LikeOutcomeFailed, nil
		}

		if err != nil || likeResult == nil {
			progress.ConsecutiveErrors++
			return wire.LikeOutcomeFailed, nil
		}
		if likeResult.Outcome != wire.LikeOutcomeFailed {
			progress.ConsecutiveErrors = 0
		}
		return likeResult.Outcome, nil
	}
}

// passOnce sends one pass. A failed pass is absorbed without retries; the
// queue moves on.
func (p *Processor) passOnce(ctx context.Context, targetID string, stats *Stats, progress *pattern.Progress) (bool, error) {
	result, err := p.client.Pass(ctx, targetID)
	stats.Requests++

	assessment := p.classify(ctx, result, stats, progress)
	switch assessment.Action {
	case detect.ActionMarkBanned, detect.ActionMarkDead, detect.ActionAbortSession:
		stats.Terminal = &assessment
		return false, nil
	case detect.ActionSleepThenRetry:
		if err := p.timing.Sleep(ctx, assessment.Sleep); err != nil {
			return false, err
		}
	}

	if err != nil || !result.Success() {
		progress.ConsecutiveErrors++
		stats.Errors++
		p.record(model.ActivityPass, &targetID, false)
		p.log.Debug().Str("target", targetID).Msg("pass failed")
		return false, nil
	}
	progress.ConsecutiveErrors = 0
	stats.PassesSent++
	p.record(model.ActivityPass, &targetID, true)
	return true, nil
}

// absorb handles a failed page or count fetch. Returns true when the run
// should stop.
func (p *Processor) absorb(ctx context.Context, result *wire.Result, stats *Stats, progress *pattern.Progress) bool {
	stats.Errors++
	assessment := p.classify(ctx, result, stats, progress)

	switch assessment.Action {
	case detect.ActionMarkBanned, detect.ActionMarkDead, detect.ActionAbortSession:
		stats.Terminal = &assessment
		return true
	case detect.ActionSleepThenRetry:
		if err := p.timing.Sleep(ctx, assessment.Sleep); err != nil {
			return true
		}
		return false
	case detect.ActionRetryWithBackoff:
		progress.ConsecutiveErrors++
		if err := p.timing.Sleep(ctx, detect.Backoff(0)); err != nil {
			return true
		}
		return false
	default:
		progress.ConsecutiveErrors++
		return true
	}
}

// classify runs the classifier and folds the detection signals into the
// run's stats.
func (p *Processor) classify(ctx context.Context, result *wire.Result, stats *Stats, progress *pattern.Progress) detect.Assessment {
	assessment := p.classifier.Classify(ctx, result, p.client, progress.ConsecutiveErrors)
	stats.BanScore += assessment.BanScoreDelta
	stats.Indicators = append(stats.Indicators, assessment.Indicators...)
	return assessment
}

func (p *Processor) record(kind model.ActivityType, targetID *string, success bool) {
	if p.cfg.Record != nil {
		p.cfg.Record(kind, targetID, success)
	}
}

func (p *Processor) finalize(stats *Stats) *Stats {
	remaining := stats.TotalAvailable - stats.UsersProcessed
	if remaining < 0 {
		remaining = 0
	}
	stats.RemainingEstimate = remaining
	return stats
}
