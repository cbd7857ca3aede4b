package pattern

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/swipekit/swipekit/internal/detect"
	"github.com/swipekit/swipekit/internal/timing"
	"github.com/swipekit/swipekit/internal/wire"
)

// Progress is the per-session counter state the executor reads for
// severity scaling and updates as it works. One orchestrator instance owns
// it; it is never shared across sessions.
type Progress struct {
	Actions           int
	ConsecutiveErrors int
}

func (p *Progress) severity() float64 {
	return timing.SeverityFactor(p.ConsecutiveErrors, p.Actions)
}

// TimingSample records one issued request for the traffic-shape log.
type TimingSample struct {
	Op            wire.Operation
	Status        wire.Status
	Latency       time.Duration
	Burst         bool
	BurstPosition int
}

// Result aggregates one pattern execution.
type Result struct {
	Requests  int
	Errors    int
	Latencies []time.Duration
	Samples   []TimingSample

	// BanScore and Indicators accumulate every detection signal the
	// classifier saw, sub-threshold ones included.
	BanScore   float64
	Indicators []detect.Indicator

	// Terminal is set when the classifier demanded the account or session
	// be stopped; the pattern returns early in that case.
	Terminal *detect.Assessment
}

// Delayer is the timing engine surface the executor needs. *timing.Engine
// satisfies it.
type Delayer interface {
	Delay(ctx context.Context, class timing.Class, factor float64) (time.Duration, error)
	Sleep(ctx context.Context, d time.Duration) error
}

type Executor struct {
	client     wire.Client
	timing     Delayer
	classifier *detect.Classifier
	log        zerolog.Logger
}

func NewExecutor(client wire.Client, engine Delayer, classifier *detect.Classifier, logger zerolog.Logger) *Executor {
	return &Executor{
		client:     client,
		timing:     engine,
		classifier: classifier,
		log:        logger,
	}
}

// Run executes the steps in order. Each step issues exactly Repeat calls
// with micro delays between repeats, then the step's delay class before the
// next step. A failing step never halts the pattern on its own; only
// terminal classifier actions or context cancellation stop it early.
func (e *Executor) Run(ctx context.Context, steps []Step, progress *Progress) (*Result, error) {
	result := &Result{}

	for stepIdx, step := range steps {
		repeat := step.Repeat
		if repeat < 1 {
			repeat = 1
		}

		for i := 0; i < repeat; i++ {
			if err := ctx.Err(); err != nil {
				return result, err
			}

			start := time.Now()
			callResult, callErr := e.client.Execute(ctx, step.Op)
			latency := time.Since(start)

			result.Requests++
			result.Latencies = append(result.Latencies, latency)
			result.Samples = append(result.Samples, TimingSample{
				Op:            step.Op,
				Status:        sampleStatus(callResult, callErr),
				Latency:       latency,
				Burst:         repeat > 1,
				BurstPosition: i + 1,
			})
			progress.Actions++

			assessment := e.classifier.Classify(ctx, callResult, e.client, progress.ConsecutiveErrors)
			result.BanScore += assessment.BanScoreDelta
			result.Indicators = append(result.Indicators, assessment.Indicators...)
			failed := callErr != nil || !callResult.Success()

			switch assessment.Action {
			case detect.ActionMarkBanned, detect.ActionMarkDead, detect.ActionAbortSession:
				result.Errors++
				result.Terminal = &assessment
				return result, nil
			case detect.ActionSleepThenRetry:
				// No in-pattern retry: the burst shape stays fixed. Absorb
				// the server's pause and treat the call as neutral, neither
				// an error nor a streak reset.
				if err := e.timing.Sleep(ctx, assessment.Sleep); err != nil {
					return result, err
				}
			default:
				if failed {
					result.Errors++
					progress.ConsecutiveErrors++
					if step.Critical {
						e.log.Warn().Str("op", step.Op.String()).Int("code", httpCode(callResult)).
							Msg("critical pattern step failed")
					} else {
						e.log.Debug().Str("op", step.Op.String()).Msg("non-critical pattern step failed")
					}
				} else {
					progress.ConsecutiveErrors = 0
				}
			}

			if i < repeat-1 {
				if _, err := e.timing.Delay(ctx, timing.ClassMicro, progress.severity()); err != nil {
					return result, err
				}
			}
		}

		if stepIdx < len(steps)-1 {
			if _, err := e.timing.Delay(ctx, step.DelayClass, progress.severity()); err != nil {
				return result, err
			}
		}
	}

	return result, nil
}

// RunNamed executes a pattern from the table by name.
func (e *Executor) RunNamed(ctx context.Context, name Name, progress *Progress) (*Result, error) {
	steps, ok := Patterns[name]
	if !ok {
		e.log.Warn().Str("pattern", string(name)).Msg("unknown request pattern")
		return &Result{}, nil
	}
	return e.Run(ctx, steps, progress)
}

func httpCode(r *wire.Result) int {
	if r == nil {
		return 0
	}
	return r.HTTPCode
}

func sampleStatus(r *wire.Result, err error) wire.Status {
	if err != nil || r == nil {
		return wire.StatusTransportFailure
	}
	return r.Status
}
