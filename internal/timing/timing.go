package timing

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// Class names a delay bucket. Each maps to a base (min, max) range that the
// engine perturbs per call.
type Class string

const (
	ClassMicro      Class = "micro"
	ClassShort      Class = "short"
	ClassMedium     Class = "medium"
	ClassLong       Class = "long"
	ClassBreak      Class = "break"
	ClassSessionGap Class = "session_gap"
)

type Range struct {
	Min time.Duration
	Max time.Duration
}

// Base ranges reproduce the traffic cadence observed in captures of the
// real mobile client.
var baseRanges = map[Class]Range{
	ClassMicro:      {100 * time.Millisecond, 500 * time.Millisecond},
	ClassShort:      {500 * time.Millisecond, 2 * time.Second},
	ClassMedium:     {2 * time.Second, 5 * time.Second},
	ClassLong:       {5 * time.Second, 15 * time.Second},
	ClassBreak:      {30 * time.Second, 120 * time.Second},
	ClassSessionGap: {300 * time.Second, 900 * time.Second},
}

const floorDelay = 50 * time.Millisecond

// SeverityFactor scales delays up as a session accumulates errors or grows
// long. Errors add 20% each; past 50 actions everything slows by 30%.
func SeverityFactor(consecutiveErrors, sessionActions int) float64 {
	factor := 1.0 + 0.2*float64(consecutiveErrors)
	if sessionActions > 50 {
		factor *= 1.3
	}
	return factor
}

// Engine produces randomized delays. Not safe for concurrent use; each
// session worker owns one.
type Engine struct {
	variance float64
	rng      *rand.Rand
	log      zerolog.Logger

	// sleep is swappable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewEngine(variance float64, logger zerolog.Logger) *Engine {
	return &Engine{
		variance: variance,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		log:      logger,
		sleep:    sleepCtx,
	}
}

// Duration samples a delay for the class. Each bound is independently
// perturbed by up to the configured variance, scaled by factor, then
// floored, before the final uniform draw.
func (e *Engine) Duration(class Class, factor float64) time.Duration {
	base, ok := baseRanges[class]
	if !ok {
		base = baseRanges[ClassShort]
	}
	if factor <= 0 {
		factor = 1.0
	}

	min := e.perturb(base.Min, factor)
	max := e.perturb(base.Max, factor)
	if min < floorDelay {
		min = floorDelay
	}
	if max < min+100*time.Millisecond {
		max = min + 100*time.Millisecond
	}

	return min + time.Duration(e.rng.Int63n(int64(max-min)))
}

func (e *Engine) perturb(d time.Duration, factor float64) time.Duration {
	scale := factor * (1 - e.variance + e.rng.Float64()*e.variance*2)
	return time.Duration(float64(d) * scale)
}

// Delay samples a duration for the class and sleeps it out. Returns the
// duration actually requested; the sleep ends early only on context
// cancellation.
func (e *Engine) Delay(ctx context.Context, class Class, factor float64) (time.Duration, error) {
	d := e.Duration(class, factor)
	e.log.Trace().Str("class", string(class)).Float64("factor", factor).Dur("delay", d).Msg("delaying")
	return d, e.sleep(ctx, d)
}

// DelayBetween sleeps a uniform draw from [min, max]. Used where the delay
// range comes from configuration rather than a named class.
func (e *Engine) DelayBetween(ctx context.Context, min, max time.Duration) (time.Duration, error) {
	if max <= min {
		return min, e.sleep(ctx, min)
	}
	d := min + time.Duration(e.rng.Int63n(int64(max-min)))
	return d, e.sleep(ctx, d)
}

// Sleep waits out a caller-chosen duration with the same cancellation
// semantics as Delay. Used for server-provided retry hints.
func (e *Engine) Sleep(ctx context.Context, d time.Duration) error {
	return e.sleep(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
