package timing

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngine(variance float64) *Engine {
	e := NewEngine(variance, zerolog.Nop())
	e.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return e
}

func TestDuration(t *testing.T) {
	t.Run("stays within perturbed bounds for every class", func(t *testing.T) {
		const variance = 0.3
		e := testEngine(variance)

		classes := []Class{ClassMicro, ClassShort, ClassMedium, ClassLong, ClassBreak, ClassSessionGap}
		for _, class := range classes {
			base := baseRanges[class]
			for i := 0; i < 200; i++ {
				d := e.Duration(class, 1.0)
				lower := time.Duration(float64(base.Min) * (1 - variance))
				if lower < floorDelay {
					lower = floorDelay
				}
				upper := time.Duration(float64(base.Max)*(1+variance)) + 100*time.Millisecond
				assert.GreaterOrEqual(t, d, lower, "class %s", class)
				assert.LessOrEqual(t, d, upper, "class %s", class)
			}
		}
	})

	t.Run("severity factor scales the range", func(t *testing.T) {
		e := testEngine(0)

		for i := 0; i < 100; i++ {
			d := e.Duration(ClassMedium, 2.0)
			assert.GreaterOrEqual(t, d, 4*time.Second)
			assert.LessOrEqual(t, d, 10*time.Second)
		}
	})

	t.Run("unknown class falls back to short", func(t *testing.T) {
		e := testEngine(0)
		d := e.Duration(Class("bogus"), 1.0)
		assert.GreaterOrEqual(t, d, 500*time.Millisecond)
		assert.LessOrEqual(t, d, 2*time.Second)
	})

	t.Run("never returns below the floor", func(t *testing.T) {
		e := testEngine(0.9)
		for i := 0; i < 500; i++ {
			assert.GreaterOrEqual(t, e.Duration(ClassMicro, 0.01), floorDelay)
		}
	})
}

func TestSeverityFactor(t *testing.T) {
	assert.Equal(t, 1.0, SeverityFactor(0, 0))
	assert.InDelta(t, 1.4, SeverityFactor(2, 10), 1e-9)
	assert.InDelta(t, 1.3, SeverityFactor(0, 51), 1e-9)
	assert.InDelta(t, 1.2*1.3, SeverityFactor(1, 100), 1e-9)

	t.Run("monotonic in error count", func(t *testing.T) {
		prev := 0.0
		for errs := 0; errs < 10; errs++ {
			f := SeverityFactor(errs, 0)
			assert.Greater(t, f, prev)
			prev = f
		}
	})
}

func TestDelay(t *testing.T) {
	t.Run("returns the sampled duration", func(t *testing.T) {
		e := testEngine(0)
		d, err := e.Delay(context.Background(), ClassMicro, 1.0)
		require.NoError(t, err)
		assert.Greater(t, d, time.Duration(0))
	})

	t.Run("cancelled context aborts the sleep", func(t *testing.T) {
		e := NewEngine(0, zerolog.Nop())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := e.Delay(ctx, ClassMicro, 1.0)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
