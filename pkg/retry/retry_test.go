package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDo(t *testing.T) {
	ctx := context.Background()

	t.Run("Success after transient failures", func(t *testing.T) {
		calls := 0
		err := Do(ctx, 3, time.Millisecond, func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("Gives up after attempts", func(t *testing.T) {
		calls := 0
		err := Do(ctx, 2, time.Millisecond, func(context.Context) error {
			calls++
			return errors.New("down")
		})
		assert.EqualError(t, err, "down")
		assert.Equal(t, 2, calls)
	})

	t.Run("Permanent stops immediately", func(t *testing.T) {
		calls := 0
		cause := errors.New("bad payload")
		err := Do(ctx, 5, time.Millisecond, func(context.Context) error {
			calls++
			return Permanent(cause)
		})
		assert.Equal(t, cause, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("Context cancellation interrupts backoff", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := Do(cctx, 3, time.Hour, func(context.Context) error {
			return errors.New("down")
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Duration(0), backoff(0, 3))

	for attempt := 1; attempt <= 4; attempt++ {
		d := backoff(10*time.Millisecond, attempt)
		ceiling := 10 * time.Millisecond << uint(attempt-1)
		assert.GreaterOrEqual(t, d, ceiling/2)
		assert.LessOrEqual(t, d, ceiling)
	}

	assert.LessOrEqual(t, backoff(time.Second, 60), maxBackoff)
}
