package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jordanlanch/leaddesk/pkg/logger"
	"github.com/jordanlanch/leaddesk/pkg/sla"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweeper struct {
	calls   int
	lastNow time.Time
	res     sla.SweepResult
	err     error
}

func (f *fakeSweeper) Sweep(ctx context.Context, now time.Time) (sla.SweepResult, error) {
	f.calls++
	f.lastNow = now
	if _, ok := ctx.Deadline(); !ok {
		return sla.SweepResult{}, errors.New("sweep without deadline")
	}
	return f.res, f.err
}

type fakeReconciler struct {
	n   int
	err error
}

func (f *fakeReconciler) Reconcile(ctx context.Context) (int, error) {
	return f.n, f.err
}

func TestCronManager_SetupJobs(t *testing.T) {
	t.Run("Success - default schedule registers both jobs", func(t *testing.T) {
		cm := NewCronManager(&fakeSweeper{}, &fakeReconciler{}, DefaultSchedule(), logger.Nop())
		require.NoError(t, cm.SetupJobs())
		assert.Equal(t, 2, cm.Entries())
	})

	t.Run("Success - empty schedule disables a job", func(t *testing.T) {
		schedule := DefaultSchedule()
		schedule.Reconcile = ""
		cm := NewCronManager(&fakeSweeper{}, &fakeReconciler{}, schedule, nil)
		require.NoError(t, cm.SetupJobs())
		assert.Equal(t, 1, cm.Entries())
	})

	t.Run("Error - invalid schedule", func(t *testing.T) {
		schedule := DefaultSchedule()
		schedule.Sweep = "every now and then"
		cm := NewCronManager(&fakeSweeper{}, nil, schedule, nil)
		assert.Error(t, cm.SetupJobs())
	})
}

func TestCronManager_RunSweep(t *testing.T) {
	now := time.Date(2024, 3, 4, 10, 16, 0, 0, time.UTC)

	t.Run("Success - sweep runs with clock and deadline", func(t *testing.T) {
		sw := &fakeSweeper{res: sla.SweepResult{Evaluated: 3, Changed: 3, Escalated: 3}}
		cm := NewCronManager(sw, nil, DefaultSchedule(), logger.Nop())
		cm.now = func() time.Time { return now }

		res, err := cm.RunSweep(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3, res.Escalated)
		assert.Equal(t, 1, sw.calls)
		assert.True(t, sw.lastNow.Equal(now))
	})

	t.Run("Error - sweep failure is returned", func(t *testing.T) {
		sw := &fakeSweeper{err: errors.New("store down")}
		cm := NewCronManager(sw, nil, DefaultSchedule(), logger.Nop())
		_, err := cm.RunSweep(context.Background())
		assert.EqualError(t, err, "store down")
	})
}

func TestCronManager_RunReconcile(t *testing.T) {
	t.Run("Success - flushed count", func(t *testing.T) {
		cm := NewCronManager(nil, &fakeReconciler{n: 2}, DefaultSchedule(), logger.Nop())
		n, err := cm.RunReconcile(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("Error - partial reconciliation", func(t *testing.T) {
		cm := NewCronManager(nil, &fakeReconciler{n: 1, err: errors.New("still failing")}, DefaultSchedule(), logger.Nop())
		n, err := cm.RunReconcile(context.Background())
		assert.Error(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestCronManager_StartStop(t *testing.T) {
	cm := NewCronManager(&fakeSweeper{}, nil, DefaultSchedule(), logger.Nop())
	require.NoError(t, cm.SetupJobs())
	cm.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	cm.Stop(ctx)
	assert.NoError(t, ctx.Err())
}
