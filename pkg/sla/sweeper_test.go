package sla

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jordanlanch/leaddesk/pkg/logger"
	"github.com/jordanlanch/leaddesk/pkg/models"
	"github.com/jordanlanch/leaddesk/pkg/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeper_Sweep(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	t.Run("Success - breach, escalate and stay idempotent", func(t *testing.T) {
		f := newFixture(t0)
		for i := 0; i < 3; i++ {
			lead, conv := f.seed(t, fmt.Sprint(i), "p1", t0)
			_, err := f.svc.Init(ctx, lead, conv)
			require.NoError(t, err)
		}
		sw := NewSweeper(f.svc, f.store, memory.NewLeaser(), SweeperConfig{Workers: 2}, logger.Nop(), nil)

		res, err := sw.Sweep(ctx, t0.Add(16*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 3, res.Evaluated)
		assert.Equal(t, 3, res.Changed)
		assert.Equal(t, 3, res.Escalated)

		res, err = sw.Sweep(ctx, t0.Add(16*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 0, res.Changed)

		tr, err := f.svc.Get(ctx, "conv-0")
		require.NoError(t, err)
		assert.Equal(t, models.SLABreached, tr.SLAStatus)
		assert.Equal(t, 1, tr.EscalationLevel)
	})

	t.Run("Success - answered trackers are left alone", func(t *testing.T) {
		f := newFixture(t0)
		lead, conv := f.seed(t, "a", "p1", t0)
		_, err := f.svc.Init(ctx, lead, conv)
		require.NoError(t, err)
		_, _, err = f.svc.RecordResponse(ctx, conv.ID, t0.Add(5*time.Minute))
		require.NoError(t, err)

		sw := NewSweeper(f.svc, f.store, nil, SweeperConfig{}, nil, nil)
		res, err := sw.Sweep(ctx, t0.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 0, res.Evaluated)

		tr, err := f.svc.Get(ctx, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SLAOnTrack, tr.SLAStatus)
	})

	t.Run("Success - leased trackers are skipped", func(t *testing.T) {
		f := newFixture(t0)
		lead, conv := f.seed(t, "a", "p1", t0)
		tr, err := f.svc.Init(ctx, lead, conv)
		require.NoError(t, err)

		leaser := memory.NewLeaser()
		ok, release, err := leaser.Claim(ctx, "sla:lease:"+tr.ID, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		sw := NewSweeper(f.svc, f.store, leaser, SweeperConfig{}, nil, nil)
		res, err := sw.Sweep(ctx, t0.Add(16*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 1, res.Skipped)
		assert.Equal(t, 0, res.Evaluated)

		release()
		res, err = sw.Sweep(ctx, t0.Add(16*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 1, res.Evaluated)
	})

	t.Run("Success - shards partition the trackers", func(t *testing.T) {
		f := newFixture(t0)
		for i := 0; i < 10; i++ {
			lead, conv := f.seed(t, fmt.Sprint(i), "p1", t0)
			_, err := f.svc.Init(ctx, lead, conv)
			require.NoError(t, err)
		}

		total := 0
		for shard := 0; shard < 3; shard++ {
			sw := NewSweeper(f.svc, f.store, nil, SweeperConfig{Shard: shard, Shards: 3}, nil, nil)
			res, err := sw.Sweep(ctx, t0.Add(13*time.Minute))
			require.NoError(t, err)
			total += res.Evaluated
		}
		assert.Equal(t, 10, total)

		open, err := f.store.ListOpenTrackers(ctx, 0)
		require.NoError(t, err)
		for _, tr := range open {
			assert.Equal(t, models.SLAAtRisk, tr.SLAStatus)
		}
	})

	t.Run("Success - trackers beyond the first page are evaluated", func(t *testing.T) {
		f := newFixture(t0)
		for i := 0; i < 5; i++ {
			lead, conv := f.seed(t, fmt.Sprint(i), "p1", t0.Add(time.Duration(i)*time.Minute))
			_, err := f.svc.Init(ctx, lead, conv)
			require.NoError(t, err)
		}
		sw := NewSweeper(f.svc, f.store, nil, SweeperConfig{BatchSize: 2, Workers: 1}, nil, nil)

		res, err := sw.Sweep(ctx, t0.Add(30*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 5, res.Evaluated)
		assert.Equal(t, 5, res.Changed)

		for i := 0; i < 5; i++ {
			tr, err := f.svc.Get(ctx, fmt.Sprintf("conv-%d", i))
			require.NoError(t, err)
			assert.Equal(t, models.SLABreached, tr.SLAStatus, "conv-%d", i)
			assert.Equal(t, 1, tr.EscalationLevel, "conv-%d", i)
		}
	})

	t.Run("Success - shards see every page", func(t *testing.T) {
		f := newFixture(t0)
		for i := 0; i < 12; i++ {
			lead, conv := f.seed(t, fmt.Sprint(i), "p1", t0)
			_, err := f.svc.Init(ctx, lead, conv)
			require.NoError(t, err)
		}

		total := 0
		for shard := 0; shard < 3; shard++ {
			sw := NewSweeper(f.svc, f.store, nil, SweeperConfig{BatchSize: 2, Shard: shard, Shards: 3}, nil, nil)
			res, err := sw.Sweep(ctx, t0.Add(16*time.Minute))
			require.NoError(t, err)
			total += res.Evaluated
		}
		assert.Equal(t, 12, total)

		open, err := f.store.ListOpenTrackers(ctx, 0)
		require.NoError(t, err)
		require.Len(t, open, 12)
		for _, tr := range open {
			assert.Equal(t, models.SLABreached, tr.SLAStatus)
		}
	})
}
