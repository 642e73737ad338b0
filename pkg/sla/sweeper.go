package sla

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/jordanlanch/leaddesk/pkg/domain"
	"github.com/jordanlanch/leaddesk/pkg/logger"
	"github.com/jordanlanch/leaddesk/pkg/metrics"
	"github.com/jordanlanch/leaddesk/pkg/models"
	"github.com/jordanlanch/leaddesk/pkg/store"
)

// SweepResult summarizes one sweep.
type SweepResult struct {
	Evaluated int `json:"evaluated"`
	Changed   int `json:"changed"`
	Escalated int `json:"escalated"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// SweeperConfig tunes a Sweeper.
type SweeperConfig struct {
	// BatchSize is the page size used to walk the open trackers.
	BatchSize int
	Workers   int
	LeaseTTL  time.Duration
	// Shard and Shards restrict this sweeper to trackers whose id hashes to Shard.
	// Shards <= 1 disables partitioning.
	Shard  int
	Shards int
}

// Sweeper periodically re-evaluates open trackers. Several sweepers may run at
// once; a lease per tracker keeps each tracker to one evaluator at a time.
type Sweeper struct {
	svc      *Service
	trackers store.TrackerStore
	leaser   store.Leaser
	cfg      SweeperConfig
	log      logger.Logger
	metrics  *metrics.Metrics
}

// NewSweeper creates a sweeper over the service's trackers.
func NewSweeper(svc *Service, trackers store.TrackerStore, leaser store.Leaser, cfg SweeperConfig, log logger.Logger, m *metrics.Metrics) *Sweeper {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 30 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Sweeper{svc: svc, trackers: trackers, leaser: leaser, cfg: cfg, log: log, metrics: m}
}

func (s *Sweeper) owns(t *models.SLATracker) bool {
	if s.cfg.Shards <= 1 {
		return true
	}
	h := fnv.New32a()
	h.Write([]byte(t.ID))
	return int(h.Sum32()%uint32(s.cfg.Shards)) == s.cfg.Shard
}

// Sweep evaluates every open tracker owned by this sweeper against now.
// Running it twice with the same now changes nothing the second time.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	start := time.Now()
	var res SweepResult

	jobs := make(chan *models.SLATracker)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				outcome := s.sweepOne(ctx, t, now)
				mu.Lock()
				outcome.apply(&res)
				mu.Unlock()
			}
		}()
	}

	listErr := s.feed(ctx, jobs)
	close(jobs)
	wg.Wait()
	if listErr != nil {
		return res, listErr
	}

	s.metrics.RecordSweep(time.Since(start), res.Evaluated, res.Skipped, res.Failed)
	if res.Changed > 0 || res.Failed > 0 {
		s.log.Info("sla sweep finished",
			"evaluated", res.Evaluated,
			"changed", res.Changed,
			"escalated", res.Escalated,
			"skipped", res.Skipped,
			"failed", res.Failed,
			"duration", time.Since(start),
		)
	}
	return res, ctx.Err()
}

// feed pages through every open tracker in (deadline, id) order and hands the
// ones this sweeper owns to the workers.
func (s *Sweeper) feed(ctx context.Context, jobs chan<- *models.SLATracker) error {
	var cursor store.TrackerCursor
	for {
		page, err := s.trackers.ListOpenTrackersAfter(ctx, cursor, s.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("failed to list open trackers: %w", err)
		}
		for _, t := range page {
			if !s.owns(t) {
				continue
			}
			select {
			case jobs <- t:
			case <-ctx.Done():
				return nil
			}
		}
		if len(page) < s.cfg.BatchSize {
			return nil
		}
		cursor = store.CursorOf(page[len(page)-1])
	}
}

type sweepOutcome struct {
	evaluated, changed, skipped, failed bool
	escalated                           int
}

func (o sweepOutcome) apply(res *SweepResult) {
	if o.evaluated {
		res.Evaluated++
	}
	if o.changed {
		res.Changed++
	}
	if o.skipped {
		res.Skipped++
	}
	if o.failed {
		res.Failed++
	}
	res.Escalated += o.escalated
}

func (s *Sweeper) sweepOne(ctx context.Context, t *models.SLATracker, now time.Time) sweepOutcome {
	if s.leaser != nil {
		ok, release, err := s.leaser.Claim(ctx, "sla:lease:"+t.ID, s.cfg.LeaseTTL)
		if err != nil {
			s.log.Error("failed to claim sla lease", "tracker_id", t.ID, "error", err)
			return sweepOutcome{failed: true}
		}
		if !ok {
			return sweepOutcome{skipped: true}
		}
		defer release()
	}

	transitions, err := s.svc.Evaluate(ctx, t, now)
	if err != nil {
		if domain.IsVersionConflict(err) {
			return sweepOutcome{skipped: true}
		}
		s.log.Error("failed to evaluate sla tracker", "tracker_id", t.ID, "error", err)
		return sweepOutcome{failed: true}
	}

	out := sweepOutcome{evaluated: true, changed: len(transitions) > 0}
	for _, tr := range transitions {
		if tr.Escalated {
			out.escalated++
		}
	}
	return out
}
