// Package jobs schedules the periodic SLA sweep and audit reconciliation.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/jordanlanch/leaddesk/pkg/logger"
	"github.com/jordanlanch/leaddesk/pkg/sla"
	"github.com/robfig/cron/v3"
)

// Sweeper evaluates open SLA trackers.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (sla.SweepResult, error)
}

// Reconciler retries audit records that could not be persisted.
type Reconciler interface {
	Reconcile(ctx context.Context) (int, error)
}

// Schedule holds the cron expression of each job. An empty expression disables the job.
type Schedule struct {
	Sweep          string
	SweepTimeout   time.Duration
	Reconcile      string
	ReconcileLimit time.Duration
}

// DefaultSchedule sweeps every 30 seconds and reconciles audit writes every 5 minutes.
func DefaultSchedule() Schedule {
	return Schedule{
		Sweep:          "@every 30s",
		SweepTimeout:   25 * time.Second,
		Reconcile:      "@every 5m",
		ReconcileLimit: time.Minute,
	}
}

// CronManager manages scheduled jobs
type CronManager struct {
	cron       *cron.Cron
	sweeper    Sweeper
	reconciler Reconciler
	schedule   Schedule
	logger     logger.Logger
	now        func() time.Time
}

// NewCronManager creates a new cron manager. Overlapping runs of the same
// job are skipped rather than queued.
func NewCronManager(sweeper Sweeper, reconciler Reconciler, schedule Schedule, log logger.Logger) *CronManager {
	if log == nil {
		log = logger.Nop()
	}
	return &CronManager{
		cron:       cron.New(cron.WithChain(cron.Recover(cronLogger{log}), cron.SkipIfStillRunning(cronLogger{log}))),
		sweeper:    sweeper,
		reconciler: reconciler,
		schedule:   schedule,
		logger:     log,
		now:        time.Now,
	}
}

// SetupJobs configures all scheduled jobs
func (cm *CronManager) SetupJobs() error {
	if cm.schedule.Sweep != "" && cm.sweeper != nil {
		if _, err := cm.cron.AddFunc(cm.schedule.Sweep, func() { _, _ = cm.RunSweep(context.Background()) }); err != nil {
			return fmt.Errorf("failed to schedule sla sweep: %w", err)
		}
	}
	if cm.schedule.Reconcile != "" && cm.reconciler != nil {
		if _, err := cm.cron.AddFunc(cm.schedule.Reconcile, func() { _, _ = cm.RunReconcile(context.Background()) }); err != nil {
			return fmt.Errorf("failed to schedule audit reconciliation: %w", err)
		}
	}
	cm.logger.Info("cron jobs configured", "sweep", cm.schedule.Sweep, "reconcile", cm.schedule.Reconcile)
	return nil
}

// RunSweep runs one SLA sweep bounded by the sweep timeout.
func (cm *CronManager) RunSweep(ctx context.Context) (sla.SweepResult, error) {
	if cm.schedule.SweepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cm.schedule.SweepTimeout)
		defer cancel()
	}
	res, err := cm.sweeper.Sweep(ctx, cm.now())
	if err != nil {
		cm.logger.Error("sla sweep failed", "error", err)
		return res, err
	}
	if res.Changed > 0 || res.Failed > 0 {
		cm.logger.Info("sla sweep completed",
			"evaluated", res.Evaluated,
			"changed", res.Changed,
			"escalated", res.Escalated,
			"skipped", res.Skipped,
			"failed", res.Failed,
		)
	}
	return res, nil
}

// RunReconcile retries pending audit writes.
func (cm *CronManager) RunReconcile(ctx context.Context) (int, error) {
	if cm.schedule.ReconcileLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cm.schedule.ReconcileLimit)
		defer cancel()
	}
	n, err := cm.reconciler.Reconcile(ctx)
	if err != nil {
		cm.logger.Warn("audit reconciliation incomplete", "flushed", n, "error", err)
		return n, err
	}
	if n > 0 {
		cm.logger.Info("audit records reconciled", "flushed", n)
	}
	return n, nil
}

// Start starts the cron scheduler
func (cm *CronManager) Start() {
	cm.logger.Info("starting cron scheduler")
	cm.cron.Start()
}

// Stop stops the scheduler and waits for running jobs to finish.
func (cm *CronManager) Stop(ctx context.Context) {
	cm.logger.Info("stopping cron scheduler")
	select {
	case <-cm.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Entries reports how many jobs are scheduled.
func (cm *CronManager) Entries() int {
	return len(cm.cron.Entries())
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
