package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jordanlanch/leaddesk/pkg/domain"
	"github.com/jordanlanch/leaddesk/pkg/logger"
	"github.com/jordanlanch/leaddesk/pkg/metrics"
	"github.com/jordanlanch/leaddesk/pkg/models"
	"github.com/jordanlanch/leaddesk/pkg/retry"
	"github.com/jordanlanch/leaddesk/pkg/store"
)

// Entry represents an audit log entry
type Entry struct {
	EventType  models.AuditEventType
	EntityType string
	EntityID   string
	Actor      string
	Severity   models.AuditSeverity
	Metadata   map[string]interface{}
}

// Recorder is what the pipeline components depend on.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
	RecordAsync(ctx context.Context, entry Entry)
}

// Service handles audit logging
type Service struct {
	store   store.AuditStore
	log     logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	attempts     int
	backoff      time.Duration
	writeTimeout time.Duration

	wg         sync.WaitGroup
	mu         sync.Mutex
	pending    []*models.AuditLog
	maxPending int
}

const defaultMaxPending = 10000

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(s *Service) { s.log = l } }

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithRetry sets how many times a write is attempted and the initial backoff.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(s *Service) {
		s.attempts = attempts
		s.backoff = backoff
	}
}

// WithPendingLimit caps the reconciliation queue. The oldest records are
// dropped when it is full.
func WithPendingLimit(n int) Option { return func(s *Service) { s.maxPending = n } }

// NewService creates a new audit service
func NewService(st store.AuditStore, opts ...Option) *Service {
	s := &Service{
		store:        st,
		log:          logger.Nop(),
		now:          time.Now,
		attempts:     3,
		backoff:      100 * time.Millisecond,
		writeTimeout: 5 * time.Second,
		maxPending:   defaultMaxPending,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record appends one audit record. Failures never propagate to the business
// operation: after the retries are exhausted the record is queued for
// reconciliation and an AUDIT_WRITE_FAILURE error is returned for logging only.
func (s *Service) Record(ctx context.Context, entry Entry) error {
	return s.write(ctx, s.build(entry))
}

// RecordAsync writes in the background. Call Wait before shutdown.
func (s *Service) RecordAsync(ctx context.Context, entry Entry) {
	rec := s.build(entry)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.write(context.WithoutCancel(ctx), rec)
	}()
}

func (s *Service) build(entry Entry) *models.AuditLog {
	severity := entry.Severity
	if severity == "" {
		severity = models.SeverityInfo
	}
	actor := entry.Actor
	if actor == "" {
		actor = models.ActorSystem
	}
	return &models.AuditLog{
		ID:         uuid.NewString(),
		EventType:  entry.EventType,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Actor:      actor,
		Severity:   severity,
		Timestamp:  s.now().UTC(),
		Metadata:   MaskPII(entry.Metadata),
	}
}

func (s *Service) write(ctx context.Context, rec *models.AuditLog) error {
	err := retry.Do(ctx, s.attempts, s.backoff, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
		defer cancel()
		return s.store.AppendAudit(ctx, rec)
	})
	if err == nil {
		return nil
	}

	s.mu.Lock()
	s.pending = append(s.pending, rec)
	dropped := s.trimPending()
	pending := len(s.pending)
	s.mu.Unlock()

	s.logDropped(dropped)

	s.metrics.RecordAuditFailure(pending)
	s.log.Error("audit write failed, queued for reconciliation",
		"event_type", rec.EventType,
		"entity_type", rec.EntityType,
		"entity_id", rec.EntityID,
		"error", err,
	)
	return domain.NewAuditWriteError(err)
}

// trimPending drops the oldest queued records beyond maxPending. Callers hold mu.
func (s *Service) trimPending() []*models.AuditLog {
	if s.maxPending <= 0 || len(s.pending) <= s.maxPending {
		return nil
	}
	n := len(s.pending) - s.maxPending
	dropped := append([]*models.AuditLog(nil), s.pending[:n]...)
	s.pending = append([]*models.AuditLog(nil), s.pending[n:]...)
	return dropped
}

func (s *Service) logDropped(dropped []*models.AuditLog) {
	for _, rec := range dropped {
		s.log.Error("audit reconciliation queue full, record dropped",
			"event_type", rec.EventType,
			"entity_type", rec.EntityType,
			"entity_id", rec.EntityID,
		)
	}
}

// Wait blocks until background writes have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Pending returns the records waiting for reconciliation.
func (s *Service) Pending() []*models.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.AuditLog, len(s.pending))
	copy(out, s.pending)
	return out
}

// Reconcile retries queued records once each and returns how many were written.
func (s *Service) Reconcile(ctx context.Context) (int, error) {
	s.mu.Lock()
	queued := s.pending
	s.pending = nil
	s.mu.Unlock()

	written := 0
	var firstErr error
	var failed []*models.AuditLog
	for _, rec := range queued {
		if err := s.store.AppendAudit(ctx, rec); err != nil {
			failed = append(failed, rec)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		written++
	}

	s.mu.Lock()
	s.pending = append(failed, s.pending...)
	dropped := s.trimPending()
	pending := len(s.pending)
	s.mu.Unlock()

	s.logDropped(dropped)
	s.metrics.SetAuditPending(pending)

	return written, firstErr
}

// ListForEntity returns the audit trail of one entity, oldest first
func (s *Service) ListForEntity(ctx context.Context, entityType, entityID string, limit int) ([]*models.AuditLog, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.store.ListAudit(ctx, entityType, entityID, limit)
}
