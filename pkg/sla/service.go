package sla

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jordanlanch/leaddesk/pkg/audit"
	"github.com/jordanlanch/leaddesk/pkg/domain"
	"github.com/jordanlanch/leaddesk/pkg/logger"
	"github.com/jordanlanch/leaddesk/pkg/metrics"
	"github.com/jordanlanch/leaddesk/pkg/models"
	"github.com/jordanlanch/leaddesk/pkg/store"
)

const maxUpdateAttempts = 5

// ConfigSource resolves the SLA policy of a project.
type ConfigSource interface {
	GetSLAConfig(ctx context.Context, projectID string) (*models.SLAConfig, error)
}

// LeadWriter receives the SLA status mirrored onto the lead.
type LeadWriter interface {
	SetLeadSLA(ctx context.Context, leadID string, status models.SLAStatus, firstResponseAt *time.Time, at time.Time) error
}

// Mirror receives the SLA status mirrored onto the conversation.
type Mirror interface {
	MirrorSLA(ctx context.Context, convID string, status models.SLAStatus, deadline time.Time) error
}

// Alerter notifies humans about escalations and broken policies.
type Alerter interface {
	SLAEscalated(ctx context.Context, t *models.SLATracker) error
	SLAConfigInvalid(ctx context.Context, projectID string, err error) error
}

// Service owns SLA trackers: creation, first response, reopen and evaluation.
type Service struct {
	trackers store.TrackerStore
	configs  ConfigSource
	leads    LeadWriter
	mirror   Mirror
	alerter  Alerter
	audit    audit.Recorder
	metrics  *metrics.Metrics
	log      logger.Logger
	now      func() time.Time
	defaults models.SLAConfig
}

// Option configures a Service.
type Option func(*Service)

// WithMirror sets where conversation status is mirrored.
func WithMirror(m Mirror) Option { return func(s *Service) { s.mirror = m } }

// WithAlerter sets the escalation notifier.
func WithAlerter(a Alerter) Option { return func(s *Service) { s.alerter = a } }

// WithAudit sets the audit recorder.
func WithAudit(r audit.Recorder) Option { return func(s *Service) { s.audit = r } }

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(s *Service) { s.log = l } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithDefaults sets the policy used for projects without their own SLA config.
func WithDefaults(cfg models.SLAConfig) Option { return func(s *Service) { s.defaults = cfg } }

// DefaultConfig is the policy applied when neither the project nor the caller provides one.
func DefaultConfig() models.SLAConfig {
	return models.SLAConfig{
		FirstResponseMinutes: 15,
		AtRiskFraction:       0.2,
		EscalationLevels:     [models.MaxEscalationLevel]int{0, 15, 60, 240},
	}
}

// NewService creates a new SLA service
func NewService(trackers store.TrackerStore, configs ConfigSource, leads LeadWriter, opts ...Option) *Service {
	s := &Service{
		trackers: trackers,
		configs:  configs,
		leads:    leads,
		log:      logger.Nop(),
		now:      time.Now,
		defaults: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the effective policy of a project.
func (s *Service) Config(ctx context.Context, projectID string) (*models.SLAConfig, error) {
	cfg, err := s.configs.GetSLAConfig(ctx, projectID)
	if err == nil {
		if cfg.FirstResponseMinutes <= 0 {
			cfg.FirstResponseMinutes = s.defaults.FirstResponseMinutes
		}
		return cfg, nil
	}
	if !domain.IsNotFound(err) {
		return nil, fmt.Errorf("failed to load sla config: %w", err)
	}
	def := s.defaults
	def.ProjectID = projectID
	return &def, nil
}

// Init creates the tracker of a new conversation. A broken business-hours
// policy does not fail the call: the tracker falls back to a wall-clock deadline
// and carries the computation error.
func (s *Service) Init(ctx context.Context, lead *models.Lead, conv *models.Conversation) (*models.SLATracker, error) {
	cfg, err := s.Config(ctx, conv.ProjectID)
	if err != nil {
		return nil, err
	}

	deadline, businessHours, calcErr := Deadline(conv.CreatedAt, cfg)
	now := s.now()
	t := &models.SLATracker{
		ID:                    uuid.NewString(),
		LeadID:                lead.ID,
		ConversationID:        conv.ID,
		ProjectID:             conv.ProjectID,
		CreatedAt:             conv.CreatedAt,
		FirstResponseDeadline: deadline,
		AtRiskAt:              AtRiskAt(deadline, cfg),
		SLAStatus:             models.SLAOnTrack,
		BusinessHoursOnly:     businessHours,
		Version:               1,
		UpdatedAt:             now,
	}
	if calcErr != nil {
		t.ComputationError = calcErr.Error()
	}

	if err := s.trackers.CreateTracker(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create sla tracker: %w", err)
	}

	if calcErr != nil {
		s.reportComputationError(ctx, t, calcErr)
	}
	s.recordAudit(ctx, audit.Entry{
		EventType:  models.AuditSLAInitialized,
		EntityType: models.EntitySLATracker,
		EntityID:   t.ID,
		Metadata: map[string]interface{}{
			"conversation_id":     conv.ID,
			"deadline":            deadline,
			"business_hours_only": businessHours,
		},
	})
	s.mirrorStatus(ctx, t, now)
	return t, nil
}

func (s *Service) reportComputationError(ctx context.Context, t *models.SLATracker, calcErr error) {
	err := domain.NewSLAComputationError(calcErr)
	s.log.Warn("business hours misconfigured, using wall-clock deadline",
		"project_id", t.ProjectID,
		"tracker_id", t.ID,
		"error", err,
	)
	s.recordAudit(ctx, audit.Entry{
		EventType:  models.AuditSLAComputationFailed,
		EntityType: models.EntitySLATracker,
		EntityID:   t.ID,
		Severity:   models.SeverityWarning,
		Metadata:   map[string]interface{}{"project_id": t.ProjectID, "error": calcErr.Error()},
	})
	if s.alerter != nil {
		if aerr := s.alerter.SLAConfigInvalid(ctx, t.ProjectID, calcErr); aerr != nil {
			s.log.Error("failed to send sla config alert", "project_id", t.ProjectID, "error", aerr)
		}
	}
}

// Get returns the tracker of a conversation.
func (s *Service) Get(ctx context.Context, convID string) (*models.SLATracker, error) {
	return s.trackers.GetTrackerByConversation(ctx, convID)
}

// RecordResponse stamps the first SLA-impacting reply. It reports whether this
// call was the one that set firstResponseAt.
func (s *Service) RecordResponse(ctx context.Context, convID string, at time.Time) (*models.SLATracker, bool, error) {
	var responded bool
	t, err := s.update(ctx, convID, func(t *models.SLATracker) bool {
		responded = Respond(t, at)
		return responded
	})
	if err != nil || !responded {
		return t, false, err
	}

	within := t.SLAStatus == models.SLAOnTrack
	s.metrics.RecordFirstResponse(at.Sub(t.CreatedAt), within)
	s.recordAudit(ctx, audit.Entry{
		EventType:  models.AuditSLAResponded,
		EntityType: models.EntitySLATracker,
		EntityID:   t.ID,
		Metadata: map[string]interface{}{
			"conversation_id":   convID,
			"first_response_at": at,
			"within_deadline":   within,
		},
	})
	s.mirrorStatus(ctx, t, at)
	return t, true, nil
}

// Reopen restarts the first-response cycle of a reopened conversation from at.
func (s *Service) Reopen(ctx context.Context, convID, actor string, at time.Time) (*models.SLATracker, error) {
	current, err := s.trackers.GetTrackerByConversation(ctx, convID)
	if err != nil {
		return nil, err
	}
	cfg, err := s.Config(ctx, current.ProjectID)
	if err != nil {
		return nil, err
	}
	deadline, businessHours, calcErr := Deadline(at, cfg)

	t, err := s.update(ctx, convID, func(t *models.SLATracker) bool {
		Rearm(t, deadline, AtRiskAt(deadline, cfg), at, actor)
		t.BusinessHoursOnly = businessHours
		t.ComputationError = ""
		if calcErr != nil {
			t.ComputationError = calcErr.Error()
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	if calcErr != nil {
		s.reportComputationError(ctx, t, calcErr)
	}
	s.recordAudit(ctx, audit.Entry{
		EventType:  models.AuditSLAReopened,
		EntityType: models.EntitySLATracker,
		EntityID:   t.ID,
		Actor:      actor,
		Metadata:   map[string]interface{}{"conversation_id": convID, "deadline": deadline},
	})
	s.mirrorStatus(ctx, t, at)
	return t, nil
}

// Evaluate advances one tracker to now and persists the result. A concurrent
// change to the tracker returns VERSION_CONFLICT without retrying; the next
// sweep picks it up again.
func (s *Service) Evaluate(ctx context.Context, t *models.SLATracker, now time.Time) ([]Transition, error) {
	cfg, err := s.Config(ctx, t.ProjectID)
	if err != nil {
		return nil, err
	}

	expected := t.Version
	next := *t
	next.EscalationHistory = append([]models.EscalationEntry(nil), t.EscalationHistory...)
	transitions := Evaluate(&next, cfg.EscalationLevels, now)
	if len(transitions) == 0 {
		return nil, nil
	}

	next.UpdatedAt = now
	if err := s.trackers.UpdateTracker(ctx, &next, expected); err != nil {
		return nil, err
	}
	*t = next

	for _, tr := range transitions {
		if tr.Escalated {
			s.onEscalated(ctx, t, tr.Level)
			continue
		}
		s.metrics.RecordSLATransition(string(tr.To))
		s.recordAudit(ctx, audit.Entry{
			EventType:  models.AuditSLAStatusChanged,
			EntityType: models.EntitySLATracker,
			EntityID:   t.ID,
			Severity:   severityFor(tr.To),
			Metadata: map[string]interface{}{
				"conversation_id": t.ConversationID,
				"from":            string(tr.From),
				"to":              string(tr.To),
			},
		})
	}
	s.mirrorStatus(ctx, t, now)
	return transitions, nil
}

func (s *Service) onEscalated(ctx context.Context, t *models.SLATracker, level int) {
	s.metrics.RecordEscalation(level)
	severity := models.SeverityWarning
	if level >= 3 {
		severity = models.SeverityCritical
	}
	s.recordAudit(ctx, audit.Entry{
		EventType:  models.AuditSLAEscalated,
		EntityType: models.EntitySLATracker,
		EntityID:   t.ID,
		Severity:   severity,
		Metadata: map[string]interface{}{
			"conversation_id": t.ConversationID,
			"level":           level,
			"deadline":        t.FirstResponseDeadline,
		},
	})
	s.log.Warn("sla escalated",
		"tracker_id", t.ID,
		"conversation_id", t.ConversationID,
		"level", level,
	)
	if s.alerter != nil {
		if err := s.alerter.SLAEscalated(ctx, t); err != nil {
			s.log.Error("failed to send escalation alert", "tracker_id", t.ID, "error", err)
		}
	}
}

func severityFor(status models.SLAStatus) models.AuditSeverity {
	switch status {
	case models.SLABreached:
		return models.SeverityCritical
	case models.SLAAtRisk:
		return models.SeverityWarning
	}
	return models.SeverityInfo
}

// update applies fn to the latest tracker under optimistic concurrency,
// retrying on version conflicts. fn returns false when nothing changed.
func (s *Service) update(ctx context.Context, convID string, fn func(*models.SLATracker) bool) (*models.SLATracker, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		t, err := s.trackers.GetTrackerByConversation(ctx, convID)
		if err != nil {
			return nil, err
		}
		expected := t.Version
		if !fn(t) {
			return t, nil
		}
		t.UpdatedAt = s.now()
		err = s.trackers.UpdateTracker(ctx, t, expected)
		if err == nil {
			return t, nil
		}
		if !domain.IsVersionConflict(err) {
			return nil, fmt.Errorf("failed to update sla tracker: %w", err)
		}
	}
	return nil, domain.NewVersionConflictError("sla tracker")
}

func (s *Service) mirrorStatus(ctx context.Context, t *models.SLATracker, at time.Time) {
	var errs []error
	if s.mirror != nil {
		if err := s.mirror.MirrorSLA(ctx, t.ConversationID, t.SLAStatus, t.FirstResponseDeadline); err != nil {
			errs = append(errs, err)
		}
	}
	if s.leads != nil {
		if err := s.leads.SetLeadSLA(ctx, t.LeadID, t.SLAStatus, t.FirstResponseAt, at); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		s.log.Error("failed to mirror sla status",
			"tracker_id", t.ID,
			"status", t.SLAStatus,
			"error", err,
		)
	}
}

func (s *Service) recordAudit(ctx context.Context, entry audit.Entry) {
	if s.audit == nil {
		return
	}
	s.audit.RecordAsync(ctx, entry)
}
