package leadassignment

import (
	"context"
	"fmt"
	"time"

	"github.com/jordanlanch/leaddesk/pkg/audit"
	"github.com/jordanlanch/leaddesk/pkg/domain"
	"github.com/jordanlanch/leaddesk/pkg/logger"
	"github.com/jordanlanch/leaddesk/pkg/metrics"
	"github.com/jordanlanch/leaddesk/pkg/models"
	"github.com/jordanlanch/leaddesk/pkg/store"
)

// RuleSource lists the active rules of a project ordered by priority.
type RuleSource interface {
	ListRules(ctx context.Context, projectID string) ([]*models.AssignmentRule, error)
}

// LeadAssigner persists the owner of a lead.
type LeadAssigner interface {
	GetLead(ctx context.Context, id string) (*models.Lead, error)
	SetLeadAssignee(ctx context.Context, leadID, userID string, at time.Time) error
}

// ConversationAssigner persists the owner of a lead's conversation.
type ConversationAssigner interface {
	GetByLead(ctx context.Context, leadID string) (*models.Conversation, error)
	SetAssignee(ctx context.Context, convID, userID string) (*models.Conversation, error)
}

// Alerter is told about leads nobody could be assigned to.
type Alerter interface {
	AssignmentUnresolved(ctx context.Context, lead *models.Lead, reason string) error
}

// Result is the outcome of an assignment.
type Result struct {
	LeadID   string                `json:"leadId"`
	UserID   string                `json:"userId,omitempty"`
	RuleID   string                `json:"ruleId,omitempty"`
	Strategy models.AssignmentType `json:"strategy"`
	Reason   string                `json:"reason"`
}

// AssignLeadRequest represents a manual assignment request.
type AssignLeadRequest struct {
	UserID string `json:"userId" validate:"required"`
	Reason string `json:"reason,omitempty"`
}

// Service handles lead assignment operations.
type Service struct {
	rules    RuleSource
	workload store.WorkloadCounter
	cursors  store.CursorStore
	leads    LeadAssigner
	convs    ConversationAssigner
	alerter  Alerter
	audit    audit.Recorder
	metrics  *metrics.Metrics
	log      logger.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithConversations also records the owner on the lead's conversation.
func WithConversations(c ConversationAssigner) Option { return func(s *Service) { s.convs = c } }

// WithAlerter sets the notifier for unresolved assignments.
func WithAlerter(a Alerter) Option { return func(s *Service) { s.alerter = a } }

// WithAudit sets the audit recorder.
func WithAudit(r audit.Recorder) Option { return func(s *Service) { s.audit = r } }

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(s *Service) { s.log = l } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService creates a new lead assignment service.
func NewService(rules RuleSource, workload store.WorkloadCounter, cursors store.CursorStore, leads LeadAssigner, opts ...Option) *Service {
	s := &Service{
		rules:    rules,
		workload: workload,
		cursors:  cursors,
		leads:    leads,
		log:      logger.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Assign routes a lead through the project's rules and persists the owner.
// Rules are tried in ascending priority; the first whose conditions all match wins.
// When nothing can be resolved the lead stays unassigned and ASSIGNMENT_UNRESOLVED
// is returned; callers treat it as non-fatal.
func (s *Service) Assign(ctx context.Context, lead *models.Lead) (*Result, error) {
	res, err := s.Decide(ctx, lead)
	if err != nil {
		if domain.IsAssignmentUnresolved(err) {
			s.unresolved(ctx, lead, err)
		}
		return nil, err
	}

	if res.UserID != "" {
		if err := s.persist(ctx, lead.ID, res.UserID); err != nil {
			s.metrics.RecordAssignment(string(res.Strategy), "failed")
			return nil, err
		}
	}

	s.metrics.RecordAssignment(string(res.Strategy), outcome(res))
	s.log.Info("lead assigned",
		"lead_id", lead.ID,
		"user_id", res.UserID,
		"rule_id", res.RuleID,
		"strategy", res.Strategy,
	)
	s.recordAudit(ctx, audit.Entry{
		EventType:  models.AuditLeadAssigned,
		EntityType: models.EntityLead,
		EntityID:   lead.ID,
		Metadata: map[string]interface{}{
			"user_id":  res.UserID,
			"rule_id":  res.RuleID,
			"strategy": string(res.Strategy),
			"reason":   res.Reason,
		},
	})
	return res, nil
}

func outcome(res *Result) string {
	if res.UserID == "" {
		return "unassigned"
	}
	return "assigned"
}

// Decide picks an owner without persisting anything.
func (s *Service) Decide(ctx context.Context, lead *models.Lead) (*Result, error) {
	rules, err := s.rules.ListRules(ctx, lead.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignment rules: %w", err)
	}
	if len(rules) == 0 {
		return nil, domain.NewAssignmentUnresolvedError("no active assignment rules for project " + lead.ProjectID)
	}

	for _, rule := range rules {
		if !Matches(rule.Conditions, lead) {
			continue
		}
		return s.apply(ctx, rule, lead)
	}

	last := rules[len(rules)-1]
	if last.Assignment.FallbackUserID != "" {
		return &Result{
			LeadID:   lead.ID,
			UserID:   last.Assignment.FallbackUserID,
			RuleID:   last.ID,
			Strategy: last.Assignment.Type,
			Reason:   "no rule matched, fallback of last rule",
		}, nil
	}
	return nil, domain.NewAssignmentUnresolvedError("no assignment rule matched")
}

func (s *Service) apply(ctx context.Context, rule *models.AssignmentRule, lead *models.Lead) (*Result, error) {
	res := &Result{LeadID: lead.ID, RuleID: rule.ID, Strategy: rule.Assignment.Type}
	users := rule.Assignment.UserIDs

	if rule.Assignment.Type == models.AssignmentManual {
		res.Reason = fmt.Sprintf("rule %q requires manual assignment", rule.Name)
		return res, nil
	}

	if len(users) == 0 {
		if rule.Assignment.FallbackUserID == "" {
			return nil, domain.NewAssignmentUnresolvedError(fmt.Sprintf("rule %q has no candidates and no fallback", rule.Name))
		}
		res.UserID = rule.Assignment.FallbackUserID
		res.Reason = fmt.Sprintf("rule %q has no candidates, fallback user", rule.Name)
		return res, nil
	}

	switch rule.Assignment.Type {
	case models.AssignmentAuto:
		res.UserID = users[0]
		res.Reason = fmt.Sprintf("rule %q direct assignment", rule.Name)

	case models.AssignmentRoundRobin:
		n, err := s.cursors.Next(ctx, "assign:rr:"+rule.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to advance round-robin cursor: %w", err)
		}
		idx := int((n - 1) % int64(len(users)))
		res.UserID = users[idx]
		res.Reason = fmt.Sprintf("rule %q round-robin position %d", rule.Name, idx)

	case models.AssignmentLeastBusy:
		counts, err := s.workload.CountOpenLeads(ctx, users)
		if err != nil {
			return nil, fmt.Errorf("failed to count assignments: %w", err)
		}
		selected := users[0]
		minCount := counts[selected]
		for _, u := range users[1:] {
			if counts[u] < minCount {
				minCount = counts[u]
				selected = u
			}
		}
		res.UserID = selected
		res.Reason = fmt.Sprintf("rule %q least busy (user had %d open leads)", rule.Name, minCount)

	default:
		return nil, domain.NewValidationError(fmt.Sprintf("rule %q has unknown assignment type %q", rule.Name, rule.Assignment.Type))
	}
	return res, nil
}

// Reassign manually assigns a lead to a user.
func (s *Service) Reassign(ctx context.Context, leadID string, req AssignLeadRequest, assignedBy string) (*Result, error) {
	if req.UserID == "" {
		return nil, domain.NewValidationError("user id is required")
	}
	lead, err := s.leads.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}

	if err := s.persist(ctx, lead.ID, req.UserID); err != nil {
		return nil, err
	}

	reason := req.Reason
	if reason == "" {
		reason = "manual"
	}
	res := &Result{LeadID: lead.ID, UserID: req.UserID, Strategy: models.AssignmentManual, Reason: reason}

	s.metrics.RecordAssignment(string(models.AssignmentManual), "reassigned")
	s.recordAudit(ctx, audit.Entry{
		EventType:  models.AuditLeadAssigned,
		EntityType: models.EntityLead,
		EntityID:   lead.ID,
		Actor:      assignedBy,
		Metadata: map[string]interface{}{
			"user_id":          req.UserID,
			"previous_user_id": lead.AssignedUserID,
			"strategy":         string(models.AssignmentManual),
			"reason":           reason,
		},
	})
	return res, nil
}

func (s *Service) persist(ctx context.Context, leadID, userID string) error {
	if err := s.leads.SetLeadAssignee(ctx, leadID, userID, s.now().UTC()); err != nil {
		return fmt.Errorf("failed to save lead assignee: %w", err)
	}
	if s.convs == nil {
		return nil
	}
	conv, err := s.convs.GetByLead(ctx, leadID)
	if err != nil {
		return fmt.Errorf("failed to load conversation: %w", err)
	}
	if _, err := s.convs.SetAssignee(ctx, conv.ID, userID); err != nil {
		return fmt.Errorf("failed to save conversation assignee: %w", err)
	}
	return nil
}

func (s *Service) unresolved(ctx context.Context, lead *models.Lead, cause error) {
	s.metrics.RecordAssignment("none", "unresolved")
	s.log.Warn("lead left unassigned", "lead_id", lead.ID, "project_id", lead.ProjectID, "error", cause)
	s.recordAudit(ctx, audit.Entry{
		EventType:  models.AuditAssignmentUnresolved,
		EntityType: models.EntityLead,
		EntityID:   lead.ID,
		Severity:   models.SeverityWarning,
		Metadata:   map[string]interface{}{"reason": cause.Error()},
	})
	if s.alerter != nil {
		if err := s.alerter.AssignmentUnresolved(ctx, lead, cause.Error()); err != nil {
			s.log.Error("failed to send unassigned lead alert", "lead_id", lead.ID, "error", err)
		}
	}
}

func (s *Service) recordAudit(ctx context.Context, entry audit.Entry) {
	if s.audit == nil {
		return
	}
	s.audit.RecordAsync(ctx, entry)
}
