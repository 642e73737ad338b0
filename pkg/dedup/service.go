package dedup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jordanlanch/leaddesk/pkg/audit"
	"github.com/jordanlanch/leaddesk/pkg/domain"
	"github.com/jordanlanch/leaddesk/pkg/logger"
	"github.com/jordanlanch/leaddesk/pkg/models"
	"github.com/jordanlanch/leaddesk/pkg/store"
)

// Store is the persistence the deduplicator needs.
type Store interface {
	store.LeadStore
	GetConversationByLead(ctx context.Context, leadID string) (*models.Conversation, error)
}

// Result identifies the lead and conversation an event belongs to.
type Result struct {
	LeadID         string
	ConversationID string
	IsNewLead      bool
	Lead           *models.Lead
	Conversation   *models.Conversation
}

// Service maps inbound events onto existing or new leads.
type Service struct {
	store   Store
	locker  store.Locker
	audit   audit.Recorder
	log     logger.Logger
	now     func() time.Time
	window  time.Duration
	lockTTL time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithLocker serializes resolution per dedup key.
func WithLocker(l store.Locker) Option { return func(s *Service) { s.locker = l } }

// WithAudit sets the audit recorder.
func WithAudit(r audit.Recorder) Option { return func(s *Service) { s.audit = r } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(s *Service) { s.log = l } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithWindow sets how far back a contact-based key matches an existing lead.
func WithWindow(d time.Duration) Option { return func(s *Service) { s.window = d } }

// NewService creates a new dedup service
func NewService(st Store, opts ...Option) *Service {
	s := &Service{
		store:   st,
		log:     logger.Nop(),
		now:     time.Now,
		window:  24 * time.Hour,
		lockTTL: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the dedup key of an event, or "" when it has none.
func Key(ev *models.RawLeadEvent) string {
	if ev.PortalLeadID != "" {
		return fmt.Sprintf("dedup:%s:portal:%s", ev.Source, ev.PortalLeadID)
	}
	if ev.Contact.Email != "" {
		return fmt.Sprintf("dedup:%s:email:%s:%s", ev.Source, strings.ToLower(ev.Contact.Email), ev.ListingID)
	}
	if ev.Contact.Phone != "" {
		return fmt.Sprintf("dedup:%s:phone:%s:%s", ev.Source, ev.Contact.Phone, ev.ListingID)
	}
	return ""
}

// Resolve finds the lead an event belongs to, creating lead and conversation
// when none exists. Concurrent calls with the same key produce one lead.
func (s *Service) Resolve(ctx context.Context, ev *models.RawLeadEvent) (*Result, error) {
	key := Key(ev)
	if key == "" {
		return nil, domain.NewValidationError("event has neither portal lead id nor contact email/phone")
	}

	if s.locker != nil {
		release, err := s.locker.Lock(ctx, key, s.lockTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to lock dedup key: %w", err)
		}
		defer release()
	}

	lead, err := s.lookup(ctx, ev)
	switch {
	case err == nil:
		return s.existing(ctx, lead, key)
	case !domain.IsNotFound(err):
		return nil, fmt.Errorf("failed to look up lead: %w", err)
	}

	res, err := s.create(ctx, ev)
	if err == nil {
		return res, nil
	}
	if !domain.IsDedupConflict(err) {
		return nil, err
	}

	// Another worker created the lead between our lookup and insert.
	s.log.Debug("dedup conflict, joining existing lead", "key", key)
	lead, lerr := s.lookup(ctx, ev)
	if lerr != nil {
		return nil, errors.Join(err, lerr)
	}
	return s.existing(ctx, lead, key)
}

func (s *Service) lookup(ctx context.Context, ev *models.RawLeadEvent) (*models.Lead, error) {
	if ev.PortalLeadID != "" {
		return s.store.FindLeadByPortalID(ctx, ev.Source, ev.PortalLeadID)
	}
	return s.store.FindRecentLeadByContact(ctx, store.ContactKey{
		Source:    ev.Source,
		Email:     strings.ToLower(ev.Contact.Email),
		Phone:     ev.Contact.Phone,
		ListingID: ev.ListingID,
		Since:     s.now().Add(-s.window),
	})
}

func (s *Service) existing(ctx context.Context, lead *models.Lead, key string) (*Result, error) {
	conv, err := s.store.GetConversationByLead(ctx, lead.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation of lead %s: %w", lead.ID, err)
	}
	s.recordAudit(ctx, audit.Entry{
		EventType:  models.AuditLeadDeduplicated,
		EntityType: models.EntityLead,
		EntityID:   lead.ID,
		Metadata:   map[string]interface{}{"conversation_id": conv.ID, "key_kind": keyKind(key)},
	})
	return &Result{LeadID: lead.ID, ConversationID: conv.ID, Lead: lead, Conversation: conv}, nil
}

func (s *Service) create(ctx context.Context, ev *models.RawLeadEvent) (*Result, error) {
	now := s.now().UTC()
	priority := ev.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}

	lead := &models.Lead{
		ID:             uuid.NewString(),
		ProjectID:      ev.ProjectID,
		Source:         ev.Source,
		PortalLeadID:   ev.PortalLeadID,
		ListingID:      ev.ListingID,
		Name:           ev.Contact.Name,
		Email:          strings.ToLower(ev.Contact.Email),
		Phone:          ev.Contact.Phone,
		Type:           ev.Type,
		ProjectPhase:   ev.ProjectPhase,
		RequiredSkills: ev.Skills,
		Status:         models.LeadStatusNew,
		Priority:       priority,
		SLAStatus:      models.SLAOnTrack,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	conv := &models.Conversation{
		ID:        uuid.NewString(),
		LeadID:    lead.ID,
		ProjectID: ev.ProjectID,
		Channel:   ev.Channel,
		Status:    models.ConversationActive,
		SLAStatus: models.SLAOnTrack,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateLeadWithConversation(ctx, lead, conv); err != nil {
		if domain.IsDedupConflict(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create lead: %w", err)
	}

	s.log.Info("lead created",
		"lead_id", lead.ID,
		"conversation_id", conv.ID,
		"source", lead.Source,
		"project_id", lead.ProjectID,
	)
	s.recordAudit(ctx, audit.Entry{
		EventType:  models.AuditLeadCreated,
		EntityType: models.EntityLead,
		EntityID:   lead.ID,
		Metadata: map[string]interface{}{
			"conversation_id": conv.ID,
			"source":          string(lead.Source),
			"portal_lead_id":  lead.PortalLeadID,
			"listing_id":      lead.ListingID,
			"email":           lead.Email,
			"phone":           lead.Phone,
		},
	})
	return &Result{LeadID: lead.ID, ConversationID: conv.ID, IsNewLead: true, Lead: lead, Conversation: conv}, nil
}

func keyKind(key string) string {
	parts := strings.SplitN(key, ":", 4)
	if len(parts) < 3 {
		return ""
	}
	return parts[2]
}

func (s *Service) recordAudit(ctx context.Context, entry audit.Entry) {
	if s.audit == nil {
		return
	}
	s.audit.RecordAsync(ctx, entry)
}
