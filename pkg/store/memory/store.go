// Package memory is an in-process implementation of the store contracts,
// used by tests and by single-node development deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jordanlanch/leaddesk/pkg/domain"
	"github.com/jordanlanch/leaddesk/pkg/models"
	"github.com/jordanlanch/leaddesk/pkg/store"
)

// Store keeps every collection in maps guarded by one mutex. Values are
// copied on the way in and out so callers never share mutable state.
type Store struct {
	mu sync.RWMutex

	leads         map[string]*models.Lead
	portalIndex   map[string]string // source|portalLeadId -> lead id
	conversations map[string]*models.Conversation
	convByLead    map[string]string
	messages      map[string][]*models.Message
	trackers      map[string]*models.SLATracker // by conversation id
	slaConfigs    map[string]*models.SLAConfig
	rules         map[string]*models.AssignmentRule
	audit         []*models.AuditLog
}

var _ store.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		leads:         make(map[string]*models.Lead),
		portalIndex:   make(map[string]string),
		conversations: make(map[string]*models.Conversation),
		convByLead:    make(map[string]string),
		messages:      make(map[string][]*models.Message),
		trackers:      make(map[string]*models.SLATracker),
		slaConfigs:    make(map[string]*models.SLAConfig),
		rules:         make(map[string]*models.AssignmentRule),
	}
}

func portalKey(source models.LeadSource, portalLeadID string) string {
	return string(source) + "|" + portalLeadID
}

// FindLeadByPortalID looks a lead up by its unique dedup key.
func (s *Store) FindLeadByPortalID(ctx context.Context, source models.LeadSource, portalLeadID string) (*models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.portalIndex[portalKey(source, portalLeadID)]
	if !ok {
		return nil, domain.NewNotFoundError("lead")
	}
	return cloneLead(s.leads[id]), nil
}

// FindRecentLeadByContact returns the newest lead matching the contact key.
func (s *Store) FindRecentLeadByContact(ctx context.Context, key store.ContactKey) (*models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *models.Lead
	for _, l := range s.leads {
		if l.Source != key.Source || l.ListingID != key.ListingID || l.CreatedAt.Before(key.Since) {
			continue
		}
		if !contactMatches(l, key) {
			continue
		}
		if found == nil || l.CreatedAt.After(found.CreatedAt) {
			found = l
		}
	}
	if found == nil {
		return nil, domain.NewNotFoundError("lead")
	}
	return cloneLead(found), nil
}

func contactMatches(l *models.Lead, key store.ContactKey) bool {
	if key.Email != "" {
		return l.Email == key.Email
	}
	return key.Phone != "" && l.Phone == key.Phone
}

// CreateLeadWithConversation stores a new lead and its conversation.
func (s *Store) CreateLeadWithConversation(ctx context.Context, lead *models.Lead, conv *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lead.PortalLeadID != "" {
		key := portalKey(lead.Source, lead.PortalLeadID)
		if _, exists := s.portalIndex[key]; exists {
			return domain.NewDedupConflictError(key)
		}
		s.portalIndex[key] = lead.ID
	}
	s.leads[lead.ID] = cloneLead(lead)
	s.conversations[conv.ID] = cloneConversation(conv)
	s.convByLead[lead.ID] = conv.ID
	return nil
}

// GetLead returns a lead by id.
func (s *Store) GetLead(ctx context.Context, id string) (*models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.leads[id]
	if !ok {
		return nil, domain.NewNotFoundError("lead")
	}
	return cloneLead(l), nil
}

func (s *Store) mutateLead(id string, fn func(*models.Lead)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.leads[id]
	if !ok {
		return domain.NewNotFoundError("lead")
	}
	fn(l)
	return nil
}

// SetLeadAssignee records the lead owner.
func (s *Store) SetLeadAssignee(ctx context.Context, leadID, userID string, at time.Time) error {
	return s.mutateLead(leadID, func(l *models.Lead) {
		l.AssignedUserID = userID
		l.UpdatedAt = at
	})
}

// SetLeadSLA mirrors the tracker state onto the lead.
func (s *Store) SetLeadSLA(ctx context.Context, leadID string, status models.SLAStatus, firstResponseAt *time.Time, at time.Time) error {
	return s.mutateLead(leadID, func(l *models.Lead) {
		l.SLAStatus = status
		l.FirstResponseAt = cloneTime(firstResponseAt)
		l.UpdatedAt = at
	})
}

// SetLeadStatus changes the commercial status of a lead.
func (s *Store) SetLeadStatus(ctx context.Context, leadID string, status models.LeadStatus, at time.Time) error {
	return s.mutateLead(leadID, func(l *models.Lead) {
		l.Status = status
		l.UpdatedAt = at
	})
}

// GetConversation returns a conversation by id.
func (s *Store) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[id]
	if !ok {
		return nil, domain.NewNotFoundError("conversation")
	}
	return cloneConversation(c), nil
}

// GetConversationByLead returns the conversation of a lead.
func (s *Store) GetConversationByLead(ctx context.Context, leadID string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.convByLead[leadID]
	if !ok {
		return nil, domain.NewNotFoundError("conversation")
	}
	return cloneConversation(s.conversations[id]), nil
}

func (s *Store) checkVersion(conv *models.Conversation, expectedVersion int64) error {
	current, ok := s.conversations[conv.ID]
	if !ok {
		return domain.NewNotFoundError("conversation")
	}
	if current.Version != expectedVersion {
		return domain.NewVersionConflictError("conversation")
	}
	return nil
}

// UpdateConversation saves conv if its stored version still equals expectedVersion.
func (s *Store) UpdateConversation(ctx context.Context, conv *models.Conversation, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkVersion(conv, expectedVersion); err != nil {
		return err
	}
	conv.Version = expectedVersion + 1
	s.conversations[conv.ID] = cloneConversation(conv)
	return nil
}

// AppendMessage inserts msg and saves conv atomically.
func (s *Store) AppendMessage(ctx context.Context, conv *models.Conversation, expectedVersion int64, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkVersion(conv, expectedVersion); err != nil {
		return err
	}
	conv.Version = expectedVersion + 1
	s.conversations[conv.ID] = cloneConversation(conv)
	s.messages[conv.ID] = append(s.messages[conv.ID], cloneMessage(msg))
	return nil
}

// FindMessageByExternalID finds a previously stored provider message.
func (s *Store) FindMessageByExternalID(ctx context.Context, convID, externalID string) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.messages[convID] {
		if m.ExternalID == externalID {
			return cloneMessage(m), nil
		}
	}
	return nil, domain.NewNotFoundError("message")
}

// ListMessages returns the conversation history in (createdAt, seq) order.
func (s *Store) ListMessages(ctx context.Context, convID string) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Message, 0, len(s.messages[convID]))
	for _, m := range s.messages[convID] {
		out = append(out, cloneMessage(m))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Seq < out[j].Seq
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// CreateTracker stores a new tracker; one per conversation.
func (s *Store) CreateTracker(ctx context.Context, t *models.SLATracker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.trackers[t.ConversationID]; exists {
		return domain.NewVersionConflictError("sla tracker")
	}
	s.trackers[t.ConversationID] = cloneTracker(t)
	return nil
}

// GetTrackerByConversation returns the tracker of a conversation.
func (s *Store) GetTrackerByConversation(ctx context.Context, convID string) (*models.SLATracker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.trackers[convID]
	if !ok {
		return nil, domain.NewNotFoundError("sla tracker")
	}
	return cloneTracker(t), nil
}

// UpdateTracker saves t if its stored version still equals expectedVersion.
func (s *Store) UpdateTracker(ctx context.Context, t *models.SLATracker, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.trackers[t.ConversationID]
	if !ok {
		return domain.NewNotFoundError("sla tracker")
	}
	if current.Version != expectedVersion {
		return domain.NewVersionConflictError("sla tracker")
	}
	t.Version = expectedVersion + 1
	s.trackers[t.ConversationID] = cloneTracker(t)
	return nil
}

// ListOpenTrackers returns trackers still subject to sweeping, earliest deadline first.
func (s *Store) ListOpenTrackers(ctx context.Context, limit int) ([]*models.SLATracker, error) {
	return s.ListOpenTrackersAfter(ctx, store.TrackerCursor{}, limit)
}

// ListOpenTrackersAfter pages the open trackers by (deadline, id).
func (s *Store) ListOpenTrackersAfter(ctx context.Context, after store.TrackerCursor, limit int) ([]*models.SLATracker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.SLATracker
	for _, t := range s.trackers {
		if t.Open() && (after.IsZero() || trackerAfter(t, after)) {
			out = append(out, cloneTracker(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return trackerAfter(out[j], store.CursorOf(out[i]))
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func trackerAfter(t *models.SLATracker, c store.TrackerCursor) bool {
	if t.FirstResponseDeadline.Equal(c.Deadline) {
		return t.ID > c.ID
	}
	return t.FirstResponseDeadline.After(c.Deadline)
}

// GetSLAConfig returns the SLA policy of a project.
func (s *Store) GetSLAConfig(ctx context.Context, projectID string) (*models.SLAConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.slaConfigs[projectID]
	if !ok {
		return nil, domain.NewNotFoundError("sla config")
	}
	c := *cfg
	c.BusinessHours.DaysOfWeek = append([]int(nil), cfg.BusinessHours.DaysOfWeek...)
	return &c, nil
}

// PutSLAConfig replaces the SLA policy of a project.
func (s *Store) PutSLAConfig(ctx context.Context, cfg *models.SLAConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *cfg
	c.BusinessHours.DaysOfWeek = append([]int(nil), cfg.BusinessHours.DaysOfWeek...)
	s.slaConfigs[cfg.ProjectID] = &c
	return nil
}

// ListRules returns the active rules of a project ordered by ascending priority.
func (s *Store) ListRules(ctx context.Context, projectID string) ([]*models.AssignmentRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.AssignmentRule
	for _, r := range s.rules {
		if r.ProjectID == projectID && r.Active {
			rc := *r
			out = append(out, &rc)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority == out[j].Priority {
			return out[i].ID < out[j].ID
		}
		return out[i].Priority < out[j].Priority
	})
	return out, nil
}

// PutRule creates or replaces an assignment rule.
func (s *Store) PutRule(ctx context.Context, rule *models.AssignmentRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rc := *rule
	s.rules[rule.ID] = &rc
	return nil
}

// CountOpenLeads counts open leads per owner.
func (s *Store) CountOpenLeads(ctx context.Context, userIDs []string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int, len(userIDs))
	for _, id := range userIDs {
		counts[id] = 0
	}
	for _, l := range s.leads {
		if _, tracked := counts[l.AssignedUserID]; tracked && l.Status.IsOpen() {
			counts[l.AssignedUserID]++
		}
	}
	return counts, nil
}

// AppendAudit appends one audit record.
func (s *Store) AppendAudit(ctx context.Context, entry *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := *entry
	s.audit = append(s.audit, &e)
	return nil
}

// ListAudit returns audit records for an entity, oldest first.
func (s *Store) ListAudit(ctx context.Context, entityType, entityID string, limit int) ([]*models.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.AuditLog
	for _, e := range s.audit {
		if (entityType == "" || e.EntityType == entityType) && (entityID == "" || e.EntityID == entityID) {
			ec := *e
			out = append(out, &ec)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
