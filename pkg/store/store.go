// Package store defines the persistence and coordination contracts the
// lead engine depends on. Implementations live in the memory and sqlstore
// subpackages (persistence) and in pkg/cache (Redis coordination).
//
// Lookups that find nothing return a domain NOT_FOUND error. Versioned
// updates return VERSION_CONFLICT when expectedVersion no longer matches,
// and creating a lead whose (source, portalLeadId) already exists returns
// DEDUP_CONFLICT.
package store

import (
	"context"
	"time"

	"github.com/jordanlanch/leaddesk/pkg/models"
)

// ContactKey is the fallback dedup key for events without a portal lead id.
type ContactKey struct {
	Source    models.LeadSource
	Email     string
	Phone     string
	ListingID string
	Since     time.Time
}

// LeadStore persists leads.
type LeadStore interface {
	FindLeadByPortalID(ctx context.Context, source models.LeadSource, portalLeadID string) (*models.Lead, error)
	FindRecentLeadByContact(ctx context.Context, key ContactKey) (*models.Lead, error)
	// CreateLeadWithConversation stores both aggregates atomically.
	CreateLeadWithConversation(ctx context.Context, lead *models.Lead, conv *models.Conversation) error
	GetLead(ctx context.Context, id string) (*models.Lead, error)
	SetLeadAssignee(ctx context.Context, leadID, userID string, at time.Time) error
	SetLeadSLA(ctx context.Context, leadID string, status models.SLAStatus, firstResponseAt *time.Time, at time.Time) error
	SetLeadStatus(ctx context.Context, leadID string, status models.LeadStatus, at time.Time) error
}

// ConversationStore persists conversations and their messages.
type ConversationStore interface {
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	GetConversationByLead(ctx context.Context, leadID string) (*models.Conversation, error)
	UpdateConversation(ctx context.Context, conv *models.Conversation, expectedVersion int64) error
	// AppendMessage inserts msg and saves conv in one step, guarded by expectedVersion.
	AppendMessage(ctx context.Context, conv *models.Conversation, expectedVersion int64, msg *models.Message) error
	FindMessageByExternalID(ctx context.Context, convID, externalID string) (*models.Message, error)
	ListMessages(ctx context.Context, convID string) ([]*models.Message, error)
}

// TrackerStore persists SLA trackers.
type TrackerStore interface {
	CreateTracker(ctx context.Context, t *models.SLATracker) error
	GetTrackerByConversation(ctx context.Context, convID string) (*models.SLATracker, error)
	UpdateTracker(ctx context.Context, t *models.SLATracker, expectedVersion int64) error
	// ListOpenTrackers returns unresponded trackers that can still change, ordered by deadline.
	ListOpenTrackers(ctx context.Context, limit int) ([]*models.SLATracker, error)
	// ListOpenTrackersAfter returns the open trackers strictly after the cursor in
	// (deadline, id) order. A zero cursor starts at the first tracker.
	ListOpenTrackersAfter(ctx context.Context, after TrackerCursor, limit int) ([]*models.SLATracker, error)
}

// TrackerCursor is a position in the (deadline, id) order of open trackers.
type TrackerCursor struct {
	Deadline time.Time
	ID       string
}

// IsZero reports whether the cursor points before the first tracker.
func (c TrackerCursor) IsZero() bool {
	return c.ID == "" && c.Deadline.IsZero()
}

// CursorOf returns the cursor just past t.
func CursorOf(t *models.SLATracker) TrackerCursor {
	return TrackerCursor{Deadline: t.FirstResponseDeadline, ID: t.ID}
}

// PolicyStore holds per-project SLA configuration and assignment rules.
type PolicyStore interface {
	GetSLAConfig(ctx context.Context, projectID string) (*models.SLAConfig, error)
	PutSLAConfig(ctx context.Context, cfg *models.SLAConfig) error
	ListRules(ctx context.Context, projectID string) ([]*models.AssignmentRule, error)
	PutRule(ctx context.Context, rule *models.AssignmentRule) error
}

// WorkloadCounter reports how many open leads each user currently owns.
type WorkloadCounter interface {
	CountOpenLeads(ctx context.Context, userIDs []string) (map[string]int, error)
}

// AuditStore appends and reads audit records. There is no update or delete.
type AuditStore interface {
	AppendAudit(ctx context.Context, entry *models.AuditLog) error
	ListAudit(ctx context.Context, entityType, entityID string, limit int) ([]*models.AuditLog, error)
}

// Store is the full persistence surface.
type Store interface {
	LeadStore
	ConversationStore
	TrackerStore
	PolicyStore
	WorkloadCounter
	AuditStore
}

// Locker serializes work on a key across workers.
type Locker interface {
	// Lock blocks until the key is held or ctx is done. The returned func releases it.
	Lock(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// Leaser hands out non-blocking, expiring claims.
type Leaser interface {
	// Claim reports whether the caller now owns key for ttl.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, func(), error)
}

// CursorStore keeps a monotonically increasing counter per key.
type CursorStore interface {
	Next(ctx context.Context, key string) (int64, error)
}
