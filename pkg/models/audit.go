package models

import "time"

// AuditEventType names the state change an audit record describes.
type AuditEventType string

const (
	AuditLeadCreated           AuditEventType = "lead_created"
	AuditLeadDeduplicated      AuditEventType = "lead_deduplicated"
	AuditDataRejected          AuditEventType = "data_rejected"
	AuditMessageAppended       AuditEventType = "message_appended"
	AuditConversationReopened  AuditEventType = "conversation_reopened"
	AuditConversationStatus    AuditEventType = "conversation_status_changed"
	AuditConversationRead      AuditEventType = "conversation_read"
	AuditChannelOverridden     AuditEventType = "channel_overridden"
	AuditSLAInitialized        AuditEventType = "sla_initialized"
	AuditSLAStatusChanged      AuditEventType = "sla_status_changed"
	AuditSLAEscalated          AuditEventType = "sla_escalated"
	AuditSLAResponded          AuditEventType = "sla_responded"
	AuditSLAReopened           AuditEventType = "sla_reopened"
	AuditSLAComputationFailed  AuditEventType = "sla_computation_failed"
	AuditLeadAssigned          AuditEventType = "lead_assigned"
	AuditAssignmentUnresolved  AuditEventType = "assignment_unresolved"
	AuditReplySent             AuditEventType = "reply_sent"
	AuditReplyFailed           AuditEventType = "reply_failed"
)

// AuditSeverity grades an audit record.
type AuditSeverity string

const (
	SeverityInfo     AuditSeverity = "info"
	SeverityWarning  AuditSeverity = "warning"
	SeverityCritical AuditSeverity = "critical"
)

// Entity types referenced by audit records.
const (
	EntityLead         = "lead"
	EntityConversation = "conversation"
	EntityMessage      = "message"
	EntitySLATracker   = "sla_tracker"
	EntityPayload      = "payload"
)

// ActorSystem is the actor recorded for automated state changes.
const ActorSystem = "system"

// AuditLog is one immutable audit record.
type AuditLog struct {
	ID         string                 `json:"id"`
	EventType  AuditEventType         `json:"eventType"`
	EntityType string                 `json:"entityType"`
	EntityID   string                 `json:"entityId"`
	Actor      string                 `json:"actor"`
	Severity   AuditSeverity          `json:"severity"`
	Timestamp  time.Time              `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}
