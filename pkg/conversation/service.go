package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jordanlanch/leaddesk/pkg/audit"
	"github.com/jordanlanch/leaddesk/pkg/domain"
	"github.com/jordanlanch/leaddesk/pkg/logger"
	"github.com/jordanlanch/leaddesk/pkg/metrics"
	"github.com/jordanlanch/leaddesk/pkg/models"
	"github.com/jordanlanch/leaddesk/pkg/retry"
	"github.com/jordanlanch/leaddesk/pkg/store"
)

const (
	defaultRetries = 12
	retryBackoff   = time.Millisecond
)

// AppendResult reports what AppendMessage did.
type AppendResult struct {
	Conversation *models.Conversation
	Message      *models.Message
	// Reopened is true when an inbound message brought a closed or archived conversation back.
	Reopened bool
	// Duplicate is true when the provider message id was already stored; nothing changed.
	Duplicate bool
}

// Service unifies all messages of a lead into one ordered conversation.
type Service struct {
	store   store.ConversationStore
	audit   audit.Recorder
	metrics *metrics.Metrics
	log     logger.Logger
	now     func() time.Time
	retries int
}

// Option configures a Service.
type Option func(*Service)

// WithAudit sets the audit recorder.
func WithAudit(r audit.Recorder) Option { return func(s *Service) { s.audit = r } }

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(s *Service) { s.log = l } }

// WithClock overrides the time source used for server-assigned timestamps.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithRetries sets how many times a conflicting update is retried.
func WithRetries(n int) Option { return func(s *Service) { s.retries = n } }

// NewService creates a new conversation service
func NewService(st store.ConversationStore, opts ...Option) *Service {
	s := &Service{
		store:   st,
		log:     logger.Nop(),
		now:     time.Now,
		retries: defaultRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a conversation by id.
func (s *Service) Get(ctx context.Context, id string) (*models.Conversation, error) {
	return s.store.GetConversation(ctx, id)
}

// GetByLead returns the conversation of a lead.
func (s *Service) GetByLead(ctx context.Context, leadID string) (*models.Conversation, error) {
	return s.store.GetConversationByLead(ctx, leadID)
}

// Messages returns the ordered history of a conversation.
func (s *Service) Messages(ctx context.Context, convID string) ([]*models.Message, error) {
	if _, err := s.store.GetConversation(ctx, convID); err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessages(ctx, convID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}

// AppendMessage adds msg to the conversation. The server assigns createdAt,
// never earlier than the previous message, and the sequence number.
// A message whose ExternalID is already stored is reported as a duplicate.
func (s *Service) AppendMessage(ctx context.Context, convID string, msg *models.Message) (*AppendResult, error) {
	if msg.Direction != models.DirectionInbound && msg.Direction != models.DirectionOutbound {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid message direction %q", msg.Direction))
	}

	var res *AppendResult
	err := s.withRetry(ctx, func(ctx context.Context) error {
		var err error
		res, err = s.appendOnce(ctx, convID, msg)
		return err
	})
	if err != nil {
		return nil, err
	}
	if res.Duplicate {
		s.log.Debug("duplicate provider message ignored", "conversation_id", convID, "external_id", msg.ExternalID)
		return res, nil
	}

	s.metrics.RecordMessageAppended(string(res.Message.Direction))
	s.recordAudit(ctx, audit.Entry{
		EventType:  models.AuditMessageAppended,
		EntityType: models.EntityMessage,
		EntityID:   res.Message.ID,
		Actor:      res.Message.Sender,
		Metadata: map[string]interface{}{
			"conversation_id": convID,
			"direction":       string(res.Message.Direction),
			"channel":         string(res.Message.Channel),
			"seq":             res.Message.Seq,
			"sla_impact":      res.Message.SLAImpact,
		},
	})
	if res.Reopened {
		s.log.Info("conversation reopened by inbound message", "conversation_id", convID)
		s.recordAudit(ctx, audit.Entry{
			EventType:  models.AuditConversationReopened,
			EntityType: models.EntityConversation,
			EntityID:   convID,
			Metadata:   map[string]interface{}{"message_id": res.Message.ID},
		})
	}
	return res, nil
}

func (s *Service) appendOnce(ctx context.Context, convID string, in *models.Message) (*AppendResult, error) {
	conv, err := s.store.GetConversation(ctx, convID)
	if err != nil {
		return nil, err
	}

	if in.ExternalID != "" {
		existing, err := s.store.FindMessageByExternalID(ctx, convID, in.ExternalID)
		if err == nil {
			return &AppendResult{Conversation: conv, Message: existing, Duplicate: true}, nil
		}
		if !domain.IsNotFound(err) {
			return nil, fmt.Errorf("failed to look up external id: %w", err)
		}
	}

	expected := conv.Version
	now := s.now().UTC()
	createdAt := now
	if conv.LastMsgAt != nil && createdAt.Before(*conv.LastMsgAt) {
		createdAt = *conv.LastMsgAt
	}

	msg := *in
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.ConvID = conv.ID
	msg.CreatedAt = createdAt
	if msg.Channel == "" {
		msg.Channel = conv.Channel
	}
	if conv.Channel == "" {
		conv.Channel = msg.Channel
	}
	if msg.Status == "" {
		msg.Status = models.MessageReceived
		if msg.Direction == models.DirectionOutbound {
			msg.Status = models.MessageSent
		}
	}

	reopened := false
	switch msg.Direction {
	case models.DirectionInbound:
		if conv.Status.Reopenable() {
			conv.Status = models.ConversationActive
			reopened = true
		}
		if conv.Status != models.ConversationSpam {
			conv.UnreadCount++
		}
	case models.DirectionOutbound:
		conv.UnreadCount = 0
	}

	conv.MessageCount++
	msg.Seq = int64(conv.MessageCount)
	conv.LastMsgAt = &createdAt
	conv.UpdatedAt = now

	if err := s.store.AppendMessage(ctx, conv, expected, &msg); err != nil {
		return nil, err
	}
	return &AppendResult{Conversation: conv, Message: &msg, Reopened: reopened}, nil
}

// SetStatus moves a conversation to status. It reports whether the change
// reactivated a closed or archived conversation.
func (s *Service) SetStatus(ctx context.Context, convID string, status models.ConversationStatus, actor string) (*models.Conversation, bool, error) {
	switch status {
	case models.ConversationActive, models.ConversationClosed, models.ConversationArchived, models.ConversationSpam:
	default:
		return nil, false, domain.NewValidationError(fmt.Sprintf("invalid conversation status %q", status))
	}

	var previous models.ConversationStatus
	conv, err := s.mutate(ctx, convID, func(c *models.Conversation) bool {
		previous = c.Status
		if c.Status == status {
			return false
		}
		c.Status = status
		return true
	})
	if err != nil {
		return nil, false, err
	}
	if previous == status {
		return conv, false, nil
	}

	s.recordAudit(ctx, audit.Entry{
		EventType:  models.AuditConversationStatus,
		EntityType: models.EntityConversation,
		EntityID:   convID,
		Actor:      actor,
		Metadata:   map[string]interface{}{"from": string(previous), "to": string(status)},
	})
	return conv, previous.Reopenable() && status == models.ConversationActive, nil
}

// MarkRead clears the unread counter. Only a conversation that had unread
// messages is audited.
func (s *Service) MarkRead(ctx context.Context, convID, actor string) (*models.Conversation, error) {
	var cleared int
	conv, err := s.mutate(ctx, convID, func(c *models.Conversation) bool {
		cleared = c.UnreadCount
		if c.UnreadCount == 0 {
			return false
		}
		c.UnreadCount = 0
		return true
	})
	if err != nil {
		return nil, err
	}
	if cleared == 0 {
		return conv, nil
	}
	s.recordAudit(ctx, audit.Entry{
		EventType:  models.AuditConversationRead,
		EntityType: models.EntityConversation,
		EntityID:   convID,
		Actor:      actor,
		Metadata:   map[string]interface{}{"cleared": cleared},
	})
	return conv, nil
}

// OverrideChannel pins the conversation's reply channel.
func (s *Service) OverrideChannel(ctx context.Context, convID string, channel models.Channel, actor string) (*models.Conversation, error) {
	switch channel {
	case models.ChannelEmail, models.ChannelWhatsApp, models.ChannelPortal, models.ChannelSMS:
	default:
		return nil, domain.NewValidationError(fmt.Sprintf("invalid channel %q", channel))
	}

	var previous models.Channel
	conv, err := s.mutate(ctx, convID, func(c *models.Conversation) bool {
		previous = c.Channel
		c.Channel = channel
		c.ChannelOverridden = true
		return true
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, audit.Entry{
		EventType:  models.AuditChannelOverridden,
		EntityType: models.EntityConversation,
		EntityID:   convID,
		Actor:      actor,
		Metadata:   map[string]interface{}{"from": string(previous), "to": string(channel)},
	})
	return conv, nil
}

// SetAssignee records the owner of the conversation.
func (s *Service) SetAssignee(ctx context.Context, convID, userID string) (*models.Conversation, error) {
	return s.mutate(ctx, convID, func(c *models.Conversation) bool {
		if c.AssigneeUserID == userID {
			return false
		}
		c.AssigneeUserID = userID
		return true
	})
}

// MirrorSLA copies the tracker status onto the conversation.
func (s *Service) MirrorSLA(ctx context.Context, convID string, status models.SLAStatus, deadline time.Time) error {
	_, err := s.mutate(ctx, convID, func(c *models.Conversation) bool {
		if c.SLAStatus == status && c.SLADeadline != nil && c.SLADeadline.Equal(deadline) {
			return false
		}
		d := deadline
		c.SLAStatus = status
		c.SLADeadline = &d
		return true
	})
	return err
}

// mutate applies fn to the latest conversation and saves it with a version
// check, retrying on conflicts. fn returns false when nothing changed.
func (s *Service) mutate(ctx context.Context, convID string, fn func(*models.Conversation) bool) (*models.Conversation, error) {
	var conv *models.Conversation
	err := s.withRetry(ctx, func(ctx context.Context) error {
		c, err := s.store.GetConversation(ctx, convID)
		if err != nil {
			return err
		}
		expected := c.Version
		if !fn(c) {
			conv = c
			return nil
		}
		c.UpdatedAt = s.now().UTC()
		if err := s.store.UpdateConversation(ctx, c, expected); err != nil {
			return err
		}
		conv = c
		return nil
	})
	return conv, err
}

func (s *Service) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, s.retries, retryBackoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && !domain.IsVersionConflict(err) {
			return retry.Permanent(err)
		}
		return err
	})
}

func (s *Service) recordAudit(ctx context.Context, entry audit.Entry) {
	if s.audit == nil {
		return
	}
	s.audit.RecordAsync(ctx, entry)
}
