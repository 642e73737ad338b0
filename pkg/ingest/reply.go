package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jordanlanch/leaddesk/pkg/audit"
	"github.com/jordanlanch/leaddesk/pkg/domain"
	"github.com/jordanlanch/leaddesk/pkg/email"
	"github.com/jordanlanch/leaddesk/pkg/logger"
	"github.com/jordanlanch/leaddesk/pkg/metrics"
	"github.com/jordanlanch/leaddesk/pkg/models"
	"github.com/jordanlanch/leaddesk/pkg/policy"
)

// EmailSender delivers email replies and returns the provider message id.
type EmailSender interface {
	SendReply(ctx context.Context, r email.Reply) (string, error)
}

// WhatsAppSender delivers WhatsApp text messages and returns the provider message id.
type WhatsAppSender interface {
	SendText(ctx context.Context, to, body string) (string, error)
}

// LeadReader loads the lead a conversation belongs to.
type LeadReader interface {
	GetLead(ctx context.Context, id string) (*models.Lead, error)
}

// Replier sends agent replies and records them on the conversation.
type Replier struct {
	convs     Conversations
	leads     LeadReader
	trackers  Trackers
	templates *policy.Templates
	email     EmailSender
	whatsapp  WhatsAppSender
	audit     audit.Recorder
	metrics   *metrics.Metrics
	log       logger.Logger
	timeout   time.Duration
}

// ReplierOption configures a Replier.
type ReplierOption func(*Replier)

// WithReplyAudit sets the audit recorder.
func WithReplyAudit(r audit.Recorder) ReplierOption { return func(s *Replier) { s.audit = r } }

// WithReplyMetrics sets the metrics sink.
func WithReplyMetrics(m *metrics.Metrics) ReplierOption { return func(s *Replier) { s.metrics = m } }

// WithReplyLogger sets the logger.
func WithReplyLogger(l logger.Logger) ReplierOption { return func(s *Replier) { s.log = l } }

// WithTemplates sets the reply templates.
func WithTemplates(t *policy.Templates) ReplierOption { return func(s *Replier) { s.templates = t } }

// WithSendTimeout bounds a single provider call.
func WithSendTimeout(d time.Duration) ReplierOption { return func(s *Replier) { s.timeout = d } }

// NewReplier creates a reply service. Either sender may be nil to disable the channel.
func NewReplier(convs Conversations, leads LeadReader, trackers Trackers, emailSender EmailSender, waSender WhatsAppSender, opts ...ReplierOption) *Replier {
	r := &Replier{
		convs:     convs,
		leads:     leads,
		trackers:  trackers,
		email:     emailSender,
		whatsapp:  waSender,
		templates: policy.NewTemplates(nil),
		log:       logger.Nop(),
		timeout:   15 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReplyEmail sends an email reply on a conversation.
func (r *Replier) ReplyEmail(ctx context.Context, req *models.EmailReplyRequest, actor string) (*models.ReplyResponse, error) {
	if req.ConvID == "" {
		return nil, domain.NewValidationError("convId is required")
	}
	if r.email == nil {
		return nil, domain.NewValidationError("email replies are not configured")
	}
	conv, lead, err := r.load(ctx, req.ConvID)
	if err != nil {
		return nil, err
	}
	if lead.Email == "" {
		return nil, domain.NewValidationError("lead has no email address")
	}

	subject, body := req.Subject, req.Text
	if req.TemplateID != "" {
		rendered, err := r.templates.Render(req.TemplateID, models.ChannelEmail, variables(lead, req.Variables))
		if err != nil {
			return nil, err
		}
		body = rendered.Body
		if subject == "" {
			subject = rendered.Subject
		}
	}
	if strings.TrimSpace(body) == "" {
		return nil, domain.NewValidationError("reply text is required")
	}

	msg := &models.Message{
		Direction:  models.DirectionOutbound,
		Channel:    models.ChannelEmail,
		Subject:    subject,
		Text:       body,
		Sender:     actor,
		TemplateID: req.TemplateID,
	}
	return r.deliver(ctx, conv, msg, func(ctx context.Context) (string, error) {
		return r.email.SendReply(ctx, email.Reply{
			ConversationID: conv.ID,
			ToEmail:        lead.Email,
			ToName:         lead.Name,
			Subject:        subject,
			Text:           body,
		})
	})
}

// ReplyWhatsApp sends a WhatsApp reply on a conversation.
func (r *Replier) ReplyWhatsApp(ctx context.Context, req *models.WhatsAppReplyRequest, actor string) (*models.ReplyResponse, error) {
	if req.ConvID == "" {
		return nil, domain.NewValidationError("convId is required")
	}
	if r.whatsapp == nil {
		return nil, domain.NewValidationError("whatsapp replies are not configured")
	}
	conv, lead, err := r.load(ctx, req.ConvID)
	if err != nil {
		return nil, err
	}
	if lead.Phone == "" {
		return nil, domain.NewValidationError("lead has no phone number")
	}

	body := req.Text
	if req.TemplateID != "" {
		rendered, err := r.templates.Render(req.TemplateID, models.ChannelWhatsApp, variables(lead, req.Variables))
		if err != nil {
			return nil, err
		}
		body = rendered.Body
	}
	if strings.TrimSpace(body) == "" {
		return nil, domain.NewValidationError("reply text is required")
	}

	msg := &models.Message{
		Direction:  models.DirectionOutbound,
		Channel:    models.ChannelWhatsApp,
		Text:       body,
		Sender:     actor,
		TemplateID: req.TemplateID,
	}
	return r.deliver(ctx, conv, msg, func(ctx context.Context) (string, error) {
		return r.whatsapp.SendText(ctx, lead.Phone, body)
	})
}

func (r *Replier) load(ctx context.Context, convID string) (*models.Conversation, *models.Lead, error) {
	conv, err := r.convs.Get(ctx, convID)
	if err != nil {
		return nil, nil, err
	}
	lead, err := r.leads.GetLead(ctx, conv.LeadID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load lead: %w", err)
	}
	return conv, lead, nil
}

// deliver calls the provider, then records the outbound message. A delivered
// reply counts towards the first-response SLA; a failed one is stored with
// status failed and does not.
func (r *Replier) deliver(ctx context.Context, conv *models.Conversation, msg *models.Message, send func(context.Context) (string, error)) (*models.ReplyResponse, error) {
	sctx, cancel := context.WithTimeout(ctx, r.timeout)
	externalID, sendErr := send(sctx)
	cancel()

	channel := string(msg.Channel)
	if sendErr != nil {
		if domain.IsValidation(sendErr) {
			return nil, sendErr
		}
		msg.Status = models.MessageFailed
		if _, err := r.convs.AppendMessage(ctx, conv.ID, msg); err != nil {
			r.log.Error("failed to record undelivered reply", "conversation_id", conv.ID, "error", err)
		}
		r.metrics.RecordReply(channel, "failed")
		r.log.Warn("reply delivery failed", "conversation_id", conv.ID, "channel", channel, "error", sendErr)
		r.recordAudit(ctx, audit.Entry{
			EventType:  models.AuditReplyFailed,
			EntityType: models.EntityConversation,
			EntityID:   conv.ID,
			Actor:      msg.Sender,
			Severity:   models.SeverityWarning,
			Metadata:   map[string]interface{}{"channel": channel, "error": sendErr.Error()},
		})
		if !domain.IsDeliveryFailed(sendErr) {
			sendErr = domain.NewDeliveryError(channel, sendErr)
		}
		return &models.ReplyResponse{Success: false, Error: sendErr.Error()}, sendErr
	}

	msg.Status = models.MessageSent
	msg.ExternalID = externalID
	msg.SLAImpact = true
	appended, err := r.convs.AppendMessage(ctx, conv.ID, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to record reply: %w", err)
	}

	if _, _, err := r.trackers.RecordResponse(ctx, conv.ID, appended.Message.CreatedAt); err != nil {
		if !domain.IsNotFound(err) {
			return nil, fmt.Errorf("failed to record first response: %w", err)
		}
		r.log.Warn("reply on conversation without sla tracker", "conversation_id", conv.ID)
	}

	r.metrics.RecordReply(channel, "sent")
	r.recordAudit(ctx, audit.Entry{
		EventType:  models.AuditReplySent,
		EntityType: models.EntityMessage,
		EntityID:   appended.Message.ID,
		Actor:      msg.Sender,
		Metadata: map[string]interface{}{
			"conversation_id": conv.ID,
			"channel":         channel,
			"external_id":     externalID,
			"template_id":     msg.TemplateID,
		},
	})
	return &models.ReplyResponse{
		Success:    true,
		MessageID:  appended.Message.ID,
		ExternalID: externalID,
		SLAImpact:  true,
	}, nil
}

// variables merges the lead's fields under the caller's values.
func variables(lead *models.Lead, extra map[string]string) map[string]string {
	vars := map[string]string{
		"name":      lead.Name,
		"email":     lead.Email,
		"phone":     lead.Phone,
		"listingId": lead.ListingID,
		"projectId": lead.ProjectID,
	}
	for k, v := range extra {
		vars[k] = v
	}
	return vars
}

func (r *Replier) recordAudit(ctx context.Context, entry audit.Entry) {
	if r.audit == nil {
		return
	}
	r.audit.RecordAsync(ctx, entry)
}
