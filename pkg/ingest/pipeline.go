// Package ingest composes the engine: inbound payloads flow through the
// normalizer, deduplicator, conversation unifier, SLA tracker and assignment
// engine; agent replies flow back through the unifier and the SLA tracker.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jordanlanch/leaddesk/pkg/audit"
	"github.com/jordanlanch/leaddesk/pkg/conversation"
	"github.com/jordanlanch/leaddesk/pkg/dedup"
	"github.com/jordanlanch/leaddesk/pkg/domain"
	"github.com/jordanlanch/leaddesk/pkg/leadassignment"
	"github.com/jordanlanch/leaddesk/pkg/logger"
	"github.com/jordanlanch/leaddesk/pkg/metrics"
	"github.com/jordanlanch/leaddesk/pkg/models"
	"github.com/jordanlanch/leaddesk/pkg/retry"
)

// Normalizer converts channel payloads into events.
type Normalizer interface {
	FromEmail(in *models.InboundEmail) (*models.RawLeadEvent, error)
	FromPortal(in *models.PortalWebhook) (*models.RawLeadEvent, error)
	FromWhatsApp(in *models.WhatsAppInbound) (*models.RawLeadEvent, error)
}

// Resolver maps an event onto its lead and conversation.
type Resolver interface {
	Resolve(ctx context.Context, ev *models.RawLeadEvent) (*dedup.Result, error)
}

// Conversations appends and reads conversation state.
type Conversations interface {
	Get(ctx context.Context, id string) (*models.Conversation, error)
	AppendMessage(ctx context.Context, convID string, msg *models.Message) (*conversation.AppendResult, error)
}

// Trackers is the SLA surface the pipeline drives.
type Trackers interface {
	Init(ctx context.Context, lead *models.Lead, conv *models.Conversation) (*models.SLATracker, error)
	Get(ctx context.Context, convID string) (*models.SLATracker, error)
	Reopen(ctx context.Context, convID, actor string, at time.Time) (*models.SLATracker, error)
	RecordResponse(ctx context.Context, convID string, at time.Time) (*models.SLATracker, bool, error)
}

// Assigner routes new leads.
type Assigner interface {
	Assign(ctx context.Context, lead *models.Lead) (*leadassignment.Result, error)
}

// Config bounds each ingestion.
type Config struct {
	// Timeout applies to one attempt.
	Timeout time.Duration
	// Attempts is how many times a timed-out or transiently failing event is processed.
	Attempts int
	Backoff  time.Duration
	// AssignWait is how long a response waits for the background assignment.
	AssignWait time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:    10 * time.Second,
		Attempts:   3,
		Backoff:    200 * time.Millisecond,
		AssignWait: 500 * time.Millisecond,
	}
}

// Pipeline processes inbound payloads.
type Pipeline struct {
	normalizer Normalizer
	resolver   Resolver
	convs      Conversations
	trackers   Trackers
	assigner   Assigner
	audit      audit.Recorder
	metrics    *metrics.Metrics
	log        logger.Logger
	cfg        Config
	wg         sync.WaitGroup
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithAudit sets the audit recorder.
func WithAudit(r audit.Recorder) Option { return func(p *Pipeline) { p.audit = r } }

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option { return func(p *Pipeline) { p.metrics = m } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(p *Pipeline) { p.log = l } }

// WithConfig overrides timeouts and retries.
func WithConfig(cfg Config) Option { return func(p *Pipeline) { p.cfg = cfg } }

// NewPipeline wires the pipeline stages. assigner may be nil to leave leads unassigned.
func NewPipeline(n Normalizer, r Resolver, convs Conversations, trackers Trackers, assigner Assigner, opts ...Option) *Pipeline {
	p := &Pipeline{
		normalizer: n,
		resolver:   r,
		convs:      convs,
		trackers:   trackers,
		assigner:   assigner,
		log:        logger.Nop(),
		cfg:        DefaultConfig(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IngestEmail processes an inbound email.
func (p *Pipeline) IngestEmail(ctx context.Context, in *models.InboundEmail) (*models.LeadCreationResponse, error) {
	ev, err := p.normalizer.FromEmail(in)
	if err != nil {
		return p.reject(ctx, models.ChannelEmail, err)
	}
	return p.Ingest(ctx, ev)
}

// IngestPortal processes a portal webhook.
func (p *Pipeline) IngestPortal(ctx context.Context, in *models.PortalWebhook) (*models.LeadCreationResponse, error) {
	ev, err := p.normalizer.FromPortal(in)
	if err != nil {
		return p.reject(ctx, models.ChannelPortal, err)
	}
	return p.Ingest(ctx, ev)
}

// IngestWhatsApp processes an inbound WhatsApp message.
func (p *Pipeline) IngestWhatsApp(ctx context.Context, in *models.WhatsAppInbound) (*models.LeadCreationResponse, error) {
	ev, err := p.normalizer.FromWhatsApp(in)
	if err != nil {
		return p.reject(ctx, models.ChannelWhatsApp, err)
	}
	return p.Ingest(ctx, ev)
}

func (p *Pipeline) reject(ctx context.Context, channel models.Channel, err error) (*models.LeadCreationResponse, error) {
	p.metrics.RecordPayloadRejected(string(channel))
	p.log.Warn("inbound payload rejected", "channel", channel, "error", err)
	if p.audit != nil {
		p.audit.RecordAsync(ctx, audit.Entry{
			EventType:  models.AuditDataRejected,
			EntityType: models.EntityPayload,
			EntityID:   uuid.NewString(),
			Severity:   models.SeverityWarning,
			Metadata:   map[string]interface{}{"channel": string(channel), "reason": err.Error()},
		})
	}
	return &models.LeadCreationResponse{Success: false, Error: err.Error()}, err
}

// Ingest runs a normalized event through the pipeline. Each attempt is bounded
// by the configured timeout; a failed attempt is retried unless the failure is
// a validation error. Events without a provider id get a generated one so a
// retried attempt cannot append the message twice.
func (p *Pipeline) Ingest(ctx context.Context, ev *models.RawLeadEvent) (*models.LeadCreationResponse, error) {
	if ev.ExternalID == "" {
		ev.ExternalID = "ingest:" + uuid.NewString()
	}

	var (
		out     *outcome
		attempt int
		carry   carryover
	)
	err := retry.Do(ctx, p.cfg.Attempts, p.cfg.Backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			p.metrics.RecordIngestRetry()
			p.log.Warn("retrying inbound event", "attempt", attempt, "source", ev.Source)
		}
		actx, cancel := p.attemptContext(ctx)
		defer cancel()

		var err error
		out, err = p.process(actx, ev, &carry)
		if err != nil && domain.IsValidation(err) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		if domain.IsValidation(err) {
			return p.reject(ctx, ev.Channel, err)
		}
		p.log.Error("inbound event failed", "source", ev.Source, "attempts", attempt, "error", err)
		return &models.LeadCreationResponse{Success: false, Error: err.Error()}, err
	}

	p.metrics.RecordLeadIngested(string(ev.Source), out.newLead)
	resp := &models.LeadCreationResponse{
		Success:        true,
		LeadID:         out.lead.ID,
		ConversationID: out.conv.ID,
		MessageID:      out.message.ID,
		AssignedUserID: out.lead.AssignedUserID,
	}
	if out.tracker != nil {
		d := out.tracker.FirstResponseDeadline
		resp.SLADeadline = &d
	}
	if (out.newLead || out.initialized) && out.lead.AssignedUserID == "" && p.assigner != nil {
		if userID := p.assign(ctx, out.lead); userID != "" {
			resp.AssignedUserID = userID
		}
	}
	return resp, nil
}

func (p *Pipeline) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.cfg.Timeout)
}

type outcome struct {
	lead    *models.Lead
	conv    *models.Conversation
	message *models.Message
	tracker *models.SLATracker
	// newLead is true when this event created the lead, in any attempt.
	newLead bool
	// initialized is true when this event started the lead's SLA cycle.
	initialized bool
}

// carryover keeps what earlier attempts of one event already did, so a retry
// finishes their follow-up work instead of seeing it as someone else's.
type carryover struct {
	newLead       bool
	reopenPending bool
}

func (p *Pipeline) process(ctx context.Context, ev *models.RawLeadEvent, carry *carryover) (*outcome, error) {
	res, err := p.resolver.Resolve(ctx, ev)
	if err != nil {
		return nil, err
	}
	carry.newLead = carry.newLead || res.IsNewLead

	appended, err := p.convs.AppendMessage(ctx, res.ConversationID, &models.Message{
		Direction:   models.DirectionInbound,
		Channel:     ev.Channel,
		Subject:     ev.Subject,
		Text:        ev.Text,
		HTML:        ev.HTML,
		Attachments: ev.Attachments,
		Sender:      sender(ev.Contact),
		ExternalID:  ev.ExternalID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}

	out := &outcome{lead: res.Lead, conv: appended.Conversation, message: appended.Message, newLead: carry.newLead}
	if appended.Reopened || carry.reopenPending {
		carry.reopenPending = true
		out.tracker, err = p.trackers.Reopen(ctx, res.ConversationID, models.ActorSystem, appended.Message.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to reopen sla: %w", err)
		}
		carry.reopenPending = false
		return out, nil
	}

	out.tracker, err = p.trackers.Get(ctx, res.ConversationID)
	switch {
	case err == nil:
		return out, nil
	case !domain.IsNotFound(err):
		return nil, fmt.Errorf("failed to load sla tracker: %w", err)
	}

	// No tracker yet: a new lead, or a previous attempt that stopped after creating it.
	out.tracker, err = p.trackers.Init(ctx, res.Lead, res.Conversation)
	if err != nil {
		if !domain.IsVersionConflict(err) {
			return nil, fmt.Errorf("failed to start sla: %w", err)
		}
		// A concurrent event for the same lead created it first.
		if out.tracker, err = p.trackers.Get(ctx, res.ConversationID); err != nil {
			return nil, fmt.Errorf("failed to load sla tracker: %w", err)
		}
		return out, nil
	}
	out.initialized = true
	return out, nil
}

// assign routes the lead in the background and waits up to AssignWait for
// the owner so the response can carry it.
func (p *Pipeline) assign(ctx context.Context, lead *models.Lead) string {
	done := make(chan string, 1)
	bg := context.WithoutCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		actx, cancel := p.attemptContext(bg)
		defer cancel()

		var userID string
		err := retry.Do(actx, p.cfg.Attempts, p.cfg.Backoff, func(ctx context.Context) error {
			res, err := p.assigner.Assign(ctx, lead)
			if err != nil {
				if domain.IsAssignmentUnresolved(err) || domain.IsValidation(err) {
					return retry.Permanent(err)
				}
				return err
			}
			userID = res.UserID
			return nil
		})
		if err != nil && !domain.IsAssignmentUnresolved(err) {
			p.log.Error("lead assignment failed", "lead_id", lead.ID, "error", err)
		}
		done <- userID
	}()

	if p.cfg.AssignWait <= 0 {
		return ""
	}
	timer := time.NewTimer(p.cfg.AssignWait)
	defer timer.Stop()
	select {
	case userID := <-done:
		return userID
	case <-timer.C:
		return ""
	case <-ctx.Done():
		return ""
	}
}

// Wait blocks until background assignments finish.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

func sender(c models.Contact) string {
	switch {
	case c.Email != "":
		return c.Email
	case c.Phone != "":
		return c.Phone
	}
	return c.Name
}
