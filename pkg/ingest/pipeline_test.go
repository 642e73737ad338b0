package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jordanlanch/leaddesk/pkg/audit"
	"github.com/jordanlanch/leaddesk/pkg/conversation"
	"github.com/jordanlanch/leaddesk/pkg/dedup"
	"github.com/jordanlanch/leaddesk/pkg/domain"
	"github.com/jordanlanch/leaddesk/pkg/leadassignment"
	"github.com/jordanlanch/leaddesk/pkg/models"
	"github.com/jordanlanch/leaddesk/pkg/normalizer"
	"github.com/jordanlanch/leaddesk/pkg/sla"
	"github.com/jordanlanch/leaddesk/pkg/store/memory"
	"github.com/jordanlanch/leaddesk/pkg/testdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type engine struct {
	clock    *clock
	store    *memory.Store
	audit    *audit.Service
	convs    *conversation.Service
	sla      *sla.Service
	pipeline *Pipeline
}

func newEngine(t *testing.T, t0 time.Time) *engine {
	t.Helper()
	c := &clock{now: t0}
	st := memory.New()
	auditSvc := audit.NewService(st)
	convs := conversation.NewService(st, conversation.WithAudit(auditSvc), conversation.WithClock(c.Now))
	slaSvc := sla.NewService(st, st, st, sla.WithMirror(convs), sla.WithAudit(auditSvc), sla.WithClock(c.Now))
	resolver := dedup.NewService(st, dedup.WithLocker(memory.NewLocker()), dedup.WithAudit(auditSvc), dedup.WithClock(c.Now))
	assigner := leadassignment.NewService(st, st, memory.NewCursors(), st,
		leadassignment.WithConversations(convs),
		leadassignment.WithAudit(auditSvc),
		leadassignment.WithClock(c.Now),
	)
	p := NewPipeline(normalizer.New(normalizer.WithClock(c.Now)), resolver, convs, slaSvc, assigner,
		WithAudit(auditSvc),
		WithConfig(Config{Timeout: 5 * time.Second, Attempts: 3, Backoff: time.Millisecond, AssignWait: 5 * time.Second}),
	)
	t.Cleanup(func() {
		p.Wait()
		auditSvc.Wait()
	})
	return &engine{clock: c, store: st, audit: auditSvc, convs: convs, sla: slaSvc, pipeline: p}
}

func portalWebhook(id string) *models.PortalWebhook {
	return &models.PortalWebhook{
		Source:       "immobiliare",
		PortalLeadID: id,
		ListingID:    "L-42",
		Name:         "mario rossi",
		Email:        "Mario.Rossi@example.com",
		Phone:        "+39 333 123 4567",
		Message:      "Is the flat still available?",
		ProjectID:    "p1",
	}
}

func TestPipeline_IngestPortal(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	t.Run("Success - new lead starts its sla and breaches after the deadline", func(t *testing.T) {
		e := newEngine(t, t0)

		resp, err := e.pipeline.IngestPortal(ctx, portalWebhook("X"))
		require.NoError(t, err)
		assert.True(t, resp.Success)
		assert.NotEmpty(t, resp.LeadID)
		assert.NotEmpty(t, resp.ConversationID)
		assert.NotEmpty(t, resp.MessageID)
		require.NotNil(t, resp.SLADeadline)
		assert.WithinDuration(t, t0.Add(15*time.Minute), *resp.SLADeadline, 0)

		sw := sla.NewSweeper(e.sla, e.store, memory.NewLeaser(), sla.SweeperConfig{}, nil, nil)
		_, err = sw.Sweep(ctx, t0.Add(16*time.Minute))
		require.NoError(t, err)

		tr, err := e.sla.Get(ctx, resp.ConversationID)
		require.NoError(t, err)
		assert.Equal(t, models.SLABreached, tr.SLAStatus)
		assert.Equal(t, 1, tr.EscalationLevel)
		require.Len(t, tr.EscalationHistory, 1)
		assert.Equal(t, 1, tr.EscalationHistory[0].Level)
	})

	t.Run("Success - repeated portal lead joins the same conversation", func(t *testing.T) {
		e := newEngine(t, t0)

		first, err := e.pipeline.IngestPortal(ctx, portalWebhook("X"))
		require.NoError(t, err)

		e.clock.Advance(2 * time.Minute)
		second, err := e.pipeline.IngestPortal(ctx, portalWebhook("X"))
		require.NoError(t, err)

		assert.Equal(t, first.LeadID, second.LeadID)
		assert.Equal(t, first.ConversationID, second.ConversationID)
		assert.NotEqual(t, first.MessageID, second.MessageID)

		conv, err := e.convs.Get(ctx, first.ConversationID)
		require.NoError(t, err)
		assert.Equal(t, 2, conv.MessageCount)
		assert.Equal(t, 2, conv.UnreadCount)

		tr, err := e.sla.Get(ctx, first.ConversationID)
		require.NoError(t, err)
		assert.WithinDuration(t, t0.Add(15*time.Minute), tr.FirstResponseDeadline, 0)
	})

	t.Run("Success - new lead is assigned by the project's rules", func(t *testing.T) {
		e := newEngine(t, t0)
		require.NoError(t, e.store.PutRule(ctx, &models.AssignmentRule{
			ID:         "r1",
			ProjectID:  "p1",
			Name:       "sales",
			Active:     true,
			Assignment: models.RuleAssignment{Type: models.AssignmentAuto, UserIDs: []string{"u1"}},
		}))

		resp, err := e.pipeline.IngestPortal(ctx, portalWebhook("Y"))
		require.NoError(t, err)
		assert.Equal(t, "u1", resp.AssignedUserID)

		e.pipeline.Wait()
		lead, err := e.store.GetLead(ctx, resp.LeadID)
		require.NoError(t, err)
		assert.Equal(t, "u1", lead.AssignedUserID)
	})

	t.Run("Success - unresolved assignment leaves the lead unassigned", func(t *testing.T) {
		e := newEngine(t, t0)

		resp, err := e.pipeline.IngestPortal(ctx, portalWebhook("Z"))
		require.NoError(t, err)
		assert.True(t, resp.Success)
		assert.Empty(t, resp.AssignedUserID)
	})

	t.Run("Error - invalid payload is rejected and audited", func(t *testing.T) {
		e := newEngine(t, t0)

		resp, err := e.pipeline.IngestPortal(ctx, &models.PortalWebhook{Source: "immobiliare"})
		require.Error(t, err)
		assert.True(t, domain.IsValidation(err))
		assert.False(t, resp.Success)
		assert.NotEmpty(t, resp.Error)

		e.audit.Wait()
		recs, err := e.store.ListAudit(ctx, models.EntityPayload, "", 0)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, models.AuditDataRejected, recs[0].EventType)
	})
}

func TestPipeline_IngestWhatsApp(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	t.Run("Success - redelivered provider message is stored once", func(t *testing.T) {
		e := newEngine(t, t0)
		in := &models.WhatsAppInbound{From: "393331234567", ProfileName: "Giulia", MessageID: "wamid.1", Text: "ciao", ProjectID: "p1"}

		first, err := e.pipeline.IngestWhatsApp(ctx, in)
		require.NoError(t, err)
		second, err := e.pipeline.IngestWhatsApp(ctx, in)
		require.NoError(t, err)

		assert.Equal(t, first.MessageID, second.MessageID)
		conv, err := e.convs.Get(ctx, first.ConversationID)
		require.NoError(t, err)
		assert.Equal(t, 1, conv.MessageCount)
	})
}

func TestPipeline_Ingest(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	t.Run("Success - inbound message reopens a closed conversation and rearms the sla", func(t *testing.T) {
		e := newEngine(t, t0)
		first, err := e.pipeline.IngestPortal(ctx, portalWebhook("X"))
		require.NoError(t, err)

		_, _, err = e.convs.SetStatus(ctx, first.ConversationID, models.ConversationClosed, "agent-1")
		require.NoError(t, err)

		e.clock.Advance(time.Hour)
		second, err := e.pipeline.IngestPortal(ctx, portalWebhook("X"))
		require.NoError(t, err)
		require.NotNil(t, second.SLADeadline)
		assert.WithinDuration(t, t0.Add(time.Hour+15*time.Minute), *second.SLADeadline, 0)

		conv, err := e.convs.Get(ctx, first.ConversationID)
		require.NoError(t, err)
		assert.Equal(t, models.ConversationActive, conv.Status)
	})

	t.Run("Success - transient failure is retried", func(t *testing.T) {
		e := newEngine(t, t0)
		flaky := &flakyResolver{Resolver: e.pipeline.resolver, failures: 1}
		e.pipeline.resolver = flaky

		resp, err := e.pipeline.Ingest(ctx, &models.RawLeadEvent{
			ProjectID: "p1",
			Source:    models.SourceIdealista,
			Contact:   models.Contact{Email: "anna@example.com"},
			Channel:   models.ChannelEmail,
			Text:      "hello",
		})
		require.NoError(t, err)
		assert.True(t, resp.Success)
		assert.Equal(t, 2, flaky.calls)
	})

	t.Run("Error - attempts exhausted", func(t *testing.T) {
		e := newEngine(t, t0)
		e.pipeline.resolver = &flakyResolver{Resolver: e.pipeline.resolver, failures: 10}

		resp, err := e.pipeline.Ingest(ctx, &models.RawLeadEvent{
			ProjectID: "p1",
			Source:    models.SourceIdealista,
			Contact:   models.Contact{Email: "anna@example.com"},
			Channel:   models.ChannelEmail,
		})
		require.Error(t, err)
		assert.False(t, resp.Success)
	})
}

type flakyResolver struct {
	Resolver
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyResolver) Resolve(ctx context.Context, ev *models.RawLeadEvent) (*dedup.Result, error) {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.failures
	f.mu.Unlock()
	if fail {
		return nil, errors.New("connection reset")
	}
	return f.Resolver.Resolve(ctx, ev)
}

func TestPipeline_IngestPortal_GeneratedBatch(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC))
	hooks := testdata.NewGenerator(testdata.DefaultGeneratorConfig()).PortalWebhooks(25)

	leads := map[string]string{}
	for _, w := range hooks {
		resp, err := e.pipeline.IngestPortal(ctx, w)
		require.NoError(t, err, w.PortalLeadID)
		require.True(t, resp.Success)
		leads[w.PortalLeadID] = resp.LeadID
	}
	assert.Len(t, leads, len(hooks))

	// Replaying the batch joins every event to its existing lead.
	for _, w := range hooks {
		resp, err := e.pipeline.IngestPortal(ctx, w)
		require.NoError(t, err)
		assert.Equal(t, leads[w.PortalLeadID], resp.LeadID)

		conv, err := e.convs.Get(ctx, resp.ConversationID)
		require.NoError(t, err)
		assert.Equal(t, 2, conv.MessageCount)
	}
}

// faultyTrackers fails chosen SLA calls once. initErr fails after the tracker
// was written; reopenErr fails before anything changes.
type faultyTrackers struct {
	Trackers
	mu        sync.Mutex
	initErr   error
	reopenErr error
}

func (f *faultyTrackers) Init(ctx context.Context, lead *models.Lead, conv *models.Conversation) (*models.SLATracker, error) {
	t, err := f.Trackers.Init(ctx, lead, conv)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.initErr != nil {
		err, f.initErr = f.initErr, nil
		return nil, err
	}
	return t, nil
}

func (f *faultyTrackers) Reopen(ctx context.Context, convID, actor string, at time.Time) (*models.SLATracker, error) {
	f.mu.Lock()
	err := f.reopenErr
	f.reopenErr = nil
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.Trackers.Reopen(ctx, convID, actor, at)
}

func TestPipeline_Ingest_RetryFinishesEarlierAttempt(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	t.Run("Success - lead created by a failed attempt is still assigned", func(t *testing.T) {
		e := newEngine(t, t0)
		require.NoError(t, e.store.PutRule(ctx, &models.AssignmentRule{
			ID:         "r1",
			ProjectID:  "p1",
			Name:       "sales",
			Active:     true,
			Assignment: models.RuleAssignment{Type: models.AssignmentAuto, UserIDs: []string{"u1"}},
		}))
		e.pipeline.trackers = &faultyTrackers{Trackers: e.sla, initErr: errors.New("connection reset")}

		resp, err := e.pipeline.IngestPortal(ctx, portalWebhook("R1"))
		require.NoError(t, err)
		assert.Equal(t, "u1", resp.AssignedUserID)

		e.pipeline.Wait()
		lead, err := e.store.GetLead(ctx, resp.LeadID)
		require.NoError(t, err)
		assert.Equal(t, "u1", lead.AssignedUserID)

		conv, err := e.convs.Get(ctx, resp.ConversationID)
		require.NoError(t, err)
		assert.Equal(t, 1, conv.MessageCount)
	})

	t.Run("Success - reopen interrupted by a failed attempt still rearms the sla", func(t *testing.T) {
		e := newEngine(t, t0)
		first, err := e.pipeline.IngestPortal(ctx, portalWebhook("R2"))
		require.NoError(t, err)
		_, _, err = e.convs.SetStatus(ctx, first.ConversationID, models.ConversationClosed, "agent-1")
		require.NoError(t, err)

		e.pipeline.trackers = &faultyTrackers{Trackers: e.sla, reopenErr: errors.New("connection reset")}
		e.clock.Advance(time.Hour)

		second, err := e.pipeline.IngestPortal(ctx, portalWebhook("R2"))
		require.NoError(t, err)
		require.NotNil(t, second.SLADeadline)
		assert.WithinDuration(t, t0.Add(time.Hour+15*time.Minute), *second.SLADeadline, 0)

		tr, err := e.sla.Get(ctx, first.ConversationID)
		require.NoError(t, err)
		assert.WithinDuration(t, t0.Add(time.Hour+15*time.Minute), tr.FirstResponseDeadline, 0)
		assert.Equal(t, models.SLAOnTrack, tr.SLAStatus)
	})
}

func TestPipeline_IngestPortal_ConcurrentDuplicates(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC))
	const n = 10

	resps := make([]*models.LeadCreationResponse, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resps[i], errs[i] = e.pipeline.IngestPortal(ctx, portalWebhook("X"))
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, resps[0].LeadID, resps[i].LeadID)
		assert.Equal(t, resps[0].ConversationID, resps[i].ConversationID)
	}

	lead, err := e.store.FindLeadByPortalID(ctx, models.SourceImmobiliare, "X")
	require.NoError(t, err)
	assert.Equal(t, resps[0].LeadID, lead.ID)

	msgs, err := e.convs.Messages(ctx, resps[0].ConversationID)
	require.NoError(t, err)
	assert.Len(t, msgs, n)
	for _, m := range msgs {
		assert.Equal(t, models.DirectionInbound, m.Direction)
	}

	conv, err := e.convs.Get(ctx, resps[0].ConversationID)
	require.NoError(t, err)
	assert.Equal(t, n, conv.MessageCount)
	assert.Equal(t, n, conv.UnreadCount)
}
