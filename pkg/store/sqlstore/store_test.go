package sqlstore

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jordanlanch/leaddesk/pkg/domain"
	"github.com/jordanlanch/leaddesk/pkg/models"
	"github.com/jordanlanch/leaddesk/pkg/store"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

func setupStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s := New(db, SQLite)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func seedLead(t *testing.T, s *Store, id, portalID string, at time.Time) (*models.Lead, *models.Conversation) {
	t.Helper()
	lead := &models.Lead{
		ID:             id,
		ProjectID:      "p1",
		Source:         models.SourceImmobiliare,
		PortalLeadID:   portalID,
		Email:          id + "@example.com",
		RequiredSkills: []string{"luxury"},
		Status:         models.LeadStatusNew,
		Priority:       models.PriorityMedium,
		SLAStatus:      models.SLAOnTrack,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
	conv := &models.Conversation{
		ID:        "c-" + id,
		LeadID:    id,
		ProjectID: "p1",
		Status:    models.ConversationActive,
		SLAStatus: models.SLAOnTrack,
		Version:   1,
		CreatedAt: at,
		UpdatedAt: at,
	}
	require.NoError(t, s.CreateLeadWithConversation(context.Background(), lead, conv))
	return lead, conv
}

func TestStore_Migrate(t *testing.T) {
	s := setupStore(t)
	t.Run("Success - idempotent", func(t *testing.T) {
		assert.NoError(t, s.Migrate(context.Background()))
	})
}

func TestStore_Leads(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	seedLead(t, s, "l1", "X", t0)

	t.Run("Success - lookup by portal id", func(t *testing.T) {
		got, err := s.FindLeadByPortalID(ctx, models.SourceImmobiliare, "X")
		require.NoError(t, err)
		assert.Equal(t, "l1", got.ID)
		assert.Equal(t, []string{"luxury"}, got.RequiredSkills)
		assert.True(t, got.CreatedAt.Equal(t0))
		assert.Nil(t, got.FirstResponseAt)

		conv, err := s.GetConversationByLead(ctx, "l1")
		require.NoError(t, err)
		assert.Equal(t, "c-l1", conv.ID)
		assert.Equal(t, int64(1), conv.Version)
	})

	t.Run("Error - duplicate portal id", func(t *testing.T) {
		lead := &models.Lead{ID: "l2", ProjectID: "p1", Source: models.SourceImmobiliare, PortalLeadID: "X",
			Status: models.LeadStatusNew, Priority: models.PriorityLow, CreatedAt: t0, UpdatedAt: t0}
		conv := &models.Conversation{ID: "c-l2", LeadID: "l2", ProjectID: "p1", Status: models.ConversationActive,
			Version: 1, CreatedAt: t0, UpdatedAt: t0}
		err := s.CreateLeadWithConversation(ctx, lead, conv)
		assert.True(t, domain.IsDedupConflict(err))

		_, err = s.GetConversation(ctx, "c-l2")
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("Success - leads without portal id do not collide", func(t *testing.T) {
		seedLead(t, s, "l3", "", t0)
		seedLead(t, s, "l4", "", t0)
	})

	t.Run("Success - sla mirror and assignee", func(t *testing.T) {
		at := t0.Add(5 * time.Minute)
		require.NoError(t, s.SetLeadSLA(ctx, "l1", models.SLAOnTrack, &at, at))
		require.NoError(t, s.SetLeadAssignee(ctx, "l1", "u1", at))
		require.NoError(t, s.SetLeadStatus(ctx, "l1", models.LeadStatusContacted, at))

		got, err := s.GetLead(ctx, "l1")
		require.NoError(t, err)
		require.NotNil(t, got.FirstResponseAt)
		assert.True(t, got.FirstResponseAt.Equal(at))
		assert.Equal(t, "u1", got.AssignedUserID)
		assert.Equal(t, models.LeadStatusContacted, got.Status)
	})

	t.Run("Error - unknown lead", func(t *testing.T) {
		assert.True(t, domain.IsNotFound(s.SetLeadAssignee(ctx, "missing", "u1", t0)))
		_, err := s.GetLead(ctx, "missing")
		assert.True(t, domain.IsNotFound(err))
	})
}

func TestStore_FindRecentLeadByContact(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)

	old, _ := seedLead(t, s, "old", "", t0.Add(-48*time.Hour))
	recent := &models.Lead{ID: "recent", ProjectID: "p1", Source: models.SourceImmobiliare, Email: old.Email,
		Status: models.LeadStatusNew, Priority: models.PriorityMedium, CreatedAt: t0.Add(-time.Hour), UpdatedAt: t0}
	require.NoError(t, s.CreateLeadWithConversation(ctx, recent, &models.Conversation{
		ID: "c-recent", LeadID: "recent", ProjectID: "p1", Status: models.ConversationActive, Version: 1,
		CreatedAt: t0, UpdatedAt: t0,
	}))

	t.Run("Success - newest inside window", func(t *testing.T) {
		got, err := s.FindRecentLeadByContact(ctx, store.ContactKey{
			Source: models.SourceImmobiliare,
			Email:  old.Email,
			Since:  t0.Add(-24 * time.Hour),
		})
		require.NoError(t, err)
		assert.Equal(t, "recent", got.ID)
	})

	t.Run("Error - other listing", func(t *testing.T) {
		_, err := s.FindRecentLeadByContact(ctx, store.ContactKey{
			Source:    models.SourceImmobiliare,
			Email:     old.Email,
			ListingID: "L-9",
			Since:     t0.Add(-24 * time.Hour),
		})
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("Error - empty contact", func(t *testing.T) {
		_, err := s.FindRecentLeadByContact(ctx, store.ContactKey{Source: models.SourceImmobiliare})
		assert.True(t, domain.IsNotFound(err))
	})
}

func TestStore_AppendMessage(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	_, conv := seedLead(t, s, "l1", "X", t0)

	first := &models.Message{ID: "m1", ConvID: conv.ID, Direction: models.DirectionInbound, Channel: models.ChannelPortal,
		Text: "ciao", Status: models.MessageReceived, ExternalID: "ext-1", Seq: 0, CreatedAt: t0,
		Attachments: []models.Attachment{{Filename: "plan.pdf", Size: 10}}}
	conv.MessageCount = 1
	conv.UnreadCount = 1
	conv.LastMsgAt = &first.CreatedAt

	t.Run("Success - versioned append", func(t *testing.T) {
		require.NoError(t, s.AppendMessage(ctx, conv, 1, first))
		assert.Equal(t, int64(2), conv.Version)

		got, err := s.GetConversation(ctx, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.Version)
		assert.Equal(t, 1, got.UnreadCount)
		require.NotNil(t, got.LastMsgAt)
		assert.True(t, got.LastMsgAt.Equal(t0))
	})

	t.Run("Error - stale version", func(t *testing.T) {
		stale := *conv
		msg := &models.Message{ID: "m2", ConvID: conv.ID, Direction: models.DirectionInbound, Status: models.MessageReceived,
			Seq: 1, CreatedAt: t0}
		err := s.AppendMessage(ctx, &stale, 1, msg)
		assert.True(t, domain.IsVersionConflict(err))

		msgs, err := s.ListMessages(ctx, conv.ID)
		require.NoError(t, err)
		assert.Len(t, msgs, 1)
	})

	t.Run("Success - history ordered by time then seq", func(t *testing.T) {
		second := &models.Message{ID: "m2", ConvID: conv.ID, Direction: models.DirectionOutbound, Status: models.MessageSent,
			SLAImpact: true, Seq: 1, CreatedAt: t0}
		conv.MessageCount = 2
		require.NoError(t, s.AppendMessage(ctx, conv, conv.Version, second))

		msgs, err := s.ListMessages(ctx, conv.ID)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "m1", msgs[0].ID)
		assert.Equal(t, "m2", msgs[1].ID)
		assert.True(t, msgs[1].SLAImpact)
		assert.Equal(t, "plan.pdf", msgs[0].Attachments[0].Filename)
	})

	t.Run("Success - find by external id", func(t *testing.T) {
		m, err := s.FindMessageByExternalID(ctx, conv.ID, "ext-1")
		require.NoError(t, err)
		assert.Equal(t, "m1", m.ID)

		_, err = s.FindMessageByExternalID(ctx, conv.ID, "ext-2")
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("Error - update unknown conversation", func(t *testing.T) {
		err := s.UpdateConversation(ctx, &models.Conversation{ID: "nope", UpdatedAt: t0}, 1)
		assert.True(t, domain.IsNotFound(err))
	})
}

func TestStore_Trackers(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)

	mk := func(id string, deadline time.Time) *models.SLATracker {
		return &models.SLATracker{
			ID: id, LeadID: "l-" + id, ConversationID: "c-" + id, ProjectID: "p1",
			CreatedAt: t0, FirstResponseDeadline: deadline, AtRiskAt: deadline.Add(-3 * time.Minute),
			SLAStatus: models.SLAOnTrack, Version: 1, UpdatedAt: t0,
		}
	}
	require.NoError(t, s.CreateTracker(ctx, mk("b", t0.Add(30*time.Minute))))
	require.NoError(t, s.CreateTracker(ctx, mk("a", t0.Add(15*time.Minute))))

	t.Run("Error - second tracker for a conversation", func(t *testing.T) {
		err := s.CreateTracker(ctx, mk("b", t0))
		assert.True(t, domain.IsVersionConflict(err))
	})

	t.Run("Success - open trackers ordered by deadline", func(t *testing.T) {
		open, err := s.ListOpenTrackers(ctx, 0)
		require.NoError(t, err)
		require.Len(t, open, 2)
		assert.Equal(t, "a", open[0].ID)

		limited, err := s.ListOpenTrackers(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})

	t.Run("Success - keyset pages after a cursor", func(t *testing.T) {
		first, err := s.ListOpenTrackersAfter(ctx, store.TrackerCursor{}, 1)
		require.NoError(t, err)
		require.Len(t, first, 1)
		assert.Equal(t, "a", first[0].ID)

		next, err := s.ListOpenTrackersAfter(ctx, store.CursorOf(first[0]), 1)
		require.NoError(t, err)
		require.Len(t, next, 1)
		assert.Equal(t, "b", next[0].ID)

		rest, err := s.ListOpenTrackersAfter(ctx, store.CursorOf(next[0]), 1)
		require.NoError(t, err)
		assert.Empty(t, rest)
	})

	t.Run("Success - versioned update with history", func(t *testing.T) {
		tr, err := s.GetTrackerByConversation(ctx, "c-a")
		require.NoError(t, err)
		at := t0.Add(16 * time.Minute)
		tr.SLAStatus = models.SLABreached
		tr.EscalationLevel = models.MaxEscalationLevel
		tr.LastEscalationAt = &at
		tr.EscalationHistory = append(tr.EscalationHistory, models.EscalationEntry{Level: 1, Timestamp: at, Actor: "system", Action: "escalated"})
		require.NoError(t, s.UpdateTracker(ctx, tr, 1))
		assert.Equal(t, int64(2), tr.Version)

		got, err := s.GetTrackerByConversation(ctx, "c-a")
		require.NoError(t, err)
		assert.Equal(t, models.SLABreached, got.SLAStatus)
		require.Len(t, got.EscalationHistory, 1)
		assert.True(t, got.EscalationHistory[0].Timestamp.Equal(at))

		open, err := s.ListOpenTrackers(ctx, 0)
		require.NoError(t, err)
		require.Len(t, open, 1)
		assert.Equal(t, "b", open[0].ID)
	})

	t.Run("Error - stale tracker version", func(t *testing.T) {
		tr, err := s.GetTrackerByConversation(ctx, "c-b")
		require.NoError(t, err)
		err = s.UpdateTracker(ctx, tr, 7)
		assert.True(t, domain.IsVersionConflict(err))
	})

	t.Run("Error - unknown conversation", func(t *testing.T) {
		_, err := s.GetTrackerByConversation(ctx, "c-zzz")
		assert.True(t, domain.IsNotFound(err))
	})
}

func TestStore_Policy(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)

	t.Run("Success - sla config upsert", func(t *testing.T) {
		_, err := s.GetSLAConfig(ctx, "p1")
		assert.True(t, domain.IsNotFound(err))

		cfg := &models.SLAConfig{
			ProjectID:            "p1",
			FirstResponseMinutes: 15,
			AtRiskFraction:       0.2,
			BusinessHours:        models.BusinessHours{Enabled: true, Start: "09:00", End: "18:00", Timezone: "Europe/Rome", DaysOfWeek: []int{1, 2, 3, 4, 5}},
			EscalationLevels:     [models.MaxEscalationLevel]int{0, 15, 60, 240},
			UpdatedAt:            t0,
		}
		require.NoError(t, s.PutSLAConfig(ctx, cfg))
		cfg.FirstResponseMinutes = 30
		require.NoError(t, s.PutSLAConfig(ctx, cfg))

		got, err := s.GetSLAConfig(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, 30, got.FirstResponseMinutes)
		assert.Equal(t, "Europe/Rome", got.BusinessHours.Timezone)
		assert.Equal(t, [models.MaxEscalationLevel]int{0, 15, 60, 240}, got.EscalationLevels)
	})

	t.Run("Success - active rules by priority", func(t *testing.T) {
		require.NoError(t, s.PutRule(ctx, &models.AssignmentRule{ID: "r2", ProjectID: "p1", Priority: 2, Active: true,
			Assignment: models.RuleAssignment{Type: models.AssignmentAuto, UserIDs: []string{"u2"}}}))
		require.NoError(t, s.PutRule(ctx, &models.AssignmentRule{ID: "r1", ProjectID: "p1", Priority: 1, Active: true,
			Conditions: models.RuleConditions{LeadSource: []models.LeadSource{models.SourceIdealista}},
			Assignment: models.RuleAssignment{Type: models.AssignmentLeastBusy, UserIDs: []string{"u1", "u3"}}}))
		require.NoError(t, s.PutRule(ctx, &models.AssignmentRule{ID: "r0", ProjectID: "p1", Priority: 0, Active: false}))

		rules, err := s.ListRules(ctx, "p1")
		require.NoError(t, err)
		require.Len(t, rules, 2)
		assert.Equal(t, "r1", rules[0].ID)
		assert.Equal(t, []models.LeadSource{models.SourceIdealista}, rules[0].Conditions.LeadSource)
		assert.Equal(t, models.AssignmentAuto, rules[1].Assignment.Type)
	})
}

func TestStore_CountOpenLeads(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)

	seedLead(t, s, "a", "", t0)
	seedLead(t, s, "b", "", t0)
	seedLead(t, s, "c", "", t0)
	require.NoError(t, s.SetLeadAssignee(ctx, "a", "u1", t0))
	require.NoError(t, s.SetLeadAssignee(ctx, "b", "u1", t0))
	require.NoError(t, s.SetLeadAssignee(ctx, "c", "u1", t0))
	require.NoError(t, s.SetLeadStatus(ctx, "c", models.LeadStatusWon, t0))

	counts, err := s.CountOpenLeads(ctx, []string{"u1", "u2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"u1": 2, "u2": 0}, counts)
}

func TestStore_Audit(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)

	for i, ev := range []models.AuditEventType{models.AuditLeadCreated, models.AuditSLAInitialized, models.AuditSLAEscalated} {
		require.NoError(t, s.AppendAudit(ctx, &models.AuditLog{
			ID: string(ev), EventType: ev, EntityType: models.EntityLead, EntityID: "l1", Actor: models.ActorSystem,
			Severity: models.SeverityInfo, Timestamp: t0.Add(time.Duration(i) * time.Minute),
			Metadata: map[string]interface{}{"step": i},
		}))
	}

	t.Run("Success - oldest first", func(t *testing.T) {
		logs, err := s.ListAudit(ctx, models.EntityLead, "l1", 0)
		require.NoError(t, err)
		require.Len(t, logs, 3)
		assert.Equal(t, models.AuditLeadCreated, logs[0].EventType)
		assert.Equal(t, float64(2), logs[2].Metadata["step"])
	})

	t.Run("Success - limit keeps the latest", func(t *testing.T) {
		logs, err := s.ListAudit(ctx, models.EntityLead, "l1", 2)
		require.NoError(t, err)
		require.Len(t, logs, 2)
		assert.Equal(t, models.AuditSLAInitialized, logs[0].EventType)
		assert.Equal(t, models.AuditSLAEscalated, logs[1].EventType)
	})

	t.Run("Success - other entity is empty", func(t *testing.T) {
		logs, err := s.ListAudit(ctx, models.EntityLead, "l2", 0)
		require.NoError(t, err)
		assert.Empty(t, logs)
	})
}
