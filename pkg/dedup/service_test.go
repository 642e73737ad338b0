package dedup

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jordanlanch/leaddesk/pkg/domain"
	"github.com/jordanlanch/leaddesk/pkg/models"
	"github.com/jordanlanch/leaddesk/pkg/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func portalEvent(id string) *models.RawLeadEvent {
	return &models.RawLeadEvent{
		ProjectID:    "p1",
		Source:       models.SourceImmobiliare,
		PortalLeadID: id,
		Channel:      models.ChannelPortal,
		Contact:      models.Contact{Name: "Mario Rossi", Email: "Mario@Example.com"},
		Text:         "Vorrei visitare l'appartamento",
	}
}

func TestService_Resolve(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	t.Run("Success - same portal id resolves to one lead", func(t *testing.T) {
		st := memory.New()
		svc := NewService(st, WithClock(func() time.Time { return t0 }))

		first, err := svc.Resolve(ctx, portalEvent("X"))
		require.NoError(t, err)
		assert.True(t, first.IsNewLead)
		assert.Equal(t, "mario@example.com", first.Lead.Email)
		assert.Equal(t, models.PriorityMedium, first.Lead.Priority)
		assert.Equal(t, models.ChannelPortal, first.Conversation.Channel)

		second, err := svc.Resolve(ctx, portalEvent("X"))
		require.NoError(t, err)
		assert.False(t, second.IsNewLead)
		assert.Equal(t, first.LeadID, second.LeadID)
		assert.Equal(t, first.ConversationID, second.ConversationID)

		other, err := svc.Resolve(ctx, portalEvent("Y"))
		require.NoError(t, err)
		assert.True(t, other.IsNewLead)
	})

	t.Run("Success - contact key honours the window and listing", func(t *testing.T) {
		st := memory.New()
		now := t0
		svc := NewService(st, WithClock(func() time.Time { return now }), WithWindow(24*time.Hour))

		ev := &models.RawLeadEvent{
			ProjectID: "p1",
			Source:    models.SourceEmail,
			ListingID: "L-10",
			Channel:   models.ChannelEmail,
			Contact:   models.Contact{Phone: "+393331234567"},
		}
		first, err := svc.Resolve(ctx, ev)
		require.NoError(t, err)

		now = t0.Add(23 * time.Hour)
		again, err := svc.Resolve(ctx, ev)
		require.NoError(t, err)
		assert.Equal(t, first.LeadID, again.LeadID)

		otherListing := *ev
		otherListing.ListingID = "L-11"
		diff, err := svc.Resolve(ctx, &otherListing)
		require.NoError(t, err)
		assert.NotEqual(t, first.LeadID, diff.LeadID)

		now = t0.Add(25 * time.Hour)
		late, err := svc.Resolve(ctx, ev)
		require.NoError(t, err)
		assert.True(t, late.IsNewLead)
		assert.NotEqual(t, first.LeadID, late.LeadID)
	})

	t.Run("Error - no identifier", func(t *testing.T) {
		svc := NewService(memory.New())
		_, err := svc.Resolve(ctx, &models.RawLeadEvent{Source: models.SourceEmail, Contact: models.Contact{Name: "Anon"}})
		assert.True(t, domain.IsValidation(err))
	})
}

func TestService_ResolveConcurrent(t *testing.T) {
	ctx := context.Background()
	const n = 25

	run := func(t *testing.T, svc *Service) map[string]int {
		var wg sync.WaitGroup
		var mu sync.Mutex
		leads := make(map[string]int)
		newLeads := 0
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := svc.Resolve(ctx, portalEvent("X"))
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				leads[res.LeadID]++
				if res.IsNewLead {
					newLeads++
				}
				mu.Unlock()
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, newLeads)
		return leads
	}

	t.Run("Success - with key lock", func(t *testing.T) {
		svc := NewService(memory.New(), WithLocker(memory.NewLocker()))
		leads := run(t, svc)
		assert.Len(t, leads, 1)
	})

	t.Run("Success - unique index alone", func(t *testing.T) {
		svc := NewService(memory.New())
		leads := run(t, svc)
		assert.Len(t, leads, 1)
	})
}

func TestKey(t *testing.T) {
	assert.Equal(t, "dedup:immobiliare:portal:X", Key(portalEvent("X")))
	assert.Equal(t, "dedup:email:email:a@b.it:L1", Key(&models.RawLeadEvent{Source: models.SourceEmail, ListingID: "L1", Contact: models.Contact{Email: "A@b.it", Phone: "+39"}}))
	assert.Equal(t, "dedup:whatsapp:phone:+39333:", Key(&models.RawLeadEvent{Source: models.SourceWhatsApp, Contact: models.Contact{Phone: "+39333"}}))
	assert.Empty(t, Key(&models.RawLeadEvent{}))
}
