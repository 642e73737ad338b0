package handlers

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/jordanlanch/leaddesk/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ingestPortal(t *testing.T, svc *testServices, id string) *models.LeadCreationResponse {
	t.Helper()
	resp, err := svc.pipeline.IngestPortal(context.Background(), &models.PortalWebhook{
		Source:       "idealista",
		PortalLeadID: id,
		Email:        "lead-" + id + "@example.com",
		Message:      "hello",
		ProjectID:    "p1",
	})
	require.NoError(t, err)
	return resp
}

func TestConversationHandler_Get(t *testing.T) {
	svc := setupTestServices(t)
	lead := ingestPortal(t, svc, "A1")
	handler := NewConversationHandler(svc.convs, svc.sla)

	c, rec := newJSONContext(http.MethodGet, "/api/v1/conversations/"+lead.ConversationID, nil)
	c.SetParamNames("id")
	c.SetParamValues(lead.ConversationID)
	require.NoError(t, handler.Get(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var conv models.Conversation
	decode(t, rec, &conv)
	assert.Equal(t, lead.LeadID, conv.LeadID)
	assert.Equal(t, 1, conv.MessageCount)
}

func TestConversationHandler_Get_NotFound(t *testing.T) {
	svc := setupTestServices(t)
	handler := NewConversationHandler(svc.convs, svc.sla)

	c, rec := newJSONContext(http.MethodGet, "/api/v1/conversations/missing", nil)
	c.SetParamNames("id")
	c.SetParamValues("missing")
	require.NoError(t, handler.Get(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp models.ErrorResponse
	decode(t, rec, &resp)
	assert.Equal(t, "not_found", resp.Error)
}

func TestConversationHandler_Messages(t *testing.T) {
	svc := setupTestServices(t)
	lead := ingestPortal(t, svc, "A1")
	ingestPortal(t, svc, "A1")
	handler := NewConversationHandler(svc.convs, svc.sla)

	c, rec := newJSONContext(http.MethodGet, "/", nil)
	c.SetParamNames("id")
	c.SetParamValues(lead.ConversationID)
	require.NoError(t, handler.Messages(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var msgs []models.Message
	decode(t, rec, &msgs)
	require.Len(t, msgs, 2)
	assert.Equal(t, int64(1), msgs[0].Seq)
	assert.Equal(t, int64(2), msgs[1].Seq)
}

func TestConversationHandler_SetStatus(t *testing.T) {
	svc := setupTestServices(t)
	lead := ingestPortal(t, svc, "A1")
	handler := NewConversationHandler(svc.convs, svc.sla)

	for _, status := range []string{"closed", "active"} {
		c, rec := newJSONContext(http.MethodPost, "/", strings.NewReader(`{"status":"`+status+`"}`))
		c.SetParamNames("id")
		c.SetParamValues(lead.ConversationID)
		require.NoError(t, handler.SetStatus(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		var conv models.Conversation
		decode(t, rec, &conv)
		assert.Equal(t, models.ConversationStatus(status), conv.Status)
	}

	svc.audit.Wait()
	logs, err := svc.store.ListAudit(context.Background(), models.EntitySLATracker, "", 0)
	require.NoError(t, err)
	var reopened bool
	for _, l := range logs {
		if l.EventType == models.AuditSLAReopened {
			reopened = true
		}
	}
	assert.True(t, reopened)
}

func TestConversationHandler_SetStatus_Invalid(t *testing.T) {
	svc := setupTestServices(t)
	lead := ingestPortal(t, svc, "A1")
	handler := NewConversationHandler(svc.convs, svc.sla)

	c, rec := newJSONContext(http.MethodPost, "/", strings.NewReader(`{"status":"deleted"}`))
	c.SetParamNames("id")
	c.SetParamValues(lead.ConversationID)
	require.NoError(t, handler.SetStatus(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConversationHandler_MarkRead(t *testing.T) {
	svc := setupTestServices(t)
	lead := ingestPortal(t, svc, "A1")
	handler := NewConversationHandler(svc.convs, svc.sla)

	c, rec := newJSONContext(http.MethodPost, "/", nil)
	c.SetParamNames("id")
	c.SetParamValues(lead.ConversationID)
	require.NoError(t, handler.MarkRead(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var conv models.Conversation
	decode(t, rec, &conv)
	assert.Equal(t, 0, conv.UnreadCount)
}
