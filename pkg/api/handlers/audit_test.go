package handlers

import (
	"net/http"
	"testing"

	"github.com/jordanlanch/leaddesk/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditHandler_List(t *testing.T) {
	svc := setupTestServices(t)
	created := ingestPortal(t, svc, "C1")
	svc.pipeline.Wait()
	svc.audit.Wait()
	handler := NewAuditHandler(svc.audit)

	c, rec := newJSONContext(http.MethodGet, "/", nil)
	c.SetParamNames("entityType", "entityId")
	c.SetParamValues(models.EntityLead, created.LeadID)
	require.NoError(t, handler.List(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var logs []models.AuditLog
	decode(t, rec, &logs)
	require.NotEmpty(t, logs)
	var events []models.AuditEventType
	for _, l := range logs {
		events = append(events, l.EventType)
	}
	assert.Contains(t, events, models.AuditLeadCreated)
	assert.NotContains(t, rec.Body.String(), "lead-c1@example.com")
}

func TestAuditHandler_List_InvalidLimit(t *testing.T) {
	svc := setupTestServices(t)
	handler := NewAuditHandler(svc.audit)

	c, rec := newJSONContext(http.MethodGet, "/?limit=abc", nil)
	c.SetParamNames("entityType", "entityId")
	c.SetParamValues(models.EntityLead, "x")
	require.NoError(t, handler.List(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
