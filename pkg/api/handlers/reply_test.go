package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/jordanlanch/leaddesk/pkg/domain"
	"github.com/jordanlanch/leaddesk/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReplier struct {
	err   error
	actor string
	email *models.EmailReplyRequest
	wa    *models.WhatsAppReplyRequest
}

func (f *fakeReplier) ReplyEmail(ctx context.Context, req *models.EmailReplyRequest, actor string) (*models.ReplyResponse, error) {
	f.email, f.actor = req, actor
	if f.err != nil {
		return &models.ReplyResponse{Success: false, Error: f.err.Error()}, f.err
	}
	return &models.ReplyResponse{Success: true, MessageID: "m1", ExternalID: "sg-1", SLAImpact: true}, nil
}

func (f *fakeReplier) ReplyWhatsApp(ctx context.Context, req *models.WhatsAppReplyRequest, actor string) (*models.ReplyResponse, error) {
	f.wa, f.actor = req, actor
	if f.err != nil {
		return nil, f.err
	}
	return &models.ReplyResponse{Success: true, MessageID: "m2", ExternalID: "wamid.out", SLAImpact: true}, nil
}

func TestReplyHandler_Email_Success(t *testing.T) {
	replier := &fakeReplier{}
	handler := NewReplyHandler(replier)

	c, rec := newJSONContext(http.MethodPost, "/api/v1/replies/email", strings.NewReader(`{"convId":"c1","text":"Hello"}`))
	require.NoError(t, handler.Email(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp models.ReplyResponse
	decode(t, rec, &resp)
	assert.True(t, resp.Success)
	assert.True(t, resp.SLAImpact)
	assert.Equal(t, "sg-1", resp.ExternalID)
	assert.Equal(t, "agent-1", replier.actor)
	assert.Equal(t, "c1", replier.email.ConvID)
}

func TestReplyHandler_Email_MissingBody(t *testing.T) {
	handler := NewReplyHandler(&fakeReplier{})

	c, rec := newJSONContext(http.MethodPost, "/api/v1/replies/email", strings.NewReader(`{"convId":"c1"}`))
	require.NoError(t, handler.Email(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp models.ErrorResponse
	decode(t, rec, &resp)
	assert.Equal(t, "validation_error", resp.Error)
}

func TestReplyHandler_Email_DeliveryFailed(t *testing.T) {
	handler := NewReplyHandler(&fakeReplier{err: domain.NewDeliveryError("email", errors.New("503"))})

	c, rec := newJSONContext(http.MethodPost, "/api/v1/replies/email", strings.NewReader(`{"convId":"c1","text":"Hello"}`))
	require.NoError(t, handler.Email(c))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestReplyHandler_WhatsApp_Template(t *testing.T) {
	replier := &fakeReplier{}
	handler := NewReplyHandler(replier)

	body := `{"convId":"c1","templateId":"visit","variables":{"date":"Friday"}}`
	c, rec := newJSONContext(http.MethodPost, "/api/v1/replies/whatsapp", strings.NewReader(body))
	require.NoError(t, handler.WhatsApp(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "visit", replier.wa.TemplateID)
	assert.Equal(t, "Friday", replier.wa.Variables["date"])
}

func TestReplyHandler_WhatsApp_NotFound(t *testing.T) {
	handler := NewReplyHandler(&fakeReplier{err: domain.NewNotFoundError("conversation c9")})

	c, rec := newJSONContext(http.MethodPost, "/api/v1/replies/whatsapp", strings.NewReader(`{"convId":"c9","text":"hi"}`))
	require.NoError(t, handler.WhatsApp(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
