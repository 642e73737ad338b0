package handlers

import (
	"context"
	"net/http"
	"time"

	apierrors "github.com/jordanlanch/leaddesk/pkg/api/errors"
	"github.com/jordanlanch/leaddesk/pkg/api/middleware"
	"github.com/jordanlanch/leaddesk/pkg/domain"
	"github.com/jordanlanch/leaddesk/pkg/models"
	"github.com/labstack/echo/v4"
)

// Conversations is the conversation surface exposed to agents.
type Conversations interface {
	Get(ctx context.Context, id string) (*models.Conversation, error)
	Messages(ctx context.Context, convID string) ([]*models.Message, error)
	SetStatus(ctx context.Context, convID string, status models.ConversationStatus, actor string) (*models.Conversation, bool, error)
	MarkRead(ctx context.Context, convID, actor string) (*models.Conversation, error)
}

// SLAReopener restarts the first-response cycle of a reactivated conversation.
type SLAReopener interface {
	Reopen(ctx context.Context, convID, actor string, at time.Time) (*models.SLATracker, error)
}

// ConversationHandler serves the unified conversation view.
type ConversationHandler struct {
	convs Conversations
	sla   SLAReopener
	now   func() time.Time
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(convs Conversations, sla SLAReopener) *ConversationHandler {
	return &ConversationHandler{convs: convs, sla: sla, now: time.Now}
}

// StatusRequest changes the lifecycle state of a conversation.
type StatusRequest struct {
	Status models.ConversationStatus `json:"status"`
}

// Get godoc
// @Summary Get a conversation
// @Tags Conversations
// @Produce json
// @Param id path string true "Conversation ID"
// @Success 200 {object} models.Conversation
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/conversations/{id} [get]
func (h *ConversationHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	conv, err := h.convs.Get(ctx, c.Param("id"))
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, conv)
}

// Messages godoc
// @Summary List the messages of a conversation in order
// @Tags Conversations
// @Produce json
// @Param id path string true "Conversation ID"
// @Success 200 {array} models.Message
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/conversations/{id}/messages [get]
func (h *ConversationHandler) Messages(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	msgs, err := h.convs.Messages(ctx, c.Param("id"))
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	if msgs == nil {
		msgs = []*models.Message{}
	}
	return c.JSON(http.StatusOK, msgs)
}

// SetStatus godoc
// @Summary Close, archive, flag or reactivate a conversation
// @Tags Conversations
// @Accept json
// @Produce json
// @Param id path string true "Conversation ID"
// @Param request body StatusRequest true "New status"
// @Success 200 {object} models.Conversation
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/conversations/{id}/status [post]
func (h *ConversationHandler) SetStatus(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var req StatusRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, domain.NewValidationError("invalid request body"))
	}

	actor := middleware.UserID(c)
	conv, reopened, err := h.convs.SetStatus(ctx, c.Param("id"), req.Status, actor)
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	if reopened && h.sla != nil {
		if _, err := h.sla.Reopen(ctx, conv.ID, actor, h.now().UTC()); err != nil && !domain.IsNotFound(err) {
			return apierrors.FromDomain(c, err)
		}
	}
	return c.JSON(http.StatusOK, conv)
}

// MarkRead godoc
// @Summary Clear the unread counter of a conversation
// @Tags Conversations
// @Produce json
// @Param id path string true "Conversation ID"
// @Success 200 {object} models.Conversation
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/conversations/{id}/read [post]
func (h *ConversationHandler) MarkRead(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	conv, err := h.convs.MarkRead(ctx, c.Param("id"), middleware.UserID(c))
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, conv)
}
