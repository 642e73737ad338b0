package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	apierrors "github.com/jordanlanch/leaddesk/pkg/api/errors"
	"github.com/jordanlanch/leaddesk/pkg/api/middleware"
	"github.com/jordanlanch/leaddesk/pkg/domain"
	"github.com/jordanlanch/leaddesk/pkg/models"
	"github.com/labstack/echo/v4"
)

// Replier sends agent replies.
type Replier interface {
	ReplyEmail(ctx context.Context, req *models.EmailReplyRequest, actor string) (*models.ReplyResponse, error)
	ReplyWhatsApp(ctx context.Context, req *models.WhatsAppReplyRequest, actor string) (*models.ReplyResponse, error)
}

// ReplyHandler handles outbound replies.
type ReplyHandler struct {
	replier  Replier
	validate *validator.Validate
}

// NewReplyHandler creates a new reply handler.
func NewReplyHandler(replier Replier) *ReplyHandler {
	return &ReplyHandler{replier: replier, validate: validator.New()}
}

// WhatsApp godoc
// @Summary Send a WhatsApp reply
// @Tags Replies
// @Accept json
// @Produce json
// @Param request body models.WhatsAppReplyRequest true "Reply"
// @Success 200 {object} models.ReplyResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/replies/whatsapp [post]
func (h *ReplyHandler) WhatsApp(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	var req models.WhatsAppReplyRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, domain.NewValidationError("invalid request body"))
	}
	if err := h.validate.Struct(&req); err != nil {
		return apierrors.ValidationError(c, domain.NewValidationError(err.Error()))
	}

	resp, err := h.replier.ReplyWhatsApp(ctx, &req, middleware.UserID(c))
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Email godoc
// @Summary Send an email reply
// @Tags Replies
// @Accept json
// @Produce json
// @Param request body models.EmailReplyRequest true "Reply"
// @Success 200 {object} models.ReplyResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/replies/email [post]
func (h *ReplyHandler) Email(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	var req models.EmailReplyRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, domain.NewValidationError("invalid request body"))
	}
	if err := h.validate.Struct(&req); err != nil {
		return apierrors.ValidationError(c, domain.NewValidationError(err.Error()))
	}

	resp, err := h.replier.ReplyEmail(ctx, &req, middleware.UserID(c))
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}
