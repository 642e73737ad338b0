package handlers

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	apierrors "github.com/jordanlanch/leaddesk/pkg/api/errors"
	"github.com/jordanlanch/leaddesk/pkg/attachments"
	"github.com/jordanlanch/leaddesk/pkg/domain"
	"github.com/jordanlanch/leaddesk/pkg/models"
	"github.com/labstack/echo/v4"
)

const maxEmailAttachments = 5

// Ingester runs inbound payloads through the pipeline.
type Ingester interface {
	IngestEmail(ctx context.Context, in *models.InboundEmail) (*models.LeadCreationResponse, error)
	IngestPortal(ctx context.Context, in *models.PortalWebhook) (*models.LeadCreationResponse, error)
	IngestWhatsApp(ctx context.Context, in *models.WhatsAppInbound) (*models.LeadCreationResponse, error)
}

// AttachmentStore keeps the content of inbound email attachments.
type AttachmentStore interface {
	Save(ctx context.Context, u attachments.Upload) (models.Attachment, error)
}

// InboundHandler receives lead payloads from email, portals and WhatsApp.
type InboundHandler struct {
	ingester Ingester
	timeout  time.Duration
	files    AttachmentStore
}

// InboundOption configures an InboundHandler.
type InboundOption func(*InboundHandler)

// WithAttachmentStore uploads email attachments before ingestion.
func WithAttachmentStore(s AttachmentStore) InboundOption {
	return func(h *InboundHandler) { h.files = s }
}

// NewInboundHandler creates a new inbound handler.
func NewInboundHandler(ingester Ingester, timeout time.Duration, opts ...InboundOption) *InboundHandler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	h := &InboundHandler{ingester: ingester, timeout: timeout}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Email godoc
// @Summary Receive an inbound email
// @Description Accepts SendGrid Inbound Parse multipart forms or the same fields as JSON
// @Tags Inbound
// @Accept multipart/form-data,json
// @Produce json
// @Success 200 {object} models.LeadCreationResponse
// @Failure 400 {object} models.LeadCreationResponse
// @Failure 500 {object} models.LeadCreationResponse
// @Router /api/v1/inbound/email [post]
func (h *InboundHandler) Email(c echo.Context) error {
	var in models.InboundEmail
	if err := c.Bind(&in); err != nil {
		return invalidPayload(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	files, err := h.attachmentFiles(ctx, c, in.Attachments)
	if err != nil {
		if domain.IsValidation(err) {
			return invalidPayload(c, err)
		}
		return apierrors.FromDomain(c, err)
	}
	in.AttachmentN = files

	resp, err := h.ingester.IngestEmail(ctx, &in)
	return leadResponse(c, resp, err)
}

// Portal godoc
// @Summary Receive a portal lead webhook
// @Tags Inbound
// @Accept json
// @Produce json
// @Param request body models.PortalWebhook true "Portal lead"
// @Success 200 {object} models.LeadCreationResponse
// @Failure 400 {object} models.LeadCreationResponse
// @Failure 500 {object} models.LeadCreationResponse
// @Router /api/v1/inbound/portal [post]
func (h *InboundHandler) Portal(c echo.Context) error {
	var in models.PortalWebhook
	if err := c.Bind(&in); err != nil {
		return invalidPayload(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()
	resp, err := h.ingester.IngestPortal(ctx, &in)
	return leadResponse(c, resp, err)
}

// WhatsApp godoc
// @Summary Receive an inbound WhatsApp message
// @Tags Inbound
// @Accept json
// @Produce json
// @Param request body models.WhatsAppInbound true "WhatsApp message"
// @Success 200 {object} models.LeadCreationResponse
// @Failure 400 {object} models.LeadCreationResponse
// @Failure 500 {object} models.LeadCreationResponse
// @Router /api/v1/inbound/whatsapp [post]
func (h *InboundHandler) WhatsApp(c echo.Context) error {
	var in models.WhatsAppInbound
	if err := c.Bind(&in); err != nil {
		return invalidPayload(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()
	resp, err := h.ingester.IngestWhatsApp(ctx, &in)
	return leadResponse(c, resp, err)
}

// attachmentFiles reads attachment1..n from a multipart form, uploading each
// file when an attachment store is configured.
func (h *InboundHandler) attachmentFiles(ctx context.Context, c echo.Context, n int) ([]models.Attachment, error) {
	if n <= 0 || !strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return nil, nil
	}
	if n > maxEmailAttachments {
		return nil, domain.NewValidationError(fmt.Sprintf("at most %d attachments are accepted", maxEmailAttachments))
	}
	var out []models.Attachment
	for i := 1; i <= n; i++ {
		fh, err := c.FormFile(fmt.Sprintf("attachment%d", i))
		if err != nil {
			continue
		}
		att := models.Attachment{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get(echo.HeaderContentType),
			Size:        fh.Size,
		}
		if h.files != nil {
			att, err = h.upload(ctx, fh)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, att)
	}
	return out, nil
}

func (h *InboundHandler) upload(ctx context.Context, fh *multipart.FileHeader) (models.Attachment, error) {
	f, err := fh.Open()
	if err != nil {
		return models.Attachment{}, fmt.Errorf("failed to open attachment %s: %w", fh.Filename, err)
	}
	defer f.Close()
	return h.files.Save(ctx, attachments.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
		Body:        f,
	})
}

func invalidPayload(c echo.Context, err error) error {
	return c.JSON(http.StatusBadRequest, &models.LeadCreationResponse{
		Success: false,
		Error:   "invalid payload: " + err.Error(),
	})
}

func leadResponse(c echo.Context, resp *models.LeadCreationResponse, err error) error {
	if err == nil {
		return c.JSON(http.StatusOK, resp)
	}
	if resp != nil && domain.IsValidation(err) {
		return c.JSON(http.StatusBadRequest, resp)
	}
	return apierrors.FromDomain(c, err)
}
