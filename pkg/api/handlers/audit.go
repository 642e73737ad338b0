package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	apierrors "github.com/jordanlanch/leaddesk/pkg/api/errors"
	"github.com/jordanlanch/leaddesk/pkg/domain"
	"github.com/jordanlanch/leaddesk/pkg/models"
	"github.com/labstack/echo/v4"
)

// AuditReader lists the audit trail of an entity.
type AuditReader interface {
	ListForEntity(ctx context.Context, entityType, entityID string, limit int) ([]*models.AuditLog, error)
}

// AuditHandler serves the audit trail.
type AuditHandler struct {
	audit AuditReader
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(audit AuditReader) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// List godoc
// @Summary Get the audit trail of an entity
// @Description Oldest first; personal data in metadata is masked
// @Tags Audit
// @Produce json
// @Param entityType path string true "lead, conversation, message, sla_tracker or payload"
// @Param entityId path string true "Entity ID"
// @Param limit query int false "Limit (default 100, max 500)" default(100)
// @Success 200 {array} models.AuditLog
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/audit/{entityType}/{entityId} [get]
func (h *AuditHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	limit := 100
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return apierrors.ValidationError(c, domain.NewValidationError("limit must be a positive number"))
		}
		limit = min(n, 500)
	}

	recs, err := h.audit.ListForEntity(ctx, c.Param("entityType"), c.Param("entityId"), limit)
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	if recs == nil {
		recs = []*models.AuditLog{}
	}
	return c.JSON(http.StatusOK, recs)
}
