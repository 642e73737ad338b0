package handlers

import (
	"context"
	"net/http"
	"strconv"

	apierrors "github.com/jordanlanch/leaddesk/pkg/api/errors"
	"github.com/jordanlanch/leaddesk/pkg/export"
	"github.com/jordanlanch/leaddesk/pkg/sla"
	"github.com/labstack/echo/v4"
)

// SweepRunner runs one SLA sweep on demand.
type SweepRunner interface {
	RunSweep(ctx context.Context) (sla.SweepResult, error)
}

// ReportRenderer renders the open SLA queue.
type ReportRenderer interface {
	SLAQueue(ctx context.Context, format string, limit int) (*export.File, error)
}

// AdminHandler exposes operator actions.
type AdminHandler struct {
	sweeper SweepRunner
	reports ReportRenderer
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(sweeper SweepRunner, reports ReportRenderer) *AdminHandler {
	return &AdminHandler{sweeper: sweeper, reports: reports}
}

// Sweep godoc
// @Summary Run an SLA sweep now
// @Tags Admin
// @Produce json
// @Success 200 {object} sla.SweepResult
// @Failure 500 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/admin/sla/sweep [post]
func (h *AdminHandler) Sweep(c echo.Context) error {
	res, err := h.sweeper.RunSweep(c.Request().Context())
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// SLAReport godoc
// @Summary Download the open SLA queue
// @Description Unresponded conversations ordered by deadline, as CSV or XLSX
// @Tags Admin
// @Produce text/csv,application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param format query string false "csv (default) or xlsx"
// @Param limit query int false "Max rows (default 10000)"
// @Success 200 {file} file
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/admin/sla/report [get]
func (h *AdminHandler) SLAReport(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	f, err := h.reports.SLAQueue(c.Request().Context(), c.QueryParam("format"), limit)
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+f.Name+`"`)
	return c.Blob(http.StatusOK, f.ContentType, f.Data)
}
