package handlers

import (
	"context"
	"net/http"
	"time"

	apierrors "github.com/jordanlanch/leaddesk/pkg/api/errors"
	"github.com/jordanlanch/leaddesk/pkg/api/middleware"
	"github.com/jordanlanch/leaddesk/pkg/domain"
	"github.com/jordanlanch/leaddesk/pkg/leadassignment"
	"github.com/jordanlanch/leaddesk/pkg/models"
	"github.com/labstack/echo/v4"
)

// LeadReader loads leads.
type LeadReader interface {
	GetLead(ctx context.Context, id string) (*models.Lead, error)
}

// ConversationByLead finds the conversation of a lead.
type ConversationByLead interface {
	GetByLead(ctx context.Context, leadID string) (*models.Conversation, error)
}

// TrackerReader loads the SLA tracker of a conversation.
type TrackerReader interface {
	Get(ctx context.Context, convID string) (*models.SLATracker, error)
}

// Reassigner moves a lead to a new owner.
type Reassigner interface {
	Reassign(ctx context.Context, leadID string, req leadassignment.AssignLeadRequest, assignedBy string) (*leadassignment.Result, error)
}

// LeadHandler serves leads and manual assignment.
type LeadHandler struct {
	leads      LeadReader
	convs      ConversationByLead
	trackers   TrackerReader
	reassigner Reassigner
}

// NewLeadHandler creates a new lead handler.
func NewLeadHandler(leads LeadReader, convs ConversationByLead, trackers TrackerReader, reassigner Reassigner) *LeadHandler {
	return &LeadHandler{leads: leads, convs: convs, trackers: trackers, reassigner: reassigner}
}

// LeadDetail is a lead with its conversation and SLA state.
type LeadDetail struct {
	Lead         *models.Lead         `json:"lead"`
	Conversation *models.Conversation `json:"conversation,omitempty"`
	SLA          *models.SLATracker   `json:"sla,omitempty"`
}

// Get godoc
// @Summary Get a lead with its conversation and SLA tracker
// @Tags Leads
// @Produce json
// @Param id path string true "Lead ID"
// @Success 200 {object} LeadDetail
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/leads/{id} [get]
func (h *LeadHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	lead, err := h.leads.GetLead(ctx, c.Param("id"))
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	detail := LeadDetail{Lead: lead}

	conv, err := h.convs.GetByLead(ctx, lead.ID)
	switch {
	case err == nil:
		detail.Conversation = conv
		tr, err := h.trackers.Get(ctx, conv.ID)
		if err != nil && !domain.IsNotFound(err) {
			return apierrors.FromDomain(c, err)
		}
		detail.SLA = tr
	case !domain.IsNotFound(err):
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, detail)
}

// Assign godoc
// @Summary Manually assign lead to user
// @Description Assign a lead to a specific user with a reason
// @Tags Leads
// @Accept json
// @Produce json
// @Param id path string true "Lead ID"
// @Param request body leadassignment.AssignLeadRequest true "Assignment details"
// @Success 200 {object} leadassignment.Result
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/leads/{id}/assign [post]
func (h *LeadHandler) Assign(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var req leadassignment.AssignLeadRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, domain.NewValidationError("invalid request body"))
	}

	res, err := h.reassigner.Reassign(ctx, c.Param("id"), req, middleware.UserID(c))
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
