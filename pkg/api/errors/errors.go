// Package errors writes the JSON error envelope returned by every handler.
// Internal details are logged, never sent to the client.
package errors

import (
	stderrors "errors"
	"net/http"
	"sync/atomic"

	"github.com/jordanlanch/leaddesk/pkg/domain"
	"github.com/jordanlanch/leaddesk/pkg/logger"
	"github.com/jordanlanch/leaddesk/pkg/models"
	"github.com/labstack/echo/v4"
)

var current atomic.Value

func init() {
	current.Store(logger.Default())
}

// SetLogger replaces the logger used for failed requests.
func SetLogger(l logger.Logger) {
	if l == nil {
		l = logger.Nop()
	}
	current.Store(l)
}

func log() logger.Logger {
	return current.Load().(logger.Logger)
}

func write(c echo.Context, status int, code, message string) error {
	return c.JSON(status, models.ErrorResponse{Success: false, Error: code, Message: message})
}

func requestAttrs(c echo.Context, err error) []any {
	return []any{"method", c.Request().Method, "path", c.Request().URL.Path, "error", err}
}

// ValidationError responds 400. The message of a domain validation error is
// safe to return; anything else is replaced by a generic message.
func ValidationError(c echo.Context, err error) error {
	log().Warn("validation error", requestAttrs(c, err)...)
	msg := "The request is invalid"
	var de *domain.DomainError
	if stderrors.As(err, &de) && de.Code == domain.ErrCodeValidation {
		msg = de.Message
	}
	return write(c, http.StatusBadRequest, "validation_error", msg)
}

// InternalError responds 500.
func InternalError(c echo.Context, err error) error {
	log().Error("internal error", requestAttrs(c, err)...)
	return write(c, http.StatusInternalServerError, "internal_error", "An internal error occurred")
}

// UnauthorizedError responds 401. reason is logged only.
func UnauthorizedError(c echo.Context, reason string) error {
	log().Warn("unauthorized", "path", c.Request().URL.Path, "reason", reason)
	return write(c, http.StatusUnauthorized, "unauthorized", "Authentication required")
}

// ForbiddenError responds 403. reason is logged only.
func ForbiddenError(c echo.Context, reason string) error {
	log().Warn("forbidden", "path", c.Request().URL.Path, "reason", reason)
	return write(c, http.StatusForbidden, "forbidden", "Insufficient permissions")
}

// ConflictError responds 409.
func ConflictError(c echo.Context, message string) error {
	return write(c, http.StatusConflict, "conflict", message)
}

// DeliveryError responds 502 when an outbound provider refused a message.
func DeliveryError(c echo.Context, err error) error {
	log().Warn("delivery failed", requestAttrs(c, err)...)
	return write(c, http.StatusBadGateway, "delivery_failed", "The message could not be delivered")
}

// FromDomain picks the response for err by its domain code.
func FromDomain(c echo.Context, err error) error {
	var de *domain.DomainError
	if !stderrors.As(err, &de) {
		return InternalError(c, err)
	}
	switch de.Code {
	case domain.ErrCodeValidation:
		return ValidationError(c, err)
	case domain.ErrCodeNotFound:
		return write(c, http.StatusNotFound, "not_found", de.Message)
	case domain.ErrCodeVersionConflict, domain.ErrCodeDedupConflict:
		log().Warn("conflict", requestAttrs(c, err)...)
		return ConflictError(c, "The resource was modified concurrently, retry the request")
	case domain.ErrCodeDeliveryFailed:
		return DeliveryError(c, err)
	case domain.ErrCodeAssignmentUnresolved:
		return write(c, http.StatusUnprocessableEntity, "assignment_unresolved", de.Message)
	}
	return InternalError(c, err)
}
