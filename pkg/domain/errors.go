package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error with a code and message
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Error codes
const (
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeDedupConflict        = "DEDUP_CONFLICT"
	ErrCodeSLAComputation       = "SLA_COMPUTATION_ERROR"
	ErrCodeAssignmentUnresolved = "ASSIGNMENT_UNRESOLVED"
	ErrCodeAuditWriteFailure    = "AUDIT_WRITE_FAILURE"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeVersionConflict      = "VERSION_CONFLICT"
	ErrCodeDeliveryFailed       = "DELIVERY_FAILED"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// NewValidationError creates a new validation error
func NewValidationError(msg string) error {
	return &DomainError{Code: ErrCodeValidation, Message: msg}
}

// NewDedupConflictError reports that a concurrent create won the race for a dedup key.
func NewDedupConflictError(key string) error {
	return &DomainError{Code: ErrCodeDedupConflict, Message: fmt.Sprintf("lead already exists for key %s", key)}
}

// NewSLAComputationError wraps a business-hours configuration problem.
func NewSLAComputationError(err error) error {
	return &DomainError{Code: ErrCodeSLAComputation, Message: "invalid business hours configuration", Err: err}
}

// NewAssignmentUnresolvedError reports that no rule or candidate produced an owner.
func NewAssignmentUnresolvedError(msg string) error {
	return &DomainError{Code: ErrCodeAssignmentUnresolved, Message: msg}
}

// NewAuditWriteError wraps a persistent audit store failure.
func NewAuditWriteError(err error) error {
	return &DomainError{Code: ErrCodeAuditWriteFailure, Message: "audit record could not be persisted", Err: err}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource string) error {
	return &DomainError{Code: ErrCodeNotFound, Message: fmt.Sprintf("%s not found", resource)}
}

// NewVersionConflictError reports a lost optimistic-concurrency update.
func NewVersionConflictError(resource string) error {
	return &DomainError{Code: ErrCodeVersionConflict, Message: fmt.Sprintf("%s was modified concurrently", resource)}
}

// NewDeliveryError wraps a channel send failure.
func NewDeliveryError(channel string, err error) error {
	return &DomainError{Code: ErrCodeDeliveryFailed, Message: fmt.Sprintf("failed to deliver %s message", channel), Err: err}
}

// NewInternalError creates a new internal error
func NewInternalError(err error) error {
	return &DomainError{Code: ErrCodeInternal, Message: "An internal error occurred", Err: err}
}

func hasCode(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// IsValidation checks if the error is a validation error
func IsValidation(err error) bool { return hasCode(err, ErrCodeValidation) }

// IsDedupConflict checks if the error is a dedup race loss
func IsDedupConflict(err error) bool { return hasCode(err, ErrCodeDedupConflict) }

// IsSLAComputation checks if the error is a business-hours computation error
func IsSLAComputation(err error) bool { return hasCode(err, ErrCodeSLAComputation) }

// IsAssignmentUnresolved checks if the error is an unresolved assignment
func IsAssignmentUnresolved(err error) bool { return hasCode(err, ErrCodeAssignmentUnresolved) }

// IsAuditWriteFailure checks if the error is an audit write failure
func IsAuditWriteFailure(err error) bool { return hasCode(err, ErrCodeAuditWriteFailure) }

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsVersionConflict checks if the error is an optimistic-concurrency conflict
func IsVersionConflict(err error) bool { return hasCode(err, ErrCodeVersionConflict) }

// IsDeliveryFailed checks if the error is a channel delivery failure
func IsDeliveryFailed(err error) bool { return hasCode(err, ErrCodeDeliveryFailed) }

// GetErrorCode extracts the error code from a domain error
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ErrCodeInternal
}
