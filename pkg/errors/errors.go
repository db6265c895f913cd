package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Clearance workflow errors. Authorization-class failures surface as 403,
// configuration failures as 500 with a code monitoring can alert on.
var (
	ErrScheduleClosed        = New("SCHEDULE_CLOSED", http.StatusForbidden, "clearance is closed for this type")
	ErrDuplicateRequest      = New("DUPLICATE_REQUEST", http.StatusConflict, "clearance request already submitted for this type")
	ErrNoRole                = New("NO_ROLE", http.StatusForbidden, "user has no staff role")
	ErrNotAssignedApprover   = New("NOT_ASSIGNED_APPROVER", http.StatusForbidden, "no approval assigned to this user for the request")
	ErrCommentRequired       = New("COMMENT_REQUIRED", http.StatusBadRequest, "comment is required when rejecting")
	ErrPhaseIncomplete       = New("PHASE_INCOMPLETE", http.StatusForbidden, "prerequisite phase approvals not complete")
	ErrDecisionLocked        = New("DECISION_LOCKED", http.StatusConflict, "decision is locked because a later phase has started")
	ErrApproverNotConfigured = New("APPROVER_NOT_CONFIGURED", http.StatusInternalServerError, "no approver configured for a required role")
	ErrNotApproved           = New("NOT_APPROVED", http.StatusForbidden, "clearance request is not fully approved")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// IsConfiguration reports whether the error is a deployment or data-setup
// defect rather than a caller mistake.
func IsConfiguration(err error) bool {
	e := FromError(err)
	return e != nil && e.Code == ErrApproverNotConfigured.Code
}
