package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spec-kit/clinic-queue/internal/domain"
	"github.com/spec-kit/clinic-queue/internal/store"
)

// Error codes for queue business-rule rejections and infrastructure
// failures. Validation-class codes are never retried; transient failures may
// be retried by the caller.
const (
	CodeDuplicateActiveTicket = "DUPLICATE_ACTIVE_TICKET"
	CodeTicketNotFound        = "TICKET_NOT_FOUND"
	CodeNoActiveTicket        = "NO_ACTIVE_TICKET"
	CodeInvalidTransition     = "INVALID_TRANSITION"
	CodeAlreadyTerminal       = "ALREADY_TERMINAL"
	CodeTransientStore        = "TRANSIENT_STORE_FAILURE"
	CodeValidationFailed      = "VALIDATION_FAILED"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeRateLimited           = "RATE_LIMITED"
	CodeInternal              = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewDuplicateActiveTicket(contact string) error {
	return NewDomainError(CodeDuplicateActiveTicket, "contact already holds an active ticket", http.StatusConflict,
		map[string]any{"contact": contact})
}

func NewTicketNotFound(code string) error {
	return NewDomainError(CodeTicketNotFound, "ticket not found", http.StatusNotFound,
		map[string]any{"code": code})
}

func NewNoActiveTicket() error {
	return NewDomainError(CodeNoActiveTicket, "no active ticket for contact", http.StatusNotFound, nil)
}

func NewInvalidTransition(from, to domain.TicketStatus) error {
	return NewDomainError(CodeInvalidTransition, "status transition not allowed", http.StatusConflict,
		map[string]any{"from": from, "to": to})
}

func NewAlreadyTerminal(code string, status domain.TicketStatus) error {
	return NewDomainError(CodeAlreadyTerminal, "ticket already in a terminal status", http.StatusConflict,
		map[string]any{"code": code, "status": status})
}

func NewTransientStoreFailure(err error) error {
	return &DomainError{
		Code:       CodeTransientStore,
		Message:    "store temporarily unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewRateLimited(message string) error {
	return NewDomainError(CodeRateLimited, message, http.StatusTooManyRequests, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err is a DomainError with the given code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	switch {
	case errors.Is(err, store.ErrDuplicateActiveTicket):
		err = NewDuplicateActiveTicket("")
	case errors.Is(err, store.ErrTicketNotFound):
		err = NewTicketNotFound("")
	case errors.Is(err, store.ErrNoActiveTicket):
		err = NewNoActiveTicket()
	case errors.Is(err, store.ErrTransient):
		err = NewTransientStoreFailure(err)
	default:
		err = NewInternalError(err)
	}
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
