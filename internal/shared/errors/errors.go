package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error types for different domains
type ErrorType string

const (
	// Read path
	ErrorTypeSchemaMismatch ErrorType = "SCHEMA_MISMATCH"
	ErrorTypeQueryFailure   ErrorType = "QUERY_FAILURE"

	// Write path
	ErrorTypeWriteFailure ErrorType = "WRITE_FAILURE"
	ErrorTypePartialBatch ErrorType = "PARTIAL_BATCH_FAILURE"

	// Generic
	ErrorTypeValidation     ErrorType = "VALIDATION_ERROR"
	ErrorTypeInfrastructure ErrorType = "INFRASTRUCTURE_ERROR"
	ErrorTypeAuthentication ErrorType = "AUTHENTICATION_ERROR"
	ErrorTypeAuthorization  ErrorType = "AUTHORIZATION_ERROR"
	ErrorTypeNotFound       ErrorType = "NOT_FOUND_ERROR"
	ErrorTypeConflict       ErrorType = "CONFLICT_ERROR"
	ErrorTypeInternal       ErrorType = "INTERNAL_ERROR"
)

// Machine-readable codes attached by backends and actions.
const (
	CodeUnknownColumn     = "unknown_column"
	CodeUnknownCollection = "unknown_collection"
	CodePermissionDenied  = "permission_denied"
	CodeConstraint        = "constraint_violation"
	CodeUnsupportedFilter = "unsupported_filter"
	CodeUnsupportedVideo  = "unsupported_video"
	CodeMissingID         = "missing_id"
)

// Common application errors
var (
	ErrNotFound         = errors.New("resource not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrRecordNotFound   = errors.New("record not found")
	ErrUnknownColumn    = errors.New("column does not exist")
	ErrInvalidName      = errors.New("invalid collection or column name")
	ErrStoreClosed      = errors.New("collection store is unmounted")
	ErrUnknownStore     = errors.New("no store mounted for collection")
	ErrUnsupportedVideo = errors.New("unsupported video URL")
)

// AppError represents a custom application error with context
type AppError struct {
	Type      ErrorType              `json:"type"`
	Message   string                 `json:"message"`
	Code      string                 `json:"code,omitempty"`
	HTTPCode  int                    `json:"-"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Cause     error                  `json:"-"`
	Component string                 `json:"component,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new application error
func NewAppError(errorType ErrorType, message string, httpCode int) *AppError {
	return &AppError{
		Type:     errorType,
		Message:  message,
		HTTPCode: httpCode,
		Details:  make(map[string]interface{}),
	}
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithCause adds the underlying cause
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithComponent adds the component name
func (e *AppError) WithComponent(component string) *AppError {
	e.Component = component
	return e
}

// WithDetail adds a detail field
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Common error constructors

// NewSchemaMismatchError reports that the backend does not know a column of a collection.
func NewSchemaMismatchError(collection, column string) *AppError {
	return NewAppError(ErrorTypeSchemaMismatch,
		fmt.Sprintf("column %q does not exist on %q", column, collection), http.StatusBadRequest).
		WithCode(CodeUnknownColumn).
		WithCause(ErrUnknownColumn).
		WithDetail("collection", collection).
		WithDetail("column", column)
}

// NewQueryFailure wraps a read error that is not a schema mismatch.
func NewQueryFailure(collection string, cause error) *AppError {
	return NewAppError(ErrorTypeQueryFailure, fmt.Sprintf("failed to fetch %q", collection), http.StatusBadGateway).
		WithCause(cause).
		WithDetail("collection", collection)
}

// NewWriteFailure wraps a rejected write. The backend message is kept verbatim.
func NewWriteFailure(collection, operation string, cause error) *AppError {
	msg := fmt.Sprintf("%s on %q rejected", operation, collection)
	e := NewAppError(ErrorTypeWriteFailure, msg, http.StatusUnprocessableEntity).
		WithCause(cause).
		WithDetail("collection", collection).
		WithDetail("operation", operation)
	var appErr *AppError
	if errors.As(cause, &appErr) && appErr.Code != "" {
		e.Code = appErr.Code
	}
	return e
}

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return NewAppError(ErrorTypeValidation, message, http.StatusBadRequest)
}

// NewInfrastructureError creates an infrastructure error
func NewInfrastructureError(message string) *AppError {
	return NewAppError(ErrorTypeInfrastructure, message, http.StatusInternalServerError)
}

// NewAuthenticationError creates an authentication error
func NewAuthenticationError(message string) *AppError {
	return NewAppError(ErrorTypeAuthentication, message, http.StatusUnauthorized)
}

// NewAuthorizationError creates an authorization error
func NewAuthorizationError(message string) *AppError {
	return NewAppError(ErrorTypeAuthorization, message, http.StatusForbidden).WithCode(CodePermissionDenied)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrorTypeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// NewConflictError creates a conflict error
func NewConflictError(message string) *AppError {
	return NewAppError(ErrorTypeConflict, message, http.StatusConflict).WithCode(CodeConstraint)
}

// NewInternalError creates an internal server error
func NewInternalError(message string) *AppError {
	return NewAppError(ErrorTypeInternal, message, http.StatusInternalServerError)
}

// BatchItemFailure describes one failed item of a bulk write.
type BatchItemFailure struct {
	Index int    `json:"index"`
	ID    string `json:"id,omitempty"`
	Err   error  `json:"-"`
}

// PartialBatchError reports a bulk write that completed for some items and failed for
// others. Completed lists the ids applied before the failure, in order.
type PartialBatchError struct {
	Collection string             `json:"collection"`
	Operation  string             `json:"operation"`
	Completed  []string           `json:"completed"`
	Failed     []BatchItemFailure `json:"failed"`
}

// Error implements the error interface
func (e *PartialBatchError) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		label := f.ID
		if label == "" {
			label = fmt.Sprintf("#%d", f.Index)
		}
		parts = append(parts, fmt.Sprintf("%s: %v", label, f.Err))
	}
	return fmt.Sprintf("%s on %q stopped after %d item(s); failed %s",
		e.Operation, e.Collection, len(e.Completed), strings.Join(parts, "; "))
}

// Unwrap exposes the individual item failures to errors.Is / errors.As.
func (e *PartialBatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, f := range e.Failed {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}

// ValidationError represents validation errors for multiple fields
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// ValidationErrors represents a collection of validation errors
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// Error implements the error interface
func (ve *ValidationErrors) Error() string {
	if len(ve.Errors) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", ve.Errors[0].Message)
}

// NewValidationErrors creates a new validation errors instance
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Errors: make([]ValidationError, 0),
	}
}

// Add adds a validation error
func (ve *ValidationErrors) Add(field, message string, value interface{}) *ValidationErrors {
	ve.Errors = append(ve.Errors, ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	})
	return ve
}

// HasErrors returns true if there are validation errors
func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Errors) > 0
}

// Messages returns the plain messages in insertion order
func (ve *ValidationErrors) Messages() []string {
	msgs := make([]string, 0, len(ve.Errors))
	for _, e := range ve.Errors {
		msgs = append(msgs, e.Message)
	}
	return msgs
}

// ToAppError converts validation errors to an AppError
func (ve *ValidationErrors) ToAppError() *AppError {
	if !ve.HasErrors() {
		return nil
	}

	appErr := NewValidationError(strings.Join(ve.Messages(), "; "))
	appErr.Details["validation_errors"] = ve.Errors
	return appErr
}

// Helper functions for common error scenarios

// WrapError wraps an error with context
func WrapError(err error, message string) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternalError(message).WithCause(err)
}

// TypeOf returns the ErrorType of the first AppError in err's chain, or "".
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// IsSchemaMismatch reports whether err is an unknown-column rejection.
func IsSchemaMismatch(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) && (appErr.Type == ErrorTypeSchemaMismatch || appErr.Code == CodeUnknownColumn) {
		return true
	}
	return errors.Is(err, ErrUnknownColumn)
}

// IsWriteFailure reports whether err is a rejected write.
func IsWriteFailure(err error) bool {
	return TypeOf(err) == ErrorTypeWriteFailure
}

// AsPartialBatch extracts a PartialBatchError from err's chain.
func AsPartialBatch(err error) (*PartialBatchError, bool) {
	var pb *PartialBatchError
	if errors.As(err, &pb) {
		return pb, true
	}
	return nil, false
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	if TypeOf(err) == ErrorTypeNotFound {
		return true
	}
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrRecordNotFound)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	if TypeOf(err) == ErrorTypeValidation {
		return true
	}
	var ve *ValidationErrors
	return errors.As(err, &ve)
}

// IsAuthentication checks if an error is an authentication error
func IsAuthentication(err error) bool {
	if TypeOf(err) == ErrorTypeAuthentication {
		return true
	}
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrTokenExpired)
}

// IsAuthorization checks if an error is an authorization error
func IsAuthorization(err error) bool {
	if TypeOf(err) == ErrorTypeAuthorization {
		return true
	}
	return errors.Is(err, ErrForbidden)
}

// HTTPStatus maps an error to the status code the HTTP adapter should answer with.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.HTTPCode != 0 {
		return appErr.HTTPCode
	}
	if _, ok := AsPartialBatch(err); ok {
		return http.StatusMultiStatus
	}
	return http.StatusInternalServerError
}
