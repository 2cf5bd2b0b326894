package core

import (
	"errors"
	"fmt"

	"github.com/vango-go/vai-studio/pkg/core/types"
)

// Error is the canonical error returned by the router, the adapters and the
// live controller.
type Error struct {
	Type       ErrorType          `json:"type"`
	Message    string             `json:"message"`
	Param      string             `json:"param,omitempty"`
	Operation  types.Operation    `json:"operation,omitempty"`
	Provider   types.ProviderKind `json:"provider,omitempty"`
	StatusCode int                `json:"status_code,omitempty"`
	Body       string             `json:"body,omitempty"`
	RequestID  string             `json:"request_id,omitempty"`

	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status: %d)", e.Type, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorType categorizes errors.
type ErrorType string

const (
	ErrUnsupportedOperation ErrorType = "unsupported_operation"
	ErrTransport            ErrorType = "transport_error"
	ErrPermission           ErrorType = "permission_error"
	ErrConfiguration        ErrorType = "configuration_error"
	ErrValidation           ErrorType = "validation_error"
	ErrAPI                  ErrorType = "api_error"

	// Produced only by the studio gateway.
	ErrRateLimit ErrorType = "rate_limit_error"
	ErrNotFound  ErrorType = "not_found_error"
)

// NewUnsupportedOperationError reports that provider cannot serve op.
func NewUnsupportedOperationError(op types.Operation, provider types.ProviderKind) *Error {
	return &Error{
		Type:      ErrUnsupportedOperation,
		Message:   fmt.Sprintf("%s is not supported by provider %q", op, provider),
		Operation: op,
		Provider:  provider,
	}
}

// NewTransportError wraps a failed provider call. status and body are
// carried verbatim when the endpoint answered.
func NewTransportError(provider types.ProviderKind, op types.Operation, status int, body string, err error) *Error {
	msg := body
	switch {
	case status != 0:
		msg = fmt.Sprintf("%s API error (%d): %s", provider, status, body)
	case err != nil:
		msg = fmt.Sprintf("%s: %v", provider, err)
	}
	return &Error{
		Type:       ErrTransport,
		Message:    msg,
		Operation:  op,
		Provider:   provider,
		StatusCode: status,
		Body:       body,
		Err:        err,
	}
}

// NewPermissionError creates a permission error.
func NewPermissionError(message string, err error) *Error {
	return &Error{
		Type:    ErrPermission,
		Message: message,
		Err:     err,
	}
}

// NewConfigurationError creates a configuration error for param.
func NewConfigurationError(message, param string) *Error {
	return &Error{
		Type:    ErrConfiguration,
		Message: message,
		Param:   param,
	}
}

// NewValidationError creates a validation error for param.
func NewValidationError(message, param string) *Error {
	return &Error{
		Type:    ErrValidation,
		Message: message,
		Param:   param,
	}
}

// NewAPIError creates a generic API error.
func NewAPIError(message string) *Error {
	return &Error{
		Type:    ErrAPI,
		Message: message,
	}
}

// AsError extracts a canonical *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e, true
	}
	return nil, false
}

// IsType reports whether err carries a canonical error of type t.
func IsType(err error, t ErrorType) bool {
	e, ok := AsError(err)
	return ok && e.Type == t
}

// IsUnsupported reports whether err is an unsupported operation error.
func IsUnsupported(err error) bool { return IsType(err, ErrUnsupportedOperation) }

// IsTransport reports whether err is a transport error.
func IsTransport(err error) bool { return IsType(err, ErrTransport) }
