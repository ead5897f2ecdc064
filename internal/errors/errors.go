// Package errors provides the domain error types shared by the API surface
// and the optimization engine. Every error carries a stable code, an HTTP
// status, and an optional details map that is rendered into the error
// envelope by the HTTP layer.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned in the "error" field of the response envelope.
const (
	CodeConfiguration      = "CONFIGURATION_ERROR"
	CodeLLMProvider        = "LLM_PROVIDER_ERROR"
	CodePromptOptimization = "PROMPT_OPTIMIZATION_ERROR"
	CodeInjectionDetected  = "PROMPT_INJECTION_DETECTED"
	CodeTemplateNotFound   = "TEMPLATE_NOT_FOUND"
	CodeValidation         = "VALIDATION_ERROR"
	CodeGuardrailViolation = "GUARDRAIL_VIOLATION"
	CodeUnknown            = "UNKNOWN_ERROR"
)

// Error is the service error type. It satisfies the error interface and is
// inspected by the HTTP layer to pick a status code and envelope fields.
type Error struct {
	Code       string
	Message    string
	StatusCode int
	Details    map[string]interface{}
	cause      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// WithDetail adds a single key to the details map.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = map[string]interface{}{}
	}
	e.Details[key] = value
	return e
}

// WithCause records the underlying error for errors.Is / errors.As chains.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// New creates an error with an explicit code and status.
func New(code, message string, status int) *Error {
	return &Error{Code: code, Message: message, StatusCode: status}
}

// NewConfiguration reports a missing or inconsistent configuration value.
func NewConfiguration(message string) *Error {
	return New(CodeConfiguration, message, http.StatusInternalServerError)
}

// NewProvider reports a failure from a named LLM provider.
func NewProvider(provider, message string) *Error {
	e := New(CodeLLMProvider, message, http.StatusServiceUnavailable)
	return e.WithDetail("provider", provider)
}

// NewOptimization reports an invalid or failed optimization request.
func NewOptimization(message string) *Error {
	return New(CodePromptOptimization, message, http.StatusUnprocessableEntity)
}

// NewInjectionDetected reports a strict-mode injection refusal.
func NewInjectionDetected(message string) *Error {
	return New(CodeInjectionDetected, message, http.StatusBadRequest)
}

// NewTemplateNotFound reports a missing template row.
func NewTemplateNotFound(templateID string) *Error {
	e := New(CodeTemplateNotFound, fmt.Sprintf("Template with ID '%s' not found", templateID), http.StatusNotFound)
	return e.WithDetail("template_id", templateID)
}

// NewValidation reports a request shape or value violation.
func NewValidation(message, field string) *Error {
	e := New(CodeValidation, message, http.StatusUnprocessableEntity)
	if field != "" {
		e.WithDetail("field", field)
	}
	return e
}

// NewGuardrailViolation reports a guardrail refusal with the violation list.
func NewGuardrailViolation(message string, violations interface{}) *Error {
	e := New(CodeGuardrailViolation, message, http.StatusBadRequest)
	return e.WithDetail("violations", violations)
}

// NewJobNotFound reports an unknown optimization job id.
func NewJobNotFound(jobID string) *Error {
	e := New(CodePromptOptimization, fmt.Sprintf("Optimization job '%s' not found", jobID), http.StatusNotFound)
	return e.WithDetail("job_id", jobID)
}

// AsError extracts a *Error from an error chain, wrapping unknown errors
// into a 500 envelope so handlers always have a code and status to render.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{
		Code:       CodeUnknown,
		Message:    err.Error(),
		StatusCode: http.StatusInternalServerError,
		cause:      err,
	}
}

// IsCode reports whether err carries the given error code.
func IsCode(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
