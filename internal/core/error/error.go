package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
	// ConsentRequiredMessage is shown when an action is attempted before consent.
	ConsentRequiredMessage = "consent is required before talking to the assistant"
	// EmptyInputMessage describes a blank submission.
	EmptyInputMessage = "message is empty"
	// BackendErrorMessage describes a failed reasoning backend call.
	BackendErrorMessage = "reasoning backend call failed"
	// RecognitionErrorMessage describes a failed speech capture.
	RecognitionErrorMessage = "speech recognition failed"
	// NotFoundMessage describes a missing resource.
	NotFoundMessage = "resource not found"
	// InvalidInputMessage describes a malformed request value.
	InvalidInputMessage = "invalid input"
)

// Kind classifies an AppError for callers that branch on failure type.
type Kind string

const (
	KindInternal        Kind = "internal"
	KindRedis           Kind = "redis"
	KindNotFound        Kind = "not_found"
	KindConsentRequired Kind = "consent_required"
	KindEmptyInput      Kind = "empty_input"
	KindBackend         Kind = "backend"
	KindRecognition     Kind = "recognition"
	KindInvalidInput    Kind = "invalid_input"
)

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Message string
	Kind    Kind
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
		Kind:    KindInternal,
	}
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}

// ConsentRequired is returned when a session tries to talk to the assistant
// before the consent gate was opened.
func ConsentRequired(notice string) *AppError {
	msg := ConsentRequiredMessage
	if notice != "" {
		msg = notice
	}
	return &AppError{Status: http.StatusForbidden, Message: msg, Kind: KindConsentRequired}
}

// EmptyInput is returned for blank submissions. Callers absorb it.
func EmptyInput() *AppError {
	return &AppError{Status: http.StatusBadRequest, Message: EmptyInputMessage, Kind: KindEmptyInput}
}

// Backend wraps a reasoning backend failure. A zero status means the backend
// gave none (transport failure, empty body) and maps to 502.
func Backend(err error, status int, message string) *AppError {
	if status < 400 {
		status = http.StatusBadGateway
	}
	if message == "" {
		message = BackendErrorMessage
	}
	return &AppError{Err: err, Status: status, Message: message, Kind: KindBackend}
}

// Recognition wraps a speech capture failure.
func Recognition(err error) *AppError {
	return &AppError{Err: err, Status: http.StatusUnprocessableEntity, Message: RecognitionErrorMessage, Kind: KindRecognition}
}

// NotFound reports a missing session, complaint or contact.
func NotFound(what string) *AppError {
	msg := NotFoundMessage
	if what != "" {
		msg = what + " not found"
	}
	return &AppError{Status: http.StatusNotFound, Message: msg, Kind: KindNotFound}
}

// InvalidInput rejects a request value, e.g. an unknown complaint status.
func InvalidInput(message string) *AppError {
	if message == "" {
		message = InvalidInputMessage
	}
	return &AppError{Status: http.StatusBadRequest, Message: message, Kind: KindInvalidInput}
}

// KindOf returns the Kind of the first AppError in the chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries an AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// StatusOf returns the HTTP status carried by err, defaulting to 500.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	return http.StatusInternalServerError
}
