package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCode represents a structured error code
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigInvalid ErrorCode = "CONFIG_INVALID"

	// Backend errors
	ErrCodeRemoteCall     ErrorCode = "REMOTE_CALL"
	ErrCodeNoRowsAffected ErrorCode = "NO_ROWS_AFFECTED"
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"

	// Session errors
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// Input errors
	ErrCodeValidation           ErrorCode = "VALIDATION"
	ErrCodeConfirmationRequired ErrorCode = "CONFIRMATION_REQUIRED"

	// Generic errors
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// Error represents a structured festival-site error
type Error struct {
	Code        ErrorCode
	Message     string
	Underlying  error
	Context     map[string]any
	UserMessage string
	Remediation []string
}

// New creates a new structured error
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// Wrap wraps an existing error with a code and message
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:       code,
		Message:    message,
		Underlying: err,
		Context:    make(map[string]any),
	}
}

// WithContext adds context key-value pairs to the error
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithUserMessage sets the human-friendly message shown in pages.
func (e *Error) WithUserMessage(message string) *Error {
	e.UserMessage = message
	return e
}

// WithRemediation replaces the remediation tips for the error.
func (e *Error) WithRemediation(tips ...string) *Error {
	if len(tips) == 0 {
		return e
	}
	e.Remediation = append([]string{}, tips...)
	return e
}

// Error implements the error interface
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString(" {")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s: %v", k, e.Context[k]))
		}
		sb.WriteString("}")
	}

	if e.Underlying != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Underlying))
	}
	return sb.String()
}

// Unwrap returns the underlying error for errors.Is/As
func (e *Error) Unwrap() error {
	return e.Underlying
}

// Display returns the text shown to a site visitor or admin. Remote failures
// carry the raw remote message appended after the user message.
func (e *Error) Display() string {
	msg := e.UserMessage
	if msg == "" {
		msg = e.Message
	}
	if e.Code == ErrCodeRemoteCall && e.Underlying != nil {
		msg = msg + ": " + e.Underlying.Error()
	}
	return msg
}

// As extracts a structured error from an error chain.
func As(err error) (*Error, bool) {
	var target *Error
	if stderrors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// IsCode checks if an error chain carries a specific error code
func IsCode(err error, code ErrorCode) bool {
	e, ok := As(err)
	return ok && e.Code == code
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}
	e, ok := As(err)
	if !ok {
		return ErrCodeInternal
	}
	return e.Code
}

// UserText renders any error for display: structured errors use Display,
// everything else falls back to fallback + raw message.
func UserText(err error, fallback string) string {
	if err == nil {
		return ""
	}
	if e, ok := As(err); ok {
		return e.Display()
	}
	if fallback == "" {
		return err.Error()
	}
	return fallback + ": " + err.Error()
}

// Remote wraps a failed backend call.
func Remote(err error, userMessage string) *Error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		return e
	}
	return Wrap(err, ErrCodeRemoteCall, "remote call failed").WithUserMessage(userMessage)
}

// Validation builds an input validation error with a user-facing message.
func Validation(message string) *Error {
	return New(ErrCodeValidation, message).WithUserMessage(message)
}

// Unauthorized builds a session failure error.
func Unauthorized(message string) *Error {
	return New(ErrCodeUnauthorized, message).WithUserMessage(message)
}

// NoRowsAffectedMessage is shown when an update silently matched nothing.
const NoRowsAffectedMessage = "Update did not affect any rows. This is likely due to row-level security (RLS) permission policies blocking the update."

// NoRowsAffected builds the diagnosed error for updates that matched zero rows.
func NoRowsAffected(collection, id string) *Error {
	return New(ErrCodeNoRowsAffected, "update affected zero rows").
		WithContext("collection", collection).
		WithContext("id", id).
		WithUserMessage(NoRowsAffectedMessage).
		WithRemediation(
			"Check the row-level security policies on the "+collection+" table allow UPDATE for authenticated users.",
			"Apply scripts/fix_rls_policies.sql in the hosted database SQL editor.",
		)
}
