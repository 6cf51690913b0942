package verrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of verification failure.
type Code string

const (
	// CodeInputInvalid covers malformed emails, codes, and device payloads.
	// Always recoverable; callers get retry guidance.
	CodeInputInvalid Code = "INPUT_INVALID"

	// CodeCredentialFailure is terminal for a verification flow. The message
	// is deliberately generic to avoid user enumeration.
	CodeCredentialFailure Code = "CREDENTIAL_FAILURE"

	// CodeChallengeExpiredOrWrong covers expired, consumed, superseded, and
	// simply wrong one-time codes. Recoverable via resend or retry.
	CodeChallengeExpiredOrWrong Code = "CHALLENGE_EXPIRED_OR_WRONG"

	// CodeUpstreamUnavailable covers unreachable collaborators: the account
	// directory, the notifier, or the geolocation provider.
	CodeUpstreamUnavailable Code = "UPSTREAM_UNAVAILABLE"

	// CodeRateLimited signals the caller exhausted a resend or retry budget.
	CodeRateLimited Code = "RATE_LIMITED"

	// CodeInternal is the fallback for unexpected conditions. The detail is
	// logged server-side and never surfaced to the end user.
	CodeInternal Code = "INTERNAL_ERROR"
)

// Error is a coded error carried between the verification components and the
// web layer. Domain "no" answers (wrong code, unrecognized device) are plain
// return values, not Errors.
type Error struct {
	Code    Code
	Message string
	Hint    string // next-action hint surfaced to the end user
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithHint attaches a next-action hint for the end user.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// HTTPStatusCode maps the error code to an HTTP status.
func (e *Error) HTTPStatusCode() int {
	switch e.Code {
	case CodeInputInvalid:
		return http.StatusBadRequest
	case CodeCredentialFailure, CodeChallengeExpiredOrWrong:
		return http.StatusUnauthorized
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeUpstreamUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an underlying error with a code and message. Returns nil when
// err is nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the code from an error, defaulting to CodeInternal for
// errors produced outside this package.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Common constructors.

// InvalidInput creates an input-validation error with a retry hint.
func InvalidInput(field, reason string) *Error {
	return Newf(CodeInputInvalid, "invalid %s: %s", field, reason).
		WithHint("correct the input and try again")
}

// CredentialFailure creates the generic credential-rejection error.
func CredentialFailure() *Error {
	return New(CodeCredentialFailure, "email or password is wrong").
		WithHint("check your email and password, or reset your password")
}

// ChallengeRejected creates the generic code-rejection error.
func ChallengeRejected() *Error {
	return New(CodeChallengeExpiredOrWrong, "verification code is wrong or has expired").
		WithHint("re-enter the code or request a new one")
}

// UpstreamUnavailable wraps an unreachable-dependency error.
func UpstreamUnavailable(err error, dependency string) *Error {
	return Wrap(err, CodeUpstreamUnavailable, fmt.Sprintf("%s is unavailable", dependency)).
		WithHint("try again later")
}

// RateLimited creates a budget-exhausted error.
func RateLimited(what string) *Error {
	return Newf(CodeRateLimited, "too many %s requests", what).
		WithHint("wait a few minutes before trying again")
}

// Internal wraps an unexpected error without leaking detail to the user.
func Internal(err error) *Error {
	return Wrap(err, CodeInternal, "unexpected error").WithHint("try again later")
}
