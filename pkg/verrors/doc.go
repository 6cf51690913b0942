// Package verrors provides structured error handling with error codes for
// the verification engine.
//
// Every failure a caller can act on carries a Code, a user-facing message,
// and a recovery hint. Codes map to HTTP status codes at the API boundary,
// so handlers never invent status codes of their own.
//
//	err := verrors.InvalidInput("code", "verification code is required")
//	err := verrors.Wrap(dbErr, verrors.CodeUpstreamUnavailable, "event store")
package verrors
