package verifyflow

import (
	"github.com/verifid/verifid/pkg/deviceid"
	"github.com/verifid/verifid/pkg/geoip"
	"github.com/verifid/verifid/pkg/secscore"
	"github.com/verifid/verifid/pkg/verrors"
)

// State identifies where a verification flow stands. It is re-derived from
// persisted events on every call, never held in server memory.
type State string

const (
	StateCredentialsPending   State = "CREDENTIALS_PENDING"
	StateDeviceCheck          State = "DEVICE_CHECK"
	StateOtpChallenge         State = "OTP_CHALLENGE"
	StateLocationCheck        State = "LOCATION_CHECK"
	StateLocationOtpChallenge State = "LOCATION_OTP_CHALLENGE"
	StateComplete             State = "COMPLETE"
	StateAborted              State = "ABORTED"
)

// Kind distinguishes a signup verification from a login verification. The
// two share the same state machine; only the completion event differs.
type Kind string

const (
	KindSignup Kind = "signup"
	KindLogin  Kind = "login"
)

// ParseKind validates a kind string from an untrusted source.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindSignup, KindLogin:
		return Kind(s), nil
	default:
		return "", verrors.InvalidInput("kind", "must be signup or login")
	}
}

// Status is the discriminator on every step outcome.
type Status string

const (
	StatusAdvance           Status = "advance"
	StatusChallengeRequired Status = "challenge_required"
	StatusFailed            Status = "failed"
)

// Request carries the client inputs for one verification step. Fields that
// do not apply to the step being executed are left zero.
type Request struct {
	// Kind selects signup or login semantics. Required on the first call.
	Kind Kind

	// Credentials, consumed by the first step only.
	Email    string
	Password string

	// FlowToken is the signed continuation handed back by the previous
	// step. Required on every call after the first.
	FlowToken string

	// Device and location signals, re-sent on every call.
	ClientIP        string
	DeviceRawID     string
	Hardware        *deviceid.HardwareProfile
	PersistentToken string
	Coordinates     *geoip.Coordinates

	// Code is the one-time code being verified, when applicable.
	Code string
}

// Outcome is the discriminated result of one verification step.
type Outcome struct {
	Status    Status       `json:"status"`
	NextState State        `json:"next_state"`
	Detail    string       `json:"detail,omitempty"`
	ErrorCode verrors.Code `json:"error_code,omitempty"`

	// FlowToken continues the flow. Empty once the flow is terminal.
	FlowToken string `json:"flow_token,omitempty"`

	// Set only when the flow reaches COMPLETE.
	Security        *secscore.Result `json:"security,omitempty"`
	CompletionToken string           `json:"completion_token,omitempty"`
}

func failedOutcome(state State, detail string) *Outcome {
	return &Outcome{Status: StatusFailed, NextState: state, Detail: detail}
}
