package api

// BeginRequest starts a verification flow.
type BeginRequest struct {
	Kind     string `json:"kind"` // "signup" or "login"
	Email    string `json:"email"`
	Password string `json:"password"`
	StepRequest
}

// StepRequest carries the client signals re-sent on every flow call. The
// device identifier and hardware characteristics may also arrive as headers;
// body values win when both are present.
type StepRequest struct {
	FlowToken       string   `json:"flow_token,omitempty"`
	DeviceID        string   `json:"device_id,omitempty"`
	PersistentToken string   `json:"persistent_token,omitempty"`
	Latitude        *float64 `json:"latitude,omitempty"`
	Longitude       *float64 `json:"longitude,omitempty"`
}

// VerifyRequest submits a one-time code.
type VerifyRequest struct {
	Code string `json:"code"`
	StepRequest
}

// OutcomeResponse mirrors the flow outcome on the wire.
type OutcomeResponse struct {
	Status          string           `json:"status"`
	NextState       string           `json:"next_state"`
	Detail          string           `json:"detail,omitempty"`
	ErrorCode       string           `json:"error_code,omitempty"`
	FlowToken       string           `json:"flow_token,omitempty"`
	Security        *SecurityPayload `json:"security,omitempty"`
	CompletionToken string           `json:"completion_token,omitempty"`
}

// SecurityPayload is the aggregated score block on a completed flow.
type SecurityPayload struct {
	Score           int      `json:"score"`
	Tier            string   `json:"tier"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// EnrollTotpResponse carries the provisioning URL for an authenticator app.
type EnrollTotpResponse struct {
	OtpauthURL string `json:"otpauth_url"`
}

// StateResponse reports the current flow state.
type StateResponse struct {
	State string `json:"state"`
}

// ErrorResponse is the error envelope for all endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}
