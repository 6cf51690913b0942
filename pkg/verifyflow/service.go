package verifyflow

import (
	"context"
	"errors"
	"log/slog"

	"github.com/verifid/verifid/pkg/ledger"
	"github.com/verifid/verifid/pkg/otp"
	"github.com/verifid/verifid/pkg/totp"
	"github.com/verifid/verifid/pkg/verrors"
)

// Service exposes the verification flow as idempotent operations, one per
// inbound call. Each operation reconstructs the flow state from persisted
// events, runs the step pipeline forward, and returns a discriminated
// outcome; no flow state survives in memory between calls.
type Service struct {
	deps     *Dependencies
	executor *FlowExecutor
}

// NewService builds the default flow: credential check, device resolution,
// device check, location check, completion.
func NewService(deps *Dependencies) *Service {
	executor := NewFlowBuilder().
		AddStep(NewCredentialCheckStep()).
		AddStep(NewDeviceResolutionStep()).
		AddStep(NewDeviceCheckStep()).
		AddStep(NewLocationCheckStep()).
		AddStep(NewCompletionStep()).
		Build(deps)
	return &Service{deps: deps, executor: executor}
}

// BeginCredentialCheck starts a flow: it verifies credentials and runs the
// pipeline as far as the signals allow, possibly all the way to COMPLETE
// when no challenge is needed.
func (s *Service) BeginCredentialCheck(ctx context.Context, req Request) (*Outcome, error) {
	kind, err := ParseKind(string(req.Kind))
	if err != nil {
		return nil, err
	}

	flowContext := &FlowContext{
		Request:  req,
		Kind:     kind,
		Snapshot: &Snapshot{Kind: kind},
	}
	outcome, err := s.executor.Execute(ctx, flowContext)
	if err != nil {
		return nil, err
	}
	return s.withFlowToken(flowContext, outcome)
}

// CheckDevice re-runs the pipeline for an in-progress flow. It is the entry
// point a client calls after supplying fresh device signals.
func (s *Service) CheckDevice(ctx context.Context, req Request) (*Outcome, error) {
	flowContext, err := s.resume(ctx, req)
	if err != nil {
		return nil, err
	}
	if terminal := terminalOutcome(flowContext.Snapshot); terminal != nil {
		return terminal, nil
	}

	outcome, err := s.executor.Execute(ctx, flowContext)
	if err != nil {
		return nil, err
	}
	return s.withFlowToken(flowContext, outcome)
}

// ChallengeOtp re-sends the code for the challenge the flow is currently
// waiting on. Issuing supersedes the prior code.
func (s *Service) ChallengeOtp(ctx context.Context, req Request) (*Outcome, error) {
	flowContext, err := s.resume(ctx, req)
	if err != nil {
		return nil, err
	}

	state, err := DeriveState(ctx, s.deps.OtpService, flowContext.Snapshot)
	if err != nil {
		return nil, verrors.Internal(err)
	}

	purpose, nextState, ok := challengeForState(state)
	if !ok {
		return failedOutcome(state, "no challenge is expected in the current state"), nil
	}

	if _, err := s.deps.OtpService.Issue(ctx, purpose, flowContext.Snapshot.Subject); err != nil {
		switch {
		case errors.Is(err, otp.ErrDeliveryFailed):
			slog.Error("Challenge resend delivery failed", "purpose", purpose, "flowID", flowContext.FlowID, "error", err)
		case errors.Is(err, otp.ErrResendLimitExceeded):
			return nil, verrors.RateLimited("verification code")
		default:
			return nil, verrors.UpstreamUnavailable(err, "challenge service")
		}
	}

	outcome := &Outcome{
		Status:    StatusChallengeRequired,
		NextState: nextState,
		Detail:    "a new verification code was sent",
	}
	return s.withFlowToken(flowContext, outcome)
}

// VerifyOtp validates the device-purpose code and, on success, advances the
// flow as far as it can go.
func (s *Service) VerifyOtp(ctx context.Context, req Request) (*Outcome, error) {
	return s.verifyChallenge(ctx, req, otp.PurposeDevice, StateOtpChallenge)
}

// CheckLocation re-runs the pipeline, which assesses the current location
// once the device factor is settled.
func (s *Service) CheckLocation(ctx context.Context, req Request) (*Outcome, error) {
	return s.CheckDevice(ctx, req)
}

// VerifyLocationOtp validates the location-purpose code and, on success,
// advances the flow to COMPLETE.
func (s *Service) VerifyLocationOtp(ctx context.Context, req Request) (*Outcome, error) {
	return s.verifyChallenge(ctx, req, otp.PurposeLocation, StateLocationOtpChallenge)
}

// EnrollTotp provisions an authenticator app for the subject of an
// in-progress flow and returns the otpauth URL. The enrollment persists
// beyond the flow.
func (s *Service) EnrollTotp(ctx context.Context, req Request) (string, error) {
	if s.deps.TotpService == nil {
		return "", verrors.New(verrors.CodeInputInvalid, "authenticator enrollment is not available")
	}

	flowContext, err := s.resume(ctx, req)
	if err != nil {
		return "", err
	}

	url, err := s.deps.TotpService.Enroll(ctx, flowContext.SubjectUserID)
	if err != nil {
		return "", verrors.UpstreamUnavailable(err, "authenticator service")
	}
	return url, nil
}

// State reports where the flow currently stands, re-derived from events.
func (s *Service) State(ctx context.Context, req Request) (State, error) {
	flowContext, err := s.resume(ctx, req)
	if err != nil {
		return "", err
	}
	state, err := DeriveState(ctx, s.deps.OtpService, flowContext.Snapshot)
	if err != nil {
		return "", verrors.Internal(err)
	}
	return state, nil
}

func (s *Service) verifyChallenge(ctx context.Context, req Request, purpose otp.Purpose, challengeState State) (*Outcome, error) {
	flowContext, err := s.resume(ctx, req)
	if err != nil {
		return nil, err
	}
	if terminal := terminalOutcome(flowContext.Snapshot); terminal != nil {
		return terminal, nil
	}
	if req.Code == "" {
		return nil, verrors.InvalidInput("code", "verification code is required")
	}

	valid, err := s.deps.OtpService.Validate(ctx, purpose, flowContext.Snapshot.Subject, req.Code)
	if err != nil {
		return nil, verrors.UpstreamUnavailable(err, "challenge service")
	}
	if !valid && s.deps.TotpService != nil {
		// An enrolled authenticator app stands in for the emailed code.
		passed, totpErr := s.deps.TotpService.Validate(ctx, flowContext.SubjectUserID, req.Code)
		if totpErr != nil && !errors.Is(totpErr, totp.ErrSecretNotFound) {
			return nil, verrors.UpstreamUnavailable(totpErr, "authenticator service")
		}
		valid = passed
	}
	if !valid {
		rejected := verrors.ChallengeRejected()
		outcome := failedOutcome(challengeState, rejected.Message+"; "+rejected.Hint)
		outcome.ErrorCode = rejected.Code
		return s.withFlowToken(flowContext, outcome)
	}

	if err := s.recordChallengePassed(ctx, flowContext, purpose); err != nil {
		return nil, verrors.UpstreamUnavailable(err, "event store")
	}

	// Continue the pipeline with the updated snapshot.
	outcome, err := s.executor.Execute(ctx, flowContext)
	if err != nil {
		return nil, err
	}
	return s.withFlowToken(flowContext, outcome)
}

func (s *Service) recordChallengePassed(ctx context.Context, flowContext *FlowContext, purpose otp.Purpose) error {
	var event ledger.Event
	var err error
	switch purpose {
	case otp.PurposeLocation:
		sample := s.deps.LocationService.Resolve(ctx, flowContext.Request.ClientIP, flowContext.Request.Coordinates)
		event, err = ledger.NewEvent(flowContext.SubjectUserID, ledger.EventLocationVerification, LocationVerificationEvent{
			FlowID: flowContext.FlowID,
			Sample: sample,
		})
		flowContext.Snapshot.LocationVerified = true
	default:
		event, err = ledger.NewEvent(flowContext.SubjectUserID, ledger.EventDeviceVerification, DeviceVerificationEvent{
			FlowID:      flowContext.FlowID,
			DeviceRawID: flowContext.Request.DeviceRawID,
		})
		flowContext.Snapshot.DeviceVerified = true
	}
	if err != nil {
		return err
	}
	return s.deps.Events.Append(ctx, event)
}

// resume validates the continuation token and reconstructs the flow state.
func (s *Service) resume(ctx context.Context, req Request) (*FlowContext, error) {
	if req.FlowToken == "" {
		return nil, verrors.InvalidInput("flow_token", "continuation token is required")
	}

	claims, err := s.deps.FlowTokens.ParseFlowToken(req.FlowToken)
	if err != nil {
		return nil, verrors.Wrap(err, verrors.CodeInputInvalid, "flow token is invalid or expired").
			WithHint("start the verification flow again")
	}

	snapshot, err := LoadSnapshot(ctx, s.deps.Events, claims.Subject, claims.FlowID)
	if err != nil {
		return nil, verrors.UpstreamUnavailable(err, "event store")
	}
	if !snapshot.CredentialsVerified {
		return nil, verrors.New(verrors.CodeInputInvalid, "no verification flow in progress").
			WithHint("start the verification flow again")
	}

	return &FlowContext{
		Request:       req,
		Kind:          snapshot.Kind,
		FlowID:        claims.FlowID,
		SubjectUserID: claims.Subject,
		Snapshot:      snapshot,
	}, nil
}

// withFlowToken attaches a fresh continuation token to non-terminal
// outcomes.
func (s *Service) withFlowToken(flowContext *FlowContext, outcome *Outcome) (*Outcome, error) {
	if outcome.NextState == StateComplete || outcome.NextState == StateAborted {
		return outcome, nil
	}

	flowToken, err := s.deps.FlowTokens.GenerateFlowToken(flowContext.SubjectUserID, flowContext.FlowID, string(flowContext.Kind))
	if err != nil {
		return nil, verrors.Internal(err)
	}
	outcome.FlowToken = flowToken
	return outcome, nil
}

func terminalOutcome(snapshot *Snapshot) *Outcome {
	if snapshot.Completed {
		return &Outcome{
			Status:    StatusAdvance,
			NextState: StateComplete,
			Detail:    "verification already complete",
		}
	}
	return nil
}

func challengeForState(state State) (otp.Purpose, State, bool) {
	switch state {
	case StateOtpChallenge, StateDeviceCheck:
		return otp.PurposeDevice, StateOtpChallenge, true
	case StateLocationOtpChallenge, StateLocationCheck:
		return otp.PurposeLocation, StateLocationOtpChallenge, true
	default:
		return "", state, false
	}
}
