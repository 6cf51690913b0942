package verifyflow

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/verifid/verifid/pkg/deviceid"
	"github.com/verifid/verifid/pkg/directory"
	"github.com/verifid/verifid/pkg/ledger"
	"github.com/verifid/verifid/pkg/otp"
	"github.com/verifid/verifid/pkg/secscore"
	"github.com/verifid/verifid/pkg/utils"
	"github.com/verifid/verifid/pkg/verrors"
)

// CredentialCheckStep confirms the email/password pair with the account
// directory. Failure here is terminal: no later factor can bypass it.
type CredentialCheckStep struct{}

func NewCredentialCheckStep() *CredentialCheckStep {
	return &CredentialCheckStep{}
}

func (s *CredentialCheckStep) Name() string {
	return "credential_check"
}

func (s *CredentialCheckStep) Order() int {
	return OrderCredentialCheck
}

func (s *CredentialCheckStep) ShouldSkip(ctx context.Context, flowContext *FlowContext) bool {
	return flowContext.Snapshot.CredentialsVerified
}

func (s *CredentialCheckStep) Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error) {
	if flowContext.Request.Email == "" || flowContext.Request.Password == "" {
		return &StepResult{
			Error: verrors.InvalidInput("credentials", "email and password are required"),
		}, nil
	}

	profile, err := flowContext.Services.Directory.VerifyCredentials(ctx, flowContext.Request.Email, flowContext.Request.Password)
	if err != nil {
		if errors.Is(err, directory.ErrCredentialsInvalid) {
			slog.Warn("Credential check failed", "email", utils.MaskEmail(flowContext.Request.Email))
			credErr := verrors.CredentialFailure()
			flowContext.Outcome.Status = StatusFailed
			flowContext.Outcome.NextState = StateAborted
			flowContext.Outcome.Detail = credErr.Message + "; " + credErr.Hint
			flowContext.Outcome.ErrorCode = credErr.Code
			return &StepResult{EarlyReturn: true}, nil
		}
		return &StepResult{
			Error: verrors.UpstreamUnavailable(err, "account directory"),
		}, nil
	}

	flowContext.Profile = profile
	flowContext.SubjectUserID = profile.UserID
	if flowContext.FlowID == "" {
		flowContext.FlowID = uuid.New().String()
	}

	subject := utils.NormalizeSubject(profile.Email)
	event, err := ledger.NewEvent(profile.UserID, ledger.EventCredentialsVerified, CredentialsVerifiedEvent{
		FlowID:  flowContext.FlowID,
		Kind:    flowContext.Kind,
		Subject: subject,
	})
	if err != nil {
		return nil, err
	}
	if err := flowContext.Services.Events.Append(ctx, event); err != nil {
		return &StepResult{
			Error: verrors.UpstreamUnavailable(err, "event store"),
		}, nil
	}

	flowContext.Snapshot.CredentialsVerified = true
	flowContext.Snapshot.Subject = subject
	flowContext.Snapshot.Kind = flowContext.Kind
	slog.Info("Credentials verified", "subject", profile.UserID, "flowID", flowContext.FlowID, "kind", flowContext.Kind)
	return &StepResult{Continue: true}, nil
}

// DeviceResolutionStep derives the observed device identity from the
// client-supplied signals. It never fails: malformed input degrades to an
// unknown identity that matches nothing.
type DeviceResolutionStep struct{}

func NewDeviceResolutionStep() *DeviceResolutionStep {
	return &DeviceResolutionStep{}
}

func (s *DeviceResolutionStep) Name() string {
	return "device_resolution"
}

func (s *DeviceResolutionStep) Order() int {
	return OrderDeviceResolution
}

func (s *DeviceResolutionStep) ShouldSkip(ctx context.Context, flowContext *FlowContext) bool {
	return false
}

func (s *DeviceResolutionStep) Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error) {
	if flowContext.Request.DeviceRawID != "" {
		flowContext.ObservedDevice = deviceid.Parse(flowContext.Request.DeviceRawID)
		return &StepResult{Continue: true}, nil
	}

	var hw deviceid.HardwareProfile
	if flowContext.Request.Hardware != nil {
		hw = *flowContext.Request.Hardware
	}
	flowContext.ObservedDevice = deviceid.DeriveHybrid(flowContext.Request.ClientIP, hw, flowContext.Request.PersistentToken)
	return &StepResult{Continue: true}, nil
}

// DeviceCheckStep decides whether the observed device matches the one stored
// from the subject's prior completed flow or a standing trust grant. A
// mismatch demands a device-purpose code.
type DeviceCheckStep struct{}

func NewDeviceCheckStep() *DeviceCheckStep {
	return &DeviceCheckStep{}
}

func (s *DeviceCheckStep) Name() string {
	return "device_check"
}

func (s *DeviceCheckStep) Order() int {
	return OrderDeviceCheck
}

func (s *DeviceCheckStep) ShouldSkip(ctx context.Context, flowContext *FlowContext) bool {
	return false
}

func (s *DeviceCheckStep) Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error) {
	if flowContext.Snapshot.DeviceVerified {
		// The device-purpose code was already validated within this flow.
		flowContext.Factors.TrustedDevice = true
		flowContext.Factors.AdditionalVerification = true
		return &StepResult{Continue: true}, nil
	}

	trusted, err := flowContext.Services.DeviceService.IsTrusted(ctx, flowContext.SubjectUserID, flowContext.ObservedDevice)
	if err != nil {
		return nil, err
	}

	if !trusted {
		priorRawID, err := PriorDevice(ctx, flowContext.Services.Events, flowContext.SubjectUserID)
		if err != nil {
			return nil, err
		}
		if priorRawID != "" {
			matcher := flowContext.Services.DeviceService.Matcher()
			trusted = matcher.SameDevice(deviceid.Parse(priorRawID), flowContext.ObservedDevice)
		}
	}

	if trusted {
		slog.Info("Device recognized, skipping challenge", "subject", flowContext.SubjectUserID, "flowID", flowContext.FlowID)
		flowContext.DeviceTrusted = true
		flowContext.Factors.TrustedDevice = true
		return &StepResult{Continue: true}, nil
	}

	return issueChallenge(ctx, flowContext, otp.PurposeDevice, StateOtpChallenge)
}

// LocationCheckStep resolves and scores the attempt location. A risky
// location demands a location-purpose code.
type LocationCheckStep struct{}

func NewLocationCheckStep() *LocationCheckStep {
	return &LocationCheckStep{}
}

func (s *LocationCheckStep) Name() string {
	return "location_check"
}

func (s *LocationCheckStep) Order() int {
	return OrderLocationCheck
}

func (s *LocationCheckStep) ShouldSkip(ctx context.Context, flowContext *FlowContext) bool {
	return false
}

func (s *LocationCheckStep) Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error) {
	sample := flowContext.Services.LocationService.Resolve(ctx, flowContext.Request.ClientIP, flowContext.Request.Coordinates)
	assessment, err := flowContext.Services.LocationService.Assess(ctx, flowContext.SubjectUserID, sample)
	if err != nil {
		return nil, err
	}
	flowContext.LocationAssessment = &assessment

	if flowContext.Snapshot.LocationVerified {
		flowContext.Factors.RecognizedLocation = true
		flowContext.Factors.AdditionalVerification = true
		return &StepResult{Continue: true}, nil
	}

	if assessment.VerificationRequired {
		return issueChallenge(ctx, flowContext, otp.PurposeLocation, StateLocationOtpChallenge)
	}

	flowContext.Factors.RecognizedLocation = true
	return &StepResult{Continue: true}, nil
}

// CompletionStep aggregates the factors, persists the signed-off event, and
// issues the completion token. The persisted event becomes the prior state
// consulted by the next attempt's device check and location history.
type CompletionStep struct{}

func NewCompletionStep() *CompletionStep {
	return &CompletionStep{}
}

func (s *CompletionStep) Name() string {
	return "completion"
}

func (s *CompletionStep) Order() int {
	return OrderCompletion
}

func (s *CompletionStep) ShouldSkip(ctx context.Context, flowContext *FlowContext) bool {
	return false
}

func (s *CompletionStep) Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error) {
	flowContext.Factors.ValidCredentials = true
	result := secscore.Assess(flowContext.Factors)

	sample := flowContext.LocationAssessment.Sample
	if err := flowContext.Services.LocationService.Record(ctx, flowContext.SubjectUserID, sample); err != nil {
		slog.Error("Failed to record location sample", "subject", flowContext.SubjectUserID, "error", err)
		// History is a hardening signal, not a ledger of record.
	}

	if flowContext.DeviceTrusted {
		if err := flowContext.Services.DeviceService.ExtendTrust(ctx, flowContext.SubjectUserID, flowContext.ObservedDevice); err != nil {
			slog.Error("Failed to extend device trust", "subject", flowContext.SubjectUserID, "error", err)
		}
	} else if flowContext.Factors.TrustedDevice {
		// The device passed its challenge this flow; store the grant so the
		// next attempt recognizes it.
		if _, err := flowContext.Services.DeviceService.Trust(ctx, flowContext.SubjectUserID, flowContext.ObservedDevice, sample.City, sample.Country); err != nil {
			slog.Error("Failed to store device trust", "subject", flowContext.SubjectUserID, "error", err)
		}
	}

	eventType := ledger.EventLoginCompleted
	if flowContext.Snapshot.Kind == KindSignup {
		eventType = ledger.EventSignupCompleted
	}
	event, err := ledger.NewEvent(flowContext.SubjectUserID, eventType, CompletedEvent{
		FlowID:        flowContext.FlowID,
		Kind:          flowContext.Snapshot.Kind,
		Factors:       result.Factors,
		SecurityScore: result.Score,
		SecurityTier:  result.Tier,
		DeviceRawID:   flowContext.ObservedDevice.RawID,
		Location:      sample,
	})
	if err != nil {
		return nil, err
	}
	if err := flowContext.Services.Events.Append(ctx, event); err != nil {
		return &StepResult{
			Error: verrors.UpstreamUnavailable(err, "event store"),
		}, nil
	}

	completionToken := ""
	var tokenErr error
	if flowContext.Services.CompletionToken != nil {
		completionToken, _, tokenErr = flowContext.Services.CompletionToken.GenerateToken(flowContext.SubjectUserID, result, flowContext.FlowID)
		if tokenErr != nil {
			return nil, tokenErr
		}
	}

	slog.Info("Verification flow complete",
		"subject", flowContext.SubjectUserID,
		"flowID", flowContext.FlowID,
		"kind", flowContext.Snapshot.Kind,
		"score", result.Score,
		"tier", result.Tier)

	flowContext.Outcome.Status = StatusAdvance
	flowContext.Outcome.NextState = StateComplete
	flowContext.Outcome.Security = &result
	flowContext.Outcome.CompletionToken = completionToken
	return &StepResult{Continue: false}, nil
}

// issueChallenge sends a code for the given purpose unless one is already
// outstanding, keeping repeated calls idempotent against the ledger state.
func issueChallenge(ctx context.Context, flowContext *FlowContext, purpose otp.Purpose, nextState State) (*StepResult, error) {
	subject := flowContext.Snapshot.Subject

	active, err := flowContext.Services.OtpService.HasActiveChallenge(ctx, purpose, subject)
	if err != nil {
		return nil, err
	}

	detail := "a verification code was sent to your email"
	if active {
		detail = "enter the verification code sent to your email, or request a new one"
	} else {
		if _, err := flowContext.Services.OtpService.Issue(ctx, purpose, subject); err != nil {
			switch {
			case errors.Is(err, otp.ErrDeliveryFailed):
				// The challenge is persisted; the user can request a resend.
				slog.Error("Challenge delivery failed", "purpose", purpose, "flowID", flowContext.FlowID, "error", err)
				detail = "we could not deliver the code; request a resend"
			case errors.Is(err, otp.ErrResendLimitExceeded):
				return &StepResult{Error: verrors.RateLimited("verification code")}, nil
			default:
				return &StepResult{Error: verrors.UpstreamUnavailable(err, "challenge service")}, nil
			}
		}
	}

	flowContext.Outcome.Status = StatusChallengeRequired
	flowContext.Outcome.NextState = nextState
	flowContext.Outcome.Detail = detail
	return &StepResult{EarlyReturn: true}, nil
}
