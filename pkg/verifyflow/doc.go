// Package verifyflow orchestrates multi-factor account verification.
//
// This package coordinates credential validation, device recognition,
// location risk assessment, one-time code challenges, and security scoring
// into a resumable state machine.
//
// # Overview
//
// The verifyflow package provides:
//   - Complete verification flow orchestration for signup and login
//   - Multi-step verification (credentials → device → location → score)
//   - Device recognition (skip the code challenge on known devices)
//   - Location risk assessment with a challenge above the risk threshold
//   - Authenticator-app passcodes as an alternative to emailed codes
//   - Resumable flows: state is re-derived from persisted ledger events
//     on every call, never held in server memory
//
// # Architecture
//
// Service coordinates the factor services through a step pipeline:
//   - directory.Directory - credential validation and profiles
//   - deviceid.Service - device identity and trust grants
//   - geoip.Service - location resolution and risk scoring
//   - otp.Service - one-time code challenges
//   - ledger.EventRepository - the persisted event trail
//   - token.FlowTokenGenerator - signed continuation tokens
//
// Each inbound call resumes the flow from its continuation token, rebuilds
// a Snapshot from the ledger, and runs the pipeline forward. Steps that are
// already satisfied skip themselves; a step that needs user input returns a
// challenge_required outcome and the pipeline stops there.
//
// # States
//
// A flow moves through these states:
//
//	CREDENTIALS_PENDING → DEVICE_CHECK → OTP_CHALLENGE (unrecognized device)
//	                                   → LOCATION_CHECK → LOCATION_OTP_CHALLENGE (risky location)
//	                                                    → COMPLETE
//
// Credential failure aborts the flow (ABORTED); nothing downstream can
// recover it.
//
// # Basic Usage
//
//	service := verifyflow.NewService(&verifyflow.Dependencies{
//		Directory:       dir,
//		OtpService:      otpService,
//		DeviceService:   deviceService,
//		LocationService: locationService,
//		Events:          events,
//		FlowTokens:      flowTokens,
//		CompletionToken: completionTokens,
//	})
//
//	outcome, err := service.BeginCredentialCheck(ctx, verifyflow.Request{
//		Kind:     verifyflow.KindLogin,
//		Email:    "user@example.com",
//		Password: "password123",
//		ClientIP: "203.0.113.10",
//	})
//	// outcome.Status is advance, challenge_required, or failed;
//	// outcome.FlowToken continues the flow on the next call.
package verifyflow
