package verifyflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/verifid/verifid/pkg/geoip"
	"github.com/verifid/verifid/pkg/ledger"
	"github.com/verifid/verifid/pkg/otp"
	"github.com/verifid/verifid/pkg/secscore"
)

// Event payloads. Each is a tagged variant decoded defensively: a corrupt
// payload is treated as absent rather than failing the flow.

// CredentialsVerifiedEvent records that the account directory confirmed the
// subject's credentials for this flow.
type CredentialsVerifiedEvent struct {
	FlowID  string `json:"flow_id"`
	Kind    Kind   `json:"kind"`
	Subject string `json:"subject"`
}

// DeviceVerificationEvent records a successful device-purpose code
// validation within a flow.
type DeviceVerificationEvent struct {
	FlowID      string `json:"flow_id"`
	DeviceRawID string `json:"device_raw_id"`
}

// LocationVerificationEvent records a successful location-purpose code
// validation within a flow.
type LocationVerificationEvent struct {
	FlowID    string       `json:"flow_id"`
	Sample    geoip.Sample `json:"sample"`
	RiskScore int          `json:"risk_score"`
}

// CompletedEvent is the signed-off record persisted when a flow reaches
// COMPLETE. It is the prior state consulted by the device check and the
// location history on the next attempt.
type CompletedEvent struct {
	FlowID        string             `json:"flow_id"`
	Kind          Kind               `json:"kind"`
	Factors       secscore.FactorSet `json:"factors"`
	SecurityScore int                `json:"security_score"`
	SecurityTier  secscore.Tier      `json:"security_tier"`
	DeviceRawID   string             `json:"device_raw_id"`
	Location      geoip.Sample       `json:"location"`
}

// Snapshot is the flow state reconstructed from the ledger for one call.
type Snapshot struct {
	FlowID        string
	Kind          Kind
	SubjectUserID string
	Subject       string // normalized email

	CredentialsVerified bool
	DeviceVerified      bool // device-purpose code validated this flow
	LocationVerified    bool // location-purpose code validated this flow
	Completed           bool
}

// LoadSnapshot rebuilds the flow state for (subject, flowID) from persisted
// events. Events belonging to other flows for the same subject are ignored.
func LoadSnapshot(ctx context.Context, events ledger.EventRepository, subjectUserID, flowID string) (*Snapshot, error) {
	snapshot := &Snapshot{FlowID: flowID, SubjectUserID: subjectUserID}

	credEvent, err := latestForFlow(ctx, events, subjectUserID, ledger.EventCredentialsVerified, flowID)
	if err != nil {
		return nil, err
	}
	if credEvent != nil {
		var payload CredentialsVerifiedEvent
		if err := credEvent.Decode(&payload); err == nil {
			snapshot.CredentialsVerified = true
			snapshot.Kind = payload.Kind
			snapshot.Subject = payload.Subject
		} else {
			slog.Warn("Corrupt credentials event payload, treating as absent", "flowID", flowID, "error", err)
		}
	}

	deviceEvent, err := latestForFlow(ctx, events, subjectUserID, ledger.EventDeviceVerification, flowID)
	if err != nil {
		return nil, err
	}
	snapshot.DeviceVerified = deviceEvent != nil

	locationEvent, err := latestForFlow(ctx, events, subjectUserID, ledger.EventLocationVerification, flowID)
	if err != nil {
		return nil, err
	}
	snapshot.LocationVerified = locationEvent != nil

	for _, eventType := range []ledger.EventType{ledger.EventSignupCompleted, ledger.EventLoginCompleted} {
		completed, err := latestForFlow(ctx, events, subjectUserID, eventType, flowID)
		if err != nil {
			return nil, err
		}
		if completed != nil {
			snapshot.Completed = true
			break
		}
	}
	return snapshot, nil
}

// latestForFlow scans events of one type for the subject and returns the
// newest one whose payload carries the flow ID.
func latestForFlow(ctx context.Context, events ledger.EventRepository, subjectUserID string, eventType ledger.EventType, flowID string) (*ledger.Event, error) {
	all, err := events.QueryAll(ctx, subjectUserID, eventType)
	if err != nil {
		if errors.Is(err, ledger.ErrEventNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query %s events: %w", eventType, err)
	}

	for i := range all {
		var tagged struct {
			FlowID string `json:"flow_id"`
		}
		if err := all[i].Decode(&tagged); err != nil {
			continue
		}
		if tagged.FlowID == flowID {
			return &all[i], nil
		}
	}
	return nil, nil
}

// PriorDevice returns the device identifier persisted with the subject's
// most recent completed flow, or empty when none exists.
func PriorDevice(ctx context.Context, events ledger.EventRepository, subjectUserID string) (string, error) {
	for _, eventType := range []ledger.EventType{ledger.EventLoginCompleted, ledger.EventSignupCompleted} {
		event, err := events.QueryLatest(ctx, subjectUserID, eventType)
		if err != nil {
			if errors.Is(err, ledger.ErrEventNotFound) {
				continue
			}
			return "", fmt.Errorf("failed to query completed events: %w", err)
		}
		var payload CompletedEvent
		if err := event.Decode(&payload); err != nil {
			slog.Warn("Corrupt completed event payload, treating device as unknown", "subject", subjectUserID, "error", err)
			continue
		}
		if payload.DeviceRawID != "" {
			return payload.DeviceRawID, nil
		}
	}
	return "", nil
}

// DeriveState maps a snapshot plus the outstanding challenges onto the
// state machine.
func DeriveState(ctx context.Context, otpService *otp.Service, snapshot *Snapshot) (State, error) {
	if snapshot.Completed {
		return StateComplete, nil
	}
	if !snapshot.CredentialsVerified {
		return StateCredentialsPending, nil
	}

	if !snapshot.DeviceVerified {
		active, err := otpService.HasActiveChallenge(ctx, otp.PurposeDevice, snapshot.Subject)
		if err != nil {
			return "", err
		}
		if active {
			return StateOtpChallenge, nil
		}
		return StateDeviceCheck, nil
	}

	if !snapshot.LocationVerified {
		active, err := otpService.HasActiveChallenge(ctx, otp.PurposeLocation, snapshot.Subject)
		if err != nil {
			return "", err
		}
		if active {
			return StateLocationOtpChallenge, nil
		}
	}
	return StateLocationCheck, nil
}
