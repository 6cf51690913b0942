package verifyflow

import (
	"context"
	"log/slog"
	"sort"

	"github.com/verifid/verifid/pkg/deviceid"
	"github.com/verifid/verifid/pkg/directory"
	"github.com/verifid/verifid/pkg/geoip"
	"github.com/verifid/verifid/pkg/ledger"
	"github.com/verifid/verifid/pkg/otp"
	"github.com/verifid/verifid/pkg/secscore"
	"github.com/verifid/verifid/pkg/token"
	"github.com/verifid/verifid/pkg/totp"
	"github.com/verifid/verifid/pkg/verrors"
)

// FlowStep is a single step in the verification flow.
type FlowStep interface {
	// Name returns the unique name of this step.
	Name() string

	// Order returns the execution order (lower numbers execute first).
	Order() int

	// Execute performs the step's logic.
	Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error)

	// ShouldSkip determines if this step should be skipped given the
	// reconstructed flow state.
	ShouldSkip(ctx context.Context, flowContext *FlowContext) bool
}

// FlowContext carries state between verification steps for a single call.
// It is rebuilt from the ledger on every inbound request.
type FlowContext struct {
	Request  Request
	Snapshot *Snapshot
	Outcome  *Outcome

	FlowID        string
	Kind          Kind
	SubjectUserID string
	Profile       directory.Profile

	// Signals resolved during this call.
	ObservedDevice     deviceid.Identity
	DeviceTrusted      bool
	LocationAssessment *geoip.Assessment

	Factors secscore.FactorSet

	// Step-specific data shared between steps in one call.
	StepData map[string]interface{}

	Services *Dependencies
}

// StepResult is the result of executing one flow step.
type StepResult struct {
	// Continue indicates the flow should proceed to the next step.
	Continue bool

	// EarlyReturn indicates the flow should return immediately with the
	// current outcome (a challenge was issued or the flow failed).
	EarlyReturn bool

	// Error aborts the call with a coded error.
	Error *verrors.Error

	// Data is merged into FlowContext.StepData.
	Data map[string]interface{}
}

// Dependencies contains the collaborators the flow steps call into.
type Dependencies struct {
	Directory       directory.Directory
	OtpService      *otp.Service
	DeviceService   *deviceid.Service
	LocationService *geoip.Service
	Events          ledger.EventRepository
	FlowTokens      *token.FlowTokenGenerator
	CompletionToken token.Generator

	// TotpService is optional. When set, an enrolled authenticator app
	// passcode is accepted wherever an emailed code is expected.
	TotpService *totp.Service
}

// StepRegistry manages and orders flow steps.
type StepRegistry struct {
	steps []FlowStep
}

func NewStepRegistry() *StepRegistry {
	return &StepRegistry{steps: make([]FlowStep, 0)}
}

// AddStep adds a step to the registry.
func (r *StepRegistry) AddStep(step FlowStep) *StepRegistry {
	r.steps = append(r.steps, step)
	return r
}

// GetOrderedSteps returns steps sorted by their order.
func (r *StepRegistry) GetOrderedSteps() []FlowStep {
	orderedSteps := make([]FlowStep, len(r.steps))
	copy(orderedSteps, r.steps)

	sort.Slice(orderedSteps, func(i, j int) bool {
		return orderedSteps[i].Order() < orderedSteps[j].Order()
	})
	return orderedSteps
}

// FlowExecutor walks the registered steps for one inbound call. Steps skip
// themselves when the reconstructed state shows their work is already done,
// which is what makes the flow resumable across independent requests.
type FlowExecutor struct {
	registry *StepRegistry
	services *Dependencies
}

func NewFlowExecutor(registry *StepRegistry, services *Dependencies) *FlowExecutor {
	return &FlowExecutor{registry: registry, services: services}
}

// Execute runs the flow from the reconstructed snapshot forward.
func (e *FlowExecutor) Execute(ctx context.Context, flowContext *FlowContext) (*Outcome, error) {
	if flowContext.StepData == nil {
		flowContext.StepData = make(map[string]interface{})
	}
	flowContext.Services = e.services
	if flowContext.Outcome == nil {
		flowContext.Outcome = &Outcome{}
	}

	for _, step := range e.registry.GetOrderedSteps() {
		if step.ShouldSkip(ctx, flowContext) {
			continue
		}

		stepResult, err := step.Execute(ctx, flowContext)
		if err != nil {
			slog.Error("Verification step failed", "step", step.Name(), "flowID", flowContext.FlowID, "error", err)
			return nil, verrors.Internal(err)
		}

		if stepResult.Error != nil {
			return nil, stepResult.Error
		}

		for key, value := range stepResult.Data {
			flowContext.StepData[key] = value
		}

		if stepResult.EarlyReturn {
			return flowContext.Outcome, nil
		}
		if !stepResult.Continue {
			break
		}
	}
	return flowContext.Outcome, nil
}

// FlowBuilder provides a fluent interface for assembling a flow.
type FlowBuilder struct {
	registry *StepRegistry
}

func NewFlowBuilder() *FlowBuilder {
	return &FlowBuilder{registry: NewStepRegistry()}
}

// AddStep adds a step to the flow.
func (b *FlowBuilder) AddStep(step FlowStep) *FlowBuilder {
	b.registry.AddStep(step)
	return b
}

// Build creates a flow executor with the configured steps.
func (b *FlowBuilder) Build(services *Dependencies) *FlowExecutor {
	return NewFlowExecutor(b.registry, services)
}

// Step orders. Gaps leave room for deployment-specific steps.
const (
	OrderCredentialCheck  = 100
	OrderDeviceResolution = 200
	OrderDeviceCheck      = 300
	OrderLocationCheck    = 400
	OrderCompletion       = 500
)
