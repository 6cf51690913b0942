package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/verifid/verifid/pkg/deviceid"
	"github.com/verifid/verifid/pkg/geoip"
	"github.com/verifid/verifid/pkg/verifyflow"
	"github.com/verifid/verifid/pkg/verrors"
)

// Handler exposes the verification flow over HTTP.
type Handler struct {
	service *verifyflow.Service
}

// NewHandler creates a verification flow API handler.
func NewHandler(service *verifyflow.Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the flow endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/begin", h.BeginCredentialCheck)
	r.Post("/device", h.CheckDevice)
	r.Post("/otp/challenge", h.ChallengeOtp)
	r.Post("/otp/verify", h.VerifyOtp)
	r.Post("/location", h.CheckLocation)
	r.Post("/location/verify", h.VerifyLocationOtp)
	r.Post("/totp/enroll", h.EnrollTotp)
	r.Get("/state", h.State)
}

// BeginCredentialCheck handles POST /begin
func (h *Handler) BeginCredentialCheck(w http.ResponseWriter, r *http.Request) {
	var req BeginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request body", "error", err)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid request body"})
		return
	}

	outcome, err := h.service.BeginCredentialCheck(r.Context(), flowRequest(r, req.StepRequest, verifyflow.Request{
		Kind:     verifyflow.Kind(req.Kind),
		Email:    req.Email,
		Password: req.Password,
	}))
	h.respond(w, r, outcome, err)
}

// CheckDevice handles POST /device
func (h *Handler) CheckDevice(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeStep(w, r)
	if !ok {
		return
	}
	outcome, err := h.service.CheckDevice(r.Context(), flowRequest(r, req, verifyflow.Request{}))
	h.respond(w, r, outcome, err)
}

// ChallengeOtp handles POST /otp/challenge
func (h *Handler) ChallengeOtp(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeStep(w, r)
	if !ok {
		return
	}
	outcome, err := h.service.ChallengeOtp(r.Context(), flowRequest(r, req, verifyflow.Request{}))
	h.respond(w, r, outcome, err)
}

// VerifyOtp handles POST /otp/verify
func (h *Handler) VerifyOtp(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid request body"})
		return
	}
	outcome, err := h.service.VerifyOtp(r.Context(), flowRequest(r, req.StepRequest, verifyflow.Request{
		Code: strings.TrimSpace(req.Code),
	}))
	h.respond(w, r, outcome, err)
}

// CheckLocation handles POST /location
func (h *Handler) CheckLocation(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeStep(w, r)
	if !ok {
		return
	}
	outcome, err := h.service.CheckLocation(r.Context(), flowRequest(r, req, verifyflow.Request{}))
	h.respond(w, r, outcome, err)
}

// VerifyLocationOtp handles POST /location/verify
func (h *Handler) VerifyLocationOtp(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid request body"})
		return
	}
	outcome, err := h.service.VerifyLocationOtp(r.Context(), flowRequest(r, req.StepRequest, verifyflow.Request{
		Code: strings.TrimSpace(req.Code),
	}))
	h.respond(w, r, outcome, err)
}

// EnrollTotp handles POST /totp/enroll
func (h *Handler) EnrollTotp(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeStep(w, r)
	if !ok {
		return
	}
	url, err := h.service.EnrollTotp(r.Context(), flowRequest(r, req, verifyflow.Request{}))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, EnrollTotpResponse{OtpauthURL: url})
}

// State handles GET /state
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	flowToken := r.Header.Get("X-Flow-Token")
	if flowToken == "" {
		flowToken = r.URL.Query().Get("flow_token")
	}

	state, err := h.service.State(r.Context(), verifyflow.Request{FlowToken: flowToken})
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, StateResponse{State: string(state)})
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, outcome *verifyflow.Outcome, err error) {
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	resp := OutcomeResponse{
		Status:          string(outcome.Status),
		NextState:       string(outcome.NextState),
		Detail:          outcome.Detail,
		ErrorCode:       string(outcome.ErrorCode),
		FlowToken:       outcome.FlowToken,
		CompletionToken: outcome.CompletionToken,
	}
	if outcome.Security != nil {
		resp.Security = &SecurityPayload{
			Score:           outcome.Security.Score,
			Tier:            string(outcome.Security.Tier),
			Recommendations: outcome.Security.Recommendations,
		}
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	var coded *verrors.Error
	if errors.As(err, &coded) {
		if coded.Code == verrors.CodeInternal || coded.Code == verrors.CodeUpstreamUnavailable {
			slog.Error("Verification request failed", "code", coded.Code, "error", err)
		}
		render.Status(r, coded.HTTPStatusCode())
		render.JSON(w, r, ErrorResponse{Error: coded.Message, Hint: coded.Hint})
		return
	}

	slog.Error("Verification request failed", "error", err)
	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, ErrorResponse{Error: "An unexpected error occurred", Hint: "try again later"})
}

func decodeStep(w http.ResponseWriter, r *http.Request) (StepRequest, bool) {
	var req StepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid request body"})
		return StepRequest{}, false
	}
	return req, true
}

// flowRequest merges body fields, headers, and connection details into the
// flow request. Body values win over headers.
func flowRequest(r *http.Request, step StepRequest, base verifyflow.Request) verifyflow.Request {
	base.FlowToken = step.FlowToken
	if base.FlowToken == "" {
		base.FlowToken = r.Header.Get("X-Flow-Token")
	}

	base.DeviceRawID = step.DeviceID
	if base.DeviceRawID == "" {
		base.DeviceRawID = r.Header.Get("X-Device-ID")
	}

	base.PersistentToken = step.PersistentToken
	if base.PersistentToken == "" {
		base.PersistentToken = r.Header.Get("X-Persistent-Token")
	}

	hw := deviceid.ExtractHardwareProfile(r)
	base.Hardware = &hw
	base.ClientIP = clientIP(r)

	if step.Latitude != nil && step.Longitude != nil {
		base.Coordinates = &geoip.Coordinates{
			Latitude:  *step.Latitude,
			Longitude: *step.Longitude,
		}
	}
	return base
}

// clientIP prefers the first X-Forwarded-For hop when present.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
