/**
 * @description
 * HTTP handlers for the admin-service. Read endpoints serve a fresh
 * aggregation of both remote services; lifecycle endpoints run one workflow
 * operation and render its outcome, mapping the outcome kind to a status code
 * so the console can tell a verified change from an unverified one.
 */
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sophiasearch-2025/admin-interface/internal/app"
	"github.com/sophiasearch-2025/admin-interface/internal/domain"
	"github.com/sophiasearch-2025/admin-interface/pkg/transport"
)

// HandlerDeps groups what the handlers need. Limiter, Metrics and Tokens may be nil.
type HandlerDeps struct {
	Snapshots   *app.Snapshotter
	Lifecycle   *app.Lifecycle
	Dashboard   *app.Dashboard
	Subs        app.SubscriptionsGateway
	Limiter     *app.ActionLimiter
	Metrics     *app.Metrics
	Credentials CredentialStore
	Tokens      *TokenManager
	Logger      *slog.Logger
}

// Handler serves the admin API.
type Handler struct {
	snapshots   *app.Snapshotter
	lifecycle   *app.Lifecycle
	dashboard   *app.Dashboard
	subs        app.SubscriptionsGateway
	limiter     *app.ActionLimiter
	metrics     *app.Metrics
	credentials CredentialStore
	tokens      *TokenManager
	logger      *slog.Logger
	validate    *validator.Validate
}

// NewHandler creates a Handler from its dependencies.
func NewHandler(deps HandlerDeps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		snapshots:   deps.Snapshots,
		lifecycle:   deps.Lifecycle,
		dashboard:   deps.Dashboard,
		subs:        deps.Subs,
		limiter:     deps.Limiter,
		metrics:     deps.Metrics,
		credentials: deps.Credentials,
		tokens:      deps.Tokens,
		logger:      logger,
		validate:    validator.New(),
	}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type stateRequest struct {
	Target string `json:"target" validate:"required,oneof=active suspended"`
}

type provisionRequest struct {
	PlanID string `json:"planId" validate:"omitempty,max=64"`
}

type accountsResponse struct {
	*app.Snapshot
	Summary app.Summary `json:"summary"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if h.tokens == nil || h.credentials == nil {
		respondWithError(w, http.StatusNotFound, "login is not configured")
		return
	}
	var req loginRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.credentials.Verify(req.Username, req.Password); err != nil {
		h.logger.Warn("admin login rejected", "username", req.Username)
		respondWithError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	token, expiresAt, err := h.tokens.Issue(strings.TrimSpace(req.Username))
	if err != nil {
		h.logger.Error("failed to sign admin token", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Unable to sign token")
		return
	}
	h.logger.Info("admin logged in", "username", req.Username)
	respondWithJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt.UTC()})
}

func (h *Handler) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.snapshots.Snapshot(r.Context())
	if err != nil {
		h.respondWithRemoteError(w, "list accounts", err)
		return
	}
	respondWithJSON(w, http.StatusOK, accountsResponse{Snapshot: snapshot, Summary: snapshot.Summary()})
}

func (h *Handler) handleListPending(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.snapshots.Snapshot(r.Context())
	if err != nil {
		h.respondWithRemoteError(w, "list pending accounts", err)
		return
	}
	respondWithJSON(w, http.StatusOK, snapshot.Pending)
}

func (h *Handler) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	account, _, err := h.snapshots.Account(r.Context(), uid)
	if errors.Is(err, domain.ErrAccountNotFound) {
		respondWithError(w, http.StatusNotFound, "Account not found")
		return
	}
	if err != nil {
		h.respondWithRemoteError(w, "get account", err)
		return
	}
	respondWithJSON(w, http.StatusOK, account)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	if !h.allow(w, r, domain.OpApprove, uid) {
		return
	}
	h.respondWithOutcome(w, h.lifecycle.Approve(r.Context(), uid))
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	var req rejectRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if !h.allow(w, r, domain.OpReject, uid) {
		return
	}
	h.respondWithOutcome(w, h.lifecycle.Reject(r.Context(), uid, req.Reason))
}

func (h *Handler) handleSetState(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	var req stateRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if !h.allow(w, r, domain.OpSetAccountState, uid) {
		return
	}
	h.respondWithOutcome(w, h.lifecycle.SetAccountState(r.Context(), uid, req.Target))
}

func (h *Handler) handleProvision(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	var req provisionRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if !h.allow(w, r, domain.OpProvision, uid) {
		return
	}
	h.respondWithOutcome(w, h.lifecycle.Provision(r.Context(), uid, req.PlanID))
}

func (h *Handler) handleRenew(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	if !h.allow(w, r, domain.OpRenew, uid) {
		return
	}
	h.respondWithOutcome(w, h.lifecycle.Renew(r.Context(), uid))
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := h.dashboard.Latest(r.Context())
	if !ok {
		var err error
		snapshot, err = h.dashboard.Refresh(r.Context())
		if errors.Is(err, app.ErrRefreshInProgress) {
			respondWithError(w, http.StatusServiceUnavailable, "Dashboard is refreshing, try again shortly")
			return
		}
		if err != nil {
			h.respondWithRemoteError(w, "refresh dashboard", err)
			return
		}
	}
	respondWithJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) handleRunNotifications(w http.ResponseWriter, r *http.Request) {
	result, err := h.subs.RunNotifications(r.Context())
	if err != nil {
		h.respondWithRemoteError(w, "run notifications", err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// allow consults the per-account limiter. A limiter error lets the request through.
func (h *Handler) allow(w http.ResponseWriter, r *http.Request, op domain.Operation, uid string) bool {
	operator, _ := GetAdminUsername(r.Context())
	h.logger.Info("lifecycle request", "operation", op, "uid", uid, "operator", operator)

	decision, err := h.limiter.Allow(r.Context(), string(op), uid)
	if err != nil {
		h.logger.Warn("action limiter unavailable, allowing request", "operation", op, "uid", uid, "error", err)
	}
	if decision.Allowed {
		return true
	}
	if h.metrics != nil {
		h.metrics.RateLimitedTotal.WithLabelValues(string(op)).Inc()
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(decision.RetryAfter.Seconds())))
	respondWithError(w, http.StatusTooManyRequests, fmt.Sprintf("Too many %s requests for this account, try again later", op))
	return false
}

// decodeAndValidate decodes an optional JSON body into dst. An empty body
// leaves dst at its zero value before validation.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func (h *Handler) respondWithOutcome(w http.ResponseWriter, out *domain.Outcome) {
	respondWithJSON(w, outcomeStatus(out), out)
}

func (h *Handler) respondWithRemoteError(w http.ResponseWriter, action string, err error) {
	h.logger.Error("remote service call failed", "action", action, "error", err)
	status := http.StatusBadGateway
	if transport.IsTimeout(err) {
		status = http.StatusGatewayTimeout
	}
	respondWithError(w, status, err.Error())
}

// outcomeStatus maps an outcome to the HTTP status the console acts on.
func outcomeStatus(out *domain.Outcome) int {
	switch out.Kind {
	case domain.OutcomeConfirmed:
		return http.StatusOK
	case domain.OutcomePartial:
		return http.StatusMultiStatus
	case domain.OutcomeUnconfirmed:
		return http.StatusConflict
	}

	switch {
	case errors.Is(out.Err, domain.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(out.Err, domain.ErrPreconditionFailed),
		errors.Is(out.Err, domain.ErrInvalidTarget),
		errors.Is(out.Err, domain.ErrNoSubscription):
		return http.StatusUnprocessableEntity
	case transport.IsTimeout(out.Err):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", strings.ToLower(fe.Field())))
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of: %s", strings.ToLower(fe.Field()), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s is invalid (%s)", strings.ToLower(fe.Field()), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

// respondWithJSON is a helper function to write JSON responses.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
