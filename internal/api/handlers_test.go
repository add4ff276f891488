package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	prommetrics "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sophiasearch-2025/admin-interface/internal/app"
	"github.com/sophiasearch-2025/admin-interface/internal/domain"
	"github.com/sophiasearch-2025/admin-interface/internal/testutil"
	"github.com/sophiasearch-2025/admin-interface/pkg/subscriptionclient"
	"github.com/sophiasearch-2025/admin-interface/pkg/transport"
	"github.com/sophiasearch-2025/admin-interface/pkg/usersclient"
)

const testSecret = "test-secret"

type apiFixture struct {
	remote  *testutil.Remote
	server  *httptest.Server
	metrics *app.Metrics
	tokens  *TokenManager
	token   string
}

type apiOptions struct {
	rateLimit int
	auth      bool
}

func newAPIFixture(t *testing.T, opts apiOptions) *apiFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	remote := testutil.NewRemote(t)

	tc := transport.NewClient(transport.Options{BaseURL: remote.URL(), Timeout: time.Second, Logger: logger})
	users := usersclient.NewClient(tc)
	subs := subscriptionclient.NewClient(tc)

	registry := prometheus.NewRegistry()
	metrics := app.NewMetrics("admin", registry)
	snapshots := app.NewSnapshotter(users, subs, app.NewAggregator(domain.AuthoritySubscription, logger))
	lifecycle := app.NewLifecycle(users, subs, snapshots, app.LifecycleOptions{
		Plan:      app.PlanDefaults{ID: "basic", Name: "Plan Básico"},
		Recorders: []app.OutcomeRecorder{metrics},
		Logger:    logger,
	})

	var limiter *app.ActionLimiter
	if opts.rateLimit > 0 {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		limiter = app.NewActionLimiter(client, "test:limit", opts.rateLimit, time.Minute)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	f := &apiFixture{remote: remote, metrics: metrics}
	if opts.auth {
		f.tokens = NewTokenManager(testSecret, time.Hour)
	}

	h := NewHandler(HandlerDeps{
		Snapshots:   snapshots,
		Lifecycle:   lifecycle,
		Dashboard:   app.NewDashboard(snapshots, users, subs, nil, metrics, logger),
		Subs:        subs,
		Limiter:     limiter,
		Metrics:     metrics,
		Credentials: StaticCredentials{Username: "admin", PasswordHash: string(hash)},
		Tokens:      f.tokens,
		Logger:      logger,
	})
	f.server = httptest.NewServer(NewRouter(h, RouterOptions{
		AllowedOrigins: []string{"http://localhost:5173"},
		Metrics:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Tokens:         f.tokens,
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func decodeOutcome(t *testing.T, raw []byte) domain.Outcome {
	t.Helper()
	var out domain.Outcome
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

func approved(uid string) usersclient.User {
	yes := true
	return usersclient.User{UID: uid, Email: uid + "@example.com", SolicitudAprobada: &yes}
}

func TestLoginGuardsOperatorRoutes(t *testing.T) {
	f := newAPIFixture(t, apiOptions{auth: true})
	f.remote.AddUser(approved("u1"))

	resp, _ := f.do(t, http.MethodGet, "/api/accounts", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "admin", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "admin"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, raw := f.do(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "admin", "password": "s3cret"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var login loginResponse
	require.NoError(t, json.Unmarshal(raw, &login))
	require.NotEmpty(t, login.Token)
	f.token = login.Token

	resp, raw = f.do(t, http.MethodGet, "/api/accounts", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Accounts []domain.Account `json:"accounts"`
		Summary  app.Summary      `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Len(t, body.Accounts, 1)
	assert.Equal(t, 1, body.Summary.Active)

	f.token = "not-a-token"
	resp, _ = f.do(t, http.MethodGet, "/api/accounts", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	f := newAPIFixture(t, apiOptions{auth: true})
	f.metrics.RateLimitedTotal.WithLabelValues("approve")

	resp, _ := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, raw := f.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "admin_lifecycle_rate_limited_total")
}

func TestOutcomeKindsMapToStatusCodes(t *testing.T) {
	f := newAPIFixture(t, apiOptions{})
	f.remote.AddUser(approved("u1"))
	f.remote.AddUser(usersclient.User{UID: "u2", Email: "u2@example.com"})
	f.remote.AddSubscription(subscriptionclient.Subscription{ID: "s1", UserID: "u1", Status: "active"})

	resp, raw := f.do(t, http.MethodPost, "/api/accounts/u1/state", map[string]string{"target": "suspended"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	out := decodeOutcome(t, raw)
	assert.Equal(t, domain.OutcomeConfirmed, out.Kind)
	require.NotNil(t, out.Account)
	assert.Equal(t, domain.StatusSuspended, out.Account.EffectiveStatus)

	f.remote.DropSubscriptionStatusWrites = true
	resp, raw = f.do(t, http.MethodPost, "/api/accounts/u1/state", map[string]string{"target": "active"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, domain.OutcomeUnconfirmed, decodeOutcome(t, raw).Kind)

	resp, _ = f.do(t, http.MethodPost, "/api/accounts/u2/state", map[string]string{"target": "active"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, "pending accounts cannot be suspended or reactivated")

	resp, _ = f.do(t, http.MethodPost, "/api/accounts/missing/renew", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	f.remote.CreateReturnsEmpty = true
	resp, raw = f.do(t, http.MethodPost, "/api/accounts/u2/approve", nil)
	assert.Equal(t, http.StatusMultiStatus, resp.StatusCode)
	out = decodeOutcome(t, raw)
	assert.Equal(t, domain.OutcomePartial, out.Kind)
	require.NotNil(t, out.Account)
	assert.True(t, out.Account.NeedsProvisioning)

	assert.Equal(t, float64(1), prommetrics.ToFloat64(f.metrics.OutcomesTotal.WithLabelValues("approve", "partial")))
}

func TestStateRequestValidation(t *testing.T) {
	f := newAPIFixture(t, apiOptions{})
	f.remote.AddUser(approved("u1"))

	resp, raw := f.do(t, http.MethodPost, "/api/accounts/u1/state", map[string]string{"target": "deleted"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(raw), "target must be one of: active suspended")

	resp, _ = f.do(t, http.MethodPost, "/api/accounts/u1/state", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "target is required")

	assert.Zero(t, f.remote.Calls("PATCH /api/subscriptions/{id}"))
}

func TestRejectWithoutBody(t *testing.T) {
	f := newAPIFixture(t, apiOptions{})
	f.remote.AddUser(usersclient.User{UID: "u1", Email: "u1@example.com"})

	resp, raw := f.do(t, http.MethodPost, "/api/accounts/u1/reject", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	assert.Equal(t, domain.ApprovalRejected, decodeOutcome(t, raw).Account.ApprovalState)
}

func TestProvisionUsesRequestedPlan(t *testing.T) {
	f := newAPIFixture(t, apiOptions{})
	f.remote.AddUser(approved("u1"))

	resp, raw := f.do(t, http.MethodPost, "/api/accounts/u1/provision", map[string]string{"planId": "premium"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	out := decodeOutcome(t, raw)
	assert.Equal(t, "premium", out.Target)
	require.NotNil(t, out.Account.Subscription)
	assert.Equal(t, "premium", out.Account.Subscription.Plan)
}

func TestLifecycleRequestsAreRateLimited(t *testing.T) {
	f := newAPIFixture(t, apiOptions{rateLimit: 1})
	f.remote.AddUser(approved("u1"))
	f.remote.AddSubscription(subscriptionclient.Subscription{ID: "s1", UserID: "u1", Status: "past_due"})

	resp, raw := f.do(t, http.MethodPost, "/api/accounts/u1/renew", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	resp, _ = f.do(t, http.MethodPost, "/api/accounts/u1/renew", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "60", resp.Header.Get("Retry-After"))
	assert.Equal(t, 1, f.remote.Calls("POST /api/subscriptions/{id}/renew"))
	assert.Equal(t, float64(1), prommetrics.ToFloat64(f.metrics.RateLimitedTotal.WithLabelValues("renew")))
}

func TestGetAccount(t *testing.T) {
	f := newAPIFixture(t, apiOptions{})
	user := approved("u1")
	user.ComprobanteInfo = &usersclient.ComprobanteInfo{Filename: "pago.pdf"}
	f.remote.AddUser(user)

	resp, raw := f.do(t, http.MethodGet, "/api/accounts/u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var account domain.Account
	require.NoError(t, json.Unmarshal(raw, &account))
	assert.Equal(t, f.remote.URL()+"/api/users/u1/comprobante", account.Identity.ProofOfPaymentRef)
	assert.True(t, account.NeedsProvisioning)

	resp, _ = f.do(t, http.MethodGet, "/api/accounts/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, raw = f.do(t, http.MethodGet, "/api/accounts/pending", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, "[]", string(raw))
}

func TestDashboardAndNotifications(t *testing.T) {
	f := newAPIFixture(t, apiOptions{})
	f.remote.AddUser(approved("u1"))

	resp, raw := f.do(t, http.MethodGet, "/api/dashboard", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snapshot app.DashboardSnapshot
	require.NoError(t, json.Unmarshal(raw, &snapshot))
	assert.Equal(t, 1, snapshot.Summary.Total)
	assert.True(t, snapshot.Health.Users.Up)

	resp, raw = f.do(t, http.MethodPost, "/api/admin/run-notifications", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "notifications sent")
}

func TestRemoteTimeoutIsGatewayTimeout(t *testing.T) {
	f := newAPIFixture(t, apiOptions{})
	f.remote.ReadDelay = 2 * time.Second

	resp, _ := f.do(t, http.MethodGet, "/api/accounts", nil)
	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
}

func TestOutcomeStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "confirmed", err: nil, want: http.StatusOK},
		{name: "unconfirmed", err: &domain.UnconfirmedWriteError{}, want: http.StatusConflict},
		{name: "partial", err: &domain.PartialProvisioningError{UID: "u1"}, want: http.StatusMultiStatus},
		{name: "not found", err: fmt.Errorf("%w: u1", domain.ErrAccountNotFound), want: http.StatusNotFound},
		{name: "precondition", err: domain.ErrPreconditionFailed, want: http.StatusUnprocessableEntity},
		{name: "no subscription", err: domain.ErrNoSubscription, want: http.StatusUnprocessableEntity},
		{name: "timeout", err: &transport.TimeoutError{Method: http.MethodPatch, Path: "/api/subscriptions/s1"}, want: http.StatusGatewayTimeout},
		{name: "remote", err: errors.New("connection reset"), want: http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := domain.NewOutcome(domain.OpSetAccountState, "u1", time.Now())
			out.Resolve(tt.err)
			assert.Equal(t, tt.want, outcomeStatus(out))
		})
	}
}

func TestStaticCredentials(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)
	creds := StaticCredentials{Username: "admin", PasswordHash: string(hash)}

	assert.NoError(t, creds.Verify("Admin", "pw"))
	assert.ErrorIs(t, creds.Verify("admin", "nope"), ErrInvalidCredentials)
	assert.ErrorIs(t, creds.Verify("root", "pw"), ErrInvalidCredentials)
	assert.ErrorIs(t, StaticCredentials{}.Verify("", ""), ErrInvalidCredentials)
}

func TestTokenManagerRejectsExpiredAndForeignTokens(t *testing.T) {
	tokens := NewTokenManager(testSecret, time.Minute)
	token, _, err := tokens.Issue("admin")
	require.NoError(t, err)

	claims, err := tokens.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)

	_, err = NewTokenManager("other-secret", time.Minute).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	tokens.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = tokens.Validate(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestAuthMiddlewareStoresOperator(t *testing.T) {
	tokens := NewTokenManager(testSecret, time.Minute)
	token, _, err := tokens.Issue("admin")
	require.NoError(t, err)

	var operator string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		operator, _ = GetAdminUsername(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := AuthMiddleware(tokens)(next)

	req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "admin", operator)

	req = httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	req.Header.Set("Authorization", "Token "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
