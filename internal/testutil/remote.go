// Package testutil provides an in-process fake of the Users and Subscriptions
// services, with knobs for the failure modes the lifecycle engine must detect.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sophiasearch-2025/admin-interface/pkg/subscriptionclient"
	"github.com/sophiasearch-2025/admin-interface/pkg/usersclient"
)

// Envelope selects how list endpoints wrap their payload.
type Envelope string

const (
	EnvelopeSuccessData Envelope = "success_data"
	EnvelopeBareArray   Envelope = "bare_array"
	EnvelopeKeyed       Envelope = "keyed"
)

// Remote is a fake of both backend services behind one base URL.
type Remote struct {
	mu            sync.Mutex
	users         []usersclient.User
	subscriptions []subscriptionclient.Subscription
	calls         map[string]int
	nextID        int

	// ListEnvelope controls the list response shape (default success_data).
	ListEnvelope Envelope
	// DropUserStatusWrites makes PATCH /api/users/:id answer 200 without persisting.
	DropUserStatusWrites bool
	// DropSubscriptionStatusWrites makes PATCH /api/subscriptions/:id answer 200 without persisting.
	DropSubscriptionStatusWrites bool
	// DropApprovals makes PATCH /api/users/:id/approve answer 200 without persisting.
	DropApprovals bool
	// ApproveStatus, when non-zero, is returned by the approve endpoint instead of succeeding.
	ApproveStatus int
	// RejectStatus, when non-zero, is returned by the reject endpoint instead of succeeding.
	RejectStatus int
	// CreateStatus, when non-zero, is returned by POST /api/subscriptions instead of succeeding.
	CreateStatus int
	// CreateReturnsEmpty makes POST /api/subscriptions answer {"success":true} without creating anything.
	CreateReturnsEmpty bool
	// PatchStatus, when non-zero, is returned by both PATCH status endpoints.
	PatchStatus int
	// ReadDelay stalls every GET, to exercise timeouts.
	ReadDelay time.Duration
	// PatchDelay stalls both PATCH status endpoints.
	PatchDelay time.Duration
	// SubscriptionReadStatus, when non-zero, is returned by GET /api/subscriptions/:id.
	SubscriptionReadStatus int

	Server *httptest.Server
}

// NewRemote starts the fake and registers its shutdown with t.
func NewRemote(t testing.TB) *Remote {
	t.Helper()
	r := &Remote{calls: map[string]int{}, ListEnvelope: EnvelopeSuccessData}
	r.Server = httptest.NewServer(r.router())
	t.Cleanup(r.Server.Close)
	return r
}

// URL returns the fake's base URL.
func (r *Remote) URL() string { return r.Server.URL }

// AddUser seeds a user record.
func (r *Remote) AddUser(u usersclient.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, u)
}

// AddSubscription seeds a subscription record.
func (r *Remote) AddSubscription(s subscriptionclient.Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscriptions = append(r.subscriptions, s)
}

// Calls returns how many times "METHOD pattern" was hit, e.g. "POST /api/subscriptions".
func (r *Remote) Calls(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[key]
}

// User returns a copy of the stored user.
func (r *Remote) User(uid string) (usersclient.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Key() == uid {
			return u, true
		}
	}
	return usersclient.User{}, false
}

// Subscriptions returns a copy of the stored subscriptions.
func (r *Remote) Subscriptions() []subscriptionclient.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]subscriptionclient.Subscription(nil), r.subscriptions...)
}

func (r *Remote) router() http.Handler {
	mux := chi.NewRouter()
	mux.Use(r.countCalls)

	mux.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})

	mux.Route("/api/users", func(rt chi.Router) {
		rt.Get("/", r.listUsers(false))
		rt.Get("/pending", r.listUsers(true))
		rt.Patch("/{id}", r.patchUser)
		rt.Patch("/{id}/approve", r.approveUser)
		rt.Patch("/{id}/reject", r.rejectUser)
	})

	mux.Route("/api/subscriptions", func(rt chi.Router) {
		rt.Get("/", r.listSubscriptions)
		rt.Post("/", r.createSubscription)
		rt.Post("/check-expiring", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "processed": 2})
		})
		rt.Get("/{id}", r.getSubscription)
		rt.Patch("/{id}", r.patchSubscription)
		rt.Post("/{id}/renew", r.renewSubscription)
	})

	mux.Post("/api/admin/run-notifications", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "notifications sent"})
	})

	return mux
}

func (r *Remote) countCalls(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		next.ServeHTTP(w, req)
		pattern := chi.RouteContext(req.Context()).RoutePattern()
		if len(pattern) > 1 && pattern[len(pattern)-1] == '/' {
			pattern = pattern[:len(pattern)-1]
		}
		r.mu.Lock()
		r.calls[req.Method+" "+pattern]++
		r.mu.Unlock()
	})
}

func (r *Remote) stall(req *http.Request, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-req.Context().Done():
	}
}

func (r *Remote) listUsers(pendingOnly bool) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		r.stall(req, r.ReadDelay)
		r.mu.Lock()
		out := []usersclient.User{}
		for _, u := range r.users {
			if pendingOnly && u.Approval() != usersclient.ApprovalPending {
				continue
			}
			out = append(out, u)
		}
		r.mu.Unlock()
		r.writeList(w, "users", out)
	}
}

func (r *Remote) listSubscriptions(w http.ResponseWriter, req *http.Request) {
	r.stall(req, r.ReadDelay)
	r.mu.Lock()
	out := append([]subscriptionclient.Subscription{}, r.subscriptions...)
	r.mu.Unlock()
	r.writeList(w, "subscriptions", out)
}

func (r *Remote) writeList(w http.ResponseWriter, key string, items any) {
	switch r.ListEnvelope {
	case EnvelopeBareArray:
		writeJSON(w, http.StatusOK, items)
	case EnvelopeKeyed:
		writeJSON(w, http.StatusOK, map[string]any{key: items})
	default:
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": items})
	}
}

func (r *Remote) patchUser(w http.ResponseWriter, req *http.Request) {
	r.stall(req, r.PatchDelay)
	if r.PatchStatus != 0 {
		writeJSON(w, r.PatchStatus, map[string]any{"success": false, "message": "patch rejected"})
		return
	}
	var body usersclient.StatusRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "invalid body"})
		return
	}
	r.mutateUser(w, chi.URLParam(req, "id"), func(u *usersclient.User) {
		if !r.DropUserStatusWrites {
			u.Estado = body.Estado
		}
	})
}

func (r *Remote) approveUser(w http.ResponseWriter, req *http.Request) {
	if r.ApproveStatus != 0 {
		writeJSON(w, r.ApproveStatus, map[string]any{"success": false, "message": "approve failed"})
		return
	}
	r.mutateUser(w, chi.URLParam(req, "id"), func(u *usersclient.User) {
		if r.DropApprovals {
			return
		}
		approved := true
		u.SolicitudAprobada = &approved
		u.Estado = usersclient.EstadoActive
	})
}

func (r *Remote) rejectUser(w http.ResponseWriter, req *http.Request) {
	if r.RejectStatus != 0 {
		writeJSON(w, r.RejectStatus, map[string]any{"success": false, "message": "reject failed"})
		return
	}
	var body usersclient.RejectRequest
	_ = json.NewDecoder(req.Body).Decode(&body)
	r.mutateUser(w, chi.URLParam(req, "id"), func(u *usersclient.User) {
		rejected := true
		u.SolicitudRechazada = &rejected
		u.MotivoRechazo = body.Motivo
	})
}

func (r *Remote) mutateUser(w http.ResponseWriter, id string, apply func(*usersclient.User)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.users {
		if r.users[i].Key() == id {
			apply(&r.users[i])
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": r.users[i]})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "Usuario no encontrado"})
}

func (r *Remote) createSubscription(w http.ResponseWriter, req *http.Request) {
	if r.CreateStatus != 0 {
		writeJSON(w, r.CreateStatus, map[string]any{"success": false, "message": "create failed"})
		return
	}
	var body subscriptionclient.CreateRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "invalid body"})
		return
	}
	if r.CreateReturnsEmpty {
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}

	r.mu.Lock()
	r.nextID++
	sub := subscriptionclient.Subscription{
		ID:       fmt.Sprintf("sub-%d", r.nextID),
		UserID:   body.UserID,
		Plan:     body.PlanID,
		PlanName: body.PlanName,
		Status:   "active",
		Precio:   body.Precio,
	}
	r.subscriptions = append(r.subscriptions, sub)
	r.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "data": sub})
}

func (r *Remote) getSubscription(w http.ResponseWriter, req *http.Request) {
	r.stall(req, r.ReadDelay)
	if r.SubscriptionReadStatus != 0 {
		writeJSON(w, r.SubscriptionReadStatus, map[string]any{"success": false, "message": "read failed"})
		return
	}
	id := chi.URLParam(req, "id")
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subscriptions {
		if s.ID == id {
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": s})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "Suscripción no encontrada"})
}

func (r *Remote) patchSubscription(w http.ResponseWriter, req *http.Request) {
	r.stall(req, r.PatchDelay)
	if r.PatchStatus != 0 {
		writeJSON(w, r.PatchStatus, map[string]any{"success": false, "message": "patch rejected"})
		return
	}
	var fields map[string]any
	if err := json.NewDecoder(req.Body).Decode(&fields); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "invalid body"})
		return
	}
	r.mutateSubscription(w, chi.URLParam(req, "id"), func(s *subscriptionclient.Subscription) {
		if status, ok := fields["status"].(string); ok && !r.DropSubscriptionStatusWrites {
			s.Status = status
		}
	})
}

func (r *Remote) renewSubscription(w http.ResponseWriter, req *http.Request) {
	r.mutateSubscription(w, chi.URLParam(req, "id"), func(s *subscriptionclient.Subscription) {
		s.Status = "active"
	})
}

func (r *Remote) mutateSubscription(w http.ResponseWriter, id string, apply func(*subscriptionclient.Subscription)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.subscriptions {
		if r.subscriptions[i].ID == id {
			apply(&r.subscriptions[i])
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": r.subscriptions[i]})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "Suscripción no encontrada"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
