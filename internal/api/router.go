/**
 * @description
 * This file sets up the HTTP router for the admin-service using go-chi. It
 * applies logging, recovery, timeout and CORS middleware, exposes health and
 * metrics, and guards the admin API behind operator tokens.
 */
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions configures NewRouter. A nil Metrics handler hides /metrics;
// nil Tokens leaves the admin API unauthenticated.
type RouterOptions struct {
	AllowedOrigins []string
	Metrics        http.Handler
	Tokens         *TokenManager
	RequestTimeout time.Duration
}

// NewRouter creates a new Chi router and registers the admin-service routes.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Admin service is healthy"))
	})
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}

	r.Post("/api/auth/login", h.handleLogin)

	// Operator routes. Login stays outside the group.
	r.Group(func(r chi.Router) {
		if opts.Tokens != nil {
			r.Use(AuthMiddleware(opts.Tokens))
		}

		r.Get("/api/accounts", h.handleListAccounts)
		r.Get("/api/accounts/pending", h.handleListPending)
		r.Get("/api/accounts/{uid}", h.handleGetAccount)
		r.Post("/api/accounts/{uid}/approve", h.handleApprove)
		r.Post("/api/accounts/{uid}/reject", h.handleReject)
		r.Post("/api/accounts/{uid}/state", h.handleSetState)
		r.Post("/api/accounts/{uid}/provision", h.handleProvision)
		r.Post("/api/accounts/{uid}/renew", h.handleRenew)

		r.Get("/api/dashboard", h.handleDashboard)
		r.Post("/api/admin/run-notifications", h.handleRunNotifications)
	})

	return r
}
