// Package server exposes the inventory API over HTTP. Handlers follow
// one shape: method-scoped route, bounded JSON body, typed
// request/response structs, writeJSON out.
package server

import (
	"net/http"
	"sync"

	"go.uber.org/zap"

	"stockroom/internal/auth"
	"stockroom/internal/notify"
	"stockroom/internal/store"
)

// Server holds the API's collaborators and its route table.
type Server struct {
	store    *store.Store
	auth     *auth.Manager
	notifier *notify.Notifier
	logger   *zap.Logger
	metrics  *metrics

	mu         sync.RWMutex
	hookSecret string
}

// New creates a Server.
func New(st *store.Store, am *auth.Manager, n *notify.Notifier, logger *zap.Logger, hookSecret string) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		store:      st,
		auth:       am,
		notifier:   n,
		logger:     logger,
		metrics:    newMetrics(),
		hookSecret: hookSecret,
	}
}

// SetHookSecret updates the webhook secret on config reload.
func (s *Server) SetHookSecret(secret string) {
	s.mu.Lock()
	s.hookSecret = secret
	s.mu.Unlock()
}

func (s *Server) currentHookSecret() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hookSecret
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	route := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, s.metrics.instrument(pattern, h))
	}

	// Auth
	route("POST /api/auth/login", s.handleLogin)
	route("POST /api/auth/logout", s.requireAuth(s.handleLogout))
	route("GET /api/auth/session", s.requireAuth(s.handleSession))

	// Equipment
	route("GET /api/equipment", s.requireAuth(s.handleListEquipment))
	route("POST /api/equipment", s.requireAdmin(s.handleCreateEquipment))
	route("GET /api/equipment/{id}", s.requireAuth(s.handleGetEquipment))
	route("PATCH /api/equipment/{id}", s.requireAdmin(s.handleUpdateEquipment))
	route("DELETE /api/equipment/{id}", s.requireAdmin(s.handleDeleteEquipment))
	route("POST /api/equipment/{id}/check", s.requireAuth(s.handleCheckEquipment))
	route("POST /api/equipment/reset", s.requireAdmin(s.handleResetStocktake))

	// Consumables
	route("GET /api/consumables", s.requireAuth(s.handleListConsumables))
	route("POST /api/consumables", s.requireAdmin(s.handleCreateConsumable))
	route("GET /api/consumables/{id}", s.requireAuth(s.handleGetConsumable))
	route("PATCH /api/consumables/{id}", s.requireAdmin(s.handleUpdateConsumable))
	route("DELETE /api/consumables/{id}", s.requireAdmin(s.handleDeleteConsumable))
	route("POST /api/consumables/{id}/adjust", s.requireAuth(s.handleAdjustConsumable))

	// Feedback
	route("GET /api/feedback", s.requireAuth(s.handleListFeedback))
	route("POST /api/feedback", s.requireAuth(s.handleCreateFeedback))

	// Admin: snapshot and notification log
	route("GET /api/export", s.requireAdmin(s.handleExport))
	route("POST /api/import", s.requireAdmin(s.handleImport))
	route("GET /api/notifications", s.requireAdmin(s.handleListNotifications))

	// Webhook form of the notifier
	route("POST /api/hooks/low-stock", s.handleLowStockHook)

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", s.metrics.handler())

	return s.logRequests(mux)
}

// handleHealthz answers liveness probes.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
