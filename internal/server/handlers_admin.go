package server

import (
	"crypto/subtle"
	"net/http"

	"stockroom/internal/types"
)

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Export(r.Context())
	if err != nil {
		s.internalError(w, "export failed", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ImportResponse reports what a snapshot import loaded.
type ImportResponse struct {
	Equipment   int `json:"equipment"`
	Consumables int `json:"consumables"`
	Feedback    int `json:"feedback"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var snap types.Snapshot
	if err := decodeJSON(w, r, &snap); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "invalid snapshot JSON")
		return
	}

	if err := s.store.Import(r.Context(), &snap); err != nil {
		s.internalError(w, "import failed", err)
		return
	}
	writeJSON(w, http.StatusOK, ImportResponse{
		Equipment:   len(snap.Equipment),
		Consumables: len(snap.Consumables),
		Feedback:    len(snap.Feedback),
	})
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.ListNotifications(r.Context())
	if err != nil {
		s.internalError(w, "failed to list notifications", err)
		return
	}
	if recs == nil {
		recs = []*types.NotificationRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// LowStockHookRequest is the webhook body: the consumable that dropped.
type LowStockHookRequest struct {
	ConsumableID string `json:"consumable_id"`
}

// handleLowStockHook is the webhook form of the notifier. It is
// authorized by the shared hook secret (X-Hook-Secret) or an admin
// session. The same crossing and dedup rules apply: the hook only
// fires an email if the consumable is actually at-or-below minimum
// and nothing has gone out today.
func (s *Server) handleLowStockHook(w http.ResponseWriter, r *http.Request) {
	if !s.hookAuthorized(r) {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid hook credentials")
		return
	}

	var req LowStockHookRequest
	if err := decodeJSON(w, r, &req); err != nil || req.ConsumableID == "" {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "consumable_id is required")
		return
	}

	c, err := s.store.GetConsumable(r.Context(), req.ConsumableID)
	if err != nil {
		s.storeError(w, "consumable not found", err)
		return
	}
	if !c.LowStock() {
		writeJSON(w, http.StatusOK, map[string]bool{"triggered": false})
		return
	}

	result, err := s.notifier.Alert(r.Context(), c)
	if err != nil {
		s.internalError(w, "alert failed", err)
		return
	}
	if result.Outcome != "" {
		s.metrics.alerts.WithLabelValues(result.Outcome).Inc()
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) hookAuthorized(r *http.Request) bool {
	if secret := s.currentHookSecret(); secret != "" {
		given := r.Header.Get("X-Hook-Secret")
		if given != "" && subtle.ConstantTimeCompare([]byte(given), []byte(secret)) == 1 {
			return true
		}
	}
	if token := bearerToken(r); token != "" {
		user, err := s.auth.Authenticate(r.Context(), token)
		return err == nil && user.IsAdmin()
	}
	return false
}
