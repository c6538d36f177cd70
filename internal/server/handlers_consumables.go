package server

import (
	"net/http"

	"go.uber.org/zap"

	"stockroom/internal/types"
)

// ConsumableRequest is the request body for creating or editing a
// consumable. Count is honored on create only; adjustments go through
// the adjust endpoint so crossings are never missed.
type ConsumableRequest struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Count    int    `json:"count"`
	Minimum  int    `json:"minimum"`
	Unit     string `json:"unit"`
}

func (s *Server) handleListConsumables(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := types.ConsumableFilter{
		Location: q.Get("location"),
		Query:    q.Get("q"),
		LowOnly:  q.Get("low") == "true",
		SortBy:   q.Get("sort"),
	}

	items, err := s.store.ListConsumables(r.Context(), filter)
	if err != nil {
		s.internalError(w, "failed to list consumables", err)
		return
	}
	if items == nil {
		items = []*types.Consumable{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetConsumable(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.GetConsumable(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storeError(w, "consumable not found", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCreateConsumable(w http.ResponseWriter, r *http.Request) {
	var req ConsumableRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "name is required")
		return
	}
	if req.Minimum < 0 || req.Count < 0 {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "count and minimum must be non-negative")
		return
	}

	c := &types.Consumable{
		Name:     req.Name,
		Location: req.Location,
		Count:    req.Count,
		Minimum:  req.Minimum,
		Unit:     req.Unit,
	}
	if err := s.store.CreateConsumable(r.Context(), c); err != nil {
		s.internalError(w, "failed to create consumable", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleUpdateConsumable(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.GetConsumable(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storeError(w, "consumable not found", err)
		return
	}

	req := ConsumableRequest{Name: c.Name, Location: c.Location, Minimum: c.Minimum, Unit: c.Unit}
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "name is required")
		return
	}
	if req.Minimum < 0 {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "minimum must be non-negative")
		return
	}

	c.Name = req.Name
	c.Location = req.Location
	c.Minimum = req.Minimum
	c.Unit = req.Unit
	if err := s.store.UpdateConsumable(r.Context(), c); err != nil {
		s.storeError(w, "failed to update consumable", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteConsumable(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteConsumable(r.Context(), r.PathValue("id")); err != nil {
		s.storeError(w, "consumable not found", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// AdjustRequest changes the on-hand count by a delta.
type AdjustRequest struct {
	Delta int `json:"delta"`
}

// AdjustResponse reports the counts and what the notifier did.
type AdjustResponse struct {
	Consumable *types.Consumable `json:"consumable"`
	Previous   int               `json:"previous"`
	Alert      any               `json:"alert,omitempty"`
}

func (s *Server) handleAdjustConsumable(w http.ResponseWriter, r *http.Request) {
	var req AdjustRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.Delta == 0 {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "delta must be non-zero")
		return
	}

	adj, err := s.store.AdjustConsumable(r.Context(), r.PathValue("id"), req.Delta)
	if err != nil {
		s.storeError(w, "consumable not found", err)
		return
	}

	resp := AdjustResponse{Consumable: adj.Consumable, Previous: adj.Previous}
	if result, err := s.notifier.HandleAdjustment(r.Context(), adj); err != nil {
		// Gate bookkeeping failed; the adjustment itself stands.
		s.logger.Error("low-stock gate failed", zap.Error(err))
	} else if result.Triggered {
		resp.Alert = result
		if result.Outcome != "" {
			s.metrics.alerts.WithLabelValues(result.Outcome).Inc()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
