package server

import (
	"errors"
	"io"
	"net/http"

	"stockroom/internal/types"
)

// EquipmentRequest is the request body for creating or editing an
// equipment item.
type EquipmentRequest struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Notes    string `json:"notes"`
}

func (s *Server) handleListEquipment(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := types.EquipmentFilter{
		Location: q.Get("location"),
		Status:   types.StocktakeStatus(q.Get("status")),
		Query:    q.Get("q"),
		SortBy:   q.Get("sort"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "unknown status filter")
		return
	}

	items, err := s.store.ListEquipment(r.Context(), filter)
	if err != nil {
		s.internalError(w, "failed to list equipment", err)
		return
	}
	if items == nil {
		items = []*types.EquipmentItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetEquipment(w http.ResponseWriter, r *http.Request) {
	item, err := s.store.GetEquipment(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storeError(w, "equipment not found", err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleCreateEquipment(w http.ResponseWriter, r *http.Request) {
	var req EquipmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "name is required")
		return
	}

	item := &types.EquipmentItem{
		Name:     req.Name,
		Location: req.Location,
		Notes:    req.Notes,
	}
	if err := s.store.CreateEquipment(r.Context(), item); err != nil {
		s.internalError(w, "failed to create equipment", err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleUpdateEquipment(w http.ResponseWriter, r *http.Request) {
	item, err := s.store.GetEquipment(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storeError(w, "equipment not found", err)
		return
	}

	// Partial update: absent fields keep their current values.
	req := EquipmentRequest{Name: item.Name, Location: item.Location, Notes: item.Notes}
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "name is required")
		return
	}

	item.Name = req.Name
	item.Location = req.Location
	item.Notes = req.Notes
	if err := s.store.UpdateEquipment(r.Context(), item); err != nil {
		s.storeError(w, "failed to update equipment", err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleDeleteEquipment(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteEquipment(r.Context(), r.PathValue("id")); err != nil {
		s.storeError(w, "equipment not found", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// CheckRequest marks an item during stocktake. Status defaults to
// checked when the body is empty.
type CheckRequest struct {
	Status types.StocktakeStatus `json:"status"`
}

func (s *Server) handleCheckEquipment(w http.ResponseWriter, r *http.Request) {
	req := CheckRequest{Status: types.StatusChecked}
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if !req.Status.Valid() {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "unknown stocktake status")
		return
	}

	user := userFrom(r.Context())
	item, err := s.store.CheckEquipment(r.Context(), r.PathValue("id"), req.Status, user.Username)
	if err != nil {
		s.storeError(w, "equipment not found", err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// ResetResponse reports how many rows a stocktake reset touched.
type ResetResponse struct {
	Reset int64 `json:"reset"`
}

func (s *Server) handleResetStocktake(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.ResetStocktake(r.Context())
	if err != nil {
		s.internalError(w, "failed to reset stocktake", err)
		return
	}
	writeJSON(w, http.StatusOK, ResetResponse{Reset: n})
}
