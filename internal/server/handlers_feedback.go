package server

import (
	"net/http"
	"strings"

	"stockroom/internal/types"
)

// FeedbackRequest is the request body for POST /api/feedback.
type FeedbackRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleCreateFeedback(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "message is required")
		return
	}

	user := userFrom(r.Context())
	f := &types.Feedback{
		AuthorID: user.ID,
		Author:   user.Username,
		Message:  req.Message,
	}
	if err := s.store.CreateFeedback(r.Context(), f); err != nil {
		s.internalError(w, "failed to save feedback", err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// handleListFeedback returns all feedback for admins and only the
// caller's own notes for members.
func (s *Server) handleListFeedback(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var notes []*types.Feedback
	var err error
	if user.IsAdmin() {
		notes, err = s.store.ListFeedback(r.Context())
	} else {
		notes, err = s.store.ListFeedbackByAuthor(r.Context(), user.ID)
	}
	if err != nil {
		s.internalError(w, "failed to list feedback", err)
		return
	}
	if notes == nil {
		notes = []*types.Feedback{}
	}
	writeJSON(w, http.StatusOK, notes)
}
