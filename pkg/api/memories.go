package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wilhg/kit/pkg/errmodel"
	"github.com/wilhg/kit/pkg/memory"
)

type memoryRequest struct {
	Content    string  `json:"content"`
	Category   string  `json:"category"`
	Importance float64 `json:"importance"`
}

func (s *Server) memoryEnabled(w http.ResponseWriter, r *http.Request) bool {
	if s.memory == nil {
		errmodel.WriteHTTP(w, r, errmodel.NotFound("memory is not enabled", nil))
		return false
	}
	return true
}

// GET /api/memories
func (s *Server) listMemories(w http.ResponseWriter, r *http.Request) {
	if !s.memoryEnabled(w, r) {
		return
	}
	facts, err := s.memory.List(r.Context(), session(r))
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	if facts == nil {
		facts = []memory.Fact{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"memories": facts})
}

// POST /api/memories
func (s *Server) createMemory(w http.ResponseWriter, r *http.Request) {
	if !s.memoryEnabled(w, r) {
		return
	}
	var req memoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	f, err := s.memory.Remember(r.Context(), session(r), req.Content, req.Category, req.Importance)
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// PUT /api/memories/{id}
func (s *Server) updateMemory(w http.ResponseWriter, r *http.Request) {
	if !s.memoryEnabled(w, r) {
		return
	}
	var req memoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	f, err := s.memory.Update(r.Context(), session(r), chi.URLParam(r, "id"), req.Content, req.Category, req.Importance)
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// DELETE /api/memories/{id}
func (s *Server) deleteMemory(w http.ResponseWriter, r *http.Request) {
	if !s.memoryEnabled(w, r) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.memory.Forget(r.Context(), session(r), id); err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": id})
}
