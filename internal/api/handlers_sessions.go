package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	mem, ok := s.sessions.Get(id)
	if !ok {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"max_pairs":  mem.MaxPairs(),
		"messages":   mem.Messages(),
	})
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	s.sessions.Clear(id)
	writeJSON(w, http.StatusOK, map[string]string{"cleared": id})
}

func (s *Server) handleClearSessions(w http.ResponseWriter, r *http.Request) {
	n := s.sessions.Len()
	s.sessions.ClearAll()
	writeJSON(w, http.StatusOK, map[string]int{"cleared": n})
}
