package api

import (
	"net/http"

	"github.com/dgallion1/docqa/internal/vectorindex"
)

// handleListDocuments lists indexed uploads with their chunk counts.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs := s.index.Documents()
	if docs == nil {
		docs = []vectorindex.DocumentInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documents":    docs,
		"total_chunks": s.index.Len(),
		"dimension":    s.index.Dimension(),
	})
}
