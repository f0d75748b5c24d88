package api

import (
	"net/http"

	"github.com/dgallion1/docqa/internal/parser"
)

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"chat": map[string]any{
			"model": s.chat.Model,
			"stats": s.chat.Stats.Snapshot(),
		},
		"embeddings": map[string]any{
			"model": s.embeddings.Model,
			"stats": s.embeddings.Stats.Snapshot(),
		},
	})
}

// handleConfig reports the active settings. Keys are never included.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"provider":         s.cfg.Provider(),
		"model":            s.cfg.Model(),
		"embedding_model":  s.cfg.EmbeddingModel,
		"chunk_size":       s.cfg.ChunkSize,
		"chunk_overlap":    s.cfg.ChunkOverlap,
		"retrieval_k":      s.cfg.RetrievalK,
		"memory_max_pairs": s.cfg.MemoryMaxPairs,
		"supported_types":  parser.SupportedExtensions,
	})
}
