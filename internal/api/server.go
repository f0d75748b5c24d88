package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dgallion1/docqa/internal/config"
	"github.com/dgallion1/docqa/internal/llm"
	"github.com/dgallion1/docqa/internal/memory"
	"github.com/dgallion1/docqa/internal/pipeline"
	"github.com/dgallion1/docqa/internal/rag"
	"github.com/dgallion1/docqa/internal/vectorindex"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// ModelStats pairs a model name with the latency stats of its client.
type ModelStats struct {
	Model string
	Stats *llm.Stats
}

// Deps are the components the HTTP surface drives.
type Deps struct {
	Orchestrator *pipeline.Orchestrator
	Index        *vectorindex.Index
	Chain        *rag.Chain
	Sessions     *memory.Store
	Chat         ModelStats
	Embeddings   ModelStats
}

// Server is the HTTP API server for docqa.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	index        *vectorindex.Index
	chain        *rag.Chain
	sessions     *memory.Store
	chat         ModelStats
	embeddings   ModelStats
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(deps Deps, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: deps.Orchestrator,
		index:        deps.Index,
		chain:        deps.Chain,
		sessions:     deps.Sessions,
		chat:         deps.Chat,
		embeddings:   deps.Embeddings,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/documents", s.handleUpload)
		r.Get("/documents", s.handleListDocuments)
		r.Get("/ingest/{jobID}/status", s.handleIngestStatus)

		r.Post("/ask", s.handleAsk)
		r.Post("/ask/stream", s.handleAskStream)

		r.Get("/sessions/{sessionID}", s.handleGetSession)
		r.Delete("/sessions/{sessionID}", s.handleClearSession)
		r.Delete("/sessions", s.handleClearSessions)

		r.Get("/stats/llm", s.handleLLMStats)
		r.Get("/config", s.handleConfig)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"chunks":      s.index.Len(),
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
