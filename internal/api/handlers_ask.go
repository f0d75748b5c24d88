package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dgallion1/docqa/internal/errs"
	"github.com/dgallion1/docqa/internal/rag"
	"github.com/google/uuid"
)

type askRequest struct {
	Question    string `json:"question"`
	SessionID   string `json:"session_id,omitempty"`
	K           *int   `json:"k,omitempty"`
	WithSources bool   `json:"with_sources,omitempty"`
}

type askResponse struct {
	Answer    string       `json:"answer"`
	Sources   []rag.Source `json:"sources,omitempty"`
	SessionID string       `json:"session_id"`
}

// decodeAsk reads and normalizes an ask request. It writes the error
// response itself and returns false on failure.
func (s *Server) decodeAsk(w http.ResponseWriter, r *http.Request) (askRequest, int, bool) {
	var req askRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid json body: "+err.Error(), http.StatusBadRequest)
		return req, 0, false
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		jsonError(w, "question is required", http.StatusBadRequest)
		return req, 0, false
	}
	k := s.cfg.RetrievalK
	if req.K != nil {
		k = *req.K
	}
	if k <= 0 {
		jsonError(w, fmt.Sprintf("k must be positive, got %d", k), http.StatusBadRequest)
		return req, 0, false
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	return req, k, true
}

func (s *Server) remember(sessionID, question, answer string) {
	s.sessions.GetOrCreate(sessionID, s.cfg.MemoryMaxPairs).AddExchange(question, answer)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	req, k, ok := s.decodeAsk(w, r)
	if !ok {
		return
	}

	res, err := s.chain.Answer(r.Context(), s.index, req.Question, k, req.WithSources)
	if err != nil {
		s.answerError(w, err)
		return
	}
	s.remember(req.SessionID, req.Question, res.Answer)

	writeJSON(w, http.StatusOK, askResponse{
		Answer:    res.Answer,
		Sources:   res.Sources,
		SessionID: req.SessionID,
	})
}

// handleAskStream answers over server-sent events: unnamed data events carry
// answer fragments, then a "sources" event (when requested) and a "done"
// event. Failures before the first fragment get a normal JSON error.
func (s *Server) handleAskStream(w http.ResponseWriter, r *http.Request) {
	req, k, ok := s.decodeAsk(w, r)
	if !ok {
		return
	}

	sse := &sseWriter{w: w, rc: http.NewResponseController(w)}
	res, err := s.chain.Stream(r.Context(), s.index, req.Question, k, req.WithSources, func(delta string) error {
		return sse.event("", delta)
	})
	if err != nil {
		if !sse.started {
			s.answerError(w, err)
			return
		}
		s.log.Error("stream failed", "error", err)
		_ = sse.event("error", publicMessage(err))
		return
	}
	s.remember(req.SessionID, req.Question, res.Answer)

	if req.WithSources {
		sources, _ := json.Marshal(res.Sources)
		if err := sse.event("sources", string(sources)); err != nil {
			return
		}
	}
	done, _ := json.Marshal(map[string]string{"session_id": req.SessionID})
	_ = sse.event("done", string(done))
}

// sseWriter sends the event-stream headers on the first event.
type sseWriter struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	started bool
}

func (s *sseWriter) event(name, data string) error {
	if !s.started {
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}

	var b strings.Builder
	if name != "" {
		b.WriteString("event: ")
		b.WriteString(name)
		b.WriteByte('\n')
	}
	for _, line := range strings.Split(data, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	if _, err := s.w.Write([]byte(b.String())); err != nil {
		return err
	}
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

// answerError maps orchestrator errors to HTTP statuses. Provider details
// are logged, not returned.
func (s *Server) answerError(w http.ResponseWriter, err error) {
	var (
		cfgErr   *errs.ConfigurationError
		notFound *errs.StoreNotFoundError
	)
	switch {
	case errors.As(err, &cfgErr):
		jsonError(w, cfgErr.Error(), http.StatusBadRequest)
	case errors.As(err, &notFound):
		jsonError(w, "no documents have been indexed yet", http.StatusNotFound)
	default:
		s.log.Error("answer failed", "error", err)
		jsonError(w, publicMessage(err), statusFor(err))
	}
}

func statusFor(err error) int {
	var (
		embErr *errs.EmbeddingError
		genErr *errs.GenerationError
	)
	if errors.As(err, &embErr) || errors.As(err, &genErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func publicMessage(err error) string {
	if statusFor(err) == http.StatusBadGateway {
		return "could not generate an answer"
	}
	return "internal error"
}
