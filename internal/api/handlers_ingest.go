package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dgallion1/docqa/internal/parser"
	"github.com/dgallion1/docqa/internal/pipeline"
	"github.com/go-chi/chi/v5"
)

const maxUploadFiles = 20

// handleUpload accepts one or more files under the "files" (or "file") form
// field and queues an ingestion job per supported file.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*maxUploadFiles+10*1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := slices.Concat(r.MultipartForm.File["files"], r.MultipartForm.File["file"])
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}
	if len(files) > maxUploadFiles {
		jsonError(w, fmt.Sprintf("too many files (max %d)", maxUploadFiles), http.StatusBadRequest)
		return
	}

	results := make([]map[string]any, 0, len(files))
	for _, fh := range files {
		results = append(results, s.submitFile(fh))
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"jobs": results})
}

func (s *Server) submitFile(fh *multipart.FileHeader) map[string]any {
	filename := sanitizeFilename(fh.Filename)
	result := map[string]any{"filename": filename}

	if !parser.IsSupportedExtension(filename) {
		result["error"] = fmt.Sprintf("unsupported file type %q (supported: %s)",
			filepath.Ext(filename), strings.Join(parser.SupportedExtensions, ", "))
		return result
	}

	f, err := fh.Open()
	if err != nil {
		result["error"] = "failed to open file"
		return result
	}
	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
	f.Close()
	if err != nil {
		result["error"] = "failed to read file"
		return result
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		result["error"] = fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes)
		return result
	}

	job := pipeline.NewJob(filename, data)
	if err := s.orchestrator.Submit(job); err != nil {
		s.log.Warn("job rejected", "job_id", job.ID, "filename", filename, "error", err)
		result["job_id"] = job.ID
		result["error"] = err.Error()
		return result
	}

	snap := job.Snapshot()
	result["job_id"] = snap.ID
	result["doc_id"] = snap.DocID
	result["status"] = snap.Status
	result["poll_url"] = fmt.Sprintf("/api/ingest/%s/status", snap.ID)
	return result
}

func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func sanitizeFilename(name string) string {
	// Browsers on Windows may send full paths.
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
