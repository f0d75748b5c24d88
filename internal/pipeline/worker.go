package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgallion1/docqa/internal/chunker"
	"github.com/dgallion1/docqa/internal/document"
	"github.com/dgallion1/docqa/internal/parser"
)

// Index is the part of the vector index ingestion writes to.
type Index interface {
	HasDocument(docID string) bool
	Add(ctx context.Context, chunks []document.Chunk) error
	Save(dir string) error
}

// Worker processes a single document job.
type Worker struct {
	index     Index
	log       *slog.Logger
	chunkCfg  chunker.Config
	parseOpts parser.Options

	storePath string
	saveMu    *sync.Mutex
}

func NewWorker(index Index, log *slog.Logger, chunkCfg chunker.Config, parseOpts parser.Options, storePath string, saveMu *sync.Mutex) *Worker {
	if saveMu == nil {
		saveMu = &sync.Mutex{}
	}
	return &Worker{
		index:     index,
		log:       log,
		chunkCfg:  chunkCfg,
		parseOpts: parseOpts,
		storePath: storePath,
		saveMu:    saveMu,
	}
}

func (w *Worker) fail(job *Job, phase, msg string) {
	job.AddError(msg)
	job.SetStatus(StatusFailed, phase)
}

// Process runs the full ingest pipeline for a job: parse, dedup, chunk,
// embed into the index, persist.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID, "filename", job.Filename)

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	docs, err := parser.ParseBytes(bytes.NewReader(job.FileData()), job.Filename, w.parseOpts)
	if err != nil {
		log.Error("parse failed", "error", err)
		w.fail(job, "parsing", fmt.Sprintf("parse: %s", err))
		return
	}
	job.SetDocuments(len(docs))

	// Phase 1.5: Dedup check
	if w.index.HasDocument(job.DocID) {
		log.Info("duplicate document, skipping")
		job.SetStatus(StatusDupSkipped, "dedup")
		return
	}
	for i := range docs {
		docs[i].Metadata.DocID = job.DocID
	}

	// Phase 2: Chunk
	job.SetStatus(StatusChunking, "chunking")
	chunks, err := chunker.SplitDocuments(docs, w.chunkCfg)
	if err != nil {
		log.Error("chunking failed", "error", err)
		w.fail(job, "chunking", fmt.Sprintf("chunk: %s", err))
		return
	}
	job.SetTotalChunks(len(chunks))
	log.Info("chunked document", "documents", len(docs), "chunks", len(chunks))

	if len(chunks) == 0 {
		log.Warn("no chunks produced")
		w.fail(job, "chunking", "no extractable content")
		return
	}

	// Phase 3: Embed and index
	job.SetStatus(StatusIndexing, "embedding")
	if err := w.index.Add(ctx, chunks); err != nil {
		log.Error("indexing failed", "error", err)
		w.fail(job, "embedding", fmt.Sprintf("index: %s", err))
		return
	}
	job.SetChunksIndexed(len(chunks))

	// Phase 4: Persist. The chunks stay searchable in memory even if this
	// fails; the next successful save writes them out.
	job.SetStatus(StatusIndexing, "saving")
	w.saveMu.Lock()
	err = w.index.Save(w.storePath)
	w.saveMu.Unlock()
	if err != nil {
		log.Error("save failed", "error", err)
		w.fail(job, "saving", fmt.Sprintf("save: %s", err))
		return
	}

	log.Info("ingest complete", "chunks", len(chunks))
	job.SetStatus(StatusCompleted, "done")
}
