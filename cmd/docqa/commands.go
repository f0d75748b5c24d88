package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/dgallion1/docqa/internal/app"
	"github.com/dgallion1/docqa/internal/chunker"
	"github.com/dgallion1/docqa/internal/config"
	"github.com/dgallion1/docqa/internal/document"
	"github.com/dgallion1/docqa/internal/llm"
	"github.com/dgallion1/docqa/internal/logger"
	"github.com/dgallion1/docqa/internal/parser"
	"github.com/dgallion1/docqa/internal/pipeline"
	"github.com/dgallion1/docqa/internal/rag"
	"github.com/dgallion1/docqa/internal/vectorindex"
)

// setup loads configuration and builds the clients. Logs go to stderr so
// stdout carries only answers and tables.
func setup(cmd *cli.Command) (*app.App, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logCfg := logger.DefaultConfig()
	logCfg.Level = level
	logCfg.Format = "text"
	logCfg.Output = os.Stderr
	return app.New(cfg, logger.New(logCfg))
}

func ingestAction(ctx context.Context, cmd *cli.Command) error {
	paths := cmd.Args().Slice()
	if len(paths) == 0 {
		return errors.New("ingest needs at least one file")
	}

	a, err := setup(cmd)
	if err != nil {
		return err
	}

	// A nil index means rebuild: the batch replaces the store.
	var index *vectorindex.Index
	if !cmd.Bool("rebuild") {
		if index, err = a.OpenIndex(); err != nil {
			return err
		}
	}
	return ingestFiles(ctx, index, a.Embedder, a.Config, a.Log, paths, cmd.Root().Writer)
}

// ingestFiles loads, chunks and embeds paths as one batch, then saves the
// store. It prints one line per file; a file that fails to load does not stop
// the others. When index is nil the store is rebuilt from this batch alone.
func ingestFiles(ctx context.Context, index *vectorindex.Index, emb llm.Embedder, cfg config.Config, log *slog.Logger, paths []string, out io.Writer) error {
	docs, failures := parser.LoadAll(paths, cfg.ParserOptions())
	failed := make(map[string]error, len(failures))
	for _, f := range failures {
		failed[f.Path] = f.Err
	}
	byPath := make(map[string][]document.Document)
	for _, d := range docs {
		byPath[d.Metadata.FilePath] = append(byPath[d.Metadata.FilePath], d)
	}

	// DocIDs hash the file bytes, the same way uploads are identified.
	ids := make(map[string]string)
	dups := make(map[string]bool)
	seen := make(map[string]bool)
	var keep []document.Document
	for _, path := range paths {
		if failed[path] != nil {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			failed[path] = err
			continue
		}
		id := pipeline.ContentHashHex(data)[:16]
		ids[path] = id
		if seen[id] || (index != nil && index.HasDocument(id)) {
			dups[path] = true
			continue
		}
		seen[id] = true
		for _, d := range byPath[path] {
			d.Metadata.DocID = id
			keep = append(keep, d)
		}
		delete(byPath, path)
	}

	chunks, err := chunker.SplitDocuments(keep, cfg.ChunkerConfig())
	if err != nil {
		return err
	}
	counts := make(map[string]int)
	for _, c := range chunks {
		counts[c.Metadata.FilePath]++
	}

	nFailed := 0
	for _, path := range paths {
		switch {
		case failed[path] != nil:
			fmt.Fprintf(out, "%s: %v\n", path, failed[path])
			nFailed++
		case dups[path]:
			fmt.Fprintf(out, "%s: already indexed (doc %s)\n", path, ids[path])
		case counts[path] == 0:
			fmt.Fprintf(out, "%s: no extractable content\n", path)
			nFailed++
		default:
			fmt.Fprintf(out, "%s: %d chunks (doc %s)\n", path, counts[path], ids[path])
		}
	}

	if len(chunks) == 0 {
		fmt.Fprintln(out, "nothing new to index; store unchanged")
	} else {
		if index == nil {
			index, err = vectorindex.Build(ctx, chunks, emb)
		} else {
			err = index.Add(ctx, chunks)
		}
		if err != nil {
			return err
		}
		if err := index.Save(cfg.VectorStorePath); err != nil {
			return err
		}
		log.Info("ingest complete", "files", len(paths), "chunks", len(chunks), "store", cfg.VectorStorePath)
		fmt.Fprintf(out, "%d chunks in store\n", index.Len())
	}

	if nFailed > 0 {
		return fmt.Errorf("%d of %d files failed", nFailed, len(paths))
	}
	return nil
}

func askAction(ctx context.Context, cmd *cli.Command) error {
	question := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if question == "" {
		return errors.New("ask needs a question")
	}

	a, err := setup(cmd)
	if err != nil {
		return err
	}
	index, err := a.OpenIndex()
	if err != nil {
		return err
	}

	k := a.Config.RetrievalK
	if cmd.IsSet("k") {
		k = int(cmd.Int("k"))
	}
	withSources := cmd.Bool("sources")
	out := cmd.Root().Writer

	var res *rag.Result
	if cmd.Bool("stream") {
		res, err = a.Chain.Stream(ctx, index, question, k, withSources, func(delta string) error {
			_, err := io.WriteString(out, delta)
			return err
		})
		fmt.Fprintln(out)
	} else {
		res, err = a.Chain.Answer(ctx, index, question, k, withSources)
		if err == nil {
			fmt.Fprintln(out, res.Answer)
		}
	}
	if err != nil {
		return err
	}

	if withSources && len(res.Sources) > 0 {
		fmt.Fprintln(out)
		printSources(out, res.Sources)
	}
	return nil
}

func printSources(out io.Writer, sources []rag.Source) {
	for i, src := range sources {
		label := src.Source
		if src.Page != "N/A" {
			label += ", page " + src.Page
		}
		fmt.Fprintf(out, "[%d] %s\n    %s\n", i+1, label, strings.ReplaceAll(src.Content, "\n", " "))
	}
}

func statusAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	return printStatus(cmd.Root().Writer, cfg.VectorStorePath)
}

// printStatus reads the store without an embedder; nothing here searches.
func printStatus(out io.Writer, dir string) error {
	if !vectorindex.Exists(dir) {
		fmt.Fprintf(out, "no vector store at %s\n", dir)
		return nil
	}
	index, err := vectorindex.Load(dir, nil)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "store:     %s\n", dir)
	fmt.Fprintf(out, "chunks:    %d\n", index.Len())
	fmt.Fprintf(out, "dimension: %d\n\n", index.Dimension())

	table := tablewriter.NewWriter(out)
	table.Header("Doc ID", "Source", "Chunks")
	for _, d := range index.Documents() {
		if err := table.Append(d.DocID, d.Source, strconv.Itoa(d.Chunks)); err != nil {
			return err
		}
	}
	return table.Render()
}
