package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "docqa",
		Usage: "ask questions about your documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "YAML config file (defaults to $DOCQA_CONFIG)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "parse, chunk and index files into the vector store",
				ArgsUsage: "FILE...",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "rebuild",
						Usage: "discard the existing store and index only these files",
					},
				},
				Action: ingestAction,
			},
			{
				Name:      "ask",
				Usage:     "answer a question from the indexed documents",
				ArgsUsage: "QUESTION",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "k",
						Usage: "chunks to retrieve (defaults to RETRIEVAL_K)",
					},
					&cli.BoolFlag{
						Name:  "sources",
						Usage: "print the chunks the answer was based on",
					},
					&cli.BoolFlag{
						Name:  "stream",
						Usage: "print the answer as it is generated",
					},
				},
				Action: askAction,
			},
			{
				Name:   "status",
				Usage:  "show what the vector store holds",
				Action: statusAction,
			},
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
