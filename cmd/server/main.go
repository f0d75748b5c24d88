package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/docqa/internal/api"
	"github.com/dgallion1/docqa/internal/app"
	"github.com/dgallion1/docqa/internal/config"
	"github.com/dgallion1/docqa/internal/logger"
	"github.com/dgallion1/docqa/internal/memory"
	"github.com/dgallion1/docqa/internal/pipeline"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintln(os.Stderr, "load configuration:", err)
		os.Exit(1)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logCfg := logger.DefaultConfig()
	logCfg.Level = level
	if cfg.LogFormat != "" {
		logCfg.Format = cfg.LogFormat
	}
	log := logger.New(logCfg)

	a, err := app.New(cfg, log)
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	index, err := a.OpenIndex()
	if err != nil {
		log.Error("vector store unavailable", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, index, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(api.Deps{
		Orchestrator: orch,
		Index:        index,
		Chain:        a.Chain,
		Sessions:     memory.NewStore(),
		Chat:         api.ModelStats{Model: cfg.Model(), Stats: a.ChatStats},
		Embeddings:   api.ModelStats{Model: cfg.EmbeddingModel, Stats: a.EmbedStats},
	}, log, cfg)

	httpServer := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     srv,
		ReadTimeout: 30 * time.Second,
		// Streamed answers can outlast a fixed write deadline.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", "error", err)
		}

		orch.Stop()
	}()

	log.Info("starting docqa",
		"port", cfg.Port,
		"provider", cfg.Provider(),
		"chunks", index.Len(),
		"log_level", level.String(),
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	<-done
}
