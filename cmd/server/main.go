package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/docanchor/internal/annotation"
	"github.com/dgallion1/docanchor/internal/annotation/badgerstore"
	"github.com/dgallion1/docanchor/internal/api"
	"github.com/dgallion1/docanchor/internal/config"
	"github.com/dgallion1/docanchor/internal/pathstore"
	"github.com/dgallion1/docanchor/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openAnnotationStore(cfg, log)
	if err != nil {
		log.Error("failed to open annotation store", "store", cfg.AnnotationStore, "error", err)
		os.Exit(1)
	}

	sessions := session.NewManager(session.Options{
		IDAttribute:          cfg.IDAttribute,
		ForeignClass:         cfg.ForeignClass,
		QuoteContext:         cfg.QuoteContext,
		PDFFallbackPdftotext: cfg.PDFFallbackPdftotext,
	}, cfg.SessionTTL, log)
	sessions.Start(ctx, cfg.CleanupInterval)

	// Initialize HTTP server.
	srv := api.NewServer(sessions, store, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		sessions.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		if err := store.Close(); err != nil {
			log.Error("close annotation store", "error", err)
		}
	}()

	log.Info("starting docanchor", "port", cfg.Port, "annotation_store", cfg.AnnotationStore)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

func openAnnotationStore(cfg config.Config, log *slog.Logger) (annotation.Store, error) {
	switch cfg.AnnotationStore {
	case "badger":
		bc := badgerstore.DefaultConfig(cfg.BadgerPath)
		if cfg.BadgerInMemory {
			bc = badgerstore.InMemoryConfig()
		}
		bc.Logger = log.With("component", "badger")
		return badgerstore.Open(bc)
	case "pathstore":
		return pathstore.NewStore(pathstore.NewClient(cfg.PathstoreURL, cfg.PathstoreAPIKey), "docanchor"), nil
	default:
		return nil, fmt.Errorf("unknown annotation store %q", cfg.AnnotationStore)
	}
}
