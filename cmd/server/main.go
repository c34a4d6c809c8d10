package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gyaneshwarpardhi/questionflow/internal/api"
	"github.com/gyaneshwarpardhi/questionflow/internal/config"
	"github.com/gyaneshwarpardhi/questionflow/internal/editor"
	"github.com/gyaneshwarpardhi/questionflow/internal/engine"
	"github.com/gyaneshwarpardhi/questionflow/internal/enrich"
	"github.com/gyaneshwarpardhi/questionflow/internal/store"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	cfgPath := flag.String("config", "configs/questionnaire.yaml", "Path to questionnaire YAML config")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// ── Load config ──────────────────────────────────────────────────────────
	loader, err := config.NewLoader(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	cfg := loader.Config()
	if err := config.Validate(cfg); err != nil {
		slog.Error("config validation failed", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Question store ────────────────────────────────────────────────────────
	var st store.Store
	if cfg.Store.Path != "" {
		db, err := store.Open(cfg.Store.Path)
		if err != nil {
			slog.Error("failed to open store", "path", cfg.Store.Path, "err", err)
			os.Exit(1)
		}
		defer db.Close()
		st = db
		if cfg.Store.Seed {
			if _, err := store.Seed(ctx, db, cfg.Questions); err != nil {
				slog.Error("failed to seed store", "err", err)
				os.Exit(1)
			}
		}
	} else {
		st = store.NewMemory(cfg.Questions)
		slog.Info("no store path configured, keeping question pool in memory")
	}

	// ── Initial flow ──────────────────────────────────────────────────────────
	questions, err := st.LoadAll(ctx)
	if err != nil {
		slog.Error("failed to load questions", "err", err)
		os.Exit(1)
	}
	flow, err := engine.Build(questions, cfg)
	if err != nil {
		slog.Error("failed to build flow", "err", err)
		os.Exit(1)
	}
	slog.Info("flow built", "questions", flow.Graph.Len(), "classification_entries", flow.Router.Len())

	// ── Engine, lookups, editor ──────────────────────────────────────────────
	eng := engine.New(flow, cfg.Engine)
	go eng.RunJanitor(ctx, time.Minute)

	lookups := enrich.NewService(ctx, enrich.FromTables(cfg.Lookups), enrich.Options{
		Workers:    cfg.Engine.LookupWorkers,
		QueueDepth: cfg.Engine.LookupQueueDepth,
		Timeout:    cfg.Engine.LookupTimeout(),
	})

	ed, err := editor.Open(ctx, st)
	if err != nil {
		slog.Error("failed to open editor session", "err", err)
		os.Exit(1)
	}
	if ws := ed.Warnings(); len(ws) > 0 {
		slog.Warn("question tree has layout warnings", "count", len(ws))
	}

	// ── Hot-reload watcher ────────────────────────────────────────────────────
	pub := api.NewPublisher(st, loader, eng, lookups)
	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.New(api.Deps{
		Engine:    eng,
		Editor:    ed,
		Lookups:   lookups,
		Loader:    loader,
		Publisher: pub,
	})
	srv := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	if ed.Dirty() {
		slog.Warn("discarding unsaved editor changes")
	}
	cancel() // stop janitor and lookup workers
	lookups.Drain()
	slog.Info("goodbye")
}
