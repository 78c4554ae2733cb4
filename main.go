// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/campusvote/livetally/broadcast"
	"github.com/campusvote/livetally/cliparse"
	"github.com/campusvote/livetally/db"
	"github.com/campusvote/livetally/ledger"
	"github.com/campusvote/livetally/live"
	"github.com/campusvote/livetally/middleware"
	"github.com/campusvote/livetally/mongostore"
	"github.com/campusvote/livetally/router"
	"github.com/campusvote/livetally/service"
	"github.com/campusvote/livetally/socket"
	"github.com/campusvote/livetally/sqlstore"
	"github.com/campusvote/livetally/tally"
)

const shutdownTimeout = 10 * time.Second

// voteStore is what both storage backends provide
type voteStore interface {
	ledger.Catalog
	ledger.Store
	router.Pinger
}

func main() {
	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("storage setup failed", "error", err, "type", cfg.DatabaseType)
		os.Exit(1)
	}
	defer closeStore()
	slog.Info("Storage ready", "type", cfg.DatabaseType)

	registry := live.NewRegistry()
	dispatcher, err := broadcast.NewDispatcher(registry, cfg.Milestones, cfg.MilestoneMode, slog.Default())
	if err != nil {
		slog.Error("invalid milestone configuration", "error", err)
		os.Exit(1)
	}

	svc := service.New(service.Deps{
		Catalog:    store,
		Store:      store,
		Engine:     tally.NewEngine(store, store, slog.Default()),
		Dispatcher: dispatcher,
		Registry:   registry,
		Logger:     slog.Default(),
	}, service.Config{
		WriteRetries: cfg.WriteRetries,
		WriteTimeout: cfg.WriteTimeout,
	})
	hub := socket.NewHub(registry, cfg.TokenSecret, cfg.SendBuffer, slog.Default())

	// Create server
	server := &http.Server{
		Handler:           middleware.CORS(router.NewRouter(svc, hub, store, cfg)),
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		// Wait for Ctrl-C or a failed listener
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed")
	}
}

// openStore connects the configured backend. SQL backends get their schema
// created on start.
func openStore(ctx context.Context, cfg cliparse.Config) (voteStore, func(), error) {
	switch cfg.DatabaseType {
	case "mongo":
		s, err := mongostore.Connect(ctx, cfg.DatabaseURL, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := s.Close(ctx); err != nil {
				slog.Warn("mongo disconnect failed", "error", err)
			}
		}
		return s, closeFn, nil

	case db.TypeSQLite, db.TypePostgres:
		conn, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("database connection failed: %w", err)
		}
		if err := db.CreateSchema(conn); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("schema creation failed: %w", err)
		}
		return sqlstore.New(conn), func() { conn.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unsupported database type %q", cfg.DatabaseType)
	}
}
