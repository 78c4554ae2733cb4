// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/campusvote/livetally/cliparse"
	"github.com/campusvote/livetally/handlers"
	"github.com/campusvote/livetally/middleware"
	"github.com/campusvote/livetally/models"
	"github.com/campusvote/livetally/service"
	"github.com/campusvote/livetally/socket"
)

const healthTimeout = 2 * time.Second

// Pinger reports whether the vote store is reachable
type Pinger interface {
	Ping(ctx context.Context, timeout time.Duration) error
}

func NewRouter(svc *service.Service, hub *socket.Hub, store Pinger, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	votingHandler := handlers.NewVotingHandler(svc)
	resultsHandler := handlers.NewResultsHandler(svc)

	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(middleware.RequireAuth(cfg.TokenSecret, next))
	}
	admin := func(next http.HandlerFunc) http.HandlerFunc {
		return authed(middleware.RequireRole(models.RoleAdmin, next))
	}

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context(), healthTimeout); err != nil {
			slog.Warn("health check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("UNAVAILABLE"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Voting operations
	mux.HandleFunc("POST /api/voting/cast-vote", authed(votingHandler.CastVote))
	mux.HandleFunc("GET /api/voting/status/{electionId}", authed(votingHandler.VoteStatus))
	mux.HandleFunc("GET /api/voting/history", authed(votingHandler.History))

	// Results
	mux.HandleFunc("GET /api/analytics/live/{electionId}", authed(resultsHandler.LiveTally))
	mux.HandleFunc("GET /api/voting/results/{electionId}", admin(resultsHandler.Results))

	// Live events
	mux.Handle("GET /ws", hub.Handler())

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("livetally API v1"))
	})

	return mux
}
