// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the campus election live tally server.

The server accepts votes, stores each one exactly once per voter and
election, keeps a running tally per election and pushes vote, result and
turnout milestone events to websocket subscribers.

# Starting the Server

The server requires environment variables or CLI flags for configuration:

	DATABASE_URL=./livetally.db JWT_SECRET=... go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..." -token-secret ...

A .env file in the working directory is loaded when present.

# Configuration

Required settings:

  - DATABASE_URL (-d): sqlite path, PostgreSQL URL or Mongo URI
  - JWT_SECRET (-token-secret): HS256 signing secret shared with the auth service

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite, postgres or mongo (default: sqlite)
  - MONGO_DATABASE (-mongo-db): database name for mongo (default: campusvote)
  - TURNOUT_MILESTONES (-milestones): default 25,50,75,100
  - MILESTONE_MODE (-milestone-mode): reached or crossed (default: reached)
  - WRITE_RETRIES (-write-retries): default 3
  - WRITE_TIMEOUT (-write-timeout): default 5s
  - SEND_BUFFER (-send-buffer): queued events per websocket (default: 64)

# Architecture

  - service: sequences a vote through ledger, tally and broadcast
  - ledger: vote validation and the one-vote-per-election write
  - tally: per-election counts, turnout and the live tally cache
  - broadcast: vote, result and milestone events
  - live: websocket channel membership
  - socket: websocket transport
  - sqlstore, mongostore, db: storage backends and schema
  - handlers, router, middleware: HTTP API
  - auth: token verification
  - cliparse: configuration parsing

See package documentation for each component.
*/
package main
