// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Config Fields

  - Port: Server listen port (default: 3318)
  - DatabaseURL: SQL connection string or Mongo URI (required)
  - DatabaseType: sqlite, postgres or mongo (default: sqlite)
  - MongoDatabase: Mongo database name (default: campusvote)
  - TokenSecret: JWT signing secret (required)
  - Milestones: turnout thresholds (default: 25,50,75,100)
  - MilestoneMode: reached or crossed (default: reached)
  - WriteRetries: retries for transient ledger failures (default: 3)
  - WriteTimeout: timeout for one ledger write (default: 5s)
  - SendBuffer: outbound events queued per connection (default: 64)

# CLI Flags

	-p                Server port
	-d                Database URL
	-t                Database type
	-mongo-db         Mongo database name
	-token-secret     JWT secret
	-milestones       Turnout milestones
	-milestone-mode   reached | crossed
	-write-retries    Ledger write retries
	-write-timeout    Ledger write timeout
	-send-buffer      Per-connection queue size
	-env-file         dotenv file (default: .env)

# Environment Variables

Flags fall back to environment variables:

	PORT               → -p
	DATABASE_URL       → -d
	DATABASE_TYPE      → -t
	MONGO_DATABASE     → -mongo-db
	JWT_SECRET         → -token-secret
	TURNOUT_MILESTONES → -milestones
	MILESTONE_MODE     → -milestone-mode
	WRITE_RETRIES      → -write-retries
	WRITE_TIMEOUT      → -write-timeout
	SEND_BUFFER        → -send-buffer

CLI flags take precedence over environment variables. If the dotenv file
exists it is loaded first; variables already set in the environment are
not overwritten.

# Validation

ParseFlags returns an error if required values are missing or malformed:

  - DATABASE_URL must be provided
  - JWT_SECRET must be provided
  - milestones must be integers in 1..100
  - WRITE_TIMEOUT must be a positive duration
*/
package cliparse
