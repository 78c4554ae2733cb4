// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the live tally API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(svc, hub, store, cfg)

# Endpoints

Health (pings the vote store):

	GET /health

Voting (requires a token):

	POST /api/voting/cast-vote           - Cast a vote (voters only)
	GET  /api/voting/status/{electionId} - Has the caller voted?
	GET  /api/voting/history             - Caller's votes, newest first

Results:

	GET /api/analytics/live/{electionId} - Cached live tally (any caller)
	GET /api/voting/results/{electionId} - Fresh snapshot (admin only)

Live events:

	GET /ws?token=<jwt> - Websocket, see package socket

Tokens are read from the X-Auth-Token header, an Authorization bearer
header, or the token query parameter.
*/
package router
