// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package socket is the websocket transport for live election events.

# Connecting

	GET /ws?token=<jwt>

The token may also be sent in the X-Auth-Token or Authorization header.
Handshakes without a valid token are refused.

# Client Messages

	{"type": "join_election",          "electionId": "..."}
	{"type": "leave_election",         "electionId": "..."}
	{"type": "subscribe_live_results", "electionId": "..."}

subscribe_live_results is ignored for non-admin callers. Malformed or
unknown messages are answered with an error event; the connection stays open.

# Server Messages

	{"event": "vote_cast",           "data": {...}}
	{"event": "live_results_update", "data": {...}}
	{"event": "turnout_milestone",   "data": {...}}
	{"event": "error",               "data": {"message": "..."}}

# Slow Clients

Each connection has a bounded queue drained by its own writer goroutine.
Send never blocks the dispatcher: when the queue is full the connection is
closed and removed from every channel. Clients reconnect and re-join.
*/
package socket
