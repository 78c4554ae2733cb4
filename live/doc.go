// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package live keeps the per-election channel membership used for pushing
events to connected clients.

# Channels

Each election has two channels:

  - general: anyone who joined the election. Receives vote_cast and
    turnout_milestone events.
  - live results: admins only. Receives live_results_update events with
    the full per-candidate tally.

A connection may be in the channels of several elections at once. Leaving
an election removes the connection from both of its channels, and
OnDisconnect removes it from everything.

# Connections

The registry does not own sockets. It works with anything implementing
Conn; the socket package provides the websocket implementation and tests
use in-memory fakes.
*/
package live
