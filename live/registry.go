// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package live

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/campusvote/livetally/models"
)

// Event is one message pushed to a connection.
type Event struct {
	Name    string      `json:"event"`
	Payload interface{} `json:"data"`
}

// Conn is a live connection. Send must not block; a connection that cannot
// keep up returns an error.
type Conn interface {
	ID() string
	Role() string
	Send(Event) error
}

// Registry tracks which connections watch which election. Every election
// has a general channel and an admin-only live results channel.
type Registry struct {
	mu      sync.RWMutex
	general map[string]map[string]Conn // election -> conn id -> conn
	live    map[string]map[string]Conn
	joined  map[string]map[string]struct{} // conn id -> elections
}

func NewRegistry() *Registry {
	return &Registry{
		general: make(map[string]map[string]Conn),
		live:    make(map[string]map[string]Conn),
		joined:  make(map[string]map[string]struct{}),
	}
}

// Join adds conn to the election's general channel. Joining twice is a no-op.
func (r *Registry) Join(conn Conn, electionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	add(r.general, electionID, conn)
	r.track(conn.ID(), electionID)
	slog.Debug("connection joined election", "conn_id", conn.ID(), "election_id", electionID)
}

// Leave removes conn from both channels of an election.
func (r *Registry) Leave(conn Conn, electionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.leaveLocked(conn.ID(), electionID)
}

// SubscribeLiveResults adds conn to the election's live results channel.
// Only admins are admitted; it reports whether the subscription happened.
func (r *Registry) SubscribeLiveResults(conn Conn, electionID string) bool {
	if conn.Role() != models.RoleAdmin {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	add(r.live, electionID, conn)
	r.track(conn.ID(), electionID)
	return true
}

// OnDisconnect drops conn from every channel it was in.
func (r *Registry) OnDisconnect(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for electionID := range r.joined[conn.ID()] {
		r.leaveLocked(conn.ID(), electionID)
	}
	delete(r.joined, conn.ID())
}

func (r *Registry) leaveLocked(connID, electionID string) {
	remove(r.general, electionID, connID)
	remove(r.live, electionID, connID)

	if elections, ok := r.joined[connID]; ok {
		delete(elections, electionID)
		if len(elections) == 0 {
			delete(r.joined, connID)
		}
	}
}

func (r *Registry) track(connID, electionID string) {
	elections, ok := r.joined[connID]
	if !ok {
		elections = make(map[string]struct{})
		r.joined[connID] = elections
	}
	elections[electionID] = struct{}{}
}

// General returns the members of an election's general channel ordered by id.
func (r *Registry) General(electionID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return members(r.general[electionID])
}

// LiveResults returns the members of an election's live results channel
// ordered by id.
func (r *Registry) LiveResults(electionID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return members(r.live[electionID])
}

// Counts returns the sizes of an election's general and live results channels.
func (r *Registry) Counts(electionID string) (general, live int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.general[electionID]), len(r.live[electionID])
}

func add(channels map[string]map[string]Conn, electionID string, conn Conn) {
	set, ok := channels[electionID]
	if !ok {
		set = make(map[string]Conn)
		channels[electionID] = set
	}
	set[conn.ID()] = conn
}

func remove(channels map[string]map[string]Conn, electionID, connID string) {
	set, ok := channels[electionID]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(channels, electionID)
	}
}

func members(set map[string]Conn) []Conn {
	out := make([]Conn, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}
