// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/campusvote/livetally/domainerr"
	"github.com/campusvote/livetally/models"
)

// memSource is an in-memory Catalog and VoteLister
type memSource struct {
	mu         sync.Mutex
	election   models.Election
	candidates []models.Candidate
	votes      []models.Vote
	listCalls  atomic.Int32
	failList   bool
	started    chan struct{} // signalled when the first ListVotes has read
	release    chan struct{} // the first ListVotes waits on it when set
}

func (m *memSource) GetElection(ctx context.Context, id string) (models.Election, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id != m.election.ID {
		return models.Election{}, false, nil
	}
	return m.election, true, nil
}

func (m *memSource) GetCandidate(ctx context.Context, id string) (models.Candidate, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.candidates {
		if c.ID == id {
			return c, true, nil
		}
	}
	return models.Candidate{}, false, nil
}

func (m *memSource) ListCandidates(ctx context.Context, electionID string) ([]models.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Candidate, len(m.candidates))
	copy(out, m.candidates)
	return out, nil
}

func (m *memSource) ListVotes(ctx context.Context, electionID string) ([]models.Vote, error) {
	n := m.listCalls.Add(1)
	m.mu.Lock()
	if m.failList {
		m.mu.Unlock()
		return nil, domainerr.ErrStorageUnavailable
	}
	out := make([]models.Vote, len(m.votes))
	copy(out, m.votes)
	m.mu.Unlock()

	// Only the first read is held back, with the votes it already saw
	if m.release != nil && n == 1 {
		m.started <- struct{}{}
		<-m.release
	}
	return out, nil
}

func (m *memSource) add(v models.Vote) {
	m.mu.Lock()
	m.votes = append(m.votes, v)
	m.mu.Unlock()
}

func newSource(eligible int) *memSource {
	return &memSource{
		election: models.Election{
			ID:                  "e1",
			Status:              models.StatusActive,
			Positions:           []string{"President", "Secretary"},
			TotalEligibleVoters: eligible,
		},
		candidates: []models.Candidate{
			{ID: "c3", ElectionID: "e1", Position: "President", Name: "Carol"},
			{ID: "c1", ElectionID: "e1", Position: "President", Name: "Alice"},
			{ID: "c2", ElectionID: "e1", Position: "President", Name: "Bob"},
			{ID: "c4", ElectionID: "e1", Position: "Secretary", Name: "Dan"},
		},
	}
}

func vote(n int, candidateID, position string) models.Vote {
	return models.Vote{
		ID:          fmt.Sprintf("v%03d", n),
		ElectionID:  "e1",
		VoterID:     fmt.Sprintf("voter%d", n),
		CandidateID: candidateID,
		Position:    position,
	}
}

func TestTurnout(t *testing.T) {
	tests := []struct {
		name     string
		total    int
		eligible int
		want     int
	}{
		{"no eligible voters", 5, 0, 0},
		{"no votes", 0, 10, 0},
		{"one of ten", 1, 10, 10},
		{"one of eight rounds half up", 1, 8, 13},
		{"one of three", 1, 3, 33},
		{"two of three", 2, 3, 67},
		{"all voted", 10, 10, 100},
		{"more votes than eligible clamps", 12, 10, 100},
		{"negative eligible", 3, -1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Turnout(tt.total, tt.eligible); got != tt.want {
				t.Errorf("Turnout(%d, %d) = %d, want %d", tt.total, tt.eligible, got, tt.want)
			}
		})
	}
}

func TestComputeSeedsEveryCandidateInIDOrder(t *testing.T) {
	src := newSource(10)
	got := Compute(src.election, src.candidates, nil)

	if got.TotalVotes != 0 || got.TurnoutPercentage != 0 {
		t.Errorf("Expected empty tally, got %d votes at %d%%", got.TotalVotes, got.TurnoutPercentage)
	}

	pres := got.Results["President"]
	if len(pres) != 3 {
		t.Fatalf("Expected 3 presidential candidates, got %d", len(pres))
	}
	for i, id := range []string{"c1", "c2", "c3"} {
		if pres[i].CandidateID != id || pres[i].Votes != 0 {
			t.Errorf("Position %d: expected %s with 0 votes, got %+v", i, id, pres[i])
		}
	}
	if len(got.Results["Secretary"]) != 1 {
		t.Errorf("Expected one secretary candidate, got %d", len(got.Results["Secretary"]))
	}
}

func TestComputeAndApplyDeltaAgree(t *testing.T) {
	src := newSource(7)
	votes := []models.Vote{
		vote(1, "c2", "President"),
		vote(2, "c1", "President"),
		vote(3, "c2", "President"),
		vote(4, "c4", "Secretary"),
		vote(5, "c3", "President"),
	}

	full := Compute(src.election, src.candidates, votes)

	names := map[string]string{}
	for _, c := range src.candidates {
		names[c.ID] = c.Name
	}
	inc := Compute(src.election, src.candidates, nil)
	for _, v := range votes {
		inc = ApplyDelta(inc, v, names[v.CandidateID])
	}

	if !reflect.DeepEqual(full, inc) {
		t.Errorf("Incremental tally differs from full recompute:\nfull: %+v\ninc:  %+v", full, inc)
	}
	if full.TotalVotes != 5 {
		t.Errorf("Expected 5 votes, got %d", full.TotalVotes)
	}
	if full.TurnoutPercentage != 71 {
		t.Errorf("Expected 71%% turnout, got %d", full.TurnoutPercentage)
	}
}

func TestApplyDeltaDoesNotMutateInput(t *testing.T) {
	src := newSource(10)
	before := Compute(src.election, src.candidates, nil)
	_ = ApplyDelta(before, vote(1, "c1", "President"), "Alice")

	if before.TotalVotes != 0 || before.Results["President"][0].Votes != 0 {
		t.Errorf("ApplyDelta modified its input: %+v", before)
	}
}

func TestApplyDeltaUnknownCandidateInsertsSorted(t *testing.T) {
	src := newSource(10)
	got := ApplyDelta(Compute(src.election, src.candidates, nil), vote(1, "c0", "President"), "Zed")

	pres := got.Results["President"]
	if pres[0].CandidateID != "c0" || pres[0].Votes != 1 || pres[0].Name != "Zed" {
		t.Errorf("Expected c0 first with 1 vote, got %+v", pres[0])
	}
}

func TestLeaders(t *testing.T) {
	src := newSource(10)
	tl := Compute(src.election, src.candidates, []models.Vote{
		vote(1, "c1", "President"),
		vote(2, "c2", "President"),
		vote(3, "c3", "President"),
		vote(4, "c2", "President"),
		vote(5, "c1", "President"),
	})

	leaders := Leaders(tl)
	pres := leaders["President"]
	if len(pres) != 2 || pres[0].CandidateID != "c1" || pres[1].CandidateID != "c2" {
		t.Errorf("Expected tie between c1 and c2, got %+v", pres)
	}
	if len(leaders["Secretary"]) != 0 {
		t.Errorf("Expected no secretary leader without votes, got %+v", leaders["Secretary"])
	}
}

func TestDigestIgnoresOrder(t *testing.T) {
	a := []models.Vote{vote(1, "c1", "President"), vote(2, "c2", "President")}
	b := []models.Vote{a[1], a[0]}

	if Digest(a) != Digest(b) {
		t.Error("Digest should not depend on vote order")
	}
	if Digest(a) == Digest(a[:1]) {
		t.Error("Digest should change when votes change")
	}
}

func TestEngineUpdateMatchesRecompute(t *testing.T) {
	ctx := context.Background()
	src := newSource(4)
	engine := NewEngine(src, src, nil)

	if _, err := engine.Snapshot(ctx, "e1"); err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	var emitted []int
	for i, c := range []string{"c1", "c2", "c1"} {
		v := vote(i+1, c, "President")
		src.add(v)
		_, err := engine.Update(ctx, v, func(_ models.Vote, tl models.Tally) {
			emitted = append(emitted, tl.TotalVotes)
		})
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}

	if !reflect.DeepEqual(emitted, []int{1, 2, 3}) {
		t.Errorf("Expected emits in order 1,2,3, got %v", emitted)
	}

	cached, _ := engine.Snapshot(ctx, "e1")
	fresh := Compute(src.election, src.candidates, src.votes)
	if !reflect.DeepEqual(cached.Results, fresh.Results) || cached.TurnoutPercentage != 75 {
		t.Errorf("Cached tally %+v does not match recompute %+v", cached, fresh)
	}
}

func TestEngineUpdateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	src := newSource(10)
	engine := NewEngine(src, src, nil)

	v := vote(1, "c1", "President")
	src.add(v)

	// Cold cache: the recompute already sees the vote
	first, err := engine.Update(ctx, v, nil)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	second, err := engine.Update(ctx, v, nil)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if first.TotalVotes != 1 || second.TotalVotes != 1 {
		t.Errorf("Expected vote counted once, got %d then %d", first.TotalVotes, second.TotalVotes)
	}
}

func TestEngineRefreshesEligibleCount(t *testing.T) {
	ctx := context.Background()
	src := newSource(10)
	engine := NewEngine(src, src, nil)
	engine.Snapshot(ctx, "e1")

	src.mu.Lock()
	src.election.TotalEligibleVoters = 4
	src.mu.Unlock()

	v := vote(1, "c1", "President")
	src.add(v)
	got, err := engine.Update(ctx, v, nil)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got.TurnoutPercentage != 25 {
		t.Errorf("Expected 25%% with refreshed eligible count, got %d", got.TurnoutPercentage)
	}
}

func TestEngineUnknownElection(t *testing.T) {
	src := newSource(10)
	engine := NewEngine(src, src, nil)

	_, err := engine.Snapshot(context.Background(), "nope")
	if !errors.Is(err, domainerr.ErrElectionNotFound) {
		t.Errorf("Expected ErrElectionNotFound, got %v", err)
	}
}

func TestEngineInvalidateRecomputes(t *testing.T) {
	ctx := context.Background()
	src := newSource(10)
	engine := NewEngine(src, src, nil)
	engine.Snapshot(ctx, "e1")

	// Vote written behind the engine's back
	src.add(vote(1, "c4", "Secretary"))
	engine.Invalidate("e1")

	got, err := engine.Snapshot(ctx, "e1")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if got.TotalVotes != 1 {
		t.Errorf("Expected 1 vote after invalidate, got %d", got.TotalVotes)
	}
}

func TestEngineConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	src := newSource(100)
	engine := NewEngine(src, src, nil)
	engine.Snapshot(ctx, "e1")

	numVoters := 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	var emitted []int

	for i := 0; i < numVoters; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			v := vote(idx, []string{"c1", "c2", "c3"}[idx%3], "President")
			src.add(v)
			_, err := engine.Update(ctx, v, func(_ models.Vote, tl models.Tally) {
				mu.Lock()
				emitted = append(emitted, tl.TotalVotes)
				mu.Unlock()
			})
			if err != nil {
				t.Errorf("Update failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	// Emits run under the election lock, so totals never go backwards
	for i := 1; i < len(emitted); i++ {
		if emitted[i] < emitted[i-1] {
			t.Fatalf("Emit order regressed at %d: %v", i, emitted)
		}
	}

	got, _ := engine.Snapshot(ctx, "e1")
	if got.TotalVotes != numVoters || got.TurnoutPercentage != 50 {
		t.Errorf("Expected %d votes at 50%%, got %d at %d%%", numVoters, got.TotalVotes, got.TurnoutPercentage)
	}
}

func TestEngineSnapshotReturnsCopy(t *testing.T) {
	ctx := context.Background()
	src := newSource(10)
	engine := NewEngine(src, src, nil)

	first, _ := engine.Snapshot(ctx, "e1")
	first.Results["President"][0].Votes = 99

	second, _ := engine.Snapshot(ctx, "e1")
	if second.Results["President"][0].Votes != 0 {
		t.Error("Mutating a snapshot leaked into the engine cache")
	}
}

func TestEngineLoadFailure(t *testing.T) {
	src := newSource(10)
	src.failList = true
	engine := NewEngine(src, src, nil)

	_, err := engine.Snapshot(context.Background(), "e1")
	if !errors.Is(err, domainerr.ErrStorageUnavailable) {
		t.Errorf("Expected storage error, got %v", err)
	}
}

func TestEngineSnapshotSharesColdLoad(t *testing.T) {
	src := newSource(10)
	src.add(vote(1, "c1", "President"))
	src.started = make(chan struct{}, 1)
	src.release = make(chan struct{})
	engine := NewEngine(src, src, nil)

	const readers = 8
	var wg sync.WaitGroup
	results := make(chan models.Tally, readers)
	read := func() {
		defer wg.Done()
		tl, err := engine.Snapshot(context.Background(), "e1")
		if err != nil {
			t.Errorf("Snapshot failed: %v", err)
			return
		}
		results <- tl
	}

	wg.Add(1)
	go read()
	<-src.started

	// The load is in flight and holds no lock; later readers join it
	for i := 1; i < readers; i++ {
		wg.Add(1)
		go read()
	}
	time.Sleep(50 * time.Millisecond)
	close(src.release)
	wg.Wait()
	close(results)

	if n := src.listCalls.Load(); n != 1 {
		t.Errorf("Expected one shared ledger load, got %d", n)
	}
	for tl := range results {
		if tl.TotalVotes != 1 {
			t.Errorf("Expected 1 vote, got %d", tl.TotalVotes)
		}
	}
}

func TestEngineColdLoadYieldsToNewerTally(t *testing.T) {
	src := newSource(10)
	src.add(vote(1, "c1", "President"))
	src.started = make(chan struct{}, 1)
	src.release = make(chan struct{})
	engine := NewEngine(src, src, nil)

	done := make(chan models.Tally)
	go func() {
		tl, err := engine.Snapshot(context.Background(), "e1")
		if err != nil {
			t.Errorf("Snapshot failed: %v", err)
		}
		done <- tl
	}()
	<-src.started

	// A vote lands while the cold load is still reading the ledger
	v2 := vote(2, "c2", "President")
	src.add(v2)
	if _, err := engine.Update(context.Background(), v2, nil); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	close(src.release)

	if tl := <-done; tl.TotalVotes != 2 {
		t.Errorf("Expected the stale load to yield to the newer tally, got %d votes", tl.TotalVotes)
	}
	if tl, _ := engine.Snapshot(context.Background(), "e1"); tl.TotalVotes != 2 {
		t.Errorf("Expected cached tally with 2 votes, got %d", tl.TotalVotes)
	}
}
