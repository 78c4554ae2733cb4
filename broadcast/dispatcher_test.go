// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package broadcast

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/campusvote/livetally/live"
	"github.com/campusvote/livetally/models"
	"github.com/campusvote/livetally/tally"
)

type recordingConn struct {
	id   string
	role string
	fail bool

	mu     sync.Mutex
	events []live.Event
}

func (c *recordingConn) ID() string   { return c.id }
func (c *recordingConn) Role() string { return c.role }

func (c *recordingConn) Send(ev live.Event) error {
	if c.fail {
		return errors.New("connection closed")
	}
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
	return nil
}

func (c *recordingConn) names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.Name
	}
	return out
}

func (c *recordingConn) milestones() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []int
	for _, ev := range c.events {
		if m, ok := ev.Payload.(models.TurnoutMilestoneEvent); ok {
			out = append(out, m.Milestone)
		}
	}
	return out
}

func tallyAt(total, eligible int) models.Tally {
	return models.Tally{
		ElectionID:          "e1",
		TotalVotes:          total,
		TotalEligibleVoters: eligible,
		TurnoutPercentage:   tally.Turnout(total, eligible),
		Results:             map[string][]models.CandidateCount{},
	}
}

func newTestDispatcher(t *testing.T, mode string) (*Dispatcher, *live.Registry) {
	t.Helper()
	registry := live.NewRegistry()
	d, err := NewDispatcher(registry, nil, mode, nil)
	if err != nil {
		t.Fatalf("NewDispatcher failed: %v", err)
	}
	return d, registry
}

func TestMilestonesReachedMode(t *testing.T) {
	d, registry := newTestDispatcher(t, ModeReached)
	watcher := &recordingConn{id: "w", role: models.RoleVoter}
	registry.Join(watcher, "e1")

	// 10 eligible voters, six votes: 10%, 20%, ..., 60%
	for total := 1; total <= 6; total++ {
		d.OnVoteAccepted(models.Vote{}, tallyAt(total, 10))
	}

	if got := watcher.milestones(); !reflect.DeepEqual(got, []int{50}) {
		t.Errorf("Expected only milestone 50, got %v", got)
	}
	if d.LastMilestone("e1") != 50 {
		t.Errorf("Expected last milestone 50, got %d", d.LastMilestone("e1"))
	}
}

func TestMilestonesCrossedMode(t *testing.T) {
	d, registry := newTestDispatcher(t, ModeCrossed)
	watcher := &recordingConn{id: "w", role: models.RoleVoter}
	registry.Join(watcher, "e1")

	for total := 1; total <= 6; total++ {
		d.OnVoteAccepted(models.Vote{}, tallyAt(total, 10))
	}

	if got := watcher.milestones(); !reflect.DeepEqual(got, []int{25, 50}) {
		t.Errorf("Expected milestones [25 50], got %v", got)
	}
}

func TestCrossedModeSkipsJumpedThresholds(t *testing.T) {
	d, registry := newTestDispatcher(t, ModeCrossed)
	watcher := &recordingConn{id: "w", role: models.RoleVoter}
	registry.Join(watcher, "e1")

	// 4 eligible: 25% then straight to 100%
	d.OnVoteAccepted(models.Vote{}, tallyAt(1, 4))
	d.OnVoteAccepted(models.Vote{}, tallyAt(4, 4))

	if got := watcher.milestones(); !reflect.DeepEqual(got, []int{25, 100}) {
		t.Errorf("Expected milestones [25 100], got %v", got)
	}
}

func TestMilestoneAtMostOnce(t *testing.T) {
	d, registry := newTestDispatcher(t, ModeReached)
	watcher := &recordingConn{id: "w", role: models.RoleVoter}
	registry.Join(watcher, "e1")

	// 200 eligible: totals 49..52 all round to 25% or 26%
	for total := 49; total <= 52; total++ {
		d.OnVoteAccepted(models.Vote{}, tallyAt(total, 200))
	}

	if got := watcher.milestones(); !reflect.DeepEqual(got, []int{25}) {
		t.Errorf("Expected a single milestone 25, got %v", got)
	}
}

func TestStaleTallyDropped(t *testing.T) {
	d, registry := newTestDispatcher(t, ModeReached)
	watcher := &recordingConn{id: "w", role: models.RoleVoter}
	registry.Join(watcher, "e1")

	d.OnVoteAccepted(models.Vote{}, tallyAt(3, 10))
	d.OnVoteAccepted(models.Vote{}, tallyAt(2, 10))

	if got := len(watcher.names()); got != 1 {
		t.Errorf("Expected stale tally to be dropped, got %d events", got)
	}
}

func TestLiveResultsOnlyReachAdmins(t *testing.T) {
	d, registry := newTestDispatcher(t, ModeReached)
	voter := &recordingConn{id: "voter", role: models.RoleVoter}
	admin := &recordingConn{id: "admin", role: models.RoleAdmin}
	demoted := &recordingConn{id: "demoted", role: models.RoleAdmin}

	registry.Join(voter, "e1")
	registry.Join(admin, "e1")
	registry.SubscribeLiveResults(voter, "e1")
	registry.SubscribeLiveResults(admin, "e1")
	registry.SubscribeLiveResults(demoted, "e1")
	demoted.role = models.RoleVoter

	d.OnVoteAccepted(models.Vote{}, tallyAt(1, 10))

	if got := voter.names(); !reflect.DeepEqual(got, []string{models.EventVoteCast}) {
		t.Errorf("Voter expected only vote_cast, got %v", got)
	}
	if got := admin.names(); !reflect.DeepEqual(got, []string{models.EventVoteCast, models.EventLiveResultsUpdate}) {
		t.Errorf("Admin expected vote_cast and live_results_update, got %v", got)
	}
	if got := demoted.names(); len(got) != 0 {
		t.Errorf("Demoted connection should receive nothing, got %v", got)
	}
}

func TestFailingConnectionDoesNotStopDelivery(t *testing.T) {
	d, registry := newTestDispatcher(t, ModeReached)
	broken := &recordingConn{id: "a-broken", role: models.RoleVoter, fail: true}
	healthy := &recordingConn{id: "b-healthy", role: models.RoleVoter}
	registry.Join(broken, "e1")
	registry.Join(healthy, "e1")

	d.OnVoteAccepted(models.Vote{}, tallyAt(5, 10))

	if got := healthy.names(); !reflect.DeepEqual(got, []string{models.EventVoteCast, models.EventTurnoutMilestone}) {
		t.Errorf("Healthy connection expected vote_cast and turnout_milestone, got %v", got)
	}
}

func TestNewDispatcherValidation(t *testing.T) {
	tests := []struct {
		name       string
		thresholds []int
		mode       string
		wantErr    bool
	}{
		{"defaults", nil, "", false},
		{"custom sorted and deduped", []int{50, 10, 50}, ModeCrossed, false},
		{"zero threshold", []int{0}, ModeReached, true},
		{"over one hundred", []int{101}, ModeReached, true},
		{"unknown mode", nil, "sometimes", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDispatcher(live.NewRegistry(), tt.thresholds, tt.mode, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewDispatcher() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
