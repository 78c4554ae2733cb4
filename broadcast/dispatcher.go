// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package broadcast

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/campusvote/livetally/live"
	"github.com/campusvote/livetally/models"
	"github.com/campusvote/livetally/tally"
)

// Milestone modes
const (
	ModeReached = "reached"
	ModeCrossed = "crossed"
)

// DefaultMilestones are the turnout thresholds used when none are configured.
var DefaultMilestones = []int{25, 50, 75, 100}

// Dispatcher turns accepted votes into channel events. It is called with
// tallies in order for each election and never blocks on a connection.
type Dispatcher struct {
	registry   *live.Registry
	thresholds []int
	mode       string
	logger     *slog.Logger
	now        func() time.Time

	mu       sync.Mutex
	progress map[string]*progress
}

type progress struct {
	lastTotal     int
	lastTurnout   int
	lastMilestone int
}

func NewDispatcher(registry *live.Registry, thresholds []int, mode string, logger *slog.Logger) (*Dispatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if mode == "" {
		mode = ModeReached
	}
	if mode != ModeReached && mode != ModeCrossed {
		return nil, fmt.Errorf("unknown milestone mode %q", mode)
	}
	if thresholds == nil {
		thresholds = DefaultMilestones
	}

	clean, err := normalize(thresholds)
	if err != nil {
		return nil, err
	}

	return &Dispatcher{
		registry:   registry,
		thresholds: clean,
		mode:       mode,
		logger:     logger,
		now:        time.Now,
		progress:   make(map[string]*progress),
	}, nil
}

// normalize sorts and dedupes thresholds, rejecting values outside 1..100
func normalize(thresholds []int) ([]int, error) {
	seen := make(map[int]bool, len(thresholds))
	out := make([]int, 0, len(thresholds))
	for _, th := range thresholds {
		if th < 1 || th > 100 {
			return nil, fmt.Errorf("milestone %d out of range 1..100", th)
		}
		if !seen[th] {
			seen[th] = true
			out = append(out, th)
		}
	}
	sort.Ints(out)
	return out, nil
}

// OnVoteAccepted emits vote_cast to the general channel, live_results_update
// to admins on the live results channel and, when a threshold is met for
// the first time, turnout_milestone to the general channel.
func (d *Dispatcher) OnVoteAccepted(vote models.Vote, t models.Tally) {
	d.mu.Lock()
	p, ok := d.progress[t.ElectionID]
	if !ok {
		p = &progress{lastTurnout: tally.Turnout(t.TotalVotes-1, t.TotalEligibleVoters)}
		d.progress[t.ElectionID] = p
	}
	if ok && t.TotalVotes < p.lastTotal {
		d.mu.Unlock()
		d.logger.Warn("dropping stale tally",
			"election_id", t.ElectionID,
			"total_votes", t.TotalVotes,
			"last_total", p.lastTotal,
		)
		return
	}
	milestone, fire := d.milestone(p, t.TurnoutPercentage)
	if fire {
		p.lastMilestone = milestone
	}
	p.lastTotal = t.TotalVotes
	p.lastTurnout = t.TurnoutPercentage
	d.mu.Unlock()

	ts := d.now().UTC()

	d.send(d.registry.General(t.ElectionID), live.Event{
		Name: models.EventVoteCast,
		Payload: models.VoteCastEvent{
			ElectionID:        t.ElectionID,
			TotalVotes:        t.TotalVotes,
			TurnoutPercentage: t.TurnoutPercentage,
			Timestamp:         ts,
		},
	}, t.ElectionID, "")

	d.send(d.registry.LiveResults(t.ElectionID), live.Event{
		Name: models.EventLiveResultsUpdate,
		Payload: models.LiveResultsEvent{
			ElectionID:        t.ElectionID,
			TotalVotes:        t.TotalVotes,
			TurnoutPercentage: t.TurnoutPercentage,
			Results:           t.Results,
			LastUpdated:       t.LastUpdated,
		},
	}, t.ElectionID, models.RoleAdmin)

	if fire {
		d.logger.Info("turnout milestone reached",
			"election_id", t.ElectionID,
			"milestone", milestone,
			"turnout", t.TurnoutPercentage,
		)
		d.send(d.registry.General(t.ElectionID), live.Event{
			Name: models.EventTurnoutMilestone,
			Payload: models.TurnoutMilestoneEvent{
				ElectionID:     t.ElectionID,
				Milestone:      milestone,
				CurrentTurnout: t.TurnoutPercentage,
				Timestamp:      ts,
			},
		}, t.ElectionID, "")
	}
}

func (d *Dispatcher) milestone(p *progress, turnout int) (int, bool) {
	best := 0
	for _, th := range d.thresholds {
		if th <= p.lastMilestone {
			continue
		}
		switch d.mode {
		case ModeCrossed:
			if th > p.lastTurnout && th <= turnout {
				best = th
			}
		default:
			if th == turnout {
				best = th
			}
		}
	}
	return best, best > 0
}

// send delivers ev to every conn, skipping those without requiredRole.
// A failing connection never stops delivery to the others.
func (d *Dispatcher) send(conns []live.Conn, ev live.Event, electionID, requiredRole string) {
	for _, c := range conns {
		if requiredRole != "" && c.Role() != requiredRole {
			continue
		}
		if err := c.Send(ev); err != nil {
			d.logger.Warn("failed to deliver event",
				"error", err,
				"event", ev.Name,
				"election_id", electionID,
				"conn_id", c.ID(),
			)
		}
	}
}

// LastMilestone returns the highest milestone emitted for an election, or 0.
func (d *Dispatcher) LastMilestone(electionID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.progress[electionID]; ok {
		return p.lastMilestone
	}
	return 0
}
