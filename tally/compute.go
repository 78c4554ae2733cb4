// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"encoding/hex"
	"math"
	"sort"

	"golang.org/x/crypto/sha3"

	"github.com/campusvote/livetally/models"
)

// Turnout returns round(100 * totalVotes / eligible) clamped to [0, 100].
// Halves round away from zero; an election without eligible voters has 0 turnout.
func Turnout(totalVotes, eligible int) int {
	if eligible <= 0 || totalVotes <= 0 {
		return 0
	}
	pct := int(math.Round(100 * float64(totalVotes) / float64(eligible)))
	if pct > 100 {
		return 100
	}
	return pct
}

// Compute builds a tally from scratch. Every listed position and candidate
// appears, with zero votes if nobody picked them. Candidates inside a
// position are ordered by candidate id.
func Compute(election models.Election, candidates []models.Candidate, votes []models.Vote) models.Tally {
	t := models.Tally{
		ElectionID:          election.ID,
		TotalEligibleVoters: election.TotalEligibleVoters,
		Results:             make(map[string][]models.CandidateCount, len(election.Positions)),
	}
	for _, p := range election.Positions {
		t.Results[p] = []models.CandidateCount{}
	}

	names := make(map[string]string, len(candidates))
	for _, c := range candidates {
		if c.ElectionID != election.ID {
			continue
		}
		names[c.ID] = c.Name
		t.Results[c.Position], _ = entry(t.Results[c.Position], c.ID, c.Name)
	}

	for _, v := range votes {
		if v.ElectionID != election.ID {
			continue
		}
		count(&t, v, names[v.CandidateID])
	}

	t.TurnoutPercentage = Turnout(t.TotalVotes, t.TotalEligibleVoters)
	return t
}

// ApplyDelta returns a copy of t with one more vote counted. The input is
// not modified.
func ApplyDelta(t models.Tally, v models.Vote, candidateName string) models.Tally {
	next := Clone(t)
	count(&next, v, candidateName)
	next.TurnoutPercentage = Turnout(next.TotalVotes, next.TotalEligibleVoters)
	return next
}

func count(t *models.Tally, v models.Vote, name string) {
	if t.Results == nil {
		t.Results = make(map[string][]models.CandidateCount)
	}
	list, i := entry(t.Results[v.Position], v.CandidateID, name)
	list[i].Votes++
	t.Results[v.Position] = list
	t.TotalVotes++
}

// entry finds candidateID in list, inserting a zero entry at its sorted
// position when missing.
func entry(list []models.CandidateCount, candidateID, name string) ([]models.CandidateCount, int) {
	i := sort.Search(len(list), func(i int) bool { return list[i].CandidateID >= candidateID })
	if i < len(list) && list[i].CandidateID == candidateID {
		return list, i
	}

	list = append(list, models.CandidateCount{})
	copy(list[i+1:], list[i:])
	list[i] = models.CandidateCount{CandidateID: candidateID, Name: name}
	return list, i
}

// Clone deep-copies a tally.
func Clone(t models.Tally) models.Tally {
	out := t
	if t.Results != nil {
		out.Results = make(map[string][]models.CandidateCount, len(t.Results))
		for pos, list := range t.Results {
			cp := make([]models.CandidateCount, len(list))
			copy(cp, list)
			out.Results[pos] = cp
		}
	}
	return out
}

// Leaders returns, per position, every candidate holding the highest count.
// Ties are returned as-is; positions without votes have no leaders.
func Leaders(t models.Tally) map[string][]models.CandidateCount {
	leaders := make(map[string][]models.CandidateCount, len(t.Results))
	for pos, list := range t.Results {
		best := 0
		for _, c := range list {
			if c.Votes > best {
				best = c.Votes
			}
		}
		top := []models.CandidateCount{}
		if best > 0 {
			for _, c := range list {
				if c.Votes == best {
					top = append(top, c)
				}
			}
		}
		leaders[pos] = top
	}
	return leaders
}

// Digest hashes the ledger contents of an election so that two result
// snapshots can be compared for the same inputs.
func Digest(votes []models.Vote) string {
	sorted := make([]models.Vote, len(votes))
	copy(sorted, votes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	h := sha3.New256()
	for _, v := range sorted {
		h.Write([]byte(v.ID))
		h.Write([]byte{0})
		h.Write([]byte(v.CandidateID))
		h.Write([]byte{0})
		h.Write([]byte(v.Position))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
