package models

import (
	"sort"

	"healthtrack/pkg/domain"
)

// NotRanked is returned for owners without a participation in the challenge.
const NotRanked = -1

// Standing is one row of a leaderboard.
type Standing struct {
	Rank     int            `json:"rank"`
	OwnerID  domain.OwnerID `json:"owner_id"`
	Progress int            `json:"progress"`
}

// Popularity pairs a challenge with its participant count.
type Popularity struct {
	ChallengeID  domain.ChallengeID `json:"challenge_id"`
	Participants int                `json:"participants"`
}

// rankedBefore orders by progress descending, then owner ID ascending, so
// equal progress still yields one repeatable order.
func rankedBefore(a, b *Participation) bool {
	if a.Progress != b.Progress {
		return a.Progress > b.Progress
	}
	return a.OwnerID < b.OwnerID
}

// Standings ranks participations of a single challenge. The input is not
// modified.
func Standings(participations []*Participation) []Standing {
	sorted := make([]*Participation, len(participations))
	copy(sorted, participations)
	sort.Slice(sorted, func(i, j int) bool {
		return rankedBefore(sorted[i], sorted[j])
	})

	out := make([]Standing, len(sorted))
	for i, p := range sorted {
		out[i] = Standing{Rank: i + 1, OwnerID: p.OwnerID, Progress: p.Progress}
	}
	return out
}

// RankOf returns owner's 1-based rank, or NotRanked.
func RankOf(participations []*Participation, owner domain.OwnerID) int {
	var target *Participation
	for _, p := range participations {
		if p.OwnerID == owner {
			target = p
			break
		}
	}
	if target == nil {
		return NotRanked
	}
	rank := 1
	for _, p := range participations {
		if p != target && rankedBefore(p, target) {
			rank++
		}
	}
	return rank
}

// TopByPopularity returns the limit most joined challenges among ids. Ties
// are broken by ascending challenge ID. ids must already be deduplicated.
func TopByPopularity(ids []domain.ChallengeID, counts map[domain.ChallengeID]int, limit int) []Popularity {
	if limit <= 0 || len(ids) == 0 {
		return []Popularity{}
	}
	all := make([]Popularity, 0, len(ids))
	for _, id := range ids {
		all = append(all, Popularity{ChallengeID: id, Participants: counts[id]})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Participants != all[j].Participants {
			return all[i].Participants > all[j].Participants
		}
		return all[i].ChallengeID < all[j].ChallengeID
	})
	if limit < len(all) {
		all = all[:limit]
	}
	return all
}
