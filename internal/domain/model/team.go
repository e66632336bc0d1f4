// Package model contains domain models passed between layers.
package model

import "time"

// Member is one person on a team together with their self-reported
// share of the team's work.
type Member struct {
	ID     string  // unique within the team
	Weight float64 // contribution share in [0,1]; team weights sum to 1
}

// Team carries a group's raw score and the declared contribution weights
// of its members. Member order is irrelevant to the computation; identity
// is preserved in the results.
type Team struct {
	ID       string
	RawScore float64 // group score before redistribution, >= 0
	Members  []Member
}

// Size returns the number of members on the team.
func (t Team) Size() int { return len(t.Members) }

// MemberScore is the individual score computed for a single member. The
// declared weight travels with the score so downstream consumers (stats,
// archive, API responses) never need the original Team back.
type MemberScore struct {
	MemberID string
	Weight   float64
	Score    float64
	Capped   bool // true when the raw value exceeded the cap
}

// TeamResult is the complete outcome of scoring one team. A recomputation
// produces a fresh TeamResult; results are never mutated in place.
type TeamResult struct {
	TeamID       string
	SubmissionID string
	RawScore     float64
	Scores       []MemberScore
	ComputedAt   time.Time
}

// Submission is a scoring request flowing through the queue. SubmissionID
// is the idempotency key; two submissions with the same ID are processed
// at most once.
type Submission struct {
	SubmissionID string
	Team         Team
	ReceivedAt   time.Time
}
