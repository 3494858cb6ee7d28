package models

// VoteCategory identifies one independent tally a candidate competes in.
// A viewer may hold votes in several categories for the same candidate.
type VoteCategory string

const (
	VoteCategoryPopularity VoteCategory = "popularity_combined"
	VoteCategoryCharm      VoteCategory = "charm"
	VoteCategoryStyle      VoteCategory = "style"
)

// CategoryStats holds the authoritative counters for one category.
type CategoryStats struct {
	TotalVotes   int `json:"total_votes"`
	UniqueVoters int `json:"unique_voters"`
}

// VoteAggregate is the displayed vote state for one (candidate, category)
// pair. HasVoted is nil until the current viewer's own status is known.
// Aggregates are created implicitly on first fetch and only ever
// superseded, never deleted.
type VoteAggregate struct {
	CandidateID  string       `json:"candidate_id"`
	Category     VoteCategory `json:"category"`
	TotalVotes   int          `json:"total_votes"`
	UniqueVoters int          `json:"unique_voters"`
	HasVoted     *bool        `json:"has_voted,omitempty"`
}

// StatsPatch is a partial counter update carried by a push event. Only
// fields present in the payload replace the displayed values; absent
// fields leave the prior state untouched.
type StatsPatch struct {
	TotalVotes   *int `json:"total_votes,omitempty"`
	UniqueVoters *int `json:"unique_voters,omitempty"`
}

// VoteAction is the action carried by an entity-updated push event.
type VoteAction string

const (
	VoteActionCast    VoteAction = "cast"
	VoteActionRetract VoteAction = "retract"
)
