package models

import "time"

// RewardBalance is the viewer's confirmed reward state. It is mutated
// only by confirmed server responses; the local snapshot mirrors it but
// is never authoritative for an in-flight claim.
type RewardBalance struct {
	UserID           string     `json:"user_id"`
	Coins            int        `json:"coins"`
	VotePoints       int        `json:"vote_points"`
	LastDailyBonusAt *time.Time `json:"last_daily_bonus_at,omitempty"`
	LastSpinAt       *time.Time `json:"last_spin_at,omitempty"`
}

// PrizeType classifies what a spin of the reward wheel granted.
type PrizeType string

const (
	PrizeTypeCoins      PrizeType = "coins"
	PrizeTypeVotePoints PrizeType = "vote_points"
	PrizeTypeNothing    PrizeType = "nothing"
)

// Prize describes a single reward-wheel outcome.
type Prize struct {
	Type       PrizeType `json:"type"`
	Amount     int       `json:"amount,omitempty"`
	Coins      int       `json:"coins,omitempty"`
	VotePoints int       `json:"vote_points,omitempty"`
}

// GrantsVotePoints reports whether applying this prize changes a value
// owned by a vote aggregate rather than the coin balance.
func (p Prize) GrantsVotePoints() bool {
	return p.Type == PrizeTypeVotePoints || p.VotePoints > 0
}
