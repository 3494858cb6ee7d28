package models

import "time"

// MembershipTier is the viewer's paid plan level.
type MembershipTier string

const (
	MembershipTierFree MembershipTier = "FREE"
	MembershipTierPlus MembershipTier = "PLUS"
	MembershipTierVIP  MembershipTier = "VIP"
)

// UserSnapshot is the durable local record of the last known
// authoritative user state. It is always written as a whole object so
// sibling fields survive partial updates.
type UserSnapshot struct {
	UserID           string         `json:"user_id"`
	Coins            int            `json:"coins"`
	VotePoints       int            `json:"vote_points"`
	MembershipTier   MembershipTier `json:"membership_tier"`
	LastDailyBonusAt *time.Time     `json:"last_daily_bonus_at,omitempty"`
	LastSpinAt       *time.Time     `json:"last_spin_at,omitempty"`
}

// Balance converts the snapshot into a displayed reward balance.
func (u UserSnapshot) Balance() RewardBalance {
	return RewardBalance{
		UserID:           u.UserID,
		Coins:            u.Coins,
		VotePoints:       u.VotePoints,
		LastDailyBonusAt: u.LastDailyBonusAt,
		LastSpinAt:       u.LastSpinAt,
	}
}
