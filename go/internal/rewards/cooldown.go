package rewards

import (
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// DailyBonusCooldown is how long after a claim the next daily
	// bonus unlocks.
	DailyBonusCooldown = 24 * time.Hour

	// SpinCooldown is how long after a spin the wheel re-arms.
	SpinCooldown = 8 * time.Hour
)

// Eligibility computes reward cooldown deadlines. Deadline math is a
// pure function of the last action time against the injected clock, so
// countdown rendering can be unit tested without wall-clock waits.
type Eligibility struct {
	clock    clockwork.Clock
	cooldown time.Duration
}

func NewEligibility(clock clockwork.Clock, cooldown time.Duration) Eligibility {
	return Eligibility{clock: clock, cooldown: cooldown}
}

// Remaining returns how long until the action unlocks. Zero means the
// action is available now; a nil lastAt means it was never taken.
func (e Eligibility) Remaining(lastAt *time.Time) time.Duration {
	if lastAt == nil {
		return 0
	}
	remaining := lastAt.Add(e.cooldown).Sub(e.clock.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Eligible reports whether the action can be taken now.
func (e Eligibility) Eligible(lastAt *time.Time) bool {
	return e.Remaining(lastAt) == 0
}
