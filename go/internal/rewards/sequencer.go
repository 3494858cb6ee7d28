// Package rewards executes reward-claim actions as single logical
// transactions from the client's perspective: one mutating round trip
// plus baseline capture, confirmed-total application, snapshot
// persistence, and change signaling.
package rewards

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/davidyun/swoon/go/clients/rewards_api_client"
	"github.com/davidyun/swoon/go/internal/models"
	"github.com/davidyun/swoon/go/internal/signal"
	"github.com/davidyun/swoon/go/internal/snapshot"
)

// ErrConcurrentAction rejects a claim while another claim for the same
// user is still in flight. The server offers no retry-safety guarantee,
// so re-entry is refused client-side.
var ErrConcurrentAction = errors.New("reward action already in flight")

// SecondaryFetchDelay is how long the sequencer waits before re-pulling
// an aggregate a prize touched. Server-side propagation of the
// secondary aggregate may lag the primary mutation's response.
const SecondaryFetchDelay = 500 * time.Millisecond

// RewardsAPI defines what the sequencer needs from the rewards client.
type RewardsAPI interface {
	ClaimDailyBonus(ctx context.Context, userID string) (*rewards_api_client.DailyBonusResult, error)
	SpinWheel(ctx context.Context, userID string) (*rewards_api_client.SpinResult, error)
}

// Sequencer orchestrates reward-claim actions. One sequencer is shared
// per process; the in-flight map is keyed by user so claims for
// different users do not serialize.
type Sequencer struct {
	api   RewardsAPI
	store snapshot.Store
	bus   *signal.Bus
	clock clockwork.Clock

	// baseCtx bounds scheduled follow-up work. The delayed secondary
	// fetch outlives the claim call that scheduled it, so it cannot run
	// on a request-scoped context; it stops with the process instead.
	baseCtx context.Context

	// refreshVotes is the optional secondary reconciliation hook,
	// called after a prize that changes vote-aggregate values.
	refreshVotes func(ctx context.Context)

	inFlightMu sync.Mutex
	inFlight   map[string]bool
}

// NewSequencer creates a sequencer. ctx is the process lifetime for
// scheduled follow-up work; refreshVotes may be nil when no vote
// aggregate is mounted.
func NewSequencer(ctx context.Context, api RewardsAPI, store snapshot.Store, bus *signal.Bus, clock clockwork.Clock, refreshVotes func(ctx context.Context)) *Sequencer {
	return &Sequencer{
		api:          api,
		store:        store,
		bus:          bus,
		clock:        clock,
		baseCtx:      ctx,
		refreshVotes: refreshVotes,
		inFlight:     make(map[string]bool),
	}
}

// ClaimDailyBonus claims the daily coin bonus and returns the confirmed
// balance. On any failure no local state changes.
func (s *Sequencer) ClaimDailyBonus(ctx context.Context, userID string) (models.RewardBalance, error) {
	if !s.begin(userID) {
		return models.RewardBalance{}, ErrConcurrentAction
	}
	defer s.end(userID)

	// Baseline is a fallback only, never the value shown on success.
	baseline := s.baseline(userID)

	result, err := s.api.ClaimDailyBonus(ctx, userID)
	if err != nil {
		return models.RewardBalance{}, fmt.Errorf("daily bonus claim failed: %w", err)
	}
	if !result.Success {
		return models.RewardBalance{}, fmt.Errorf("daily bonus claim rejected")
	}

	// Server total wins whenever present, even if it disagrees with
	// baseline + bonus.
	if result.TotalCoins != nil {
		baseline.Coins = *result.TotalCoins
	} else {
		baseline.Coins += result.BonusAmount
		log.Warn().
			Str("user_id", userID).
			Int("bonus_amount", result.BonusAmount).
			Msg("server omitted total coins, using baseline fallback")
	}
	now := s.clock.Now()
	baseline.LastDailyBonusAt = &now

	s.commit(baseline)
	return baseline.Balance(), nil
}

// SpinWheel spins the reward wheel, returning the prize and confirmed
// balance. Prizes that grant vote points schedule a short-delayed
// secondary vote fetch rather than waiting for a push echo.
func (s *Sequencer) SpinWheel(ctx context.Context, userID string) (models.Prize, models.RewardBalance, error) {
	if !s.begin(userID) {
		return models.Prize{}, models.RewardBalance{}, ErrConcurrentAction
	}
	defer s.end(userID)

	baseline := s.baseline(userID)

	result, err := s.api.SpinWheel(ctx, userID)
	if err != nil {
		return models.Prize{}, models.RewardBalance{}, fmt.Errorf("wheel spin failed: %w", err)
	}
	if !result.Success {
		return models.Prize{}, models.RewardBalance{}, fmt.Errorf("wheel spin rejected")
	}

	prize := result.Prize

	if result.TotalCoins != nil {
		baseline.Coins = *result.TotalCoins
	} else if delta := prizeCoins(prize); delta > 0 {
		baseline.Coins += delta
		log.Warn().
			Str("user_id", userID).
			Str("prize_type", string(prize.Type)).
			Msg("server omitted total coins, using baseline fallback")
	}

	if result.TotalVotePoints != nil {
		baseline.VotePoints = *result.TotalVotePoints
	} else if delta := prizeVotePoints(prize); delta > 0 {
		baseline.VotePoints += delta
		log.Warn().
			Str("user_id", userID).
			Str("prize_type", string(prize.Type)).
			Msg("server omitted total vote points, using baseline fallback")
	}

	now := s.clock.Now()
	baseline.LastSpinAt = &now

	s.commit(baseline)

	if prize.GrantsVotePoints() && s.refreshVotes != nil {
		s.scheduleVoteRefresh()
	}

	return prize, baseline.Balance(), nil
}

// begin claims the per-user in-flight slot; false means a claim for the
// same user is already running.
func (s *Sequencer) begin(userID string) bool {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	if s.inFlight[userID] {
		return false
	}
	s.inFlight[userID] = true
	return true
}

func (s *Sequencer) end(userID string) {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	delete(s.inFlight, userID)
}

// baseline reads the cached user record, falling back to an empty
// record for first-time users.
func (s *Sequencer) baseline(userID string) models.UserSnapshot {
	var user models.UserSnapshot
	if !snapshot.Read(s.store, snapshot.UserKey, &user) || user.UserID != userID {
		user = models.UserSnapshot{
			UserID:         userID,
			MembershipTier: models.MembershipTierFree,
		}
	}
	return user
}

// commit persists the full merged record and notifies mounted
// components, so a restart shows the confirmed value and live views
// reconcile without a reload.
func (s *Sequencer) commit(user models.UserSnapshot) {
	snapshot.Write(s.store, snapshot.UserKey, user)
	s.bus.Emit(signal.TopicUserDataChanged, &user)
}

// scheduleVoteRefresh re-pulls vote aggregates after a propagation
// delay on the server side. Runs on baseCtx, not the claim's context:
// the claim response has usually been written before the delay elapses.
func (s *Sequencer) scheduleVoteRefresh() {
	timer := s.clock.NewTimer(SecondaryFetchDelay)
	go func() {
		defer timer.Stop()
		select {
		case <-timer.Chan():
			s.refreshVotes(s.baseCtx)
		case <-s.baseCtx.Done():
		}
	}()
}

func prizeCoins(p models.Prize) int {
	if p.Coins > 0 {
		return p.Coins
	}
	if p.Type == models.PrizeTypeCoins {
		return p.Amount
	}
	return 0
}

func prizeVotePoints(p models.Prize) int {
	if p.VotePoints > 0 {
		return p.VotePoints
	}
	if p.Type == models.PrizeTypeVotePoints {
		return p.Amount
	}
	return 0
}
