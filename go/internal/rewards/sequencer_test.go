package rewards

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/davidyun/swoon/go/clients/rewards_api_client"
	"github.com/davidyun/swoon/go/internal/models"
	"github.com/davidyun/swoon/go/internal/signal"
	"github.com/davidyun/swoon/go/internal/snapshot"
)

const testUser = "viewer-9"

type stubRewardsAPI struct {
	mu    sync.Mutex
	bonus *rewards_api_client.DailyBonusResult
	spin  *rewards_api_client.SpinResult
	err   error
	calls int

	// block, when non-nil, delays every call until closed.
	block chan struct{}
}

func (a *stubRewardsAPI) ClaimDailyBonus(ctx context.Context, userID string) (*rewards_api_client.DailyBonusResult, error) {
	a.mu.Lock()
	a.calls++
	block := a.block
	a.mu.Unlock()
	if block != nil {
		<-block
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	return a.bonus, nil
}

func (a *stubRewardsAPI) SpinWheel(ctx context.Context, userID string) (*rewards_api_client.SpinResult, error) {
	a.mu.Lock()
	a.calls++
	block := a.block
	a.mu.Unlock()
	if block != nil {
		<-block
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	return a.spin, nil
}

func (a *stubRewardsAPI) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func intPtr(v int) *int { return &v }

func seedSnapshot(store snapshot.Store, coins, votePoints int) {
	snapshot.Write(store, snapshot.UserKey, models.UserSnapshot{
		UserID:         testUser,
		Coins:          coins,
		VotePoints:     votePoints,
		MembershipTier: models.MembershipTierFree,
	})
}

func TestClaimDailyBonusServerTotalWins(t *testing.T) {
	store := snapshot.NewMemoryStore()
	seedSnapshot(store, 1000, 0)
	api := &stubRewardsAPI{bonus: &rewards_api_client.DailyBonusResult{
		Success:     true,
		BonusAmount: 500,
		// Disagrees with baseline + bonus on purpose.
		TotalCoins: intPtr(1700),
	}}
	clock := clockwork.NewFakeClock()

	seq := NewSequencer(context.Background(), api, store, signal.NewBus(), clock, nil)
	balance, err := seq.ClaimDailyBonus(context.Background(), testUser)
	require.NoError(t, err)
	require.Equal(t, 1700, balance.Coins)
	require.NotNil(t, balance.LastDailyBonusAt)
	require.True(t, balance.LastDailyBonusAt.Equal(clock.Now()))

	// The full merged record was persisted.
	var stored models.UserSnapshot
	require.True(t, snapshot.Read(store, snapshot.UserKey, &stored))
	require.Equal(t, 1700, stored.Coins)
	require.Equal(t, testUser, stored.UserID)
}

func TestClaimDailyBonusOmittedTotalFallsBackToBaseline(t *testing.T) {
	store := snapshot.NewMemoryStore()
	seedSnapshot(store, 1000, 0)
	api := &stubRewardsAPI{bonus: &rewards_api_client.DailyBonusResult{
		Success:     true,
		BonusAmount: 500,
	}}

	seq := NewSequencer(context.Background(), api, store, signal.NewBus(), clockwork.NewFakeClock(), nil)
	balance, err := seq.ClaimDailyBonus(context.Background(), testUser)
	require.NoError(t, err)
	require.Equal(t, 1500, balance.Coins)
}

func TestClaimDailyBonusFailureLeavesSnapshotUntouched(t *testing.T) {
	store := snapshot.NewMemoryStore()
	seedSnapshot(store, 1000, 2)
	api := &stubRewardsAPI{err: errors.New("boom")}
	bus := signal.NewBus()

	var signalled bool
	bus.AddListener(signal.TopicUserDataChanged, func(interface{}) { signalled = true })

	seq := NewSequencer(context.Background(), api, store, bus, clockwork.NewFakeClock(), nil)
	_, err := seq.ClaimDailyBonus(context.Background(), testUser)
	require.Error(t, err)
	require.False(t, signalled)

	var stored models.UserSnapshot
	require.True(t, snapshot.Read(store, snapshot.UserKey, &stored))
	require.Equal(t, 1000, stored.Coins)
	require.Nil(t, stored.LastDailyBonusAt)
}

func TestConcurrentClaimRejectedWithSingleCall(t *testing.T) {
	store := snapshot.NewMemoryStore()
	block := make(chan struct{})
	api := &stubRewardsAPI{
		bonus: &rewards_api_client.DailyBonusResult{Success: true, TotalCoins: intPtr(100)},
		block: block,
	}

	seq := NewSequencer(context.Background(), api, store, signal.NewBus(), clockwork.NewFakeClock(), nil)

	done := make(chan error, 1)
	go func() {
		_, err := seq.ClaimDailyBonus(context.Background(), testUser)
		done <- err
	}()
	require.Eventually(t, func() bool { return api.callCount() == 1 },
		time.Second, 5*time.Millisecond)

	// Second claim for the same user is refused before any network call.
	_, err := seq.ClaimDailyBonus(context.Background(), testUser)
	require.ErrorIs(t, err, ErrConcurrentAction)
	require.Equal(t, 1, api.callCount())

	// A different user is not serialized behind it.
	go func() {
		seq.ClaimDailyBonus(context.Background(), "other-user")
	}()
	require.Eventually(t, func() bool { return api.callCount() == 2 },
		time.Second, 5*time.Millisecond)

	close(block)
	require.NoError(t, <-done)

	// The slot frees up after completion.
	_, err = seq.ClaimDailyBonus(context.Background(), testUser)
	require.NoError(t, err)
}

func TestSpinWheelCoinsPrize(t *testing.T) {
	store := snapshot.NewMemoryStore()
	seedSnapshot(store, 200, 1)
	api := &stubRewardsAPI{spin: &rewards_api_client.SpinResult{
		Success:    true,
		Prize:      models.Prize{Type: models.PrizeTypeCoins, Amount: 50},
		TotalCoins: intPtr(250),
	}}
	clock := clockwork.NewFakeClock()
	bus := signal.NewBus()

	var got *models.UserSnapshot
	bus.AddListener(signal.TopicUserDataChanged, func(payload interface{}) {
		got, _ = payload.(*models.UserSnapshot)
	})

	seq := NewSequencer(context.Background(), api, store, bus, clock, nil)
	prize, balance, err := seq.SpinWheel(context.Background(), testUser)
	require.NoError(t, err)
	require.Equal(t, models.PrizeTypeCoins, prize.Type)
	require.Equal(t, 250, balance.Coins)
	require.Equal(t, 1, balance.VotePoints)
	require.NotNil(t, balance.LastSpinAt)

	require.NotNil(t, got)
	require.Equal(t, 250, got.Coins)
}

func TestSpinWheelNothingPrizeNoFallbackApplied(t *testing.T) {
	store := snapshot.NewMemoryStore()
	seedSnapshot(store, 200, 1)
	api := &stubRewardsAPI{spin: &rewards_api_client.SpinResult{
		Success: true,
		Prize:   models.Prize{Type: models.PrizeTypeNothing},
	}}

	seq := NewSequencer(context.Background(), api, store, signal.NewBus(), clockwork.NewFakeClock(), nil)
	_, balance, err := seq.SpinWheel(context.Background(), testUser)
	require.NoError(t, err)
	require.Equal(t, 200, balance.Coins)
	require.Equal(t, 1, balance.VotePoints)
}

func TestSpinWheelVotePointsPrizeSchedulesSecondaryRefresh(t *testing.T) {
	store := snapshot.NewMemoryStore()
	seedSnapshot(store, 200, 1)
	api := &stubRewardsAPI{spin: &rewards_api_client.SpinResult{
		Success:         true,
		Prize:           models.Prize{Type: models.PrizeTypeVotePoints, Amount: 3},
		TotalVotePoints: intPtr(4),
	}}
	clock := clockwork.NewFakeClock()

	var mu sync.Mutex
	refreshed := 0
	refresh := func(ctx context.Context) {
		mu.Lock()
		refreshed++
		mu.Unlock()
	}

	seq := NewSequencer(context.Background(), api, store, signal.NewBus(), clock, refresh)
	_, balance, err := seq.SpinWheel(context.Background(), testUser)
	require.NoError(t, err)
	require.Equal(t, 4, balance.VotePoints)

	// Not yet: the secondary fetch waits out the propagation delay.
	mu.Lock()
	require.Equal(t, 0, refreshed)
	mu.Unlock()

	clock.BlockUntil(1)
	clock.Advance(SecondaryFetchDelay)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return refreshed == 1
	}, time.Second, 5*time.Millisecond)
}

func TestSpinWheelRefreshStopsAtShutdown(t *testing.T) {
	store := snapshot.NewMemoryStore()
	api := &stubRewardsAPI{spin: &rewards_api_client.SpinResult{
		Success: true,
		Prize:   models.Prize{Type: models.PrizeTypeVotePoints, Amount: 3},
	}}
	clock := clockwork.NewFakeClock()

	refresh := func(ctx context.Context) {
		t.Error("refresh ran after shutdown")
	}

	ctx, cancel := context.WithCancel(context.Background())
	seq := NewSequencer(ctx, api, store, signal.NewBus(), clock, refresh)
	_, _, err := seq.SpinWheel(context.Background(), testUser)
	require.NoError(t, err)

	clock.BlockUntil(1)
	cancel()

	// Give the goroutine a beat to observe cancellation, then fire the
	// timer; the refresh hook must stay silent.
	time.Sleep(20 * time.Millisecond)
	clock.Advance(SecondaryFetchDelay)
	time.Sleep(20 * time.Millisecond)
}

func TestSpinWheelRefreshSurvivesRequestContext(t *testing.T) {
	store := snapshot.NewMemoryStore()
	seedSnapshot(store, 200, 1)
	api := &stubRewardsAPI{spin: &rewards_api_client.SpinResult{
		Success:         true,
		Prize:           models.Prize{Type: models.PrizeTypeVotePoints, Amount: 3},
		TotalVotePoints: intPtr(4),
	}}
	clock := clockwork.NewFakeClock()

	var mu sync.Mutex
	refreshed := 0
	refresh := func(ctx context.Context) {
		mu.Lock()
		refreshed++
		mu.Unlock()
	}

	seq := NewSequencer(context.Background(), api, store, signal.NewBus(), clock, refresh)

	// Drive the spin the way the agent's action endpoint does: the
	// claim runs on a request context that is cancelled as soon as the
	// response is written.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _, err := seq.SpinWheel(r.Context(), testUser)
		require.NoError(t, err)
	}))
	defer srv.Close()

	resp, err := http.Post(srv.URL, "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	// The scheduled refresh must still be waiting out the delay and
	// fire once it elapses.
	clock.BlockUntil(1)
	clock.Advance(SecondaryFetchDelay)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return refreshed == 1
	}, time.Second, 5*time.Millisecond)
}

func TestEligibilityRemaining(t *testing.T) {
	clock := clockwork.NewFakeClock()
	elig := NewEligibility(clock, SpinCooldown)

	require.True(t, elig.Eligible(nil))
	require.Equal(t, time.Duration(0), elig.Remaining(nil))

	last := clock.Now()
	require.False(t, elig.Eligible(&last))
	require.Equal(t, SpinCooldown, elig.Remaining(&last))

	clock.Advance(3 * time.Hour)
	require.Equal(t, 5*time.Hour, elig.Remaining(&last))

	clock.Advance(5 * time.Hour)
	require.True(t, elig.Eligible(&last))

	clock.Advance(time.Hour)
	require.Equal(t, time.Duration(0), elig.Remaining(&last))
}
