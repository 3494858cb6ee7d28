package rewards_api_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/davidyun/swoon/go/clients"
	"github.com/davidyun/swoon/go/internal/models"
)

type RewardsApiClient struct {
	*clients.BaseClient
}

func NewRewardsApiClient(baseURL string) *RewardsApiClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &RewardsApiClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}
}

// DailyBonusResult is the server's answer to a daily bonus claim.
// TotalCoins is a pointer because older backend versions omit it; the
// sequencer falls back to baseline + BonusAmount in that case.
type DailyBonusResult struct {
	Success     bool
	BonusAmount int
	TotalCoins  *int
}

type dailyBonusResponse struct {
	Success bool `json:"success"`
	Data    struct {
		BonusAmount int  `json:"bonus_amount"`
		TotalCoins  *int `json:"total_coins"`
	} `json:"data"`
}

// SpinResult is the server's answer to a reward wheel spin. The total
// fields are pointers for the same fallback reason as DailyBonusResult.
type SpinResult struct {
	Success         bool
	Prize           models.Prize
	TotalCoins      *int
	TotalVotePoints *int
}

type spinResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Prize           models.Prize `json:"prize"`
		TotalCoins      *int         `json:"total_coins"`
		TotalVotePoints *int         `json:"total_vote_points"`
	} `json:"data"`
}

// ClaimDailyBonus claims the viewer's once-per-day coin bonus.
func (c *RewardsApiClient) ClaimDailyBonus(ctx context.Context, userID string) (*DailyBonusResult, error) {
	body, err := c.postUser(ctx, DailyBonusEndpoint, userID)
	if err != nil {
		return nil, err
	}

	var resp dailyBonusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse daily bonus response: %w", err)
	}
	return &DailyBonusResult{
		Success:     resp.Success,
		BonusAmount: resp.Data.BonusAmount,
		TotalCoins:  resp.Data.TotalCoins,
	}, nil
}

// SpinWheel spins the reward wheel for the viewer.
func (c *RewardsApiClient) SpinWheel(ctx context.Context, userID string) (*SpinResult, error) {
	body, err := c.postUser(ctx, SpinWheelEndpoint, userID)
	if err != nil {
		return nil, err
	}

	var resp spinResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse spin response: %w", err)
	}
	return &SpinResult{
		Success:         resp.Success,
		Prize:           resp.Data.Prize,
		TotalCoins:      resp.Data.TotalCoins,
		TotalVotePoints: resp.Data.TotalVotePoints,
	}, nil
}

func (c *RewardsApiClient) postUser(ctx context.Context, endpoint, userID string) ([]byte, error) {
	payload, err := json.Marshal(map[string]string{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.Post(ctx, endpoint, bytes.NewReader(payload))
}
