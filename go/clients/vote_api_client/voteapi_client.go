package vote_api_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/davidyun/swoon/go/clients"
	"github.com/davidyun/swoon/go/internal/models"
)

type VoteApiClient struct {
	*clients.BaseClient
}

func NewVoteApiClient(baseURL string) *VoteApiClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &VoteApiClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}
}

// VoteStatus is the authoritative answer for one candidate as seen by
// one viewer. VoteStats is keyed by category; HasVoted refers to the
// requested category only.
type VoteStatus struct {
	VoteStats map[models.VoteCategory]models.CategoryStats `json:"vote_stats"`
	HasVoted  bool                                         `json:"has_voted"`
}

type voteMutationResponse struct {
	Success bool `json:"success"`
}

// GetVoteStatus fetches the confirmed totals for a candidate and, when
// viewerID is non-empty, whether that viewer has voted in the category.
func (c *VoteApiClient) GetVoteStatus(ctx context.Context, candidateID, viewerID string, category models.VoteCategory) (*VoteStatus, error) {
	q := url.Values{}
	q.Set("candidate_id", candidateID)
	q.Set("category", string(category))
	if viewerID != "" {
		q.Set("viewer_id", viewerID)
	}

	body, err := c.Get(ctx, VoteStatusEndpoint+"?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var status VoteStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("failed to parse vote status response: %w", err)
	}
	return &status, nil
}

// CastVote records a vote by viewerID for candidateID in the category.
func (c *VoteApiClient) CastVote(ctx context.Context, viewerID, candidateID string, category models.VoteCategory) (bool, error) {
	return c.mutateVote(ctx, "POST", viewerID, candidateID, category)
}

// RetractVote removes the viewer's vote for the candidate in the category.
func (c *VoteApiClient) RetractVote(ctx context.Context, viewerID, candidateID string, category models.VoteCategory) (bool, error) {
	return c.mutateVote(ctx, "DELETE", viewerID, candidateID, category)
}

func (c *VoteApiClient) mutateVote(ctx context.Context, method, viewerID, candidateID string, category models.VoteCategory) (bool, error) {
	payload, err := json.Marshal(map[string]string{
		"viewer_id":    viewerID,
		"candidate_id": candidateID,
		"category":     string(category),
	})
	if err != nil {
		return false, fmt.Errorf("failed to marshal vote request: %w", err)
	}

	body, err := c.MakeRequest(ctx, method, VotesEndpoint, bytes.NewReader(payload))
	if err != nil {
		return false, err
	}

	var resp voteMutationResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return false, fmt.Errorf("failed to parse vote response: %w", err)
	}
	return resp.Success, nil
}
