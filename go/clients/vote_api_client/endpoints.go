package vote_api_client

const (
	DefaultBaseURL = "https://api.swoon.dating/v1"

	VoteStatusEndpoint = "/contest/votes/status"
	VotesEndpoint      = "/contest/votes"
)
