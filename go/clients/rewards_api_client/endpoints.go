package rewards_api_client

const (
	DefaultBaseURL = "https://api.swoon.dating/v1"

	DailyBonusEndpoint = "/rewards/daily-bonus"
	SpinWheelEndpoint  = "/rewards/spin"
)
