package push

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/davidyun/swoon/go/internal/models"
)

// Event is the wire shape of a push notification. Payload fields beyond
// the envelope are event-specific; for entity-updated events the stats
// map carries partial counter patches per category.
type Event struct {
	ID        string                                    `json:"id"`
	Name      EventName                                 `json:"name"`
	EntityID  string                                    `json:"entity_id"`
	Action    models.VoteAction                         `json:"action,omitempty"`
	ActorID   string                                    `json:"actor_id,omitempty"`
	VoteStats map[models.VoteCategory]models.StatsPatch `json:"vote_stats,omitempty"`
	Timestamp time.Time                                 `json:"timestamp"`
}

// ParseEvent decodes a raw transport frame into an Event.
func ParseEvent(data []byte) (*Event, error) {
	var evt Event
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, fmt.Errorf("unmarshal push event: %w", err)
	}
	if evt.Name == "" {
		return nil, fmt.Errorf("push event missing name")
	}
	return &evt, nil
}
