package snapshot

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// Well-known snapshot keys. Each owner writes only the keys it owns,
// and always writes the full merged object.
const (
	UserKey = "user"
)

// Store is the key-value persistence port for the last known
// authoritative values. Get never fails: missing data reads as absent.
// Set is last-write-wins and overwrites the stored value fully.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// Read loads and unmarshals the JSON value at key into out. Missing or
// corrupt data is treated as absent; corrupt payloads are logged and
// never surfaced to the caller.
func Read(s Store, key string, out interface{}) bool {
	raw, ok := s.Get(key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		log.Warn().
			Err(err).
			Str("key", key).
			Msg("discarding corrupt snapshot value")
		return false
	}
	return true
}

// Write marshals v and stores it at key, replacing any previous value.
// Callers must pass the complete merged object, never a partial patch.
func Write(s Store, key string, v interface{}) {
	raw, err := json.Marshal(v)
	if err != nil {
		log.Error().
			Err(err).
			Str("key", key).
			Msg("failed to marshal snapshot value")
		return
	}
	s.Set(key, string(raw))
}
