package snapshot

import (
	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore is the non-durable Store used in tests and ephemeral
// sessions. Values never expire; the store lives as long as the process.
type MemoryStore struct {
	c *gocache.Cache
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		c: gocache.New(gocache.NoExpiration, 0),
	}
}

func (m *MemoryStore) Get(key string) (string, bool) {
	v, ok := m.c.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (m *MemoryStore) Set(key, value string) {
	m.c.Set(key, value, gocache.NoExpiration)
}
