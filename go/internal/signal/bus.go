// Package signal provides the process-wide publish/subscribe bus that
// decouples the push transport, reconcilers, and reward sequencer. It
// replaces ad hoc global event mechanisms with explicit topic names and
// payload contracts.
package signal

import (
	"sync"

	"github.com/google/uuid"
)

// Topic names carried by the bus.
type Topic string

const (
	// TopicTransportReady fires when the push transport (re)connects.
	// Payload: nil.
	TopicTransportReady Topic = "transport-ready"

	// TopicUserDataChanged fires after a confirmed mutation of the
	// viewer's user record. Payload: *models.UserSnapshot.
	TopicUserDataChanged Topic = "user-data-changed"
)

// Handler receives a topic payload. Handlers run synchronously on the
// emitting goroutine and must not block.
type Handler func(payload interface{})

// Bus is a shared, read-mostly singleton. Subscribers attach and detach
// independently and must not assume exclusive ownership.
type Bus struct {
	mu        sync.RWMutex
	listeners map[Topic]map[string]Handler
}

func NewBus() *Bus {
	return &Bus{
		listeners: make(map[Topic]map[string]Handler),
	}
}

// AddListener registers a handler and returns its listener ID.
func (b *Bus) AddListener(topic Topic, h Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New().String()
	if b.listeners[topic] == nil {
		b.listeners[topic] = make(map[string]Handler)
	}
	b.listeners[topic][id] = h
	return id
}

// RemoveListener detaches a handler. Removing an unknown or already
// removed ID is a no-op.
func (b *Bus) RemoveListener(topic Topic, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	listeners, ok := b.listeners[topic]
	if !ok {
		return
	}
	delete(listeners, id)
	if len(listeners) == 0 {
		delete(b.listeners, topic)
	}
}

// Once registers a handler that fires at most once. The returned cancel
// function removes the pending handler and is safe to call after the
// handler has fired.
func (b *Bus) Once(topic Topic, h Handler) (cancel func()) {
	id := uuid.New().String()
	var once sync.Once

	// The once guards only the unregister decision; h runs outside it
	// so a concurrent cancel never blocks on a running handler.
	wrapper := func(payload interface{}) {
		fired := false
		once.Do(func() {
			b.RemoveListener(topic, id)
			fired = true
		})
		if fired {
			h(payload)
		}
	}

	b.mu.Lock()
	if b.listeners[topic] == nil {
		b.listeners[topic] = make(map[string]Handler)
	}
	b.listeners[topic][id] = wrapper
	b.mu.Unlock()

	return func() {
		once.Do(func() {
			b.RemoveListener(topic, id)
		})
	}
}

// Emit delivers payload to every listener registered for topic. The
// listener set is snapshotted first so handlers may add or remove
// listeners while being notified.
func (b *Bus) Emit(topic Topic, payload interface{}) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.listeners[topic]))
	for _, h := range b.listeners[topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(payload)
	}
}

// ListenerCount reports how many handlers are attached to topic.
func (b *Bus) ListenerCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[topic])
}
