package push

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// dispatcher implements the On/Off handler registry shared by the
// transport implementations.
type dispatcher struct {
	mu       sync.RWMutex
	handlers map[EventName]map[string]Handler
}

func newDispatcher() *dispatcher {
	return &dispatcher{
		handlers: make(map[EventName]map[string]Handler),
	}
}

func (d *dispatcher) On(name EventName, h Handler) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := uuid.New().String()
	if d.handlers[name] == nil {
		d.handlers[name] = make(map[string]Handler)
	}
	d.handlers[name][id] = h
	return id
}

func (d *dispatcher) Off(name EventName, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	handlers, ok := d.handlers[name]
	if !ok {
		return
	}
	delete(handlers, id)
	if len(handlers) == 0 {
		delete(d.handlers, name)
	}
}

// dispatch fans an event out to its handlers. The handler set is
// snapshotted first so handlers may detach themselves while running.
func (d *dispatcher) dispatch(evt *Event) {
	d.mu.RLock()
	handlers := make([]Handler, 0, len(d.handlers[evt.Name]))
	for _, h := range d.handlers[evt.Name] {
		handlers = append(handlers, h)
	}
	d.mu.RUnlock()

	for _, h := range handlers {
		h(evt)
	}

	log.Debug().
		Str("event", string(evt.Name)).
		Str("entity_id", evt.EntityID).
		Int("handlers", len(handlers)).
		Msg("push event dispatched")
}

func (d *dispatcher) handlerCount(name EventName) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers[name])
}
