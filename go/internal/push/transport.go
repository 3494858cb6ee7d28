// Package push delivers asynchronous server-to-client notifications and
// owns the listener-attachment protocol used while the shared transport
// is not yet connected.
package push

// EventName identifies a logical push event stream.
type EventName string

const (
	// EventEntityUpdated carries vote changes for a contest candidate.
	EventEntityUpdated EventName = "entity-updated"
)

// Handler receives a decoded push event.
type Handler func(event *Event)

// Transport is the shared push connection handle. A single transport is
// passed by reference to every subscriber; none of them owns it.
// Handlers are keyed by the ID returned from On so they can be removed.
type Transport interface {
	// IsConnected reports whether events can currently be delivered.
	IsConnected() bool

	// On registers a handler for the named event and returns its
	// binding ID.
	On(name EventName, h Handler) string

	// Off removes a previously registered handler. Unknown IDs are
	// ignored.
	Off(name EventName, id string)
}

// Unavailable returns a transport that never connects. Subscribers fall
// back to fetch-only reconciliation, which is degraded but correct.
func Unavailable() Transport {
	return unavailableTransport{}
}

type unavailableTransport struct{}

func (unavailableTransport) IsConnected() bool            { return false }
func (unavailableTransport) On(EventName, Handler) string { return "" }
func (unavailableTransport) Off(EventName, string)        {}
