package push

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/davidyun/swoon/go/internal/signal"
)

// fakeTransport is an in-memory Transport whose connectivity the test
// controls directly.
type fakeTransport struct {
	*dispatcher

	mu        sync.Mutex
	connected bool
}

func newFakeTransport(connected bool) *fakeTransport {
	return &fakeTransport{
		dispatcher: newDispatcher(),
		connected:  connected,
	}
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) setConnected(connected bool) {
	f.mu.Lock()
	f.connected = connected
	f.mu.Unlock()
}

func TestBinderAttachesImmediatelyWhenConnected(t *testing.T) {
	transport := newFakeTransport(true)
	bus := signal.NewBus()
	clock := clockwork.NewFakeClock()

	received := 0
	b := NewBinder(transport, bus, clock, EventEntityUpdated, func(*Event) { received++ })
	b.Attach(DefaultBindWait)

	require.True(t, b.Bound())
	require.Equal(t, 1, transport.handlerCount(EventEntityUpdated))
	// No pending one-shot listener when the immediate attach worked.
	require.Equal(t, 0, bus.ListenerCount(signal.TopicTransportReady))

	transport.dispatch(&Event{Name: EventEntityUpdated, EntityID: "C1"})
	require.Equal(t, 1, received)
}

func TestBinderAttachesWhenTransportBecomesReady(t *testing.T) {
	transport := newFakeTransport(false)
	bus := signal.NewBus()
	clock := clockwork.NewFakeClock()

	b := NewBinder(transport, bus, clock, EventEntityUpdated, func(*Event) {})
	b.Attach(DefaultBindWait)

	require.False(t, b.Bound())
	require.Equal(t, 1, bus.ListenerCount(signal.TopicTransportReady))

	transport.setConnected(true)
	bus.Emit(signal.TopicTransportReady, nil)

	require.True(t, b.Bound())
	require.Equal(t, 1, transport.handlerCount(EventEntityUpdated))
	require.Equal(t, 0, bus.ListenerCount(signal.TopicTransportReady))
}

func TestBinderBoundedWaitMakesFinalAttempt(t *testing.T) {
	transport := newFakeTransport(false)
	bus := signal.NewBus()
	clock := clockwork.NewFakeClock()

	b := NewBinder(transport, bus, clock, EventEntityUpdated, func(*Event) {})
	b.Attach(10 * time.Second)

	// The transport connects but the ready signal is never emitted,
	// e.g. the emitting component raced ahead of registration.
	transport.setConnected(true)

	clock.BlockUntil(1)
	clock.Advance(10 * time.Second)

	require.Eventually(t, b.Bound, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return bus.ListenerCount(signal.TopicTransportReady) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestBinderBoundedWaitExpiryWithoutTransportIsSilent(t *testing.T) {
	transport := newFakeTransport(false)
	bus := signal.NewBus()
	clock := clockwork.NewFakeClock()

	b := NewBinder(transport, bus, clock, EventEntityUpdated, func(*Event) {})
	b.Attach(10 * time.Second)

	clock.BlockUntil(1)
	clock.Advance(10 * time.Second)

	require.Eventually(t, func() bool {
		return bus.ListenerCount(signal.TopicTransportReady) == 0
	}, time.Second, 5*time.Millisecond)
	require.False(t, b.Bound())
	require.Equal(t, 0, transport.handlerCount(EventEntityUpdated))
}

func TestBinderCloseIsIdempotent(t *testing.T) {
	transport := newFakeTransport(true)
	bus := signal.NewBus()
	clock := clockwork.NewFakeClock()

	b := NewBinder(transport, bus, clock, EventEntityUpdated, func(*Event) {})
	b.Attach(DefaultBindWait)
	require.True(t, b.Bound())

	b.Close()
	b.Close()

	require.False(t, b.Bound())
	require.Equal(t, 0, transport.handlerCount(EventEntityUpdated))
	require.Equal(t, 0, bus.ListenerCount(signal.TopicTransportReady))
}

func TestBinderCloseBeforeAttachIsSafe(t *testing.T) {
	transport := newFakeTransport(false)
	bus := signal.NewBus()
	clock := clockwork.NewFakeClock()

	b := NewBinder(transport, bus, clock, EventEntityUpdated, func(*Event) {})
	b.Close()
	b.Close()

	require.False(t, b.Bound())
	require.Equal(t, 0, transport.handlerCount(EventEntityUpdated))
}

func TestBinderClosePendingAttachReleasesEverything(t *testing.T) {
	transport := newFakeTransport(false)
	bus := signal.NewBus()
	clock := clockwork.NewFakeClock()

	b := NewBinder(transport, bus, clock, EventEntityUpdated, func(*Event) {})
	b.Attach(DefaultBindWait)
	require.Equal(t, 1, bus.ListenerCount(signal.TopicTransportReady))

	b.Close()

	require.Equal(t, 0, bus.ListenerCount(signal.TopicTransportReady))
	require.Equal(t, 0, transport.handlerCount(EventEntityUpdated))

	// A late ready signal must not resurrect the binding.
	transport.setConnected(true)
	bus.Emit(signal.TopicTransportReady, nil)
	require.False(t, b.Bound())
}

func TestBinderReattachKeepsSingleBinding(t *testing.T) {
	transport := newFakeTransport(true)
	bus := signal.NewBus()
	clock := clockwork.NewFakeClock()

	b := NewBinder(transport, bus, clock, EventEntityUpdated, func(*Event) {})
	b.Attach(DefaultBindWait)
	b.Attach(DefaultBindWait)

	require.True(t, b.Bound())
	require.Equal(t, 1, transport.handlerCount(EventEntityUpdated))
}
