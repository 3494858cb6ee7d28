package signal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmitReachesAllListeners(t *testing.T) {
	bus := NewBus()

	var got []interface{}
	bus.AddListener(TopicUserDataChanged, func(p interface{}) { got = append(got, p) })
	bus.AddListener(TopicUserDataChanged, func(p interface{}) { got = append(got, p) })

	bus.Emit(TopicUserDataChanged, "payload")
	require.Len(t, got, 2)
	require.Equal(t, "payload", got[0])
}

func TestEmitOtherTopicIsIgnored(t *testing.T) {
	bus := NewBus()

	fired := false
	bus.AddListener(TopicUserDataChanged, func(interface{}) { fired = true })

	bus.Emit(TopicTransportReady, nil)
	require.False(t, fired)
}

func TestRemoveListenerIsIdempotent(t *testing.T) {
	bus := NewBus()

	count := 0
	id := bus.AddListener(TopicTransportReady, func(interface{}) { count++ })

	bus.RemoveListener(TopicTransportReady, id)
	bus.RemoveListener(TopicTransportReady, id)
	bus.RemoveListener(TopicTransportReady, "unknown")

	bus.Emit(TopicTransportReady, nil)
	require.Equal(t, 0, count)
	require.Equal(t, 0, bus.ListenerCount(TopicTransportReady))
}

func TestOnceFiresAtMostOnce(t *testing.T) {
	bus := NewBus()

	count := 0
	bus.Once(TopicTransportReady, func(interface{}) { count++ })

	bus.Emit(TopicTransportReady, nil)
	bus.Emit(TopicTransportReady, nil)
	require.Equal(t, 1, count)
	require.Equal(t, 0, bus.ListenerCount(TopicTransportReady))
}

func TestOnceCancelPreventsDelivery(t *testing.T) {
	bus := NewBus()

	count := 0
	cancel := bus.Once(TopicTransportReady, func(interface{}) { count++ })
	cancel()
	cancel() // safe to repeat

	bus.Emit(TopicTransportReady, nil)
	require.Equal(t, 0, count)
	require.Equal(t, 0, bus.ListenerCount(TopicTransportReady))
}

func TestCancelAfterFireIsNoOp(t *testing.T) {
	bus := NewBus()

	count := 0
	cancel := bus.Once(TopicTransportReady, func(interface{}) { count++ })

	bus.Emit(TopicTransportReady, nil)
	cancel()
	require.Equal(t, 1, count)
}

func TestListenerMayDetachDuringEmit(t *testing.T) {
	bus := NewBus()

	var id string
	id = bus.AddListener(TopicUserDataChanged, func(interface{}) {
		bus.RemoveListener(TopicUserDataChanged, id)
	})

	// Must not deadlock or panic.
	bus.Emit(TopicUserDataChanged, nil)
	require.Equal(t, 0, bus.ListenerCount(TopicUserDataChanged))
}
