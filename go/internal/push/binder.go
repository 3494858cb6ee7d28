package push

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/davidyun/swoon/go/internal/signal"
)

// DefaultBindWait is the ceiling on how long a binder waits for the
// transport before making its final best-effort attachment attempt.
// Callers on critical paths may pass a shorter ceiling to Attach.
const DefaultBindWait = 15 * time.Second

// Binder attaches one handler to one named transport event, tolerating
// a transport that is not connected yet at mount time. It never polls:
// a one-shot transport-ready listener plus a bounded wait timer cover
// the late-connection window. At most one live binding exists per
// binder at any time, and every teardown action is idempotent.
type Binder struct {
	transport Transport
	bus       *signal.Bus
	clock     clockwork.Clock
	event     EventName
	handler   Handler

	// mu guards all binding state below. The subscribed handler runs
	// on transport goroutines, never under this lock.
	mu          sync.Mutex
	bindingID   string
	readyCancel func()
	waitTimer   clockwork.Timer
	waitStop    chan struct{}
	closed      bool
}

// NewBinder creates a binder for one logical subscriber. Attach must be
// called to start the protocol.
func NewBinder(transport Transport, bus *signal.Bus, clock clockwork.Clock, event EventName, handler Handler) *Binder {
	return &Binder{
		transport: transport,
		bus:       bus,
		clock:     clock,
		event:     event,
		handler:   handler,
	}
}

// Attach starts the attachment protocol: bind immediately if the
// transport is connected, otherwise register a one-shot transport-ready
// listener and a bounded wait timer whose expiry makes one final
// best-effort attempt. Re-attaching first detaches any live binding.
func (b *Binder) Attach(maxWait time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	// Restarting the protocol releases whatever the previous attempt
	// left pending.
	b.detachLocked()
	b.cancelReadyLocked()
	b.stopWaitLocked()

	if b.tryBindLocked() {
		return
	}

	b.readyCancel = b.bus.Once(signal.TopicTransportReady, func(interface{}) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.readyCancel = nil
		if b.closed || b.bindingID != "" {
			return
		}
		if b.tryBindLocked() {
			b.stopWaitLocked()
		}
	})

	timer := b.clock.NewTimer(maxWait)
	stop := make(chan struct{})
	b.waitTimer = timer
	b.waitStop = stop

	go func() {
		select {
		case <-timer.Chan():
			b.mu.Lock()
			defer b.mu.Unlock()
			b.waitTimer = nil
			b.waitStop = nil
			b.cancelReadyLocked()
			if b.closed || b.bindingID != "" {
				return
			}
			// Final best-effort attempt; failure leaves the
			// subscriber in degraded fetch-only mode.
			if !b.tryBindLocked() {
				log.Debug().
					Str("event", string(b.event)).
					Msg("push binding wait expired, degraded mode")
			}
		case <-stop:
		}
	}()
}

// Close releases the live binding, the pending ready listener, and the
// wait timer. Each release is independently a safe no-op; Close may be
// called repeatedly and before any attachment succeeded.
func (b *Binder) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.detachLocked()
	b.cancelReadyLocked()
	b.stopWaitLocked()
}

// Bound reports whether a transport binding is currently live.
func (b *Binder) Bound() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bindingID != ""
}

func (b *Binder) tryBindLocked() bool {
	if !b.transport.IsConnected() {
		return false
	}
	b.bindingID = b.transport.On(b.event, b.handler)
	return true
}

func (b *Binder) detachLocked() {
	if b.bindingID == "" {
		return
	}
	b.transport.Off(b.event, b.bindingID)
	b.bindingID = ""
}

func (b *Binder) cancelReadyLocked() {
	if b.readyCancel == nil {
		return
	}
	cancel := b.readyCancel
	b.readyCancel = nil
	cancel()
}

func (b *Binder) stopWaitLocked() {
	if b.waitTimer != nil {
		stopAndDrainTimer(b.waitTimer)
		b.waitTimer = nil
	}
	if b.waitStop != nil {
		close(b.waitStop)
		b.waitStop = nil
	}
}

// stopAndDrainTimer safely stops a timer and drains its channel, per
// the time.Timer.Stop documentation.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
