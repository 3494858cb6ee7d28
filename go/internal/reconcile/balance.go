package reconcile

import (
	"sync"

	"github.com/davidyun/swoon/go/internal/models"
	"github.com/davidyun/swoon/go/internal/signal"
	"github.com/davidyun/swoon/go/internal/snapshot"
)

// BalanceReconciler mirrors the viewer's reward balance: the snapshot
// store gives the immediate (possibly stale) display on mount, and
// user-data-changed signals carry confirmed updates from whichever
// component performed the mutation.
type BalanceReconciler struct {
	userID string
	store  snapshot.Store
	bus    *signal.Bus

	mu         sync.Mutex
	listenerID string
	user       models.UserSnapshot
	live       bool
}

func NewBalanceReconciler(userID string, store snapshot.Store, bus *signal.Bus) *BalanceReconciler {
	return &BalanceReconciler{
		userID: userID,
		store:  store,
		bus:    bus,
		user:   models.UserSnapshot{UserID: userID, MembershipTier: models.MembershipTierFree},
	}
}

// Mount loads the cached snapshot for immediate display and subscribes
// to confirmed user-data changes.
func (b *BalanceReconciler) Mount() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.live {
		return
	}
	b.live = true

	// Listener registration precedes the snapshot read. A change
	// signalled while the read is in flight is persisted before the
	// emit, so it is either picked up by the read or applied by the
	// handler once the mutex frees up; read-then-register would drop it.
	b.listenerID = b.bus.AddListener(signal.TopicUserDataChanged, b.handleUserData)

	var cached models.UserSnapshot
	if snapshot.Read(b.store, snapshot.UserKey, &cached) && cached.UserID == b.userID {
		b.user = cached
	}
}

func (b *BalanceReconciler) handleUserData(payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.live {
		return
	}

	// Typed payloads apply directly; anything else falls back to a
	// snapshot re-read, which the mutating component has already
	// synchronized.
	if user, ok := payload.(*models.UserSnapshot); ok && user != nil {
		if user.UserID == b.userID {
			b.user = *user
		}
		return
	}

	var cached models.UserSnapshot
	if snapshot.Read(b.store, snapshot.UserKey, &cached) && cached.UserID == b.userID {
		b.user = cached
	}
}

// Balance returns the displayed reward balance.
func (b *BalanceReconciler) Balance() models.RewardBalance {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.user.Balance()
}

// MembershipTier returns the displayed membership tier.
func (b *BalanceReconciler) MembershipTier() models.MembershipTier {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.user.MembershipTier
}

// Close detaches the listener. Safe to call repeatedly.
func (b *BalanceReconciler) Close() {
	b.mu.Lock()
	id := b.listenerID
	b.listenerID = ""
	b.live = false
	b.mu.Unlock()

	if id != "" {
		b.bus.RemoveListener(signal.TopicUserDataChanged, id)
	}
}
