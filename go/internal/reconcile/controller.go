// Package reconcile owns the merge of override, cached, fetched, and
// pushed values into one displayed value per entity, and keeps the
// local snapshot synchronized after authoritative changes.
package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/davidyun/swoon/go/clients/vote_api_client"
	"github.com/davidyun/swoon/go/internal/models"
	"github.com/davidyun/swoon/go/internal/push"
	"github.com/davidyun/swoon/go/internal/signal"
)

// VoteStatusAPI defines what the reconciler needs from the vote client.
type VoteStatusAPI interface {
	GetVoteStatus(ctx context.Context, candidateID, viewerID string, category models.VoteCategory) (*vote_api_client.VoteStatus, error)
	CastVote(ctx context.Context, viewerID, candidateID string, category models.VoteCategory) (bool, error)
	RetractVote(ctx context.Context, viewerID, candidateID string, category models.VoteCategory) (bool, error)
}

// Options configures one vote subscription.
type Options struct {
	CandidateID string
	Category    models.VoteCategory
	// ViewerID is empty for anonymous viewers; hasVoted then stays at
	// its fallback value.
	ViewerID string
	// OverrideTotal, when non-nil, pins the displayed total for as
	// long as it stays non-nil. The initial fetch is still issued to
	// learn hasVoted and uniqueVoters, but its total is discarded.
	OverrideTotal *int
	// BindWait bounds how long the push binder waits for the
	// transport. Zero means push.DefaultBindWait.
	BindWait time.Duration
}

// VoteReconciler keeps one (candidate, category) aggregate consistent
// across the override, the authoritative fetch, and push events.
//
// Same-field conflicts resolve to the most recently processed message;
// no sequence numbers are carried, so a stale push event can transiently
// overwrite a newer fetch. Disjoint fields merge commutatively.
type VoteReconciler struct {
	opts   Options
	api    VoteStatusAPI
	binder *push.Binder

	mu           sync.Mutex
	state        State
	live         bool
	authTotal    int
	uniqueVoters int
	hasVoted     *bool
	override     *int
}

// NewVoteReconciler wires a reconciler to the shared transport and bus.
func NewVoteReconciler(opts Options, api VoteStatusAPI, transport push.Transport, bus *signal.Bus, clock clockwork.Clock) *VoteReconciler {
	r := &VoteReconciler{
		opts:     opts,
		api:      api,
		override: opts.OverrideTotal,
		state:    StateUninitialized,
	}
	r.binder = push.NewBinder(transport, bus, clock, push.EventEntityUpdated, r.handlePush)
	return r
}

// Mount begins reconciliation: the override (when present) becomes the
// immediate display, the confirming fetch is issued in the background,
// and the push binder starts its attachment protocol. Mount is a no-op
// after the first call.
func (r *VoteReconciler) Mount(ctx context.Context) {
	r.mu.Lock()
	if r.state != StateUninitialized {
		r.mu.Unlock()
		return
	}
	r.live = true
	if r.override != nil {
		// Partial confirmation: total comes from the parent, the
		// fetch fills in hasVoted and uniqueVoters.
		r.state = StateConfirmed
	} else {
		r.state = StateLoading
	}
	r.mu.Unlock()

	wait := r.opts.BindWait
	if wait <= 0 {
		wait = push.DefaultBindWait
	}
	r.binder.Attach(wait)

	go r.confirm(ctx)
}

// confirm issues the authoritative fetch and applies the response.
func (r *VoteReconciler) confirm(ctx context.Context) {
	status, err := r.api.GetVoteStatus(ctx, r.opts.CandidateID, r.opts.ViewerID, r.opts.Category)

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.live {
		return
	}

	if err != nil {
		log.Warn().
			Err(err).
			Str("candidate_id", r.opts.CandidateID).
			Str("category", string(r.opts.Category)).
			Msg("vote status fetch failed, using fallback display")
		// Zero-valued fallback; the override keeps winning in display.
		// Values already confirmed by a push event are not clobbered,
		// but an unknown hasVoted still resolves to its fallback.
		if r.hasVoted == nil {
			f := false
			r.hasVoted = &f
		}
		if r.state == StateLoading {
			r.state = StateDegraded
		}
		return
	}

	r.applyStatusLocked(status)
	r.state = StateConfirmed
}

// applyStatusLocked merges a fetch response. With an override present
// the response total is discarded, never used to overwrite the override;
// only hasVoted and uniqueVoters are accepted.
func (r *VoteReconciler) applyStatusLocked(status *vote_api_client.VoteStatus) {
	hv := status.HasVoted
	r.hasVoted = &hv
	if stats, ok := status.VoteStats[r.opts.Category]; ok {
		r.uniqueVoters = stats.UniqueVoters
		if r.override == nil {
			r.authTotal = stats.TotalVotes
		}
	}
}

// handlePush applies an entity-updated event. Events for other entities
// are ignored; matching events merge only the fields they carry and
// promote the entity back to Confirmed regardless of prior state.
func (r *VoteReconciler) handlePush(evt *push.Event) {
	if evt.EntityID != r.opts.CandidateID {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.live {
		return
	}

	if patch, ok := evt.VoteStats[r.opts.Category]; ok {
		if patch.TotalVotes != nil {
			r.authTotal = *patch.TotalVotes
		}
		if patch.UniqueVoters != nil {
			r.uniqueVoters = *patch.UniqueVoters
		}
	}

	if r.opts.ViewerID != "" && evt.ActorID == r.opts.ViewerID {
		switch evt.Action {
		case models.VoteActionCast:
			t := true
			r.hasVoted = &t
		case models.VoteActionRetract:
			f := false
			r.hasVoted = &f
		}
	}

	r.state = StateConfirmed
}

// CastVote casts the viewer's vote and immediately applies the
// server-confirmed totals without waiting for the push echo.
func (r *VoteReconciler) CastVote(ctx context.Context) error {
	return r.mutate(ctx, true)
}

// RetractVote removes the viewer's vote, applying confirmed totals the
// same way as CastVote.
func (r *VoteReconciler) RetractVote(ctx context.Context) error {
	return r.mutate(ctx, false)
}

func (r *VoteReconciler) mutate(ctx context.Context, cast bool) error {
	if r.opts.ViewerID == "" {
		return fmt.Errorf("anonymous viewer cannot vote")
	}

	var ok bool
	var err error
	if cast {
		ok, err = r.api.CastVote(ctx, r.opts.ViewerID, r.opts.CandidateID, r.opts.Category)
	} else {
		ok, err = r.api.RetractVote(ctx, r.opts.ViewerID, r.opts.CandidateID, r.opts.Category)
	}
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("vote mutation rejected by server")
	}

	// The initiating actor already knows the outcome.
	r.mu.Lock()
	if r.live {
		hv := cast
		r.hasVoted = &hv
	}
	r.mu.Unlock()

	// Confirm the new totals from the server rather than guessing.
	r.confirm(ctx)
	return nil
}

// Refresh re-pulls the authoritative status, used for secondary
// reconciliation after an action elsewhere changed this aggregate.
func (r *VoteReconciler) Refresh(ctx context.Context) {
	r.mu.Lock()
	live := r.live
	r.mu.Unlock()
	if live {
		r.confirm(ctx)
	}
}

// SetOverride replaces the externally supplied total. Passing nil
// releases the override and the display falls back to the most recent
// authoritative value.
func (r *VoteReconciler) SetOverride(total *int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.override = total
}

// Aggregate returns the currently displayed value.
func (r *VoteReconciler) Aggregate() models.VoteAggregate {
	r.mu.Lock()
	defer r.mu.Unlock()

	total := r.authTotal
	if r.override != nil {
		total = *r.override
	}
	return models.VoteAggregate{
		CandidateID:  r.opts.CandidateID,
		Category:     r.opts.Category,
		TotalVotes:   total,
		UniqueVoters: r.uniqueVoters,
		HasVoted:     r.hasVoted,
	}
}

// State returns the subscription lifecycle state.
func (r *VoteReconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Bound reports whether the push binding is live (false in degraded
// real-time mode).
func (r *VoteReconciler) Bound() bool {
	return r.binder.Bound()
}

// Close unmounts the subscription: the binder teardown runs and any
// in-flight response arriving afterwards is discarded.
func (r *VoteReconciler) Close() {
	r.mu.Lock()
	r.live = false
	r.state = StateUnmounted
	r.mu.Unlock()

	r.binder.Close()
}
