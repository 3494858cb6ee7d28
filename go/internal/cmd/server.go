package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/davidyun/swoon/go/internal/reconcile"
	"github.com/davidyun/swoon/go/internal/rewards"
)

// setupLocalServer exposes the agent's loopback API: /stats shows what
// every mounted reconciler currently displays, and the action endpoints
// let the embedding UI drive reward claims through the sequencer.
func setupLocalServer(addr, userID string, reconcilers []*reconcile.VoteReconciler, balance *reconcile.BalanceReconciler, sequencer *rewards.Sequencer, clock clockwork.Clock) *http.Server {
	mux := http.NewServeMux()

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodHead, http.MethodGet, http.MethodPost},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	dailyElig := rewards.NewEligibility(clock, rewards.DailyBonusCooldown)
	spinElig := rewards.NewEligibility(clock, rewards.SpinCooldown)

	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		type voteStats struct {
			State     string      `json:"state"`
			Bound     bool        `json:"push_bound"`
			Aggregate interface{} `json:"aggregate"`
		}

		votes := make([]voteStats, 0, len(reconcilers))
		for _, rec := range reconcilers {
			votes = append(votes, voteStats{
				State:     rec.State().String(),
				Bound:     rec.Bound(),
				Aggregate: rec.Aggregate(),
			})
		}

		bal := balance.Balance()
		writeJSON(w, map[string]interface{}{
			"votes":   votes,
			"balance": bal,
			"tier":    balance.MembershipTier(),
			"cooldowns": map[string]string{
				"daily_bonus": dailyElig.Remaining(bal.LastDailyBonusAt).String(),
				"spin":        spinElig.Remaining(bal.LastSpinAt).String(),
			},
		})
	})

	mux.HandleFunc("/actions/daily-bonus", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		result, err := sequencer.ClaimDailyBonus(r.Context(), userID)
		if err != nil {
			writeActionError(w, err)
			return
		}
		writeJSON(w, map[string]interface{}{"balance": result})
	})

	mux.HandleFunc("/actions/spin", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		prize, result, err := sequencer.SpinWheel(r.Context(), userID)
		if err != nil {
			writeActionError(w, err)
			return
		}
		writeJSON(w, map[string]interface{}{"prize": prize, "balance": result})
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return &http.Server{
		Addr:    addr,
		Handler: c.Handler(mux),
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeActionError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	if errors.Is(err, rewards.ErrConcurrentAction) {
		status = http.StatusConflict
	}
	http.Error(w, err.Error(), status)
}
