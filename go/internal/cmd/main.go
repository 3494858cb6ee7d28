package main

import (
	"context"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/davidyun/swoon/go/clients/rewards_api_client"
	"github.com/davidyun/swoon/go/clients/vote_api_client"
	"github.com/davidyun/swoon/go/internal/push"
	"github.com/davidyun/swoon/go/internal/reconcile"
	"github.com/davidyun/swoon/go/internal/rewards"
	"github.com/davidyun/swoon/go/internal/signal"
	"github.com/davidyun/swoon/go/internal/snapshot"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	configPath := getEnv("SWOON_CONFIG", "config.yaml")
	config, err := loadConfig(configPath)
	if err != nil {
		log.Warn().Err(err).Str("path", configPath).Msg("config file unavailable, using defaults")
		config = defaultConfig()
	}

	if config.Viewer.UserID == "" {
		log.Fatal().Msg("viewer user id is required (SWOON_USER_ID or config)")
	}

	ctx, stop := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Snapshot store: durable unless no path is configured.
	var store snapshot.Store
	if config.Snapshot.Path != "" {
		ldb, err := snapshot.NewLevelDBStore(config.Snapshot.Path)
		if err != nil {
			log.Fatal().Err(err).Str("path", config.Snapshot.Path).Msg("failed to open snapshot store")
		}
		defer ldb.Close()
		store = ldb
	} else {
		store = snapshot.NewMemoryStore()
	}

	bus := signal.NewBus()
	clock := clockwork.NewRealClock()

	transport := setupTransport(ctx, config, bus)

	voteAPI := vote_api_client.NewVoteApiClient(config.API.BaseURL)
	rewardsAPI := rewards_api_client.NewRewardsApiClient(config.API.BaseURL)

	// Mount the balance mirror first so reward claims reconcile into
	// a live view.
	balance := reconcile.NewBalanceReconciler(config.Viewer.UserID, store, bus)
	balance.Mount()
	defer balance.Close()

	reconcilers := make([]*reconcile.VoteReconciler, 0, len(config.Candidates))
	for _, candidate := range config.Candidates {
		rec := reconcile.NewVoteReconciler(reconcile.Options{
			CandidateID:   candidate.ID,
			Category:      candidate.Category,
			ViewerID:      config.Viewer.UserID,
			OverrideTotal: candidate.OverrideTotal,
		}, voteAPI, transport, bus, clock)
		rec.Mount(ctx)
		defer rec.Close()
		reconcilers = append(reconcilers, rec)
	}

	refreshVotes := func(ctx context.Context) {
		for _, rec := range reconcilers {
			rec.Refresh(ctx)
		}
	}
	sequencer := rewards.NewSequencer(ctx, rewardsAPI, store, bus, clock, refreshVotes)

	statsServer := setupLocalServer(config.StatsAddr, config.Viewer.UserID, reconcilers, balance, sequencer, clock)
	go func() {
		log.Info().Str("addr", config.StatsAddr).Msg("local endpoint listening")
		if err := statsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("stats server failed")
		}
	}()

	log.Info().
		Str("user_id", config.Viewer.UserID).
		Int("candidates", len(config.Candidates)).
		Str("transport", config.Transport.Kind).
		Msg("sync agent running")

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := statsServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("stats server shutdown failed")
	}
	log.Info().Msg("sync agent stopped")
}

// setupTransport builds the configured push transport. A transport that
// cannot connect leaves the agent in degraded fetch-only mode rather
// than failing startup.
func setupTransport(ctx context.Context, config *Config, bus *signal.Bus) push.Transport {
	switch config.Transport.Kind {
	case "nats":
		natsConfig := push.DefaultNATSConfig()
		if config.Transport.URL != "" {
			natsConfig.URL = config.Transport.URL
		}
		natsConfig.SubjectPrefix = config.Transport.SubjectPrefix

		transport, err := push.NewNATSTransport(natsConfig, bus)
		if err != nil {
			log.Error().Err(err).Msg("NATS transport unavailable, running degraded")
			return push.Unavailable()
		}
		go func() {
			<-ctx.Done()
			transport.Close()
		}()
		return transport

	default:
		wsConfig := push.DefaultWSConfig()
		if config.Transport.URL != "" {
			wsConfig.URL = config.Transport.URL
		}
		transport := push.NewWSTransport(wsConfig, bus)
		go func() {
			if err := transport.Run(ctx); err != nil {
				log.Error().Err(err).Msg("push transport stopped")
			}
		}()
		return transport
	}
}
