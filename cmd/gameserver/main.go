// Command gameserver wires the durable store, Redis timer scheduling, and
// the in-process game manager, recovers any games in flight from a prior
// run, and idles until asked to shut down. It exposes no HTTP or
// WebSocket listener: the transport layer that would call into
// internal/manager is out of scope here, same as the teacher's
// cmd/server wires handlers this binary intentionally omits.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/jarlboard/server/internal/config"
	"github.com/jarlboard/server/internal/logger"
	"github.com/jarlboard/server/internal/manager"
	"github.com/jarlboard/server/internal/persistence/postgres"
	redisrepo "github.com/jarlboard/server/internal/repository/redis"
	repopostgres "github.com/jarlboard/server/internal/repository/postgres"
)

func main() {
	logger.Init()
	cfg := config.Load()
	log.Info().Str("databaseURL", cfg.DatabaseURL).Msg("config loaded")

	db, err := repopostgres.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	redisClient, err := redisrepo.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer redisClient.Close()

	if err := redisClient.Underlying().ConfigSet(context.Background(), "notify-keyspace-events", "Ex").Err(); err != nil {
		log.Warn().Err(err).Msg("failed to set redis keyspace notifications, timer firing will rely on the poll loop only")
	}

	store := postgres.New(db)
	mgr := manager.New(manager.Config{
		Store:         store,
		GroqAPIKey:    cfg.GroqAPIKey,
		AIMoveTimeout: cfg.AIMoveTimeout,
	})
	mgr.AttachRedis(redisClient)

	recovered, err := mgr.Recover(context.Background())
	if err != nil {
		log.Error().Err(err).Msg("failed to recover active games (non-fatal, starting with an empty game set)")
	} else {
		log.Info().Int("count", recovered).Msg("recovered active games")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")
	mgr.Shutdown()
}
