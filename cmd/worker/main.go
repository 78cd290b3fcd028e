package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/duedatechanger/api/internal/bulkedit"
	"github.com/duedatechanger/api/internal/client"
	"github.com/duedatechanger/api/internal/config"
	"github.com/duedatechanger/api/internal/dates"
	"github.com/duedatechanger/api/internal/jobs"
	"github.com/duedatechanger/api/internal/logger"
	"github.com/duedatechanger/api/internal/worker"
)

// The worker process consumes bulk edit tasks only; use it with
// WORKER_EMBEDDED=false on the HTTP servers.
func main() {
	cfg, err := config.LoadWorker()
	if err != nil {
		bootLog := logger.Get()
		bootLog.Fatal().Err(err).Msg("Failed to load config")
	}

	logger.Init(cfg.Server.LogLevel, cfg.Server.LogFormat)
	log := logger.Get()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Warn().Err(err).Msg("Redis not available")
	}

	normalizer, err := dates.NewNormalizer(cfg.Dates.TimeZone, cfg.Dates.LocalFormat)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid date configuration")
	}

	store := jobs.NewRedisStore(redisClient, time.Duration(cfg.Queue.JobTTLHours)*time.Hour)
	orchestrator := bulkedit.NewOrchestrator(client.NewCanvasClient(&cfg.Canvas), normalizer)

	srv := worker.NewServer(cfg, log)
	mux := worker.NewMux(worker.NewBulkEditWorker(store, orchestrator))

	log.Info().Str("queue", cfg.Queue.Name).Int("concurrency", cfg.Queue.Concurrency).Msg("Worker starting")
	// Run blocks until SIGINT or SIGTERM.
	if err := srv.Run(mux); err != nil {
		log.Fatal().Err(err).Msg("Worker error")
	}
}
