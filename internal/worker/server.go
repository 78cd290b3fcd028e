package worker

import (
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/duedatechanger/api/internal/config"
	"github.com/duedatechanger/api/internal/logger"
	"github.com/duedatechanger/api/internal/service"
)

// RedisOpt returns the asynq connection settings shared by client, server
// and inspector.
func RedisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// NewServer builds the asynq server that consumes the bulk edit queue.
func NewServer(cfg *config.Config, log zerolog.Logger) *asynq.Server {
	return asynq.NewServer(
		RedisOpt(&cfg.Redis),
		asynq.Config{
			Concurrency: cfg.Queue.Concurrency,
			Queues: map[string]int{
				cfg.Queue.Name: 1,
			},
			Logger:   logger.NewAsynqLogger(log),
			LogLevel: asynqLevel(cfg.Server.LogLevel),
		},
	)
}

// NewMux routes task types to their handlers.
func NewMux(bulkEdit *BulkEditWorker) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeBulkEdit, bulkEdit.ProcessTask)
	return mux
}

func asynqLevel(level string) asynq.LogLevel {
	switch level {
	case "debug":
		return asynq.DebugLevel
	case "warn":
		return asynq.WarnLevel
	case "error":
		return asynq.ErrorLevel
	default:
		return asynq.InfoLevel
	}
}
