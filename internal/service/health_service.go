package service

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/duedatechanger/api/internal/logger"
	"github.com/duedatechanger/api/internal/model"
)

const ToolName = "Due Date Changer"

// QueueInspector is the subset of *asynq.Inspector used for smoke checks.
type QueueInspector interface {
	Queues() ([]string, error)
	Servers() ([]*asynq.ServerInfo, error)
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// Echoer is satisfied by any go-redis client.
type Echoer interface {
	Echo(ctx context.Context, message interface{}) *redis.StringCmd
}

// SelfChecker confirms the Canvas API key is accepted.
type SelfChecker interface {
	GetSelf(ctx context.Context) (*model.User, error)
}

// HealthService runs the smoke checks behind GET /status.
type HealthService struct {
	canvas    SelfChecker
	redis     Echoer
	inspector QueueInspector
	qname     string
	canvasURL string
	log       zerolog.Logger
}

func NewHealthService(canvas SelfChecker, redisClient Echoer, inspector QueueInspector, queueName, canvasURL string) *HealthService {
	return &HealthService{
		canvas:    canvas,
		redis:     redisClient,
		inspector: inspector,
		qname:     queueName,
		canvasURL: canvasURL,
		log:       logger.Get().With().Str("component", "health").Logger(),
	}
}

// Check never fails; each failing check is logged and reported as false.
func (s *HealthService) Check(ctx context.Context) *model.StatusReport {
	report := &model.StatusReport{
		Tool:      ToolName,
		CanvasURL: s.canvasURL,
		Checks: map[string]bool{
			model.CheckAPIKey: false,
			model.CheckRedis:  false,
			model.CheckWorker: false,
		},
	}

	if user, err := s.canvas.GetSelf(ctx); err != nil {
		s.log.Error().Err(err).Msg("API check failed")
	} else {
		report.Checks[model.CheckAPIKey] = user != nil
	}

	if got, err := s.redis.Echo(ctx, "test").Result(); err != nil {
		s.log.Error().Err(err).Msg("Redis connection failed")
	} else {
		report.Checks[model.CheckRedis] = got == "test"
	}

	if size, err := s.queueSize(); err != nil {
		s.log.Error().Err(err).Msg("Unable to get job queue length")
	} else {
		report.JobQueue = &size
	}

	if servers, err := s.inspector.Servers(); err != nil {
		s.log.Error().Err(err).Msg("Worker check failed")
	} else {
		for _, srv := range servers {
			if _, ok := srv.Queues[s.qname]; ok {
				report.Checks[model.CheckWorker] = true
				break
			}
		}
	}

	healthy := report.JobQueue != nil
	for _, ok := range report.Checks {
		healthy = healthy && ok
	}
	report.Healthy = healthy

	return report
}

// queueSize counts pending, scheduled and active tasks. asynq only registers
// a queue on first enqueue, so an unknown queue is empty.
func (s *HealthService) queueSize() (int, error) {
	queues, err := s.inspector.Queues()
	if err != nil {
		return 0, err
	}
	for _, q := range queues {
		if q != s.qname {
			continue
		}
		info, err := s.inspector.GetQueueInfo(q)
		if err != nil {
			return 0, err
		}
		return info.Pending + info.Active + info.Scheduled, nil
	}
	return 0, nil
}
