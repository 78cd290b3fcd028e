package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/duedatechanger/api/internal/bulkedit"
	"github.com/duedatechanger/api/internal/client"
	"github.com/duedatechanger/api/internal/config"
	"github.com/duedatechanger/api/internal/dates"
	"github.com/duedatechanger/api/internal/handler"
	"github.com/duedatechanger/api/internal/jobs"
	"github.com/duedatechanger/api/internal/logger"
	"github.com/duedatechanger/api/internal/lti"
	"github.com/duedatechanger/api/internal/middleware"
	"github.com/duedatechanger/api/internal/service"
	"github.com/duedatechanger/api/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.Get()
		bootLog.Fatal().Err(err).Msg("Failed to load config")
	}

	logger.Init(cfg.Server.LogLevel, cfg.Server.LogFormat)
	log := logger.Get()

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("Redis not available")
	}

	// Initialize Asynq client and inspector
	asynqClient := asynq.NewClient(worker.RedisOpt(&cfg.Redis))
	defer asynqClient.Close()
	inspector := asynq.NewInspector(worker.RedisOpt(&cfg.Redis))
	defer inspector.Close()

	normalizer, err := dates.NewNormalizer(cfg.Dates.TimeZone, cfg.Dates.LocalFormat)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid date configuration")
	}

	validate := validator.New()
	canvas := client.NewCanvasClient(&cfg.Canvas)
	store := jobs.NewRedisStore(redisClient, time.Duration(cfg.Queue.JobTTLHours)*time.Hour)

	// Initialize services
	bulkEditService := service.NewBulkEditService(store, asynqClient, cfg.Queue.Name, time.Duration(cfg.Queue.JobTTLHours)*time.Hour)
	courseService := service.NewCourseService(canvas, normalizer)
	healthService := service.NewHealthService(canvas, redisClient, inspector, cfg.Queue.Name, cfg.Canvas.BaseURL)

	// Initialize middleware
	session := middleware.NewSessionMiddleware(cfg.Session.Secret, time.Duration(cfg.Session.Expiration)*time.Hour)
	rateLimiter := middleware.NewRateLimiter(redisClient)
	verifier := lti.NewVerifier(cfg.LTI.ConsumerKey, cfg.LTI.ConsumerSecret, lti.NewRedisNonceStore(redisClient), time.Duration(cfg.LTI.NonceTTLMinutes)*time.Minute)

	// Initialize handlers
	bulkEditHandler := handler.NewBulkEditHandler(bulkEditService, validate)
	courseHandler := handler.NewCourseHandler(courseService, validate)
	ltiHandler := handler.NewLTIHandler(verifier, session, cfg)
	healthHandler := handler.NewHealthHandler(healthService, cfg.Server.BaseURL)

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    4 * 1024 * 1024,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	handler.RegisterRoutes(app, handler.Routes{
		LTI:            ltiHandler,
		Course:         courseHandler,
		BulkEdit:       bulkEditHandler,
		Health:         healthHandler,
		Session:        session,
		RateLimiter:    rateLimiter,
		UpdatesPerHour: cfg.RateLimit.UpdatesPerHour,
	})

	var workerServer *asynq.Server
	if cfg.Worker.Embedded {
		orchestrator := bulkedit.NewOrchestrator(canvas, normalizer)
		workerServer = worker.NewServer(cfg, log)
		mux := worker.NewMux(worker.NewBulkEditWorker(store, orchestrator))
		if err := workerServer.Start(mux); err != nil {
			log.Fatal().Err(err).Msg("Failed to start embedded worker")
		}
		log.Info().Str("queue", cfg.Queue.Name).Msg("Embedded worker started")
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
		if workerServer != nil {
			workerServer.Shutdown()
		}
	}()

	addr := ":" + cfg.Server.Port
	log.Info().Str("addr", addr).Msg("Server starting")
	if err := app.Listen(addr); err != nil {
		log.Fatal().Err(err).Msg("Server error")
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
