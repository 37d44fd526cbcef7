package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hook-system/hook/internal/api"
	"github.com/hook-system/hook/internal/config"
	"github.com/hook-system/hook/internal/configs/env"
	"github.com/hook-system/hook/internal/infra/mongo"
	redisInfra "github.com/hook-system/hook/internal/infra/redis"
	"github.com/hook-system/hook/internal/logger"
	"github.com/hook-system/hook/internal/metrics"
	"github.com/hook-system/hook/internal/notify"
	"github.com/hook-system/hook/internal/plagiarism"
	"github.com/hook-system/hook/internal/repository"
	"github.com/hook-system/hook/internal/scheduler"
	"github.com/hook-system/hook/internal/stream"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := env.LoadEnv(); err != nil {
		log.Warn().Err(err).Msg("Failed to load .env file, continuing with system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("Invalid configuration: %v", err))
	}

	logger.Init(cfg.LogLevel, cfg.LogPretty)
	log.Info().
		Int("k", cfg.KGramSize).
		Int("t", cfg.GuaranteeThreshold).
		Msg("Starting hook processor")

	metrics.InitPrometheus()
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.MetricsHandler())
	metricsServer := api.StartServer(metricsMux, "metrics", cfg.MetricsPort)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mongoClient, err := mongo.NewClient(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create MongoDB client")
	}
	defer mongoClient.Close(context.Background())

	redisClient, err := redisInfra.NewClient(ctx, cfg.RedisHost, cfg.RedisPassword, 0)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Redis client")
	}
	defer redisClient.Close()

	mongoRepo := repository.NewMongoRepository(mongoClient)
	if err := mongoRepo.EnsureIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to create MongoDB indexes")
	}
	reportsRepo := repository.NewReportsRepository(mongoRepo)
	fileRecordsRepo := repository.NewFileRecordsRepository(mongoRepo)

	diskStore, err := repository.NewDiskReportStore(cfg.ResultsDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare results directory")
	}

	statusStore := plagiarism.NewStatusStore(redisClient.Client, cfg.StatusTTL)

	var notifier plagiarism.Notifier = notify.LogNotifier{}
	if cfg.SMTPEnabled() {
		notifier = notify.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.SMTPPassword)
	}

	winnower, err := plagiarism.NewWinnower(cfg.KGramSize, cfg.GuaranteeThreshold)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create winnower")
	}

	// the file pool outlives ctx so the job in progress at shutdown can finish
	pool := plagiarism.NewWorkerPool(context.Background(), 0)

	processor := plagiarism.NewProcessor(
		winnower,
		pool,
		[]plagiarism.ReportSink{reportsRepo, diskStore},
		plagiarism.WithFileRecords(fileRecordsRepo),
		plagiarism.WithStatusTracker(statusStore),
		plagiarism.WithNotifier(notifier),
	)

	sched := scheduler.New(cfg.InitialSecondsPerFile)
	worker := scheduler.NewWorker(ctx, sched, processor, cfg.IdleDelay, metrics.NewWorkerObserver(sched))
	if err := worker.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start submission worker")
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}
	consumerName := fmt.Sprintf("consumer-%s-%d-%s", hostname, os.Getpid(), uuid.New().String()[:8])
	consumer := stream.NewConsumer(
		redisClient.Client,
		cfg.StreamKey,
		cfg.ConsumerGroup,
		consumerName,
		sched,
		statusStore,
		cfg.StreamRetentionDuration,
	)

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Redis consumer error")
		}
	}()
	log.Info().Str("consumer_name", consumerName).Msg("Redis consumer started")

	reports := repository.NewFallbackReports(reportsRepo, diskStore)
	router := api.SetupRoutes(cfg, api.NewHandler(sched, statusStore, reports, fileRecordsRepo))
	srv := api.StartServer(router, "api", cfg.ServerPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Int("queued", sched.Len()).Msg("Shutting down gracefully...")

	if err := api.ShutdownServer(srv, 30*time.Second); err != nil {
		log.Error().Err(err).Msg("Error shutting down API server")
	}

	cancel()
	<-consumerDone
	worker.Close()
	pool.Close()

	if err := api.ShutdownServer(metricsServer, 5*time.Second); err != nil {
		log.Error().Err(err).Msg("Error shutting down metrics server")
	}

	log.Info().Msg("Shutdown complete")
}
