// Package main runs the background worker: recording finalisation and the overdue-session sweeper.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-community/backend/config"
	"github.com/aura-community/backend/internal/communities"
	"github.com/aura-community/backend/internal/livesessions"
	"github.com/aura-community/backend/internal/realtime"
	"github.com/aura-community/backend/internal/streamkey"
	"github.com/aura-community/backend/internal/worker"
	"github.com/aura-community/backend/pkg/database"
	"github.com/aura-community/backend/pkg/queue"
	"github.com/aura-community/backend/pkg/redis"
	"github.com/aura-community/backend/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("load config", zap.Error(err))
	}
	logger := newLogger(cfg.Server.LogLevel)
	defer logger.Sync()

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{MaxConns: cfg.Database.MaxConns}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:               cfg.AWS.Region,
		Endpoint:             cfg.AWS.Endpoint,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		RecordingsBucket:     cfg.AWS.RecordingsBucket,
		PublicRecordings:     cfg.AWS.PublicRecordings,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	jobQueue := queue.NewQueue(rdb.Client, logger)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	issuer := streamkey.NewIssuer(streamkey.Config{
		IngestBaseURL:   cfg.Stream.IngestBaseURL,
		PlaybackBaseURL: cfg.Stream.PlaybackBaseURL,
	})
	sessionService := livesessions.NewService(livesessions.NewRepository(pool), communities.NewRepository(pool), issuer, livesessions.Config{
		DefaultMaxParticipants: cfg.Sessions.DefaultMaxParticipants,
		MaxParticipantsLimit:   cfg.Sessions.MaxParticipantsLimit,
		DefaultDurationMinutes: cfg.Sessions.DefaultDurationMinutes,
		MaxDurationMinutes:     cfg.Sessions.MaxDurationMinutes,
	}, logger)
	// Sessions ended by the sweeper notify websocket subscribers on every server instance.
	sessionService.SetEventPublisher(realtime.NewHub(logger, redisPubSub, nil))
	sessionService.SetRecordingQueue(jobQueue)

	processor := worker.NewRecordingProcessor(sessionService, s3Client, jobQueue, logger)
	sweeper := worker.NewSweeper(sessionService, cfg.Sessions.SweepInterval, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		processor.Run(workerCtx)
	}()
	go func() {
		defer wg.Done()
		sweeper.Run(workerCtx)
	}()
	logger.Info("worker started", zap.Duration("sweep_interval", cfg.Sessions.SweepInterval))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	wg.Wait()
	logger.Info("worker stopped")
}

func newLogger(level string) *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		config.Level = lvl
	}
	logger, _ := config.Build()
	return logger
}
