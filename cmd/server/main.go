// Package main runs the community live sessions HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-community/backend/config"
	"github.com/aura-community/backend/internal/analytics"
	"github.com/aura-community/backend/internal/auth"
	"github.com/aura-community/backend/internal/communities"
	"github.com/aura-community/backend/internal/livesessions"
	"github.com/aura-community/backend/internal/middleware"
	"github.com/aura-community/backend/internal/realtime"
	"github.com/aura-community/backend/internal/streamkey"
	"github.com/aura-community/backend/pkg/database"
	"github.com/aura-community/backend/pkg/queue"
	"github.com/aura-community/backend/pkg/redis"
	"github.com/aura-community/backend/pkg/response"
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

	// Realtime: websocket hub, Redis pub/sub across instances
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	defer redisPubSub.Close()
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.ExpireHours)
	issuer := streamkey.NewIssuer(streamkey.Config{
		IngestBaseURL:   cfg.Stream.IngestBaseURL,
		PlaybackBaseURL: cfg.Stream.PlaybackBaseURL,
	})

	communityRepo := communities.NewRepository(pool)
	sessionRepo := livesessions.NewRepository(pool)
	sessionService := livesessions.NewService(sessionRepo, communityRepo, issuer, livesessions.Config{
		DefaultMaxParticipants: cfg.Sessions.DefaultMaxParticipants,
		MaxParticipantsLimit:   cfg.Sessions.MaxParticipantsLimit,
		DefaultDurationMinutes: cfg.Sessions.DefaultDurationMinutes,
		MaxDurationMinutes:     cfg.Sessions.MaxDurationMinutes,
	}, logger)
	sessionService.SetEventPublisher(hub)
	sessionService.SetRecordingQueue(queue.NewQueue(rdb.Client, logger))

	analyticsService := analytics.NewService(sessionRepo, communityRepo, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) {
		hctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(hctx); err != nil {
			response.Error(c, err)
			return
		}
		if err := rdb.Healthy(hctx); err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.Use(middleware.JWT(jwtService))
	communities.NewHandler(communityRepo).RegisterRoutes(api)
	livesessions.NewHandler(sessionService).RegisterRoutes(api)
	analytics.NewHandler(analyticsService).RegisterRoutes(api)

	validateToken := func(token string) (uuid.UUID, error) {
		id, err := jwtService.Validate(token)
		if err != nil {
			return uuid.Nil, err
		}
		return id.UserID, nil
	}
	router.GET("/ws", realtime.ServeWs(hub, sessionService, validateToken, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
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
