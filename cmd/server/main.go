// Package main runs the client portal HTTP server with the realtime change feed and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-portal/backend/config"
	"github.com/aura-portal/backend/internal/analytics"
	"github.com/aura-portal/backend/internal/assets"
	"github.com/aura-portal/backend/internal/auth"
	"github.com/aura-portal/backend/internal/billing"
	"github.com/aura-portal/backend/internal/clients"
	"github.com/aura-portal/backend/internal/deliverables"
	"github.com/aura-portal/backend/internal/emaillogs"
	"github.com/aura-portal/backend/internal/health"
	"github.com/aura-portal/backend/internal/notifications"
	"github.com/aura-portal/backend/internal/packages"
	"github.com/aura-portal/backend/internal/realtime"
	"github.com/aura-portal/backend/internal/subusers"
	"github.com/aura-portal/backend/internal/validation"
	"github.com/aura-portal/backend/pkg/database"
	"github.com/aura-portal/backend/pkg/queue"
	"github.com/aura-portal/backend/pkg/redis"
	"github.com/aura-portal/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if err := validation.Register(); err != nil {
		logger.Fatal("validation", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		DeliverablesBucket:   cfg.AWS.DeliverablesBucket,
		AssetsBucket:         cfg.AWS.AssetsBucket,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	feedCtx, feedCancel := context.WithCancel(context.Background())
	defer feedCancel()
	feed := realtime.NewFeed(realtime.NewRedisPubSub(rdb.Client, logger), logger)
	hub := realtime.NewHub(logger)
	feed.Subscribe(hub.OnChange)

	jobQueue := queue.NewQueue(rdb.Client, logger)
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	clientRepo := clients.NewRepository(pool)
	authRepo := auth.NewRepository(pool)
	packageRepo := packages.NewRepository(pool, cfg.Portal.DefaultMaxRevisions)
	billingRepo := billing.NewRepository(pool)
	notificationRepo := notifications.NewRepository(pool)

	notificationSvc := notifications.NewService(notificationRepo, notificationRepo, clientRepo, jobQueue, feed,
		cfg.Portal.TenantID, logger)
	deliverableSvc := deliverables.NewService(deliverables.Deps{
		Store:    deliverables.NewRepository(pool),
		Usage:    packageRepo,
		Policy:   packageRepo,
		Files:    s3Client,
		Notifier: notificationSvc,
		Feed:     feed,
		Logger:   logger,
	})
	subUserSvc := subusers.NewService(subusers.NewRepository(pool), jobQueue, feed, subusers.Config{
		TenantID:  cfg.Portal.TenantID,
		InviteTTL: time.Duration(cfg.Portal.InviteTTLHours) * time.Hour,
		AppURL:    cfg.Portal.AppURL,
	}, logger)
	analyticsSvc := analytics.NewService(analytics.NewRepository(pool), rdb,
		time.Duration(cfg.Portal.AnalyticsCacheSeconds)*time.Second, logger)
	feed.Subscribe(analyticsSvc.OnChange)
	assetSvc := assets.NewService(assets.NewRepository(pool), s3Client, feed, logger)

	if err := feed.Start(feedCtx); err != nil {
		logger.Fatal("change feed", zap.Error(err))
	}

	healthHandler := health.NewHandler(map[string]health.Check{
		"postgres": pool.Ping,
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}, 2*time.Second, logger)

	h := handlers{
		auth:          auth.NewHandler(authRepo, jwtService, clientRepo, logger),
		clients:       clients.NewHandler(clientRepo, logger),
		deliverables:  deliverables.NewHandler(deliverableSvc, logger),
		subusers:      subusers.NewHandler(subUserSvc, logger),
		notifications: notifications.NewHandler(notificationSvc, logger),
		packages:      packages.NewHandler(packageRepo, feed, logger),
		billing:       billing.NewHandler(billingRepo, feed, logger),
		analytics:     analytics.NewHandler(analyticsSvc, logger),
		assets:        assets.NewHandler(assetSvc, logger),
		emailLogs:     emaillogs.NewHandler(emaillogs.NewRepository(pool), logger),
		health:        healthHandler,
	}

	router := gin.New()
	registerRoutes(router, cfg, logger, jwtService, clientRepo, subUserSvc, hub, h)

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

	feedCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
