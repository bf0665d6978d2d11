// Package main runs the background worker: email delivery from the Redis queue and the package cycle reset cron.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-portal/backend/config"
	"github.com/aura-portal/backend/internal/emaillogs"
	"github.com/aura-portal/backend/internal/packages"
	"github.com/aura-portal/backend/internal/realtime"
	"github.com/aura-portal/backend/internal/worker"
	"github.com/aura-portal/backend/pkg/database"
	"github.com/aura-portal/backend/pkg/queue"
	"github.com/aura-portal/backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Publish-only: servers subscribed to the channel refresh dashboards after a reset.
	feed := realtime.NewFeed(realtime.NewRedisPubSub(rdb.Client, logger), logger)

	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewEmailProcessor(worker.NewSender(cfg.Email, logger), emaillogs.NewRepository(pool), logger)
	runner := worker.NewRunner(jobQueue, processor, logger, queue.QueueEmails)

	scheduler, err := worker.NewScheduler(cfg.Worker.CycleResetCron,
		packages.NewRepository(pool, cfg.Portal.DefaultMaxRevisions), feed, logger)
	if err != nil {
		logger.Fatal("scheduler", zap.Error(err))
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		runner.Run(workerCtx)
		close(done)
	}()
	scheduler.Start()
	logger.Info("worker started", zap.String("cycle_reset_cron", cfg.Worker.CycleResetCron))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	scheduler.Stop()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn("worker loop did not stop in time")
	}
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
