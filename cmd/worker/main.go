package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/tidemark-analytics/tidemark/internal/app"
	jobmetrics "github.com/tidemark-analytics/tidemark/internal/jobs"
	"github.com/tidemark-analytics/tidemark/internal/platform/cache"
	"github.com/tidemark-analytics/tidemark/internal/platform/db"
	"github.com/tidemark-analytics/tidemark/internal/profit"
	"github.com/tidemark-analytics/tidemark/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, warmup will recompute", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	repo := profit.NewRepository(pool)
	var seriesCache *profit.Cache
	if redisClient != nil {
		seriesCache = profit.NewCache(redisClient, cfg.AttributionCacheTTL)
	}
	engine := profit.NewService(repo, seriesCache, logger, cfg.MaxLookbackDays)

	metrics := jobmetrics.NewMetrics(nil)
	rollupJob := jobs.NewProfitRollupJob(engine, logger, metrics)
	warmupJob := jobs.NewAttributionWarmupJob(engine, repo, logger, metrics)

	nightlyTask, err := jobs.NewProfitRollupTask(jobs.ProfitRollupPayload{
		WindowDays: cfg.RollupWindowDays,
		FillZeros:  true,
	})
	if err != nil {
		logger.Error("build rollup task", slog.Any("error", err))
		os.Exit(1)
	}
	warmupTask, err := jobs.NewAttributionWarmupTask(jobs.AttributionWarmupPayload{RangeDays: 30})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskProfitRollup, Handler: rollupJob.Handle},
			{Type: jobs.TaskAttributionWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "30 2 * * *", Task: nightlyTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "15 3 * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(2)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
