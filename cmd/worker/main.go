package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/sistemas-pedidos/pedidos-api/internal/app"
	jobmetrics "github.com/sistemas-pedidos/pedidos-api/internal/jobs"
	"github.com/sistemas-pedidos/pedidos-api/internal/platform/db"
	"github.com/sistemas-pedidos/pedidos-api/internal/receiving"
	"github.com/sistemas-pedidos/pedidos-api/internal/requests"
	"github.com/sistemas-pedidos/pedidos-api/internal/shared"
	"github.com/sistemas-pedidos/pedidos-api/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: 5})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := jobmetrics.NewMetrics(nil)
	requestsRepo := requests.NewRepository(pool)
	receivingRepo := receiving.NewRepository(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	recordedJob := jobs.NewReceiptRecordedHandler(requestsRepo, receivingRepo, metrics, logger)
	cleanupJob := jobs.NewIdempotencyCleanupHandler(idempotencyStore, cfg.IdempotencyRetention, metrics, logger)

	cleanupTask, err := jobs.NewIdempotencyCleanupTask(int(cfg.IdempotencyRetention.Hours()))
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskReceiptRecorded, Handler: recordedJob},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 3 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("redis", cfg.RedisAddr), slog.String("tasks", fmt.Sprintf("%s,%s", jobs.TaskReceiptRecorded, jobs.TaskIdempotencyCleanup)))
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
