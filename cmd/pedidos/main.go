package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/sistemas-pedidos/pedidos-api/cmd/pedidos/cli"
	"github.com/sistemas-pedidos/pedidos-api/internal/app"
	"github.com/sistemas-pedidos/pedidos-api/internal/integration"
	"github.com/sistemas-pedidos/pedidos-api/internal/observability"
	"github.com/sistemas-pedidos/pedidos-api/internal/platform/cache"
	"github.com/sistemas-pedidos/pedidos-api/internal/platform/db"
	"github.com/sistemas-pedidos/pedidos-api/internal/rbac"
	"github.com/sistemas-pedidos/pedidos-api/internal/receiving"
	"github.com/sistemas-pedidos/pedidos-api/internal/requests"
	"github.com/sistemas-pedidos/pedidos-api/internal/shared"
	"github.com/sistemas-pedidos/pedidos-api/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	if len(os.Args) > 1 {
		os.Exit(runCommand(cfg, os.Args[1], os.Args[2:]))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	tokens := shared.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer)
	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	metrics := observability.NewMetrics()

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	hooks := integration.NewHooks(redisClient, cfg.NotifyChannel, jobClient, logger)
	if cfg.KafkaEnabled() {
		if writer := integration.NewKafkaWriter(strings.Join(cfg.KafkaBrokers, ","), cfg.KafkaTopic); writer != nil {
			hooks.WithKafka(writer)
			defer func() {
				if err := writer.Close(); err != nil {
					logger.Warn("kafka close", slog.Any("error", err))
				}
			}()
		}
	}

	receivingRepo := receiving.NewRepository(dbpool)
	requestsRepo := requests.NewRepository(dbpool)
	requestsService := requests.NewService(requestsRepo, receivingRepo, auditLogger, logger)
	receivingService := receiving.NewService(receivingRepo, requestsService, auditLogger, idempotencyStore, logger)
	receivingService.SetEventHandler(hooks)
	receivingService.SetMetrics(metrics)

	rbacMiddleware := rbac.Middleware{Tokens: tokens, Logger: logger}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		RBACMiddleware:   rbacMiddleware,
		RequestsHandler:  requests.NewHandler(logger, requestsService, rbacMiddleware),
		ReceivingHandler: receiving.NewHandler(logger, receivingService, rbacMiddleware),
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// runCommand dispatches operational subcommands and returns the exit code.
func runCommand(cfg *app.Config, name string, args []string) int {
	ctx := context.Background()
	switch name {
	case "token":
		fs := flag.NewFlagSet("token", flag.ContinueOnError)
		opts := cli.TokenOptions{}
		fs.Int64Var(&opts.UserID, "user", 0, "user id (subject)")
		fs.StringVar(&opts.Name, "name", "", "display name")
		fs.StringVar(&opts.Email, "email", "", "email")
		fs.StringVar(&opts.Role, "role", string(shared.RoleRequester), "admin or requester")
		fs.Int64Var(&opts.SectorID, "sector", 0, "sector id")
		fs.DurationVar(&opts.TTL, "ttl", cfg.JWTTTL, "token lifetime")
		if err := fs.Parse(args); err != nil {
			return 2
		}
		return cli.TokenCommand(shared.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer), opts)
	case "jobs":
		fs := flag.NewFlagSet("jobs", flag.ContinueOnError)
		trigger := fs.String("trigger", "", "job to enqueue ("+jobs.TaskIdempotencyCleanup+")")
		if err := fs.Parse(args); err != nil {
			return 2
		}
		jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		defer jobsCLI.Close()
		if *trigger != "" {
			info, err := jobsCLI.Trigger(ctx, *trigger, int(cfg.IdempotencyRetention.Hours()))
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
			fmt.Fprintf(os.Stdout, "enqueued %s (%s)\n", info.Type, info.ID)
			return 0
		}
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		_ = json.NewEncoder(os.Stdout).Encode(stats)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (want token or jobs)\n", name)
		return 2
	}
}
