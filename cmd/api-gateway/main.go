package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/agency-case-api/api/swagger"
	"github.com/noah-isme/agency-case-api/internal/repository"
	"github.com/noah-isme/agency-case-api/internal/service"
	"github.com/noah-isme/agency-case-api/pkg/cache"
	"github.com/noah-isme/agency-case-api/pkg/config"
	"github.com/noah-isme/agency-case-api/pkg/database"
	"github.com/noah-isme/agency-case-api/pkg/jobs"
	"github.com/noah-isme/agency-case-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/agency-case-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/agency-case-api/pkg/middleware/requestid"
)

// @title Agency Case API
// @version 1.0.0
// @description Case lifecycle, commission and payout reconciliation for a student placement agency.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(context.Background(), cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			logr.Fatal("failed to apply migrations", zap.Error(err))
		}
	}

	// A nil interface keeps the cache repository in miss-only mode.
	var redisClient redis.UniversalClient
	if client, err := cache.NewRedis(context.Background(), cfg.Redis); err != nil {
		logr.Warn("redis unavailable, ledger cache and asynq notifications disabled", zap.Error(err))
	} else {
		redisClient = client
		defer client.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := buildApp(ctx, cfg, db, redisClient, logr)
	defer app.shutdown(logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS))
	registerRoutes(r, cfg, app, db)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "policy_version", app.policy.Current().Version)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	case <-ctx.Done():
		logr.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
}

type app struct {
	metrics   *service.MetricsService
	tokens    *service.TokenService
	policy    *service.PolicyService
	cases     *service.CaseService
	snapshots *service.SnapshotService
	ledger    *service.LedgerService
	payouts   *service.PayoutService
	audit     *service.AuditService

	queue *jobs.Queue
	asynq *asynq.Client
}

func buildApp(ctx context.Context, cfg *config.Config, db *sqlx.DB, redisClient redis.UniversalClient, logr *zap.Logger) *app {
	metrics := service.NewMetricsService()
	store := service.NewSQLStore(db)
	uow := service.NewSQLUnitOfWork(database.NewTxRunner(db))

	cacheRepo := repository.NewCacheRepository(redisClient, "agency:", logr)
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Ledger.CacheTTL, logr, cfg.Ledger.CacheEnabled && redisClient != nil)

	a := &app{metrics: metrics, tokens: service.NewTokenService(cfg.JWT.Secret)}

	var publisher service.NotificationPublisher = service.NewLogPublisher(logr)
	if cfg.Notifications.Enabled && redisClient != nil {
		a.asynq = asynq.NewClient(asynq.RedisClientOpt{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		publisher = service.NewAsynqPublisher(a.asynq, cfg.Notifications.Queue, cfg.Notifications.MaxRetries)
	}
	notifications := service.NewNotificationService(publisher, metrics, logr)
	a.queue = jobs.NewQueue("notifications", notifications.Handle, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
	})
	notifications.UseQueue(a.queue)
	a.queue.Start(ctx)

	a.policy = service.NewPolicyService(store, uow, cfg.Workflow, logr)
	if _, err := a.policy.Refresh(ctx); err != nil {
		logr.Warn("policy refresh failed, using configured defaults", zap.Error(err))
	}

	a.cases = service.NewCaseService(store, uow, a.policy, notifications, cacheSvc, metrics, nil, logr)
	a.snapshots = service.NewSnapshotService(store, uow, a.policy, notifications, cacheSvc, metrics, nil, logr)
	a.payouts = service.NewPayoutService(store, uow, a.policy, notifications, metrics, nil, logr)
	a.ledger = service.NewLedgerService(store, cacheSvc, cfg.Ledger.CacheTTL, logr)
	a.audit = service.NewAuditService(store)
	return a
}

func (a *app) shutdown(logr *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.queue.Stop(ctx)
	if a.asynq != nil {
		if err := a.asynq.Close(); err != nil {
			logr.Warn("asynq client close failed", zap.Error(err))
		}
	}
}
