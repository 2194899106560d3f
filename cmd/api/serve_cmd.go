package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/abteilung-service/internal/api/graphql"
	httptransport "github.com/spec-kit/abteilung-service/internal/api/http"
	"github.com/spec-kit/abteilung-service/internal/api/http/handlers"
	"github.com/spec-kit/abteilung-service/internal/auth"
	"github.com/spec-kit/abteilung-service/internal/cache"
	"github.com/spec-kit/abteilung-service/internal/config"
	"github.com/spec-kit/abteilung-service/internal/events"
	"github.com/spec-kit/abteilung-service/internal/mail"
	"github.com/spec-kit/abteilung-service/internal/observability"
	"github.com/spec-kit/abteilung-service/internal/persistence"
	"github.com/spec-kit/abteilung-service/internal/query"
	"github.com/spec-kit/abteilung-service/internal/repository"
	"github.com/spec-kit/abteilung-service/internal/service"
	"github.com/spec-kit/abteilung-service/internal/worker"
)

const (
	notificationBuffer = 64
	shutdownTimeout    = 10 * time.Second
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the REST and GraphQL API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}
	if err := pg.CheckSchema(ctx); err != nil {
		return fmt.Errorf("check schema: %w", err)
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, cfg.App.Name, logger)
	defer redis.Close()

	var departmentRepo repository.DepartmentRepository
	if pool := pg.PoolHandle(); pool != nil {
		departmentRepo = repository.NewDepartmentRepository(pool)
	} else {
		departmentRepo = repository.NewMemoryDepartmentRepository()
	}

	var departmentCache service.DepartmentCache
	if cfg.Cache.Enabled && redis != nil {
		departmentCache = cache.NewDepartmentCache(redis.Client, cfg.Cache.TTL())
		logger.Info("department cache enabled", zap.Duration("ttl", cfg.Cache.TTL()))
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	for _, eventType := range events.AllEventTypes {
		dispatcher.Subscribe(eventType, func(_ context.Context, event events.Event) error {
			metrics.RecordEvent(string(event.Type))
			return nil
		})
	}

	notifications := service.NewNotificationService(mail.NewSender(cfg.Notification, logger), logger, cfg.Notification)
	workerCtx, stopWorker := context.WithCancel(context.Background())
	notificationWorker := worker.StartNotificationWorker(workerCtx, dispatcher, notifications, logger, notificationBuffer)
	defer func() {
		stopWorker()
		notificationWorker.Wait()
	}()

	deps := service.DepartmentDependencies{
		DepartmentRepo: departmentRepo,
		Builder:        query.NewBuilder(logger, keywordFlags(cfg.Search)...),
		Cache:          departmentCache,
		Dispatcher:     dispatcher,
		VersionPolicy:  versionPolicy(cfg.Update),
		Logger:         logger,
	}
	reads := service.NewDepartmentReadService(deps)
	writes := service.NewDepartmentWriteService(deps)

	accounts, err := auth.NewAccountStore(cfg.Auth.Users, cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	gqlServer, err := graphql.NewServer(reads, writes, logger)
	if err != nil {
		return err
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name, DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Departments:    handlers.NewDepartmentHandler(reads, writes),
		Auth:           handlers.NewAuthHandler(service.NewAuthService(accounts, tokens)),
		GraphQL:        handlers.NewGraphQLHandler(gqlServer),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		Metrics:        metrics,
	})

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		listenErr <- app.Listen(cfg.App.Addr())
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("fiber listen: %w", err)
	case <-ctx.Done():
		logger.Info("shutting down")
	}
	return app.ShutdownWithTimeout(shutdownTimeout)
}

func keywordFlags(cfg config.SearchConfig) []query.KeywordFlag {
	flags := make([]query.KeywordFlag, 0, len(cfg.KeywordFlags))
	for _, f := range cfg.KeywordFlags {
		flags = append(flags, query.KeywordFlag{Name: f.Name, Tag: f.Tag})
	}
	return flags
}

func versionPolicy(cfg config.UpdateConfig) service.VersionPolicy {
	if cfg.StrictVersion {
		return service.VersionPolicyStrict
	}
	return service.VersionPolicyAcceptNewer
}
