package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-intake/internal/api/http"
	"github.com/spec-kit/ticket-intake/internal/api/http/handlers"
	"github.com/spec-kit/ticket-intake/internal/classifier"
	"github.com/spec-kit/ticket-intake/internal/config"
	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/events"
	"github.com/spec-kit/ticket-intake/internal/integration/crm"
	"github.com/spec-kit/ticket-intake/internal/integration/oauth"
	"github.com/spec-kit/ticket-intake/internal/observability"
	"github.com/spec-kit/ticket-intake/internal/persistence"
	"github.com/spec-kit/ticket-intake/internal/repository"
	"github.com/spec-kit/ticket-intake/internal/service"
	"github.com/spec-kit/ticket-intake/internal/worker"
)

const shutdownTimeout = 20 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	ticketRepo := repository.NewTicketRepository(pg.PoolHandle())
	dispatcher := events.NewInMemoryDispatcher(logger)

	credentials := oauth.NewCredentialStore(domain.Credential{
		AccessToken:  cfg.CRM.AccessToken,
		RefreshToken: cfg.CRM.RefreshToken,
		ClientID:     cfg.CRM.ClientID,
		ClientSecret: cfg.CRM.ClientSecret,
	})
	refresherCfg := oauth.RefresherConfig{
		TokenURL: cfg.CRM.AuthURL,
		Metrics:  metrics,
	}
	if cfg.CRM.TokenCacheKey != "" {
		refresherCfg.Cache = persistence.NewTokenCache(redis.Client, cfg.CRM.TokenCacheKey)
	}
	refresher := oauth.NewTokenRefresher(credentials, refresherCfg, logger)
	if refresher.Restore(ctx) {
		logger.Info("restored crm access token from cache")
	}

	gateway := crm.NewGateway(credentials, refresher, crm.GatewayConfig{
		AuthScheme: cfg.CRM.AuthScheme,
		Timeout:    cfg.CRM.Timeout(),
		Metrics:    metrics,
	}, logger)
	crmClient := crm.NewClient(gateway, cfg.CRM.FormURL, logger)
	if !crmClient.Configured() {
		logger.Warn("CRM_FORM_URL not provided; tickets will not be forwarded")
	}

	analyzer := classifier.NewClient(classifier.Config{
		BaseURL:       cfg.Classifier.BaseURL,
		Timeout:       cfg.Classifier.Timeout(),
		HealthTimeout: cfg.Classifier.HealthTimeout(),
		Metrics:       metrics,
	}, logger)

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: ticketRepo,
		Analyzer:   analyzer,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	statusService := service.NewStatusService(pg, analyzer, crmClient)
	analyticsService := service.NewAnalyticsService(ticketRepo)

	forwarder := worker.NewForwardWorker(crmClient, ticketRepo, dispatcher, metrics, logger)
	forwarder.Start()
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, logger))

	limiter := httptransport.NewRateLimiter(httptransport.RateLimiterConfigFrom(cfg.RateLimit), logger)
	defer limiter.Stop()

	app := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: 10 * 1024 * 1024,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:      handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Tickets:     handlers.NewTicketsHandler(ticketService, statusService, handlers.NewSanitizer(), cfg.Classifier.HealthTimeout()),
		Analytics:   handlers.NewAnalyticsHandler(analyticsService),
		RateLimiter: limiter,
		Gatherer:    registry,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	forwarder.Wait()
	logger.Info("in-flight forwards drained")
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
