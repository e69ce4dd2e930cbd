package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/support-assistant/internal/api/http"
	"github.com/spec-kit/support-assistant/internal/api/http/handlers"
	"github.com/spec-kit/support-assistant/internal/auth"
	"github.com/spec-kit/support-assistant/internal/bot"
	"github.com/spec-kit/support-assistant/internal/config"
	"github.com/spec-kit/support-assistant/internal/events"
	"github.com/spec-kit/support-assistant/internal/gateway/kb"
	"github.com/spec-kit/support-assistant/internal/gateway/translator"
	"github.com/spec-kit/support-assistant/internal/observability"
	"github.com/spec-kit/support-assistant/internal/persistence"
	"github.com/spec-kit/support-assistant/internal/repository"
	"github.com/spec-kit/support-assistant/internal/service"
	"github.com/spec-kit/support-assistant/internal/transport"
	"github.com/spec-kit/support-assistant/internal/worker"
)

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

	pool := pg.PoolHandle()
	tickets := repository.NewTicketStore(pool)
	activityIndex := repository.NewActivityIndex(pool)
	batchResults := repository.NewBatchResultStore(redis.Client)

	telemetry := observability.NewTelemetry()
	dispatcher := events.NewInMemoryDispatcher(logger)

	connector := transport.NewHTTPConnector(cfg.Bot, logger)
	kbClient := kb.NewClient(cfg.KnowledgeBase, logger)
	translatorClient := translator.NewClient(cfg.Translator, logger)
	membership := auth.NewMembershipCache(cfg.Bot, connector, logger)

	ticketService := service.NewTicketService(service.TicketDependencies{
		Tickets:    tickets,
		Connector:  connector,
		Dispatcher: dispatcher,
		Logger:     logger,
		SmeTeamID:  cfg.Bot.SmeTeamID,
	})
	qnaService := service.NewQnaService(service.QnaDependencies{
		KB:         kbClient,
		Index:      activityIndex,
		Connector:  connector,
		Dispatcher: dispatcher,
		Telemetry:  telemetry,
		Logger:     logger,
	})
	batchService := service.NewBatchService(service.BatchDependencies{
		KB:         kbClient,
		Translator: translatorClient,
		Results:    batchResults,
		Connector:  connector,
		Dispatcher: dispatcher,
		Telemetry:  telemetry,
		Logger:     logger,
	})
	notificationService := service.NewNotificationService(dispatcher, telemetry, logger)
	worker.StartNotificationWorker(notificationService)

	router := bot.NewRouter(bot.RouterDependencies{
		Cfg:        cfg.Bot,
		KB:         kbClient,
		Tickets:    ticketService,
		Qna:        qnaService,
		Batch:      batchService,
		Membership: membership,
		Connector:  connector,
		Telemetry:  telemetry,
		Logger:     logger,
	})

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, telemetry, cfg.App.RequestTimeout())

	webhookMiddleware := auth.NewWebhookMiddleware(auth.NewVerifier(cfg.Bot.WebhookSecret))
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:            handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Activities:        handlers.NewActivityHandler(router),
		WebhookMiddleware: webhookMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
