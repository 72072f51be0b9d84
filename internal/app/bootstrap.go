package app

import (
	"context"
	"fmt"
	"time"

	"messenger/internal/app/health"
	"messenger/internal/app/message"
	"messenger/internal/app/notification"
	"messenger/internal/app/thread"
	"messenger/internal/config"
	"messenger/internal/db"
	"messenger/internal/db/seeder"
	"messenger/internal/gateways/relay"
	"messenger/internal/gateways/socketio"
	"messenger/internal/gateways/websocket"
	"messenger/internal/jobs"
	"messenger/internal/providers/redis"
	"messenger/internal/router"
	"messenger/internal/utils"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Application is a wired process: the HTTP router plus whatever must be stopped on exit.
type Application struct {
	Router *router.Router
	DB     *gorm.DB

	closers []func()
}

func (a *Application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// BootstrapAPI wires the JSON API: persistence, broadcast cursor, composer and publisher.
func BootstrapAPI(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Application, error) {
	dbConn, err := db.Connect(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(dbConn, logger); err != nil {
		return nil, err
	}

	redisProvider := redis.NewRedisProvider(cfg.RedisURL, logger)
	application := &Application{DB: dbConn}
	application.closers = append(application.closers, func() { _ = redisProvider.Close() })

	threadRepo := thread.NewRepository(dbConn, cfg.UserTable)
	threadService := thread.NewService(threadRepo, thread.NewRedisCursor(redisProvider), logger, cfg.DefaultCategory)
	tracker := thread.NewTracker(threadRepo, logger)

	tokens := notification.NewTokens(cfg.TokenSecret)
	publisher := notification.NewRedisPublisher(redisProvider, cfg.Channel, logger)
	messageService := message.NewService(threadService, publisher, tokens, logger)

	seed := seeder.NewSeeder(dbConn, threadService, cfg, logger)
	if err := seed.Seed(ctx); err != nil {
		logger.Warn("Failed to run seeders", zap.Error(err))
	}

	var scheduler *cron.Cron
	if cfg.PurgeSchedule != "" {
		scheduler, err = jobs.Schedule(cfg.PurgeSchedule, jobs.NewPurgeJob(threadRepo, cfg.PurgeRetention, logger), logger)
		if err != nil {
			application.Close()
			return nil, fmt.Errorf("schedule purge job: %w", err)
		}
		application.closers = append(application.closers, func() { <-scheduler.Stop().Done() })
	}

	healthHandler := health.NewHandler(health.NewService(2*time.Second,
		utils.DBCheck(dbConn),
		utils.RedisCheck(redisProvider.Client),
	))
	threadHandler := thread.NewHandler(threadService, tracker, logger)
	messageHandler := message.NewHandler(messageService, logger)
	notificationHandler := notification.NewHandler(tokens, cfg.Channel)

	r := router.NewRouter(logger, cfg.AllowedOrigins())
	authed := r.Authenticated([]byte(cfg.JWTSecret))

	r.RegisterHealthRoutes(healthHandler)
	r.RegisterMetricsRoutes()
	r.RegisterThreadRoutes(authed, threadHandler)
	r.RegisterMessageRoutes(authed, messageHandler, cfg.SendRatePerMinute, cfg.SendBurst)
	r.RegisterNotificationRoutes(authed, notificationHandler)

	application.Router = r
	return application, nil
}

// BootstrapGateway wires the real-time gateway: channel relay, event bus, websocket hub
// and socket.io server. Background loops stop when ctx is cancelled.
func BootstrapGateway(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Application, error) {
	redisProvider := redis.NewRedisProvider(cfg.RedisURL, logger)
	application := &Application{}
	application.closers = append(application.closers, func() { _ = redisProvider.Close() })

	eventBus := utils.NewEventBus(1024)
	go eventBus.Run(ctx)

	hub := websocket.NewHub(logger, 32)
	go hub.Run(ctx)
	relay.Forward(eventBus, hub.Dispatch)

	sio := socketio.NewServer(logger)
	go func() {
		if err := sio.Serve(); err != nil {
			logger.Error("Socket.io server stopped", zap.Error(err))
		}
	}()
	application.closers = append(application.closers, func() { _ = sio.Close() })
	relay.Forward(eventBus, sio.Dispatch)

	subscriber := relay.NewSubscriber(redisProvider, cfg.Channel, eventBus, logger)
	go func() {
		if err := subscriber.Run(ctx); err != nil {
			logger.Error("Relay stopped", zap.Error(err))
		}
	}()

	healthHandler := health.NewHandler(health.NewService(2*time.Second, utils.RedisCheck(redisProvider.Client)))

	r := router.NewRouter(logger, cfg.AllowedOrigins())
	r.RegisterHealthRoutes(healthHandler)
	r.RegisterMetricsRoutes()
	r.RegisterWebSocketRoutes(hub)
	r.RegisterSocketIORoutes(sio)

	application.Router = r
	return application, nil
}
