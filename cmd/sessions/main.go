package main

import (
	"context"

	"coachdesk/internal/sessions/handler"
	"coachdesk/internal/sessions/livefeed"
	"coachdesk/internal/sessions/notify"
	"coachdesk/internal/sessions/repository"
	"coachdesk/internal/sessions/service"
	"coachdesk/internal/sessions/validator"
	"coachdesk/pkg/app"
	"coachdesk/pkg/config"
	"coachdesk/pkg/kafka"
	kafka_config "coachdesk/pkg/kafka/config"
)

const (
	ServiceName = "sessions"
	EventsTopic = "session-events"
)

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Sessions service")

	producer, notifier := initNotifier(cfg)
	if producer != nil {
		defer producer.Close()
	}

	feed := livefeed.NewFeed(cfg.Log, cfg.FeedSnapshotTimeout)
	sessionService := initServices(cfg, feed, notifier)
	feed.SetLoader(sessionService)

	feedCtx, stopFeed := context.WithCancel(context.Background())
	defer stopFeed()
	go feed.Run(feedCtx)

	serverApp := app.NewApplication()
	serverApp.SetApp(cfg,
		handler.NewSessionHandler(cfg, sessionService),
		handler.NewWatchHandler(cfg, feed),
	)
	serverApp.Run()
}

func initServices(cfg *config.Config, feed *livefeed.Feed, notifier notify.Notifier) service.SessionService {
	sessionValidator := validator.NewSessionValidator()
	sessionRepo := repository.NewMongoSessionRepository(cfg)
	lockRepo := repository.NewSessionLockRepository(cfg)

	sessionService := service.NewSessionService(
		cfg,
		sessionRepo,
		lockRepo,
		sessionValidator,
		feed,
		notifier,
	)

	cfg.Log.Info("Session service initialized", "database", cfg.MongoDatabaseName)
	return sessionService
}

func initNotifier(cfg *config.Config) (*kafka.Producer, notify.Notifier) {
	kafkaCfg := kafka_config.Load()
	if !kafkaCfg.Enabled() {
		cfg.Log.Info("Kafka brokers not configured, session events disabled")
		return nil, notify.NewNoopNotifier()
	}

	producer, err := kafka.NewProducer(kafkaCfg, EventsTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}

	cfg.Log.Info("Session event publishing enabled", "topic", EventsTopic, "brokers", kafkaCfg.Brokers)
	return producer, notify.NewKafkaNotifier(producer, cfg.Log)
}
