// BotMind Bot
//
// The low-latency surface process: ingests user messages, records and
// announces them over the bus, and delivers bot.speak events to the
// chat platform.

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"

	"go.botmind.dev/internal/bot"
	"go.botmind.dev/internal/bus"
	"go.botmind.dev/internal/config"
	"go.botmind.dev/internal/core"
	"go.botmind.dev/internal/health"
	"go.botmind.dev/internal/lifecycle"
	"go.botmind.dev/internal/ops"
	"go.botmind.dev/internal/outbox"
	"go.botmind.dev/internal/persistence"
	"go.botmind.dev/internal/persistence/memory"
	"go.botmind.dev/internal/persistence/mongodb"
	"go.botmind.dev/internal/usecase"
	"go.botmind.dev/internal/usecase/messaging"
	"go.botmind.dev/internal/usecase/session"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	cfg, err := config.LoadWithFile()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if cfg.DevMode {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting BotMind Bot",
		"version", version,
		"build_time", buildTime)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	healthChecker := health.NewChecker()

	var (
		uow        persistence.UnitOfWork
		outboxRepo outbox.Repository
	)
	if cfg.DevMode {
		store := memory.NewStore()
		uow = memory.NewUnitOfWork(store)
		outboxRepo = store.Outbox()
		slog.Warn("Dev mode: using in-memory persistence")
	} else {
		slog.Info("Connecting to MongoDB", "uri", maskURI(cfg.MongoDB.URI))
		client, err := mongodb.Connect(ctx, cfg.MongoDB.URI, cfg.MongoDB.Database)
		if err != nil {
			slog.Error("Failed to connect to MongoDB", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := client.Disconnect(context.Background()); err != nil {
				slog.Error("Error disconnecting from MongoDB", "error", err)
			}
		}()
		healthChecker.AddReadinessCheck(health.MongoDBCheck(func() error {
			return client.Ping(ctx)
		}))

		mongoOutbox := outbox.NewMongoRepository(client.Database())
		if err := mongoOutbox.EnsureIndexes(ctx); err != nil {
			slog.Error("Failed to create outbox indexes", "error", err)
			os.Exit(1)
		}
		uow = mongodb.NewUnitOfWork(client)
		outboxRepo = mongoOutbox
	}

	eventBus, err := bus.New(busConfig(cfg, "bot"))
	if err != nil {
		slog.Error("Failed to create event bus", "error", err)
		os.Exit(1)
	}

	// The bot registers only its own fast-path use cases. Everything
	// needing the AI generator lives in the worker.
	events := usecase.NewEvents(eventBus, outboxRepo)
	builder := core.NewMediatorBuilder()
	messaging.NewHandlers(uow, events).Register(builder)
	session.NewHandlers(uow).Register(builder)

	mediator, err := builder.Build()
	if err != nil {
		slog.Error("Failed to build mediator", "error", err)
		os.Exit(1)
	}
	if err := mediator.Validate(
		messaging.PublishReceivedMessageCommand{},
		messaging.PublishReceivedDirectMessageCommand{},
		messaging.ProcessSNSUpdateCommand{},
		session.CreateSessionCommand{},
		session.CloseSessionCommand{},
	); err != nil {
		slog.Error("Mediator validation failed", "error", err)
		os.Exit(1)
	}

	var delivery bot.Delivery = bot.LogDelivery{}
	if cfg.Bot.DiscordToken != "" {
		d, err := bot.NewDiscordDelivery(cfg.Bot.DiscordToken)
		if err != nil {
			slog.Error("Failed to create Discord delivery", "error", err)
			os.Exit(1)
		}
		delivery = d
	} else {
		slog.Warn("No Discord token configured, replies go to the log")
	}

	// Subscriptions must be bound before the bus starts.
	bot.NewSpeaker(eventBus, delivery).Bind()

	ingest := bot.NewIngest(mediator, delivery)

	busService := lifecycle.NewServiceFunc("event-bus",
		func(ctx context.Context) error {
			if err := eventBus.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			return nil
		},
		func(ctx context.Context) error { return eventBus.Close() },
	)

	opsServer := ops.NewServer(cfg.HTTP.Port, cfg.HTTP.CORSOrigins, healthChecker, func(r chi.Router) {
		ingest.Mount(r)
	})

	supervisor := lifecycle.NewSupervisor(busService, opsServer)
	if err := supervisor.Run(ctx); err != nil {
		slog.Error("Bot exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Bot stopped")
}

func busConfig(cfg *config.Config, group string) bus.Config {
	return bus.Config{
		Type:  cfg.Bus.Type,
		Group: group,
		NATS: bus.NATSConfig{
			URL:        cfg.Bus.NATS.URL,
			StreamName: cfg.Bus.NATS.StreamName,
			DataDir:    cfg.Bus.NATS.DataDir,
			MaxAge:     cfg.Bus.NATS.MaxAge,
			AckWait:    cfg.Bus.NATS.AckWait,
			MaxDeliver: cfg.Bus.NATS.MaxDeliver,
		},
		Redis: bus.RedisConfig{
			Addr: cfg.Bus.Redis.Addr,
			DB:   cfg.Bus.Redis.DB,
		},
	}
}

// maskURI hides credentials embedded in a connection string.
func maskURI(uri string) string {
	if at := strings.Index(uri, "@"); at != -1 {
		if scheme := strings.Index(uri, "://"); scheme != -1 {
			return uri[:scheme+3] + "***" + uri[at:]
		}
	}
	return uri
}
