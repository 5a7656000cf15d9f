// BotMind Worker
//
// The thinking process: consumes bus events, runs the AI-backed use
// cases, produces heartbeats, and relays stuck outbox entries.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.botmind.dev/internal/ai"
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
	"go.botmind.dev/internal/usecase/chat"
	"go.botmind.dev/internal/usecase/instruction"
	"go.botmind.dev/internal/usecase/messaging"
	"go.botmind.dev/internal/usecase/session"
	"go.botmind.dev/internal/usecase/system"
	"go.botmind.dev/internal/worker"
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

	slog.Info("Starting BotMind Worker",
		"version", version,
		"build_time", buildTime)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	healthChecker := health.NewChecker()

	// Persistence
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

	// Event bus
	eventBus, err := bus.New(busConfig(cfg, "worker"))
	if err != nil {
		slog.Error("Failed to create event bus", "error", err)
		os.Exit(1)
	}

	// AI generator
	generator, err := buildGenerator(cfg)
	if err != nil {
		slog.Error("Failed to create AI generator", "error", err)
		os.Exit(1)
	}

	// Use case handlers on the mediator
	events := usecase.NewEvents(eventBus, outboxRepo)
	systemHandlers := system.NewHandlers(eventBus)

	builder := core.NewMediatorBuilder()
	chat.NewHandlers(uow, generator, events, cfg.AI.Provider, cfg.Bot.HomeChannelID).Register(builder)
	messaging.NewHandlers(uow, events).Register(builder)
	session.NewHandlers(uow).Register(builder)
	instruction.NewHandlers(uow).Register(builder)
	systemHandlers.Register(builder)

	mediator, err := builder.Build()
	if err != nil {
		slog.Error("Failed to build mediator", "error", err)
		os.Exit(1)
	}
	if err := mediator.Validate(
		chat.RecordChatTurnCommand{},
		chat.GenerateContentQuery{},
		chat.SpontaneousDialogCommand{},
		messaging.PublishReceivedMessageCommand{},
		messaging.PublishReceivedDirectMessageCommand{},
		messaging.ProcessSNSUpdateCommand{},
		session.CreateSessionCommand{},
		session.CloseSessionCommand{},
		instruction.CreateInstructionCommand{},
		instruction.ActivateInstructionCommand{},
		system.HandleHeartbeatCommand{},
	); err != nil {
		slog.Error("Mediator validation failed", "error", err)
		os.Exit(1)
	}
	systemHandlers.SetMediator(mediator)

	// Subscriptions must be bound before the bus starts.
	worker.NewConsumer(mediator, eventBus, cfg.Bot.HomeChannelID).Bind()

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

	heartbeat := worker.NewHeartbeat(eventBus, cfg.HeartbeatInterval)
	relay := outbox.NewRelay(outboxRepo, eventBus, outbox.RelayConfig{
		Interval:    cfg.Relay.Interval,
		GracePeriod: cfg.Relay.GracePeriod,
		BatchSize:   cfg.Relay.BatchSize,
	})
	opsServer := ops.NewServer(cfg.HTTP.Port, cfg.HTTP.CORSOrigins, healthChecker)

	healthChecker.AddLivenessCheck(health.ServiceCheck("heartbeat", heartbeat.Health))
	healthChecker.AddReadinessCheck(health.ServiceCheck("outbox-relay", relay.Health))

	supervisor := lifecycle.NewSupervisor(busService, heartbeat, relay, opsServer)
	if err := supervisor.Run(ctx); err != nil {
		slog.Error("Worker exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Worker stopped")
}

func buildGenerator(cfg *config.Config) (ai.Generator, error) {
	var inner ai.Generator
	switch cfg.AI.Provider {
	case ai.ProviderFake:
		inner = ai.NewFake()
	case ai.ProviderGemini:
		g, err := ai.NewGemini(ai.GeminiConfig{
			APIKey: cfg.AI.APIKey,
			Model:  cfg.AI.Model,
		})
		if err != nil {
			return nil, err
		}
		inner = g
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.AI.Provider)
	}

	resilientCfg := ai.DefaultResilientConfig()
	resilientCfg.RequestsPerMinute = cfg.AI.RequestsPerMinute
	return ai.NewResilient(inner, resilientCfg), nil
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
