package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/MikeSquared-Agency/clerk/internal/agents"
	"github.com/MikeSquared-Agency/clerk/internal/api"
	"github.com/MikeSquared-Agency/clerk/internal/config"
	"github.com/MikeSquared-Agency/clerk/internal/coordinator"
	"github.com/MikeSquared-Agency/clerk/internal/extractor"
	"github.com/MikeSquared-Agency/clerk/internal/gateway"
	"github.com/MikeSquared-Agency/clerk/internal/hermes"
	"github.com/MikeSquared-Agency/clerk/internal/intent"
	"github.com/MikeSquared-Agency/clerk/internal/processor"
	"github.com/MikeSquared-Agency/clerk/internal/session"
	"github.com/MikeSquared-Agency/clerk/internal/slack"
	"github.com/MikeSquared-Agency/clerk/internal/store"
)

// returnsBackend is everything the gateway and the agents read and write.
type returnsBackend interface {
	gateway.Store
	agents.Aggregator
	agents.DailySource
	agents.Searcher
}

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		slog.Warn("failed to load .env", "error", err)
	}
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("clerk starting", "port", cfg.Port, "store", cfg.Store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loc := cfg.Location()
	now := func() time.Time { return time.Now().In(loc) }

	// Returns store
	var backend returnsBackend
	switch cfg.Store {
	case "memory":
		backend = store.NewMemory()
		slog.Warn("using in-memory returns store, data is lost on restart")
	default:
		if cfg.DatabaseURL == "" {
			slog.Error("DATABASE_URL is required")
			os.Exit(1)
		}
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			slog.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		backend = db
		slog.Info("database connected")
	}

	// Conversation state
	var sessions session.Store
	if cfg.RedisAddr != "" {
		rdb := session.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer rdb.Close()
		rs := session.NewRedisStore(rdb, cfg.SessionTTL)
		if err := rs.Ping(ctx); err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		sessions = rs
		slog.Info("redis session store ready", "addr", cfg.RedisAddr, "ttl", cfg.SessionTTL)
	} else {
		ms := session.NewMemoryStore(cfg.SessionTTL)
		go ms.RunSweeper(ctx, time.Minute)
		sessions = ms
		slog.Warn("redis not configured, sessions kept in memory")
	}

	// NATS/Hermes (optional)
	var hermesClient *hermes.Client
	if cfg.NatsURL != "" {
		c, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer c.Close()
		hermesClient = c
		slog.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		slog.Warn("NATS not configured, running HTTP only")
	}

	// Slack poster (optional)
	var slackPoster *slack.Poster
	if cfg.SlackBotToken != "" && cfg.SlackChannel != "" {
		slackPoster = slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, slog.Default())
		slog.Info("slack poster ready", "channel", cfg.SlackChannel)
	} else {
		slog.Warn("slack not configured, commits will not be announced")
	}

	var notifiers []gateway.Notifier
	if hermesClient != nil {
		notifiers = append(notifiers, hermes.NewEventNotifier(hermesClient))
	}
	if slackPoster != nil {
		notifiers = append(notifiers, slackPoster)
	}
	gw := gateway.New(backend, cfg.CommitTimeout, slog.Default(), notifiers...)

	coord := coordinator.New(
		sessions,
		extractor.New(extractor.WithLocation(loc)),
		intent.New(),
		gw,
		coordinator.Agents{
			Report:    agents.NewReport(backend, now),
			Forecast:  agents.NewForecast(backend, now),
			Retrieval: agents.NewRetrieval(backend),
		},
		coordinator.Config{
			RequireConfirmation: cfg.RequireConfirmation,
			MaxTurns:            cfg.MaxTurns,
		},
		slog.Default(),
	)

	mode := "auto-commit"
	if cfg.RequireConfirmation {
		mode = "confirm-before-commit"
	}

	if hermesClient != nil {
		var threads processor.Threads
		if slackPoster != nil {
			threads = slackPoster
		}
		proc := processor.New(coord, hermesClient, threads, slog.Default())

		if err := hermesClient.Subscribe(hermes.SubjectUtterance, hermes.QueueGroup, proc.HandleUtterance); err != nil {
			slog.Error("failed to subscribe to utterances", "error", err)
			os.Exit(1)
		}
		if threads != nil {
			if err := hermesClient.Subscribe("swarm.slack.message", hermes.QueueGroup, proc.HandleSlackMessage); err != nil {
				slog.Error("failed to subscribe to slack messages", "error", err)
				os.Exit(1)
			}
			if err := hermesClient.Subscribe("swarm.slack.reaction", hermes.QueueGroup, proc.HandleReaction); err != nil {
				slog.Error("failed to subscribe to slack reactions", "error", err)
				os.Exit(1)
			}
		}

		if err := hermes.Register(hermesClient, mode, time.Now().UTC()); err != nil {
			slog.Warn("failed to publish registration", "error", err)
		}
	}

	// HTTP API
	srv := api.NewServer(cfg.Port, cfg.APIToken, coord, gw)
	srv.Mode = mode
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("clerk ready", "port", cfg.Port, "mode", mode)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("clerk stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
