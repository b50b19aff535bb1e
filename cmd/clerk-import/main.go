package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"

	"github.com/MikeSquared-Agency/clerk/internal/config"
	"github.com/MikeSquared-Agency/clerk/internal/gateway"
	"github.com/MikeSquared-Agency/clerk/internal/ingest"
	"github.com/MikeSquared-Agency/clerk/internal/slack"
	"github.com/MikeSquared-Agency/clerk/internal/store"
)

// Options are the command line flags. Connection settings come from the
// same environment as the server.
type Options struct {
	State     string `short:"s" long:"state" description:"resumable state file" default:"~/.clerk/import-state.json"`
	DryRun    bool   `short:"n" long:"dry-run" description:"parse and validate rows without writing"`
	BatchSize int    `short:"b" long:"batch-size" description:"rows between state saves" default:"100"`
	Announce  bool   `long:"announce" description:"post the summary to the Slack returns channel"`
	LogLevel  string `long:"log-level" description:"debug, info, warn or error" default:"info"`
	Args      struct {
		Files []string `positional-arg-name:"FILE" required:"1"`
	} `positional-args:"yes"`
}

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	var opts Options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Usage = "[OPTIONS] FILE..."
	if _, err := parser.Parse(); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			fmt.Println(err)
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := run(opts); err != nil {
		slog.Error("import failed", "error", err)
		os.Exit(1)
	}
}

func run(opts Options) error {
	cfg := config.Load()
	setupLogging(opts.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var backend gateway.Store
	switch {
	case cfg.Store == "memory" || (opts.DryRun && cfg.DatabaseURL == ""):
		backend = store.NewMemory()
	case cfg.DatabaseURL == "":
		return errors.New("DATABASE_URL is required")
	default:
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		backend = db
	}

	var announcer ingest.Announcer
	if opts.Announce && cfg.SlackBotToken != "" && cfg.SlackChannel != "" {
		announcer = slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, slog.Default())
	}

	gw := gateway.New(backend, cfg.CommitTimeout, slog.Default())
	runner := ingest.NewRunner(ingest.Config{
		Files:     opts.Args.Files,
		StatePath: opts.State,
		DryRun:    opts.DryRun,
		BatchSize: opts.BatchSize,
	}, gw, announcer, slog.Default())

	sum, err := runner.Run(ctx)
	fmt.Print(ingest.FormatSummary(sum))
	if err != nil {
		return err
	}
	fmt.Printf("State file: %s\n", opts.State)
	return nil
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
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
