package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        int
	NatsURL     string
	NatsToken   string
	DatabaseURL string
	// Store selects the returns store: "postgres" or "memory".
	Store    string
	LogLevel string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SessionTTL    time.Duration

	SlackBotToken string
	SlackChannel  string
	APIToken      string

	RequireConfirmation bool
	CommitTimeout       time.Duration
	MaxTurns            int
	Timezone            string
}

func Load() Config {
	return Config{
		Port:                envInt("CLERK_PORT", 8760),
		NatsURL:             envStr("NATS_URL", ""),
		NatsToken:           envStr("NATS_TOKEN", ""),
		DatabaseURL:         envStr("DATABASE_URL", ""),
		Store:               strings.ToLower(envStr("CLERK_STORE", "postgres")),
		LogLevel:            envStr("LOG_LEVEL", "info"),
		RedisAddr:           envStr("REDIS_ADDR", ""),
		RedisPassword:       envStr("REDIS_PASSWORD", ""),
		RedisDB:             envInt("REDIS_DB", 0),
		SessionTTL:          envDuration("CLERK_SESSION_TTL", 30*time.Minute),
		SlackBotToken:       envStr("SLACK_BOT_TOKEN", ""),
		SlackChannel:        envStr("SLACK_RETURNS_CHANNEL", ""),
		APIToken:            envStr("CLERK_API_TOKEN", ""),
		RequireConfirmation: envBool("CLERK_REQUIRE_CONFIRMATION", false),
		CommitTimeout:       envDuration("CLERK_COMMIT_TIMEOUT", 5*time.Second),
		MaxTurns:            envInt("CLERK_MAX_TURNS", 50),
		Timezone:            envStr("CLERK_TIMEZONE", "UTC"),
	}
}

// LoadDotEnv reads KEY=value pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Location resolves Timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
