// Package config loads the process-wide settings named in spec.md §6
// ("Environment configuration (all components)") from the environment,
// following the teacher's own loader shape: os.Getenv with typed defaults,
// joho/godotenv for local .env files, and a Validate() that fails fast
// before any collaborator is constructed.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full set of environment variables shared by every
// component binary (router, reputation service, receivers).
type Config struct {
	DatabaseURL    string
	ReadReplicaURL string
	RedisURL       string

	ModulePort int
	LogLevel   string

	SecretKey     string
	ServiceAPIKey string

	StreamPipelineEnabled bool
	StreamBatchSize       int
	StreamBlockTime       time.Duration
	StreamMaxRetries      int
	StreamConsumerCount   int

	DefaultRateLimitPerMinute int
	EntityCacheTTL            time.Duration

	// Platform carries per-integration credentials, keyed by platform name
	// ("twitch", "discord", "slack", "youtube", "kick"), per spec.md §6's
	// "per-integration credentials (platform client IDs, bot tokens,
	// webhook secrets)".
	Platform map[string]PlatformCredentials
}

// PlatformCredentials holds one platform adapter's client ID/secret, bot
// token, and inbound webhook signing secret. Fields unused by a given
// platform are left empty.
type PlatformCredentials struct {
	ClientID      string
	ClientSecret  string
	BotToken      string
	WebhookSecret string

	// BotLogin and AccountID are only meaningful for Twitch's IRC chat
	// connection: the bot's own login name and the account_id its OAuth
	// token is stored under in storage.TokenRepo.
	BotLogin  string
	AccountID string
}

// Load reads Config from the environment, expanding a local .env file if
// present (godotenv.Load silently no-ops when the file is absent, matching
// the teacher's "don't require .env in production" loader).
func Load() (Config, error) {
	_ = godotenv.Load()

	port, err := strconv.Atoi(getEnvOrDefault("MODULE_PORT", "8080"))
	if err != nil {
		return Config{}, fmt.Errorf("config: invalid MODULE_PORT: %w", err)
	}
	batchSize, err := strconv.Atoi(getEnvOrDefault("STREAM_BATCH_SIZE", "10"))
	if err != nil {
		return Config{}, fmt.Errorf("config: invalid STREAM_BATCH_SIZE: %w", err)
	}
	blockTime, err := time.ParseDuration(getEnvOrDefault("STREAM_BLOCK_TIME", "5s"))
	if err != nil {
		return Config{}, fmt.Errorf("config: invalid STREAM_BLOCK_TIME: %w", err)
	}
	maxRetries, err := strconv.Atoi(getEnvOrDefault("STREAM_MAX_RETRIES", "5"))
	if err != nil {
		return Config{}, fmt.Errorf("config: invalid STREAM_MAX_RETRIES: %w", err)
	}
	consumerCount, err := strconv.Atoi(getEnvOrDefault("STREAM_CONSUMER_COUNT", "4"))
	if err != nil {
		return Config{}, fmt.Errorf("config: invalid STREAM_CONSUMER_COUNT: %w", err)
	}
	rateLimit, err := strconv.Atoi(getEnvOrDefault("DEFAULT_RATE_LIMIT_PER_MINUTE", "60"))
	if err != nil {
		return Config{}, fmt.Errorf("config: invalid DEFAULT_RATE_LIMIT_PER_MINUTE: %w", err)
	}
	entityCacheTTL, err := time.ParseDuration(getEnvOrDefault("ENTITY_CACHE_TTL", "600s"))
	if err != nil {
		return Config{}, fmt.Errorf("config: invalid ENTITY_CACHE_TTL: %w", err)
	}

	cfg := Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		ReadReplicaURL: os.Getenv("READ_REPLICA_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),

		ModulePort: port,
		LogLevel:   getEnvOrDefault("LOG_LEVEL", "info"),

		SecretKey:     os.Getenv("SECRET_KEY"),
		ServiceAPIKey: os.Getenv("SERVICE_API_KEY"),

		StreamPipelineEnabled: getEnvOrDefault("STREAM_PIPELINE_ENABLED", "true") == "true",
		StreamBatchSize:       batchSize,
		StreamBlockTime:       blockTime,
		StreamMaxRetries:      maxRetries,
		StreamConsumerCount:   consumerCount,

		DefaultRateLimitPerMinute: rateLimit,
		EntityCacheTTL:            entityCacheTTL,

		Platform: loadPlatformCredentials(),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var platforms = []string{"TWITCH", "DISCORD", "SLACK", "YOUTUBE", "KICK"}

func loadPlatformCredentials() map[string]PlatformCredentials {
	creds := make(map[string]PlatformCredentials, len(platforms))
	for _, p := range platforms {
		c := PlatformCredentials{
			ClientID:      os.Getenv(p + "_CLIENT_ID"),
			ClientSecret:  os.Getenv(p + "_CLIENT_SECRET"),
			BotToken:      os.Getenv(p + "_BOT_TOKEN"),
			WebhookSecret: os.Getenv(p + "_WEBHOOK_SECRET"),
			BotLogin:      os.Getenv(p + "_BOT_LOGIN"),
			AccountID:     os.Getenv(p + "_ACCOUNT_ID"),
		}
		creds[strings.ToLower(p)] = c
	}
	return creds
}

// Validate checks the settings every component requires regardless of
// which binary is running.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("config: DATABASE_URL is required")
	}
	if c.RedisURL == "" {
		return fmt.Errorf("config: REDIS_URL is required")
	}
	if c.SecretKey == "" {
		return fmt.Errorf("config: SECRET_KEY is required")
	}
	if c.ModulePort < 1 || c.ModulePort > 65535 {
		return fmt.Errorf("config: MODULE_PORT must be a valid port, got %d", c.ModulePort)
	}
	return nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
