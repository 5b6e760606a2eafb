package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv       string
	Debug        bool
	HTTPPort     string
	LogLevel     string
	PostgresDSN  string
	RedisAddr    string
	KafkaBrokers []string
	JWTSecret    string
	OTLPEndpoint string

	// Sandbox routes ledger mutations to the sandbox shadow balances and
	// labels outbound payloads accordingly.
	Sandbox bool

	Webhook  WebhookConfig
	Jobs     JobsConfig
	Netzme   NetzmeConfig
	Easylink EasylinkConfig
}

type WebhookConfig struct {
	Topic          string
	GroupID        string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
}

type JobsConfig struct {
	StaleAfter        time.Duration
	ReaperInterval    time.Duration
	HoldPeriod        time.Duration
	ReleaseInterval   time.Duration
	ReconcileAfter    time.Duration
	ReconcileInterval time.Duration
	BatchSize         int
}

type NetzmeConfig struct {
	PublicKeyPEM string
}

type EasylinkConfig struct {
	BaseURL        string
	AppID          string
	AppSecret      string
	CallbackSecret string
	Timeout        time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load .env file, using environment and defaults", "error", err)
	}

	cfg := &Config{
		AppEnv:       getEnv("APP_ENV", "development"),
		Debug:        getBool("APP_DEBUG", false),
		HTTPPort:     getEnv("HTTP_PORT", "8080"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		PostgresDSN:  getEnv("POSTGRES_DSN", "host=localhost user=postgres password=postgres dbname=payments sslmode=disable"),
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers: getList("KAFKA_BROKERS", []string{"localhost:9092"}),
		JWTSecret:    getEnv("JWT_SECRET", "supersecret"),
		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		Sandbox:      getBool("SANDBOX_MODE", false),
		Webhook: WebhookConfig{
			Topic:          getEnv("WEBHOOK_TOPIC", "merchant-webhooks"),
			GroupID:        getEnv("WEBHOOK_GROUP_ID", "webhook-delivery"),
			Timeout:        getDuration("WEBHOOK_TIMEOUT", 5*time.Second),
			MaxAttempts:    getInt("WEBHOOK_MAX_ATTEMPTS", 3),
			InitialBackoff: getDuration("WEBHOOK_INITIAL_BACKOFF", 10*time.Second),
		},
		Jobs: JobsConfig{
			StaleAfter:        getDuration("REAPER_STALE_AFTER", 24*time.Hour),
			ReaperInterval:    getDuration("REAPER_INTERVAL", 30*time.Minute),
			HoldPeriod:        getDuration("HOLD_PERIOD", 24*time.Hour),
			ReleaseInterval:   getDuration("RELEASE_INTERVAL", time.Hour),
			ReconcileAfter:    getDuration("RECONCILE_AFTER", 30*time.Minute),
			ReconcileInterval: getDuration("RECONCILE_INTERVAL", 15*time.Minute),
			BatchSize:         getInt("JOB_BATCH_SIZE", 100),
		},
		Netzme: NetzmeConfig{
			PublicKeyPEM: getEnv("NETZME_PUBLIC_KEY", ""),
		},
		Easylink: EasylinkConfig{
			BaseURL:        getEnv("EASYLINK_BASE_URL", "https://sandbox.easylink.id"),
			AppID:          getEnv("EASYLINK_APP_ID", ""),
			AppSecret:      getEnv("EASYLINK_APP_SECRET", ""),
			CallbackSecret: getEnv("EASYLINK_CALLBACK_SECRET", ""),
			Timeout:        getDuration("EASYLINK_TIMEOUT", 30*time.Second),
		},
	}

	slog.Info("config loaded",
		"app_env", cfg.AppEnv,
		"sandbox", cfg.Sandbox,
		"redis_addr", cfg.RedisAddr,
		"kafka_brokers", cfg.KafkaBrokers,
		"webhook_topic", cfg.Webhook.Topic,
		"reaper_stale_after", cfg.Jobs.StaleAfter,
	)
	return cfg
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", v)
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("invalid boolean in environment, using default", "key", key, "value", v)
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid duration in environment, using default", "key", key, "value", v)
		return fallback
	}
	return d
}

func getList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
