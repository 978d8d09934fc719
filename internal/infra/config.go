package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"docbot/internal/domain"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv            string
	BotToken          string
	VerifLogin        string
	VerifPassword     string
	ActiveProfile     string
	CatalogFile       string
	PollInterval      time.Duration
	PollTimeout       time.Duration
	RequestTimeout    time.Duration
	WorkerPoolSize    int
	SessionTTL        time.Duration
	RateLimitPerMin   int
	OpsPort           string
	DiagnosticsDir    string
	MaxImageBytes     int64
	HTTPReadTimeout   time.Duration
	HTTPWriteTimeout  time.Duration
	HTTPIdleTimeout   time.Duration
	TelegramPollDelay time.Duration
}

// LoadConfig loads configuration from environment variables (and an optional
// .env file) and applies defaults where needed. Missing credentials are a
// domain.ErrConfiguration.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env", ".env.local")

	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "production"),
		BotToken:          strings.TrimSpace(os.Getenv("BOT_TOKEN")),
		VerifLogin:        strings.TrimSpace(os.Getenv("VERIF_LOGIN")),
		VerifPassword:     os.Getenv("VERIF_PASSWORD"),
		ActiveProfile:     getEnv("ACTIVE_PROFILE", "veriftools"),
		CatalogFile:       os.Getenv("CATALOG_FILE"),
		PollInterval:      getEnvDuration("POLL_INTERVAL", 2*time.Second),
		PollTimeout:       getEnvDuration("POLL_TIMEOUT", 3*time.Minute),
		RequestTimeout:    getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		WorkerPoolSize:    getEnvInt("WORKER_POOL_SIZE", 8),
		SessionTTL:        getEnvDuration("SESSION_TTL", 30*time.Minute),
		RateLimitPerMin:   getEnvInt("RATE_LIMIT_PER_MINUTE", 20),
		OpsPort:           getEnv("OPS_PORT", "9090"),
		DiagnosticsDir:    os.Getenv("DIAGNOSTICS_DIR"),
		MaxImageBytes:     int64(getEnvInt("MAX_IMAGE_BYTES", 20<<20)),
		HTTPReadTimeout:   time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:  time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:   time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		TelegramPollDelay: getEnvDuration("TELEGRAM_POLL_TIMEOUT", time.Minute),
	}
	if strings.EqualFold(cfg.OpsPort, "off") {
		cfg.OpsPort = ""
	}

	var missing []string
	if cfg.BotToken == "" {
		missing = append(missing, "BOT_TOKEN")
	}
	if cfg.VerifLogin == "" {
		missing = append(missing, "VERIF_LOGIN")
	}
	if cfg.VerifPassword == "" {
		missing = append(missing, "VERIF_PASSWORD")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s required", domain.ErrConfiguration, strings.Join(missing, ", "))
	}
	if cfg.PollInterval <= 0 || cfg.PollTimeout < cfg.PollInterval {
		return nil, fmt.Errorf("%w: POLL_TIMEOUT must be at least POLL_INTERVAL", domain.ErrConfiguration)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("1500ms", "2m") and bare seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	v = strings.TrimSpace(v)
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return fallback
}
