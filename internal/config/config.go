// Package config loads server settings from the environment.
//
// A .env file in the working directory is read first if it exists.
// Variables already set in the process environment take precedence over
// the file, so deployments never need to ship one.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// devSessionSecret is used when SESSION_SECRET is unset so the server can
// start locally. Load reports UsingDevSecret so main can warn loudly.
const devSessionSecret = "imagesearch-dev-secret-change-me"

// OAuthClient holds one provider's credentials. A client with an empty ID
// or secret is treated as not configured.
type OAuthClient struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
}

func (c OAuthClient) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

type Config struct {
	Port          int
	ServerRootURL string
	ClientRootURL string

	DBPath   string
	RedisURL string

	SessionSecret  string
	UsingDevSecret bool
	SessionTTL     time.Duration
	CookieSecure   bool

	Google   OAuthClient
	GitHub   OAuthClient
	Facebook OAuthClient

	UnsplashAccessKey string
	UnsplashBaseURL   string
	UnsplashTimeout   time.Duration

	HistoryQueueSize int
	HistoryWorkers   int

	LogLevel  slog.Level
	LogFormat string
}

// Load reads the configuration. Malformed numbers, durations, and log
// settings are collected and returned together.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var errs []error
	cfg := &Config{
		ClientRootURL:     strings.TrimRight(getEnv("CLIENT_ROOT_URL", "http://localhost:5173"), "/"),
		DBPath:            getEnv("DB_PATH", "data/imagesearch.db"),
		RedisURL:          getEnv("REDIS_URL", ""),
		SessionSecret:     getEnv("SESSION_SECRET", ""),
		UnsplashAccessKey: getEnv("UNSPLASH_ACCESS_KEY", ""),
		UnsplashBaseURL:   strings.TrimRight(getEnv("UNSPLASH_BASE_URL", "https://api.unsplash.com"), "/"),
		LogFormat:         strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	cfg.Port = getInt("PORT", 5000, &errs)
	cfg.SessionTTL = getDuration("SESSION_TTL", 24*time.Hour, &errs)
	cfg.UnsplashTimeout = getDuration("UNSPLASH_TIMEOUT", 10*time.Second, &errs)
	cfg.CookieSecure = getBool("COOKIE_SECURE", false, &errs)
	cfg.HistoryQueueSize = getInt("HISTORY_QUEUE_SIZE", 256, &errs)
	cfg.HistoryWorkers = getInt("HISTORY_WORKERS", 2, &errs)

	if cfg.SessionSecret == "" {
		cfg.SessionSecret = devSessionSecret
		cfg.UsingDevSecret = true
	} else if len(cfg.SessionSecret) < 16 {
		errs = append(errs, errors.New("SESSION_SECRET must be at least 16 characters"))
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT: must be text or json, got %q", cfg.LogFormat))
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT: %d is out of range", cfg.Port))
	}
	if cfg.HistoryQueueSize < 1 {
		errs = append(errs, errors.New("HISTORY_QUEUE_SIZE must be positive"))
	}
	if cfg.HistoryWorkers < 1 {
		errs = append(errs, errors.New("HISTORY_WORKERS must be positive"))
	}

	cfg.ServerRootURL = strings.TrimRight(getEnv("SERVER_ROOT_URL", fmt.Sprintf("http://localhost:%d", cfg.Port)), "/")
	cfg.Google = loadClient("GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "GOOGLE_CALLBACK_URL", cfg.ServerRootURL, "google")
	cfg.GitHub = loadClient("GITHUB_CLIENT_ID", "GITHUB_CLIENT_SECRET", "GITHUB_CALLBACK_URL", cfg.ServerRootURL, "github")
	cfg.Facebook = loadClient("FACEBOOK_APP_ID", "FACEBOOK_APP_SECRET", "FACEBOOK_CALLBACK_URL", cfg.ServerRootURL, "facebook")

	if len(errs) > 0 {
		return nil, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return cfg, nil
}

func loadClient(idKey, secretKey, callbackKey, serverRoot, provider string) OAuthClient {
	return OAuthClient{
		ClientID:     getEnv(idKey, ""),
		ClientSecret: getEnv(secretKey, ""),
		CallbackURL:  getEnv(callbackKey, serverRoot+"/auth/"+provider+"/callback"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int, errs *[]error) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid integer %q", key, raw))
		return defaultValue
	}
	return n
}

func getDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		*errs = append(*errs, fmt.Errorf("%s: invalid duration %q", key, raw))
		return defaultValue
	}
	return d
}

func getBool(key string, defaultValue bool, errs *[]error) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid boolean %q", key, raw))
		return defaultValue
	}
	return b
}
