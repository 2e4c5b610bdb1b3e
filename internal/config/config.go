// Package config loads the one immutable configuration value every
// binary in this repository is built from. There are no ambient
// singletons: Load is called once at process start and the result is
// threaded through constructors from there (spec §9).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	HTTPAddr    string
	LogLevel    string
	PostgresDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MaxConcurrentJobs  int
	LeaseExpiryMinutes int
	DLQRequeueLimit    int
	CleanupRetainDays  int

	SpotifyClientID     string
	SpotifyClientSecret string
	GeniusAccessToken   string
	DiscogsKey          string
	DiscogsSecret       string

	InvokeBaseURL string
	InvokeBearer  string

	TracingEnabled  bool
	TracingExporter string
}

type Error struct {
	Issues []string
}

func (e *Error) Error() string {
	return "invalid config: " + strings.Join(e.Issues, "; ")
}

func Load() (Config, error) {
	var issues []string

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		issues = append(issues, err.Error())
	}
	maxConcurrentJobs, err := getEnvInt("MAX_CONCURRENT_JOBS", 3)
	if err != nil {
		issues = append(issues, err.Error())
	}
	leaseExpiryMinutes, err := getEnvInt("LEASE_EXPIRY_MINUTES", 30)
	if err != nil {
		issues = append(issues, err.Error())
	}
	dlqRequeueLimit, err := getEnvInt("DLQ_REQUEUE_LIMIT", 100)
	if err != nil {
		issues = append(issues, err.Error())
	}
	cleanupRetainDays, err := getEnvInt("CLEANUP_RETAIN_DAYS", 7)
	if err != nil {
		issues = append(issues, err.Error())
	}
	tracingEnabled, err := getEnvBool("TRACING_ENABLED", false)
	if err != nil {
		issues = append(issues, err.Error())
	}

	cfg := Config{
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		LogLevel:            strings.ToLower(getEnv("LOG_LEVEL", "info")),
		PostgresDSN:         strings.TrimSpace(os.Getenv("POSTGRES_DSN")),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             redisDB,
		MaxConcurrentJobs:   maxConcurrentJobs,
		LeaseExpiryMinutes:  leaseExpiryMinutes,
		DLQRequeueLimit:     dlqRequeueLimit,
		CleanupRetainDays:   cleanupRetainDays,
		SpotifyClientID:     strings.TrimSpace(os.Getenv("SPOTIFY_CLIENT_ID")),
		SpotifyClientSecret: strings.TrimSpace(os.Getenv("SPOTIFY_CLIENT_SECRET")),
		GeniusAccessToken:   strings.TrimSpace(os.Getenv("GENIUS_ACCESS_TOKEN")),
		DiscogsKey:          strings.TrimSpace(os.Getenv("DISCOGS_KEY")),
		DiscogsSecret:       strings.TrimSpace(os.Getenv("DISCOGS_SECRET")),
		InvokeBaseURL:       getEnv("INVOKE_BASE_URL", "http://localhost:8080"),
		InvokeBearer:        strings.TrimSpace(os.Getenv("INVOKE_BEARER")),
		TracingEnabled:      tracingEnabled,
		TracingExporter:     strings.ToLower(getEnv("TRACING_EXPORTER", "stdout")),
	}

	if cfg.PostgresDSN == "" {
		issues = append(issues, "POSTGRES_DSN is required")
	}
	if cfg.HTTPAddr == "" {
		issues = append(issues, "HTTP_ADDR must not be empty")
	}
	if cfg.RedisAddr == "" {
		issues = append(issues, "REDIS_ADDR must not be empty")
	}
	if cfg.LogLevel != "debug" && cfg.LogLevel != "info" && cfg.LogLevel != "warn" && cfg.LogLevel != "error" {
		issues = append(issues, fmt.Sprintf("LOG_LEVEL must be one of debug, info, warn, error (got %q)", cfg.LogLevel))
	}
	if cfg.RedisDB < 0 {
		issues = append(issues, "REDIS_DB must be >= 0")
	}
	if cfg.MaxConcurrentJobs <= 0 {
		issues = append(issues, "MAX_CONCURRENT_JOBS must be >= 1")
	}
	if cfg.LeaseExpiryMinutes <= 0 {
		issues = append(issues, "LEASE_EXPIRY_MINUTES must be >= 1")
	}
	if cfg.DLQRequeueLimit <= 0 {
		issues = append(issues, "DLQ_REQUEUE_LIMIT must be >= 1")
	}
	if cfg.CleanupRetainDays <= 0 {
		issues = append(issues, "CLEANUP_RETAIN_DAYS must be >= 1")
	}
	if cfg.TracingExporter != "stdout" && cfg.TracingExporter != "none" {
		issues = append(issues, fmt.Sprintf("TRACING_EXPORTER must be stdout or none (got %q)", cfg.TracingExporter))
	}
	if len(issues) > 0 {
		return Config{}, &Error{Issues: issues}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer (got %q)", key, v)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s must be a valid boolean (true/false, 1/0, yes/no; got %q)", key, v)
	}
}
