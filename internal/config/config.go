// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	GRPCPort    string
	FrontendURL string
	AppEnv      string
	DBPath      string
	CORS        CORSConfig
	LLM         LLMConfig
	Cost        CostConfig
	Cache       CacheConfig
	Analysis    AnalysisConfig
	RateLimit   RateLimitConfig
}

// CORSConfig tunes the CORS response headers.
type CORSConfig struct {
	// ExtraHeaders are allowed request headers beyond the API's own.
	ExtraHeaders []string
	MaxAge       time.Duration
}

// LLMConfig configures the completion backend.
type LLMConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// CostConfig configures the daily spend estimate.
type CostConfig struct {
	DailyBudgetUSD float64
	// PricingFile is an optional YAML rate table.
	PricingFile string
}

// CacheConfig configures the response cache.
type CacheConfig struct {
	TTL time.Duration
}

// AnalysisConfig configures the background progress analysis worker.
type AnalysisConfig struct {
	Enabled       bool
	SweepInterval time.Duration
	Concurrency   int
	// ActiveWindow limits sweeps to users seen within the window.
	ActiveWindow time.Duration
}

// RateLimitConfig configures per-user chat throttling.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		GRPCPort:    getEnv("GRPC_PORT", "9090"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		AppEnv:      getEnv("APP_ENV", ""),
		DBPath:      getEnv("DB_PATH", "./data/fitcoach.db"),
		CORS: CORSConfig{
			ExtraHeaders: getEnvList("CORS_ALLOWED_HEADERS"),
			MaxAge:       getEnvDuration("CORS_MAX_AGE", 10*time.Minute),
		},
		LLM: LLMConfig{
			BaseURL:     getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
			APIKey:      getEnv("LLM_API_KEY", ""),
			Model:       getEnv("LLM_MODEL", "gpt-4o-mini"),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 1000),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.7),
			Timeout:     getEnvDuration("LLM_TIMEOUT", 60*time.Second),
		},
		Cost: CostConfig{
			DailyBudgetUSD: getEnvFloat("DAILY_BUDGET_USD", 1.00),
			PricingFile:    getEnv("PRICING_FILE", ""),
		},
		Cache: CacheConfig{
			TTL: getEnvDuration("RESPONSE_CACHE_TTL", 2*time.Minute),
		},
		Analysis: AnalysisConfig{
			Enabled:       getEnvBool("ANALYSIS_WORKER_ENABLED", true),
			SweepInterval: getEnvDuration("ANALYSIS_SWEEP_INTERVAL", time.Hour),
			Concurrency:   getEnvInt("ANALYSIS_CONCURRENCY", 4),
			ActiveWindow:  getEnvDuration("ANALYSIS_ACTIVE_WINDOW", 14*24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 10),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("PORT cannot be empty"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("DB_PATH cannot be empty"))
	}
	if c.LLM.MaxTokens <= 0 {
		errs = append(errs, errors.New("LLM_MAX_TOKENS must be > 0"))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, errors.New("LLM_TEMPERATURE must be between 0 and 2"))
	}
	if c.LLM.Timeout <= 0 {
		errs = append(errs, errors.New("LLM_TIMEOUT must be > 0"))
	}
	if c.Cost.DailyBudgetUSD <= 0 {
		errs = append(errs, errors.New("DAILY_BUDGET_USD must be > 0"))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("RESPONSE_CACHE_TTL must be > 0"))
	}
	if c.Analysis.SweepInterval <= 0 {
		errs = append(errs, errors.New("ANALYSIS_SWEEP_INTERVAL must be > 0"))
	}
	if c.Analysis.Concurrency <= 0 {
		errs = append(errs, errors.New("ANALYSIS_CONCURRENCY must be > 0"))
	}
	if c.RateLimit.RequestsPerWindow <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS must be > 0"))
	}
	if c.RateLimit.WindowDuration <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be > 0"))
	}
	return errors.Join(errs...)
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	if c.AppEnv != "" {
		return c.AppEnv == "development"
	}
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS origins for the frontend.
func (c *Config) AllowedOrigins() []string {
	if c.IsDevelopment() || c.FrontendURL == "" {
		return []string{"*"}
	}
	return []string{strings.TrimRight(c.FrontendURL, "/")}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
