// Package config loads service settings from the environment.
//
// A .env file in the working directory is read first when present; real
// environment variables always win.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/deusflow/pilbarawatch/internal/transport"
)

const (
	DefaultNewsAPIURL   = "https://newsapi.org/v2/everything"
	DefaultQuotesAPIURL = "https://query1.finance.yahoo.com/v8/finance/chart/"
	DefaultProxyURL     = "https://api.allorigins.win/get"
)

type Config struct {
	// News search
	NewsAPIKey         string `validate:"required"`
	NewsAPIURL         string `validate:"required,url"`
	QueryDelay         time.Duration
	DailyRequestBudget int `validate:"gte=0"`

	// Quotes
	QuotesAPIURL string `validate:"required,url"`
	IronOrePath  string

	// Transport
	Transport      transport.Mode `validate:"oneof=direct proxy"`
	ProxyURL       string         `validate:"required_if=Transport proxy"`
	RequestTimeout time.Duration  `validate:"gt=0"`
	RetryAttempts  int            `validate:"gte=1"`
	RetryDelay     time.Duration

	// Cache and refresh
	CacheTTL        time.Duration `validate:"gt=0"`
	RefreshInterval time.Duration `validate:"gte=0"`

	// Data files
	VocabularyPath string
	FeedsPath      string
	PostsPath      string

	// Enrichment
	EnrichThumbnails bool
	GeminiAPIKey     string

	// Server
	ListenAddr string `validate:"required"`

	// Tracing
	TracingEnabled  bool
	TracingEndpoint string `validate:"required_if=TracingEnabled true"`

	// Logging
	Debug     bool
	LogFormat string `validate:"oneof=text json"`
}

var validate = validator.New()

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit dotenv path. A missing file is ignored.
func LoadFile(envPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading %s: %w", envPath, err)
		}
	}

	cfg := FromEnv()
	return cfg, cfg.Validate()
}

// FromEnv builds a Config from the current environment without validating it.
func FromEnv() *Config {
	return &Config{
		NewsAPIKey:         os.Getenv("NEWS_API_KEY"),
		NewsAPIURL:         getEnvOrDefault("NEWS_API_URL", DefaultNewsAPIURL),
		QueryDelay:         getEnvDurationOrDefault("QUERY_DELAY", 300*time.Millisecond),
		DailyRequestBudget: getEnvIntOrDefault("DAILY_REQUEST_BUDGET", 0),

		QuotesAPIURL: getEnvOrDefault("QUOTES_API_URL", DefaultQuotesAPIURL),
		IronOrePath:  getEnvOrDefault("IRON_ORE_PATH", "data/iron-ore-price.txt"),

		Transport:      transport.Mode(strings.ToLower(getEnvOrDefault("TRANSPORT", string(transport.ModeDirect)))),
		ProxyURL:       getEnvOrDefault("PROXY_URL", DefaultProxyURL),
		RequestTimeout: getEnvDurationOrDefault("REQUEST_TIMEOUT", transport.DefaultTimeout),
		RetryAttempts:  getEnvIntOrDefault("RETRY_ATTEMPTS", 1),
		RetryDelay:     getEnvDurationOrDefault("RETRY_DELAY", 2*time.Second),

		CacheTTL:        getEnvDurationOrDefault("CACHE_TTL", 120*time.Minute),
		RefreshInterval: getEnvDurationOrDefault("REFRESH_INTERVAL", 30*time.Minute),

		VocabularyPath: os.Getenv("VOCABULARY_PATH"),
		FeedsPath:      os.Getenv("FEEDS_PATH"),
		PostsPath:      getEnvOrDefault("POSTS_PATH", "data/union-posts.txt"),

		EnrichThumbnails: getEnvBool("ENRICH_THUMBNAILS"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),

		ListenAddr: getEnvOrDefault("LISTEN_ADDR", ":8080"),

		TracingEnabled:  getEnvBool("TRACING_ENABLED"),
		TracingEndpoint: getEnvOrDefault("TRACING_ENDPOINT", "localhost:4317"),

		Debug:     getEnvBool("DEBUG"),
		LogFormat: strings.ToLower(getEnvOrDefault("LOG_FORMAT", "text")),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDurationOrDefault accepts Go durations ("90s") or bare milliseconds ("300").
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}

func getEnvBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

// Validate reports the first invalid setting by its environment name.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	name := envNames[fe.Field()]
	if name == "" {
		name = fe.Field()
	}
	if fe.Tag() == "required" || fe.Tag() == "required_if" {
		return fmt.Errorf("%s is required", name)
	}
	return fmt.Errorf("%s is invalid (%s)", name, fe.Tag())
}

var envNames = map[string]string{
	"NewsAPIKey":         "NEWS_API_KEY",
	"NewsAPIURL":         "NEWS_API_URL",
	"DailyRequestBudget": "DAILY_REQUEST_BUDGET",
	"QuotesAPIURL":       "QUOTES_API_URL",
	"Transport":          "TRANSPORT",
	"ProxyURL":           "PROXY_URL",
	"RequestTimeout":     "REQUEST_TIMEOUT",
	"RetryAttempts":      "RETRY_ATTEMPTS",
	"CacheTTL":           "CACHE_TTL",
	"RefreshInterval":    "REFRESH_INTERVAL",
	"ListenAddr":         "LISTEN_ADDR",
	"TracingEndpoint":    "TRACING_ENDPOINT",
	"LogFormat":          "LOG_FORMAT",
}

// BriefingEnabled reports whether a Gemini key is configured.
func (c *Config) BriefingEnabled() bool {
	return c.GeminiAPIKey != ""
}
