// Package config loads toolmesh settings from the environment, optionally
// seeded from a .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults for the hosted services the adapters talk to.
const (
	DefaultMem0BaseURL       = "https://api.mem0.ai"
	DefaultWeatherBaseURL    = "https://wttr.in"
	DefaultDuckDuckGoBaseURL = "https://api.duckduckgo.com"
	DefaultDuckDuckGoHTMLURL = "https://html.duckduckgo.com"
	DefaultSMTPHost          = "smtp.gmail.com"
	DefaultSMTPPort          = 587
	DefaultHTTPTimeout       = 30 * time.Second
	DefaultSMTPTimeout       = 30 * time.Second
	DefaultUserID            = "Arish"
	DefaultAddr              = ":8080"
)

// Config holds every setting the adapters, tools and examples read.
type Config struct {
	OpenAIAPIKey    string
	AnthropicAPIKey string

	Mem0APIKey  string
	Mem0BaseURL string

	WeatherBaseURL    string
	DuckDuckGoBaseURL string
	DuckDuckGoHTMLURL string

	GmailUser     string
	GmailPassword string
	SMTPHost      string
	SMTPPort      int
	SMTPTimeout   time.Duration

	HTTPTimeout time.Duration
	LogLevel    string
	LogFormat   string
	UserID      string
	Addr        string
}

// Load reads an optional .env file (existing environment variables win) and
// then builds a Config from the environment.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}

	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	return FromEnv()
}

// FromEnv builds a Config from environment variables only.
func FromEnv() (Config, error) {
	port, err := envIntOrDefault("SMTP_PORT", DefaultSMTPPort)
	if err != nil {
		return Config{}, err
	}

	timeout, err := envDurationOrDefault("TOOLMESH_HTTP_TIMEOUT", DefaultHTTPTimeout)
	if err != nil {
		return Config{}, err
	}

	smtpTimeout, err := envDurationOrDefault("SMTP_TIMEOUT", DefaultSMTPTimeout)
	if err != nil {
		return Config{}, err
	}

	return Config{
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey:   os.Getenv("ANTHROPIC_API_KEY"),
		Mem0APIKey:        os.Getenv("MEM0_API_KEY"),
		Mem0BaseURL:       envOrDefault("MEM0_BASE_URL", DefaultMem0BaseURL),
		WeatherBaseURL:    envOrDefault("WEATHER_BASE_URL", DefaultWeatherBaseURL),
		DuckDuckGoBaseURL: envOrDefault("DUCKDUCKGO_BASE_URL", DefaultDuckDuckGoBaseURL),
		DuckDuckGoHTMLURL: envOrDefault("DUCKDUCKGO_HTML_URL", DefaultDuckDuckGoHTMLURL),
		GmailUser:         os.Getenv("GMAIL_USER"),
		GmailPassword:     os.Getenv("GMAIL_PASSWORD"),
		SMTPHost:          envOrDefault("SMTP_HOST", DefaultSMTPHost),
		SMTPPort:          port,
		SMTPTimeout:       smtpTimeout,
		HTTPTimeout:       timeout,
		LogLevel:          envOrDefault("TOOLMESH_LOG_LEVEL", "info"),
		LogFormat:         envOrDefault("TOOLMESH_LOG_FORMAT", "text"),
		UserID:            envOrDefault("TOOLMESH_USER_ID", DefaultUserID),
		Addr:              envOrDefault("TOOLMESH_ADDR", DefaultAddr),
	}, nil
}

// SMTPAddr returns host:port of the SMTP submission server.
func (c Config) SMTPAddr() string {
	return fmt.Sprintf("%s:%d", c.SMTPHost, c.SMTPPort)
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, v)
	}
	return n, nil
}

// envDurationOrDefault accepts Go durations ("45s") or plain seconds ("45").
func envDurationOrDefault(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, v)
	}
	return d, nil
}
