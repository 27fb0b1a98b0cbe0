package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // display timezone must resolve without a system zoneinfo

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	defaultPort            = 8080
	defaultTimezone        = "Europe/Berlin"
	defaultModel           = "gpt-4.1-mini"
	defaultChannel         = "pool_readings_insert"
	defaultAnalyzeTimeout  = 60 * time.Second
	defaultWeatherBaseURL  = "https://api.open-meteo.com/v1/forecast"
	defaultDatabaseTimeout = 10 * time.Second
)

// Config holds environment-driven settings for the dashboard API.
type Config struct {
	DatabaseURL  string
	OpenAIAPIKey string
	OpenAIModel  string

	WeatherLat     float64 `validate:"latitude"`
	WeatherLon     float64 `validate:"longitude"`
	WeatherBaseURL string  `validate:"url"`

	Port            int
	DisplayTimezone string
	ReadingsChannel string
	PollInterval    time.Duration
	AnalyzeTimeout  time.Duration
	DatabaseTimeout time.Duration
	AutoMigrate     bool
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file

	cfg := Config{
		OpenAIModel:     defaultModel,
		WeatherBaseURL:  defaultWeatherBaseURL,
		Port:            defaultPort,
		DisplayTimezone: defaultTimezone,
		ReadingsChannel: defaultChannel,
		AnalyzeTimeout:  defaultAnalyzeTimeout,
		DatabaseTimeout: defaultDatabaseTimeout,
	}

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}

	cfg.OpenAIAPIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if cfg.OpenAIAPIKey == "" {
		return cfg, errors.New("OPENAI_API_KEY is required")
	}

	if model := strings.TrimSpace(os.Getenv("OPENAI_MODEL")); model != "" {
		cfg.OpenAIModel = model
	}

	lat, err := requiredFloat("WEATHER_LAT")
	if err != nil {
		return cfg, err
	}
	cfg.WeatherLat = lat

	lon, err := requiredFloat("WEATHER_LON")
	if err != nil {
		return cfg, err
	}
	cfg.WeatherLon = lon

	if u := strings.TrimSpace(os.Getenv("WEATHER_BASE_URL")); u != "" {
		cfg.WeatherBaseURL = u
	}

	if portStr := os.Getenv("PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid PORT: %s", portStr)
		}
	} else if portStr := os.Getenv("API_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid API_PORT: %s", portStr)
		}
	}

	if tz := strings.TrimSpace(os.Getenv("DISPLAY_TIMEZONE")); tz != "" {
		cfg.DisplayTimezone = tz
	}
	if _, err := time.LoadLocation(cfg.DisplayTimezone); err != nil {
		return cfg, fmt.Errorf("invalid DISPLAY_TIMEZONE: %w", err)
	}

	if ch := strings.TrimSpace(os.Getenv("READINGS_CHANNEL")); ch != "" {
		cfg.ReadingsChannel = ch
	}

	if cfg.PollInterval, err = duration("POLL_INTERVAL", 0); err != nil {
		return cfg, err
	}
	if cfg.AnalyzeTimeout, err = duration("ANALYZE_TIMEOUT", defaultAnalyzeTimeout); err != nil {
		return cfg, err
	}
	if cfg.DatabaseTimeout, err = duration("DATABASE_TIMEOUT", defaultDatabaseTimeout); err != nil {
		return cfg, err
	}

	migrate := strings.TrimSpace(os.Getenv("AUTO_MIGRATE"))
	cfg.AutoMigrate = migrate == "1" || strings.EqualFold(migrate, "true")

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ListenAddr returns the host:port string for the HTTP server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Location returns the display timezone. Load has already checked it.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func requiredFloat(key string) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func duration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}
