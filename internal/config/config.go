package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/spf13/cast"

	"github.com/couchcryptid/climatescope-etl/internal/domain"
)

// Paths locates the pipeline's input and artifacts.
type Paths struct {
	Raw      string
	Cleaned  string
	Monthly  string
	Seasonal string
	Extremes string
	Summary  string
	Manifest string
}

// Config holds all pipeline settings, populated from environment variables.
type Config struct {
	Paths      Paths
	Thresholds domain.Thresholds

	// Optional sinks; empty values disable them.
	SQLitePath         string
	MetricsTextfile    string
	KafkaBrokers       []string
	KafkaExtremesTopic string

	HTTPAddr           string
	CORSAllowedOrigins []string
	LogLevel           string
	LogFormat          string
	ShutdownTimeout    time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	tempZ, err := parseFloatEnv("EXTREME_TEMP_Z", 1.5)
	if err != nil {
		return nil, err
	}
	precipPctile, err := parseFloatEnv("EXTREME_PRECIP_PCTILE", 0.95)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Paths: Paths{
			Raw:      sharedcfg.EnvOrDefault("RAW_PATH", "data/raw/GlobalWeatherRepository.csv"),
			Cleaned:  sharedcfg.EnvOrDefault("CLEANED_PATH", "data/processed/cleaned_weather.csv"),
			Monthly:  sharedcfg.EnvOrDefault("MONTHLY_PATH", "data/processed/monthly_agg.csv"),
			Seasonal: sharedcfg.EnvOrDefault("SEASONAL_PATH", "data/processed/seasonal_agg.csv"),
			Extremes: sharedcfg.EnvOrDefault("EXTREMES_PATH", "analysis/extremes.csv"),
			Summary:  sharedcfg.EnvOrDefault("SUMMARY_PATH", "summary_report.md"),
			Manifest: sharedcfg.EnvOrDefault("MANIFEST_PATH", "data/processed/manifest.json"),
		},
		Thresholds:         domain.Thresholds{TempZ: tempZ, PrecipPercentile: precipPctile},
		SQLitePath:         os.Getenv("SQLITE_PATH"),
		MetricsTextfile:    os.Getenv("METRICS_TEXTFILE"),
		KafkaExtremesTopic: sharedcfg.EnvOrDefault("KAFKA_EXTREMES_TOPIC", "weather-extremes"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		CORSAllowedOrigins: splitList(sharedcfg.EnvOrDefault("CORS_ALLOWED_ORIGINS", "*")),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
	}

	// Publishing is opt-in, so an unset broker list means "disabled" rather
	// than the localhost default.
	if brokers := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); brokers != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}

	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid EXTREME_TEMP_Z or EXTREME_PRECIP_PCTILE: %w", err)
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaExtremesTopic == "" {
		return nil, fmt.Errorf("KAFKA_EXTREMES_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// PublishEnabled reports whether extreme events should be sent to Kafka.
func (c *Config) PublishEnabled() bool { return len(c.KafkaBrokers) > 0 }

// parseFloatEnv reads a float variable with the same conversion rules the
// cleaner applies to numeric cells.
func parseFloatEnv(key string, fallback float64) (float64, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return fallback, nil
	}
	v, err := cast.ToFloat64E(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
