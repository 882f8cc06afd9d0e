package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	TelegramToken              string        `mapstructure:"telegram_token"`
	TelegramChannelID          string        `mapstructure:"telegram_channel_id"`
	TelegramAPIURL             string        `mapstructure:"telegram_api_url"`
	TelegramPollTimeoutSeconds int64         `mapstructure:"telegram_poll_timeout_seconds"`
	TelegramRatePerSecond      float64       `mapstructure:"telegram_rate_per_second"`
	TelegramPollTimeout        time.Duration `mapstructure:"-"`

	ExtractorBaseURL        string        `mapstructure:"extractor_base_url"`
	ExtractorTimeoutSeconds int64         `mapstructure:"extractor_timeout_seconds"`
	CleanupTimeoutSeconds   int64         `mapstructure:"cleanup_timeout_seconds"`
	MaxPayloadBytes         int64         `mapstructure:"max_payload_bytes"`
	ProgressIntervalMs      int64         `mapstructure:"progress_interval_ms"`
	ExtractorTimeout        time.Duration `mapstructure:"-"`
	CleanupTimeout          time.Duration `mapstructure:"-"`
	ProgressInterval        time.Duration `mapstructure:"-"`

	StorageType   string `mapstructure:"storage_type"`
	BBoltPath     string `mapstructure:"bbolt_path"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	PostgresTable string `mapstructure:"postgres_table"`

	YouTubeAPIKey string `mapstructure:"youtube_api_key"`
	YouTubeAPIURL string `mapstructure:"youtube_api_url"`
	YouTubeWebURL string `mapstructure:"youtube_web_url"`

	PublishersFile string `mapstructure:"publishers_file"`
	AdminAddr      string `mapstructure:"admin_addr"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "samvad-audio-relay")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("telegram_token", "")
	v.SetDefault("telegram_channel_id", "")
	v.SetDefault("telegram_api_url", "https://api.telegram.org")
	v.SetDefault("telegram_poll_timeout_seconds", 30)
	v.SetDefault("telegram_rate_per_second", 1.0)
	v.SetDefault("extractor_base_url", "http://localhost:3000")
	v.SetDefault("extractor_timeout_seconds", 180)
	v.SetDefault("cleanup_timeout_seconds", 15)
	v.SetDefault("max_payload_bytes", int64(20*1024*1024))
	v.SetDefault("progress_interval_ms", 2000)
	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/relay.db")
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("postgres_table", "relay_records")
	v.SetDefault("youtube_api_key", "")
	v.SetDefault("youtube_api_url", "")
	v.SetDefault("youtube_web_url", "https://www.youtube.com")
	v.SetDefault("publishers_file", "")
	v.SetDefault("admin_addr", ":9090")

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalize validates numeric knobs and derives durations.
func (c *Config) normalize() error {
	if c.TelegramPollTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid telegram_poll_timeout_seconds (must be positive seconds)")
	}
	if c.ExtractorTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid extractor_timeout_seconds (must be positive seconds)")
	}
	if c.CleanupTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid cleanup_timeout_seconds (must be positive seconds)")
	}
	if c.ProgressIntervalMs <= 0 {
		return fmt.Errorf("invalid progress_interval_ms (must be positive milliseconds)")
	}
	if c.MaxPayloadBytes <= 0 {
		return fmt.Errorf("invalid max_payload_bytes (must be positive)")
	}
	if c.TelegramRatePerSecond < 0 {
		return fmt.Errorf("invalid telegram_rate_per_second (must not be negative)")
	}

	c.TelegramPollTimeout = time.Duration(c.TelegramPollTimeoutSeconds) * time.Second
	c.ExtractorTimeout = time.Duration(c.ExtractorTimeoutSeconds) * time.Second
	c.CleanupTimeout = time.Duration(c.CleanupTimeoutSeconds) * time.Second
	c.ProgressInterval = time.Duration(c.ProgressIntervalMs) * time.Millisecond
	c.StorageType = strings.ToLower(strings.TrimSpace(c.StorageType))
	c.ExtractorBaseURL = strings.TrimRight(strings.TrimSpace(c.ExtractorBaseURL), "/")
	return nil
}

// RequireBot reports the settings the Telegram-facing runtimes cannot start without.
func (c *Config) RequireBot() error {
	if strings.TrimSpace(c.TelegramToken) == "" {
		return fmt.Errorf("telegram_token is required")
	}
	if strings.TrimSpace(c.TelegramChannelID) == "" {
		return fmt.Errorf("telegram_channel_id is required")
	}
	return nil
}
