package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
)

// Config holds all application configuration
type Config struct {
	Version int           `toml:"version"`
	Monitor MonitorConfig `toml:"monitor"`
	Twitter TwitterConfig `toml:"twitter"`
	Storage StorageConfig `toml:"storage"`
	Web     WebConfig     `toml:"web"`
}

type MonitorConfig struct {
	TweetsPerAccount     int    `toml:"tweets_per_account"`
	IncludeReplies       bool   `toml:"include_replies"`
	IncludeRetweets      bool   `toml:"include_retweets"`
	BatchSize            int    `toml:"batch_size"`
	BatchIntervalMinutes int    `toml:"batch_interval_minutes"`
	BaseAPIDelayMs       int    `toml:"base_api_delay_ms"`
	MaxRetryAttempts     int    `toml:"max_retry_attempts"`
	DailyAPILimit        int    `toml:"daily_api_limit"`
	CronSchedule         string `toml:"cron_schedule"`
	TestMode             bool   `toml:"test_mode"`
	TestAccount          string `toml:"test_account"`
}

type TwitterConfig struct {
	BaseURL     string `toml:"base_url"`
	BearerToken string `toml:"bearer_token"`
	// MinCallIntervalMs is a pacing floor between outbound API calls,
	// independent of the scheduler's inter-account delays.
	MinCallIntervalMs int `toml:"min_call_interval_ms"`
}

type StorageConfig struct {
	Driver      string `toml:"driver"` // "sqlite" or "postgres"
	SQLitePath  string `toml:"sqlite_path"`
	DatabaseURL string `toml:"database_url"`
}

type WebConfig struct {
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Monitor: MonitorConfig{
			TweetsPerAccount:     3,
			IncludeReplies:       false,
			IncludeRetweets:      false,
			BatchSize:            3,
			BatchIntervalMinutes: 20,
			BaseAPIDelayMs:       180000, // 3 minutes between calls for Basic tier limits
			MaxRetryAttempts:     3,
			DailyAPILimit:        400, // 80% of the 500/day app limit
			CronSchedule:         "0 */12 * * *",
			TestAccount:          "OBEYGIANT",
		},
		Twitter: TwitterConfig{
			BaseURL:           "https://api.twitter.com",
			MinCallIntervalMs: 1000,
		},
		Storage: StorageConfig{
			Driver: "sqlite",
		},
		Web: WebConfig{
			Port:     3000,
			Username: "admin",
			Password: "password",
		},
	}
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	return xdg.ConfigFile("marvin-monitor/config.toml")
}

// CacheDir returns the cache directory, creating it if needed
func CacheDir() (string, error) {
	dir := filepath.Join(xdg.CacheHome, "marvin-monitor")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}

// DefaultSQLitePath returns the default database location
func DefaultSQLitePath() (string, error) {
	return xdg.DataFile("marvin-monitor/marvin.db")
}

// Load reads config from disk and applies environment overrides
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyEnv()
	return &cfg, nil
}

// Save writes config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}

// ApplyEnv overrides secrets and deployment knobs from the environment.
func (c *Config) ApplyEnv() {
	c.Twitter.BearerToken = getEnv("TWITTER_BEARER_TOKEN", c.Twitter.BearerToken)
	c.Storage.DatabaseURL = getEnv("DATABASE_URL", c.Storage.DatabaseURL)
	if c.Storage.DatabaseURL != "" {
		c.Storage.Driver = "postgres"
	}
	c.Web.Username = getEnv("WEB_USERNAME", c.Web.Username)
	c.Web.Password = getEnv("WEB_PASSWORD", c.Web.Password)
	c.Web.Port = getEnvInt("WEB_PORT", c.Web.Port)
	if v := os.Getenv("MONITOR_TEST_MODE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Monitor.TestMode = b
		}
	}
	if c.Monitor.TestMode {
		c.applyTestMode()
	}
}

// applyTestMode shrinks batches and shortens the schedule so a full
// monitoring cycle completes quickly against a single test account.
func (c *Config) applyTestMode() {
	c.Monitor.BatchSize = 1
	c.Monitor.BatchIntervalMinutes = 5
	c.Monitor.CronSchedule = "*/30 * * * *"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
