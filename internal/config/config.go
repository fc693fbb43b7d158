package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/mailshake-monitor/internal/domain"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultCampaignIDs is the static fallback list used when neither an
// override nor campaign discovery yields any campaign.
var DefaultCampaignIDs = []int64{
	1472607, 1472605, 1472564, 1472552, 1472550, 1472549,
	1472531, 1472525, 1472277, 1472245, 1472243, 1471775,
	1471681, 1471354, 1471352, 1471181, 1471178, 1469530, 1467476,
}

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Mailshake MailshakeConfig `yaml:"mailshake"`
	Klaviyo   KlaviyoConfig   `yaml:"klaviyo"`
	Refresh   RefreshConfig   `yaml:"refresh"`
	Storage   StorageConfig   `yaml:"storage"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port    int    `yaml:"port"`
	Host    string `yaml:"host"`
	Version string `yaml:"version"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// MailshakeConfig holds Mailshake API configuration
type MailshakeConfig struct {
	APIKey          string  `yaml:"api_key"`
	BaseURL         string  `yaml:"base_url"`
	TimeoutSeconds  int     `yaml:"timeout_seconds"`
	PageDelayMillis int     `yaml:"page_delay_millis"`
	MaxRetries      int     `yaml:"max_retries"`
	RetryPolicy     string  `yaml:"retry_policy"` // "bounded" or "unbounded"
	CampaignIDs     []int64 `yaml:"campaign_ids"`
	DiscoverySearch string  `yaml:"discovery_search"`
}

// Timeout returns the per-attempt request timeout
func (c MailshakeConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// PageDelay returns the pause inserted between paginated requests
func (c MailshakeConfig) PageDelay() time.Duration {
	return time.Duration(c.PageDelayMillis) * time.Millisecond
}

// KlaviyoConfig holds Klaviyo API configuration
type KlaviyoConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	Revision       string `yaml:"revision"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	FlowID         string `yaml:"flow_id"`
}

// Timeout returns the per-attempt request timeout
func (c KlaviyoConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RefreshConfig holds the refresh pipeline policy knobs
type RefreshConfig struct {
	SkipWindowHours       int `yaml:"skip_window_hours"`
	SessionTTLHours       int `yaml:"session_ttl_hours"`
	WorkerIntervalMinutes int `yaml:"worker_interval_minutes"`
}

// SkipWindow is the minimum interval between two refreshes of one campaign
func (c RefreshConfig) SkipWindow() time.Duration {
	return time.Duration(c.SkipWindowHours) * time.Hour
}

// SessionTTL is the age after which a refresh session is treated as abandoned
func (c RefreshConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

// WorkerInterval returns the background refresh interval
func (c RefreshConfig) WorkerInterval() time.Duration {
	return time.Duration(c.WorkerIntervalMinutes) * time.Minute
}

// StorageConfig holds the cache tier connection settings. Both are optional;
// with neither set the process-local tier is the only one.
type StorageConfig struct {
	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`
}

// AuthConfig holds the dashboard password gate
type AuthConfig struct {
	DashboardPassword string `yaml:"dashboard_password"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 6969
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Version == "" {
		cfg.Server.Version = "dev"
	}
	if cfg.Mailshake.BaseURL == "" {
		cfg.Mailshake.BaseURL = "https://api.mailshake.com/2017-04-01"
	}
	if cfg.Mailshake.TimeoutSeconds == 0 {
		cfg.Mailshake.TimeoutSeconds = 60
	}
	if cfg.Mailshake.PageDelayMillis == 0 {
		cfg.Mailshake.PageDelayMillis = 300
	}
	if cfg.Mailshake.MaxRetries == 0 {
		cfg.Mailshake.MaxRetries = 5
	}
	if cfg.Mailshake.RetryPolicy == "" {
		cfg.Mailshake.RetryPolicy = "bounded"
	}
	if cfg.Mailshake.DiscoverySearch == "" {
		cfg.Mailshake.DiscoverySearch = "[VB]"
	}
	if len(cfg.Mailshake.CampaignIDs) == 0 {
		cfg.Mailshake.CampaignIDs = append([]int64(nil), DefaultCampaignIDs...)
	}
	if cfg.Klaviyo.BaseURL == "" {
		cfg.Klaviyo.BaseURL = "https://a.klaviyo.com/api"
	}
	if cfg.Klaviyo.Revision == "" {
		cfg.Klaviyo.Revision = "2024-07-15"
	}
	if cfg.Klaviyo.TimeoutSeconds == 0 {
		cfg.Klaviyo.TimeoutSeconds = 60
	}
	if cfg.Klaviyo.FlowID == "" {
		cfg.Klaviyo.FlowID = "UGW5Jf"
	}
	if cfg.Refresh.SkipWindowHours == 0 {
		cfg.Refresh.SkipWindowHours = 12
	}
	if cfg.Refresh.SessionTTLHours == 0 {
		cfg.Refresh.SessionTTLHours = 24
	}
	if cfg.Refresh.WorkerIntervalMinutes == 0 {
		cfg.Refresh.WorkerIntervalMinutes = 60
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) before reading env vars, so secrets can
// live in .env locally and in real env vars in deployment. A missing config
// file is not an error: defaults plus environment are enough to run.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		cfg = &Config{}
		applyDefaults(cfg)
	}

	cfg.Mailshake.APIKey = ResolveAPIKey(cfg.Mailshake.APIKey)
	if baseURL := os.Getenv("MAILSHAKE_BASE_URL"); baseURL != "" {
		cfg.Mailshake.BaseURL = baseURL
	}
	if ids := domain.ParseCampaignIDs(os.Getenv("CAMPAIGN_IDS")); len(ids) > 0 {
		cfg.Mailshake.CampaignIDs = ids
	}
	if policy := os.Getenv("MAILSHAKE_RETRY_POLICY"); policy != "" {
		cfg.Mailshake.RetryPolicy = policy
	}
	if apiKey := os.Getenv("KLAVIYO_API_KEY"); apiKey != "" {
		cfg.Klaviyo.APIKey = apiKey
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Storage.DatabaseURL = dbURL
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.Storage.RedisURL = redisURL
	}
	if v := os.Getenv("DASHBOARD_PASSWORD"); v != "" {
		cfg.Auth.DashboardPassword = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SKIP_WINDOW_HOURS"); v != "" {
		if h, err := strconv.Atoi(v); err == nil && h > 0 {
			cfg.Refresh.SkipWindowHours = h
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return cfg, nil
}

// ResolveAPIKey picks the Mailshake credential: MAILSHAKE_API_KEY, then
// API_KEY, then the value from the config file.
func ResolveAPIKey(fromFile string) string {
	for _, name := range []string{"MAILSHAKE_API_KEY", "API_KEY"} {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return strings.TrimSpace(fromFile)
}
