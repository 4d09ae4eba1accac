package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Platform   PlatformConfig   `yaml:"platform"`
	Delivery   DeliveryConfig   `yaml:"delivery"`
	Sweep      SweepConfig      `yaml:"sweep"`
	Restricted RestrictedConfig `yaml:"restricted"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	// Allow override via environment
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds Redis settings for the sweep lock. When disabled the
// sweeps fall back to PostgreSQL advisory locks.
type RedisConfig struct {
	Addr    string `yaml:"addr"`
	Enabled bool   `yaml:"enabled"`
}

// PlatformConfig holds commerce platform API configuration
type PlatformConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c PlatformConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DeliveryConfig holds campaign delivery API configuration.
// ListID, when set, names the automation list converted buyers are removed from.
type DeliveryConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	ListID         string `yaml:"list_id"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c DeliveryConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SweepConfig holds the abandonment sweep policy. Intervals and dwell
// thresholds are deployment policy, not structure; the defaults mirror the
// reference deployment (5m/10m ticks, 1h cart dwell, 2h browse dwell,
// 24h cart-recency exclusion window).
type SweepConfig struct {
	CartIntervalMinutes   int `yaml:"cart_interval_minutes"`
	BrowseIntervalMinutes int `yaml:"browse_interval_minutes"`
	CartDwellMinutes      int `yaml:"cart_dwell_minutes"`
	Stage2DwellHours      int `yaml:"stage2_dwell_hours"`
	Stage3DwellHours      int `yaml:"stage3_dwell_hours"`
	BrowseDwellMinutes    int `yaml:"browse_dwell_minutes"`
	CartRecencyHours      int `yaml:"cart_recency_hours"`
	BatchSize             int `yaml:"batch_size"`
	MaxProducts           int `yaml:"max_products"`
	AttachWindowMinutes   int `yaml:"attach_window_minutes"`
}

// CartInterval returns the cart sweep tick interval.
func (c SweepConfig) CartInterval() time.Duration {
	return time.Duration(c.CartIntervalMinutes) * time.Minute
}

// BrowseInterval returns the browse sweep tick interval.
func (c SweepConfig) BrowseInterval() time.Duration {
	return time.Duration(c.BrowseIntervalMinutes) * time.Minute
}

// CartDwell returns the stage-1 dwell threshold.
func (c SweepConfig) CartDwell() time.Duration {
	return time.Duration(c.CartDwellMinutes) * time.Minute
}

// BrowseDwell returns the browse-view dwell threshold.
func (c SweepConfig) BrowseDwell() time.Duration {
	return time.Duration(c.BrowseDwellMinutes) * time.Minute
}

// CartRecency returns the live-cart exclusion window for the browse track.
func (c SweepConfig) CartRecency() time.Duration {
	return time.Duration(c.CartRecencyHours) * time.Hour
}

// AttachWindow returns the recency window for attaching a learned email to
// an in-flight cart.
func (c SweepConfig) AttachWindow() time.Duration {
	return time.Duration(c.AttachWindowMinutes) * time.Minute
}

// RestrictedConfig limits actual delivery to a single allow-listed recipient
// while exercising the full sweep logic for every candidate.
type RestrictedConfig struct {
	Enabled          bool   `yaml:"enabled"`
	AllowedRecipient string `yaml:"allowed_recipient"`
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

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Platform.TimeoutSeconds == 0 {
		cfg.Platform.TimeoutSeconds = 30
	}
	if cfg.Delivery.TimeoutSeconds == 0 {
		cfg.Delivery.TimeoutSeconds = 30
	}
	if cfg.Sweep.CartIntervalMinutes == 0 {
		cfg.Sweep.CartIntervalMinutes = 5
	}
	if cfg.Sweep.BrowseIntervalMinutes == 0 {
		cfg.Sweep.BrowseIntervalMinutes = 10
	}
	if cfg.Sweep.CartDwellMinutes == 0 {
		cfg.Sweep.CartDwellMinutes = 60
	}
	if cfg.Sweep.Stage2DwellHours == 0 {
		cfg.Sweep.Stage2DwellHours = 24
	}
	if cfg.Sweep.Stage3DwellHours == 0 {
		cfg.Sweep.Stage3DwellHours = 72
	}
	if cfg.Sweep.BrowseDwellMinutes == 0 {
		cfg.Sweep.BrowseDwellMinutes = 120
	}
	if cfg.Sweep.CartRecencyHours == 0 {
		cfg.Sweep.CartRecencyHours = 24
	}
	if cfg.Sweep.BatchSize == 0 {
		cfg.Sweep.BatchSize = 10
	}
	if cfg.Sweep.MaxProducts == 0 {
		cfg.Sweep.MaxProducts = 2
	}
	if cfg.Sweep.AttachWindowMinutes == 0 {
		cfg.Sweep.AttachWindowMinutes = 30
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables if present
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
		cfg.Redis.Enabled = true
	}
	if apiKey := os.Getenv("PLATFORM_API_KEY"); apiKey != "" {
		cfg.Platform.APIKey = apiKey
	}
	if baseURL := os.Getenv("PLATFORM_BASE_URL"); baseURL != "" {
		cfg.Platform.BaseURL = baseURL
	}
	if apiKey := os.Getenv("DELIVERY_API_KEY"); apiKey != "" {
		cfg.Delivery.APIKey = apiKey
	}
	if baseURL := os.Getenv("DELIVERY_BASE_URL"); baseURL != "" {
		cfg.Delivery.BaseURL = baseURL
	}
	if listID := os.Getenv("DELIVERY_LIST_ID"); listID != "" {
		cfg.Delivery.ListID = listID
	}
	if v := os.Getenv("RESTRICTED_RECIPIENT"); v != "" {
		cfg.Restricted.Enabled = true
		cfg.Restricted.AllowedRecipient = v
	}

	return cfg, nil
}
