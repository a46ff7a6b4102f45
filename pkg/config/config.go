package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config is the boot-time infrastructure configuration. It describes where
// the daemon runs (listen address, settings store, panel wiring, radio
// commands) and never changes at runtime; user-facing settings live in the
// persistent store and are editable through the API.
type Config struct {
	Server  ServerConfig  `env:", prefix=SERVER_"`
	Redis   RedisConfig   `env:", prefix=REDIS_"`
	Fetch   FetchConfig   `env:", prefix=FETCH_"`
	Display DisplayConfig `env:", prefix=DISPLAY_"`
	Network NetworkConfig `env:", prefix=NETWORK_"`
	Update  UpdateConfig  `env:", prefix=UPDATE_"`
	Logging LoggingConfig `env:", prefix=LOG_"`
}

// ServerConfig holds the HTTP configuration surface settings.
type ServerConfig struct {
	Host         string        `env:"HOST, default=0.0.0.0"`
	Port         int           `env:"PORT, default=8080"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT, default=30s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT, default=30s"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT, default=120s"`
	CORSEnabled  bool          `env:"CORS_ENABLED, default=true"`
}

// RedisConfig holds the settings-store connection configuration.
type RedisConfig struct {
	Host         string        `env:"HOST, default=localhost"`
	Port         int           `env:"PORT, default=6379"`
	Password     string        `env:"PASSWORD"`
	DB           int           `env:"DB, default=0"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT, default=5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT, default=3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT, default=3s"`
}

// FetchConfig bounds exchange HTTP fetches.
type FetchConfig struct {
	Timeout time.Duration `env:"TIMEOUT, default=15s"`
}

// DisplayConfig holds panel geometry and the simulated-driver output path.
type DisplayConfig struct {
	Width  int `env:"WIDTH, default=800"`
	Height int `env:"HEIGHT, default=480"`
	// FrameDir, when set, makes the simulated driver dump each pushed frame
	// as a BMP file for headless operation.
	FrameDir string `env:"FRAME_DIR"`
}

// NetworkConfig holds the resilience state machine timing and the interface
// the radio commands operate on.
type NetworkConfig struct {
	Interface         string        `env:"INTERFACE, default=wlan0"`
	ConnectBudget     time.Duration `env:"CONNECT_BUDGET, default=20s"`
	HealthInterval    time.Duration `env:"HEALTH_INTERVAL, default=15s"`
	FallbackRetry     time.Duration `env:"FALLBACK_RETRY, default=60s"`
	GhostThreshold    int           `env:"GHOST_THRESHOLD, default=3"`
	AccessPointSSID   string        `env:"AP_SSID, default=armoured-candles"`
	AccessPointAddr   string        `env:"AP_ADDR, default=192.168.4.1"`
	CommandTimeout    time.Duration `env:"COMMAND_TIMEOUT, default=10s"`
	ReconnectAttempts int           `env:"RECONNECT_ATTEMPTS, default=3"`
}

// UpdateConfig holds firmware-image upload settings.
type UpdateConfig struct {
	StagingPath string `env:"STAGING_PATH, default=/var/lib/armoured-candles/update.bin"`
	MaxImageMB  int64  `env:"MAX_IMAGE_MB, default=64"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `env:"LEVEL, default=info"`
	Format string `env:"FORMAT, default=text"`
	Output string `env:"OUTPUT, default=stdout"`
}

// Load loads configuration from environment variables using go-envconfig.
func Load() (*Config, error) {
	ctx := context.Background()
	var cfg Config

	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Redis.Host == "" {
		return fmt.Errorf("Redis host is required")
	}
	if c.Display.Width <= 0 || c.Display.Width%8 != 0 {
		return fmt.Errorf("display width must be a positive multiple of 8, got %d", c.Display.Width)
	}
	if c.Display.Height <= 0 {
		return fmt.Errorf("invalid display height: %d", c.Display.Height)
	}
	if c.Network.GhostThreshold < 1 {
		return fmt.Errorf("ghost threshold must be at least 1, got %d", c.Network.GhostThreshold)
	}
	if c.Update.MaxImageMB <= 0 {
		return fmt.Errorf("invalid max update image size: %dMB", c.Update.MaxImageMB)
	}
	return nil
}

// GetRedisAddr returns the settings-store address.
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// GetServerAddr returns the HTTP listen address.
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
