package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Auth     AuthConfig     `toml:"auth"`
	Query    QueryConfig    `toml:"query"`
	UI       UIConfig       `toml:"ui"`
	Player   PlayerConfig   `toml:"player"`
	Database DatabaseConfig `toml:"database"`
	Web      WebConfig      `toml:"web"`
	Log      LogConfig      `toml:"log"`
}

// ServerConfig points the client at an Igloo backend.
type ServerConfig struct {
	URL               string  `toml:"url"`
	APIPrefix         string  `toml:"api_prefix"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// AuthConfig controls the background token refresh.
type AuthConfig struct {
	RefreshInterval time.Duration `toml:"refresh_interval"`
}

// QueryConfig holds query cache defaults.
type QueryConfig struct {
	StaleTime  time.Duration `toml:"stale_time"`
	Retry      int           `toml:"retry"`
	RetryDelay time.Duration `toml:"retry_delay"`
}

// UIConfig contains settings shared by the terminal and web frontends.
type UIConfig struct {
	BannerTimeout time.Duration `toml:"banner_timeout"`
}

// PlayerConfig describes the external video player used for playback.
type PlayerConfig struct {
	Command    string   `toml:"command"`
	Args       []string `toml:"args"`
	HeaderFlag string   `toml:"header_flag"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// WebConfig contains settings for the local web frontend.
type WebConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Addr returns the host:port the web frontend listens on.
func (w WebConfig) Addr() string {
	return fmt.Sprintf("%s:%d", w.Host, w.Port)
}

// BaseURL joins the server URL with the API prefix.
func (s ServerConfig) BaseURL() string {
	return s.URL + s.APIPrefix
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("%w: server.url is required", ErrInvalidConfig)
	}
	if c.Auth.RefreshInterval <= 0 {
		return fmt.Errorf("%w: auth.refresh_interval must be positive", ErrInvalidConfig)
	}
	if c.Query.Retry < 0 {
		return fmt.Errorf("%w: query.retry must not be negative", ErrInvalidConfig)
	}
	if c.UI.BannerTimeout <= 0 {
		return fmt.Errorf("%w: ui.banner_timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
