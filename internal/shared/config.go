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
	Telegram TelegramConfig `toml:"telegram"`
	VK       VKConfig       `toml:"vk"`
	Auth     AuthConfig     `toml:"auth"`
	Store    StoreConfig    `toml:"store"`
	Database DatabaseConfig `toml:"database"`
}

// TelegramConfig contains the bot credential.
type TelegramConfig struct {
	Token string `toml:"token"`
}

// VKConfig contains the VK application id and API client settings.
type VKConfig struct {
	AppID             int64   `toml:"app_id"`
	APIBase           string  `toml:"api_base"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// AuthConfig contains the OAuth capture endpoint settings. BaseURL is the
// public redirect URL registered with the VK application, ListenAddr the
// local address the capture server binds to.
type AuthConfig struct {
	BaseURL        string `toml:"base_url"`
	ListenAddr     string `toml:"listen_addr"`
	TimeoutMinutes int    `toml:"timeout_minutes"`
}

// Timeout returns the OAuth wait deadline as a duration.
func (a AuthConfig) Timeout() time.Duration {
	minutes := a.TimeoutMinutes
	if minutes <= 0 {
		minutes = 5
	}
	return time.Duration(minutes) * time.Minute
}

// StoreConfig selects the user record backend: "file" (JSON, rewritten
// wholesale on every change) or "sqlite".
type StoreConfig struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

// DatabaseConfig contains connection pool settings for the sqlite backend.
type DatabaseConfig struct {
	MaxOpenConns int `toml:"max_open_conns"`
	MaxIdleConns int `toml:"max_idle_conns"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingConfig, err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the
// embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the settings the bot cannot start without. Any failure here
// is fatal at startup.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("%w: telegram.token is required", ErrInvalidConfig)
	}
	if c.VK.AppID == 0 {
		return fmt.Errorf("%w: vk.app_id is required", ErrInvalidConfig)
	}
	if c.Auth.BaseURL == "" {
		return fmt.Errorf("%w: auth.base_url is required", ErrInvalidConfig)
	}
	if c.Auth.ListenAddr == "" {
		return fmt.Errorf("%w: auth.listen_addr is required", ErrInvalidConfig)
	}
	switch c.Store.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("%w: store.backend must be \"file\" or \"sqlite\", got %q", ErrInvalidConfig, c.Store.Backend)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("%w: store.path is required", ErrInvalidConfig)
	}
	return nil
}
