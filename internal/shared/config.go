package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
)

//go:embed config.example.toml
var exampleConf []byte

const appName = "cratedig"

// Environment variables that override file configuration.
const (
	EnvClientID     = "CRATEDIG_YOUTUBE_CLIENT_ID"
	EnvClientSecret = "CRATEDIG_YOUTUBE_CLIENT_SECRET"
	EnvProxyURL     = "CRATEDIG_PROXY_URL"
	EnvDatabasePath = "CRATEDIG_DATABASE_PATH"
)

// Playlist backends selectable with roll.playlist_backend.
const (
	BackendProxy   = "proxy"
	BackendDataAPI = "data_api"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Roll        RollConfig        `toml:"roll"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	YouTube YouTubeConfig `toml:"youtube"`
}

// YouTubeConfig contains Google OAuth client credentials and the YouTube Music proxy location.
type YouTubeConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	ProxyURL     string `toml:"proxy_url"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// RollConfig contains defaults for rolls and playlist creation.
type RollConfig struct {
	DefaultMode     string  `toml:"default_mode"`
	DefaultSize     int     `toml:"default_size"`
	PlaylistBackend string  `toml:"playlist_backend"`
	CheckRate       float64 `toml:"check_rate"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// Addr returns the host:port pair the HTTP server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
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

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate rejects settings the application cannot run with.
func (c *Config) Validate() error {
	switch c.Roll.PlaylistBackend {
	case "", BackendProxy, BackendDataAPI:
	default:
		return fmt.Errorf("%w: unknown playlist_backend %q", ErrInvalidConfig, c.Roll.PlaylistBackend)
	}
	if c.Roll.DefaultSize != 0 && (c.Roll.DefaultSize < 10 || c.Roll.DefaultSize > 100) {
		return fmt.Errorf("%w: default_size must be between 10 and 100", ErrInvalidConfig)
	}
	return nil
}

// ApplyEnv overrides file values with any CRATEDIG_* environment variables that are set.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvClientID); v != "" {
		c.Credentials.YouTube.ClientID = v
	}
	if v := os.Getenv(EnvClientSecret); v != "" {
		c.Credentials.YouTube.ClientSecret = v
	}
	if v := os.Getenv(EnvProxyURL); v != "" {
		c.Credentials.YouTube.ProxyURL = v
	}
	if v := os.Getenv(EnvDatabasePath); v != "" {
		c.Database.Path = v
	}
}

// ResolveDataPath returns path unchanged, or the XDG data location for name when path is empty.
func ResolveDataPath(path, name string) (string, error) {
	if path != "" {
		return path, nil
	}
	resolved, err := xdg.DataFile(filepath.Join(appName, name))
	if err != nil {
		return "", fmt.Errorf("failed to resolve data path: %w", err)
	}
	return resolved, nil
}
