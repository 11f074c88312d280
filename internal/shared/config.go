package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Sync        SyncConfig        `toml:"sync"`
}

// CredentialsConfig contains platform-specific credentials.
type CredentialsConfig struct {
	SoundCloud SoundCloudConfig `toml:"soundcloud"`
	YouTube    YouTubeConfig    `toml:"youtube"`
}

// SoundCloudConfig contains SoundCloud API settings.
type SoundCloudConfig struct {
	AccessToken string `toml:"access_token"`
	BaseURL     string `toml:"base_url"`
}

// YouTubeConfig contains YouTube proxy settings.
type YouTubeConfig struct {
	ProxyURL string `toml:"proxy_url"`
	AuthFile string `toml:"auth_file"`
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

// SyncConfig contains the match-classification policy and analysis tuning knobs.
//
// The thresholds are policy constants: 0.90 and above is a confident match,
// 0.55 to 0.90 needs user review, below 0.55 counts as not found.
type SyncConfig struct {
	MatchedThreshold     float64 `toml:"matched_threshold"`
	UncertainThreshold   float64 `toml:"uncertain_threshold"`
	DurationToleranceSec float64 `toml:"duration_tolerance_sec"`
	AnalysisParallelism  int     `toml:"analysis_parallelism"`
	SearchRateLimit      float64 `toml:"search_rate_limit"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
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
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
