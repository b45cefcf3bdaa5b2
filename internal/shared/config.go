package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Environment string         `toml:"environment"`
	Server      ServerConfig   `toml:"server"`
	Database    DatabaseConfig `toml:"database"`
	Auth        AuthConfig     `toml:"auth"`
	Storage     StorageConfig  `toml:"storage"`
	Uploads     UploadsConfig  `toml:"uploads"`
	Limits      LimitsConfig   `toml:"limits"`
	Stations    StationsConfig `toml:"stations"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string   `toml:"host"`
	Port            int      `toml:"port"`
	BaseURL         string   `toml:"base_url"`
	CORSOrigins     []string `toml:"cors_origins"`
	ShutdownTimeout string   `toml:"shutdown_timeout"`
}

// DatabaseConfig contains database connection settings.
//
// Driver is either "sqlite3" or "postgres"; DSN is passed to the driver unchanged.
type DatabaseConfig struct {
	Driver       string `toml:"driver"`
	DSN          string `toml:"dsn"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// AuthConfig contains bearer token and OAuth provider settings.
type AuthConfig struct {
	JWTSecret string       `toml:"jwt_secret"`
	Issuer    string       `toml:"issuer"`
	TokenTTL  string       `toml:"token_ttl"`
	Google    GoogleConfig `toml:"google"`
}

// GoogleConfig contains Google OAuth client credentials.
type GoogleConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURL  string `toml:"redirect_url"`
}

// StorageConfig selects and configures the media storage backend.
type StorageConfig struct {
	Backend       string           `toml:"backend"`
	LocalDir      string           `toml:"local_dir"`
	PublicBaseURL string           `toml:"public_base_url"`
	Cloudinary    CloudinaryConfig `toml:"cloudinary"`
}

// CloudinaryConfig contains Cloudinary API credentials.
type CloudinaryConfig struct {
	CloudName string `toml:"cloud_name"`
	APIKey    string `toml:"api_key"`
	APISecret string `toml:"api_secret"`
	Folder    string `toml:"folder"`
	BaseURL   string `toml:"base_url"`
}

// UploadsConfig bounds accepted upload sizes in megabytes.
type UploadsConfig struct {
	MaxAudioMB int64 `toml:"max_audio_mb"`
	MaxImageMB int64 `toml:"max_image_mb"`
}

// LimitsConfig configures the per-client request limiter.
type LimitsConfig struct {
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
}

// StationsConfig configures radio stream health probing.
type StationsConfig struct {
	ProbeInterval string  `toml:"probe_interval"`
	ProbeTimeout  string  `toml:"probe_timeout"`
	ProbeWorkers  int     `toml:"probe_workers"`
	ProbeRate     float64 `toml:"probe_rate"`
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
		return nil, fmt.Errorf("failed to parse config: %w", err)
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

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// IsProduction reports whether the config targets a production deployment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("%w: unknown database driver %q", ErrInvalidConfig, c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("%w: database dsn is empty", ErrInvalidConfig)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("%w: auth.jwt_secret is empty", ErrInvalidConfig)
	}
	if c.IsProduction() && c.Auth.JWTSecret == "change-me" {
		return fmt.Errorf("%w: auth.jwt_secret must be changed in production", ErrInvalidConfig)
	}

	switch c.Storage.Backend {
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("%w: storage.local_dir is empty", ErrInvalidConfig)
		}
	case "cloudinary":
		cl := c.Storage.Cloudinary
		if cl.CloudName == "" || cl.APIKey == "" || cl.APISecret == "" {
			return fmt.Errorf("%w: cloudinary credentials are incomplete", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalidConfig, c.Storage.Backend)
	}

	for name, value := range map[string]string{
		"auth.token_ttl":          c.Auth.TokenTTL,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"stations.probe_interval": c.Stations.ProbeInterval,
		"stations.probe_timeout":  c.Stations.ProbeTimeout,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, name, err)
		}
	}

	return nil
}

// Addr returns the host:port the HTTP server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ShutdownTimeoutDuration parses ShutdownTimeout, defaulting to 10 seconds.
func (s ServerConfig) ShutdownTimeoutDuration() time.Duration {
	return parseDurationOr(s.ShutdownTimeout, 10*time.Second)
}

// TokenTTLDuration parses TokenTTL, defaulting to 72 hours.
func (a AuthConfig) TokenTTLDuration() time.Duration {
	return parseDurationOr(a.TokenTTL, 72*time.Hour)
}

// Enabled reports whether Google sign-in has credentials.
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

// ProbeIntervalDuration parses ProbeInterval, defaulting to five minutes.
func (s StationsConfig) ProbeIntervalDuration() time.Duration {
	return parseDurationOr(s.ProbeInterval, 5*time.Minute)
}

// ProbeTimeoutDuration parses ProbeTimeout, defaulting to ten seconds.
func (s StationsConfig) ProbeTimeoutDuration() time.Duration {
	return parseDurationOr(s.ProbeTimeout, 10*time.Second)
}

// MaxAudioBytes converts MaxAudioMB to bytes.
func (u UploadsConfig) MaxAudioBytes() int64 {
	return u.MaxAudioMB << 20
}

// MaxImageBytes converts MaxImageMB to bytes.
func (u UploadsConfig) MaxImageBytes() int64 {
	return u.MaxImageMB << 20
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
