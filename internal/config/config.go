// Package config provides configuration management using Viper.
// It loads configuration from environment variables, .env files, and config files.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

const (
	defaultServerPort                = 8080
	defaultServerHost                = "0.0.0.0"
	defaultReadTimeout               = 30 * time.Second
	defaultWriteTimeout              = 30 * time.Second
	defaultDatabasePath              = "./data/montage.db"
	defaultDatabaseConnectionTimeout = 5 * time.Second
	defaultMigrationsPath            = "file://./migrations"
	defaultLogLevel                  = "info"
	defaultLogPretty                 = false
	defaultDatabaseEnableWAL         = true

	defaultFrameInterval         = 16 * time.Millisecond
	defaultWatchdogInterval      = 100 * time.Millisecond
	defaultStallRecoveryDelay    = 500 * time.Millisecond
	defaultSessionGracePeriod    = 5 * time.Minute
	defaultCleanupInterval       = 30 * time.Second
	defaultCircuitThreshold      = 3
	defaultCircuitResetTimeout   = 60 * time.Second
	defaultFallbackAssetDuration = 10.0

	defaultMediaBackend = MediaBackendSimulated
	defaultLibraryPath  = "./media"

	envPrefix = "MONTAGE"
)

// Media backends
const (
	MediaBackendSimulated = "simulated"
	MediaBackendSpeaker   = "speaker"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Playback PlaybackConfig
	Media    MediaConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Path              string
	ConnectionTimeout time.Duration
	EnableWAL         bool
	MigrationsPath    string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Pretty bool
}

// PlaybackConfig holds timing for the synchronization engine and session manager
type PlaybackConfig struct {
	FrameInterval         time.Duration
	WatchdogInterval      time.Duration
	StallRecoveryDelay    time.Duration
	FallbackAssetDuration float64
	SessionGracePeriod    time.Duration
	CleanupInterval       time.Duration
	CircuitThreshold      int
	CircuitResetTimeout   time.Duration
}

// MediaConfig selects how media ids are turned into playable elements
type MediaConfig struct {
	Backend     string
	LibraryPath string
}

// Load reads configuration from .env file, config files, environment variables, and defaults
func Load() (*Config, error) {
	_ = godotenv.Load() // nolint:errcheck // .env file is optional

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/montage")

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.host", defaultServerHost)
	v.SetDefault("server.readtimeout", defaultReadTimeout)
	v.SetDefault("server.writetimeout", defaultWriteTimeout)

	v.SetDefault("database.path", defaultDatabasePath)
	v.SetDefault("database.connectiontimeout", defaultDatabaseConnectionTimeout)
	v.SetDefault("database.enablewal", defaultDatabaseEnableWAL)
	v.SetDefault("database.migrationspath", defaultMigrationsPath)

	v.SetDefault("logging.level", defaultLogLevel)
	v.SetDefault("logging.pretty", defaultLogPretty)

	v.SetDefault("playback.frameinterval", defaultFrameInterval)
	v.SetDefault("playback.watchdoginterval", defaultWatchdogInterval)
	v.SetDefault("playback.stallrecoverydelay", defaultStallRecoveryDelay)
	v.SetDefault("playback.fallbackassetduration", defaultFallbackAssetDuration)
	v.SetDefault("playback.sessiongraceperiod", defaultSessionGracePeriod)
	v.SetDefault("playback.cleanupinterval", defaultCleanupInterval)
	v.SetDefault("playback.circuitthreshold", defaultCircuitThreshold)
	v.SetDefault("playback.circuitresettimeout", defaultCircuitResetTimeout)

	v.SetDefault("media.backend", defaultMediaBackend)
	v.SetDefault("media.librarypath", defaultLibraryPath)
}

// Validate checks that configuration values are valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("invalid read timeout: %v (must be > 0)", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("invalid write timeout: %v (must be > 0)", c.Server.WriteTimeout)
	}
	if c.Database.ConnectionTimeout <= 0 {
		return fmt.Errorf("invalid database connection timeout: %v (must be > 0)", c.Database.ConnectionTimeout)
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !lo.Contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.Logging.Level, strings.Join(validLevels, ", "))
	}

	if err := c.Playback.validate(); err != nil {
		return err
	}

	validBackends := []string{MediaBackendSimulated, MediaBackendSpeaker}
	if !lo.Contains(validBackends, c.Media.Backend) {
		return fmt.Errorf("invalid media backend: %s (must be one of: %s)", c.Media.Backend, strings.Join(validBackends, ", "))
	}

	return nil
}

func (p PlaybackConfig) validate() error {
	if p.FrameInterval <= 0 {
		return fmt.Errorf("invalid frame interval: %v (must be > 0)", p.FrameInterval)
	}
	// The watchdog must not outpace the frame loop.
	if p.WatchdogInterval < p.FrameInterval {
		return fmt.Errorf("invalid watchdog interval: %v (must be >= frame interval %v)", p.WatchdogInterval, p.FrameInterval)
	}
	if p.StallRecoveryDelay <= 0 {
		return fmt.Errorf("invalid stall recovery delay: %v (must be > 0)", p.StallRecoveryDelay)
	}
	if p.FallbackAssetDuration <= 0 {
		return fmt.Errorf("invalid fallback asset duration: %v (must be > 0)", p.FallbackAssetDuration)
	}
	if p.SessionGracePeriod <= 0 {
		return fmt.Errorf("invalid session grace period: %v (must be > 0)", p.SessionGracePeriod)
	}
	if p.CleanupInterval <= 0 {
		return fmt.Errorf("invalid cleanup interval: %v (must be > 0)", p.CleanupInterval)
	}
	if p.CircuitThreshold < 1 {
		return fmt.Errorf("invalid circuit threshold: %d (must be >= 1)", p.CircuitThreshold)
	}
	if p.CircuitResetTimeout <= 0 {
		return fmt.Errorf("invalid circuit reset timeout: %v (must be > 0)", p.CircuitResetTimeout)
	}
	return nil
}
