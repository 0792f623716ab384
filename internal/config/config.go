// Package config handles loading and validating the interlude configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/nadzzz/interlude/internal/guildconfig"
)

// Config is the root configuration for the interlude daemon.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Transports TransportsConfig `mapstructure:"transports"`
	Lavalink   LavalinkConfig   `mapstructure:"lavalink"`
	TTS        TTSConfig        `mapstructure:"tts"`
	Audio      AudioConfig      `mapstructure:"audio"`
	Store      StoreConfig      `mapstructure:"store"`
	Defaults   DefaultsConfig   `mapstructure:"defaults"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds the health check server settings and the token that
// guards configuration changes. An empty AdminToken disables the check.
type ServerConfig struct {
	HealthPort int    `mapstructure:"health_port"`
	AdminToken string `mapstructure:"admin_token"`
}

// TransportsConfig holds the configuration for each transport layer.
type TransportsConfig struct {
	GRPC GRPCConfig `mapstructure:"grpc"`
	HTTP HTTPConfig `mapstructure:"http"`
}

// GRPCConfig configures the gRPC transport.
type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HTTPConfig configures the HTTP transport.
type HTTPConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LavalinkConfig points at the Lavalink v4 node that plays audio.
type LavalinkConfig struct {
	Address    string `mapstructure:"address"` // host:port
	Password   string `mapstructure:"password"`
	UserID     string `mapstructure:"user_id"` // bot user ID
	ClientName string `mapstructure:"client_name"`
	Secure     bool   `mapstructure:"secure"`
}

// TTSConfig selects and configures the text-to-speech backend.
type TTSConfig struct {
	Backend string       `mapstructure:"backend"` // "piper" or "google"
	Piper   PiperConfig  `mapstructure:"piper"`
	Google  GoogleConfig `mapstructure:"google"`
}

// PiperConfig holds Piper TTS settings (Wyoming protocol).
//
// For a single Piper instance that serves all languages, set Endpoint.
// For per-language instances, set Endpoints which maps language codes to
// individual Wyoming TCP endpoints; Endpoint is then the fallback.
type PiperConfig struct {
	Endpoint  string            `mapstructure:"endpoint"`  // Default Wyoming TCP endpoint (host:port)
	Endpoints map[string]string `mapstructure:"endpoints"` // language code -> Wyoming TCP endpoint
	Voices    map[string]string `mapstructure:"voices"`    // language code -> Piper voice model name
}

// GoogleConfig holds Google Cloud Text-to-Speech settings. Credentials come
// from the environment (GOOGLE_APPLICATION_CREDENTIALS).
type GoogleConfig struct {
	RequestsPerMinute int               `mapstructure:"requests_per_minute"`
	Voices            map[string]string `mapstructure:"voices"` // language code -> voice name
}

// AudioConfig controls where padded announcement files are written. The
// directory must be readable by the Lavalink node.
type AudioConfig struct {
	TempDir string `mapstructure:"temp_dir"`
}

// StoreConfig locates the per-guild settings database.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// DefaultsConfig holds the settings a guild gets until it changes them.
type DefaultsConfig struct {
	Lang    string        `mapstructure:"lang"`
	Padding time.Duration `mapstructure:"padding"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./interlude.yaml, ./configs/interlude.yaml, /etc/interlude/interlude.yaml.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("server.admin_token", "")
	v.SetDefault("transports.grpc.enabled", true)
	v.SetDefault("transports.grpc.port", 50051)
	v.SetDefault("transports.http.enabled", true)
	v.SetDefault("transports.http.port", 8080)
	v.SetDefault("transports.http.allowed_origins", []string{"*"})
	v.SetDefault("lavalink.address", "localhost:2333")
	v.SetDefault("lavalink.password", "youshallnotpass")
	v.SetDefault("lavalink.client_name", "interlude")
	v.SetDefault("lavalink.secure", false)
	v.SetDefault("tts.backend", "piper")
	v.SetDefault("tts.piper.endpoint", "localhost:10200")
	v.SetDefault("tts.google.requests_per_minute", 300)
	v.SetDefault("audio.temp_dir", "")
	v.SetDefault("store.path", "interlude.db")
	v.SetDefault("defaults.lang", "en")
	v.SetDefault("defaults.padding", "700ms")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("interlude")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/interlude")
	}

	// Environment variables: INTERLUDE_LAVALINK_ADDRESS, INTERLUDE_TTS_BACKEND, etc.
	v.SetEnvPrefix("INTERLUDE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Secrets may be written as "${VAR}" in the file.
	cfg.Server.AdminToken = resolveEnvRef(cfg.Server.AdminToken)
	cfg.Lavalink.Password = resolveEnvRef(cfg.Lavalink.Password)
	cfg.Lavalink.UserID = resolveEnvRef(cfg.Lavalink.UserID)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.TTS.Backend {
	case "piper", "google":
	default:
		return fmt.Errorf("tts.backend: unknown backend %q", c.TTS.Backend)
	}
	if c.Defaults.Padding < 0 || c.Defaults.Padding > guildconfig.MaxPadding {
		return fmt.Errorf("defaults.padding: must be between 0 and %s, got %s", guildconfig.MaxPadding, c.Defaults.Padding)
	}
	if c.Defaults.Lang == "" {
		return fmt.Errorf("defaults.lang: must be set")
	}
	return nil
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		envKey := val[2 : len(val)-1]
		if envVal := os.Getenv(envKey); envVal != "" {
			return envVal
		}
	}
	return val
}

// ParseLevel maps a level name to its slog.Level, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogging configures the global slog logger based on config.
func SetupLogging(cfg LoggingConfig) {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
