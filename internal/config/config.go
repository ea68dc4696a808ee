package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix               = "WORKFLOW"
	defaultHTTPAddress      = "0.0.0.0:8080"
	defaultDatabasePath     = "workflow.db"
	defaultLogLevel         = "info"
	defaultLogFormat        = "json"
	defaultCookieName       = "app_session"
	defaultSessionIssuer    = "tauth"
	defaultEventBufferSize  = 16
	defaultRedisChannel     = "workflow:invalidations"
	defaultHeartbeatSeconds = 25
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress       string
	AllowedOrigins    []string
	TAuthSigningKey   string
	TAuthCookieName   string
	TAuthIssuer       string
	DatabasePath      string
	LogLevel          string
	LogFormat         string
	LogFile           string
	EventBufferSize   int
	EventRedisURL     string
	EventRedisChannel string
	HeartbeatInterval time.Duration
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.allowed_origins", []string{})
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
	configViper.SetDefault("log.file", "")
	configViper.SetDefault("tauth.cookie_name", defaultCookieName)
	configViper.SetDefault("tauth.issuer", defaultSessionIssuer)
	configViper.SetDefault("events.buffer_size", defaultEventBufferSize)
	configViper.SetDefault("events.redis_url", "")
	configViper.SetDefault("events.redis_channel", defaultRedisChannel)
	configViper.SetDefault("events.heartbeat_seconds", defaultHeartbeatSeconds)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:       configViper.GetString("http.address"),
		AllowedOrigins:    splitList(configViper.GetStringSlice("http.allowed_origins")),
		TAuthSigningKey:   configViper.GetString("tauth.signing_secret"),
		TAuthCookieName:   configViper.GetString("tauth.cookie_name"),
		TAuthIssuer:       configViper.GetString("tauth.issuer"),
		DatabasePath:      configViper.GetString("database.path"),
		LogLevel:          configViper.GetString("log.level"),
		LogFormat:         strings.ToLower(strings.TrimSpace(configViper.GetString("log.format"))),
		LogFile:           strings.TrimSpace(configViper.GetString("log.file")),
		EventBufferSize:   configViper.GetInt("events.buffer_size"),
		EventRedisURL:     strings.TrimSpace(configViper.GetString("events.redis_url")),
		EventRedisChannel: configViper.GetString("events.redis_channel"),
		HeartbeatInterval: time.Duration(configViper.GetInt("events.heartbeat_seconds")) * time.Second,
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.TAuthSigningKey) == "" {
		return fmt.Errorf("tauth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.TAuthCookieName) == "" {
		return fmt.Errorf("tauth.cookie_name is required")
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.LogFormat)
	}
	if c.EventBufferSize <= 0 {
		return fmt.Errorf("events.buffer_size must be positive")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("events.heartbeat_seconds must be positive")
	}
	return nil
}

// splitList accepts both repeated values and a single comma-separated env value.
func splitList(values []string) []string {
	items := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				items = append(items, trimmed)
			}
		}
	}
	return items
}
