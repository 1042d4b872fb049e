// Package config loads and validates the application configuration.
// Values come from an optional TOML config file with environment
// variables taking priority, so container deployments can override any
// file-provided setting.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/chatkit/chatroom/internal/constants"
)

// Config holds all application configuration
type Config struct {
	Server ServerConfig
	Chat   ChatConfig
	Log    LogConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port                   int
	StaticDir              string        // Directory served for the browser client
	TrustedProxies         string        // Comma-separated CIDRs trusted for X-Forwarded-For
	CORSAllowedOrigins     string        // Comma-separated origins; empty disables CORS middleware
	MetricsAllowedNetworks string        // Comma-separated CIDRs allowed to scrape metrics
	LoginRateLimit         int           // Login attempts per window per IP
	RateWindow             time.Duration // Sliding window for rate limiting
	PublicEndpointRate     int           // Requests per minute for public endpoints
	MaxPollsPerIP          int           // Concurrent parked long-polls per client IP
}

// ChatConfig holds chat-domain configuration
type ChatConfig struct {
	InactivityWindow time.Duration // Session destroyed if no poll re-attaches in this window
	HistoryLimit     int           // Retained message count
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string // debug, info, warn, error
}

// Load reads configuration from an optional config.toml and the
// environment. Environment variables use the CHATROOM_ prefix with
// underscores, e.g. CHATROOM_SERVER_PORT overrides server.port.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/chatroom")

	v.SetEnvPrefix("CHATROOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", constants.DefaultPort)
	v.SetDefault("server.static_dir", constants.DefaultStaticDir)
	v.SetDefault("server.trusted_proxies", constants.DefaultTrustedProxies)
	v.SetDefault("server.cors_allowed_origins", "")
	v.SetDefault("server.metrics_allowed_networks", constants.DefaultMetricsAllowedNetworks)
	v.SetDefault("server.login_rate_limit", constants.DefaultLoginRateLimit)
	v.SetDefault("server.rate_window", constants.DefaultRateWindow.String())
	v.SetDefault("server.public_endpoint_rate", constants.PublicEndpointRate)
	v.SetDefault("server.max_polls_per_ip", constants.DefaultMaxPollsPerIP)
	v.SetDefault("chat.inactivity_window", constants.DefaultInactivityWindow.String())
	v.SetDefault("chat.history_limit", constants.DefaultHistoryLimit)
	v.SetDefault("log.level", constants.DefaultLogLevel)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine: defaults plus environment
		// cover a complete configuration.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:                   v.GetInt("server.port"),
			StaticDir:              v.GetString("server.static_dir"),
			TrustedProxies:         v.GetString("server.trusted_proxies"),
			CORSAllowedOrigins:     v.GetString("server.cors_allowed_origins"),
			MetricsAllowedNetworks: v.GetString("server.metrics_allowed_networks"),
			LoginRateLimit:         v.GetInt("server.login_rate_limit"),
			RateWindow:             v.GetDuration("server.rate_window"),
			PublicEndpointRate:     v.GetInt("server.public_endpoint_rate"),
			MaxPollsPerIP:          v.GetInt("server.max_polls_per_ip"),
		},
		Chat: ChatConfig{
			InactivityWindow: v.GetDuration("chat.inactivity_window"),
			HistoryLimit:     v.GetInt("chat.history_limit"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
		},
	}

	return cfg, nil
}

// Validate validates the configuration, aggregating all problems into
// a single error.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, errors.New("server port must be between 1 and 65535"))
	}
	if c.Server.StaticDir == "" {
		errs = append(errs, errors.New("static dir cannot be empty"))
	}
	if c.Server.LoginRateLimit <= 0 {
		errs = append(errs, errors.New("login rate limit must be positive"))
	}
	if c.Server.RateWindow <= 0 {
		errs = append(errs, errors.New("rate window must be positive"))
	}
	if c.Server.PublicEndpointRate <= 0 {
		errs = append(errs, errors.New("public endpoint rate must be positive"))
	}
	if c.Server.MaxPollsPerIP <= 0 {
		errs = append(errs, errors.New("max polls per IP must be positive"))
	}
	if c.Chat.InactivityWindow <= 0 {
		errs = append(errs, errors.New("inactivity window must be positive"))
	}
	if c.Chat.HistoryLimit <= 0 {
		errs = append(errs, errors.New("history limit must be positive"))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log level %q; allowed: debug, info, warn, error", c.Log.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}
