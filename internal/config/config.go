// Package config provides YAML-based configuration loading for Rostrum.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Rostrum configuration, loaded from rostrum.yaml.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Tokens    TokenConfig     `yaml:"tokens"`
	Judge     JudgeConfig     `yaml:"judge"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Announce  AnnounceConfig  `yaml:"announce"`
}

// ServerConfig holds HTTP and websocket listener settings.
type ServerConfig struct {
	Port              int           `yaml:"port"`
	BaseURL           string        `yaml:"base_url"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
}

// DatabaseConfig holds connection settings for the MySQL-compatible store.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// TokenConfig holds signing and expiry settings for both token kinds.
type TokenConfig struct {
	Secret        string        `yaml:"secret"`
	TransportTTL  time.Duration `yaml:"transport_ttl"`
	InvitationTTL time.Duration `yaml:"invitation_ttl"`
}

// JudgeConfig holds settings for the external judging gateway.
type JudgeConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

// RateLimitConfig bounds how often expensive operations may be retried.
type RateLimitConfig struct {
	RetryPerMinute int `yaml:"retry_per_minute"`
}

// AnnounceConfig holds optional chat platforms to announce results to.
type AnnounceConfig struct {
	Discord AnnounceTarget `yaml:"discord"`
	Slack   AnnounceTarget `yaml:"slack"`
}

// AnnounceTarget identifies one chat destination. Empty token disables it.
type AnnounceTarget struct {
	Token     string `yaml:"token"`
	ChannelID string `yaml:"channel_id"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values. The token signing
// secret may come from the environment so it stays out of config files.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	if c.Server.HeartbeatInterval == 0 {
		c.Server.HeartbeatInterval = 15 * time.Second
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Name == "" {
		c.Database.Name = "rostrum"
	}
	if c.Database.User == "" {
		c.Database.User = "root"
	}
	if c.Tokens.Secret == "" {
		c.Tokens.Secret = os.Getenv("ROSTRUM_TOKEN_SECRET")
	}
	if c.Tokens.TransportTTL == 0 {
		c.Tokens.TransportTTL = time.Hour
	}
	if c.Tokens.InvitationTTL == 0 {
		c.Tokens.InvitationTTL = 24 * time.Hour
	}
	if c.Judge.Timeout == 0 {
		c.Judge.Timeout = 30 * time.Second
	}
	if c.RateLimit.RetryPerMinute == 0 {
		c.RateLimit.RetryPerMinute = 3
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Tokens.Secret == "" {
		errs = append(errs, "tokens.secret is required (or set ROSTRUM_TOKEN_SECRET)")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be a valid port")
	}
	if c.RateLimit.RetryPerMinute < 0 {
		errs = append(errs, "rate_limit.retry_per_minute must not be negative")
	}
	if c.Announce.Discord.Token != "" && c.Announce.Discord.ChannelID == "" {
		errs = append(errs, "announce.discord.channel_id is required when a token is set")
	}
	if c.Announce.Slack.Token != "" && c.Announce.Slack.ChannelID == "" {
		errs = append(errs, "announce.slack.channel_id is required when a token is set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
