package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogConsole        bool          `mapstructure:"log_console" yaml:"log_console"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`

	JWT   JWT   `mapstructure:"jwt" yaml:"jwt"`
	Redis Redis `mapstructure:"redis" yaml:"redis"`
	Chat  Chat  `mapstructure:"chat" yaml:"chat"`
}

// JWT configures token issuance and verification.
type JWT struct {
	Secret     string        `mapstructure:"secret" yaml:"secret"`
	Issuer     string        `mapstructure:"issuer" yaml:"issuer"`
	Audience   string        `mapstructure:"audience" yaml:"audience"`
	AccessTTL  time.Duration `mapstructure:"access_ttl" yaml:"access_ttl"`
	RefreshTTL time.Duration `mapstructure:"refresh_ttl" yaml:"refresh_ttl"`
}

// Redis configures the presence cache. An empty Addr selects the
// in-process fallback store.
type Redis struct {
	Addr      string `mapstructure:"addr" yaml:"addr"`
	Password  string `mapstructure:"password" yaml:"password"`
	DB        int    `mapstructure:"db" yaml:"db"`
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix"`
}

// Chat tunes the relay core.
type Chat struct {
	DefaultRoom        string        `mapstructure:"default_room" yaml:"default_room"`
	LedgerQueueSize    int           `mapstructure:"ledger_queue_size" yaml:"ledger_queue_size"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	OnlineTTL          time.Duration `mapstructure:"online_ttl" yaml:"online_ttl"`
	HistoryPageSize    int           `mapstructure:"history_page_size" yaml:"history_page_size"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		LogLevel:          "info",
		LogConsole:        true,
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		DatabasePath:      "chatsphere.db",
		JWT: JWT{
			Secret:     "change-me-in-production",
			Issuer:     "chatsphere",
			Audience:   "chatsphere-clients",
			AccessTTL:  24 * time.Hour,
			RefreshTTL: 30 * 24 * time.Hour,
		},
		Redis: Redis{
			Addr:      "",
			DB:        0,
			KeyPrefix: "chatsphere:",
		},
		Chat: Chat{
			DefaultRoom:        "general",
			LedgerQueueSize:    256,
			WriteTimeout:       5 * time.Second,
			OnlineTTL:          90 * time.Second,
			HistoryPageSize:    50,
			RateLimitPerMinute: 10,
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.JWT.Secret != "" {
		c.JWT.Secret = other.JWT.Secret
	}
	if other.Redis.Addr != "" {
		c.Redis.Addr = other.Redis.Addr
	}
	if other.Chat.DefaultRoom != "" {
		c.Chat.DefaultRoom = other.Chat.DefaultRoom
	}
}
