package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`
	JWTLeeway   time.Duration `mapstructure:"jwt_leeway" yaml:"jwt_leeway"`

	// Relay tuning.
	MaxMessageBytes   int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	PersistTimeout    time.Duration `mapstructure:"persist_timeout" yaml:"persist_timeout"`
	RingTimeout       time.Duration `mapstructure:"ring_timeout" yaml:"ring_timeout"`
	MessagesPerMinute int           `mapstructure:"messages_per_minute" yaml:"messages_per_minute"`
	EventBuffer       int           `mapstructure:"event_buffer" yaml:"event_buffer"`

	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",
		DatabasePath:      "snapnest.db",
		JWTSecret:         "change-me",
		JWTIssuer:         "snapnest",
		JWTAudience:       "snapnest",
		JWTTTL:            24 * time.Hour,
		JWTLeeway:         30 * time.Second,
		MaxMessageBytes:   1 << 20,
		PersistTimeout:    5 * time.Second,
		RingTimeout:       45 * time.Second,
		MessagesPerMinute: 120,
		EventBuffer:       64,
		AllowedOrigins:    []string{"http://localhost:5173"},
	}
}

// UpdateFrom overwrites receiver fields with the non-zero values of other.
func (c *Config) UpdateFrom(other Config) {
	setString(&c.Addr, other.Addr)
	setDuration(&c.ReadHeaderTimeout, other.ReadHeaderTimeout)
	setDuration(&c.ShutdownTimeout, other.ShutdownTimeout)
	setString(&c.LogLevel, other.LogLevel)
	setString(&c.LogFormat, other.LogFormat)
	setString(&c.DatabasePath, other.DatabasePath)
	setString(&c.JWTSecret, other.JWTSecret)
	setString(&c.JWTIssuer, other.JWTIssuer)
	setString(&c.JWTAudience, other.JWTAudience)
	setDuration(&c.JWTTTL, other.JWTTTL)
	setDuration(&c.JWTLeeway, other.JWTLeeway)
	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
	setDuration(&c.PersistTimeout, other.PersistTimeout)
	setDuration(&c.RingTimeout, other.RingTimeout)
	if other.MessagesPerMinute != 0 {
		c.MessagesPerMinute = other.MessagesPerMinute
	}
	if other.EventBuffer != 0 {
		c.EventBuffer = other.EventBuffer
	}
	if len(other.AllowedOrigins) > 0 {
		c.AllowedOrigins = append([]string(nil), other.AllowedOrigins...)
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}

// Validate reports every setting the relay cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is empty"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database_path is empty"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret is empty"))
	}
	if c.JWTTTL <= 0 {
		errs = append(errs, fmt.Errorf("jwt_ttl must be positive, got %v", c.JWTTTL))
	}
	if c.JWTLeeway < 0 {
		errs = append(errs, fmt.Errorf("jwt_leeway must not be negative, got %v", c.JWTLeeway))
	}
	if c.MaxMessageBytes <= 0 {
		errs = append(errs, fmt.Errorf("max_message_bytes must be positive, got %d", c.MaxMessageBytes))
	}
	if c.PersistTimeout <= 0 {
		errs = append(errs, fmt.Errorf("persist_timeout must be positive, got %v", c.PersistTimeout))
	}
	if c.RingTimeout <= 0 {
		errs = append(errs, fmt.Errorf("ring_timeout must be positive, got %v", c.RingTimeout))
	}
	if c.MessagesPerMinute < 0 {
		errs = append(errs, fmt.Errorf("messages_per_minute must not be negative, got %d", c.MessagesPerMinute))
	}
	if c.EventBuffer <= 0 {
		errs = append(errs, fmt.Errorf("event_buffer must be positive, got %d", c.EventBuffer))
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be console or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}
