// Package config provides centralized configuration for tulipctl and the
// fake API server. Settings come from struct-tag defaults, then an optional
// YAML file (TULIP_CONFIG_FILE), then environment variables, and are
// validated on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"

	"github.com/JonMunkholm/tulipapi/internal/tulip"
)

// Config holds all application configuration.
type Config struct {
	API     APIConfig     `yaml:"api"`
	FakeAPI FakeAPIConfig `yaml:"fakeapi"`
	Logging LoggingConfig `yaml:"logging"`
}

// APIConfig holds the client settings.
type APIConfig struct {
	// Instance is the host name, or the full base URL when UseFullURL is set
	Instance string `env:"TULIP_INSTANCE" yaml:"instance"`

	// UseFullURL keeps the scheme and port of Instance (default: false)
	UseFullURL bool `env:"TULIP_USE_FULL_URL" default:"false" yaml:"use_full_url"`

	// Auth is a pre-encoded basic auth token
	Auth string `env:"TULIP_AUTH" yaml:"auth"`

	APIKey    string `env:"TULIP_API_KEY" yaml:"api_key"`
	APISecret string `env:"TULIP_API_SECRET" yaml:"api_secret"`

	// Concurrency is the number of requests allowed in flight (default: 40)
	Concurrency int `env:"TULIP_CONCURRENCY" default:"40" yaml:"concurrency"`

	// Timeout bounds each request (default: 30s)
	Timeout time.Duration `env:"TULIP_TIMEOUT" default:"30s" yaml:"timeout"`

	// RateLimit is requests per second, 0 for no limit (default: 0)
	RateLimit float64 `env:"TULIP_RATE_LIMIT" default:"0" yaml:"rate_limit"`
}

// FakeAPIConfig holds the emulator's HTTP server settings.
type FakeAPIConfig struct {
	// Host is the interface to bind to (default: 127.0.0.1)
	Host string `env:"FAKEAPI_HOST" default:"127.0.0.1" yaml:"host"`

	// Port is the port to listen on (default: 8089)
	Port int `env:"FAKEAPI_PORT" default:"8089" yaml:"port"`

	// Token is the basic auth token the emulator accepts; empty accepts any
	Token string `env:"FAKEAPI_TOKEN" envAlt:"TULIP_AUTH" yaml:"token"`

	// Seed is an optional YAML file with tables to preload
	Seed string `env:"FAKEAPI_SEED" yaml:"seed"`

	// ShutdownTimeout is how long to wait for in-flight requests (default: 10s)
	ShutdownTimeout time.Duration `env:"FAKEAPI_SHUTDOWN_TIMEOUT" default:"10s" yaml:"shutdown_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info" yaml:"level"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text" yaml:"format"`
}

// Credentials returns the client credentials. explicitAuth, typically a
// command-line flag, takes precedence over everything in the environment.
func (c *APIConfig) Credentials(explicitAuth string) tulip.Credentials {
	return tulip.Credentials{
		Auth:      explicitAuth,
		APIKey:    c.APIKey,
		APISecret: c.APISecret,
		EnvAuth:   c.Auth,
	}
}

// ClientConfig converts the settings into a tulip.Config.
func (c *APIConfig) ClientConfig(explicitAuth string) tulip.Config {
	return tulip.Config{
		Instance:    c.Instance,
		UseFullURL:  c.UseFullURL,
		Credentials: c.Credentials(explicitAuth),
		Concurrency: c.Concurrency,
		Timeout:     c.Timeout,
		RateLimit:   c.RateLimit,
	}
}

// Addr returns the emulator listen address in host:port format.
func (c *FakeAPIConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
