// Package server provides configuration helpers that define runtime defaults,
// validation, and security parameters for the Nexus chat service.
package server

import (
	"errors"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the server configuration settings including security controls.
type Config struct {
	Port           string        `envconfig:"SERVER_PORT" default:":8080"`
	Environment    string        `envconfig:"ENVIRONMENT" default:"development"`
	AllowedOrigins []string      `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`
	JWTSecret      string        `envconfig:"JWT_SECRET"`
	TokenTTL       time.Duration `envconfig:"TOKEN_TTL" default:"24h"`
	MaxMessageSize int64         `envconfig:"MAX_MESSAGE_SIZE" default:"4096"`
	BcryptCost     int           `envconfig:"BCRYPT_COST" default:"10"`
}

// ErrMissingSecret is returned by Validate when no signing secret is
// configured. It is the only configuration error that is fatal at startup.
var ErrMissingSecret = errors.New("JWT_SECRET must be set")

var (
	configMu        sync.RWMutex
	activeConfig    Config
	allowedOrigins  map[string]struct{}
	allowAllOrigins bool
)

func init() {
	SetConfig(nil)
}

func defaultConfig() Config {
	return Config{
		Port:           ":8080",
		Environment:    "development",
		AllowedOrigins: []string{"http://localhost:3000"},
		TokenTTL:       24 * time.Hour,
		MaxMessageSize: 4096,
		BcryptCost:     10,
	}
}

func sanitizeConfig(cfg Config) Config {
	if cfg.Port == "" {
		cfg.Port = ":8080"
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 4096
	}

	if cfg.BcryptCost <= 0 {
		cfg.BcryptCost = 10
	}

	normalizedOrigins, allowAll := normalizeOrigins(cfg.AllowedOrigins)
	cfg.AllowedOrigins = normalizedOrigins

	configMu.Lock()
	defer configMu.Unlock()

	activeConfig = cfg
	allowAllOrigins = allowAll
	allowedOrigins = make(map[string]struct{}, len(normalizedOrigins))
	for _, origin := range normalizedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	return cfg
}

// SetConfig applies the provided configuration. Passing nil resets to defaults.
func SetConfig(cfg *Config) {
	if cfg == nil {
		defaultCfg := defaultConfig()
		sanitizeConfig(defaultCfg)
		return
	}

	sanitized := Config{
		Port:           cfg.Port,
		Environment:    cfg.Environment,
		AllowedOrigins: append([]string(nil), cfg.AllowedOrigins...),
		JWTSecret:      cfg.JWTSecret,
		TokenTTL:       cfg.TokenTTL,
		MaxMessageSize: cfg.MaxMessageSize,
		BcryptCost:     cfg.BcryptCost,
	}
	sanitizeConfig(sanitized)
}

func currentConfig() Config {
	configMu.RLock()
	defer configMu.RUnlock()

	cfg := activeConfig
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Unset variables fall back to their defaults.
func NewConfigFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports configuration errors that must stop the server from
// starting. Credential and token handling cannot work without a secret.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return ErrMissingSecret
	}
	return nil
}

// IsDevelopment reports whether the server runs in a development environment,
// which relaxes the Secure flag on the token cookie.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
