package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for terrasurvey-auth.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"0.0.0.0"`
	Port     string `yaml:"port" env:"PORT" env-default:"3002"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// MaxBodyBytes caps uploaded form definitions (XLSX files can be large).
	MaxBodyBytes int64 `yaml:"max_body_bytes" env:"MAX_BODY_BYTES" env-default:"52428800"`

	Auth    AuthConfig    `yaml:"auth"`
	Admin   AdminConfig   `yaml:"admin"`
	Mongo   MongoConfig   `yaml:"mongo"`
	Central CentralConfig `yaml:"central"`
}

// AuthConfig holds token-issuance configuration.
type AuthConfig struct {
	// TokenSecret signs HS256 session tokens. Server refuses to start without it.
	TokenSecret string `yaml:"-" env:"TOKEN_SECRET"` // Secret - not in YAML

	// TokenTTLMinutes is how long issued tokens stay valid.
	TokenTTLMinutes int `yaml:"token_ttl_minutes" env:"TOKEN_TTL_MINUTES" env-default:"60"`
}

// TokenTTL returns the token lifetime as a duration.
func (c *AuthConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

// AdminConfig holds the bootstrap administrator account credentials.
// The account is upserted on startup and resynced against every project/form.
type AdminConfig struct {
	Email    string `yaml:"admin_email" env:"ADMIN_EMAIL" env-default:""`
	Password string `yaml:"-" env:"ADMIN_PASSWORD"` // Secret - not in YAML
}

// MongoConfig holds document store configuration.
type MongoConfig struct {
	URI      string `yaml:"uri" env:"MONGO_URI" env-default:"mongodb://localhost:27017"`
	Database string `yaml:"database" env:"MONGO_DATABASE" env-default:"terrasurvey"`

	// ConnectTimeoutSeconds bounds each connection attempt; startup retries
	// around it with backoff.
	ConnectTimeoutSeconds int `yaml:"connect_timeout_seconds" env:"MONGO_CONNECT_TIMEOUT_SECONDS" env-default:"10"`
}

// ConnectTimeout returns the per-attempt connection timeout as a duration.
func (c *MongoConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}

// CentralConfig holds the connection settings for the Central forms server,
// the external system of record for form definitions and submissions.
type CentralConfig struct {
	URL      string `yaml:"url" env:"CENTRAL_URL" env-default:""`
	Email    string `yaml:"email" env:"CENTRAL_EMAIL" env-default:""`
	Password string `yaml:"-" env:"CENTRAL_PASSWORD"` // Secret - not in YAML
}

// Load reads configuration from config.yaml with environment variable
// overrides, or from the environment alone when no config.yaml exists.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment config: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.TokenSecret == "" {
		return fmt.Errorf("TOKEN_SECRET must be set")
	}
	if c.Central.URL == "" {
		return fmt.Errorf("CENTRAL_URL must be set")
	}
	if c.Admin.Email != "" && c.Admin.Password == "" {
		return fmt.Errorf("ADMIN_PASSWORD must be set when ADMIN_EMAIL is configured")
	}
	return nil
}

// IsLocal returns true when running in the local development environment.
func (c *Config) IsLocal() bool {
	return c.Env == "local"
}
