package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/mie-tools/mie/internal/quality"
	"github.com/mie-tools/mie/internal/rewrite"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App   ApplicationConfig `yaml:"app"`
	Embed EmbedConfig       `yaml:"embed"`
	Auth  AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Embed.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration for serve mode.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// EmbedConfig holds the embedding pipeline parameters.
//
// Quality is deliberately not validated here: an out-of-range scale is
// corrected to the default with a logged warning instead of failing
// the run.
type EmbedConfig struct {
	Quality             int    `yaml:"quality"`
	MaxSizeMB           int    `yaml:"max_size_mb"`
	MaxWidth            int    `yaml:"max_width"`
	MaxHeight           int    `yaml:"max_height"`
	BasePath            string `yaml:"base_path"`
	Yarle               bool   `yaml:"yarle"`
	Concurrency         int    `yaml:"concurrency"`
	FetchTimeoutSeconds int    `yaml:"fetch_timeout_seconds"`
}

// Validate validates the embed configuration.
func (c *EmbedConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxSizeMB, validation.Min(0)),
		validation.Field(&c.MaxWidth, validation.Min(0)),
		validation.Field(&c.MaxHeight, validation.Min(0)),
		validation.Field(&c.Concurrency, validation.Min(0)),
		validation.Field(&c.FetchTimeoutSeconds, validation.Min(0)),
	)
}

// Options converts the embed configuration into rewriter options.
// basePath overrides the configured base path when non-empty.
func (c *EmbedConfig) Options(basePath string) rewrite.Options {
	if basePath == "" {
		basePath = c.BasePath
	}
	return rewrite.Options{
		QualityScale: c.Quality,
		MaxSizeMB:    c.MaxSizeMB,
		MaxWidth:     c.MaxWidth,
		MaxHeight:    c.MaxHeight,
		BasePath:     basePath,
		YarleMode:    c.Yarle,
		Concurrency:  c.Concurrency,
		FetchTimeout: time.Duration(c.FetchTimeoutSeconds) * time.Second,
	}
}

// AuthConfig holds authentication configuration for serve mode.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelWarn,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Embed: EmbedConfig{
			Quality:             quality.DefaultScale,
			MaxSizeMB:           rewrite.DefaultMaxSizeMB,
			Concurrency:         rewrite.DefaultConcurrency,
			FetchTimeoutSeconds: 30,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
