package boltfs

import (
	"fmt"
	"strings"
	"time"
)

// Config holds configuration for the provider fallback chain. The chain
// order itself is fixed (remote-cloud -> embedded-runtime -> local);
// configuration only gates which providers are attempted and how long
// each probe may take.
type Config struct {
	// Bucket is the remote workspace bucket name
	Bucket string `mapstructure:"bucket" yaml:"bucket"`

	// Region is the remote provider region (e.g., "us-west-2")
	Region string `mapstructure:"region" yaml:"region" default:"us-east-1"`

	// Endpoint is a custom remote endpoint URL (for MinIO, etc.)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// UsePathStyle forces path-style addressing (true for MinIO)
	UsePathStyle bool `mapstructure:"use_path_style" yaml:"use_path_style" default:"false"`

	// AccessKey is the remote provider access key. Absence of the pair
	// skips the remote provider without a connection attempt.
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`

	// SecretKey is the remote provider secret key
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`

	// SessionToken is the temporary session token (optional)
	SessionToken string `mapstructure:"session_token" yaml:"session_token"`

	// RoleARN optionally specifies an ARN to assume via STS using the
	// static credentials as the source.
	RoleARN string `mapstructure:"role_arn" yaml:"role_arn"`

	// ExternalID is passed to STS AssumeRole when RoleARN is used
	ExternalID string `mapstructure:"external_id" yaml:"external_id"`

	// WorkspaceID scopes all remote keys to one workspace namespace.
	// Empty means a fresh workspace ID is generated per session.
	WorkspaceID string `mapstructure:"workspace_id" yaml:"workspace_id"`

	// DisableSSL disables SSL for remote connections (development only)
	DisableSSL bool `mapstructure:"disable_ssl" yaml:"disable_ssl" default:"false"`

	// RuntimeEnabled gates the embedded-runtime provider
	RuntimeEnabled bool `mapstructure:"runtime_enabled" yaml:"runtime_enabled" default:"true"`

	// InitTimeout bounds each provider probe during Initialize
	InitTimeout time.Duration `mapstructure:"init_timeout" yaml:"init_timeout" default:"10s"`

	// RequestTimeout is the timeout for individual remote requests
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout" default:"30s"`

	// MaxRetries is the maximum number of remote retry attempts
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries" default:"3"`

	// BackoffInitial is the initial retry backoff delay
	BackoffInitial time.Duration `mapstructure:"backoff_initial" yaml:"backoff_initial" default:"200ms"`

	// BackoffMax is the maximum retry backoff delay
	BackoffMax time.Duration `mapstructure:"backoff_max" yaml:"backoff_max" default:"5s"`

	// SearchResultLimit caps emitted matches when SearchOptions.MaxResults
	// is unset
	SearchResultLimit int `mapstructure:"search_result_limit" yaml:"search_result_limit" default:"500"`

	// EnableLogging enables detailed operation logging
	EnableLogging bool `mapstructure:"enable_logging" yaml:"enable_logging" default:"false"`
}

// Prefix implements configx.Configurable and returns the configuration prefix
func (Config) Prefix() string { return "boltfs" }

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Region:            "us-east-1",
		RuntimeEnabled:    true,
		InitTimeout:       10 * time.Second,
		RequestTimeout:    30 * time.Second,
		MaxRetries:        3,
		BackoffInitial:    200 * time.Millisecond,
		BackoffMax:        5 * time.Second,
		SearchResultLimit: 500,
	}
}

// HasRemoteCredentials reports whether the remote provider should be
// attempted at all. Absence causes immediate progression to the next
// provider in the chain.
func (c *Config) HasRemoteCredentials() bool {
	return c != nil && c.AccessKey != "" && c.SecretKey != ""
}

// GetEndpointURL returns the full remote endpoint URL
func (c *Config) GetEndpointURL() string {
	if c.Endpoint == "" {
		return ""
	}

	if strings.HasPrefix(c.Endpoint, "http://") || strings.HasPrefix(c.Endpoint, "https://") {
		return c.Endpoint
	}

	scheme := "https"
	if c.DisableSSL {
		scheme = "http"
	}

	return fmt.Sprintf("%s://%s", scheme, c.Endpoint)
}

// Sanitize implements logx.Sanitizable and returns a copy safe for
// structured logging with secrets redacted.
func (c *Config) Sanitize() any {
	if c == nil {
		return (*Config)(nil)
	}

	sanitized := *c
	if sanitized.AccessKey != "" {
		sanitized.AccessKey = "[redacted]"
	}
	if sanitized.SecretKey != "" {
		sanitized.SecretKey = "[redacted]"
	}
	if sanitized.SessionToken != "" {
		sanitized.SessionToken = "[redacted]"
	}
	if sanitized.ExternalID != "" {
		sanitized.ExternalID = "[redacted]"
	}
	return &sanitized
}

// String returns a safe string representation (redacts secrets)
func (c *Config) String() string {
	return fmt.Sprintf("Config{Bucket:%s, Region:%s, Endpoint:%s, RuntimeEnabled:%v, HasCredentials:%v}",
		c.Bucket, c.Region, c.Endpoint, c.RuntimeEnabled, c.HasRemoteCredentials())
}

// NewConfigFromLoader creates a Config using the standard configx.Loader
// pattern. Useful for standalone usage without FX dependency injection;
// FX applications get NewConfig from the Module.
func NewConfigFromLoader(loader interface {
	Bind(any) error
}) (*Config, error) {
	cfg := DefaultConfig()
	if err := loader.Bind(cfg); err != nil {
		return nil, err
	}

	cfg = cfg.Normalize()
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
