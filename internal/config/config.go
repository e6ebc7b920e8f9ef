package config

import (
	"time"
)

// Config represents the complete application configuration.
// Values are layered: built-in defaults, then the optional config file,
// then RATEGATE_* environment variables, then command-line flags.
type Config struct {
	Workspace   WorkspaceConfig   `mapstructure:"workspace"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Enforce     EnforceConfig     `mapstructure:"enforce"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Output      OutputConfig      `mapstructure:"output"`
}

// WorkspaceConfig identifies the workspace when it is known from session configuration.
type WorkspaceConfig struct {
	Host string `mapstructure:"host"`
}

// CredentialsConfig selects and configures the credential strategy.
type CredentialsConfig struct {
	// Strategy is one of: secret-store, imds
	Strategy    string            `mapstructure:"strategy" validate:"required,oneof=secret-store imds"`
	SecretStore SecretStoreConfig `mapstructure:"secret_store"`
	IMDS        IMDSConfig        `mapstructure:"imds"`
}

// SecretStoreConfig points at the Vault entry holding the workspace token.
// Empty address and token fall back to VAULT_ADDR and VAULT_TOKEN.
type SecretStoreConfig struct {
	Address   string `mapstructure:"address" validate:"omitempty,url"`
	Token     string `mapstructure:"token"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path" validate:"required"`
	Key       string `mapstructure:"key" validate:"required"`
}

// IMDSConfig configures token acquisition from the instance metadata service.
type IMDSConfig struct {
	Endpoint   string        `mapstructure:"endpoint" validate:"required,url"`
	APIVersion string        `mapstructure:"api_version" validate:"required"`
	Resource   string        `mapstructure:"resource" validate:"required"`
	ClientID   string        `mapstructure:"client_id"`
	HostEnv    string        `mapstructure:"host_env" validate:"required"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// HTTPConfig bounds workspace API calls.
type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// EnforceConfig controls the sweep.
type EnforceConfig struct {
	DryRun  bool     `mapstructure:"dry_run"`
	Exclude []string `mapstructure:"exclude"`
}

// LoggingConfig contains logging configuration.
// Profiles:
// - simple: console output for interactive use
// - structured: JSON lines on stderr for scheduled jobs
type LoggingConfig struct {
	Level   string `mapstructure:"level" validate:"oneof=trace debug info warn warning error"`
	Profile string `mapstructure:"profile" validate:"oneof=simple structured"`
}

// OutputConfig selects how the sweep report is rendered.
type OutputConfig struct {
	Format string `mapstructure:"format" validate:"oneof=table json yaml markdown"`
}
