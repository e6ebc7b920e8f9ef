// Package config provides centralized configuration management for rategate.
// It layers built-in defaults, an optional YAML config file, an optional
// .env file, RATEGATE_* environment variables, and flag overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// AppName names the binary and the XDG config directory.
	AppName = "rategate"

	// EnvPrefix is prepended to every environment override.
	EnvPrefix = "RATEGATE"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Configure prepares v for the layered lookup: env prefix, key replacer and defaults.
func Configure(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
}

// SetDefaults sets default configuration values.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("workspace.host", "")

	v.SetDefault("credentials.strategy", "secret-store")
	v.SetDefault("credentials.secret_store.address", "")
	v.SetDefault("credentials.secret_store.token", "")
	v.SetDefault("credentials.secret_store.namespace", "")
	v.SetDefault("credentials.secret_store.path", "secret/data/enforce-scope")
	v.SetDefault("credentials.secret_store.key", "dbx-token")
	v.SetDefault("credentials.imds.endpoint", "http://169.254.169.254/metadata/identity/oauth2/token")
	v.SetDefault("credentials.imds.api_version", "2018-02-01")
	v.SetDefault("credentials.imds.resource", "2ff814a6-3304-4ab8-85cb-cd0e6f879c1d")
	v.SetDefault("credentials.imds.client_id", "")
	v.SetDefault("credentials.imds.host_env", "DATABRICKS_HOST")
	v.SetDefault("credentials.imds.timeout", "10s")

	v.SetDefault("http.timeout", "30s")

	v.SetDefault("enforce.dry_run", false)
	v.SetDefault("enforce.exclude", []string{})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "simple")

	v.SetDefault("output.format", "table")
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// Variables already set are left untouched. A missing default .env is not an error.
func LoadEnvFile(path string, required bool) error {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		trimmed = ".env"
	}
	if err := godotenv.Load(trimmed); err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", trimmed, err)
	}
	return nil
}

// Load decodes and validates the configuration held by v.
// A nil v reads the global viper instance.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.GetViper()
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	normalize(cfg)

	if err := getValidator().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	dir := gfconfig.GetAppConfigDir(AppName)
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

func normalize(cfg *Config) {
	cfg.Workspace.Host = strings.TrimSpace(cfg.Workspace.Host)
	cfg.Credentials.Strategy = strings.ToLower(strings.TrimSpace(cfg.Credentials.Strategy))
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	cfg.Logging.Profile = strings.ToLower(strings.TrimSpace(cfg.Logging.Profile))
	cfg.Output.Format = strings.ToLower(strings.TrimSpace(cfg.Output.Format))

	exclude := make([]string, 0, len(cfg.Enforce.Exclude))
	seen := make(map[string]struct{}, len(cfg.Enforce.Exclude))
	for _, name := range cfg.Enforce.Exclude {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		exclude = append(exclude, name)
	}
	cfg.Enforce.Exclude = exclude
}

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}
