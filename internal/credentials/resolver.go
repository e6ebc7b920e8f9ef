// Package credentials resolves the workspace host and bearer token used for a sweep.
package credentials

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2"

	"github.com/rategate/rategate/internal/config"
)

// Strategy names a credential resolution variant.
type Strategy string

const (
	StrategySecretStore Strategy = "secret-store"
	StrategyIMDS        Strategy = "imds"
)

// Credentials identify a workspace and authorize calls against it.
type Credentials struct {
	Host  string
	Token *oauth2.Token
}

// TokenSource returns a static source over the resolved token.
func (c *Credentials) TokenSource() oauth2.TokenSource {
	if c == nil || c.Token == nil {
		return oauth2.StaticTokenSource(&oauth2.Token{})
	}
	return oauth2.StaticTokenSource(c.Token)
}

// Resolver produces credentials for a workspace.
type Resolver interface {
	Resolve(ctx context.Context) (*Credentials, error)
	Strategy() Strategy
}

// ParseStrategy normalizes a strategy name.
func ParseStrategy(value string) (Strategy, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(StrategySecretStore):
		return StrategySecretStore, nil
	case string(StrategyIMDS):
		return StrategyIMDS, nil
	default:
		return "", fmt.Errorf("unsupported credential strategy: %s", value)
	}
}

// NormalizeHost turns a bare workspace hostname into an https URL without a trailing slash.
func NormalizeHost(host string) string {
	trimmed := strings.TrimSpace(host)
	if trimmed == "" {
		return ""
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	return strings.TrimRight(trimmed, "/")
}

// NewResolver builds the resolver selected by cfg.Credentials.Strategy.
func NewResolver(cfg *config.Config) (Resolver, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config not loaded")
	}

	strategy, err := ParseStrategy(cfg.Credentials.Strategy)
	if err != nil {
		return nil, err
	}

	switch strategy {
	case StrategyIMDS:
		imds := cfg.Credentials.IMDS
		return &IMDSResolver{
			Endpoint:   imds.Endpoint,
			APIVersion: imds.APIVersion,
			Resource:   imds.Resource,
			ClientID:   imds.ClientID,
			HostEnv:    imds.HostEnv,
			Timeout:    imds.Timeout,
		}, nil
	default:
		store := cfg.Credentials.SecretStore
		reader, err := NewVaultReader(VaultConfig{
			Address:   store.Address,
			Token:     store.Token,
			Namespace: store.Namespace,
		})
		if err != nil {
			return nil, err
		}
		return &SecretStoreResolver{
			Host:   cfg.Workspace.Host,
			Reader: reader,
			Path:   store.Path,
			Key:    store.Key,
		}, nil
	}
}
