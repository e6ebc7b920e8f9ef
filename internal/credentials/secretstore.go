package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	vault "github.com/hashicorp/vault/api"
	"golang.org/x/oauth2"
)

const (
	DefaultSecretPath = "secret/data/enforce-scope"
	DefaultSecretKey  = "dbx-token"
)

// SecretReader reads a secret at a logical path.
type SecretReader interface {
	ReadWithContext(ctx context.Context, path string) (*vault.Secret, error)
}

// SecretStoreResolver takes the host from session configuration and the API
// token from a named secret-store entry.
type SecretStoreResolver struct {
	Host   string
	Reader SecretReader
	Path   string
	Key    string
}

// VaultConfig configures the secret-store connection.
type VaultConfig struct {
	Address   string
	Token     string
	Namespace string
}

// NewVaultReader returns a Vault logical reader. Empty fields fall back to the
// standard VAULT_* environment variables.
func NewVaultReader(cfg VaultConfig) (SecretReader, error) {
	vc := vault.DefaultConfig()
	if vc.Error != nil {
		return nil, fmt.Errorf("vault config: %w", vc.Error)
	}
	if addr := strings.TrimSpace(cfg.Address); addr != "" {
		vc.Address = addr
	}

	client, err := vault.NewClient(vc)
	if err != nil {
		return nil, fmt.Errorf("vault client: %w", err)
	}
	if token := strings.TrimSpace(cfg.Token); token != "" {
		client.SetToken(token)
	}
	if ns := strings.TrimSpace(cfg.Namespace); ns != "" {
		client.SetNamespace(ns)
	}
	return client.Logical(), nil
}

// Strategy returns StrategySecretStore.
func (r *SecretStoreResolver) Strategy() Strategy {
	return StrategySecretStore
}

// Resolve reads the host and secret token.
func (r *SecretStoreResolver) Resolve(ctx context.Context) (*Credentials, error) {
	if r == nil || r.Reader == nil {
		return nil, errors.New("secret store resolver is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	host := NormalizeHost(r.Host)
	if host == "" {
		return nil, errors.New("unable to retrieve workspace url from configuration")
	}

	path := strings.Trim(strings.TrimSpace(r.Path), "/")
	if path == "" {
		path = DefaultSecretPath
	}
	key := strings.TrimSpace(r.Key)
	if key == "" {
		key = DefaultSecretKey
	}

	secret, err := r.Reader.ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("read secret %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("secret %s not found", path)
	}

	token := secretValue(secret.Data, key)
	if token == "" {
		return nil, fmt.Errorf("unable to retrieve token from secret %s key %s", path, key)
	}

	return &Credentials{
		Host:  host,
		Token: &oauth2.Token{AccessToken: token, TokenType: "Bearer"},
	}, nil
}

// secretValue looks up key in a KV v2 payload first, then KV v1.
func secretValue(data map[string]interface{}, key string) string {
	if nested, ok := data["data"].(map[string]interface{}); ok {
		if value, ok := nested[key].(string); ok {
			return strings.TrimSpace(value)
		}
	}
	if value, ok := data[key].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}
