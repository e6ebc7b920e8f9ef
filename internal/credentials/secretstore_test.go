package credentials

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	vault "github.com/hashicorp/vault/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSecretReader struct {
	secrets map[string]*vault.Secret
	err     error
	paths   []string
}

func (s *stubSecretReader) ReadWithContext(ctx context.Context, path string) (*vault.Secret, error) {
	s.paths = append(s.paths, path)
	if s.err != nil {
		return nil, s.err
	}
	return s.secrets[path], nil
}

func kv2Secret(key, value string) *vault.Secret {
	return &vault.Secret{Data: map[string]interface{}{
		"data":     map[string]interface{}{key: value},
		"metadata": map[string]interface{}{"version": 1},
	}}
}

func TestSecretStoreResolver(t *testing.T) {
	reader := &stubSecretReader{secrets: map[string]*vault.Secret{
		DefaultSecretPath: kv2Secret(DefaultSecretKey, "dapi-123"),
	}}
	resolver := &SecretStoreResolver{Host: "adb-1.azuredatabricks.net", Reader: reader}

	creds, err := resolver.Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, "https://adb-1.azuredatabricks.net", creds.Host)
	require.Equal(t, "dapi-123", creds.Token.AccessToken)
	require.Equal(t, []string{DefaultSecretPath}, reader.paths)
	require.Equal(t, StrategySecretStore, resolver.Strategy())

	tok, err := creds.TokenSource().Token()
	require.NoError(t, err)
	require.Equal(t, "dapi-123", tok.AccessToken)
}

func TestSecretStoreResolverKVv1(t *testing.T) {
	reader := &stubSecretReader{secrets: map[string]*vault.Secret{
		"secret/governance": {Data: map[string]interface{}{"api-token": " dapi-456 "}},
	}}
	resolver := &SecretStoreResolver{
		Host:   "https://example.cloud.databricks.com/",
		Reader: reader,
		Path:   "/secret/governance/",
		Key:    "api-token",
	}

	creds, err := resolver.Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, "https://example.cloud.databricks.com", creds.Host)
	require.Equal(t, "dapi-456", creds.Token.AccessToken)
}

func TestSecretStoreResolverFailures(t *testing.T) {
	cases := []struct {
		name     string
		resolver *SecretStoreResolver
	}{
		{
			name:     "empty host",
			resolver: &SecretStoreResolver{Host: " ", Reader: &stubSecretReader{secrets: map[string]*vault.Secret{DefaultSecretPath: kv2Secret(DefaultSecretKey, "x")}}},
		},
		{
			name:     "missing secret",
			resolver: &SecretStoreResolver{Host: "h", Reader: &stubSecretReader{}},
		},
		{
			name:     "empty token",
			resolver: &SecretStoreResolver{Host: "h", Reader: &stubSecretReader{secrets: map[string]*vault.Secret{DefaultSecretPath: kv2Secret(DefaultSecretKey, "")}}},
		},
		{
			name:     "wrong key",
			resolver: &SecretStoreResolver{Host: "h", Key: "other", Reader: &stubSecretReader{secrets: map[string]*vault.Secret{DefaultSecretPath: kv2Secret(DefaultSecretKey, "x")}}},
		},
		{
			name:     "reader error",
			resolver: &SecretStoreResolver{Host: "h", Reader: &stubSecretReader{err: errors.New("permission denied")}},
		},
		{
			name:     "no reader",
			resolver: &SecretStoreResolver{Host: "h"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			creds, err := tc.resolver.Resolve(context.Background())
			require.Error(t, err)
			require.Nil(t, creds)
		})
	}
}

func TestVaultReaderAgainstServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/secret/data/enforce-scope", r.URL.Path)
		assert.Equal(t, "root-token", r.Header.Get("X-Vault-Token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"data":{"dbx-token":"dapi-from-vault"},"metadata":{"version":3}}}`))
	}))
	defer server.Close()

	t.Setenv("VAULT_ADDR", "")
	t.Setenv("VAULT_TOKEN", "")

	reader, err := NewVaultReader(VaultConfig{Address: server.URL, Token: "root-token"})
	require.NoError(t, err)

	resolver := &SecretStoreResolver{Host: "workspace.example.com", Reader: reader}
	creds, err := resolver.Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, "dapi-from-vault", creds.Token.AccessToken)
}

func TestNormalizeHost(t *testing.T) {
	cases := map[string]string{
		"":                          "",
		"  ":                        "",
		"adb-1.azuredatabricks.net": "https://adb-1.azuredatabricks.net",
		"https://x.example.com/":    "https://x.example.com",
		"http://localhost:8080//":   "http://localhost:8080",
		" https://y.example.com  ":  "https://y.example.com",
	}
	for input, want := range cases {
		require.Equal(t, want, NormalizeHost(input), "input %q", input)
	}
}
