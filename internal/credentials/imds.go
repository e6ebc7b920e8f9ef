package credentials

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

const (
	DefaultIMDSEndpoint   = "http://169.254.169.254/metadata/identity/oauth2/token"
	DefaultIMDSAPIVersion = "2018-02-01"
	// DefaultIMDSResource is the well-known application ID of the serving platform.
	DefaultIMDSResource = "2ff814a6-3304-4ab8-85cb-cd0e6f879c1d"
	DefaultHostEnv      = "DATABRICKS_HOST"
	DefaultIMDSTimeout  = 10 * time.Second
)

// IMDSResolver takes the host from an environment variable and the token from
// the cloud instance metadata service.
type IMDSResolver struct {
	Endpoint   string
	APIVersion string
	Resource   string
	ClientID   string
	HostEnv    string
	Timeout    time.Duration
	Client     *http.Client
	LookupEnv  func(string) (string, bool)
}

// Strategy returns StrategyIMDS.
func (r *IMDSResolver) Strategy() Strategy {
	return StrategyIMDS
}

// Resolve reads the host from the environment and requests a token.
func (r *IMDSResolver) Resolve(ctx context.Context) (*Credentials, error) {
	if r == nil {
		return nil, errors.New("imds resolver is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	hostEnv := strings.TrimSpace(r.HostEnv)
	if hostEnv == "" {
		hostEnv = DefaultHostEnv
	}
	raw, _ := r.lookupEnv(hostEnv)
	host := NormalizeHost(raw)
	if host == "" {
		return nil, fmt.Errorf("workspace url not set in %s", hostEnv)
	}

	token, err := r.fetchToken(ctx)
	if err != nil {
		return nil, err
	}

	return &Credentials{Host: host, Token: token}, nil
}

func (r *IMDSResolver) fetchToken(ctx context.Context) (*oauth2.Token, error) {
	endpoint := strings.TrimSpace(r.Endpoint)
	if endpoint == "" {
		endpoint = DefaultIMDSEndpoint
	}
	reqURL, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse imds endpoint: %w", err)
	}

	query := reqURL.Query()
	query.Set("api-version", valueOr(r.APIVersion, DefaultIMDSAPIVersion))
	query.Set("resource", valueOr(r.Resource, DefaultIMDSResource))
	if clientID := strings.TrimSpace(r.ClientID); clientID != "" {
		query.Set("client_id", clientID)
	}
	reqURL.RawQuery = query.Encode()

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultIMDSTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Metadata", "true")

	client := r.Client
	if client == nil {
		client = cleanhttp.DefaultClient()
		client.Timeout = timeout
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("imds token request: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("imds token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := gjson.GetBytes(body, "error_description").String()
		if msg == "" {
			msg = gjson.GetBytes(body, "error").String()
		}
		if msg != "" {
			return nil, fmt.Errorf("imds token request failed: status %d: %s", resp.StatusCode, msg)
		}
		return nil, fmt.Errorf("imds token request failed: status %d", resp.StatusCode)
	}

	accessToken := gjson.GetBytes(body, "access_token").String()
	if accessToken == "" {
		return nil, errors.New("imds response missing access_token")
	}

	token := &oauth2.Token{
		AccessToken: accessToken,
		TokenType:   valueOr(gjson.GetBytes(body, "token_type").String(), "Bearer"),
	}
	// expires_on arrives as a quoted unix timestamp
	if expiresOn := gjson.GetBytes(body, "expires_on").Int(); expiresOn > 0 {
		token.Expiry = time.Unix(expiresOn, 0).UTC()
	}
	return token, nil
}

func (r *IMDSResolver) lookupEnv(key string) (string, bool) {
	if r.LookupEnv != nil {
		return r.LookupEnv(key)
	}
	return os.LookupEnv(key)
}

func valueOr(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
