package serving

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"})
	return NewClient(context.Background(), server.URL, src, 5*time.Second)
}

func TestListEndpoints(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/2.0/serving-endpoints", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"endpoints":[
			{"name":"locked","state":{"ready":"READY"},"config":{"rate_limits":[{"key":"user","calls":0,"renewal_period":"minute"}]}},
			{"name":"open","state":{"ready":"NOT_READY"},"config":{"served_entities":[]}},
			{"name":"legacy","rate_limits":[{"key":"endpoint","calls":100}]},
			{"state":{"ready":"READY"}}
		]}`))
	})

	endpoints, err := client.ListEndpoints(context.Background())
	require.NoError(t, err)
	require.Len(t, endpoints, 3)

	require.Equal(t, "locked", endpoints[0].Name)
	require.Equal(t, "READY", endpoints[0].State)
	require.Equal(t, []RateLimit{{Key: "user", Calls: 0, RenewalPeriod: "minute"}}, endpoints[0].RateLimits)
	require.True(t, endpoints[0].Compliant())

	require.Equal(t, "open", endpoints[1].Name)
	require.Empty(t, endpoints[1].RateLimits)
	require.False(t, endpoints[1].Compliant())

	require.Equal(t, "legacy", endpoints[2].Name)
	require.Equal(t, []RateLimit{{Key: "endpoint", Calls: 100}}, endpoints[2].RateLimits)
}

func TestListEndpointsEmptyWorkspace(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	endpoints, err := client.ListEndpoints(context.Background())
	require.NoError(t, err)
	require.Empty(t, endpoints)
}

func TestListEndpointsRejectsNonJSONBody(t *testing.T) {
	bodies := map[string]string{
		"login page": "<html>login</html>",
		"empty":      "",
		"array":      `[{"name":"a"}]`,
		"bad field":  `{"endpoints":"none"}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				_, _ = w.Write([]byte(body))
			})

			endpoints, err := client.ListEndpoints(context.Background())
			require.Error(t, err)
			require.Nil(t, endpoints)
			require.Contains(t, err.Error(), "decode response")
		})
	}
}

func TestListEndpointsNonSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error_code":"PERMISSION_DENIED","message":"token lacks workspace access"}`))
	})

	_, err := client.ListEndpoints(context.Background())
	require.Error(t, err)
	require.Equal(t, http.StatusForbidden, StatusCode(err))
	require.Contains(t, err.Error(), "token lacks workspace access")
}

func TestPatchRateLimits(t *testing.T) {
	var gotBody string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/2.0/serving-endpoints/my-model/config", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		gotBody = string(body)
		w.WriteHeader(http.StatusCreated)
	})

	err := client.PatchRateLimits(context.Background(), "my-model", ZeroUserLimit())
	require.NoError(t, err)
	require.JSONEq(t, `{"rate_limits":[{"key":"user","calls":0}]}`, gotBody)
}

func TestPatchRateLimitsRejectsOtherSuccessCodes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	err := client.PatchRateLimits(context.Background(), "my-model", ZeroUserLimit())
	require.Error(t, err)
	require.Equal(t, http.StatusAccepted, StatusCode(err))
}

func TestPatchRateLimitsRequiresName(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
	})

	err := client.PatchRateLimits(context.Background(), "  ", ZeroUserLimit())
	require.Error(t, err)
}

func TestCompliant(t *testing.T) {
	cases := []struct {
		name   string
		limits []RateLimit
		want   bool
	}{
		{"no limits", nil, false},
		{"zero user", []RateLimit{{Key: "user", Calls: 0}}, true},
		{"nonzero user", []RateLimit{{Key: "user", Calls: 10}}, false},
		{"zero endpoint only", []RateLimit{{Key: "endpoint", Calls: 0}}, false},
		{"mixed", []RateLimit{{Key: "endpoint", Calls: 50}, {Key: "user", Calls: 0}}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Endpoint{Name: "x", RateLimits: tc.limits}.Compliant())
		})
	}
}

func TestPatchRateLimitsCapturesRetryAfter(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error_code":"REQUEST_LIMIT_EXCEEDED"}`))
	})

	err := client.PatchRateLimits(context.Background(), "chat", ZeroUserLimit())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	require.Equal(t, "REQUEST_LIMIT_EXCEEDED", apiErr.Message)
	require.Equal(t, 30*time.Second, apiErr.RetryAfter)
}

func TestCompliantDecodedCalls(t *testing.T) {
	cases := []struct {
		name  string
		calls string
		want  bool
	}{
		{"number zero", `0`, true},
		{"string zero", `"0"`, true},
		{"null", `null`, false},
		{"word", `"unlimited"`, false},
		{"fraction", `0.5`, false},
		{"boolean", `false`, false},
		{"missing", ``, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entry := `{"key":"user"}`
			if tc.calls != "" {
				entry = `{"key":"user","calls":` + tc.calls + `}`
			}
			body := `{"endpoints":[{"name":"a","config":{"rate_limits":[` + entry + `]}}]}`

			endpoints, err := parseEndpoints([]byte(body))
			require.NoError(t, err)
			require.Len(t, endpoints, 1)
			require.Equal(t, tc.want, endpoints[0].Compliant())
		})
	}
}
