package serving

import (
	"errors"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// UserLimitKey is the rate limit key that applies per calling user.
const UserLimitKey = "user"

// RateLimit is a per-key request quota attached to an endpoint.
type RateLimit struct {
	Key           string `json:"key" yaml:"key"`
	Calls         int64  `json:"calls" yaml:"calls"`
	RenewalPeriod string `json:"renewal_period,omitempty" yaml:"renewal_period,omitempty"`
}

// Endpoint is a serving endpoint as reported by the workspace API.
type Endpoint struct {
	Name       string      `json:"name" yaml:"name"`
	State      string      `json:"state,omitempty" yaml:"state,omitempty"`
	RateLimits []RateLimit `json:"rate_limits" yaml:"rate_limits"`
}

// ZeroUserLimit returns the rate limit set that blocks per-user invocation.
func ZeroUserLimit() []RateLimit {
	return []RateLimit{{Key: UserLimitKey, Calls: 0}}
}

// Compliant reports whether the endpoint already carries a zero-call user limit.
func (e Endpoint) Compliant() bool {
	for _, limit := range e.RateLimits {
		if limit.Key == UserLimitKey && limit.Calls == 0 {
			return true
		}
	}
	return false
}

// parseEndpoints decodes the list response.
// Response format: { "endpoints": [ { "name": "...", "state": { "ready": "READY" }, "config": { "rate_limits": [ { "key": "user", "calls": 0 } ] } } ] }
// A JSON object without "endpoints" is an empty workspace; anything that is not
// a JSON object is an error.
func parseEndpoints(body []byte) ([]Endpoint, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("response body is not valid JSON")
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, errors.New("response body is not a JSON object")
	}

	items := root.Get("endpoints")
	if !items.Exists() || items.Type == gjson.Null {
		return []Endpoint{}, nil
	}
	if !items.IsArray() {
		return nil, errors.New(`"endpoints" is not an array`)
	}

	endpoints := make([]Endpoint, 0, len(items.Array()))
	items.ForEach(func(_, value gjson.Result) bool {
		endpoint, ok := parseEndpoint(value)
		if ok {
			endpoints = append(endpoints, endpoint)
		}
		return true
	})
	return endpoints, nil
}

func parseEndpoint(value gjson.Result) (Endpoint, bool) {
	name := value.Get("name").String()
	if name == "" {
		return Endpoint{}, false
	}

	endpoint := Endpoint{Name: name}

	// state is an object on current API versions and a plain string on older ones
	state := value.Get("state")
	if state.IsObject() {
		endpoint.State = state.Get("ready").String()
	} else {
		endpoint.State = state.String()
	}

	limits := value.Get("config.rate_limits")
	if !limits.Exists() {
		limits = value.Get("rate_limits")
	}
	endpoint.RateLimits = parseRateLimits(limits)

	return endpoint, true
}

func parseRateLimits(value gjson.Result) []RateLimit {
	if !value.IsArray() {
		return nil
	}

	limits := make([]RateLimit, 0, len(value.Array()))
	value.ForEach(func(_, item gjson.Result) bool {
		calls, ok := parseCalls(item.Get("calls"))
		if !ok {
			return true
		}
		limits = append(limits, RateLimit{
			Key:           item.Get("key").String(),
			Calls:         calls,
			RenewalPeriod: item.Get("renewal_period").String(),
		})
		return true
	})
	return limits
}

// parseCalls accepts integral numbers and integer strings only. null, booleans,
// fractions and words like "unlimited" are rejected so they never read as zero.
func parseCalls(value gjson.Result) (int64, bool) {
	switch value.Type {
	case gjson.Number:
		calls, err := strconv.ParseInt(strings.TrimSpace(value.Raw), 10, 64)
		return calls, err == nil
	case gjson.String:
		calls, err := strconv.ParseInt(strings.TrimSpace(value.Str), 10, 64)
		return calls, err == nil
	default:
		return 0, false
	}
}
