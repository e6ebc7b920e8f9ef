package output

import (
	"gopkg.in/yaml.v3"

	"github.com/rategate/rategate/internal/enforce"
	"github.com/rategate/rategate/internal/serving"
)

// YAMLFormatter renders results as YAML.
type YAMLFormatter struct{}

// FormatSummary renders a sweep summary as YAML.
func (f *YAMLFormatter) FormatSummary(summary *enforce.Summary) (string, error) {
	if summary == nil {
		return "", nil
	}
	data, err := yaml.Marshal(summary)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FormatEndpoints renders an endpoint listing as YAML.
func (f *YAMLFormatter) FormatEndpoints(endpoints []serving.Endpoint) (string, error) {
	data, err := yaml.Marshal(map[string][]serving.Endpoint{"endpoints": endpoints})
	if err != nil {
		return "", err
	}
	return string(data), nil
}
