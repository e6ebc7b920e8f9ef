package output

import (
	"encoding/json"

	"github.com/rategate/rategate/internal/enforce"
	"github.com/rategate/rategate/internal/serving"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatSummary renders a sweep summary as JSON.
func (f *JSONFormatter) FormatSummary(summary *enforce.Summary) (string, error) {
	if summary == nil {
		return "", nil
	}
	return f.marshal(summary)
}

// FormatEndpoints renders an endpoint listing as JSON.
func (f *JSONFormatter) FormatEndpoints(endpoints []serving.Endpoint) (string, error) {
	if endpoints == nil {
		endpoints = []serving.Endpoint{}
	}
	return f.marshal(endpoints)
}

func (f *JSONFormatter) marshal(value any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(value, "", "  ")
	} else {
		data, err = json.Marshal(value)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
