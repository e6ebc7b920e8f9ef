// Package output renders sweep summaries and endpoint listings.
package output

import (
	"fmt"
	"strings"

	"github.com/rategate/rategate/internal/enforce"
	"github.com/rategate/rategate/internal/serving"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
)

// Formatter renders sweep results.
type Formatter interface {
	FormatSummary(summary *enforce.Summary) (string, error)
	FormatEndpoints(endpoints []serving.Endpoint) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatYAML), "yml":
		return FormatYAML, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatYAML:
		return &YAMLFormatter{}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

// Extension returns the file extension conventionally used for format.
func Extension(format Format) string {
	switch format {
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	case FormatMarkdown:
		return "md"
	default:
		return "txt"
	}
}

func formatLimits(limits []serving.RateLimit) string {
	if len(limits) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(limits))
	for _, limit := range limits {
		part := fmt.Sprintf("%s=%d", limit.Key, limit.Calls)
		if limit.RenewalPeriod != "" {
			part += "/" + limit.RenewalPeriod
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, ", ")
}

func resultDetail(r enforce.Result) string {
	switch {
	case r.Error != "":
		return r.Error
	case r.Reason != "":
		return r.Reason
	default:
		return formatLimits(r.Before)
	}
}

func complianceLabel(endpoint serving.Endpoint) string {
	if endpoint.Compliant() {
		return "compliant"
	}
	return "open"
}

func summaryLine(summary *enforce.Summary) string {
	line := fmt.Sprintf("%d updated, %d skipped, %d failed", summary.Updated, summary.Skipped, summary.Failed)
	if summary.DryRun || summary.Planned > 0 {
		line += fmt.Sprintf(", %d planned", summary.Planned)
	}
	return fmt.Sprintf("%s (%d total)", line, summary.Total)
}
