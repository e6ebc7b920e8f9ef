package output

import (
	"fmt"
	"strings"

	"github.com/rategate/rategate/internal/enforce"
	"github.com/rategate/rategate/internal/serving"
)

// MarkdownFormatter renders results as a markdown table.
type MarkdownFormatter struct{}

// FormatSummary renders a sweep summary as Markdown.
func (f *MarkdownFormatter) FormatSummary(summary *enforce.Summary) (string, error) {
	if summary == nil {
		return "", nil
	}

	var sb strings.Builder
	title := "Rate limit enforcement"
	if summary.DryRun {
		title += " (dry run)"
	}
	sb.WriteString(fmt.Sprintf("## %s\n\n", title))
	if summary.Host != "" {
		sb.WriteString(fmt.Sprintf("Workspace: `%s`  \n", summary.Host))
	}
	sb.WriteString(fmt.Sprintf("Run: `%s`\n\n", summary.RunID))
	sb.WriteString("| Endpoint | Outcome | Previous Limits | Detail |\n")
	sb.WriteString("|----------|---------|-----------------|--------|\n")

	for _, r := range summary.Results {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
			escapeMarkdownCell(r.Endpoint),
			escapeMarkdownCell(string(r.Outcome)),
			escapeMarkdownCell(formatLimits(r.Before)),
			escapeMarkdownCell(resultDetail(r)),
		))
	}

	sb.WriteString(fmt.Sprintf("\n**Summary**: %s\n", summaryLine(summary)))
	return sb.String(), nil
}

// FormatEndpoints renders an endpoint listing as Markdown.
func (f *MarkdownFormatter) FormatEndpoints(endpoints []serving.Endpoint) (string, error) {
	var sb strings.Builder
	sb.WriteString("| Endpoint | State | Rate Limits | Compliance |\n")
	sb.WriteString("|----------|-------|-------------|------------|\n")

	compliant := 0
	for _, endpoint := range endpoints {
		if endpoint.Compliant() {
			compliant++
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
			escapeMarkdownCell(endpoint.Name),
			escapeMarkdownCell(endpoint.State),
			escapeMarkdownCell(formatLimits(endpoint.RateLimits)),
			complianceLabel(endpoint),
		))
	}

	sb.WriteString(fmt.Sprintf("\n**Compliance**: %s\n", fmtCompliant(compliant, len(endpoints))))
	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}

func fmtCompliant(compliant, total int) string {
	return fmt.Sprintf("%d/%d compliant", compliant, total)
}
