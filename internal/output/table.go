package output

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/rategate/rategate/internal/enforce"
	"github.com/rategate/rategate/internal/serving"
)

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

// FormatSummary renders a sweep summary as a table.
func (f *TableFormatter) FormatSummary(summary *enforce.Summary) (string, error) {
	if summary == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	if summary.Host != "" {
		t.SetTitle(summary.Host)
	}
	t.AppendHeader(table.Row{"Endpoint", "Outcome", "Previous Limits", "Detail"})

	for _, r := range summary.Results {
		t.AppendRow(table.Row{
			r.Endpoint,
			string(r.Outcome),
			formatLimits(r.Before),
			resultDetail(r),
		})
	}

	t.AppendFooter(table.Row{"", "", "", summaryLine(summary)})

	return t.Render(), nil
}

// FormatEndpoints renders an endpoint listing as a table.
func (f *TableFormatter) FormatEndpoints(endpoints []serving.Endpoint) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	t.AppendHeader(table.Row{"Endpoint", "State", "Rate Limits", "Compliance"})

	compliant := 0
	for _, endpoint := range endpoints {
		if endpoint.Compliant() {
			compliant++
		}
		t.AppendRow(table.Row{
			endpoint.Name,
			endpoint.State,
			formatLimits(endpoint.RateLimits),
			complianceLabel(endpoint),
		})
	}

	t.AppendFooter(table.Row{"", "", "", fmtCompliant(compliant, len(endpoints))})

	return t.Render(), nil
}
