package enforce

import (
	"time"

	"github.com/rategate/rategate/internal/serving"
)

// Outcome classifies what a sweep did with one endpoint.
type Outcome string

const (
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
	OutcomePlanned Outcome = "planned"
)

// Reasons attached to skipped and failed results.
const (
	ReasonCompliant = "compliant"
	ReasonExempt    = "exempt"
	ReasonCancelled = "cancelled"
	ReasonPatch     = "patch_failed"
)

// Result reports the handling of a single endpoint.
type Result struct {
	Endpoint   string              `json:"endpoint" yaml:"endpoint"`
	Outcome    Outcome             `json:"outcome" yaml:"outcome"`
	Reason     string              `json:"reason,omitempty" yaml:"reason,omitempty"`
	StatusCode int                 `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	Error      string              `json:"error,omitempty" yaml:"error,omitempty"`
	Before     []serving.RateLimit `json:"before,omitempty" yaml:"before,omitempty"`
}

// Summary aggregates a sweep. Updated+Skipped+Failed+Planned always equals Total.
type Summary struct {
	RunID      string    `json:"run_id" yaml:"run_id"`
	Host       string    `json:"host,omitempty" yaml:"host,omitempty"`
	DryRun     bool      `json:"dry_run" yaml:"dry_run"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
	Total      int       `json:"total" yaml:"total"`
	Updated    int       `json:"updated" yaml:"updated"`
	Skipped    int       `json:"skipped" yaml:"skipped"`
	Failed     int       `json:"failed" yaml:"failed"`
	Planned    int       `json:"planned" yaml:"planned"`
	Results    []Result  `json:"results" yaml:"results"`
}

// Duration is the wall time of the sweep.
func (s *Summary) Duration() time.Duration {
	if s == nil || s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Complete reports whether no endpoint failed.
func (s *Summary) Complete() bool {
	return s != nil && s.Failed == 0
}

func (s *Summary) record(result Result) {
	switch result.Outcome {
	case OutcomeUpdated:
		s.Updated++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomePlanned:
		s.Planned++
	default:
		s.Failed++
	}
	s.Results = append(s.Results, result)
}
