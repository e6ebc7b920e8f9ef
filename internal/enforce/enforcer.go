// Package enforce sweeps serving endpoints and forces the per-user rate limit to zero.
package enforce

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rategate/rategate/internal/serving"
)

// EndpointService is the slice of the workspace API a sweep needs.
type EndpointService interface {
	ListEndpoints(ctx context.Context) ([]serving.Endpoint, error)
	PatchRateLimits(ctx context.Context, name string, limits []serving.RateLimit) error
}

// Enforcer runs one sequential compliance sweep.
// RunID tags logs and the summary; a random one is generated when empty.
type Enforcer struct {
	Service EndpointService
	Logger  *logging.Logger
	Host    string
	DryRun  bool
	Exclude []string
	RunID   string
	Clock   func() time.Time
}

// Run lists every endpoint and patches the non-compliant ones.
//
// Listing failures abort the sweep and return an error. Per-endpoint failures
// are logged and counted; they never stop the sweep.
func (e *Enforcer) Run(ctx context.Context) (*Summary, error) {
	if e == nil || e.Service == nil {
		return nil, errors.New("enforcer is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	runID := e.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	summary := &Summary{
		RunID:     runID,
		Host:      e.Host,
		DryRun:    e.DryRun,
		StartedAt: e.now(),
	}

	endpoints, err := e.Service.ListEndpoints(ctx)
	if err != nil {
		return nil, fmt.Errorf("list serving endpoints: %w", err)
	}

	summary.Total = len(endpoints)
	summary.Results = make([]Result, 0, len(endpoints))
	e.info("Found serving endpoints", zap.Int("count", len(endpoints)), zap.String("run_id", summary.RunID))

	exempt := make(map[string]struct{}, len(e.Exclude))
	for _, name := range e.Exclude {
		exempt[name] = struct{}{}
	}

	for i, endpoint := range endpoints {
		if ctx.Err() != nil {
			for _, rest := range endpoints[i:] {
				summary.record(Result{
					Endpoint: rest.Name,
					Outcome:  OutcomeFailed,
					Reason:   ReasonCancelled,
					Error:    ctx.Err().Error(),
				})
			}
			e.warn("Sweep cancelled", zap.Int("remaining", len(endpoints)-i), zap.Error(ctx.Err()))
			break
		}

		summary.record(e.enforceOne(ctx, endpoint, exempt))
	}

	summary.FinishedAt = e.now()
	e.report(summary)

	return summary, nil
}

func (e *Enforcer) enforceOne(ctx context.Context, endpoint serving.Endpoint, exempt map[string]struct{}) Result {
	result := Result{Endpoint: endpoint.Name, Before: endpoint.RateLimits}
	e.debug("Processing endpoint", zap.String("endpoint", endpoint.Name), zap.Int("rate_limits", len(endpoint.RateLimits)))

	if _, ok := exempt[endpoint.Name]; ok {
		result.Outcome = OutcomeSkipped
		result.Reason = ReasonExempt
		e.info("Endpoint exempt, skipping", zap.String("endpoint", endpoint.Name))
		return result
	}

	if endpoint.Compliant() {
		result.Outcome = OutcomeSkipped
		result.Reason = ReasonCompliant
		e.info("Endpoint already compliant", zap.String("endpoint", endpoint.Name))
		return result
	}

	if e.DryRun {
		result.Outcome = OutcomePlanned
		e.info("Dry run: would set user rate limit to 0", zap.String("endpoint", endpoint.Name))
		return result
	}

	if err := e.Service.PatchRateLimits(ctx, endpoint.Name, serving.ZeroUserLimit()); err != nil {
		result.Outcome = OutcomeFailed
		result.Reason = ReasonPatch
		result.StatusCode = serving.StatusCode(err)
		result.Error = err.Error()
		fields := []zap.Field{zap.String("endpoint", endpoint.Name), zap.Int("status_code", result.StatusCode), zap.Error(err)}
		var apiErr *serving.APIError
		if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
			fields = append(fields, zap.Duration("retry_after", apiErr.RetryAfter))
		}
		e.logError("Failed updating endpoint", fields...)
		return result
	}

	result.Outcome = OutcomeUpdated
	e.info("Rate limit set to 0", zap.String("endpoint", endpoint.Name))
	return result
}

func (e *Enforcer) report(summary *Summary) {
	fields := []zap.Field{
		zap.String("run_id", summary.RunID),
		zap.Int("total", summary.Total),
		zap.Int("updated", summary.Updated),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Int("planned", summary.Planned),
		zap.Bool("dry_run", summary.DryRun),
		zap.Duration("duration", summary.Duration()),
	}
	if summary.Failed > 0 {
		e.warn("Sweep finished with failures", fields...)
		return
	}
	e.info("Sweep finished", fields...)
}

func (e *Enforcer) now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now().UTC()
}

func (e *Enforcer) debug(msg string, fields ...zap.Field) {
	if e.Logger != nil {
		e.Logger.Debug(msg, fields...)
	}
}

func (e *Enforcer) info(msg string, fields ...zap.Field) {
	if e.Logger != nil {
		e.Logger.Info(msg, fields...)
	}
}

func (e *Enforcer) warn(msg string, fields ...zap.Field) {
	if e.Logger != nil {
		e.Logger.Warn(msg, fields...)
	}
}

func (e *Enforcer) logError(msg string, fields ...zap.Field) {
	if e.Logger != nil {
		e.Logger.Error(msg, fields...)
	}
}
