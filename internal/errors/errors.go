package errors

import (
	"context"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
)

// Error codes used across the CLI.
const (
	CodeConfigInvalid          = "CONFIG_INVALID"
	CodeCredentialsUnavailable = "CREDENTIALS_UNAVAILABLE"
	CodeExternalService        = "EXTERNAL_SERVICE_ERROR"
	CodeEnforcementIncomplete  = "ENFORCEMENT_INCOMPLETE"
	CodeInternal               = "INTERNAL_ERROR"
)

type runIDKey struct{}

// WithRunID stores the sweep run ID on the context so envelopes can carry it
// as their correlation ID.
func WithRunID(ctx context.Context, runID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunID returns the run ID stored by WithRunID, or "".
func RunID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	runID, _ := ctx.Value(runIDKey{}).(string)
	return runID
}

// NewEnforcementIncompleteError reports a sweep that finished with failed endpoints.
func NewEnforcementIncompleteError(ctx context.Context, failed, total int) *errors.ErrorEnvelope {
	envelope := errors.NewErrorEnvelope(CodeEnforcementIncomplete, "one or more endpoints could not be updated")
	envelope = withCorrelation(ctx, envelope)
	if updated, err := envelope.WithContext(map[string]interface{}{
		"failed": failed,
		"total":  total,
	}); err == nil {
		envelope = updated
	}
	if updated, err := envelope.WithSeverity(errors.SeverityMedium); err == nil {
		envelope = updated
	}
	return envelope
}

// Wrap functions for existing errors.
// The context supplies the run ID used as correlation and trace ID.

func WrapConfigInvalid(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	envelope := wrap(ctx, CodeConfigInvalid, err, message)
	if updated, sevErr := envelope.WithSeverity(errors.SeverityHigh); sevErr == nil {
		envelope = updated
	}
	return envelope
}

func WrapCredentials(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	envelope := wrap(ctx, CodeCredentialsUnavailable, err, message)
	if updated, sevErr := envelope.WithSeverity(errors.SeverityCritical); sevErr == nil {
		envelope = updated
	}
	return envelope
}

func WrapExternalService(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	envelope := wrap(ctx, CodeExternalService, err, message)
	if updated, sevErr := envelope.WithSeverity(errors.SeverityHigh); sevErr == nil {
		envelope = updated
	}
	return envelope
}

func WrapInternal(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	envelope := wrap(ctx, CodeInternal, err, message)
	if updated, sevErr := envelope.WithSeverity(errors.SeverityHigh); sevErr == nil {
		envelope = updated
	}
	return envelope
}

func wrap(ctx context.Context, code string, err error, message string) *errors.ErrorEnvelope {
	envelope := errors.NewErrorEnvelope(code, message)
	envelope = withCorrelation(ctx, envelope)
	return withWrappedError(envelope, err)
}

func withCorrelation(ctx context.Context, envelope *errors.ErrorEnvelope) *errors.ErrorEnvelope {
	correlationID := RunID(ctx)
	if correlationID == "" {
		correlationID = errors.GenerateCorrelationID()
	}
	return envelope.WithCorrelationID(correlationID).WithTraceID(correlationID)
}

func withWrappedError(envelope *errors.ErrorEnvelope, err error) *errors.ErrorEnvelope {
	if envelope == nil || err == nil {
		return envelope
	}

	updated, updateErr := envelope.WithContext(map[string]interface{}{
		"wrapped_error": err.Error(),
	})
	if updateErr != nil {
		return envelope
	}
	return updated
}

// EnsureEnvelope normalizes any error into a gofulmen ErrorEnvelope.
func EnsureEnvelope(err error) *errors.ErrorEnvelope {
	if err == nil {
		env := errors.NewErrorEnvelope(CodeInternal, "unexpected nil error")
		env, _ = env.WithSeverity(errors.SeverityCritical)
		return env
	}

	if envelope, ok := err.(*errors.ErrorEnvelope); ok && envelope != nil {
		return envelope
	}

	env := errors.NewErrorEnvelope(CodeInternal, "unexpected error")
	env, _ = env.WithContext(map[string]interface{}{
		"wrapped_error": err.Error(),
	})
	env, _ = env.WithSeverity(errors.SeverityHigh)
	return env
}

// ExitCodeFor maps an envelope code to the process exit code.
func ExitCodeFor(envelope *errors.ErrorEnvelope) foundry.ExitCode {
	if envelope == nil {
		return foundry.ExitFailure
	}
	switch envelope.Code {
	case CodeConfigInvalid:
		return foundry.ExitConfigInvalid
	case CodeCredentialsUnavailable, CodeExternalService:
		return foundry.ExitExternalServiceUnavailable
	default:
		return foundry.ExitFailure
	}
}

// LogEnvelope writes the envelope at a level matching its severity.
func LogEnvelope(logger *logging.Logger, envelope *errors.ErrorEnvelope) {
	if logger == nil || envelope == nil {
		return
	}

	fields := []zap.Field{
		zap.String("error_code", envelope.Code),
	}

	if envelope.Severity != "" {
		fields = append(fields, zap.String("severity", string(envelope.Severity)))
	}

	for key, value := range envelope.Context {
		fields = append(fields, zap.Any(key, value))
	}

	if envelope.CorrelationID != "" {
		fields = append(fields, zap.String("correlation_id", envelope.CorrelationID))
	}

	switch envelope.Severity {
	case errors.SeverityCritical, errors.SeverityHigh:
		logger.Error(envelope.Message, fields...)
	case errors.SeverityMedium:
		logger.Warn(envelope.Message, fields...)
	default:
		logger.Info(envelope.Message, fields...)
	}
}
