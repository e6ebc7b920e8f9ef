package errors

import (
	"context"
	stderrors "errors"
	"testing"

	gferrors "github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
	"github.com/stretchr/testify/require"
)

func TestRunIDRoundTrip(t *testing.T) {
	ctx := WithRunID(context.Background(), "run-123")
	require.Equal(t, "run-123", RunID(ctx))
	require.Empty(t, RunID(context.Background()))
}

func TestWrapUsesRunIDForCorrelation(t *testing.T) {
	ctx := WithRunID(context.Background(), "run-abc")
	envelope := WrapExternalService(ctx, stderrors.New("status 503"), "listing serving endpoints failed")

	require.Equal(t, CodeExternalService, envelope.Code)
	require.Equal(t, "run-abc", envelope.CorrelationID)
	require.Equal(t, "run-abc", envelope.TraceID)
	require.Equal(t, "status 503", envelope.Context["wrapped_error"])
	require.Equal(t, gferrors.SeverityHigh, envelope.Severity)
}

func TestWrapGeneratesCorrelationWithoutRunID(t *testing.T) {
	envelope := WrapCredentials(context.Background(), stderrors.New("vault sealed"), "credentials unavailable")
	require.Equal(t, CodeCredentialsUnavailable, envelope.Code)
	require.NotEmpty(t, envelope.CorrelationID)
	require.Equal(t, gferrors.SeverityCritical, envelope.Severity)
}

func TestNewEnforcementIncompleteError(t *testing.T) {
	envelope := NewEnforcementIncompleteError(WithRunID(context.Background(), "run-9"), 2, 5)
	require.Equal(t, CodeEnforcementIncomplete, envelope.Code)
	require.Equal(t, "run-9", envelope.CorrelationID)
	require.EqualValues(t, 2, envelope.Context["failed"])
	require.EqualValues(t, 5, envelope.Context["total"])
}

func TestWrapInternal(t *testing.T) {
	envelope := WrapInternal(WithRunID(context.Background(), "run-w"), stderrors.New("disk full"), "failed to write report")
	require.Equal(t, CodeInternal, envelope.Code)
	require.Equal(t, "run-w", envelope.CorrelationID)
	require.Equal(t, "disk full", envelope.Context["wrapped_error"])
	require.Equal(t, foundry.ExitFailure, ExitCodeFor(envelope))
}

func TestEnsureEnvelope(t *testing.T) {
	original := gferrors.NewErrorEnvelope(CodeConfigInvalid, "bad config")
	require.Same(t, original, EnsureEnvelope(original))

	wrapped := EnsureEnvelope(stderrors.New("boom"))
	require.Equal(t, CodeInternal, wrapped.Code)
	require.Equal(t, "boom", wrapped.Context["wrapped_error"])

	require.Equal(t, CodeInternal, EnsureEnvelope(nil).Code)
}

func TestExitCodeFor(t *testing.T) {
	cases := map[string]foundry.ExitCode{
		CodeConfigInvalid:          foundry.ExitConfigInvalid,
		CodeCredentialsUnavailable: foundry.ExitExternalServiceUnavailable,
		CodeExternalService:        foundry.ExitExternalServiceUnavailable,
		CodeEnforcementIncomplete:  foundry.ExitFailure,
		CodeInternal:               foundry.ExitFailure,
	}
	for code, want := range cases {
		require.Equal(t, want, ExitCodeFor(gferrors.NewErrorEnvelope(code, "x")), code)
	}
	require.Equal(t, foundry.ExitFailure, ExitCodeFor(nil))
}

func TestLogEnvelope(t *testing.T) {
	logger, err := logging.NewCLI("rategate-test")
	require.NoError(t, err)

	LogEnvelope(logger, NewEnforcementIncompleteError(context.Background(), 1, 3))
	LogEnvelope(logger, WrapCredentials(context.Background(), stderrors.New("x"), "y"))
	LogEnvelope(nil, gferrors.NewErrorEnvelope(CodeConfigInvalid, "ignored"))
}
