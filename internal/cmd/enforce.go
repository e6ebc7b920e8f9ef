package cmd

import (
	"context"
	"io"
	"strings"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rategate/rategate/internal/config"
	"github.com/rategate/rategate/internal/credentials"
	"github.com/rategate/rategate/internal/enforce"
	errwrap "github.com/rategate/rategate/internal/errors"
	"github.com/rategate/rategate/internal/observability"
	"github.com/rategate/rategate/internal/output"
	"github.com/rategate/rategate/internal/serving"
)

// newResolver is swapped in tests.
var newResolver = func(cfg *config.Config) (credentials.Resolver, error) {
	return credentials.NewResolver(cfg)
}

var enforceCmd = &cobra.Command{
	Use:   "enforce",
	Short: "Set the per-user rate limit to zero on every serving endpoint",
	Long: `Lists every serving endpoint in the workspace and patches each one that lacks
a {"key":"user","calls":0} rate limit. Endpoint failures are logged and counted;
the command exits non-zero after reporting when any endpoint failed.`,
	Args: cobra.NoArgs,
	RunE: runEnforce,
}

func init() {
	rootCmd.AddCommand(enforceCmd)

	enforceCmd.Flags().Bool("dry-run", false, "Report what would change without patching")
	enforceCmd.Flags().StringSlice("exclude", nil, "Endpoint names to leave untouched (comma-separated)")
	enforceCmd.Flags().String("output-format", "", "Output format: table, markdown, json, yaml")
	enforceCmd.Flags().String("out", "", "Write the report to a file or directory (default stdout)")
}

func runEnforce(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	if flag := cmd.Flags().Lookup("dry-run"); flag != nil && flag.Changed {
		cfg.Enforce.DryRun, err = cmd.Flags().GetBool("dry-run")
		if err != nil {
			return err
		}
	}
	if flag := cmd.Flags().Lookup("exclude"); flag != nil && flag.Changed {
		exclude, err := cmd.Flags().GetStringSlice("exclude")
		if err != nil {
			return err
		}
		cfg.Enforce.Exclude = mergeExclusions(cfg.Enforce.Exclude, exclude)
	}

	format, err := resolveOutputFormat(cmd, cfg.Output.Format)
	if err != nil {
		return errwrap.WrapConfigInvalid(ctx, err, "unsupported output format")
	}
	out, err := cmd.Flags().GetString("out")
	if err != nil {
		return err
	}

	runID := uuid.New().String()
	ctx = errwrap.WithRunID(ctx, runID)

	summary, err := runSweep(ctx, cfg, runID, observability.CLILogger)
	if err != nil {
		return err
	}

	path := reportPath(out, runID, format)
	if err := writeReport(summary, format, path, cmd.OutOrStdout()); err != nil {
		return errwrap.WrapInternal(ctx, err, "failed to write report")
	}
	if path != "" && path != "-" {
		observability.CLILogger.Info("Report written", zap.String("path", path), zap.String("format", string(format)))
	}

	if !summary.Complete() {
		incomplete := errwrap.NewEnforcementIncompleteError(ctx, summary.Failed, summary.Total)
		errwrap.LogEnvelope(observability.CLILogger, incomplete)
		return incomplete
	}
	return nil
}

// runSweep resolves credentials and runs one enforcement pass.
// Errors are envelopes ready for Exit.
func runSweep(ctx context.Context, cfg *config.Config, runID string, logger *logging.Logger) (*enforce.Summary, error) {
	client, host, err := connect(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	enforcer := &enforce.Enforcer{
		Service: client,
		Logger:  logger,
		Host:    host,
		DryRun:  cfg.Enforce.DryRun,
		Exclude: cfg.Enforce.Exclude,
		RunID:   runID,
	}

	summary, err := enforcer.Run(ctx)
	if err != nil {
		return nil, listingError(ctx, err)
	}
	return summary, nil
}

// connect resolves credentials and builds an authenticated workspace client.
func connect(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*serving.Client, string, error) {
	resolver, err := newResolver(cfg)
	if err != nil {
		return nil, "", errwrap.WrapConfigInvalid(ctx, err, "credential resolver could not be configured")
	}

	creds, err := resolver.Resolve(ctx)
	if err != nil {
		envelope := errwrap.WrapCredentials(ctx, err, "failed to resolve workspace credentials")
		if updated, ctxErr := envelope.WithContext(map[string]interface{}{
			"strategy":      string(resolver.Strategy()),
			"wrapped_error": err.Error(),
		}); ctxErr == nil {
			envelope = updated
		}
		return nil, "", envelope
	}

	if logger != nil {
		logger.Debug("Resolved workspace credentials",
			zap.String("strategy", string(resolver.Strategy())),
			zap.String("host", creds.Host))
	}

	return serving.NewClient(ctx, creds.Host, creds.TokenSource(), cfg.HTTP.Timeout), creds.Host, nil
}

func listingError(ctx context.Context, err error) error {
	envelope := errwrap.WrapExternalService(ctx, err, "failed to list serving endpoints")
	if status := serving.StatusCode(err); status != 0 {
		if updated, ctxErr := envelope.WithContext(map[string]interface{}{
			"status_code":   status,
			"wrapped_error": err.Error(),
		}); ctxErr == nil {
			envelope = updated
		}
	}
	return envelope
}

func writeReport(summary *enforce.Summary, format output.Format, path string, stdout io.Writer) error {
	rendered, err := output.NewFormatter(format).FormatSummary(summary)
	if err != nil {
		return err
	}

	sink, err := openSink(path, stdout)
	if err != nil {
		return err
	}
	if err := writeRendered(sink, rendered); err != nil {
		_ = sink.close()
		return err
	}
	return sink.close()
}

func mergeExclusions(configured, extra []string) []string {
	merged := make([]string, 0, len(configured)+len(extra))
	seen := make(map[string]struct{}, len(configured)+len(extra))
	for _, name := range append(append([]string{}, configured...), extra...) {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		merged = append(merged, name)
	}
	return merged
}
