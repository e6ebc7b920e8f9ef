package cmd

import (
	"fmt"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"

	errwrap "github.com/rategate/rategate/internal/errors"
	"github.com/rategate/rategate/internal/observability"
	"github.com/rategate/rategate/internal/output"
)

var endpointsCmd = &cobra.Command{
	Use:   "endpoints",
	Short: "List serving endpoints and their rate limits",
	Long:  "List every serving endpoint with its rate limits and whether it already carries a zero per-user limit. Never patches.",
	Args:  cobra.NoArgs,
	RunE:  runEndpoints,
}

func init() {
	rootCmd.AddCommand(endpointsCmd)

	endpointsCmd.Flags().String("output-format", "", "Output format: table, markdown, json, yaml")
}

func runEndpoints(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	format, err := resolveOutputFormat(cmd, cfg.Output.Format)
	if err != nil {
		return errwrap.WrapConfigInvalid(ctx, err, "unsupported output format")
	}

	client, _, err := connect(ctx, cfg, observability.CLILogger)
	if err != nil {
		return err
	}

	endpoints, err := client.ListEndpoints(ctx)
	if err != nil {
		return listingError(ctx, err)
	}

	out := cmd.OutOrStdout()
	if len(endpoints) == 0 && format == output.FormatTable {
		_, _ = fmt.Fprint(out, ascii.DrawBox("No serving endpoints found", 0))
		return nil
	}

	rendered, err := output.NewFormatter(format).FormatEndpoints(endpoints)
	if err != nil {
		return err
	}
	return writeRendered(&outputSink{writer: out}, rendered)
}
