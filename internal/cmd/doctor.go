package cmd

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/rategate/rategate/internal/config"
	"github.com/rategate/rategate/internal/observability"
)

const doctorChecks = 5

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long:  "Validate configuration, resolve credentials and list serving endpoints without patching anything.",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	logger := observability.CLILogger

	logger.Info("=== " + config.AppName + " doctor ===")
	logger.Info("Running diagnostic checks...")

	// Check 1: runtime
	logger.Info(fmt.Sprintf("[1/%d] Checking runtime... ✅ %s %s/%s", doctorChecks, runtime.Version(), runtime.GOOS, runtime.GOARCH),
		zap.String("go_version", runtime.Version()),
		zap.String("os", runtime.GOOS),
		zap.String("arch", runtime.GOARCH))

	// Check 2: Gofulmen and Crucible
	version := crucible.GetVersion()
	if version.Gofulmen != "" && version.Crucible != "" {
		logger.Info(fmt.Sprintf("[2/%d] Checking Gofulmen... ✅ v%s (crucible v%s)", doctorChecks, version.Gofulmen, version.Crucible),
			zap.String("gofulmen_version", version.Gofulmen),
			zap.String("crucible_version", version.Crucible))
	} else {
		logger.Warn(fmt.Sprintf("[2/%d] Checking Gofulmen... ⚠️  version metadata unavailable", doctorChecks))
	}

	// Check 3: configuration
	cfg, err := loadConfig(ctx)
	if err != nil {
		logger.Error(fmt.Sprintf("[3/%d] Checking configuration... ❌ invalid", doctorChecks), zap.Error(err))
		return err
	}
	logger = observability.CLILogger
	configSource := "defaults and environment"
	if path := viper.ConfigFileUsed(); path != "" {
		configSource = path
	} else if path := config.DefaultConfigPath(); path != "" {
		configSource = fmt.Sprintf("defaults and environment (no file at %s)", filepath.Dir(path))
	}
	logger.Info(fmt.Sprintf("[3/%d] Checking configuration... ✅ %s", doctorChecks, configSource),
		zap.String("strategy", cfg.Credentials.Strategy))

	// Check 4: credentials
	client, host, err := connect(ctx, cfg, logger)
	if err != nil {
		logger.Error(fmt.Sprintf("[4/%d] Checking credentials... ❌ %s strategy failed", doctorChecks, cfg.Credentials.Strategy))
		return err
	}
	logger.Info(fmt.Sprintf("[4/%d] Checking credentials... ✅ %s via %s", doctorChecks, host, cfg.Credentials.Strategy),
		zap.String("host", host))

	// Check 5: workspace API
	endpoints, err := client.ListEndpoints(ctx)
	if err != nil {
		logger.Error(fmt.Sprintf("[5/%d] Checking serving endpoints... ❌ listing failed", doctorChecks), zap.Error(err))
		return listingError(ctx, err)
	}
	compliant := 0
	for _, endpoint := range endpoints {
		if endpoint.Compliant() {
			compliant++
		}
	}
	logger.Info(fmt.Sprintf("[5/%d] Checking serving endpoints... ✅ %d found, %d compliant", doctorChecks, len(endpoints), compliant),
		zap.Int("endpoints", len(endpoints)),
		zap.Int("compliant", compliant))

	logger.Info("✅ All checks passed")
	if compliant < len(endpoints) {
		logger.Info(fmt.Sprintf("Run '%s enforce --dry-run' to preview the %d pending updates", config.AppName, len(endpoints)-compliant))
	}
	return nil
}
