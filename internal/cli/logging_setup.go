package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rshade/statdash/internal/config"
	"github.com/rshade/statdash/internal/logging"
)

// setupLogging configures logging based on config file, environment, and CLI flags.
func setupLogging(cmd *cobra.Command) logging.LogPathResult {
	loggingCfg := config.GetLoggingConfig()
	interactive := runsDashboard(cmd)

	debug, _ := cmd.Flags().GetBool("debug")
	if debug {
		loggingCfg.Level = "debug"
		loggingCfg.Format = "console"
		if !interactive {
			loggingCfg.File = ""
		}
	}

	// The dashboard owns the terminal, so its logs always go to a file.
	if interactive && loggingCfg.File == "" {
		if path, err := config.GetDefaultLogPath(); err == nil {
			loggingCfg.File = path
		}
	}

	result := logging.NewLoggerWithPath(loggingCfg.ToLoggingConfig())
	logger = logging.ComponentLogger(result.Logger, "cli")
	config.SetLogger(logging.ComponentLogger(result.Logger, "config"))

	if result.UsingFile && !interactive {
		logging.PrintLogPathMessage(cmd.ErrOrStderr(), result.FilePath)
	} else if result.FallbackUsed {
		logging.PrintFallbackWarning(cmd.ErrOrStderr(), result.FallbackReason)
	}

	ctx := cmd.Context()
	traceID := logging.GetOrGenerateTraceID(ctx)
	ctx = logging.ContextWithTraceID(ctx, traceID)
	logger = logger.With().Str(logging.TraceIDFieldName, traceID).Logger()
	ctx = logger.WithContext(ctx)
	cmd.SetContext(ctx)

	logger.Info().Ctx(ctx).Str("command", cmd.Name()).Msg("command started")

	return result
}

// runsDashboard reports whether cmd will take over the terminal.
func runsDashboard(cmd *cobra.Command) bool {
	return cmd.Name() == "view" && cmd.Parent() != nil && cmd.Parent().Parent() == nil &&
		isTerminal(stdoutFile(cmd))
}

// cleanupLogging closes the log file handle.
func cleanupLogging(logResult *logging.LogPathResult) error {
	if logResult == nil {
		return nil
	}
	if err := logResult.Close(); err != nil {
		return fmt.Errorf("closing log file: %w", err)
	}
	return nil
}
