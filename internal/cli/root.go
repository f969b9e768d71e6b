package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rshade/statdash/internal/config"
	"github.com/rshade/statdash/internal/logging"
)

// EnvSkipVersionCheck turns the backend version check off by default.
const EnvSkipVersionCheck = "STATDASH_SKIP_VERSION_CHECK"

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// stdoutFile returns the command's output when it is a file such as os.Stdout.
func stdoutFile(cmd *cobra.Command) *os.File {
	f, _ := cmd.OutOrStdout().(*os.File)
	return f
}

// logger is the package-level logger for CLI operations.
var logger zerolog.Logger //nolint:gochecknoglobals // Required for zerolog context integration

// NewRootCmd creates the root Cobra command for the statdash CLI.
func NewRootCmd(ver string) *cobra.Command {
	return NewRootCmdWithEnv(ver, os.LookupEnv)
}

// NewRootCmdWithEnv creates the root command with an explicit env lookup for testability.
func NewRootCmdWithEnv(ver string, lookupEnv func(string) (string, bool)) *cobra.Command {
	var logResult *logging.LogPathResult
	_, skipVersionCheck := lookupEnv(EnvSkipVersionCheck)

	cmd := &cobra.Command{
		Use:     "statdash",
		Short:   "Terminal client for the statistics dashboard",
		Long:    "statdash: browse, export and share the charts served by a statistics dashboard backend",
		Version: ver,
		Example: rootCmdExample,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			config.SetGlobalConfig(cfg)

			result := setupLogging(cmd)
			logResult = &result

			// Config commands must keep working with a broken file so it can be fixed.
			if !isConfigCommand(cmd) {
				if err := cfg.Validate(); err != nil {
					return fmt.Errorf("invalid configuration: %w", err)
				}
			}
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return cleanupLogging(logResult)
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.PersistentFlags().String("config", "", "read configuration from this file instead of ~/.statdash/config.yaml")
	cmd.PersistentFlags().String("api-url", "", "backend base URL (overrides config file and env var)")
	cmd.PersistentFlags().
		Bool("skip-version-check", skipVersionCheck, "skip the backend API version compatibility check")

	cmd.AddCommand(
		newViewCmd(), newFetchCmd(), newExportCmd(), newPermalinkCmd(),
		newEditorCmd(), newServeCmd(), newConfigCmd(),
	)

	return cmd
}

// loadConfig reads --config when given, otherwise the default location, and
// applies the --api-url override.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.Load(path)
		switch {
		case err == nil:
			cfg = loaded
		case errors.Is(err, os.ErrNotExist) && isConfigCommand(cmd):
			// "config init --config PATH" creates the file.
			cfg = config.Default()
			cfg.SetPath(path)
			cfg.ApplyEnv(os.LookupEnv)
		default:
			return nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.New()
	}

	if apiURL, _ := cmd.Flags().GetString("api-url"); apiURL != "" {
		cfg.API.BaseURL = apiURL
	}
	return cfg, nil
}

func isConfigCommand(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "config" && c.Parent() != nil {
			return true
		}
	}
	return false
}

const rootCmdExample = `  # Open the interactive dashboard
  statdash view

  # Open the dashboard at a shared link
  statdash view --link 'id=10&selstate=NY&modestate=C'

  # Print the chart specification of the state view for Texas
  statdash fetch --view 10 --set selstate=TX

  # Save the composite view as PNG
  statdash export --view 11 --format png --out charts/

  # Build a permalink
  statdash permalink encode --view 20 --set "selcounty=Kings County"

  # Serve fixture charts for local development
  statdash serve --dir testdata --addr :5000

  # Initialize configuration
  statdash config init`

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration management commands"}
	cmd.AddCommand(
		NewConfigInitCmd(), NewConfigGetCmd(), NewConfigSetCmd(),
		NewConfigListCmd(), NewConfigValidateCmd(),
	)
	return cmd
}
