package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rshade/statdash/internal/config"
	"github.com/rshade/statdash/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		dir     string
		addr    string
		version string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve chart fixtures as a local dashboard backend",
		Long: `Serves Vega-Lite documents from a directory on the dashboard API routes,
reports an API version, and accepts editor connections on /editor.

A request for /api/state/graph?code=NY&mode=C is answered from
DIR/api/state/graph/NY_C.json, falling back to DIR/api/state/graph.json.`,
		Example: `  statdash serve --dir testdata --addr :5000`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.GetGlobalConfig()
			cat, err := cfg.Catalog()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(dir, cat, logger, server.WithVersion(version))
			cmd.Printf("Serving %s on %s\n", dir, addr)
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "directory holding the chart fixtures")
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:5000", "listen address")
	cmd.Flags().StringVar(&version, "api-version", server.DefaultVersion, "API version to report, empty to hide it")
	return cmd
}
