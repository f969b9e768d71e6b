package cli

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rshade/statdash/internal/config"
)

func newFetchCmd() *cobra.Command {
	var (
		viewID  int
		sets    []string
		link    string
		compact bool
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Print the chart specification of a view",
		Example: `  # Cumulative cases for New York
  statdash fetch --view 10 --set selstate=NY --set modestate=C

  # The chart behind a shared link
  statdash fetch --link 'id=20&selcounty=Kings%20County&modecounty=W'`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := config.GetGlobalConfig()

			cat, err := cfg.Catalog()
			if err != nil {
				return err
			}
			sel, err := resolveSelection(cat, viewID, cmd.Flags().Changed("view"), link, sets)
			if err != nil {
				return err
			}
			client, err := newBackend(cmd, cfg)
			if err != nil {
				return err
			}

			raw, err := client.FetchView(ctx, cat, sel.View, sel.Values)
			if err != nil {
				logger.Error().Ctx(ctx).Err(err).Int("view", sel.View.ID).Msg("fetch failed")
				return err
			}

			out := []byte(raw)
			if !compact {
				var buf bytes.Buffer
				if err := json.Indent(&buf, raw, "", "  "); err != nil {
					return fmt.Errorf("formatting chart specification: %w", err)
				}
				out = buf.Bytes()
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}

	addSelectionFlags(cmd, &viewID, &sets, &link)
	cmd.Flags().BoolVar(&compact, "compact", false, "print the specification as received, without indentation")
	return cmd
}
