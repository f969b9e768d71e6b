package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rshade/statdash/internal/chart"
	"github.com/rshade/statdash/internal/config"
	"github.com/rshade/statdash/internal/panel"
)

func newEditorCmd() *cobra.Command {
	var (
		viewID    int
		sets      []string
		link      string
		editorURL string
	)

	cmd := &cobra.Command{
		Use:   "editor",
		Short: "Open a view's chart in the external chart editor",
		Long: `Loads the view and posts its specification to the chart editor, repeating
the post until the editor answers or the attempt budget (editor.attempts every
editor.interval) runs out. An editor that never answers is reported, not
treated as an error.`,
		Example: `  statdash editor --view 11 --set selstate=WA
  statdash editor --view 10 --editor-url ws://127.0.0.1:5000/editor`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := config.GetGlobalConfig()
			editorCfg := cfg.Editor
			if editorURL != "" {
				editorCfg.URL = editorURL
			}

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

			loader := panel.NewLoader(cat, sel.View, client, chart.NewImageRenderer(), logger)
			var display summaryDisplay
			if _, err := loader.Refresh(ctx, sel.Values, &display); err != nil {
				return fmt.Errorf("loading view %d: %w", sel.View.ID, err)
			}

			acked, err := sendToEditor(ctx, editorCfg, display.view)
			if err != nil {
				return err
			}
			if !acked {
				logger.Warn().Ctx(ctx).Str("editor_url", editorCfg.URL).Msg("editor did not acknowledge the chart")
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "Editor did not answer")
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Sent %q to the editor\n", display.view.Title())
			return err
		},
	}

	addSelectionFlags(cmd, &viewID, &sets, &link)
	cmd.Flags().StringVar(&editorURL, "editor-url", "", "editor websocket URL (default: editor.url)")
	return cmd
}
