package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/rshade/statdash/internal/config"
	"github.com/rshade/statdash/internal/permalink"
)

func newPermalinkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "permalink",
		Short: "Build and read shareable dashboard links",
	}
	cmd.AddCommand(newPermalinkEncodeCmd(), newPermalinkDecodeCmd())
	return cmd
}

func newPermalinkEncodeCmd() *cobra.Command {
	var (
		viewID    int
		sets      []string
		link      string
		queryOnly bool
	)

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Print the link for a view and its control values",
		Example: `  statdash permalink encode --view 20 --set "selcounty=Kings County" --set modecounty=C
  statdash permalink encode --view 10 --query`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.GetGlobalConfig()
			cat, err := cfg.Catalog()
			if err != nil {
				return err
			}
			sel, err := resolveSelection(cat, viewID, cmd.Flags().Changed("view"), link, sets)
			if err != nil {
				return err
			}

			pairs := cat.Pairs(sel.View, sel.Values)
			if queryOnly {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), permalink.Encode(sel.View.ID, pairs))
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), permalink.URL(cfg.Page.BaseURL, sel.View.ID, pairs))
			return err
		},
	}

	addSelectionFlags(cmd, &viewID, &sets, &link)
	cmd.Flags().BoolVar(&queryOnly, "query", false, "print only the query string")
	return cmd
}

func newPermalinkDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode QUERY",
		Short: "Show the view and control values a link selects",
		Long: `Decodes a permalink query or URL. Fields that cannot be decoded are reported
as warnings and skipped; names that no control uses are listed as ignored.`,
		Example: `  statdash permalink decode 'id=11&selstate=TX&modecompstate=CD'`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.GetGlobalConfig()
			cat, err := cfg.Catalog()
			if err != nil {
				return err
			}

			st := permalink.Decode(linkQuery(args[0]), logger)
			view, viewErr := cat.View(st.View)

			out := cmd.OutOrStdout()
			if viewErr != nil {
				_, _ = fmt.Fprintf(out, "view: %d (unknown)\n", st.View)
			} else {
				_, _ = fmt.Fprintf(out, "view: %d %s\n", view.ID, view.Title)
			}

			var ignored []string
			for _, name := range st.Order {
				if !cat.HasControl(name) {
					ignored = append(ignored, name)
					continue
				}
				_, _ = fmt.Fprintf(out, "%s=%s\n", name, st.Values[name])
			}
			sort.Strings(ignored)
			for _, name := range ignored {
				_, _ = fmt.Fprintf(out, "ignored: %s\n", name)
			}
			return nil
		},
	}
}
