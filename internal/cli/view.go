package cli

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/rshade/statdash/internal/chart"
	"github.com/rshade/statdash/internal/config"
	"github.com/rshade/statdash/internal/export"
	"github.com/rshade/statdash/internal/handshake"
	"github.com/rshade/statdash/internal/panel"
	"github.com/rshade/statdash/internal/permalink"
	"github.com/rshade/statdash/internal/tui"
)

func newViewCmd() *cobra.Command {
	var (
		link   string
		viewID int
		sets   []string
	)

	cmd := &cobra.Command{
		Use:   "view",
		Short: "Open the interactive dashboard",
		Long: `Opens the dashboard in the terminal. Switching views or changing a control
loads the selected chart; a response that arrives after a newer request for the
same view is discarded.

When standard output is not a terminal the selected view is loaded once and its
summary printed instead.`,
		Example: `  # Start on the configured start link or the first view
  statdash view

  # Start from a shared link
  statdash view --link 'http://127.0.0.1:5000/?id=11&selstate=CA&modecompstate=HT'`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.GetGlobalConfig()
			if link == "" {
				link = cfg.Page.StartLink
			}
			if !runsDashboard(cmd) {
				return printViewSummary(cmd, cfg, viewID, link, sets)
			}
			return runDashboard(cmd, cfg, link)
		},
	}

	addSelectionFlags(cmd, &viewID, &sets, &link)
	return cmd
}

func runDashboard(cmd *cobra.Command, cfg *config.Config, link string) error {
	ctx := cmd.Context()
	cat, err := cfg.Catalog()
	if err != nil {
		return err
	}
	client, err := newBackend(cmd, cfg)
	if err != nil {
		return err
	}

	model := tui.NewDashboardModel(ctx, tui.Options{
		Catalog:  cat,
		Fetcher:  client,
		Renderer: chart.NewImageRenderer(),
		PageURL:  cfg.Page.BaseURL,
		Start:    permalink.Decode(linkQuery(link), logger),
		Actions:  dashboardActions(cfg),
		Logger:   logger,
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to run interactive TUI: %w", err)
	}
	return nil
}

// dashboardActions wires the dashboard's actions menu to the export, editor and
// clipboard implementations.
func dashboardActions(cfg *config.Config) tui.Actions {
	return tui.Actions{
		SaveImage: func(ctx context.Context, view chart.RenderedView, format string) (string, error) {
			return export.SaveImage(ctx, view, format, cfg.Export.Directory)
		},
		OpenEditor: func(ctx context.Context, view chart.RenderedView) (bool, error) {
			return sendToEditor(ctx, cfg.Editor, view)
		},
		CopyLink: func(url string) error {
			return export.CopyPermalink(url, export.SystemClipboard{})
		},
	}
}

// summaryDisplay collects what a one-shot load shows.
type summaryDisplay struct {
	view chart.RenderedView
	err  error
}

func (d *summaryDisplay) SetLoading(bool)                {}
func (d *summaryDisplay) Show(view chart.RenderedView) { d.view = view }
func (d *summaryDisplay) ShowError(err error)          { d.err = err }

func printViewSummary(cmd *cobra.Command, cfg *config.Config, viewID int, link string, sets []string) error {
	ctx := cmd.Context()
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

	return writeSummary(cmd.OutOrStdout(), display.view,
		permalink.URL(cfg.Page.BaseURL, sel.View.ID, cat.Pairs(sel.View, sel.Values)))
}

func writeSummary(w io.Writer, view chart.RenderedView, link string) error {
	if _, err := fmt.Fprintln(w, tui.RenderChartSummary(view.Spec())); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%s\n", link)
	return err
}

// sendToEditor opens the editor channel and posts the view's source until the
// editor acknowledges or the attempt budget runs out.
func sendToEditor(ctx context.Context, cfg config.EditorConfig, view chart.RenderedView) (bool, error) {
	payload, err := handshake.NewEditorPayload(view.Source())
	if err != nil {
		return false, err
	}

	ch, err := handshake.DialEditor(ctx, cfg.URL)
	if err != nil {
		return false, err
	}
	defer func() { _ = ch.Close() }()

	poster := handshake.NewPoster(logger)
	if cfg.Interval > 0 {
		poster.Interval = cfg.Interval
	}
	if cfg.Attempts > 0 {
		poster.Attempts = cfg.Attempts
	}
	return poster.Post(ctx, ch, payload)
}
