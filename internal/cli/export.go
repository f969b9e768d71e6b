package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rshade/statdash/internal/api"
	"github.com/rshade/statdash/internal/catalog"
	"github.com/rshade/statdash/internal/chart"
	"github.com/rshade/statdash/internal/config"
	"github.com/rshade/statdash/internal/export"
	"github.com/rshade/statdash/internal/panel"
)

// exportJob is one view to render and where to write it.
type exportJob struct {
	sel  selection
	path string
}

func newExportCmd() *cobra.Command {
	var (
		viewID int
		sets   []string
		link   string
		format string
		out    string
		all    bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Save charts as SVG or PNG images",
		Long: `Renders a view and writes the image. With --all every view is exported
concurrently into the --out directory, one file per view named after it.`,
		Example: `  # Save the state view as visualization.svg
  statdash export --view 10

  # Save Florida's composite chart as PNG
  statdash export --view 11 --set selstate=FL --format png --out fl.png

  # Export every view into charts/
  statdash export --all --format png --out charts`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := config.GetGlobalConfig()
			if !cmd.Flags().Changed("format") {
				format = cfg.Export.Format
			}
			format = strings.ToLower(format)
			if format != chart.FormatSVG && format != chart.FormatPNG {
				return fmt.Errorf("%w: %s", chart.ErrUnsupportedFormat, format)
			}
			if out == "" {
				out = cfg.Export.Directory
			}

			cat, err := cfg.Catalog()
			if err != nil {
				return err
			}

			var jobs []exportJob
			if all {
				jobs, err = allViewJobs(cat, link, sets, out, format)
			} else {
				var sel selection
				sel, err = resolveSelection(cat, viewID, cmd.Flags().Changed("view"), link, sets)
				jobs = []exportJob{{sel: sel, path: out}}
			}
			if err != nil {
				return err
			}

			client, err := newBackend(cmd, cfg)
			if err != nil {
				return err
			}

			written, err := exportViews(ctx, cat, client, jobs, format)
			for _, path := range written {
				cmd.Printf("Saved %s\n", path)
			}
			return err
		},
	}

	addSelectionFlags(cmd, &viewID, &sets, &link)
	cmd.Flags().StringVar(&format, "format", chart.FormatSVG, "image format: svg or png")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file or directory (default: export.directory)")
	cmd.Flags().BoolVar(&all, "all", false, "export every view")
	cmd.MarkFlagsMutuallyExclusive("all", "view")
	return cmd
}

func allViewJobs(cat *catalog.Catalog, link string, sets []string, dir, format string) ([]exportJob, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	views := cat.Views()
	jobs := make([]exportJob, 0, len(views))
	for _, v := range views {
		sel, err := resolveSelection(cat, v.ID, true, link, sets)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, exportJob{sel: sel, path: filepath.Join(dir, v.Name+"."+format)})
	}
	return jobs, nil
}

// exportViews renders and saves each job, at most runtime.NumCPU at a time.
// One failure cancels the jobs that have not finished yet. It returns the
// written paths sorted.
func exportViews(
	ctx context.Context,
	cat *catalog.Catalog,
	client *api.Client,
	jobs []exportJob,
	format string,
) ([]string, error) {
	var (
		mu      sync.Mutex
		written []string
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	renderer := chart.NewImageRenderer()

	for _, job := range jobs {
		g.Go(func() error {
			loader := panel.NewLoader(cat, job.sel.View, client, renderer, logger)
			var display summaryDisplay
			if _, err := loader.Refresh(gCtx, job.sel.Values, &display); err != nil {
				return fmt.Errorf("loading view %d: %w", job.sel.View.ID, err)
			}
			path, err := export.SaveImage(gCtx, display.view, format, job.path)
			if err != nil {
				return fmt.Errorf("exporting view %d: %w", job.sel.View.ID, err)
			}
			logger.Debug().Ctx(gCtx).Int("view", job.sel.View.ID).Str("path", path).Msg("view exported")

			mu.Lock()
			written = append(written, path)
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	sort.Strings(written)
	return written, err
}
