package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rshade/statdash/internal/api"
	"github.com/rshade/statdash/internal/catalog"
	"github.com/rshade/statdash/internal/config"
	"github.com/rshade/statdash/internal/permalink"
)

// ErrInvalidSet is returned for --set values that are not name=value.
var ErrInvalidSet = errors.New("invalid --set value, expected name=value")

// ErrUnknownControl is returned for --set names no control uses.
var ErrUnknownControl = errors.New("unknown control")

// newBackend builds the API client from the global config and, unless
// disabled, checks that the backend speaks a compatible API version.
func newBackend(cmd *cobra.Command, cfg *config.Config) (*api.Client, error) {
	client := api.NewClient(cfg.API.BaseURL, api.WithTimeout(cfg.API.Timeout))
	if err := checkBackendVersion(cmd, client, cfg.API.VersionConstraint); err != nil {
		return nil, err
	}
	return client, nil
}

// checkBackendVersion fails on an incompatible backend. A backend that does not
// report its version is only warned about.
func checkBackendVersion(cmd *cobra.Command, client *api.Client, constraint string) error {
	if skip, _ := cmd.Flags().GetBool("skip-version-check"); skip {
		return nil
	}

	ctx := cmd.Context()
	version, err := client.CheckVersion(ctx, constraint)
	switch {
	case errors.Is(err, api.ErrVersionUnavailable):
		logger.Warn().Ctx(ctx).Str("api_url", client.BaseURL()).Msg("backend does not report its version, continuing")
		return nil
	case err != nil:
		return fmt.Errorf("checking backend version: %w", err)
	}

	logger.Debug().Ctx(ctx).Str("version", version).Msg("backend version is compatible")
	return nil
}

// selection is a view and the control values to load it with.
type selection struct {
	View   catalog.View
	Values map[string]string
}

// resolveSelection starts from the catalog defaults, applies the permalink,
// then --set values. An explicit --view wins over the link's id.
func resolveSelection(
	cat *catalog.Catalog,
	viewID int,
	viewSet bool,
	link string,
	sets []string,
) (selection, error) {
	values := cat.Defaults()

	if link != "" {
		st := permalink.Decode(linkQuery(link), logger)
		st.Apply(values, cat)
		if !viewSet {
			viewID = st.View
		}
	}

	for _, s := range sets {
		name, value, ok := strings.Cut(s, "=")
		if !ok || name == "" {
			return selection{}, fmt.Errorf("%w: %q", ErrInvalidSet, s)
		}
		if !cat.HasControl(name) {
			return selection{}, fmt.Errorf("%w: %s", ErrUnknownControl, name)
		}
		values[name] = value
	}

	view, err := cat.View(viewID)
	if err != nil {
		return selection{}, err
	}
	return selection{View: view, Values: values}, nil
}

// linkQuery accepts a bare query or a full dashboard URL.
func linkQuery(link string) string {
	if _, query, ok := strings.Cut(link, "?"); ok {
		return query
	}
	return link
}

// addSelectionFlags registers --view, --set and --link on cmd.
func addSelectionFlags(cmd *cobra.Command, viewID *int, sets *[]string, link *string) {
	cmd.Flags().IntVar(viewID, "view", catalog.ViewCountryGraph, "view id")
	cmd.Flags().StringArrayVar(sets, "set", nil, "control value as name=value (repeatable)")
	cmd.Flags().StringVar(link, "link", "", "permalink query or URL to start from")
}
