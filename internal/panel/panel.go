// Package panel loads one dashboard view into a display, discarding responses
// that a newer load of the same panel has superseded.
package panel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"

	"github.com/rs/zerolog"

	"github.com/rshade/statdash/internal/api"
	"github.com/rshade/statdash/internal/catalog"
	"github.com/rshade/statdash/internal/chart"
	"github.com/rshade/statdash/internal/sequencer"
)

// Fetcher retrieves the raw chart specification of a view.
type Fetcher interface {
	FetchView(ctx context.Context, cat *catalog.Catalog, view catalog.View, values map[string]string) (json.RawMessage, error)
}

// Display receives the state of a panel. Only the current load updates it.
type Display interface {
	SetLoading(loading bool)
	Show(view chart.RenderedView)
	ShowError(err error)
}

// Result is a finished load that has not been committed yet.
type Result struct {
	Token  sequencer.Token
	Values map[string]string
	Raw    json.RawMessage
	View   chart.RenderedView
}

// Loader runs loads for one view. Each loader owns its sequencer, so panels
// never invalidate each other.
type Loader struct {
	seq      *sequencer.Sequencer
	cat      *catalog.Catalog
	view     catalog.View
	fetcher  Fetcher
	renderer chart.Renderer
	log      zerolog.Logger
}

// NewLoader returns a loader for view.
func NewLoader(
	cat *catalog.Catalog,
	view catalog.View,
	fetcher Fetcher,
	renderer chart.Renderer,
	log zerolog.Logger,
) *Loader {
	return &Loader{
		seq:      sequencer.New(),
		cat:      cat,
		view:     view,
		fetcher:  fetcher,
		renderer: renderer,
		log:      log.With().Int("view", view.ID).Str("panel", view.Name).Logger(),
	}
}

// View returns the view this loader serves.
func (l *Loader) View() catalog.View { return l.view }

// Issue starts a new load and returns its token. Every earlier token becomes
// stale.
func (l *Loader) Issue() sequencer.Token {
	return l.seq.Issue()
}

// IsCurrent reports whether t belongs to the most recent load.
func (l *Loader) IsCurrent(t sequencer.Token) bool {
	return l.seq.IsCurrent(t)
}

// Load fetches and renders the view for token. The token is checked before
// the fetch, after it, and after rendering; once stale, Load returns
// sequencer.ErrSuperseded and does nothing else.
func (l *Loader) Load(ctx context.Context, token sequencer.Token, values map[string]string) (*Result, error) {
	if stale := l.seq.Check(token); stale != nil {
		return nil, l.superseded(token, "before fetch")
	}

	raw, err := l.fetcher.FetchView(ctx, l.cat, l.view, values)
	if stale := l.seq.Check(token); stale != nil {
		return nil, l.superseded(token, "after fetch")
	}
	if err != nil {
		l.log.Error().Ctx(ctx).Err(err).Uint64("token", uint64(token)).Msg("fetching chart failed")
		return nil, fmt.Errorf("fetching %s: %w", l.view.Name, err)
	}

	view, err := l.renderer.Render(ctx, raw)
	if stale := l.seq.Check(token); stale != nil {
		return nil, l.superseded(token, "after render")
	}
	if err != nil {
		l.log.Error().Ctx(ctx).Err(err).Uint64("token", uint64(token)).Msg("rendering chart failed")
		return nil, fmt.Errorf("rendering %s: %w", l.view.Name, err)
	}

	return &Result{Token: token, Values: maps.Clone(values), Raw: raw, View: view}, nil
}

// Commit shows res on d if its token is still current.
func (l *Loader) Commit(res *Result, d Display) error {
	if stale := l.seq.Check(res.Token); stale != nil {
		return l.superseded(res.Token, "before commit")
	}
	d.Show(res.View)
	d.SetLoading(false)
	return nil
}

// Fail reports a failed load on d if its token is still current. Superseded
// errors are never shown. It reports whether d was updated.
func (l *Loader) Fail(token sequencer.Token, err error, d Display) bool {
	if sequencer.IsSuperseded(err) || !l.seq.IsCurrent(token) {
		return false
	}
	d.ShowError(err)
	d.SetLoading(false)
	return true
}

// Refresh issues, loads and commits in one call. The loading indicator is set
// when the load is issued and cleared when it finishes or fails, unless a newer
// load took over in the meantime.
func (l *Loader) Refresh(ctx context.Context, values map[string]string, d Display) (*Result, error) {
	token := l.Issue()
	d.SetLoading(true)

	res, err := l.Load(ctx, token, values)
	if err != nil {
		l.Fail(token, err, d)
		return nil, err
	}
	if err := l.Commit(res, d); err != nil {
		return nil, err
	}
	return res, nil
}

func (l *Loader) superseded(token sequencer.Token, stage string) error {
	l.log.Debug().
		Uint64("token", uint64(token)).
		Uint64("current", uint64(l.seq.Current())).
		Str("stage", stage).
		Msg("load superseded")
	return sequencer.ErrSuperseded
}

// IsFetchError reports whether err came from the backend request.
func IsFetchError(err error) bool {
	var fe *api.FetchError
	return errors.As(err, &fe)
}

