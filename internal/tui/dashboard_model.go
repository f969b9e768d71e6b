package tui

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/rshade/statdash/internal/catalog"
	"github.com/rshade/statdash/internal/chart"
	"github.com/rshade/statdash/internal/export"
	"github.com/rshade/statdash/internal/panel"
	"github.com/rshade/statdash/internal/permalink"
	"github.com/rshade/statdash/internal/sequencer"
)

// ViewState is the screen the dashboard shows.
type ViewState int

const (
	// ViewStateChart shows the active panel.
	ViewStateChart ViewState = iota
	// ViewStateSource shows the Vega-Lite document of the active panel.
	ViewStateSource
	// ViewStateCompiled shows the compiled series of the active panel.
	ViewStateCompiled
	// ViewStateQuitting indicates the program is exiting.
	ViewStateQuitting
)

// Default dimensions before the first WindowSizeMsg.
const (
	defaultWidth  = 100
	defaultHeight = 30
)

// documentChrome is the number of rows around the document viewport.
const documentChrome = 7

// PanelLoadedMsg carries the outcome of one panel load back to Update.
type PanelLoadedMsg struct {
	View   int
	Token  sequencer.Token
	Result *panel.Result
	Err    error
}

// actionDoneMsg reports the outcome of an export or share action.
type actionDoneMsg struct {
	status string
	err    error
}

// Actions perform the side effects of the actions menu. Nil fields disable
// the action.
type Actions struct {
	SaveImage  func(ctx context.Context, view chart.RenderedView, format string) (string, error)
	OpenEditor func(ctx context.Context, view chart.RenderedView) (bool, error)
	CopyLink   func(url string) error
}

// Options configure a DashboardModel.
type Options struct {
	Catalog  *catalog.Catalog
	Fetcher  panel.Fetcher
	Renderer chart.Renderer
	// PageURL is the base of generated permalinks.
	PageURL string
	// Start is the decoded startup permalink.
	Start   permalink.State
	Actions Actions
	Logger  zerolog.Logger
}

// panelState is the display of one view. Each view has its own loader, so a
// slow load of one view never touches another.
type panelState struct {
	loader  *panel.Loader
	loading bool
	view    chart.RenderedView
	err     error
}

func (p *panelState) SetLoading(loading bool)       { p.loading = loading }
func (p *panelState) Show(view chart.RenderedView) { p.view, p.err = view, nil }
func (p *panelState) ShowError(err error)          { p.err = err }

// DashboardModel is the Bubble Tea model of the interactive dashboard.
type DashboardModel struct {
	ctx     context.Context
	cat     *catalog.Catalog
	views   []catalog.View
	panels  []*panelState
	values  map[string]string
	pageURL string
	actions Actions
	log     zerolog.Logger

	active  int
	focused int
	state   ViewState
	status  string
	err     error

	loadingState *LoadingState
	summary      table.Model
	document     viewport.Model

	width  int
	height int
}

// NewDashboardModel builds the dashboard. The startup permalink selects the
// active view and its values; unknown control names are ignored and an
// unknown view falls back to the first one.
func NewDashboardModel(ctx context.Context, opts Options) *DashboardModel {
	views := opts.Catalog.Views()
	m := &DashboardModel{
		ctx:          ctx,
		cat:          opts.Catalog,
		views:        views,
		panels:       make([]*panelState, len(views)),
		values:       opts.Catalog.Defaults(),
		pageURL:      opts.PageURL,
		actions:      opts.Actions,
		log:          opts.Logger,
		state:        ViewStateChart,
		loadingState: NewLoadingState("Loading chart..."),
		summary:      NewSummaryTable(nil),
		document:     viewport.New(defaultWidth, defaultHeight-documentChrome),
		width:        defaultWidth,
		height:       defaultHeight,
	}
	for i, v := range views {
		m.panels[i] = &panelState{
			loader: panel.NewLoader(opts.Catalog, v, opts.Fetcher, opts.Renderer, opts.Logger),
		}
	}

	opts.Start.Apply(m.values, opts.Catalog)
	m.active = m.indexOf(opts.Start.View)
	if m.active < 0 {
		m.log.Warn().Int("view", opts.Start.View).Msg("unknown view in permalink, showing first view")
		m.active = 0
	}
	return m
}

func (m *DashboardModel) indexOf(id int) int {
	for i, v := range m.views {
		if v.ID == id {
			return i
		}
	}
	return -1
}

// Init starts the spinner and the first load.
func (m *DashboardModel) Init() tea.Cmd {
	return tea.Batch(m.loadingState.Init(), m.loadActive())
}

// Update handles messages and updates the model state.
func (m *DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.document.Width = msg.Width
		m.document.Height = documentHeight(msg.Height)
		return m, nil

	case PanelLoadedMsg:
		return m.handleLoaded(msg)

	case actionDoneMsg:
		m.status, m.err = msg.status, msg.err
		if msg.err != nil {
			m.log.Error().Err(msg.err).Msg("action failed")
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	return m, m.loadingState.Update(msg)
}

// handleLoaded commits a load only when its token is still the newest one
// issued for that view.
func (m *DashboardModel) handleLoaded(msg PanelLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.View < 0 || msg.View >= len(m.panels) {
		return m, nil
	}
	p := m.panels[msg.View]
	if msg.Err != nil {
		p.loader.Fail(msg.Token, msg.Err, p)
		return m, nil
	}
	if err := p.loader.Commit(msg.Result, p); err == nil && msg.View == m.active {
		m.refreshSummary()
	}
	return m, nil
}

// refreshSummary rebuilds the series table for the chart of the active view.
func (m *DashboardModel) refreshSummary() {
	var spec *chart.Spec
	if view := m.activePanel().view; view != nil {
		spec = view.Spec()
	}
	m.summary = NewSummaryTable(spec)
}

func documentHeight(windowHeight int) int {
	return max(windowHeight-documentChrome, 3)
}

// openDocument shows the source or compiled document of the active chart in
// a scrollable viewport.
func (m *DashboardModel) openDocument(state ViewState) {
	if m.activePanel().view == nil {
		return
	}
	m.state = state
	m.document = viewport.New(m.width, documentHeight(m.height))
	m.document.SetContent(strings.TrimRight(m.documentText(), "\n"))
}

func (m *DashboardModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.state == ViewStateSource || m.state == ViewStateCompiled {
		switch msg.String() {
		case "esc", "v", "c", "backspace":
			m.state = ViewStateChart
			return m, nil
		case "q", "ctrl+c":
			m.state = ViewStateQuitting
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.document, cmd = m.document.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.state = ViewStateQuitting
		return m, tea.Quit
	case "tab":
		return m.switchView(1)
	case "shift+tab":
		return m.switchView(-1)
	case "up", "k":
		m.moveFocus(-1)
		return m, nil
	case "down", "j":
		m.moveFocus(1)
		return m, nil
	case "left":
		return m.cycleValue(-1)
	case "right":
		return m.cycleValue(1)
	case "r":
		return m, m.loadActive()
	case "s":
		return m, m.saveImage(chart.FormatSVG)
	case "p":
		return m, m.saveImage(chart.FormatPNG)
	case "v":
		m.openDocument(ViewStateSource)
		return m, nil
	case "c":
		m.openDocument(ViewStateCompiled)
		return m, nil
	case "e":
		return m, m.openEditor()
	case "l":
		return m, m.copyLink()
	}
	return m, nil
}

func (m *DashboardModel) switchView(delta int) (tea.Model, tea.Cmd) {
	n := len(m.views)
	m.active = ((m.active+delta)%n + n) % n
	m.focused = 0
	m.status, m.err = "", nil
	m.refreshSummary()
	return m, m.loadActive()
}

func (m *DashboardModel) moveFocus(delta int) {
	n := len(m.ActiveView().Controls)
	if n == 0 {
		return
	}
	m.focused = ((m.focused+delta)%n + n) % n
}

func (m *DashboardModel) cycleValue(delta int) (tea.Model, tea.Cmd) {
	controls := m.ActiveView().Controls
	if len(controls) == 0 {
		return m, nil
	}
	name := controls[m.focused]
	next := m.cat.Cycle(name, m.values[name], delta)
	if next == m.values[name] {
		return m, nil
	}
	m.values[name] = next
	return m, m.loadActive()
}

// loadActive issues a token for the active view and returns the command that
// runs the load. The token is taken here, on the update loop, so key presses
// order loads the way the user made them.
func (m *DashboardModel) loadActive() tea.Cmd {
	idx := m.active
	p := m.panels[idx]
	token := p.loader.Issue()
	p.SetLoading(true)

	ctx := m.ctx
	values := maps.Clone(m.values)
	loader := p.loader
	return func() tea.Msg {
		res, err := loader.Load(ctx, token, values)
		return PanelLoadedMsg{View: idx, Token: token, Result: res, Err: err}
	}
}

func (m *DashboardModel) saveImage(format string) tea.Cmd {
	view := m.activePanel().view
	if view == nil || m.actions.SaveImage == nil {
		return nil
	}
	ctx, save := m.ctx, m.actions.SaveImage
	return func() tea.Msg {
		path, err := save(ctx, view, format)
		if err != nil {
			return actionDoneMsg{err: fmt.Errorf("saving %s: %w", format, err)}
		}
		return actionDoneMsg{status: "saved " + path}
	}
}

func (m *DashboardModel) openEditor() tea.Cmd {
	view := m.activePanel().view
	if view == nil || m.actions.OpenEditor == nil {
		return nil
	}
	m.status = "sending to editor..."
	ctx, open := m.ctx, m.actions.OpenEditor
	return func() tea.Msg {
		acked, err := open(ctx, view)
		switch {
		case err != nil:
			return actionDoneMsg{err: fmt.Errorf("opening editor: %w", err)}
		case acked:
			return actionDoneMsg{status: "editor received the chart"}
		default:
			return actionDoneMsg{status: "editor did not answer"}
		}
	}
}

func (m *DashboardModel) copyLink() tea.Cmd {
	if m.actions.CopyLink == nil {
		return nil
	}
	link, copyFn := m.Permalink(), m.actions.CopyLink
	return func() tea.Msg {
		if err := copyFn(link); err != nil {
			return actionDoneMsg{err: fmt.Errorf("copying permalink: %w", err)}
		}
		return actionDoneMsg{status: "copied " + link}
	}
}

func (m *DashboardModel) activePanel() *panelState {
	return m.panels[m.active]
}

// ActiveView returns the selected view.
func (m *DashboardModel) ActiveView() catalog.View {
	return m.views[m.active]
}

// Values returns a copy of the current control values.
func (m *DashboardModel) Values() map[string]string {
	return maps.Clone(m.values)
}

// Permalink returns the link that reproduces the active view and its values.
func (m *DashboardModel) Permalink() string {
	v := m.ActiveView()
	return permalink.URL(m.pageURL, v.ID, m.cat.Pairs(v, m.values))
}

// Loading reports whether the active view has a load outstanding.
func (m *DashboardModel) Loading() bool {
	return m.activePanel().loading
}

// Rendered returns the chart shown in the active view, if any.
func (m *DashboardModel) Rendered() chart.RenderedView {
	return m.activePanel().view
}

// State returns the current screen.
func (m *DashboardModel) State() ViewState {
	return m.state
}

func (m *DashboardModel) documentText() string {
	view := m.activePanel().view
	if view == nil {
		return ""
	}
	var buf bytes.Buffer
	var err error
	if m.state == ViewStateCompiled {
		err = export.WriteCompiled(&buf, view)
	} else {
		err = export.WriteSource(&buf, view)
	}
	if err != nil {
		return ErrorStyle.Render(err.Error())
	}
	return buf.String()
}
