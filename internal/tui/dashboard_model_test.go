package tui

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/statdash/internal/catalog"
	"github.com/rshade/statdash/internal/chart"
	"github.com/rshade/statdash/internal/panel"
	"github.com/rshade/statdash/internal/permalink"
	"github.com/rshade/statdash/internal/sequencer"
)

// titleFetcher returns a chart whose title lists the request values.
type titleFetcher struct {
	fail error
}

func (f titleFetcher) FetchView(
	_ context.Context,
	_ *catalog.Catalog,
	view catalog.View,
	values map[string]string,
) (json.RawMessage, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	parts := []string{view.Name}
	for _, name := range view.Controls {
		parts = append(parts, values[name])
	}
	title, _ := json.Marshal(strings.Join(parts, "/"))
	return json.RawMessage(`{"title":` + string(title) + `,"data":{"values":[` +
		`{"d":"2021-01-01","n":1200},{"d":"2021-01-02","n":3400.5},{"d":"2021-01-03","n":2100}]},` +
		`"mark":"line","encoding":{"x":{"field":"d","type":"temporal"},"y":{"field":"n","title":"cases"}}}`), nil
}

// flakyFetcher serves charts until fail is set.
type flakyFetcher struct {
	fail error
}

func (f *flakyFetcher) FetchView(
	ctx context.Context,
	cat *catalog.Catalog,
	view catalog.View,
	values map[string]string,
) (json.RawMessage, error) {
	return titleFetcher{fail: f.fail}.FetchView(ctx, cat, view, values)
}

func newTestModel(t *testing.T, start permalink.State, f panel.Fetcher, actions Actions) *DashboardModel {
	t.Helper()
	return NewDashboardModel(context.Background(), Options{
		Catalog:  catalog.Default(),
		Fetcher:  f,
		Renderer: chart.NewImageRenderer(),
		PageURL:  "http://dash.example/",
		Start:    start,
		Actions:  actions,
		Logger:   zerolog.Nop(),
	})
}

func key(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		return tea.KeyMsg{Type: tea.KeyShiftTab}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "pgdown":
		return tea.KeyMsg{Type: tea.KeyPgDown}
	case "pgup":
		return tea.KeyMsg{Type: tea.KeyPgUp}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func press(t *testing.T, m *DashboardModel, s string) tea.Cmd {
	t.Helper()
	updated, cmd := m.Update(key(s))
	require.Same(t, m, updated)
	return cmd
}

// loadedMsg runs cmd, which must be a load command.
func loadedMsg(t *testing.T, cmd tea.Cmd) PanelLoadedMsg {
	t.Helper()
	require.NotNil(t, cmd)
	msg, ok := cmd().(PanelLoadedMsg)
	require.True(t, ok, "expected a PanelLoadedMsg")
	return msg
}

func TestNewDashboardModel_StartLink(t *testing.T) {
	start := permalink.Decode("selcounty=Kings%20County&id=20&modecounty=C&bogus=1", zerolog.Nop())
	m := newTestModel(t, start, titleFetcher{}, Actions{})

	assert.Equal(t, catalog.ViewCountyGraph, m.ActiveView().ID)
	assert.Equal(t, "Kings County", m.Values()["selcounty"])
	assert.Equal(t, "C", m.Values()["modecounty"])
	assert.NotContains(t, m.Values(), "bogus")
	assert.Equal(t, "http://dash.example/?id=20&selcounty=Kings%20County&modecounty=C", m.Permalink())
}

func TestNewDashboardModel_UnknownView(t *testing.T) {
	m := newTestModel(t, permalink.State{View: 99}, titleFetcher{}, Actions{})
	assert.Equal(t, catalog.ViewCountryGraph, m.ActiveView().ID)
}

func TestDashboardModel_InitLoads(t *testing.T) {
	m := newTestModel(t, permalink.State{View: catalog.ViewStateGraph}, titleFetcher{}, Actions{})

	batch, ok := m.Init()().(tea.BatchMsg)
	require.True(t, ok)
	assert.True(t, m.Loading())

	var loaded *PanelLoadedMsg
	for _, cmd := range batch {
		if cmd == nil {
			continue
		}
		if msg, isLoad := cmd().(PanelLoadedMsg); isLoad {
			loaded = &msg
		}
	}
	require.NotNil(t, loaded)

	m.Update(*loaded)
	assert.False(t, m.Loading())
	require.NotNil(t, m.Rendered())
	assert.Equal(t, "state/US/D", m.Rendered().Title())
	assert.Contains(t, m.View(), "1,200")
}

func TestDashboardModel_StaleResponsesDropped(t *testing.T) {
	m := newTestModel(t, permalink.State{View: catalog.ViewStateGraph}, titleFetcher{}, Actions{})

	// First change: the fetch completes before the user changes again.
	first := loadedMsg(t, press(t, m, "right"))
	require.NoError(t, first.Err)

	// Second and third changes while the first response is still in flight.
	second := press(t, m, "right")
	third := press(t, m, "right")

	// The first response arrives after newer loads were issued.
	m.Update(first)
	assert.Nil(t, m.Rendered(), "a superseded response applies nothing")
	assert.True(t, m.Loading(), "the newest load still owns the indicator")

	// The second load notices it is stale inside the command.
	secondMsg := loadedMsg(t, second)
	assert.ErrorIs(t, secondMsg.Err, sequencer.ErrSuperseded)
	m.Update(secondMsg)
	assert.Nil(t, m.Rendered())

	m.Update(loadedMsg(t, third))
	assert.False(t, m.Loading())
	require.NotNil(t, m.Rendered())
	assert.Equal(t, "state/TX/D", m.Rendered().Title())
}

func TestDashboardModel_ViewsAreIndependent(t *testing.T) {
	m := newTestModel(t, permalink.State{View: catalog.ViewStateGraph}, titleFetcher{}, Actions{})

	stateLoad := press(t, m, "right")
	compositeLoad := press(t, m, "tab")
	assert.Equal(t, catalog.ViewStateComposite, m.ActiveView().ID)

	// The composite load does not supersede the state load.
	stateMsg := loadedMsg(t, stateLoad)
	require.NoError(t, stateMsg.Err)
	m.Update(stateMsg)
	m.Update(loadedMsg(t, compositeLoad))

	require.NotNil(t, m.Rendered())
	assert.Equal(t, "composite/NY/VB", m.Rendered().Title())

	press(t, m, "shift+tab")
	require.NotNil(t, m.Rendered())
	assert.Equal(t, "state/NY/D", m.Rendered().Title())
}

func TestDashboardModel_FetchFailure(t *testing.T) {
	m := newTestModel(t, permalink.State{}, titleFetcher{fail: errors.New("backend down")}, Actions{})

	m.Update(loadedMsg(t, press(t, m, "r")))
	assert.False(t, m.Loading(), "a failed load clears the indicator")
	assert.Nil(t, m.Rendered())
	assert.Contains(t, m.View(), "backend down")
}

func TestDashboardModel_FailedRefreshKeepsChart(t *testing.T) {
	f := &flakyFetcher{}
	m := newTestModel(t, permalink.State{View: catalog.ViewStateGraph}, f, Actions{})
	m.Update(loadedMsg(t, press(t, m, "r")))
	require.NotNil(t, m.Rendered())

	f.fail = errors.New("boom 503")
	m.Update(loadedMsg(t, press(t, m, "r")))
	assert.False(t, m.Loading())
	require.NotNil(t, m.Rendered(), "the previous chart stays")

	view := m.View()
	assert.Contains(t, view, "boom 503")
	assert.Contains(t, view, "state/US/D")
	assert.Contains(t, view, "1,200")

	f.fail = nil
	m.Update(loadedMsg(t, press(t, m, "r")))
	assert.NotContains(t, m.View(), "boom 503", "a successful load clears the error")
}

func TestDashboardModel_SummaryTable(t *testing.T) {
	m := newTestModel(t, permalink.State{View: catalog.ViewStateGraph}, titleFetcher{}, Actions{})
	assert.Empty(t, m.summary.Rows())

	m.Update(loadedMsg(t, press(t, m, "r")))
	require.Len(t, m.summary.Rows(), 1)
	row := m.summary.Rows()[0]
	assert.Equal(t, []string{"1,200", "3,400.50", "2,100"}, []string(row[1:4]))

	view := m.View()
	for _, col := range []string{"SERIES", "MIN", "MAX", "LAST", "TREND"} {
		assert.Contains(t, view, col)
	}

	// Switching to a view that has not loaded yet empties the table.
	press(t, m, "tab")
	assert.Empty(t, m.summary.Rows())
}

func TestDashboardModel_ControlFocus(t *testing.T) {
	m := newTestModel(t, permalink.State{View: catalog.ViewStateGraph}, titleFetcher{}, Actions{})

	assert.Nil(t, press(t, m, "down"))
	m.Update(loadedMsg(t, press(t, m, "right")))
	assert.Equal(t, "C", m.Values()["modestate"])

	// Focus wraps around.
	press(t, m, "down")
	m.Update(loadedMsg(t, press(t, m, "left")))
	assert.Equal(t, "IL", m.Values()["selstate"], "left from the first option wraps to the last")
}

func TestDashboardModel_Actions(t *testing.T) {
	var savedFormat, copied string
	actions := Actions{
		SaveImage: func(_ context.Context, _ chart.RenderedView, format string) (string, error) {
			savedFormat = format
			return "visualization." + format, nil
		},
		OpenEditor: func(context.Context, chart.RenderedView) (bool, error) { return true, nil },
		CopyLink: func(url string) error {
			copied = url
			return nil
		},
	}
	m := newTestModel(t, permalink.State{View: catalog.ViewStateComposite}, titleFetcher{}, actions)

	assert.Nil(t, press(t, m, "s"), "nothing to save before the first load")
	m.Update(loadedMsg(t, press(t, m, "r")))

	msg := press(t, m, "p")()
	m.Update(msg)
	assert.Equal(t, "png", savedFormat)
	assert.Contains(t, m.View(), "saved visualization.png")

	m.Update(press(t, m, "e")())
	assert.Contains(t, m.View(), "editor received the chart")

	m.Update(press(t, m, "l")())
	assert.Equal(t, "http://dash.example/?id=11&selstate=US&modecompstate=VB", copied)

	failing := Actions{CopyLink: func(string) error { return errors.New("no clipboard") }}
	m2 := newTestModel(t, permalink.State{}, titleFetcher{}, failing)
	m2.Update(press(t, m2, "l")())
	assert.Contains(t, m2.View(), "no clipboard")
}

func TestDashboardModel_DocumentViews(t *testing.T) {
	m := newTestModel(t, permalink.State{View: catalog.ViewStateGraph}, titleFetcher{}, Actions{})

	press(t, m, "v")
	assert.Equal(t, ViewStateChart, m.State(), "no document before the first load")

	m.Update(loadedMsg(t, press(t, m, "r")))
	press(t, m, "v")
	assert.Equal(t, ViewStateSource, m.State())
	assert.Contains(t, m.View(), `"mark": "line"`)

	press(t, m, "esc")
	press(t, m, "c")
	assert.Equal(t, ViewStateCompiled, m.State())
	assert.Contains(t, m.View(), `"x_axis": "temporal"`)

	cmd := press(t, m, "q")
	require.NotNil(t, cmd)
	_, isQuit := cmd().(tea.QuitMsg)
	assert.True(t, isQuit)
	assert.Empty(t, m.View())
}

func TestDashboardModel_DocumentScroll(t *testing.T) {
	m := newTestModel(t, permalink.State{View: catalog.ViewStateGraph}, titleFetcher{}, Actions{})
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 14})
	m.Update(loadedMsg(t, press(t, m, "r")))

	press(t, m, "v")
	require.Equal(t, ViewStateSource, m.State())
	assert.True(t, m.document.AtTop())
	assert.Less(t, m.document.VisibleLineCount(), m.document.TotalLineCount(), "the document is taller than the screen")
	assert.NotContains(t, m.View(), `"cases"`)

	for range 10 {
		press(t, m, "pgdown")
	}
	assert.True(t, m.document.AtBottom())
	assert.Contains(t, m.View(), `"cases"`, "the end of the document is reachable")
	assert.NotContains(t, m.View(), "more lines")

	press(t, m, "pgup")
	assert.False(t, m.document.AtBottom())

	press(t, m, "esc")
	press(t, m, "v")
	assert.True(t, m.document.AtTop(), "reopening starts at the top")
}

func TestDashboardModel_WindowSize(t *testing.T) {
	m := newTestModel(t, permalink.State{}, titleFetcher{}, Actions{})
	m.Update(tea.WindowSizeMsg{Width: 60, Height: 20})
	assert.Equal(t, 60, m.width)
	assert.Equal(t, 20, m.height)
	assert.Equal(t, 60, m.document.Width)
	assert.Equal(t, 20-documentChrome, m.document.Height)

	m.Update(tea.WindowSizeMsg{Width: 40, Height: 4})
	assert.Equal(t, 3, m.document.Height, "the document keeps a minimum height")
}
