package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rshade/statdash/internal/chart"
)

// printer formats series statistics with thousand separators.
//
//nolint:gochecknoglobals // Global printer is idiomatic for x/text/message usage.
var printer = message.NewPrinter(language.English)

const (
	borderPadding   = 4
	sparklineWidth  = 30
	seriesNameWidth = 20
	statColumnWidth = 10
	maxExactInt     = 1 << 53
)

// View renders the current screen.
func (m *DashboardModel) View() string {
	if m.state == ViewStateQuitting {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(m.renderTabs())
	sb.WriteString("\n\n")

	switch m.state {
	case ViewStateSource, ViewStateCompiled:
		sb.WriteString(m.renderDocument())
	default:
		sb.WriteString(m.renderControls())
		sb.WriteString("\n")
		sb.WriteString(m.renderPanel())
	}

	sb.WriteString("\n")
	sb.WriteString(m.renderStatusBar())
	return sb.String()
}

func (m *DashboardModel) renderTabs() string {
	tabs := make([]string, 0, len(m.views)+1)
	tabs = append(tabs, HeaderStyle.Render("statdash")+" ")
	for i, v := range m.views {
		label := v.Title
		if label == "" {
			label = v.Name
		}
		if i == m.active {
			tabs = append(tabs, ActiveTabStyle.Render(label))
		} else {
			tabs = append(tabs, TabStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m *DashboardModel) renderControls() string {
	var sb strings.Builder
	for i, name := range m.ActiveView().Controls {
		ctl, _ := m.cat.Control(name)
		cursor := "  "
		label := LabelStyle.Render(ctl.DisplayLabel() + ":")
		value := ValueStyle.Render(ctl.OptionLabel(m.values[name]))
		if i == m.focused {
			cursor = FocusedStyle.Render(IconCursor) + " "
			value = FocusedStyle.Render(IconLeft+" "+ctl.OptionLabel(m.values[name])+" "+IconRight)
		}
		fmt.Fprintf(&sb, "%s%s %s\n", cursor, label, value)
	}
	return sb.String()
}

func (m *DashboardModel) renderPanel() string {
	p := m.activePanel()
	parts := make([]string, 0, 2)

	switch {
	case p.loading:
		parts = append(parts, RenderLoading(m.loadingState))
	case p.err != nil:
		parts = append(parts, ErrorStyle.Render(IconError+" "+p.err.Error()))
	}

	// The last good chart stays on screen while a newer load runs or after it fails.
	switch {
	case p.view != nil && len(parts) > 0:
		parts = append(parts, MutedStyle.Render(renderSummary(p.view.Spec(), m.summary)))
	case p.view != nil:
		parts = append(parts, renderSummary(p.view.Spec(), m.summary))
	case len(parts) == 0:
		parts = append(parts, MutedStyle.Render("no chart loaded"))
	}

	width := m.width - borderPadding
	if width < 20 {
		width = 20
	}
	return BoxStyle.Width(width).Render(strings.Join(parts, "\n\n"))
}

// NewSummaryTable creates the series table of spec: one row per series with
// its statistics and a sparkline.
func NewSummaryTable(spec *chart.Spec) table.Model {
	columns := []table.Column{
		{Title: "SERIES", Width: seriesNameWidth},
		{Title: "MIN", Width: statColumnWidth},
		{Title: "MAX", Width: statColumnWidth},
		{Title: "LAST", Width: statColumnWidth},
		{Title: "TREND", Width: sparklineWidth},
	}

	var rows []table.Row
	if spec != nil {
		rows = make([]table.Row, len(spec.Series))
		for i, s := range spec.Series {
			st := s.Stats()
			ys := make([]float64, 0, len(s.Points))
			for _, pt := range s.Points {
				ys = append(ys, pt.Y)
			}
			rows[i] = table.Row{
				s.Name,
				FormatValue(st.Min),
				FormatValue(st.Max),
				FormatValue(st.Last),
				Sparkline(ys, sparklineWidth),
			}
		}
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithHeight(len(rows)+1),
	)

	s := table.DefaultStyles()
	s.Header = TableHeaderStyle
	s.Selected = lipgloss.NewStyle()
	t.SetStyles(s)

	return t
}

// RenderChartSummary renders the title, the axis titles and the series table
// of spec.
func RenderChartSummary(spec *chart.Spec) string {
	if spec == nil {
		return ""
	}
	return renderSummary(spec, NewSummaryTable(spec))
}

func renderSummary(spec *chart.Spec, t table.Model) string {
	if spec == nil {
		return ""
	}
	var sb strings.Builder
	if spec.Title != "" {
		sb.WriteString(HeaderStyle.Render(spec.Title))
		sb.WriteString("\n")
	}
	if spec.XTitle != "" || spec.YTitle != "" {
		sb.WriteString(LabelStyle.Render(fmt.Sprintf("%s vs %s", orDash(spec.YTitle), orDash(spec.XTitle))))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(t.View())
	return strings.TrimRight(sb.String(), "\n ")
}

// FormatValue formats a statistic with thousand separators and at most two
// decimals.
func FormatValue(v float64) string {
	if math.Abs(v) < maxExactInt && v == math.Trunc(v) {
		return printer.Sprintf("%d", int64(v))
	}
	return printer.Sprintf("%.2f", v)
}

func (m *DashboardModel) renderDocument() string {
	title := "Source"
	if m.state == ViewStateCompiled {
		title = "Compiled"
	}
	scroll := MutedStyle.Render(printer.Sprintf("%3.f%%", m.document.ScrollPercent()*100))
	return HeaderStyle.Render(title) + " " + scroll + "\n" + m.document.View()
}

func (m *DashboardModel) renderStatusBar() string {
	var status string
	switch {
	case m.err != nil:
		status = ErrorStyle.Render(IconError + " " + m.err.Error())
	case m.status != "":
		status = OKStyle.Render(IconOK + " " + m.status)
	}

	help := "tab: view  ↑/↓: control  ←/→: value  s/p: save svg/png  v: source  c: compiled  " +
		"e: editor  l: copy link  r: refresh  q: quit"
	if m.state == ViewStateSource || m.state == ViewStateCompiled {
		help = "↑/↓ pgup/pgdn: scroll  esc: back  q: quit"
	}

	parts := []string{MutedStyle.Render(m.Permalink())}
	if status != "" {
		parts = append(parts, status)
	}
	parts = append(parts, MutedStyle.Render(help))
	return strings.Join(parts, "\n")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
