package tui

import "github.com/charmbracelet/lipgloss"

// Palette.
const (
	ColorHeader  = lipgloss.Color("39")
	ColorLabel   = lipgloss.Color("246")
	ColorValue   = lipgloss.Color("255")
	ColorMuted   = lipgloss.Color("240")
	ColorBorder  = lipgloss.Color("240")
	ColorOK      = lipgloss.Color("42")
	ColorWarning = lipgloss.Color("214")
	ColorError   = lipgloss.Color("196")
	ColorAccent  = lipgloss.Color("57")
	ColorTabText = lipgloss.Color("229")
)

// Icons.
const (
	IconCursor = "›"
	IconLeft   = "◀"
	IconRight  = "▶"
	IconError  = "✗"
	IconOK     = "✓"
)

// Shared styles.
//
//nolint:gochecknoglobals // lipgloss styles are immutable values reused by every render.
var (
	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorHeader)

	ActiveTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorTabText).
			Background(ColorAccent).
			Padding(0, 1)

	TabStyle = lipgloss.NewStyle().Foreground(ColorLabel).Padding(0, 1)

	LabelStyle   = lipgloss.NewStyle().Foreground(ColorLabel)
	ValueStyle   = lipgloss.NewStyle().Foreground(ColorValue).Bold(true)
	FocusedStyle = lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)
	MutedStyle   = lipgloss.NewStyle().Foreground(ColorMuted)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	OKStyle      = lipgloss.NewStyle().Foreground(ColorOK)

	TableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorLabel).Padding(0, 1)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)
)
