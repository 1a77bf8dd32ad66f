package ui

import "github.com/charmbracelet/lipgloss"

var (
	accent = lipgloss.Color("#3FB68B")
	soft   = lipgloss.Color("#8FD9B6")
	muted  = lipgloss.Color("#6B7280")
	danger = lipgloss.Color("#FF4757")
	warn   = lipgloss.Color("#FFB84D")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent).
			MarginTop(1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(muted).
			MarginBottom(1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(soft).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(danger).
			Bold(true)

	FieldErrorStyle = lipgloss.NewStyle().
			Foreground(danger)

	WarningStyle = lipgloss.NewStyle().
			Foreground(warn)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true)

	HelpStyle = lipgloss.NewStyle().
			Foreground(muted).
			MarginTop(1)

	ButtonStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(accent).
			Padding(0, 2).
			Bold(true)

	DisabledButtonStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FFFFFF")).
				Background(muted).
				Padding(0, 2)

	PreviewStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(muted).
			Padding(0, 1)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(1, 2)
)
