package ui

import "github.com/charmbracelet/lipgloss"

// Colors used in the application.
var (
	colorPrimary   = lipgloss.Color("62")  // Purple
	colorSecondary = lipgloss.Color("241") // Gray
	colorMuted     = lipgloss.Color("240") // Darker gray
	colorHighlight = lipgloss.Color("212") // Pink
	colorSuccess   = lipgloss.Color("78")  // Green
	colorDanger    = lipgloss.Color("196") // Red
	colorWarn      = lipgloss.Color("214") // Orange
)

// Title style for the app header.
var Title = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("255")).
	Background(colorPrimary).
	Padding(0, 1)

// ChipActive style for a category included in the filter.
var ChipActive = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("255")).
	Background(colorPrimary).
	Padding(0, 1).
	MarginRight(1)

// ChipInactive style for a category outside the filter.
var ChipInactive = lipgloss.NewStyle().
	Foreground(colorSecondary).
	Background(lipgloss.Color("236")).
	Padding(0, 1).
	MarginRight(1)

// RaceRow style for a race that has not started.
var RaceRow = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Padding(0, 1)

// Countdown style for time to start.
var Countdown = lipgloss.NewStyle().
	Foreground(colorSuccess).
	Bold(true)

// CountdownSoon style for races under two minutes away.
var CountdownSoon = lipgloss.NewStyle().
	Foreground(colorWarn).
	Bold(true)

// CountdownStarted style for races inside the grace period.
var CountdownStarted = lipgloss.NewStyle().
	Foreground(colorDanger).
	Bold(true)

// CategoryBadge style for the category column.
var CategoryBadge = lipgloss.NewStyle().
	Foreground(colorHighlight)

// Meeting style for meeting names.
var Meeting = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Bold(true)

// RaceLabel style for race number and name.
var RaceLabel = lipgloss.NewStyle().
	Foreground(colorSecondary)

// EmptyStyle for the no-races message.
var EmptyStyle = lipgloss.NewStyle().
	Foreground(colorMuted).
	Italic(true).
	Padding(1, 2)

// StatusBar style for the bottom status bar.
var StatusBar = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(lipgloss.Color("236")).
	Padding(0, 1)

// StatusBarKey style for key hints in status bar.
var StatusBarKey = lipgloss.NewStyle().
	Foreground(colorHighlight).
	Bold(true)

// StatusBarText style for descriptive text in status bar.
var StatusBarText = lipgloss.NewStyle().
	Foreground(colorSecondary)

// ErrorStyle for displaying errors.
var ErrorStyle = lipgloss.NewStyle().
	Foreground(colorDanger).
	Bold(true).
	Padding(0, 1)

// CachedBadge marks a list served from the local cache.
var CachedBadge = lipgloss.NewStyle().
	Foreground(colorWarn).
	Padding(0, 1)

// DebugPanel style for the debug overlay.
var DebugPanel = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorPrimary).
	Padding(1, 2)

// DebugHeaderStyle for section headers in the debug overlay.
var DebugHeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorHighlight)
