// Package styles provides shared lipgloss styles for gitks output and prompts.
package styles

import "charm.land/lipgloss/v2"

// Palette
var (
	// Primary is the main accent color (cyan/teal)
	Primary = lipgloss.Color("62")

	// Success is used for checkmarks and positive outcomes (green)
	Success = lipgloss.Color("82")

	// Error is used for error messages (red)
	Error = lipgloss.Color("196")

	// Muted is used for secondary text and borders (gray)
	Muted = lipgloss.Color("240")
)

// SymbolSuccess prefixes completed steps.
const SymbolSuccess = "✓"

var (
	// Bold applies bold formatting
	Bold = lipgloss.NewStyle().Bold(true)

	// PrimaryStyle applies the primary color
	PrimaryStyle = lipgloss.NewStyle().Foreground(Primary)

	// SuccessStyle applies the success color
	SuccessStyle = lipgloss.NewStyle().Foreground(Success)

	// ErrorStyle applies the error color
	ErrorStyle = lipgloss.NewStyle().Foreground(Error)

	// MutedStyle applies the muted color
	MutedStyle = lipgloss.NewStyle().Foreground(Muted)
)
