// Package ui provides the terminal presentation helpers: output styles, the
// re-process confirmation prompt, and the batch progress bar.
package ui

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	successColor = lipgloss.Color("#10B981")
	warningColor = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#EF4444")
	mutedColor   = lipgloss.Color("#6B7280")

	// Styles
	successStyle = lipgloss.NewStyle().Foreground(successColor)
	warnStyle    = lipgloss.NewStyle().Foreground(warningColor)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor)
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	titleStyle   = lipgloss.NewStyle().Bold(true)
)

// Success renders a completed-item line.
func Success(s string) string { return successStyle.Render("✓ " + s) }

// Failure renders a failed-item line.
func Failure(s string) string { return errorStyle.Render("✗ " + s) }

// Warn renders a warning line.
func Warn(s string) string { return warnStyle.Render(s) }

// Muted renders secondary information.
func Muted(s string) string { return mutedStyle.Render(s) }

// Title renders a bold heading.
func Title(s string) string { return titleStyle.Render(s) }
