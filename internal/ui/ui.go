// Package ui renders user-facing terminal output for the nimbus CLI.
// Everything here returns strings; callers decide the stream.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// MaxWidth is the maximum width for styled output.
const MaxWidth = 80

// Colors.
var (
	Green  = lipgloss.Color("2")
	Red    = lipgloss.Color("1")
	Yellow = lipgloss.Color("3")
	Subtle = lipgloss.Color("8")
)

var sectionStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(Subtle).
	Padding(0, 1).
	MarginBottom(1)

var titleStyle = lipgloss.NewStyle().Bold(true)

// StateDot returns a colored ● for a connection state name: green when
// connected, yellow while moving, red on error, subtle otherwise.
func StateDot(state string) string {
	switch state {
	case "connected":
		return lipgloss.NewStyle().Foreground(Green).Render("●")
	case "connecting", "disconnecting":
		return lipgloss.NewStyle().Foreground(Yellow).Render("●")
	case "error":
		return lipgloss.NewStyle().Foreground(Red).Render("●")
	default:
		return lipgloss.NewStyle().Foreground(Subtle).Render("●")
	}
}

// Section renders content inside a bordered box with a bold title.
func Section(title, content string, width int) string {
	if width > MaxWidth {
		width = MaxWidth
	}
	contentWidth := max(width-4, 40)
	return sectionStyle.Width(contentWidth).Render(
		titleStyle.Render(title) + "\n" + content,
	)
}

// StepOK returns a green checkmark step line.
func StepOK(msg string) string {
	return lipgloss.NewStyle().Foreground(Green).Render("✔") + " " + msg
}

// StepRun returns a yellow circle step line (in progress).
func StepRun(msg string) string {
	return lipgloss.NewStyle().Foreground(Yellow).Render("○") + " " + msg
}

// StepFail returns a red cross step line.
func StepFail(msg string) string {
	return lipgloss.NewStyle().Foreground(Red).Render("✘") + " " + msg
}

// Warn returns a yellow warning message (caller writes to stderr).
func Warn(msg string) string {
	return lipgloss.NewStyle().Foreground(Yellow).Render("⚠") + " " + msg
}

// Error returns a red error message (caller writes to stderr).
func Error(msg string) string {
	return lipgloss.NewStyle().Foreground(Red).Render("✘") + " " + msg
}

// KV renders aligned key-value lines for status output.
func KV(pairs [][2]string) string {
	keyWidth := 0
	for _, p := range pairs {
		if len(p[0]) > keyWidth {
			keyWidth = len(p[0])
		}
	}
	keyStyle := lipgloss.NewStyle().Foreground(Subtle)
	var lines []string
	for _, p := range pairs {
		lines = append(lines, fmt.Sprintf("%s  %s",
			keyStyle.Render(fmt.Sprintf("%-*s", keyWidth, p[0])), p[1]))
	}
	return strings.Join(lines, "\n")
}

// Table renders columnar data with subtle-colored headers.
// Each row is a slice of strings matching the headers length.
func Table(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var headerParts []string
	for i, h := range headers {
		headerParts = append(headerParts, fmt.Sprintf("%-*s", widths[i], h))
	}
	headerLine := lipgloss.NewStyle().Foreground(Subtle).Render(
		strings.Join(headerParts, "  "),
	)

	var lines []string
	lines = append(lines, headerLine)
	for _, row := range rows {
		var parts []string
		for i, cell := range row {
			w := 0
			if i < len(widths) {
				w = widths[i]
			}
			parts = append(parts, fmt.Sprintf("%-*s", w, cell))
		}
		lines = append(lines, strings.Join(parts, "  "))
	}

	return strings.Join(lines, "\n")
}
