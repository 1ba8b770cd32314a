// Package ui owns the structured logger and the styled terminal output.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
)

// Logger is the package-level structured logger.
var Logger = log.New(io.Discard)

// Out receives styled messages.
var Out io.Writer = os.Stderr

var (
	headerStyle  lipgloss.Style
	successStyle lipgloss.Style
	warningStyle lipgloss.Style
	errorStyle   lipgloss.Style
	dimStyle     lipgloss.Style
	boldStyle    lipgloss.Style
)

// Init sets up color detection, styles and the logger. Call it once at
// startup. NO_COLOR disables color like noColor does.
func Init(noColor, verbose bool) {
	noColor = noColor || os.Getenv("NO_COLOR") != ""

	lipgloss.SetHasDarkBackground(true)
	if noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	} else {
		lipgloss.SetColorProfile(termenv.EnvColorProfile())
	}

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	warningStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	dimStyle = lipgloss.NewStyle().Faint(true)
	boldStyle = lipgloss.NewStyle().Bold(true)

	Logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: false,
	})
	if verbose {
		Logger.SetLevel(log.DebugLevel)
	}
	if noColor {
		Logger.SetStyles(log.DefaultStyles())
	}
}

func Bold(s string) string   { return boldStyle.Render(s) }
func Dim(s string) string    { return dimStyle.Render(s) }
func Red(s string) string    { return errorStyle.Render(s) }
func Green(s string) string  { return successStyle.Render(s) }
func Yellow(s string) string { return warningStyle.Render(s) }

// Success prints a green check with a message.
func Success(msg string) {
	fmt.Fprintf(Out, "%s %s\n", successStyle.Render("✓"), msg)
}

// Warning prints a styled warning message.
func Warning(msg string) {
	fmt.Fprintf(Out, "%s %s\n", warningStyle.Render("⚠"), msg)
}

// Error prints a styled error message.
func Error(msg string) {
	fmt.Fprintf(Out, "%s %s\n", errorStyle.Render("✗"), msg)
}

// SectionHeader prints a styled section divider with a label.
func SectionHeader(label string) {
	fmt.Fprintf(Out, "\n%s\n\n", headerStyle.Render(fmt.Sprintf("── %s ──", label)))
}

// Pair is one summary line.
type Pair struct {
	Key   string
	Value string
}

// Summary prints a titled block of aligned key/value lines.
func Summary(title string, pairs []Pair) {
	SectionHeader(title)
	width := 0
	for _, p := range pairs {
		if n := lipgloss.Width(p.Key); n > width {
			width = n
		}
	}
	for _, p := range pairs {
		pad := strings.Repeat(" ", width-lipgloss.Width(p.Key))
		fmt.Fprintf(Out, "  %s%s  %s\n", boldStyle.Render(p.Key), pad, p.Value)
	}
}
