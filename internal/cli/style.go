package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Theme defines the styles for text output.
type Theme struct {
	Name    string
	Heading lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
	Icons   ThemeIcons
}

// ThemeIcons defines the icon set for a theme.
type ThemeIcons struct {
	Pass   string
	Fail   string
	Warn   string
	Bullet string
}

// ColorTheme is used on terminals.
func ColorTheme() Theme {
	return Theme{
		Name:    "color",
		Heading: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")), // blue
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("34")),            // green
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),           // orange
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),           // red
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("242")),           // gray
		Icons: ThemeIcons{
			Pass:   "✓",
			Fail:   "✗",
			Warn:   "⚠",
			Bullet: "·",
		},
	}
}

// MonoTheme is used when output is piped or NO_COLOR is set.
func MonoTheme() Theme {
	return Theme{
		Name:    "mono",
		Heading: lipgloss.NewStyle(),
		Success: lipgloss.NewStyle(),
		Warning: lipgloss.NewStyle(),
		Error:   lipgloss.NewStyle(),
		Muted:   lipgloss.NewStyle(),
		Icons: ThemeIcons{
			Pass:   "+",
			Fail:   "x",
			Warn:   "!",
			Bullet: "-",
		},
	}
}

// ThemeFor picks the theme for w.
func ThemeFor(w io.Writer) Theme {
	if _, ok := os.LookupEnv("NO_COLOR"); ok || !isTTY(w) {
		return MonoTheme()
	}
	return ColorTheme()
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
