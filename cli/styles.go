// cli/styles.go
package cli

import (
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// theme holds every style used by the chat view.
type theme struct {
	header  lipgloss.Style
	you     lipgloss.Style
	bot     lipgloss.Style
	history lipgloss.Style
	errText lipgloss.Style
	faint   lipgloss.Style
	notice  lipgloss.Style
	spinner lipgloss.Style
	// glamour is the glamour standard style matching the palette.
	glamour string
}

func newTheme(name string) theme {
	if name == "light" {
		return theme{
			header:  lipgloss.NewStyle().Background(lipgloss.Color("153")).Foreground(lipgloss.Color("16")).Padding(0, 1),
			you:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("24")),
			bot:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("90")),
			history: lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("242")),
			errText: lipgloss.NewStyle().Foreground(lipgloss.Color("160")),
			faint:   lipgloss.NewStyle().Faint(true),
			notice:  lipgloss.NewStyle().Foreground(lipgloss.Color("130")),
			spinner: lipgloss.NewStyle().Foreground(lipgloss.Color("162")),
			glamour: "light",
		}
	}
	return theme{
		header:  lipgloss.NewStyle().Background(lipgloss.Color("62")).Foreground(lipgloss.Color("230")).Padding(0, 1),
		you:     lipgloss.NewStyle().Bold(true),
		bot:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5")),
		history: lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("244")),
		errText: lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		faint:   lipgloss.NewStyle().Faint(true),
		notice:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		spinner: lipgloss.NewStyle().Foreground(lipgloss.Color("205")),
		glamour: "dark",
	}
}

// newMarkdownRenderer returns nil when glamour cannot be set up; callers then
// show answers as plain text.
func newMarkdownRenderer(style string, width int) *glamour.TermRenderer {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return r
}
