package ui

import (
	"github.com/charmbracelet/lipgloss"
)

var styles = newPalette()

// Palette is a simple stylesheet built with named [lipgloss.Style] fields.
// ok/warn/err mirror the match classification bands.
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func newPalette() *Palette {
	return &Palette{
		title: bold("#5A56E0").MarginBottom(1),
		ok:    bold("#04B575"),
		err:   bold("#ED567A"),
		warn:  fg("#FFB454"),
		help:  fg("#626262").Italic(true),
	}
}

func fg(color string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}

func bold(color string) lipgloss.Style {
	return fg(color).Bold(true)
}
