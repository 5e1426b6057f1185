package tui

import (
	"github.com/charmbracelet/lipgloss"
)

func lightBlue() lipgloss.Color {
	return lipgloss.Color("#87CEEB")
}

func darkBlue() lipgloss.Color {
	return lipgloss.Color("#4682B4")
}

func muted() lipgloss.Color {
	return lipgloss.Color("8")
}
