package tui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func pageLayout(content string) string {
	return lipgloss.NewStyle().
		Padding(0, 1).
		Render(content)
}

func renderMenu(activeItem int, width int) string {
	divider := strings.Repeat("─", max(0, width))

	labels := []string{"Articles", "Filter"}
	styled := make([]string, 0, len(labels))
	for index, label := range labels {
		style := lipgloss.NewStyle().Foreground(muted())
		if activeItem == index {
			style = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Underline(true)
		}
		item := style.Render(label + " [" + strconv.Itoa(index+1) + "]")
		if index != len(labels)-1 {
			item += " | "
		}
		styled = append(styled, item)
	}

	menu := lipgloss.JoinHorizontal(lipgloss.Left, styled...)
	return lipgloss.JoinVertical(lipgloss.Left, menu, divider)
}

// truncateString cuts s to maxLen runes, marking the cut with "…".
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 1 {
		return string(r[:max(0, maxLen)])
	}
	return string(r[:maxLen-1]) + "…"
}
