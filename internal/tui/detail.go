package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"notifeeder/internal/list"
)

type detailPage struct {
	store    Store
	width    int
	height   int
	viewport viewport.Model
	item     *list.Item
}

func (m detailPage) Init() tea.Cmd {
	return nil
}

func (m detailPage) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, func() tea.Msg { return goToTableMsg{} }
		case "r":
			if m.item != nil {
				return m, setRead(m.store, m.item.Link, !m.item.Read)
			}
			return m, nil
		case "b":
			if m.item != nil {
				return m, toggleBookmark(m.store, m.item.Link)
			}
			return m, nil
		case "k", "up":
			m.viewport.ScrollUp(1)
			return m, nil
		case "j", "down":
			m.viewport.ScrollDown(1)
			return m, nil
		case "g":
			m.viewport.GotoTop()
			return m, nil
		case "G":
			m.viewport.GotoBottom()
			return m, nil
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width - 4
		m.height = msg.Height - 4
		if m.item != nil {
			m.viewport = setupViewport(m.width, m.height, *m.item)
		}
		return m, nil
	case goToDetailMsg:
		it := msg.item
		m.item = &it
		m.viewport = setupViewport(m.width, m.height, it)
		return m, nil
	case readMsg:
		if m.item != nil && msg.err == nil && m.item.Link == msg.link {
			m.item.Read = msg.read
		}
		return m, nil
	case bookmarkMsg:
		if m.item != nil && msg.err == nil && m.item.Link == msg.link {
			m.item.Bookmarked = msg.on
		}
		return m, nil
	}

	return m, nil
}

func (m detailPage) View() string {
	if m.item == nil {
		return "No article selected"
	}
	it := m.item
	darkBlue := darkBlue()
	width := max(20, m.width-8)

	title := it.Title
	if title == "" {
		title = "No title"
	}
	titleRendered := lipgloss.NewStyle().
		Foreground(darkBlue).
		Bold(true).
		MarginBottom(1).
		Width(width).
		Render(title)

	linkRendered := lipgloss.NewStyle().
		Foreground(lightBlue()).
		Italic(true).
		Width(width).
		Render(it.Link)

	state := "unread"
	if it.Read {
		state = "read"
	}
	if it.Bookmarked {
		state += " • bookmarked"
	}
	date := "unknown date"
	if it.PublishedAt != nil {
		date = it.PublishedAt.Local().Format("2006-01-02 15:04")
	}
	meta := lipgloss.NewStyle().
		Foreground(muted()).
		MarginBottom(1).
		Render(fmt.Sprintf("%s • %s • %s", it.FeedTitle, date, state))

	scroll := min(max(m.viewport.ScrollPercent(), 0), 1)
	scrollRendered := lipgloss.NewStyle().
		Foreground(muted()).
		Bold(true).
		Render(fmt.Sprintf("Scroll: %d%%", int(scroll*100)))

	helpInfo := lipgloss.NewStyle().MarginTop(1).Render(helpBar([]string{
		"j/k: scroll",
		"g/G: top/bottom",
		"r: toggle read",
		"b: bookmark",
		"esc/q: back",
	}))

	content := lipgloss.JoinVertical(lipgloss.Left,
		titleRendered,
		linkRendered,
		meta,
		m.viewport.View(),
		scrollRendered,
		helpInfo)

	return pageLayout(lipgloss.NewStyle().
		Border(lipgloss.ThickBorder()).
		BorderForeground(darkBlue).
		Render(content))
}

// setupViewport wraps the article summary to the available width.
func setupViewport(width, height int, it list.Item) viewport.Model {
	contentWidth := max(20, width-8)
	body := it.Summary
	if body == "" {
		body = "No summary available."
	}
	vp := viewport.New(contentWidth, max(5, height-12))
	vp.SetContent(lipgloss.NewStyle().Width(contentWidth).Render(body))
	return vp
}
