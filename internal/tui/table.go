package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/samber/lo"

	"notifeeder/internal/list"
)

type tablePage struct {
	store Store
	all   []list.Item
	items []list.Item // all, after the unread and text filters
	table *table.Table

	query      string
	unreadOnly bool
	status     string
	refreshing bool

	ready       bool
	cursor      int
	currentPage int
	totalPages  int
	tableWidth  int
	titleWidth  int
	feedWidth   int
	dateWidth   int
	pageSize    int
}

func TablePage(store Store) tablePage {
	return tablePage{store: store, pageSize: 10, totalPages: 1}
}

func (m tablePage) Init() tea.Cmd {
	return nil
}

// selected returns the item under the cursor.
func (m tablePage) selected() (list.Item, bool) {
	i := m.currentPage*m.pageSize + m.cursor
	if i < 0 || i >= len(m.items) {
		return list.Item{}, false
	}
	return m.items[i], true
}

func (m tablePage) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case itemsMsg:
		m.all = msg.items
		m.applyFilters()
		return m, nil
	case applyFilterMsg:
		m.query = strings.TrimSpace(msg.query)
		m.currentPage, m.cursor = 0, 0
		m.applyFilters()
		return m, nil
	case readMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
			return m, nil
		}
		for i := range m.all {
			if m.all[i].Link == msg.link {
				m.all[i].Read = msg.read
			}
		}
		m.applyFilters()
		return m, nil
	case bookmarkMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
			return m, nil
		}
		for i := range m.all {
			if m.all[i].Link == msg.link {
				m.all[i].Bookmarked = msg.on
			}
		}
		m.applyFilters()
		return m, nil
	case refreshedMsg:
		m.refreshing = false
		if msg.err != nil {
			m.status = fmt.Sprintf("Refresh failed: %v", msg.err)
			return m, nil
		}
		m.status = fmt.Sprintf("Refreshed: %d new", msg.added)
		return m, loadItems(m.store)
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case " ", "enter":
			if it, ok := m.selected(); ok {
				cmds := []tea.Cmd{func() tea.Msg { return goToDetailMsg{item: it} }}
				if !it.Read {
					cmds = append(cmds, setRead(m.store, it.Link, true))
				}
				return m, tea.Batch(cmds...)
			}
			return m, nil
		case "r":
			if it, ok := m.selected(); ok {
				return m, setRead(m.store, it.Link, !it.Read)
			}
			return m, nil
		case "b":
			if it, ok := m.selected(); ok {
				return m, toggleBookmark(m.store, it.Link)
			}
			return m, nil
		case "u":
			m.unreadOnly = !m.unreadOnly
			m.currentPage, m.cursor = 0, 0
			m.applyFilters()
			return m, nil
		case "R":
			if m.refreshing {
				return m, nil
			}
			m.refreshing = true
			m.status = "Refreshing…"
			return m, refresh(m.store)
		case "2", "/":
			return m, func() tea.Msg { return goToFilterMsg{} }
		case "k", "up":
			if m.cursor > 0 {
				m.cursor--
			} else if m.currentPage > 0 {
				m.currentPage--
				m.cursor = m.pageSize - 1
			}
			m.updateTableRows()
			return m, nil
		case "j", "down":
			onPage := min(m.pageSize, len(m.items)-m.currentPage*m.pageSize)
			if m.cursor < onPage-1 {
				m.cursor++
			} else if m.currentPage < m.totalPages-1 {
				m.currentPage++
				m.cursor = 0
			}
			m.updateTableRows()
			return m, nil
		case "g":
			m.currentPage, m.cursor = 0, 0
			m.updateTableRows()
			return m, nil
		case "G":
			if len(m.items) == 0 {
				return m, nil
			}
			last := len(m.items) - 1
			m.currentPage, m.cursor = last/m.pageSize, last%m.pageSize
			m.updateTableRows()
			return m, nil
		case "l", "right":
			if m.currentPage < m.totalPages-1 {
				m.currentPage++
				m.cursor = 0
				m.updateTableRows()
				return m, tea.ClearScreen
			}
			return m, nil
		case "h", "left":
			if m.currentPage > 0 {
				m.currentPage--
				m.cursor = 0
				m.updateTableRows()
				return m, tea.ClearScreen
			}
			return m, nil
		}
	case tea.WindowSizeMsg:
		m.tableWidth = msg.Width - 2
		m.configureTable(msg.Width, msg.Height-6)
		m.ready = true
		return m, tea.ClearScreen
	}

	return m, nil
}

// applyFilters recomputes items from all and keeps the cursor in range.
func (m *tablePage) applyFilters() {
	q := strings.ToLower(m.query)
	m.items = lo.Filter(m.all, func(it list.Item, _ int) bool {
		if m.unreadOnly && it.Read {
			return false
		}
		return q == "" ||
			strings.Contains(strings.ToLower(it.Title), q) ||
			strings.Contains(strings.ToLower(it.FeedTitle), q)
	})
	m.totalPages = max(1, (len(m.items)+m.pageSize-1)/m.pageSize)
	if m.currentPage >= m.totalPages {
		m.currentPage = m.totalPages - 1
	}
	if g := m.currentPage*m.pageSize + m.cursor; g >= len(m.items) && len(m.items) > 0 {
		last := len(m.items) - 1
		m.currentPage, m.cursor = last/m.pageSize, last%m.pageSize
	}
	m.updateTableRows()
}

func (m tablePage) View() string {
	if !m.ready {
		return "...Loading"
	}

	menu := renderMenu(0, m.tableWidth)
	body := "No articles cached yet. Press R to refresh."
	if len(m.all) > 0 && len(m.items) == 0 {
		body = "No articles match the current filters."
	}
	if len(m.items) > 0 && m.table != nil {
		body = m.table.Render()
	}

	unread := lo.CountBy(m.all, func(it list.Item) bool { return !it.Read })
	info := fmt.Sprintf("%d articles, %d unread • page %d/%d", len(m.items), unread, m.currentPage+1, m.totalPages)
	if m.unreadOnly {
		info += " • unread only"
	}
	if m.query != "" {
		info += fmt.Sprintf(" • filter %q", m.query)
	}
	if m.status != "" {
		info += " • " + m.status
	}
	infoLine := lipgloss.NewStyle().Foreground(muted()).Render(info)

	helpInfo := helpBar([]string{
		"j/k: move",
		"l/h: page",
		"Space: read",
		"r: toggle read",
		"b: bookmark",
		"u: unread only",
		"R: refresh",
		"/: filter",
		"q: quit",
	})

	return pageLayout(lipgloss.JoinVertical(lipgloss.Left, menu, body, infoLine, helpInfo))
}

func (m *tablePage) updateTableRows() {
	if len(m.items) == 0 {
		m.table = nil
		return
	}

	headers := []string{
		" ",
		truncateString("Title", m.titleWidth),
		truncateString("Feed", m.feedWidth),
		truncateString("Date", m.dateWidth),
	}

	var rows [][]string
	start := m.currentPage * m.pageSize
	end := min(start+m.pageSize, len(m.items))
	for _, it := range m.items[start:end] {
		marker := "●"
		if it.Read {
			marker = " "
		}
		if it.Bookmarked {
			marker += "★"
		}
		title := it.Title
		if title == "" {
			title = "No title"
		}
		date := "-"
		if it.PublishedAt != nil {
			date = it.PublishedAt.Local().Format("2006-01-02")
		}
		rows = append(rows, []string{
			marker,
			truncateString(title, m.titleWidth),
			truncateString(it.FeedTitle, m.feedWidth),
			truncateString(date, m.dateWidth),
		})
	}

	if m.cursor >= len(rows) {
		m.cursor = len(rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}

	lightBlue := lightBlue()
	darkBlue := darkBlue()
	headerStyle := lipgloss.NewStyle().
		Padding(0, 1).
		Bold(true).
		Foreground(darkBlue).
		Align(lipgloss.Center)
	cursor := m.cursor

	m.table = table.New().
		Width(m.tableWidth).
		Border(lipgloss.ThickBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(darkBlue)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 { // header row
				return headerStyle
			}
			if row == cursor {
				return lipgloss.NewStyle().
					Padding(0, 1).
					Background(lightBlue).
					Foreground(lipgloss.Color("0"))
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

// configureTable derives the page size and column widths from the window.
func (m *tablePage) configureTable(width, height int) {
	m.pageSize = max(5, height-6)

	m.dateWidth = 10
	// borders plus one padding column either side of each of the four cells
	borderPadding := 5 + 2*4
	remaining := max(0, width-m.dateWidth-1-borderPadding)
	m.titleWidth = max(20, remaining*65/100)
	m.feedWidth = max(12, remaining-m.titleWidth)

	m.applyFilters()
}
