package tui

import (
	"context"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifeeder/internal/feed"
	"notifeeder/internal/list"
)

type fakeStore struct {
	mu        sync.Mutex
	items     []list.Item
	refreshes int
}

func (f *fakeStore) Items() []list.Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]list.Item(nil), f.items...)
}

func (f *fakeStore) SetRead(_ context.Context, link string, read bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].Link == link {
			f.items[i].Read = read
		}
	}
	return nil
}

func (f *fakeStore) ToggleBookmark(_ context.Context, link string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	on := false
	for i := range f.items {
		if f.items[i].Link == link {
			f.items[i].Bookmarked = !f.items[i].Bookmarked
			on = f.items[i].Bookmarked
		}
	}
	return on, nil
}

func (f *fakeStore) Refresh(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	at := time.Date(2025, time.November, 26, 9, 0, 0, 0, time.UTC)
	f.items = append([]list.Item{{Article: feed.Article{Title: "Fresh", Link: "https://a.example/fresh", PublishedAt: &at, FeedTitle: "Feed A"}}}, f.items...)
	return 1, nil
}

func (f *fakeStore) isRead(link string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.items {
		if it.Link == link {
			return it.Read
		}
	}
	return false
}

func article(title, link, feedTitle string, read bool) list.Item {
	at := time.Date(2025, time.November, 25, 9, 0, 0, 0, time.UTC)
	return list.Item{
		Article: feed.Article{Title: title, Link: link, PublishedAt: &at, Summary: "About " + title + ".", FeedTitle: feedTitle},
		Read:    read,
	}
}

// run executes cmd and feeds every message it produces back into m.
func run(m tea.Model, cmd tea.Cmd) tea.Model {
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case itemsMsg, readMsg, bookmarkMsg, refreshedMsg, goToDetailMsg, goToTableMsg, goToFilterMsg, applyFilterMsg:
			var next tea.Cmd
			m, next = m.Update(msg)
			queue = append(queue, next)
		}
	}
	return m
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m tea.Model, s string) tea.Model {
	m, cmd := m.Update(key(s))
	return run(m, cmd)
}

func newTestRoot(t *testing.T) (tea.Model, *fakeStore) {
	t.Helper()
	store := &fakeStore{items: []list.Item{
		article("Go 1.26 released", "https://a.example/go", "Feed A", false),
		article("Rust news", "https://b.example/rust", "Feed B", true),
		article("Gophers everywhere", "https://a.example/gophers", "Feed A", false),
	}}
	var m tea.Model = newRoot(store)
	m = run(m, m.Init())
	m, _ = m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return m, store
}

func TestTableView(t *testing.T) {
	m, _ := newTestRoot(t)
	view := m.View()
	assert.Contains(t, view, "Go 1.26 released")
	assert.Contains(t, view, "Rust news")
	assert.Contains(t, view, "3 articles, 2 unread")

	m = press(m, "u")
	view = m.View()
	assert.NotContains(t, view, "Rust news")
	assert.Contains(t, view, "unread only")
}

func TestOpenMarksRead(t *testing.T) {
	m, store := newTestRoot(t)

	m = press(m, "j")
	m = press(m, "j")
	m = press(m, " ")
	root := m.(rootPage)
	require.Equal(t, detailView, root.viewMode)
	assert.Contains(t, m.View(), "About Gophers everywhere.")
	assert.True(t, store.isRead("https://a.example/gophers"))
	assert.Contains(t, m.View(), "• read")

	m = press(m, "r")
	assert.False(t, store.isRead("https://a.example/gophers"))

	m = press(m, "esc")
	assert.Equal(t, tableView, m.(rootPage).viewMode)
	assert.Contains(t, m.View(), "3 articles, 2 unread")
}

func TestToggleRead(t *testing.T) {
	m, store := newTestRoot(t)
	m = press(m, "r")
	assert.True(t, store.isRead("https://a.example/go"))
	assert.Contains(t, m.View(), "3 articles, 1 unread")
}

func TestToggleBookmark(t *testing.T) {
	m, store := newTestRoot(t)
	m = press(m, "b")
	assert.True(t, store.items[0].Bookmarked)
	assert.Contains(t, m.View(), "●★")

	m = press(m, "enter")
	assert.Contains(t, m.View(), "bookmarked")
	m = press(m, "b")
	assert.False(t, store.items[0].Bookmarked)
	assert.NotContains(t, m.View(), "bookmarked")
}

func TestFilter(t *testing.T) {
	m, _ := newTestRoot(t)
	m = press(m, "/")
	require.Equal(t, filterView, m.(rootPage).viewMode)

	for _, r := range "goph" {
		m, _ = m.Update(key(string(r)))
	}
	m = press(m, "enter")
	require.Equal(t, tableView, m.(rootPage).viewMode)
	view := m.View()
	assert.Contains(t, view, "Gophers everywhere")
	assert.NotContains(t, view, "Rust news")
	assert.Contains(t, view, `filter "goph"`)
}

func TestRefresh(t *testing.T) {
	m, store := newTestRoot(t)
	m = press(m, "R")
	assert.Equal(t, 1, store.refreshes)
	view := m.View()
	assert.Contains(t, view, "Refreshed: 1 new")
	assert.Contains(t, view, "Fresh")
	assert.Contains(t, view, "4 articles, 3 unread")
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "caf…", truncateString("café au lait", 4))
	assert.Equal(t, "c", truncateString("café", 1))
}
