// Package tui is an interactive reader for the article cache.
package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"notifeeder/internal/ingest"
	"notifeeder/internal/list"
)

// Store is what the reader needs from the article cache.
type Store interface {
	Items() []list.Item
	SetRead(ctx context.Context, link string, read bool) error
	ToggleBookmark(ctx context.Context, link string) (bool, error)
	Refresh(ctx context.Context) (int, error)
}

type viewMode int

const (
	tableView viewMode = iota
	filterView
	detailView
)

// Navigation messages
type goToDetailMsg struct {
	item list.Item
}
type goToFilterMsg struct{}
type goToTableMsg struct{}
type applyFilterMsg struct {
	query string
}

// Data messages
type itemsMsg struct {
	items []list.Item
}
type readMsg struct {
	link string
	read bool
	err  error
}
type bookmarkMsg struct {
	link string
	on   bool
	err  error
}
type refreshedMsg struct {
	added int
	err   error
}

type rootPage struct {
	store      Store
	viewMode   viewMode
	detailPage detailPage
	tablePage  tablePage
	filterPage filterPage
	width      int
	height     int
}

func newRoot(store Store) rootPage {
	return rootPage{
		store:      store,
		tablePage:  TablePage(store),
		detailPage: detailPage{store: store},
		filterPage: filterPage{input: initializeInput()},
	}
}

// Run opens the reader over svc until the user quits.
func Run(ctx context.Context, svc *ingest.Service) error {
	p := tea.NewProgram(newRoot(serviceStore{svc: svc}), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("reader: %w", err)
	}
	return nil
}

func (m rootPage) Init() tea.Cmd {
	return loadItems(m.store)
}

func (m rootPage) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		var cmds []tea.Cmd

		m.tablePage, cmd = update[tablePage](m.tablePage, msg)
		cmds = append(cmds, cmd)

		m.detailPage, cmd = update[detailPage](m.detailPage, msg)
		cmds = append(cmds, cmd)

		m.filterPage, cmd = update[filterPage](m.filterPage, msg)
		cmds = append(cmds, cmd)

		m.width = msg.Width - 4
		m.height = msg.Height - 4
		return m, tea.Batch(cmds...)
	case itemsMsg, refreshedMsg, applyFilterMsg:
		if _, ok := msg.(applyFilterMsg); ok {
			m.viewMode = tableView
		}
		m.tablePage, cmd = update[tablePage](m.tablePage, msg)
		return m, cmd
	case readMsg, bookmarkMsg:
		var cmds []tea.Cmd
		m.tablePage, cmd = update[tablePage](m.tablePage, msg)
		cmds = append(cmds, cmd)
		m.detailPage, cmd = update[detailPage](m.detailPage, msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)
	case goToFilterMsg:
		m.viewMode = filterView
		m.filterPage, cmd = update[filterPage](m.filterPage, msg)
		return m, cmd
	case goToTableMsg:
		m.viewMode = tableView
		return m, nil
	case goToDetailMsg:
		m.viewMode = detailView
		m.detailPage, cmd = update[detailPage](m.detailPage, msg)
		return m, cmd
	}

	switch m.viewMode {
	case tableView:
		m.tablePage, cmd = update[tablePage](m.tablePage, msg)
	case detailView:
		m.detailPage, cmd = update[detailPage](m.detailPage, msg)
	case filterView:
		m.filterPage, cmd = update[filterPage](m.filterPage, msg)
	}
	return m, cmd
}

func (m rootPage) View() string {
	switch m.viewMode {
	case detailView:
		return m.detailPage.View()
	case filterView:
		return m.filterPage.View()
	case tableView:
		return m.tablePage.View()
	default:
		return "Unknown View"
	}
}

func update[T any](model tea.Model, msg tea.Msg) (T, tea.Cmd) {
	newModel, cmd := model.Update(msg)
	return newModel.(T), cmd
}

const storeTimeout = 30 * time.Second

func loadItems(s Store) tea.Cmd {
	return func() tea.Msg { return itemsMsg{items: s.Items()} }
}

func setRead(s Store, link string, read bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return readMsg{link: link, read: read, err: s.SetRead(ctx, link, read)}
	}
}

func toggleBookmark(s Store, link string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		on, err := s.ToggleBookmark(ctx, link)
		return bookmarkMsg{link: link, on: on, err: err}
	}
}

func refresh(s Store) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		n, err := s.Refresh(ctx)
		return refreshedMsg{added: n, err: err}
	}
}

type serviceStore struct {
	svc *ingest.Service
}

func (s serviceStore) Items() []list.Item {
	return list.Select(s.svc.State, list.Options{}, time.Now())
}

func (s serviceStore) SetRead(ctx context.Context, link string, read bool) error {
	return s.svc.State.ReadState.SetRead(ctx, link, read)
}

func (s serviceStore) ToggleBookmark(ctx context.Context, link string) (bool, error) {
	return s.svc.State.Bookmarks.Toggle(ctx, link)
}

func (s serviceStore) Refresh(ctx context.Context) (int, error) {
	res, err := s.svc.Runner.RunOnce(ctx)
	return len(res.New), err
}
