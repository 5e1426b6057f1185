// Package server exposes the article cache, read state, bookmarks and refresh over MCP.
package server

import (
	"context"
	"errors"
	"strings"
	"time"

	mcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/samber/lo"

	"notifeeder/internal/feed"
	"notifeeder/internal/ingest"
	"notifeeder/internal/list"
	"notifeeder/internal/version"
)

const defaultLimit = 50

type ListArticlesParams struct {
	Feed       *string `json:"feed,omitempty" jsonschema:"feed url to restrict to"`
	Unread     bool    `json:"unread,omitempty" jsonschema:"only unread articles"`
	Bookmarked bool    `json:"bookmarked,omitempty" jsonschema:"only bookmarked articles"`
	Hours      int     `json:"hours,omitempty" jsonschema:"only articles published in the last N hours"`
	Limit      *int    `json:"limit,omitempty"`
}

type ArticleList struct {
	Count int         `json:"count"`
	Items []list.Item `json:"items"`
}

type SetReadParams struct {
	Links []string `json:"links" jsonschema:"article links to update"`
	Read  bool     `json:"read"`
}

type SetBookmarkParams struct {
	Link       string `json:"link" jsonschema:"article link"`
	Bookmarked *bool  `json:"bookmarked,omitempty" jsonschema:"set explicitly; toggles when omitted"`
}

type BookmarkResult struct {
	Link       string `json:"link"`
	Bookmarked bool   `json:"bookmarked"`
}

type MarkAllReadParams struct {
	Feed *string `json:"feed,omitempty" jsonschema:"feed url; all feeds when omitted"`
}

type UpdateResult struct {
	Updated int `json:"updated"`
}

type FeedInfo struct {
	feed.Source
	Notify   bool `json:"notify"`
	Articles int  `json:"articles"`
	Unread   int  `json:"unread"`
}

type FeedList struct {
	NotificationsEnabled bool       `json:"notifications_enabled"`
	Feeds                []FeedInfo `json:"feeds"`
}

type FeedNotificationsParams struct {
	Feed    string `json:"feed" jsonschema:"feed url"`
	Enabled bool   `json:"enabled"`
}

type RefreshResult struct {
	CycleID  string         `json:"cycle_id"`
	Fetched  map[string]int `json:"fetched"`
	Added    int            `json:"added"`
	New      []string       `json:"new"`
	Notified []string       `json:"notified"`
}

type noParams struct{}

// Server answers MCP tool calls against one ingest service.
type Server struct {
	svc *ingest.Service
	now func() time.Time
}

func New(svc *ingest.Service) *Server {
	return &Server{svc: svc, now: time.Now}
}

// MCP builds the protocol server with every tool registered.
func (s *Server) MCP() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "notifeeder", Version: version.Version}, nil)

	mcp.AddTool(server, &mcp.Tool{Name: "list_articles", Description: "List cached articles, newest first"}, s.handleListArticles)
	mcp.AddTool(server, &mcp.Tool{Name: "set_read", Description: "Mark articles read or unread by link"}, s.handleSetRead)
	mcp.AddTool(server, &mcp.Tool{Name: "set_bookmark", Description: "Bookmark or unbookmark an article by link"}, s.handleSetBookmark)
	mcp.AddTool(server, &mcp.Tool{Name: "mark_all_read", Description: "Mark every cached article of a feed, or of all feeds, as read"}, s.handleMarkAllRead)
	mcp.AddTool(server, &mcp.Tool{Name: "list_feeds", Description: "List configured feeds with notification and unread counts"}, s.handleListFeeds)
	mcp.AddTool(server, &mcp.Tool{Name: "set_feed_notifications", Description: "Enable or disable notifications for one feed"}, s.handleFeedNotifications)
	mcp.AddTool(server, &mcp.Tool{Name: "refresh", Description: "Fetch all feeds now and report what was new"}, s.handleRefresh)
	return server
}

// Run serves MCP over stdio until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.MCP().Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) handleListArticles(ctx context.Context, req *mcp.CallToolRequest, p ListArticlesParams) (*mcp.CallToolResult, ArticleList, error) {
	opts := list.Options{Unread: p.Unread, Bookmarked: p.Bookmarked, Limit: defaultLimit}
	if p.Feed != nil {
		opts.Feed = strings.TrimSpace(*p.Feed)
	}
	if p.Hours > 0 {
		opts.Since = time.Duration(p.Hours) * time.Hour
	}
	if p.Limit != nil && *p.Limit > 0 {
		opts.Limit = *p.Limit
	}
	items := list.Select(s.svc.State, opts, s.now())
	if items == nil {
		items = []list.Item{}
	}
	return nil, ArticleList{Count: len(items), Items: items}, nil
}

func (s *Server) handleSetRead(ctx context.Context, req *mcp.CallToolRequest, p SetReadParams) (*mcp.CallToolResult, UpdateResult, error) {
	links := lo.Uniq(lo.Compact(lo.Map(p.Links, func(l string, _ int) string { return strings.TrimSpace(l) })))
	if len(links) == 0 {
		return nil, UpdateResult{}, errors.New("links is required")
	}
	for _, link := range links {
		if err := s.svc.State.ReadState.SetRead(ctx, link, p.Read); err != nil {
			return nil, UpdateResult{}, err
		}
	}
	return nil, UpdateResult{Updated: len(links)}, nil
}

func (s *Server) handleSetBookmark(ctx context.Context, req *mcp.CallToolRequest, p SetBookmarkParams) (*mcp.CallToolResult, BookmarkResult, error) {
	link := strings.TrimSpace(p.Link)
	if link == "" {
		return nil, BookmarkResult{}, errors.New("link is required")
	}
	bm := s.svc.State.Bookmarks
	if p.Bookmarked == nil {
		on, err := bm.Toggle(ctx, link)
		return nil, BookmarkResult{Link: link, Bookmarked: on}, err
	}
	if err := bm.Set(ctx, link, *p.Bookmarked); err != nil {
		return nil, BookmarkResult{}, err
	}
	return nil, BookmarkResult{Link: link, Bookmarked: *p.Bookmarked}, nil
}

func (s *Server) handleMarkAllRead(ctx context.Context, req *mcp.CallToolRequest, p MarkAllReadParams) (*mcp.CallToolResult, UpdateResult, error) {
	opts := list.Options{Unread: true}
	if p.Feed != nil {
		opts.Feed = strings.TrimSpace(*p.Feed)
	}
	links := lo.Map(list.Select(s.svc.State, opts, s.now()), func(it list.Item, _ int) string { return it.Link })
	if err := s.svc.State.ReadState.MarkAllRead(ctx, links); err != nil {
		return nil, UpdateResult{}, err
	}
	return nil, UpdateResult{Updated: len(links)}, nil
}

func (s *Server) handleListFeeds(ctx context.Context, req *mcp.CallToolRequest, _ noParams) (*mcp.CallToolResult, FeedList, error) {
	st := s.svc.State
	out := FeedList{NotificationsEnabled: st.Preferences.Enabled(), Feeds: []FeedInfo{}}
	_, known := st.Preferences.Snapshot()
	for _, src := range st.Sources.List() {
		arts := st.Articles.Articles(src.URL)
		out.Feeds = append(out.Feeds, FeedInfo{
			Source: src,
			// feeds not seen by a cycle yet are enabled on first sight
			Notify:   st.Preferences.FeedEnabled(src.URL) || !lo.Contains(known, src.URL),
			Articles: len(arts),
			Unread:   lo.CountBy(arts, func(a feed.Article) bool { return !st.ReadState.IsRead(a.Link) }),
		})
	}
	return nil, out, nil
}

func (s *Server) handleFeedNotifications(ctx context.Context, req *mcp.CallToolRequest, p FeedNotificationsParams) (*mcp.CallToolResult, UpdateResult, error) {
	url := strings.TrimSpace(p.Feed)
	if _, ok := s.svc.State.Sources.Get(url); !ok {
		return nil, UpdateResult{}, errors.New("feed not configured: " + url)
	}
	if err := s.svc.State.Preferences.SetFeedEnabled(ctx, url, p.Enabled); err != nil {
		return nil, UpdateResult{}, err
	}
	return nil, UpdateResult{Updated: 1}, nil
}

func (s *Server) handleRefresh(ctx context.Context, req *mcp.CallToolRequest, _ noParams) (*mcp.CallToolResult, RefreshResult, error) {
	res, err := s.svc.Runner.RunOnce(ctx)
	if err != nil {
		return nil, RefreshResult{}, err
	}
	linksOf := func(entries []feed.Entry) []string {
		out := lo.Map(entries, func(e feed.Entry, _ int) string { return e.Link })
		if out == nil {
			out = []string{}
		}
		return out
	}
	return nil, RefreshResult{
		CycleID:  res.ID,
		Fetched:  res.Fetched,
		Added:    res.Added,
		New:      linksOf(res.New),
		Notified: linksOf(res.Notified),
	}, nil
}
