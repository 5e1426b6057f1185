// Package feedtest serves mutable RSS documents over HTTP for tests and the
// demo-feeds command.
package feedtest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"
)

// Item is one <item> of a served feed.
type Item struct {
	Title       string
	Link        string
	Description string
	PubDate     string
}

type route struct {
	title  string
	items  []Item
	status int
	delay  time.Duration
	raw    []byte
	hits   int
}

// Feeds is an http.Handler serving one RSS document per path.
type Feeds struct {
	mu     sync.Mutex
	routes map[string]*route
}

func NewFeeds() *Feeds {
	return &Feeds{routes: make(map[string]*route)}
}

func (f *Feeds) route(path string) *route {
	r, ok := f.routes[path]
	if !ok {
		r = &route{status: http.StatusOK}
		f.routes[path] = r
	}
	return r
}

// Set replaces the channel title and items served at path and clears any failure.
func (f *Feeds) Set(path, title string, items ...Item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.route(path)
	r.title, r.items, r.raw, r.status = title, append([]Item(nil), items...), nil, http.StatusOK
}

// SetRaw serves body verbatim at path, for malformed documents.
func (f *Feeds) SetRaw(path string, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.route(path)
	r.raw, r.status = append([]byte(nil), body...), http.StatusOK
}

// Fail makes path answer with status.
func (f *Feeds) Fail(path string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.route(path).status = status
}

// Delay holds every response at path for d, or until the client goes away.
func (f *Feeds) Delay(path string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.route(path).delay = d
}

// Hits reports how many requests path received.
func (f *Feeds) Hits(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.routes[path]; ok {
		return r.hits
	}
	return 0
}

// Paths lists the configured paths.
func (f *Feeds) Paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	paths := make([]string, 0, len(f.routes))
	for p := range f.routes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (f *Feeds) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	f.mu.Lock()
	r, ok := f.routes[req.URL.Path]
	if !ok {
		f.mu.Unlock()
		http.NotFound(w, req)
		return
	}
	r.hits++
	status, delay := r.status, r.delay
	body := r.raw
	if body == nil {
		body = Render(r.title, r.items)
	}
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-req.Context().Done():
			return
		}
	}
	if status != http.StatusOK {
		http.Error(w, http.StatusText(status), status)
		return
	}
	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.Write(body)
}

// escape avoids &#39; which feed sanitizing would drop.
var escape = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace

// Render builds an RSS 2.0 document.
func Render(title string, items []Item) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?>` + "\n")
	b.WriteString(`<rss version="2.0"><channel>` + "\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", escape(title))
	for _, it := range items {
		b.WriteString("<item>")
		fmt.Fprintf(&b, "<title>%s</title>", escape(it.Title))
		fmt.Fprintf(&b, "<link>%s</link>", escape(it.Link))
		if it.Description != "" {
			fmt.Fprintf(&b, "<description><![CDATA[%s]]></description>", it.Description)
		}
		if it.PubDate != "" {
			fmt.Fprintf(&b, "<pubDate>%s</pubDate>", it.PubDate)
		}
		b.WriteString("</item>\n")
	}
	b.WriteString("</channel></rss>\n")
	return []byte(b.String())
}

// Server is Feeds behind an httptest server.
type Server struct {
	*Feeds
	srv *httptest.Server
}

// NewServer starts a server. Call Close when done.
func NewServer() *Server {
	f := NewFeeds()
	return &Server{Feeds: f, srv: httptest.NewServer(f)}
}

// URL returns the absolute url of path.
func (s *Server) URL(path string) string {
	return s.srv.URL + path
}

func (s *Server) Close() {
	s.srv.Close()
}
