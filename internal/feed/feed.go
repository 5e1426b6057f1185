// Package feed holds the records that flow through the ingestion pipeline.
package feed

import (
	"strings"
	"time"
)

// Source is a configured RSS/Atom endpoint. The URL is its identity.
type Source struct {
	Title string `json:"title" yaml:"title"`
	URL   string `json:"url" yaml:"url"`
}

// RawEntry is one item as produced by the parser, before source metadata is attached.
type RawEntry struct {
	Title         string
	ShortTitle    string
	Link          string
	Content       string // html
	ImageURL      string
	Author        string
	PubDateString string
}

// Entry is a RawEntry stamped with the feed it was fetched from.
type Entry struct {
	RawEntry
	SourceTitle string
	FeedURL     string
}

// Enrich stamps the source title and url onto e. Values already present on the
// entry win over the source defaults.
func Enrich(e Entry, src Source) Entry {
	if strings.TrimSpace(e.SourceTitle) == "" {
		e.SourceTitle = src.Title
	}
	if strings.TrimSpace(e.FeedURL) == "" {
		e.FeedURL = src.URL
	}
	return e
}

// Valid reports whether the entry can enter merge/dedup. Entries without a link
// have no identity and are dropped.
func Valid(e Entry) bool {
	return strings.TrimSpace(e.Link) != ""
}

// Article is the persisted form of an entry inside a feed bucket.
type Article struct {
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	Summary     string     `json:"summary,omitempty"`
	FeedTitle   string     `json:"feedTitle,omitempty"`
}
