package ingest

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"

	"notifeeder/internal/feed"
	"notifeeder/internal/httpclient"
)

// Discovery describes a candidate feed before it is added.
type Discovery struct {
	Source feed.Source
	Items  int
	Type   string
}

// Discover fetches url with a strict parser to validate that it is a feed.
// An empty title is filled from the channel title.
func Discover(ctx context.Context, client *httpclient.Client, url, title string) (Discovery, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return Discovery{}, fmt.Errorf("feed url is empty")
	}
	if client == nil {
		client = httpclient.New(0)
	}
	data, err := client.Fetch(ctx, url)
	if err != nil {
		return Discovery{}, fmt.Errorf("fetch %s: %w", url, err)
	}
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return Discovery{}, fmt.Errorf("%s is not a valid feed: %w", url, err)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = strings.TrimSpace(parsed.Title)
	}
	if title == "" {
		title = url
	}
	return Discovery{
		Source: feed.Source{Title: title, URL: url},
		Items:  len(parsed.Items),
		Type:   parsed.FeedType,
	}, nil
}
