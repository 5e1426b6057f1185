// Package notify decides which new entries deserve a notification and hands
// them to a Notifier.
package notify

import (
	"net/url"
	"strings"

	"notifeeder/internal/feed"
)

// DefaultCap is how many notifications one cycle may present.
const DefaultCap = 3

// Candidate is an entry selected for presentation together with the feed it
// was attributed to. Feed is zero when attribution failed.
type Candidate struct {
	Entry feed.Entry
	Feed  feed.Source
}

// Decide applies the global toggle, the per-feed allow list and the cap, in
// that order. Entries keep their discovery order. An entry that cannot be
// attributed to any configured feed qualifies.
func Decide(fresh []feed.Entry, on bool, enabled map[string]struct{}, sources []feed.Source, limit int) []Candidate {
	if !on {
		return nil
	}
	if limit <= 0 {
		limit = DefaultCap
	}
	var out []Candidate
	for _, e := range fresh {
		if len(out) == limit {
			break
		}
		src, ok := ResolveFeed(e, sources)
		if ok {
			if _, allowed := enabled[src.URL]; !allowed {
				continue
			}
		}
		out = append(out, Candidate{Entry: e, Feed: src})
	}
	return out
}

// ResolveFeed attributes e to a configured source: first by exact feed url,
// then by comparing the registrable domain of the entry link with each feed host.
func ResolveFeed(e feed.Entry, sources []feed.Source) (feed.Source, bool) {
	for _, src := range sources {
		if e.FeedURL != "" && src.URL == e.FeedURL {
			return src, true
		}
	}
	linkDomain := baseDomain(e.Link)
	if linkDomain == "" {
		return feed.Source{}, false
	}
	for _, src := range sources {
		if baseDomain(src.URL) == linkDomain {
			return src, true
		}
	}
	return feed.Source{}, false
}

var subdomainPrefixes = []string{"www.", "feeds.", "feed.", "rss."}

// baseDomain reduces a url to its last two host labels after dropping a
// common feed or web subdomain: https://feeds.example.com/rss -> example.com.
func baseDomain(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	for _, p := range subdomainPrefixes {
		if strings.HasPrefix(host, p) {
			host = strings.TrimPrefix(host, p)
			break
		}
	}
	labels := strings.Split(host, ".")
	if len(labels) > 2 {
		labels = labels[len(labels)-2:]
	}
	return strings.Join(labels, ".")
}
