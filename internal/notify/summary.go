package notify

import (
	"strings"

	"notifeeder/internal/htmltext"
)

// BodyLimit bounds the notification body in runes.
const BodyLimit = 160

const genericBody = "New article available"

// Notification is what a Notifier presents. ID is always the article link so
// a repeated presentation can replace the earlier one.
type Notification struct {
	ID       string
	Title    string
	Subtitle string
	Body     string
}

// Build turns a candidate into a notification.
func Build(c Candidate) Notification {
	title := strings.TrimSpace(c.Entry.Title)
	if title == "" {
		title = strings.TrimSpace(c.Entry.ShortTitle)
	}
	feedTitle := strings.TrimSpace(c.Feed.Title)
	if feedTitle == "" {
		feedTitle = strings.TrimSpace(c.Entry.SourceTitle)
	}
	return Notification{
		ID:       c.Entry.Link,
		Title:    title,
		Subtitle: feedTitle,
		Body:     Summarize(c.Entry.Content, c.Entry.Author, feedTitle),
	}
}

// Summarize picks the body text: the first two sentences of the stripped
// content, else "by {author}", else "new article on {feed}", else a generic line.
func Summarize(content, author, feedTitle string) string {
	var body string
	switch text := htmltext.Strip(content); {
	case text != "":
		body = htmltext.Sentences(text, 2)
	case strings.TrimSpace(author) != "":
		body = "by " + strings.TrimSpace(author)
	case feedTitle != "":
		body = "new article on " + feedTitle
	default:
		body = genericBody
	}
	return htmltext.Truncate(body, BodyLimit)
}
