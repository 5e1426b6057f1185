// Package parser extracts entries from RSS and Atom documents, tolerating the
// malformed markup real feeds serve.
package parser

import (
	"bytes"
	"encoding/xml"
	"errors"
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/html/charset"

	"notifeeder/internal/feed"
	"notifeeder/internal/metrics"
)

// Parser turns feed bytes into raw entries. The zero value is not usable; use New.
type Parser struct {
	sanitizer Sanitizer
	logger    *log.Entry
}

// New returns a parser using s for the repair pass. A nil s selects DefaultSanitizer.
func New(s Sanitizer, logger *log.Entry) *Parser {
	if s == nil {
		s = DefaultSanitizer
	}
	if logger == nil {
		logger = log.WithField("component", "parser")
	}
	return &Parser{sanitizer: s, logger: logger}
}

// Parse is a convenience wrapper around New(nil, nil).Parse.
func Parse(data []byte) []feed.RawEntry {
	return New(nil, nil).Parse(data)
}

type field int

const (
	fieldNone field = iota
	fieldTitle
	fieldLink
	fieldDescription
	fieldContent
	fieldAuthor
	fieldPublished
	fieldUpdated
)

// accumulator collects one item while it is open.
type accumulator struct {
	title, link, description, content strings.Builder
	author, published, updated        strings.Builder
	imageURL, inlineImage             string
}

func (a *accumulator) builder(f field) *strings.Builder {
	switch f {
	case fieldTitle:
		return &a.title
	case fieldLink:
		return &a.link
	case fieldDescription:
		return &a.description
	case fieldContent:
		return &a.content
	case fieldAuthor:
		return &a.author
	case fieldPublished:
		return &a.published
	case fieldUpdated:
		return &a.updated
	}
	return nil
}

// voidElements are HTML tags that appear unescaped in sloppy descriptions.
// HTMLAutoClose is not used because it lists "link".
var voidElements = []string{"br", "img", "hr", "meta", "input", "area", "col", "wbr"}

// Namespaces whose elements carry item fields. Feeds that never declare a
// prefix leave it in Name.Space, so bare prefixes are accepted too.
const (
	atomNS       = "http://www.w3.org/2005/Atom"
	atom03NS     = "http://purl.org/atom/ns#"
	rss10NS      = "http://purl.org/rss/1.0/"
	rss09NS      = "http://my.netscape.com/rdf/simple/0.9/"
	dublinCoreNS = "http://purl.org/dc/elements/1.1/"
	contentNS    = "http://purl.org/rss/1.0/modules/content/"
)

var coreSpaces = []string{"", atomNS, atom03NS, rss10NS, rss09NS}

func isCore(space string) bool { return lo.Contains(coreSpaces, space) }

func isDublinCore(space string) bool { return space == "dc" || space == dublinCoreNS }

func isContentModule(space string) bool { return space == "content" || space == contentNS }

var imgSrcRe = regexp.MustCompile(`(?i)<img[^>]+src\s*=\s*['"]([^'"]+)['"][^>]*>`)

// Parse never fails. On a structural error it stops and returns the entries
// finalized so far; an unterminated item is discarded.
func (p *Parser) Parse(data []byte) []feed.RawEntry {
	clean := p.sanitizer.Sanitize(data)
	dec := xml.NewDecoder(bytes.NewReader(clean))
	dec.Strict = false
	dec.AutoClose = voidElements
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = charset.NewReaderLabel

	var (
		entries []feed.RawEntry
		item    *accumulator
		base    int
		stack   []xml.Name
		// markup is the description or content builder while inside it;
		// nested elements are written back out as HTML.
		markup      *strings.Builder
		markupDepth int
	)
	for {
		tok, err := dec.Token()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				p.logger.WithError(err).WithField("entries", len(entries)).Debug("feed parse aborted")
			}
			metrics.EntriesParsed.Add(float64(len(entries)))
			return entries
		}
		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name)
			if markup != nil {
				writeStart(markup, t)
				captureAttrs(item, t)
				continue
			}
			if isItem(t.Name) {
				item = &accumulator{}
				base = len(stack) - 1
				continue
			}
			if item == nil {
				continue
			}
			captureAttrs(item, t)
			if f := classify(stack, base); f == fieldDescription || f == fieldContent {
				markup, markupDepth = item.builder(f), len(stack)
			}
		case xml.EndElement:
			if markup != nil {
				if len(stack) > markupDepth {
					writeEnd(markup, t.Name)
				} else {
					markup = nil
				}
			}
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			if isItem(t.Name) && item != nil && len(stack) == base {
				entries = append(entries, finalize(item))
				item = nil
			}
		case xml.CharData:
			if markup != nil {
				markup.Write(t)
				continue
			}
			if item == nil || len(stack) <= base+1 {
				continue
			}
			if b := item.builder(classify(stack, base)); b != nil {
				b.Write(t)
			}
		}
	}
}

func isItem(n xml.Name) bool {
	return (n.Local == "item" || n.Local == "entry") && isCore(n.Space)
}

func isVoid(n xml.Name) bool {
	return lo.Contains(voidElements, strings.ToLower(n.Local))
}

// writeStart re-emits an inline element found inside description or content.
// Namespace declarations are dropped.
func writeStart(b *strings.Builder, t xml.StartElement) {
	b.WriteByte('<')
	b.WriteString(t.Name.Local)
	for _, a := range t.Attr {
		if a.Name.Space != "" || a.Name.Local == "xmlns" {
			continue
		}
		b.WriteByte(' ')
		b.WriteString(a.Name.Local)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(a.Value))
		b.WriteByte('"')
	}
	b.WriteByte('>')
}

func writeEnd(b *strings.Builder, n xml.Name) {
	if isVoid(n) {
		return
	}
	b.WriteString("</")
	b.WriteString(n.Local)
	b.WriteByte('>')
}

// classify finds the field for text at the top of stack. Elements nested in
// a field (inline HTML in a description) inherit it. base is the item's index.
func classify(stack []xml.Name, base int) field {
	for i := len(stack) - 1; i > base; i-- {
		if f := fieldOf(stack, i); f != fieldNone {
			return f
		}
		// only <author><name> carries the author; skip <email>, <uri>
		if stack[i-1].Local == "author" {
			return fieldNone
		}
	}
	return fieldNone
}

func fieldOf(stack []xml.Name, i int) field {
	n := stack[i]
	switch {
	case isCore(n.Space):
		switch n.Local {
		case "title":
			return fieldTitle
		case "link":
			return fieldLink
		case "description", "summary":
			return fieldDescription
		case "content":
			return fieldContent
		case "author":
			return fieldAuthor
		case "name":
			if i > 0 && stack[i-1].Local == "author" && isCore(stack[i-1].Space) {
				return fieldAuthor
			}
		case "pubDate", "published":
			return fieldPublished
		case "updated":
			return fieldUpdated
		}
	case isDublinCore(n.Space):
		switch n.Local {
		case "creator":
			return fieldAuthor
		case "date":
			return fieldPublished
		}
	case isContentModule(n.Space):
		if n.Local == "encoded" {
			return fieldContent
		}
	}
	return fieldNone
}

func isMedia(space string) bool {
	return space == "media" || strings.Contains(space, "search.yahoo.com/mrss")
}

func captureAttrs(item *accumulator, t xml.StartElement) {
	switch {
	case t.Name.Local == "link":
		// Atom: <link rel="alternate" href="..."/>
		href, rel := attr(t, "href"), attr(t, "rel")
		if href != "" && (rel == "" || rel == "alternate") && item.link.Len() == 0 {
			item.link.WriteString(href)
		}
	case isMedia(t.Name.Space) && (t.Name.Local == "content" || t.Name.Local == "thumbnail"):
		if u := attr(t, "url"); u != "" && item.imageURL == "" {
			item.imageURL = u
		}
	case t.Name.Local == "img":
		// unescaped markup inside a description
		if u := attr(t, "src"); u != "" && item.inlineImage == "" {
			item.inlineImage = u
		}
	case t.Name.Local == "enclosure":
		if u := attr(t, "url"); u != "" && item.imageURL == "" && strings.HasPrefix(attr(t, "type"), "image/") {
			item.imageURL = u
		}
	}
}

func attr(t xml.StartElement, local string) string {
	for _, a := range t.Attr {
		if a.Name.Local == local {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}

func finalize(a *accumulator) feed.RawEntry {
	title := strings.TrimSpace(a.title.String())
	description := strings.TrimSpace(a.description.String())
	content := strings.TrimSpace(a.content.String())
	body := description
	if body == "" {
		body = content
	}
	image := a.imageURL
	if image == "" {
		if m := imgSrcRe.FindStringSubmatch(description + content); m != nil {
			image = m[1]
		}
	}
	if image == "" {
		image = a.inlineImage
	}
	pub := strings.TrimSpace(a.published.String())
	if pub == "" {
		pub = strings.TrimSpace(a.updated.String())
	}
	return feed.RawEntry{
		Title:         title,
		ShortTitle:    ShortTitle(title),
		Link:          strings.TrimSpace(a.link.String()),
		Content:       body,
		ImageURL:      image,
		Author:        strings.TrimSpace(a.author.String()),
		PubDateString: pub,
	}
}
