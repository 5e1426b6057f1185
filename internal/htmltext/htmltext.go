// Package htmltext reduces feed HTML to plain text for summaries and
// notification bodies.
package htmltext

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// Converter handles HTML to plain text conversion using node traversal
type Converter struct {
	// Skip lists elements whose subtree is dropped entirely.
	Skip map[string]bool
}

// NewConverter creates a converter that drops script, style and similar non-prose elements
func NewConverter() *Converter {
	return &Converter{Skip: map[string]bool{
		"script": true, "style": true, "noscript": true, "iframe": true, "svg": true, "head": true,
	}}
}

// Convert converts an HTML node to whitespace-collapsed text
func (c *Converter) Convert(node *html.Node) string {
	if node == nil {
		return ""
	}
	var b strings.Builder
	c.convertNode(&b, node)
	return collapse(b.String())
}

// ConvertHTMLString parses htmlStr as a fragment and converts it
func (c *Converter) ConvertHTMLString(htmlStr string) string {
	if strings.TrimSpace(htmlStr) == "" {
		return ""
	}
	if !strings.ContainsAny(htmlStr, "<&") {
		return collapse(htmlStr)
	}
	doc, err := html.Parse(strings.NewReader(htmlStr))
	if err != nil {
		return collapse(htmlStr)
	}
	return c.Convert(doc)
}

func (c *Converter) convertNode(b *strings.Builder, node *html.Node) {
	switch node.Type {
	case html.TextNode:
		b.WriteString(node.Data)
	case html.ElementNode:
		name := strings.ToLower(node.Data)
		if c.Skip[name] {
			return
		}
		block := isBlock(name)
		if block {
			b.WriteByte(' ')
		}
		c.convertChildren(b, node)
		if block {
			b.WriteByte(' ')
		}
	case html.DocumentNode:
		c.convertChildren(b, node)
	}
}

func (c *Converter) convertChildren(b *strings.Builder, node *html.Node) {
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		c.convertNode(b, child)
	}
}

func isBlock(name string) bool {
	switch name {
	case "p", "div", "br", "li", "ul", "ol", "h1", "h2", "h3", "h4", "h5", "h6",
		"blockquote", "pre", "hr", "tr", "td", "th", "table", "section", "article",
		"header", "footer", "figure", "figcaption", "dd", "dt":
		return true
	}
	return false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var defaultConverter = NewConverter()

// Strip converts an HTML fragment to plain text with collapsed whitespace
func Strip(htmlStr string) string {
	return defaultConverter.ConvertHTMLString(htmlStr)
}

// Sentences returns up to n leading sentences of text. A sentence ends at
// '.', '!' or '?' followed by whitespace or the end of text.
func Sentences(text string, n int) string {
	text = strings.TrimSpace(text)
	if n <= 0 || text == "" {
		return ""
	}
	count := 0
	for i, r := range text {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		next := i + utf8.RuneLen(r)
		if next < len(text) {
			nr, _ := utf8.DecodeRuneInString(text[next:])
			if !unicode.IsSpace(nr) {
				continue
			}
		}
		count++
		if count == n {
			return text[:next]
		}
	}
	return text
}

// Truncate shortens s to at most limit runes, cutting at the last word
// boundary and appending "…". The ellipsis counts toward the limit.
func Truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	cut := string(runes[:limit-1])
	if i := strings.LastIndexFunc(cut, unicode.IsSpace); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRightFunc(cut, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) && r != ')' && r != '"'
	}) + "…"
}
