package parser

import (
	"regexp"
	"strings"
)

const shortTitleMax = 45

var (
	noiseWordRe  = regexp.MustCompile(`(?i)\b(news|update|report|breaking)\b`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// ShortTitle derives a compact title for notification banners: text before
// the first colon, minus filler words, capped at 45 runes with an ellipsis.
func ShortTitle(title string) string {
	s := title
	if i := strings.Index(s, ":"); i >= 0 {
		s = s[:i]
	}
	s = noiseWordRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
	if r := []rune(s); len(r) > shortTitleMax {
		s = string(r[:shortTitleMax]) + "…"
	}
	return s
}
