package parser

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Sanitizer repairs well-formedness defects before structural parsing.
type Sanitizer interface {
	Sanitize(data []byte) []byte
}

// SanitizerFunc adapts a function to the Sanitizer interface.
type SanitizerFunc func([]byte) []byte

func (f SanitizerFunc) Sanitize(data []byte) []byte { return f(data) }

// DefaultSanitizer applies the string-level repairs in Sanitize.
var DefaultSanitizer Sanitizer = SanitizerFunc(Sanitize)

var (
	bareBreakRe = regexp.MustCompile(`(?i)<br\s*>`)
	encodingRe  = regexp.MustCompile(`(?i)^\s*<\?xml[^>]*encoding\s*=\s*["']([^"']+)["']`)
)

var canonicalEntities = []string{"amp;", "lt;", "gt;", "quot;", "apos;"}

// Sanitize strips &nbsp;, escapes stray ampersands, drops two-digit numeric
// references and unknown named entities, and self-closes bare <br> tags.
// Input declared (or defaulting) as UTF-8 has invalid sequences replaced.
func Sanitize(data []byte) []byte {
	s := string(data)
	if declaresUTF8(s) && !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "\uFFFD")
	}
	s = strings.ReplaceAll(s, "&nbsp;", "")
	s = repairEntities(s)
	s = bareBreakRe.ReplaceAllString(s, "<br/>")
	return []byte(s)
}

func declaresUTF8(s string) bool {
	m := encodingRe.FindStringSubmatch(s)
	if m == nil {
		return true
	}
	enc := strings.ToLower(strings.TrimSpace(m[1]))
	return enc == "utf-8" || enc == "utf8"
}

const (
	cdataOpen  = "<![CDATA["
	cdataClose = "]]>"
)

// repairEntities walks every '&' once. Canonical entities and numeric
// references other than two-digit ones are kept, other named references are
// dropped and anything else is escaped so the XML decoder accepts it.
// CDATA sections are copied verbatim.
func repairEntities(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	var b bytes.Buffer
	b.Grow(len(s) + 16)
	for i := 0; i < len(s); {
		c := s[i]
		if c == '<' && strings.HasPrefix(s[i:], cdataOpen) {
			end := strings.Index(s[i:], cdataClose)
			if end < 0 {
				b.WriteString(s[i:])
				break
			}
			end += i + len(cdataClose)
			b.WriteString(s[i:end])
			i = end
			continue
		}
		if c != '&' {
			b.WriteByte(c)
			i++
			continue
		}
		rest := s[i+1:]
		if n, ok := canonicalLen(rest); ok {
			b.WriteString(s[i : i+1+n])
			i += 1 + n
			continue
		}
		if n, drop, ok := numericRef(rest); ok {
			if !drop {
				b.WriteString(s[i : i+1+n])
			}
			i += 1 + n
			continue
		}
		if n, ok := namedLen(rest); ok {
			i += 1 + n
			continue
		}
		b.WriteString("&amp;")
		i++
	}
	return b.String()
}

func canonicalLen(rest string) (int, bool) {
	for _, ent := range canonicalEntities {
		if strings.HasPrefix(rest, ent) {
			return len(ent), true
		}
	}
	return 0, false
}

// numericRef matches "#123;" and "#x1F;", returning the length including ';'.
// drop is set for decimal references with exactly two digits.
func numericRef(rest string) (n int, drop bool, ok bool) {
	if len(rest) < 3 || rest[0] != '#' {
		return 0, false, false
	}
	i := 1
	hex := rest[1] == 'x' || rest[1] == 'X'
	if hex {
		i++
	}
	start := i
	for i < len(rest) && isDigit(rest[i], hex) {
		i++
	}
	if i == start || i >= len(rest) || rest[i] != ';' {
		return 0, false, false
	}
	return i + 1, !hex && i-start == 2, true
}

func namedLen(rest string) (int, bool) {
	i := 0
	for i < len(rest) && isLetter(rest[i]) {
		i++
	}
	if i == 0 || i >= len(rest) || rest[i] != ';' {
		return 0, false
	}
	return i + 1, true
}

func isDigit(c byte, hex bool) bool {
	if c >= '0' && c <= '9' {
		return true
	}
	return hex && (c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F')
}

func isLetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
