// Package datenorm turns the date strings found in RSS and Atom feeds into
// instants. Parsing never fails: unknown input maps to Sentinel.
package datenorm

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"notifeeder/internal/metrics"
)

// Sentinel marks an unparseable date. It sorts before every real timestamp.
var Sentinel = time.Time{}

// IsSentinel reports whether t is the unparseable-date marker.
func IsSentinel(t time.Time) bool {
	return t.IsZero()
}

// pivotYears is how far back the two-digit year window starts.
const pivotYears = 80

var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05", // no zone: UTC
}

var rfc822Layouts = []string{
	"Mon, 02 Jan 2006 15:04:05 MST",
	"Mon, 02 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"02 Jan 2006 15:04:05 MST",
	"02 Jan 2006 15:04:05 -0700",
}

var rfc822ShortYearLayouts = []string{
	"Mon, 02 Jan 06 15:04:05 MST",
	"Mon, 02 Jan 06 15:04:05 -0700",
	"Mon, 2 Jan 06 15:04:05 MST",
	"Mon, 2 Jan 06 15:04:05 -0700",
}

var shortYearRe = regexp.MustCompile(`(?i)^((?:Mon|Tue|Wed|Thu|Fri|Sat|Sun),\s\d{2}\s(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s)(\d{2})(\s\d{2}:\d{2}:\d{2}\s[A-Za-z+\-0-9:]+)$`)

// North American zone names allowed by RFC 822. time.Parse gives unknown
// abbreviations a zero offset, so these are corrected after parsing.
var zoneOffsets = map[string]int{
	"EST": -5, "EDT": -4,
	"CST": -6, "CDT": -5,
	"MST": -7, "MDT": -6,
	"PST": -8, "PDT": -7,
}

// Parse normalizes raw into an instant, returning Sentinel when no rule matches.
// Safe for concurrent use.
func Parse(raw string) time.Time {
	return ParseAt(raw, time.Now())
}

// ParseAt is Parse with an explicit clock for the two-digit year window.
func ParseAt(raw string, now time.Time) time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Sentinel
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	normalized := expandShortYear(s, now)
	for _, layout := range rfc822Layouts {
		if t, err := time.Parse(layout, normalized); err == nil {
			return fixZone(t).UTC()
		}
	}
	for _, layout := range rfc822ShortYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return fixZone(pivot(t, now)).UTC()
		}
	}
	metrics.DatesUnparsed.Inc()
	log.WithField("raw", s).Debug("date not recognised")
	return Sentinel
}

// expandShortYear rewrites "Tue, 25 Nov 25 ..." to "Tue, 25 Nov 2025 ...",
// choosing the century through the sliding window.
func expandShortYear(s string, now time.Time) string {
	m := shortYearRe.FindStringSubmatch(s)
	if m == nil {
		return s
	}
	yy, err := strconv.Atoi(m[2])
	if err != nil {
		return s
	}
	return m[1] + strconv.Itoa(windowYear(yy, now)) + m[3]
}

// windowYear maps a two-digit year into [now-80, now+20).
func windowYear(yy int, now time.Time) int {
	start := now.Year() - pivotYears
	year := start - start%100 + yy
	if year < start {
		year += 100
	}
	return year
}

// pivot moves a time parsed with a two-digit year layout into the window.
func pivot(t time.Time, now time.Time) time.Time {
	year := windowYear(t.Year()%100, now)
	return t.AddDate(year-t.Year(), 0, 0)
}

func fixZone(t time.Time) time.Time {
	name, offset := t.Zone()
	if offset != 0 {
		return t
	}
	hours, ok := zoneOffsets[strings.ToUpper(name)]
	if !ok {
		return t
	}
	loc := time.FixedZone(name, hours*3600)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}
