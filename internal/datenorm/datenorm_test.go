package datenorm_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"notifeeder/internal/datenorm"
)

func TestParse(t *testing.T) {
	want := time.Date(2025, time.November, 25, 12, 34, 56, 0, time.UTC)
	tests := []struct {
		name     string
		raw      string
		expected time.Time
	}{
		{name: "iso internet", raw: "2025-11-25T12:34:56Z", expected: want},
		{name: "iso fractional", raw: "2025-11-25T12:34:56.123Z", expected: want.Add(123 * time.Millisecond)},
		{name: "iso offset", raw: "2025-11-25T13:34:56+01:00", expected: want},
		{name: "iso without zone", raw: "2025-11-25T12:34:56", expected: want},
		{name: "rfc822 four digit year", raw: "Tue, 25 Nov 2025 12:34:56 GMT", expected: want},
		{name: "rfc822 two digit year", raw: "Tue, 25 Nov 25 12:34:56 GMT", expected: want},
		{name: "rfc822 numeric zone", raw: "Tue, 25 Nov 2025 14:34:56 +0200", expected: want},
		{name: "rfc822 single digit day", raw: "Wed, 5 Nov 2025 12:34:56 GMT", expected: time.Date(2025, time.November, 5, 12, 34, 56, 0, time.UTC)},
		{name: "rfc822 north american zone", raw: "Tue, 25 Nov 2025 07:34:56 EST", expected: want},
		{name: "surrounding whitespace", raw: "\n  2025-11-25T12:34:56Z \t", expected: want},
		{name: "not a date", raw: "not a date", expected: datenorm.Sentinel},
		{name: "empty", raw: "", expected: datenorm.Sentinel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := datenorm.Parse(tt.raw)
			assert.True(t, tt.expected.Equal(got), "got %v want %v", got, tt.expected)
		})
	}
}

func TestSentinel(t *testing.T) {
	assert.True(t, datenorm.IsSentinel(datenorm.Parse("garbage")))
	assert.False(t, datenorm.IsSentinel(datenorm.Parse("2025-11-25T12:34:56Z")))
	assert.True(t, datenorm.Sentinel.Before(time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestTwoDigitYearWindow(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		raw  string
		year int
	}{
		{raw: "Thu, 25 Nov 99 12:34:56 GMT", year: 1999},
		{raw: "Tue, 25 Nov 25 12:34:56 GMT", year: 2025},
		{raw: "Fri, 25 Nov 45 12:34:56 GMT", year: 2045},
		{raw: "Mon, 25 Nov 46 12:34:56 GMT", year: 1946},
		// no leading zero on the day: handled by the short-year layouts
		{raw: "Wed, 5 Nov 25 12:34:56 GMT", year: 2025},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.year, datenorm.ParseAt(tt.raw, now).Year())
		})
	}
}

func TestParseConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				datenorm.Parse("Tue, 25 Nov 25 12:34:56 GMT")
				datenorm.Parse("2025-11-25T12:34:56.123Z")
			}
		}()
	}
	wg.Wait()
}
