// Package ticker parses Kalshi-style market tickers and derives market
// expiry times from the embedded event date.
package ticker

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// tickerRegex matches: {SERIES}-{YYMMMDD}-{STRIKE}
// Example: KXRAIN-26SEP01-NYC
var tickerRegex = regexp.MustCompile(
	`^([A-Z][A-Z0-9]*)-(\d{2})([A-Z]{3})(\d{2})-([A-Z0-9.]+)$`,
)

var (
	ErrInvalidTicker = errors.New("ticker: invalid ticker format")
	ErrInvalidMonth  = errors.New("ticker: unknown month code")
)

var months = map[string]time.Month{
	"JAN": time.January, "FEB": time.February, "MAR": time.March,
	"APR": time.April, "MAY": time.May, "JUN": time.June,
	"JUL": time.July, "AUG": time.August, "SEP": time.September,
	"OCT": time.October, "NOV": time.November, "DEC": time.December,
}

// Market represents a parsed market ticker.
type Market struct {
	Ticker    string    `json:"ticker"`
	Series    string    `json:"series"`
	Strike    string    `json:"strike"`
	EventDate time.Time `json:"event_date"`
}

// Parse parses and validates a market ticker string.
// Format: {SERIES}-{YYMMMDD}-{STRIKE}
func Parse(ticker string) (*Market, error) {
	matches := tickerRegex.FindStringSubmatch(strings.ToUpper(ticker))
	if matches == nil {
		return nil, fmt.Errorf("%w: %s (expected SERIES-YYMMMDD-STRIKE)",
			ErrInvalidTicker, ticker)
	}

	series := matches[1]
	yearStr := matches[2]
	monthStr := matches[3]
	dayStr := matches[4]
	strike := matches[5]

	month, ok := months[monthStr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMonth, monthStr)
	}

	var year, day int
	fmt.Sscanf(yearStr, "%d", &year)
	fmt.Sscanf(dayStr, "%d", &day)
	year += 2000

	date := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if date.Day() != day || date.Month() != month {
		return nil, fmt.Errorf("%w: invalid date %s%s%s", ErrInvalidTicker, yearStr, monthStr, dayStr)
	}

	return &Market{
		Ticker:    strings.ToUpper(ticker),
		Series:    series,
		Strike:    strike,
		EventDate: date,
	}, nil
}

// Expiry returns the market close time for the event date. Markets settle
// at the end of the event day (midnight UTC of the following day).
func (m *Market) Expiry() time.Time {
	return m.EventDate.Add(24 * time.Hour)
}
