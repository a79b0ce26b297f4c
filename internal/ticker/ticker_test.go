package ticker

import (
	"errors"
	"testing"
	"time"
)

func TestParse_Valid(t *testing.T) {
	m, err := Parse("KXRAIN-26SEP01-NYC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Series != "KXRAIN" {
		t.Errorf("expected series KXRAIN, got %s", m.Series)
	}
	if m.Strike != "NYC" {
		t.Errorf("expected strike NYC, got %s", m.Strike)
	}
	want := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
	if !m.EventDate.Equal(want) {
		t.Errorf("expected event date %v, got %v", want, m.EventDate)
	}
}

func TestParse_NumericStrike(t *testing.T) {
	m, err := Parse("KXBTC-26SEP01-B120K")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Strike != "B120K" {
		t.Errorf("expected strike B120K, got %s", m.Strike)
	}
}

func TestParse_LowercaseNormalized(t *testing.T) {
	m, err := Parse("kxrain-26sep01-nyc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Ticker != "KXRAIN-26SEP01-NYC" {
		t.Errorf("expected uppercased ticker, got %s", m.Ticker)
	}
}

func TestParse_InvalidFormat(t *testing.T) {
	for _, ticker := range []string{
		"",
		"KXRAIN",
		"KXRAIN-26SEP01",
		"KXRAIN_26SEP01_NYC",
		"KXRAIN-2026SEP01-NYC",
		"-26SEP01-NYC",
	} {
		if _, err := Parse(ticker); !errors.Is(err, ErrInvalidTicker) {
			t.Errorf("%q: expected ErrInvalidTicker, got %v", ticker, err)
		}
	}
}

func TestParse_UnknownMonth(t *testing.T) {
	if _, err := Parse("KXRAIN-26XXX01-NYC"); !errors.Is(err, ErrInvalidMonth) {
		t.Errorf("expected ErrInvalidMonth, got %v", err)
	}
}

func TestParse_ImpossibleDate(t *testing.T) {
	if _, err := Parse("KXRAIN-26FEB30-NYC"); !errors.Is(err, ErrInvalidTicker) {
		t.Errorf("expected ErrInvalidTicker for Feb 30, got %v", err)
	}
}

func TestExpiry_DayAfterEvent(t *testing.T) {
	m, err := Parse("KXRAIN-26SEP01-NYC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, time.September, 2, 0, 0, 0, 0, time.UTC)
	if !m.Expiry().Equal(want) {
		t.Errorf("expected expiry %v, got %v", want, m.Expiry())
	}
}
