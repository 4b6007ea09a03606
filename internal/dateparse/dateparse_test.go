package dateparse

import (
	"testing"
	"time"
)

// Fixed reference time: Wednesday, 2026-02-18 12:00:00 UTC
var testNow = time.Date(2026, 2, 18, 12, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParse_ExactDate(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"2026-03-01", day(2026, 3, 1)},
		{"2025-12-31", day(2025, 12, 31)},
		{"2026-01-01", day(2026, 1, 1)},
	}
	for _, tt := range tests {
		got, err := ParseFrom(tt.input, testNow)
		if err != nil {
			t.Errorf("ParseFrom(%q): unexpected error: %v", tt.input, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseFrom(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestParse_Keywords(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"now", testNow},
		{"today", day(2026, 2, 18)},
		{"yesterday", day(2026, 2, 17)},
	}
	for _, tt := range tests {
		got, err := ParseFrom(tt.input, testNow)
		if err != nil {
			t.Errorf("ParseFrom(%q): unexpected error: %v", tt.input, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseFrom(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestParse_RelativeDaysBack(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"-1d", day(2026, 2, 17)},
		{"-7d", day(2026, 2, 11)},
		{"-30d", day(2026, 1, 19)},
		{"-1w", day(2026, 2, 11)},
		{"-2w", day(2026, 2, 4)},
	}
	for _, tt := range tests {
		got, err := ParseFrom(tt.input, testNow)
		if err != nil {
			t.Errorf("ParseFrom(%q): unexpected error: %v", tt.input, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseFrom(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestParse_DayNames(t *testing.T) {
	// testNow is Wednesday 2026-02-18; day names resolve backward.
	tests := []struct {
		input string
		want  time.Time
	}{
		{"tuesday", day(2026, 2, 17)},   // yesterday
		{"monday", day(2026, 2, 16)},    // two days ago
		{"sunday", day(2026, 2, 15)},    // last Sunday
		{"thursday", day(2026, 2, 12)},  // last Thursday, not tomorrow
		{"wednesday", day(2026, 2, 11)}, // a full week back, not today
	}
	for _, tt := range tests {
		got, err := ParseFrom(tt.input, testNow)
		if err != nil {
			t.Errorf("ParseFrom(%q): unexpected error: %v", tt.input, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseFrom(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestParse_CaseAndWhitespace(t *testing.T) {
	for _, input := range []string{"Monday", "FRIDAY", "  yesterday  ", " Today"} {
		if _, err := ParseFrom(input, testNow); err != nil {
			t.Errorf("ParseFrom(%q): unexpected error: %v", input, err)
		}
	}
}

func TestParse_Errors(t *testing.T) {
	invalids := []string{
		"",
		"tomorrow",
		"last year",
		"-3x",
		"-0d",
		"notaday",
		"2026/03/01",
		"-d",
		"-w",
	}
	for _, input := range invalids {
		if _, err := ParseFrom(input, testNow); err == nil {
			t.Errorf("ParseFrom(%q): expected error, got nil", input)
		}
	}
}

func TestParse_UsesCurrentTime(t *testing.T) {
	got, err := Parse("today")
	if err != nil {
		t.Fatalf("Parse('today'): unexpected error: %v", err)
	}
	want := startOfDay(time.Now())
	if !got.Equal(want) {
		t.Errorf("Parse('today') = %v, want %v", got, want)
	}
}
