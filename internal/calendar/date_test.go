package calendar

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if d != (Date{Year: 2024, Month: time.February, Day: 29}) {
		t.Fatalf("unexpected date: %v", d)
	}
	if got := d.String(); got != "2024-02-29" {
		t.Fatalf("String() = %q, want 2024-02-29", got)
	}
}

func TestParseDateRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "tomorrow", "2024-13-01", "31-01-2024", "2024-02-30"} {
		if _, err := ParseDate(input); err == nil {
			t.Errorf("ParseDate(%q): expected error", input)
		}
	}
}

func TestDateCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"2024-01-01", "2024-01-01", 0},
		{"2024-01-01", "2024-01-02", -1},
		{"2024-02-01", "2024-01-31", 1},
		{"2023-12-31", "2024-01-01", -1},
		{"2025-01-01", "2024-12-31", 1},
	}
	for _, tt := range tests {
		a, b := MustParseDate(tt.a), MustParseDate(tt.b)
		if got := a.Compare(b); got != tt.want {
			t.Errorf("Compare(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
		if got := a.Before(b); got != (tt.want < 0) {
			t.Errorf("Before(%s, %s) = %t", tt.a, tt.b, got)
		}
		if got := a.After(b); got != (tt.want > 0) {
			t.Errorf("After(%s, %s) = %t", tt.a, tt.b, got)
		}
	}
}

func TestAddDays(t *testing.T) {
	tests := []struct {
		start string
		days  int
		want  string
	}{
		{"2024-01-01", 0, "2024-01-01"},
		{"2024-01-31", 1, "2024-02-01"},
		{"2023-12-31", 1, "2024-01-01"},
		{"2024-03-01", -1, "2024-02-29"},
		{"2020-01-01", 1461, "2024-01-01"},
	}
	for _, tt := range tests {
		if got := MustParseDate(tt.start).AddDays(tt.days); got.String() != tt.want {
			t.Errorf("%s + %d days = %s, want %s", tt.start, tt.days, got, tt.want)
		}
	}
}

func TestDaysBetween(t *testing.T) {
	a := MustParseDate("2020-01-01")
	b := MustParseDate("2024-01-01")
	if got := DaysBetween(a, b); got != 1461 {
		t.Fatalf("DaysBetween = %d, want 1461", got)
	}
	if got := DaysBetween(b, a); got != -1461 {
		t.Fatalf("DaysBetween reversed = %d, want -1461", got)
	}
}

func TestDateScan(t *testing.T) {
	var d Date
	if err := d.Scan("2024-06-15"); err != nil {
		t.Fatalf("Scan string: %v", err)
	}
	if d.String() != "2024-06-15" {
		t.Fatalf("Scan string = %v", d)
	}

	if err := d.Scan([]byte("2023-01-02")); err != nil {
		t.Fatalf("Scan bytes: %v", err)
	}
	if d.String() != "2023-01-02" {
		t.Fatalf("Scan bytes = %v", d)
	}

	if err := d.Scan(time.Date(2022, time.May, 4, 23, 59, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Scan time: %v", err)
	}
	if d.String() != "2022-05-04" {
		t.Fatalf("Scan time = %v", d)
	}

	if err := d.Scan(42); err == nil {
		t.Fatal("Scan int: expected error")
	}
}

func TestDateValue(t *testing.T) {
	v, err := MustParseDate("2024-12-31").Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if v != "2024-12-31" {
		t.Fatalf("Value = %v, want 2024-12-31", v)
	}
}
