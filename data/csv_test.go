package data

import (
	"math"
	"strings"
	"testing"
)

func TestParseCSVBasic(t *testing.T) {
	input := "date,open,high,low,close,volume\n" +
		"2024-01-01,100,101,99,100.5,1000\n" +
		"2024-01-02,100.5,102,100,101.5,1200\n"

	s, err := ParseCSV(strings.NewReader(input), nil)
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	if s.Close[1] != 101.5 {
		t.Fatalf("Close[1] = %v, want 101.5", s.Close[1])
	}
	if s.Volume[0] != 1000 {
		t.Fatalf("Volume[0] = %v, want 1000", s.Volume[0])
	}
	if !s.Temporal {
		t.Fatal("Temporal = false, want true")
	}
}

func TestParseCSVColumnOrderIsFlexible(t *testing.T) {
	input := "close,date,low,high,open\n" +
		"100.5,2024-01-01,99,101,100\n"

	s, err := ParseCSV(strings.NewReader(input), nil)
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if s.Open[0] != 100 || s.Close[0] != 100.5 {
		t.Fatalf("row mismatched: open=%v close=%v", s.Open[0], s.Close[0])
	}
}

func TestParseCSVMissingVolumeIsNaN(t *testing.T) {
	input := "date,open,high,low,close\n" +
		"2024-01-01,100,101,99,100.5\n"

	s, err := ParseCSV(strings.NewReader(input), nil)
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if !math.IsNaN(s.Volume[0]) {
		t.Fatalf("Volume[0] = %v, want NaN", s.Volume[0])
	}
}

func TestParseCSVMissingColumnErrors(t *testing.T) {
	input := "date,open,high,low\n2024-01-01,100,101,99\n"
	if _, err := ParseCSV(strings.NewReader(input), nil); err == nil {
		t.Fatal("expected an error for a missing close column")
	}
}

func TestParseCSVNoRowsErrors(t *testing.T) {
	input := "date,open,high,low,close\n"
	if _, err := ParseCSV(strings.NewReader(input), nil); err == nil {
		t.Fatal("expected an error for an empty data set")
	}
}

func TestParseCSVBadNumberErrors(t *testing.T) {
	input := "date,open,high,low,close\n2024-01-01,abc,101,99,100.5\n"
	if _, err := ParseCSV(strings.NewReader(input), nil); err == nil {
		t.Fatal("expected an error for a non-numeric open value")
	}
}

func TestLoadCSVMissingFileErrors(t *testing.T) {
	if _, err := LoadCSV("/nonexistent/path/does-not-exist.csv", nil); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
