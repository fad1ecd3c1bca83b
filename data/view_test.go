package data

import (
	"math"
	"testing"
)

func buildSeries(t *testing.T) *Series {
	t.Helper()
	idx := []int64{1, 2, 3, 4, 5}
	open := []float64{100, 101, 102.5, 103, 104}
	high := []float64{101, 102, 103, 104, 105}
	low := []float64{99, 100, 101, 102, 103}
	close := []float64{100.5, 101.5, 102.25, 103.5, 104.5}
	s, err := NewSeries(idx, false, open, high, low, close, nil, nil)
	if err != nil {
		t.Fatalf("NewSeries() error = %v", err)
	}
	return s
}

func TestPrefixViewIsolatesLength(t *testing.T) {
	s := buildSeries(t)
	v := s.Prefix(3)
	if v.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", v.Len())
	}
	if got := v.Now().Close; got != 102.25 {
		t.Fatalf("Now().Close = %v, want 102.25", got)
	}
	if len(v.Close()) != 3 {
		t.Fatalf("Close() length = %d, want 3", len(v.Close()))
	}
}

func TestFullViewCoversEntireSeries(t *testing.T) {
	s := buildSeries(t)
	v := s.FullView()
	if v.Len() != s.Len() {
		t.Fatalf("FullView length = %d, want %d", v.Len(), s.Len())
	}
}

func TestNonMonotonicIndexIsSorted(t *testing.T) {
	idx := []int64{3, 1, 2}
	open := []float64{10, 20, 30}
	high := []float64{11, 21, 31}
	low := []float64{9, 19, 29}
	close := []float64{10.5, 20.5, 30.5}
	s, err := NewSeries(idx, false, open, high, low, close, nil, nil)
	if err != nil {
		t.Fatalf("NewSeries() error = %v", err)
	}
	if s.Index[0] != 1 || s.Index[1] != 2 || s.Index[2] != 3 {
		t.Fatalf("expected sorted index, got %v", s.Index)
	}
	if s.Open[0] != 20 {
		t.Fatalf("expected rows to be reordered together with the index, got Open[0]=%v", s.Open[0])
	}
}

func TestNewSeriesRejectsNaN(t *testing.T) {
	idx := []int64{1, 2}
	open := []float64{100, math.NaN()}
	high := []float64{101, 102}
	low := []float64{99, 100}
	close := []float64{100, 101}
	if _, err := NewSeries(idx, false, open, high, low, close, nil, nil); err == nil {
		t.Fatal("expected configuration error for NaN in Open")
	}
}

func TestPipSize(t *testing.T) {
	s := buildSeries(t)
	if got := s.PipSize(); got != 0.01 {
		t.Fatalf("PipSize() = %v, want 0.01", got)
	}
}
