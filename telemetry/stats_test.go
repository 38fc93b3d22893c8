package telemetry

import (
	"math"
	"testing"
)

func TestSummarize(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	s := Summarize(values)

	if math.Abs(s.Mean-5.5) > 0.001 {
		t.Errorf("mean = %v, want 5.5", s.Mean)
	}
	// Sample standard deviation of 1..10
	if math.Abs(s.Std-3.0277) > 0.001 {
		t.Errorf("std = %v, want ~3.028", s.Std)
	}
	if s.P10 != 1 {
		t.Errorf("p10 = %v, want 1", s.P10)
	}
	if s.P50 != 5 {
		t.Errorf("p50 = %v, want 5", s.P50)
	}
	if s.P90 != 9 {
		t.Errorf("p90 = %v, want 9", s.P90)
	}
}

func TestSummarizeUnsortedInput(t *testing.T) {
	a := Summarize([]float64{3, 1, 2})
	b := Summarize([]float64{1, 2, 3})
	if a != b {
		t.Errorf("unsorted input changed summary: %+v vs %+v", a, b)
	}
}

func TestSummarizeSingleValue(t *testing.T) {
	s := Summarize([]float64{2.5})

	if s.Mean != 2.5 || s.P10 != 2.5 || s.P50 != 2.5 || s.P90 != 2.5 {
		t.Errorf("single value summary = %+v, want all 2.5", s)
	}
	if s.Std != 0 {
		t.Errorf("single value std = %v, want 0", s.Std)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)

	if s != (Summary{}) {
		t.Errorf("empty summary = %+v, want zero value", s)
	}
}
