package main

import (
	"testing"

	"github.com/evdnx/backcast/optimize"
)

func TestBuildParamSpaceParsesNumericAxes(t *testing.T) {
	space, err := buildParamSpace([]string{"RSIOverbought=65,70,75", "StopLossPct=0.01,0.02"})
	if err != nil {
		t.Fatalf("buildParamSpace() error = %v", err)
	}
	if len(space.Axes) != 2 {
		t.Fatalf("len(Axes) = %d, want 2", len(space.Axes))
	}
	if space.Axes[0].Name != "RSIOverbought" {
		t.Fatalf("Axes[0].Name = %q", space.Axes[0].Name)
	}
	if len(space.Axes[0].Values) != 3 {
		t.Fatalf("len(Axes[0].Values) = %d, want 3", len(space.Axes[0].Values))
	}
	if v, ok := space.Axes[0].Values[0].(float64); !ok || v != 65 {
		t.Fatalf("Axes[0].Values[0] = %v, want float64(65)", space.Axes[0].Values[0])
	}
}

func TestBuildParamSpaceRejectsMalformedAxis(t *testing.T) {
	if _, err := buildParamSpace([]string{"no-equals-sign"}); err == nil {
		t.Fatal("expected an error for a malformed --param flag")
	}
}

func TestBuildParamSpaceKeepsCategoricalStrings(t *testing.T) {
	space, err := buildParamSpace([]string{"Mode=fast,slow"})
	if err != nil {
		t.Fatalf("buildParamSpace() error = %v", err)
	}
	if _, ok := space.Axes[0].Values[0].(string); !ok {
		t.Fatalf("Values[0] = %T, want string", space.Axes[0].Values[0])
	}
}

func TestParseMaxTriesEmptyIsNil(t *testing.T) {
	v, err := parseMaxTries("")
	if err != nil {
		t.Fatalf("parseMaxTries() error = %v", err)
	}
	if v != nil {
		t.Fatalf("parseMaxTries(\"\") = %v, want nil", v)
	}
}

func TestParseMaxTriesInt(t *testing.T) {
	v, err := parseMaxTries("20")
	if err != nil {
		t.Fatalf("parseMaxTries() error = %v", err)
	}
	if v != 20 {
		t.Fatalf("parseMaxTries(\"20\") = %v, want 20", v)
	}
}

func TestParseMaxTriesFraction(t *testing.T) {
	v, err := parseMaxTries("0.25")
	if err != nil {
		t.Fatalf("parseMaxTries() error = %v", err)
	}
	if v != 0.25 {
		t.Fatalf("parseMaxTries(\"0.25\") = %v, want 0.25", v)
	}
}

func TestParseMaxTriesInvalidErrors(t *testing.T) {
	if _, err := parseMaxTries("not-a-number"); err == nil {
		t.Fatal("expected an error for an unparseable --max-tries")
	}
}

func TestPrintReportDoesNotPanic(t *testing.T) {
	printReport(&optimize.Report{
		Best:      map[string]any{"RSIOverbought": 70.0},
		BestScore: 1.23,
		Runs:      []optimize.Combination{{}},
	})
}
