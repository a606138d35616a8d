package formula_test

import (
	"errors"
	"testing"
	"time"

	"github.com/assetops/assetcore/internal/formula"
	"github.com/assetops/assetcore/internal/types"
)

var asOf = time.Date(2023, 9, 21, 10, 30, 0, 0, time.UTC)

// TestRenderExample tests the canonical day-scoped formula
func TestRenderExample(t *testing.T) {
	got, err := formula.Render("PC-{year}{month}{day}-{auto-increment}", asOf, 1, 5)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if got != "PC-20230921-00001" {
		t.Errorf("Expected PC-20230921-00001, got %s", got)
	}
}

// TestRenderIsPure tests that identical inputs always yield identical output
func TestRenderIsPure(t *testing.T) {
	first, err := formula.Render("A{month}-{auto-increment}", asOf, 42, 3)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := formula.Render("A{month}-{auto-increment}", asOf, 42, 3)
		if err != nil {
			t.Fatalf("Render failed on repeat %d: %v", i, err)
		}
		if again != first {
			t.Fatalf("Render not pure: %s != %s", again, first)
		}
	}
	if first != "A09-042" {
		t.Errorf("Expected A09-042, got %s", first)
	}
}

// TestRenderSequenceOverflow tests that a sequence past the pad width
// renders unpadded instead of truncated
func TestRenderSequenceOverflow(t *testing.T) {
	got, err := formula.Render("{auto-increment}", asOf, 12345, 3)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if got != "12345" {
		t.Errorf("Expected 12345 (unpadded), got %s", got)
	}
}

// TestRenderUnknownToken tests that unknown tokens fail with FormatError
func TestRenderUnknownToken(t *testing.T) {
	_, err := formula.Render("X-{week}-{auto-increment}", asOf, 1, 3)
	var formatErr *types.FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("Expected FormatError, got %v", err)
	}
	if formatErr.Token != "{week}" {
		t.Errorf("Expected token {week}, got %q", formatErr.Token)
	}
}

// TestValidate tests formula validation at rule save time
func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		formula string
		width   int
		valid   bool
	}{
		{"full", "PC-{year}{month}{day}-{auto-increment}", 5, true},
		{"no date tokens", "N{auto-increment}", 1, true},
		{"no auto increment", "{year}{month}", 4, true},
		{"empty", "", 5, false},
		{"blank", "   ", 5, false},
		{"zero width", "{auto-increment}", 0, false},
		{"unknown token", "{year}-{serial}", 5, false},
		{"two auto increments", "{auto-increment}{auto-increment}", 5, false},
	}

	for _, tc := range cases {
		err := formula.Validate(tc.formula, tc.width)
		if tc.valid && err != nil {
			t.Errorf("%s: expected valid, got %v", tc.name, err)
		}
		if !tc.valid && err == nil {
			t.Errorf("%s: expected error, got nil", tc.name)
		}
	}
}

// TestGranularity tests scope granularity detection
func TestGranularity(t *testing.T) {
	cases := []struct {
		formula string
		want    formula.Granularity
		suffix  string
	}{
		{"PC-{year}{month}{day}-{auto-increment}", formula.GranularityDay, "2023-09-21"},
		{"PC-{year}{month}-{auto-increment}", formula.GranularityMonth, "2023-09"},
		{"PC-{year}-{auto-increment}", formula.GranularityYear, "2023"},
		{"PC-{auto-increment}", formula.GranularityNone, "all"},
	}

	for _, tc := range cases {
		if got := formula.GranularityOf(tc.formula); got != tc.want {
			t.Errorf("%s: expected granularity %s, got %s", tc.formula, tc.want, got)
		}
		if got := formula.ScopeSuffix(tc.formula, asOf); got != tc.suffix {
			t.Errorf("%s: expected suffix %s, got %s", tc.formula, tc.suffix, got)
		}
	}
}
