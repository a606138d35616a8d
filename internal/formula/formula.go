// Package formula renders asset number templates. Rendering is a pure
// function of (formula, time, sequence, width) so the allocator can retry
// it under contention without side effects.
package formula

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/assetops/assetcore/internal/types"
)

// Recognized template tokens.
const (
	TokenYear          = "{year}"
	TokenMonth         = "{month}"
	TokenDay           = "{day}"
	TokenAutoIncrement = "{auto-increment}"
)

// Granularity is the calendar partition a formula's date tokens imply.
// It decides how wide a scope one sequence counter covers.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityMonth Granularity = "month"
	GranularityYear  Granularity = "year"
	GranularityNone  Granularity = "none"
)

var tokenPattern = regexp.MustCompile(`\{[^{}]*\}`)

// Validate checks a formula at rule save time. Unknown tokens are a
// configuration error, not something to pass through verbatim, because a
// half-substituted template produces ambiguous identifiers.
func Validate(f string, width int) error {
	if strings.TrimSpace(f) == "" {
		return &types.FormatError{Formula: f, Reason: "formula is empty"}
	}
	if width < 1 {
		return &types.FormatError{Formula: f, Reason: fmt.Sprintf("auto increment length must be >= 1, got %d", width)}
	}

	autoIncrements := 0
	for _, token := range tokenPattern.FindAllString(f, -1) {
		switch token {
		case TokenYear, TokenMonth, TokenDay:
		case TokenAutoIncrement:
			autoIncrements++
		default:
			return &types.FormatError{Formula: f, Token: token}
		}
	}

	if autoIncrements > 1 {
		return &types.FormatError{Formula: f, Reason: "formula may contain at most one {auto-increment} token"}
	}

	return nil
}

// Render substitutes the recognized tokens of f with values from asOf and
// sequence. Identical inputs always yield identical output; there is no
// hidden state and no I/O. Unknown tokens fail with FormatError even here,
// in case an unvalidated formula slips through.
func Render(f string, asOf time.Time, sequence uint64, width int) (string, error) {
	for _, token := range tokenPattern.FindAllString(f, -1) {
		switch token {
		case TokenYear, TokenMonth, TokenDay, TokenAutoIncrement:
		default:
			return "", &types.FormatError{Formula: f, Token: token}
		}
	}

	r := strings.NewReplacer(
		TokenYear, fmt.Sprintf("%04d", asOf.Year()),
		TokenMonth, fmt.Sprintf("%02d", int(asOf.Month())),
		TokenDay, fmt.Sprintf("%02d", asOf.Day()),
		TokenAutoIncrement, formatSequence(sequence, width),
	)

	return r.Replace(f), nil
}

// formatSequence zero-pads sequence to width digits. A sequence past
// 10^width-1 renders unpadded rather than truncated; dropping digits would
// silently corrupt uniqueness, overflowing the width does not.
func formatSequence(sequence uint64, width int) string {
	s := strconv.FormatUint(sequence, 10)
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

// GranularityOf reports the finest calendar granularity the formula's date
// tokens imply. Day tokens partition counters per day, month tokens per
// month, and so on; a formula with no date tokens shares one counter.
func GranularityOf(f string) Granularity {
	switch {
	case strings.Contains(f, TokenDay):
		return GranularityDay
	case strings.Contains(f, TokenMonth):
		return GranularityMonth
	case strings.Contains(f, TokenYear):
		return GranularityYear
	default:
		return GranularityNone
	}
}

// ScopeSuffix renders the calendar partition of asOf at the formula's
// granularity, e.g. "2023-09-21" for day-level formulas.
func ScopeSuffix(f string, asOf time.Time) string {
	switch GranularityOf(f) {
	case GranularityDay:
		return asOf.Format("2006-01-02")
	case GranularityMonth:
		return asOf.Format("2006-01")
	case GranularityYear:
		return asOf.Format("2006")
	default:
		return "all"
	}
}
