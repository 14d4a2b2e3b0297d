// Package numeric normalizes loosely formatted numeric text scraped from
// tabular sources into values that keep "absent" distinct from zero.
package numeric

import (
	"math"
	"strings"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
)

// placeholder is what the source renders in cells that carry no value.
const placeholder = "-"

// Parse converts s into a number. Empty strings, the "-" placeholder and
// anything that is not a finite decimal number after grouping separators
// and surrounding whitespace are removed all yield an invalid (absent) value.
func Parse(s string) null.Float {
	s = strings.TrimSpace(s)
	if s == "" || s == placeholder {
		return null.Float{}
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return null.Float{}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return null.Float{}
	}
	f := d.InexactFloat64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return null.Float{}
	}
	return null.FloatFrom(f)
}

// Text returns s trimmed, or an absent string for the same markers Parse
// treats as absent.
func Text(s string) null.String {
	s = strings.TrimSpace(s)
	if s == "" || s == placeholder {
		return null.String{}
	}
	return null.StringFrom(s)
}
