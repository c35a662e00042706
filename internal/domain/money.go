package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

// Tolerance is the maximum discrepancy between two independently computed
// monetary values before they are considered inconsistent.
const Tolerance = 0.01

var tolerance = decimal.NewFromFloat(Tolerance)

// Dec converts a float to a decimal. NaN and infinities map to zero.
func Dec(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

// RoundCents rounds half away from zero to 2 decimal places.
func RoundCents(v float64) float64 {
	return Dec(v).Round(2).InexactFloat64()
}

// Cents rounds a decimal to 2 places and returns it as a float.
func Cents(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// WithinTolerance reports whether |a-b| <= Tolerance, compared in decimal.
func WithinTolerance(a, b float64) bool {
	return Dec(a).Sub(Dec(b)).Abs().LessThanOrEqual(tolerance)
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
