// Package shared contains common domain errors and value objects
// that are used across all domain packages.
package shared

import "math"

// ═══════════════════════════════════════════════════════════════════════════
// Percentage Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Percentage is a score or rate on the 0-100 scale.
type Percentage float64

const (
	// Percentage boundaries
	MinPercentage Percentage = 0
	MaxPercentage Percentage = 100
)

// IsValid checks if the value is within the 0-100 range.
func (p Percentage) IsValid() bool {
	f := float64(p)
	return !math.IsNaN(f) && p >= MinPercentage && p <= MaxPercentage
}

// Float64 returns the underlying float64 value.
func (p Percentage) Float64() float64 {
	return float64(p)
}

// Clamp returns the value bounded to [0, 100]. NaN collapses to 0.
func (p Percentage) Clamp() Percentage {
	switch {
	case math.IsNaN(float64(p)):
		return MinPercentage
	case p < MinPercentage:
		return MinPercentage
	case p > MaxPercentage:
		return MaxPercentage
	default:
		return p
	}
}

// NewPercentage creates a new Percentage with validation.
func NewPercentage(value float64) (Percentage, error) {
	p := Percentage(value)
	if !p.IsValid() {
		return 0, NewDomainError("shared", "NewPercentage", ErrValueOutOfRange, "percentage must be between 0 and 100")
	}
	return p, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Safe arithmetic
// ═══════════════════════════════════════════════════════════════════════════

// Ratio divides numerator by denominator, returning 0 when the denominator is 0.
func Ratio(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}

// Mean returns the arithmetic mean of values, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
