// Package numeric holds the offset-protected ratio helpers used wherever a ratio
// or log-fold-change is computed.
package numeric

import (
	"errors"
	"math"
)

// DefaultOffset is added to numerator and denominator of every ratio.
const DefaultOffset = 0.001

// ErrUndefined is returned when a ratio has a zero denominator or a non-finite result.
var ErrUndefined = errors.New("ratio undefined")

// Ratio returns (num+offset)/(den+offset).
func Ratio(num, den, offset float64) (float64, error) {
	d := den + offset
	if d == 0 {
		return 0, ErrUndefined
	}
	r := (num + offset) / d
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, ErrUndefined
	}
	return r, nil
}

// Log2Ratio returns log2((num+offset)/(den+offset)).
// The ratio must be positive.
func Log2Ratio(num, den, offset float64) (float64, error) {
	r, err := Ratio(num, den, offset)
	if err != nil {
		return 0, err
	}
	if r <= 0 {
		return 0, ErrUndefined
	}
	return math.Log2(r), nil
}
