package calculator

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// settledTolerance is the magnitude at or below which a subtotal counts as settled.
const settledTolerance = 0.01

// half is added to a cent-scaled amount before flooring.
var half = decimal.New(5, -1)

// RoundToCents rounds v to 2 decimal places, ties towards positive
// infinity: 0.005 becomes 0.01 and -0.005 becomes 0.
// The float is first converted to its shortest decimal form, so values such
// as 1.005 round to 1.01 instead of falling victim to binary representation.
func RoundToCents(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	cents := decimal.NewFromFloat(v).Shift(2).Add(half).Floor()
	return cents.Shift(-2).InexactFloat64()
}

// parseAmount reads a raw user-entered number. Anything unparseable is 0.
func parseAmount(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0
	}
	return d.InexactFloat64()
}

func isSettled(v float64) bool {
	return v <= settledTolerance && v >= -settledTolerance
}
