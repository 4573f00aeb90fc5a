package pricing

import "math"

// MaxMoney is the largest amount the engine will represent. Beyond 2^53 float64 stops
// holding every whole unit exactly.
const MaxMoney Money = 1 << 53

// RoundHalfUp rounds to the nearest integer with ties toward positive infinity,
// so RoundHalfUp(2.5) == 3 and RoundHalfUp(-2.5) == -2.
func RoundHalfUp(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f := math.Floor(v)
	if v-f >= 0.5 {
		return f + 1
	}
	return f
}

// RoundUnits rounds to whole currency units in two steps: first to integer cents,
// then cents to units. A value of 2.4999 becomes 250 cents and then 3, where a
// single rounding step would give 2. Non-finite values and results beyond MaxMoney
// in magnitude yield 0.
func RoundUnits(v float64) Money {
	if !isFinite(v) {
		return 0
	}
	cents := RoundHalfUp(v * 100)
	return toMoney(RoundHalfUp(cents / 100))
}

// RoundMoney rounds a value to whole units in a single step, with the same bounds as
// RoundUnits.
func RoundMoney(v float64) Money {
	if !isFinite(v) {
		return 0
	}
	return toMoney(RoundHalfUp(v))
}

func toMoney(v float64) Money {
	if !isFinite(v) || math.Abs(v) > float64(MaxMoney) {
		return 0
	}
	return Money(v)
}

// MarginFactor converts a margin on selling price into a multiplier on cost.
// Rates that are non-finite or >= 1 yield a neutral factor of 1.
func MarginFactor(marginRate float64) float64 {
	if !isFinite(marginRate) || marginRate >= 1 {
		return 1
	}
	return 1 / (1 - marginRate)
}

// MarkupRate is the fraction added to cost that reaches the same selling price as marginRate.
func MarkupRate(marginRate float64) float64 {
	return MarginFactor(marginRate) - 1
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
