package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Monetary values persist with 2 fractional digits, rates with 4.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func RoundRate(d decimal.Decimal) decimal.Decimal {
	return d.Round(4)
}

// ClampNonNegative treats negative inputs as zero, not as errors.
func ClampNonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ClampRate bounds an ad-valorem rate to [0,1].
func ClampRate(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return d
}

// CollapseWhitespace lowercases and squeezes runs of whitespace into single spaces.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func UniqueInts(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
