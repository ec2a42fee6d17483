// Package core provides the budget domain model and money helpers.
//
// This file contains functions for parsing monetary amounts from sheet cells
// and for the two-decimal arithmetic used by committed transfers.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Epsilon is the tolerance under which a remaining need or a negative
// balance is considered settled.
var Epsilon = decimal.New(1, -2)

// ParseAmount converts a cell value to a decimal amount.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted, as is
// scientific notation emitted by spreadsheet exports. Empty or malformed
// values yield zero and ok=false; callers treat them as 0.0.
//
// Examples:
//
//	ParseAmount("1000")     -> 1000, true
//	ParseAmount("-200,50")  -> -200.5, true
//	ParseAmount("1.5e3")    -> 1500, true
//	ParseAmount("n/a")      -> 0, false
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ParseFund converts a fund cell to a FundCode. Non-positive or malformed
// values mean the row carries no fund.
func ParseFund(s string) FundCode {
	d, ok := ParseAmount(s)
	if !ok || !d.IsPositive() {
		return NoFund
	}
	return FundCode(d.IntPart())
}

// Cents truncates an amount toward zero at two decimal places, so a
// truncated transfer can never exceed the capacity it was derived from.
func Cents(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(2)
}

// Settled reports whether an outstanding amount is within Epsilon of zero.
func Settled(d decimal.Decimal) bool {
	return d.LessThanOrEqual(Epsilon)
}

// FormatAmount renders an amount with two decimals and thousands
// separators, e.g. 1234.5 -> "1,234.50".
func FormatAmount(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + "." + frac
	if neg {
		return "-" + out
	}
	return out
}
