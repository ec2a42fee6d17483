package realloc

import (
	"github.com/shopspring/decimal"

	"remanejo/internal/core"
)

// Capacity returns how much n may donate in the next transfer. It caps both
// the lifetime exposure of the nature (never below original × reservePct)
// and the size of one transfer (original × maxPerOpPct).
func Capacity(n core.Nature, reservePct, maxPerOpPct decimal.Decimal) decimal.Decimal {
	if !n.Current.IsPositive() {
		return decimal.Zero
	}
	reserve := n.Original.Mul(reservePct)
	lifetime := n.Original.Sub(reserve)
	donated := n.Original.Sub(n.Current)
	allowance := decimal.Max(decimal.Zero, lifetime.Sub(donated))
	perOp := n.Original.Mul(maxPerOpPct)

	c := decimal.Min(allowance, perOp)
	c = decimal.Min(c, n.Current.Sub(reserve))
	return decimal.Max(decimal.Zero, c)
}

// Reserve returns the minimum balance a donor must keep.
func Reserve(n core.Nature, reservePct decimal.Decimal) decimal.Decimal {
	if !n.Original.IsPositive() {
		return decimal.Zero
	}
	return n.Original.Mul(reservePct)
}
