package realloc

import (
	"github.com/shopspring/decimal"

	"remanejo/internal/core"
	"remanejo/internal/ledger"
)

// ReallocateInternal covers deficits with surplus from the same unit. With
// PreferSingleDonor the first donor able to cover the whole need does so in
// one transfer; otherwise donors sharing the category prefix are swept before
// the others.
func (r *Run) ReallocateInternal() {
	r.Trace.Stage("internal")
	for u := 0; u < r.Ledger.UnitCount(); u++ {
		unit := r.Ledger.Unit(u)
		if r.unitProhibited(u) {
			r.Trace.Info("unit skipped on prohibited fund", "unit", unit.Code, "fund", unit.Fund.String())
			continue
		}
		deficits := r.deficitary(u)
		donors := r.surplus(u)
		if len(deficits) == 0 || len(donors) == 0 {
			continue
		}
		r.Trace.Info("processing unit",
			"unit", unit.Code, "fund", unit.Fund.String(),
			"deficits", len(deficits), "donors", len(donors))

		for _, dst := range deficits {
			n := r.Ledger.Nature(dst)
			need := n.Necessity
			if core.Settled(need) {
				continue
			}
			same, other := r.splitByPrefix(donors, n.Prefix)

			if r.Config.PreferSingleDonor {
				if src, ok := r.singleDonor(need, same, other); ok {
					committed, _ := r.Commit(src, dst, need, core.KindInternalSingle)
					need = need.Sub(committed)
				}
			}
			need = r.sweep(dst, need, same, core.KindInternalSamePrefix)
			need = r.sweep(dst, need, other, core.KindInternal)

			r.settle(dst, need)
		}
	}
}

// singleDonor returns the first donor, same prefix first, whose capacity
// covers need on its own.
func (r *Run) singleDonor(need decimal.Decimal, same, other []ledger.NatureRef) (ledger.NatureRef, bool) {
	for _, group := range [][]ledger.NatureRef{same, other} {
		for _, ref := range group {
			if r.capacity(ref).GreaterThanOrEqual(need) {
				return ref, true
			}
		}
	}
	return ledger.NatureRef{}, false
}

// settle stores the residual need and traces it when not covered.
func (r *Run) settle(dst ledger.NatureRef, need decimal.Decimal) {
	r.Ledger.SetNecessity(dst, need)
	if core.Settled(need) {
		return
	}
	n := r.Ledger.Nature(dst)
	r.Trace.Warn("residual need", "unit", n.UnitCode, "nature", n.Code, "amount", core.FormatAmount(need))
}
