package realloc

import (
	"slices"

	"github.com/shopspring/decimal"

	"remanejo/internal/core"
	"remanejo/internal/ledger"
)

type donorUnit struct {
	unit    int
	natures []ledger.NatureRef
	total   decimal.Decimal
}

// ReallocateExternal covers residual deficits with surplus from other units
// on the same fund, richest unit first. There is no single donor shortcut at
// this stage. Units without a fund are peers of each other.
func (r *Run) ReallocateExternal() {
	r.Trace.Stage("external")

	type pending struct {
		unit    int
		natures []ledger.NatureRef
	}
	var queue []pending
	for u := 0; u < r.Ledger.UnitCount(); u++ {
		if r.unitProhibited(u) {
			continue
		}
		var residual []ledger.NatureRef
		total := decimal.Zero
		for _, ref := range r.Ledger.Natures(u) {
			n := r.Ledger.Nature(ref)
			if !n.IsReceiverCandidate() || core.Settled(n.Necessity) || r.excluded(ref) {
				continue
			}
			residual = append(residual, ref)
			total = total.Add(n.Necessity)
		}
		if len(residual) == 0 {
			continue
		}
		unit := r.Ledger.Unit(u)
		r.Trace.Info("unit still needs cover",
			"unit", unit.Code, "fund", unit.Fund.String(), "amount", core.FormatAmount(total))
		queue = append(queue, pending{unit: u, natures: residual})
	}
	if len(queue) == 0 {
		r.Trace.Info("all deficits covered internally")
		return
	}

	for _, p := range queue {
		unit := r.Ledger.Unit(p.unit)
		donors := r.donorUnits(p.unit)
		if len(donors) == 0 {
			r.Trace.Warn("no donor unit on fund", "unit", unit.Code, "fund", unit.Fund.String())
			continue
		}
		for _, d := range donors {
			r.Trace.Info("donor unit",
				"unit", r.Ledger.Unit(d.unit).Code, "available", core.FormatAmount(d.total))
		}

		for _, dst := range p.natures {
			n := r.Ledger.Nature(dst)
			need := n.Necessity
			if core.Settled(need) {
				continue
			}
			for _, d := range donors {
				if core.Settled(need) {
					break
				}
				same, other := r.splitByPrefix(d.natures, n.Prefix)
				need = r.sweep(dst, need, same, core.KindExternalSamePrefix)
				need = r.sweep(dst, need, other, core.KindExternal)
			}
			r.settle(dst, need)
		}
	}
}

// donorUnits lists the units on the same fund as unit, other than unit
// itself, that hold eligible surplus, ordered by total surplus descending.
func (r *Run) donorUnits(unit int) []donorUnit {
	fund := r.Ledger.Unit(unit).Fund
	var out []donorUnit
	for u := 0; u < r.Ledger.UnitCount(); u++ {
		if u == unit || r.unitProhibited(u) || r.Ledger.Unit(u).Fund != fund {
			continue
		}
		natures := r.surplus(u)
		if len(natures) == 0 {
			continue
		}
		out = append(out, donorUnit{unit: u, natures: natures, total: r.totalCurrent(natures)})
	}
	slices.SortStableFunc(out, func(a, b donorUnit) int {
		return b.total.Cmp(a.total)
	})
	return out
}
