package realloc

import (
	"remanejo/internal/core"
	"remanejo/internal/ledger"
)

// ScanDeficits lists every nature that started negative, in parse order,
// and records the necessity of the eligible ones. Deficits on a prohibited
// fund or nature stay the unit's responsibility: they are listed with
// Prohibited set and never receive transfers.
func (r *Run) ScanDeficits() []core.Deficit {
	r.Trace.Stage("scan")
	var deficits []core.Deficit
	eligible := 0
	for u := 0; u < r.Ledger.UnitCount(); u++ {
		unit := r.Ledger.Unit(u)
		unitProhibited := r.unitProhibited(u)
		if unitProhibited {
			if n := r.countNegative(u); n > 0 {
				r.Trace.Warn("deficits ignored on prohibited fund",
					"unit", unit.Code, "fund", unit.Fund.String(), "count", n)
			}
		}
		for _, ref := range r.Ledger.Natures(u) {
			n := r.Ledger.Nature(ref)
			if !n.IsReceiverCandidate() {
				continue
			}
			need := n.Original.Abs()
			d := core.Deficit{
				UnitCode:   unit.Code,
				UnitName:   unit.Name,
				Fund:       n.Fund,
				NatureCode: n.Code,
				NatureName: n.Name,
				Amount:     need,
				Prohibited: unitProhibited || r.excluded(ref),
			}
			deficits = append(deficits, d)
			if unitProhibited {
				continue
			}
			if d.Prohibited {
				r.Trace.Warn("deficit ignored on prohibited nature or fund",
					"unit", unit.Code, "nature", n.Code, "fund", n.Fund.String())
				continue
			}
			eligible++
			r.Ledger.SetNecessity(ref, need)
			r.Trace.Info("deficit found",
				"unit", unit.Code, "nature", n.Code, "row", n.Row, "amount", core.FormatAmount(need))
		}
	}
	if eligible == 0 {
		r.Trace.Info("no deficits found")
	}
	return deficits
}

// eligibleDeficits counts the deficits that take part in reallocation.
func eligibleDeficits(deficits []core.Deficit) int {
	n := 0
	for _, d := range deficits {
		if !d.Prohibited {
			n++
		}
	}
	return n
}

func (r *Run) countNegative(unit int) int {
	n := 0
	for _, ref := range r.Ledger.Natures(unit) {
		if r.Ledger.Nature(ref).IsReceiverCandidate() {
			n++
		}
	}
	return n
}

// deficitary returns the eligible natures of a unit still below zero.
func (r *Run) deficitary(unit int) []ledger.NatureRef {
	var out []ledger.NatureRef
	for _, ref := range r.Ledger.Natures(unit) {
		if r.Ledger.Nature(ref).Current.IsNegative() && !r.excluded(ref) {
			out = append(out, ref)
		}
	}
	return out
}
