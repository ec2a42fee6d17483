package realloc

import (
	"github.com/shopspring/decimal"

	"remanejo/internal/core"
	"remanejo/internal/ledger"
)

// Flag identifies a nature reported by the result validator.
type Flag struct {
	UnitCode   string          `json:"unit"`
	NatureCode string          `json:"nature"`
	Original   decimal.Decimal `json:"original"`
	Current    decimal.Decimal `json:"current"`
}

type Validation struct {
	NoNegativeBalance bool   `json:"no_negative_balance"`
	TransfersOccurred bool   `json:"transfers_occurred"`
	StillNegative     []Flag `json:"still_negative,omitempty"`
	ConsistencyErrors []Flag `json:"consistency_errors,omitempty"`
	ReserveWarnings   []Flag `json:"reserve_warnings,omitempty"`
}

// Validate inspects the final ledger independently of the recorder checks.
func (r *Run) Validate() Validation {
	r.Trace.Stage("validate")
	var v Validation
	for _, ref := range r.Ledger.All() {
		n := r.Ledger.Nature(ref)
		flag := Flag{UnitCode: n.UnitCode, NatureCode: n.Code, Original: n.Original, Current: n.Current}
		switch {
		case n.IsReceiverCandidate():
			if n.Current.LessThan(core.Epsilon.Neg()) {
				v.StillNegative = append(v.StillNegative, flag)
				r.Trace.Warn("nature still negative", "unit", n.UnitCode, "nature", n.Code,
					"balance", core.FormatAmount(n.Current))
			}
		case n.IsDonorCandidate():
			if n.Current.GreaterThan(n.Original) {
				v.ConsistencyErrors = append(v.ConsistencyErrors, flag)
				r.Trace.Warn("donor balance above original", "unit", n.UnitCode, "nature", n.Code,
					"balance", core.FormatAmount(n.Current))
			}
			if n.Current.LessThan(Reserve(n, r.Config.ReservePct)) {
				v.ReserveWarnings = append(v.ReserveWarnings, flag)
				r.Trace.Warn("donor below reserve", "unit", n.UnitCode, "nature", n.Code,
					"balance", core.FormatAmount(n.Current))
			}
		}
	}
	v.NoNegativeBalance = len(v.StillNegative) == 0
	v.TransfersOccurred = len(r.Transfers) > 0
	r.Trace.Info("validation finished",
		"no_negative_balance", v.NoNegativeBalance,
		"transfers_occurred", v.TransfersOccurred)
	return v
}

// reconcile checks current = original + received - donated. Records name
// natures by unit and code, and a code may repeat within a unit, so the check
// runs over each (unit, code) group. Every nature of a group that does not
// reconcile is returned.
func reconcile(l *ledger.Ledger, records []core.TransferRecord) []Flag {
	type key struct{ unit, nature string }
	type group struct {
		original, current decimal.Decimal
		refs              []ledger.NatureRef
	}
	moved := make(map[key]decimal.Decimal)
	for _, rec := range records {
		s := key{rec.SourceUnitCode, rec.SourceNatureCode}
		d := key{rec.DestUnitCode, rec.DestNatureCode}
		moved[s] = moved[s].Sub(rec.Amount)
		moved[d] = moved[d].Add(rec.Amount)
	}
	var order []key
	groups := make(map[key]*group)
	for _, ref := range l.All() {
		n := l.Nature(ref)
		k := key{n.UnitCode, n.Code}
		g, ok := groups[k]
		if !ok {
			g = &group{}
			groups[k] = g
			order = append(order, k)
		}
		g.original = g.original.Add(n.Original)
		g.current = g.current.Add(n.Current)
		g.refs = append(g.refs, ref)
	}
	var bad []Flag
	for _, k := range order {
		g := groups[k]
		if g.original.Add(moved[k]).Equal(g.current) {
			continue
		}
		for _, ref := range g.refs {
			n := l.Nature(ref)
			bad = append(bad, Flag{UnitCode: n.UnitCode, NatureCode: n.Code, Original: n.Original, Current: n.Current})
		}
	}
	return bad
}
